package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/nrednav/cuid2"

	"github.com/emberchat/push-relay/internal/boot"
	"github.com/emberchat/push-relay/internal/errlog"
	"github.com/emberchat/push-relay/internal/expo"
	"github.com/emberchat/push-relay/internal/handlers"
	"github.com/emberchat/push-relay/internal/model"
	"github.com/emberchat/push-relay/internal/pbclient"
	"github.com/emberchat/push-relay/internal/service/dispatch"
	"github.com/emberchat/push-relay/internal/service/notify"
	"github.com/emberchat/push-relay/internal/service/receipt"
	"github.com/emberchat/push-relay/internal/ticketstore"
)

func main() {
	bootConfig, err := boot.Load()
	if err != nil {
		log.Fatalf("boot: %+v", err)
	}

	errorLog, err := errlog.New(bootConfig.ErrorLogPath)
	if err != nil {
		log.Fatalf("opening error log: %+v", err)
	}
	defer errorLog.Close()

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	store := pbclient.New(bootConfig.Store.Endpoint)
	if err := store.AuthWithPassword(runCtx, bootConfig.Store.AdminEmail, bootConfig.Store.AdminPassword); err != nil {
		log.Fatalf("authenticating with store: %+v", err)
	}

	gateway := expo.NewClient(bootConfig.Gateway.BaseURL, bootConfig.Gateway.AccessToken)

	tickets, err := ticketstore.New(runCtx, bootConfig)
	if err != nil {
		log.Fatalf("creating ticket store: %+v", err)
	}
	defer tickets.Close()

	dispatcher := dispatch.New(gateway, tickets, errorLog)
	notifier := notify.New(store, dispatcher)
	reconciler := receipt.New(gateway, tickets, errorLog, bootConfig.Reconcile.Interval)

	go reconciler.Run(runCtx)

	go func() {
		err := store.Subscribe(runCtx, model.CollectionMessages, func(ctx context.Context, event pbclient.RecordEvent) {
			if err := notifier.HandleMessageEvent(ctx, event); err != nil {
				errorLog.Errorf("handling message event: %v", err)
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("message subscription: %+v", err)
		}
	}()

	server := echo.New()
	server.Validator = handlers.NewValidator()
	server.Use(middleware.BodyLimit("1M"))
	server.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string {
			return cuid2.Generate()
		},
	}))
	server.Use(echoprometheus.NewMiddleware("pushrelay"))
	server.Use(middleware.Recover())

	server.Logger.SetLevel(log.INFO)

	headers := []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization}
	server.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"*"},
		AllowHeaders: headers,
	}))

	server.POST("/massNotification", handlers.MassNotification(store, store, dispatcher))
	server.GET("/healthz", handlers.Health(tickets))

	go func() {
		metrics := echo.New()
		metrics.GET("/metrics", echoprometheus.NewHandler())
		if err := metrics.Start(":8081"); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	go func() {
		if err := server.Start(":" + bootConfig.Server.Port); err != nil && err != http.ErrServerClosed {
			server.Logger.Fatal("shutting down the server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		server.Logger.Fatal(err)
	}
}

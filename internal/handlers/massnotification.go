package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/emberchat/push-relay/internal/expo"
	"github.com/emberchat/push-relay/internal/model"
)

// Response statuses the mass-notify endpoint reports.
const (
	StatusSuccess              = "Success"
	StatusInvalidBody          = "InvalidBody"
	StatusInvalidAuthorization = "InvalidAuthorization"
)

const wildcardUserID = "*"

type AdminVerifier interface {
	VerifyAdmin(ctx context.Context, adminID string, token string) error
}

type TokenSource interface {
	AllPushTokens(ctx context.Context) ([]model.PushToken, error)
	PushTokensMatchingAll(ctx context.Context, userIDs []string) ([]model.PushToken, error)
}

type Dispatcher interface {
	Send(ctx context.Context, messages []expo.PushMessage) error
}

type massNotificationBody struct {
	Request struct {
		UserIDs []string `json:"userIds" validate:"required,min=1,dive,required"`
		Message string   `json:"message" validate:"required"`
	} `json:"request"`
	User struct {
		Token string `json:"token" validate:"required"`
		ID    string `json:"id" validate:"required"`
	} `json:"user"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// MassNotification pushes one "System Message" per resolved device token
// for an admin-supplied set of users, or every token when the set contains
// the wildcard "*".
func MassNotification(auth AdminVerifier, tokens TokenSource, dispatcher Dispatcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		body := &massNotificationBody{}
		if err := c.Bind(body); err != nil {
			return c.JSON(http.StatusBadRequest, statusResponse{StatusInvalidBody})
		}
		if err := c.Validate(body); err != nil {
			return c.JSON(http.StatusBadRequest, statusResponse{StatusInvalidBody})
		}

		ctx := c.Request().Context()

		if err := auth.VerifyAdmin(ctx, body.User.ID, body.User.Token); err != nil {
			return c.JSON(http.StatusUnauthorized, statusResponse{StatusInvalidAuthorization})
		}

		resolved, err := resolveTokens(ctx, tokens, body.Request.UserIDs)
		if err != nil {
			return fmt.Errorf("resolving target tokens: %w", err)
		}

		messages := make([]expo.PushMessage, 0, len(resolved))
		for _, token := range resolved {
			messages = append(messages, expo.PushMessage{
				To:       token.PushToken,
				Title:    "System Message",
				Body:     body.Request.Message,
				Priority: "high",
				Sound:    "default",
			})
		}

		if err := dispatcher.Send(ctx, messages); err != nil {
			return fmt.Errorf("dispatching mass notification: %w", err)
		}

		return c.JSON(http.StatusOK, statusResponse{StatusSuccess})
	}
}

func resolveTokens(ctx context.Context, tokens TokenSource, userIDs []string) ([]model.PushToken, error) {
	for _, id := range userIDs {
		if id == wildcardUserID {
			return tokens.AllPushTokens(ctx)
		}
	}
	return tokens.PushTokensMatchingAll(ctx, userIDs)
}

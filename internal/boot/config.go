package boot

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Env    string `env:"ENV,default=dev"`
	Server struct {
		Port string `env:"PORT,default=3001"`
	}
	Store struct {
		Endpoint      string `env:"STORE_ENDPOINT,required"`
		AdminEmail    string `env:"STORE_ADMIN_EMAIL,required"`
		AdminPassword string `env:"STORE_ADMIN_PASSWORD,required"`
	}
	Gateway struct {
		BaseURL     string `env:"GATEWAY_BASE_URL,default=https://exp.host/--/api/v2"`
		AccessToken string `env:"GATEWAY_ACCESS_TOKEN"`
	}
	Tickets struct {
		Backend    string `env:"TICKET_STORE,default=memory"`
		SqlitePath string `env:"TICKET_STORE_SQLITE_PATH,default=tickets.db"`
		RedisURL   string `env:"TICKET_STORE_REDIS_URL"`
	}
	Reconcile struct {
		Interval time.Duration `env:"RECONCILE_INTERVAL,default=900s"`
	}
	ErrorLogPath string `env:"ERROR_LOG,default=error.log"`
}

func Load() (*Config, error) {
	config := &Config{}
	if err := envconfig.Process(context.Background(), config); err != nil {
		return nil, fmt.Errorf("parsing env vars: %w", err)
	}
	return config, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "prod"
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "dev"
}

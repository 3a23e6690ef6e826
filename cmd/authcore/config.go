package main

import (
	"errors"
	"log/slog"

	"github.com/dmitrymomot/authcore/pkg/logger"
	"github.com/dmitrymomot/authcore/pkg/requestid"
	"github.com/dmitrymomot/authcore/svc/auth"
)

const (
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
	storeMemory    = "memory"
	storeRedis     = "redis"
)

// appConfig holds process-wide settings. Component settings live next to
// their packages and are loaded separately.
type appConfig struct {
	Env               string `env:"APP_ENV" envDefault:"development"`
	Name              string `env:"APP_NAME" envDefault:"authcore"`
	LogLevel          string `env:"LOG_LEVEL"`
	StorageDriver     string `env:"STORAGE_DRIVER" envDefault:"sqlite"`
	EncryptionKey     string `env:"SECRETS_ENCRYPTION_KEY"`
	APIPrefix         string `env:"API_PREFIX" envDefault:"/api/v1"`
	GoogleKeepEnabled bool   `env:"GOOGLE_KEEP_ENABLED" envDefault:"true"`
	RateLimitEnabled  bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitStore    string `env:"RATE_LIMIT_STORE" envDefault:"memory"`
}

func (c *appConfig) Validate() error {
	if c.StorageDriver != driverSQLite && c.StorageDriver != driverPostgres {
		return errors.New("STORAGE_DRIVER must be sqlite or postgres")
	}
	if c.RateLimitStore != storeMemory && c.RateLimitStore != storeRedis {
		return errors.New("RATE_LIMIT_STORE must be memory or redis")
	}
	return nil
}

func (c *appConfig) production() bool {
	switch c.Env {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

func newLogger(cfg appConfig) *slog.Logger {
	opts := []logger.Option{
		logger.WithEnvironment(cfg.Env, cfg.Name),
		logger.WithContextExtractors(requestid.LogExtractor(), auth.IdentityLogExtractor()),
	}
	if cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevel(logger.ParseLevel(cfg.LogLevel)))
	}
	return logger.New(opts...)
}

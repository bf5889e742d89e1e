package handlers

import (
	"os"

	"speakwise-feedback/internal/config"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
)

// SetupSentry enables error reporting when a DSN is configured.
func SetupSentry(e *echo.Echo, cfg *config.Config) {
	if cfg.Sentry.DSN == "" {
		e.Logger.Warn("SENTRY_DSN not configured, error reporting will be disabled")
		return
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		Environment:      os.Getenv("ENV_STACK"),
		EnableTracing:    true,
		TracesSampleRate: 0.1,
	})
	if err != nil {
		e.Logger.Warnf("Sentry initialization failed: %v", err)
		return
	}

	e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))
}

// CaptureError reports err to Sentry. It is a no-op until SetupSentry succeeds.
func CaptureError(err error) {
	if err == nil {
		return
	}
	sentry.CaptureException(err)
}

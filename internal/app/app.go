package app

import (
	"context"
	"log/slog"
	"net/http"

	"go-report-access-service/internal/config"
	"go-report-access-service/internal/observability"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger
	Server *http.Server
	Obs    *observability.Runtime
}

func New(cfg *config.Config, logger *slog.Logger, server *http.Server, obs *observability.Runtime) *App {
	return &App{Config: cfg, Logger: logger, Server: server, Obs: obs}
}

// Shutdown drains in-flight requests, then flushes telemetry.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Server.Shutdown(ctx)
	if a.Obs != nil {
		if obsErr := a.Obs.Shutdown(ctx); obsErr != nil && err == nil {
			err = obsErr
		}
	}
	return err
}

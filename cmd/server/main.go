package main

import (
	"context"
	"log/slog"
	"os"

	"agreeme/app"
	"agreeme/app/config"
	"agreeme/auth"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	app.InitLogger(cfg.Logs)

	svc, cleanup, err := app.Build(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	router := app.NewRouter(svc, app.RouterOptions{
		PathPrefixes:   cfg.Server.PathPrefixes,
		MaxUploadBytes: cfg.Limits.MaxUploadBytes,
		AdminGroup:     cfg.Auth.AdminGroup,
		DisableAuth:    auth.AuthDisabled(),
	})
	slog.Info("server listening", "port", cfg.Server.Port)
	if err := router.Run("0.0.0.0:" + cfg.Server.Port); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/lifeline/internal/api"
	"github.com/satriahrh/lifeline/internal/auth"
	"github.com/satriahrh/lifeline/internal/config"
	"github.com/satriahrh/lifeline/internal/websocket"
	"github.com/satriahrh/lifeline/usecase"
)

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			// Initialize logger
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()

			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize adapters
	adapters, err := buildAdapters(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer adapters.close(logger)

	authenticator, err := auth.NewAuthenticator(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}

	// Initialize usecase services
	emergency := usecase.NewEmergencyService(adapters.emergencyDeps(cfg), logger)
	checklists := usecase.NewChecklistService(adapters.classifier, emergency.Registry(), logger)

	// Initialize WebSocket hub
	hub := websocket.NewHub(emergency, checklists, websocket.Config{
		PlaybackTimeout: cfg.Guidance.PlaybackTimeout.Duration,
		IdleTimeout:     cfg.Server.IdleTimeout.Duration,
	}, logger)
	go hub.Run(ctx)

	reaper := websocket.NewIdleReaper(hub, cfg.Server.IdleTimeout.Duration, logger)
	reaper.Start()
	defer reaper.Stop()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize API routes
	api.InitRoutes(e, api.Dependencies{
		Emergency: emergency,
		Hub:       hub,
		Auth:      authenticator,
		RateLimit: cfg.Server.RateLimit,
		Logger:    logger,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("speech", cfg.Speech.Backend))

	// Wait for interrupt signal to gracefully shutdown the server
	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("Server failed", zap.Error(err))
		return err
	}

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	logger.Info("Server exited")
	return nil
}

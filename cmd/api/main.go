package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/saturnino-fabrica-de-software/chamada/internal/api"
	"github.com/saturnino-fabrica-de-software/chamada/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/chamada/internal/app"
	"github.com/saturnino-fabrica-de-software/chamada/internal/config"
	"github.com/saturnino-fabrica-de-software/chamada/internal/service"
	"github.com/saturnino-fabrica-de-software/chamada/internal/webhook"
	"github.com/saturnino-fabrica-de-software/chamada/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	logger.Info("starting Chamada API",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := ws.NewHub(logger)
	publishers := service.Publishers{hub}

	var notifier *webhook.Notifier
	if len(cfg.WebhookURLs) > 0 {
		endpoints := make([]webhook.Endpoint, len(cfg.WebhookURLs))
		for i, u := range cfg.WebhookURLs {
			endpoints[i] = webhook.Endpoint{URL: u, Secret: cfg.WebhookSecret, Events: cfg.WebhookEvents}
		}
		notifier = webhook.NewNotifier(endpoints, webhook.Options{MaxAttempts: cfg.WebhookMaxAttempts}, logger)
		publishers = append(publishers, notifier)
	}

	core, err := app.Open(ctx, cfg, logger, app.Options{
		Publisher:   publishers,
		StartCamera: true,
	})
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer func() {
		if err := core.Close(); err != nil {
			logger.Error("close resources", slog.Any("error", err))
		}
	}()

	deps := &api.Dependencies{
		Enrollment:  core.Enrollment,
		Students:    core.Students,
		Recognition: core.Recognition,
		Attendance:  core.Attendance,
		Hasher:      handler.NewArgon2Hasher(),
		Store:       core.Gateway,
		Hub:         hub,
	}
	if core.Camera != nil {
		deps.Camera = core.Camera
	}

	// Setup router
	router := api.NewRouter(logger, deps, api.Options{
		RequestTimeout: cfg.RequestTimeout,
		RateLimit:      cfg.RateLimit,
	})
	router.Setup()

	g, gctx := errgroup.WithContext(ctx)

	if notifier != nil {
		g.Go(func() error { return notifier.Run(gctx) })
	}

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		done := make(chan error, 1)
		go func() { done <- router.Shutdown() }()

		select {
		case err := <-done:
			return err
		case <-time.After(10 * time.Second):
			return errors.New("shutdown timed out")
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
		return err
	}

	logger.Info("server stopped")
	return nil
}

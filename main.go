// Package main provides the entry point for the Firefly gateway server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mirovado/firefly-gateway/internal/audiovideo"
	"github.com/mirovado/firefly-gateway/internal/config"
	"github.com/mirovado/firefly-gateway/internal/firefly"
	"github.com/mirovado/firefly-gateway/internal/ims"
	"github.com/mirovado/firefly-gateway/internal/lightroom"
	"github.com/mirovado/firefly-gateway/internal/media"
	"github.com/mirovado/firefly-gateway/internal/photoshop"
	"github.com/mirovado/firefly-gateway/internal/poll"
	"github.com/mirovado/firefly-gateway/internal/server"
	"github.com/mirovado/firefly-gateway/internal/storage"
	"github.com/mirovado/firefly-gateway/internal/workflow"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting Firefly gateway",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("s3_bucket", cfg.S3Bucket),
		slog.String("s3_region", cfg.S3Region),
		slog.Int("poll_max_attempts", cfg.PollMaxAttempts),
		slog.Duration("poll_timeout", cfg.PollTimeout),
	)

	// Initialize the IMS client for token exchange
	imsClient, err := ims.NewClient(cfg.ClientID, cfg.ClientSecret, ims.WithScopes(cfg.Scopes))
	if err != nil {
		return fmt.Errorf("create IMS client: %w", err)
	}

	// All vendor clients share one poller and one wait policy
	poller := poll.New(poll.WithLogger(logger))
	backoff := cfg.PollBackoff()

	fireflyClient, err := firefly.NewClient(cfg.ClientID,
		firefly.WithPoller(poller),
		firefly.WithPollBackoff(backoff),
		firefly.WithPollMaxAttempts(cfg.PollMaxAttempts),
	)
	if err != nil {
		return fmt.Errorf("create Firefly client: %w", err)
	}

	photoshopClient, err := photoshop.NewClient(cfg.ClientID,
		photoshop.WithPoller(poller),
		photoshop.WithPollBackoff(backoff),
		photoshop.WithPollMaxAttempts(cfg.PollMaxAttempts),
	)
	if err != nil {
		return fmt.Errorf("create Photoshop client: %w", err)
	}

	lightroomClient, err := lightroom.NewClient(cfg.ClientID,
		lightroom.WithPoller(poller),
		lightroom.WithPollBackoff(backoff),
		lightroom.WithPollMaxAttempts(cfg.PollMaxAttempts),
	)
	if err != nil {
		return fmt.Errorf("create Lightroom client: %w", err)
	}

	audioVideoClient, err := audiovideo.NewClient(cfg.ClientID,
		audiovideo.WithPoller(poller),
		audiovideo.WithPollBackoff(backoff),
		audiovideo.WithPollMaxAttempts(cfg.PollMaxAttempts),
	)
	if err != nil {
		return fmt.Errorf("create audio/video client: %w", err)
	}

	// Initialize S3 storage
	store, err := storage.NewS3Storage(context.Background(), storage.S3Config{
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		PresignExpiry:   cfg.PresignExpiry,
	})
	if err != nil {
		return fmt.Errorf("create S3 storage: %w", err)
	}
	logger.Info("S3 storage configured",
		slog.String("bucket", cfg.S3Bucket),
		slog.String("region", cfg.S3Region),
	)

	// Initialize the thumbnail generator
	thumbnailer := media.NewThumbnailer(store, cfg.ThumbnailMaxPx, logger)

	// Initialize the product shot workflow service
	workflows, err := workflow.NewService(workflow.ServiceConfig{
		IMS:       imsClient,
		Photoshop: photoshopClient,
		Firefly:   fireflyClient,
		Lightroom: lightroomClient,
		Runs:      workflow.NewMemoryRepository(),
		Store:     store,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("create workflow service: %w", err)
	}

	// Initialize HTTP handlers and router
	handlers := server.NewHandlers(server.Dependencies{
		IMS:         imsClient,
		Firefly:     fireflyClient,
		Photoshop:   photoshopClient,
		Lightroom:   lightroomClient,
		AudioVideo:  audioVideoClient,
		Store:       store,
		Thumbnailer: thumbnailer,
		Workflows:   workflows,
		Poller:      poller,
		APIKey:      cfg.ClientID,
	}, logger,
		server.WithDefaultBucket(cfg.S3Bucket),
		server.WithPollBackoff(backoff),
		server.WithPollMaxAttempts(cfg.PollMaxAttempts),
		server.WithPollTimeout(cfg.PollTimeout),
	)
	router := server.NewRouter(handlers, logger, server.Config{
		AllowedOrigins: cfg.AllowedOrigins,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.PollTimeout + time.Minute, // Allow for blocking status polls
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal",
			slog.String("signal", sig.String()),
		)
	case err := <-errCh:
		return err
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

// Package bootstrap provides dependency initialization for the gateway.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

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

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Handlers  *server.Handlers
	Workflows *workflow.Service
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	imsClient, err := ims.NewClient(cfg.ClientID, cfg.ClientSecret, ims.WithScopes(cfg.Scopes))
	if err != nil {
		return nil, fmt.Errorf("create IMS client: %w", err)
	}

	// All vendor clients share one poller and one wait policy.
	poller := poll.New(poll.WithLogger(logger))
	backoff := cfg.PollBackoff()

	fireflyClient, err := firefly.NewClient(cfg.ClientID,
		firefly.WithPoller(poller),
		firefly.WithPollBackoff(backoff),
		firefly.WithPollMaxAttempts(cfg.PollMaxAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("create Firefly client: %w", err)
	}

	photoshopClient, err := photoshop.NewClient(cfg.ClientID,
		photoshop.WithPoller(poller),
		photoshop.WithPollBackoff(backoff),
		photoshop.WithPollMaxAttempts(cfg.PollMaxAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("create Photoshop client: %w", err)
	}

	lightroomClient, err := lightroom.NewClient(cfg.ClientID,
		lightroom.WithPoller(poller),
		lightroom.WithPollBackoff(backoff),
		lightroom.WithPollMaxAttempts(cfg.PollMaxAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("create Lightroom client: %w", err)
	}

	audioVideoClient, err := audiovideo.NewClient(cfg.ClientID,
		audiovideo.WithPoller(poller),
		audiovideo.WithPollBackoff(backoff),
		audiovideo.WithPollMaxAttempts(cfg.PollMaxAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("create audio/video client: %w", err)
	}

	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	thumbnailer := media.NewThumbnailer(store, cfg.ThumbnailMaxPx, logger)

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
		return nil, fmt.Errorf("create workflow service: %w", err)
	}

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

	return &Dependencies{
		Handlers:  handlers,
		Workflows: workflows,
	}, nil
}

// initStorage creates the S3 storage backend.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	s3Store, err := storage.NewS3Storage(ctx, storage.S3Config{
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		PresignExpiry:   cfg.PresignExpiry,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 storage: %w", err)
	}
	logger.Info("S3 storage configured",
		slog.String("bucket", cfg.S3Bucket),
		slog.String("region", cfg.S3Region),
	)
	return s3Store, nil
}

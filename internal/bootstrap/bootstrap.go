// Package bootstrap provides dependency initialization for the framegrab
// CLI and HTTP service.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/maauso/framegrab/internal/config"
	"github.com/maauso/framegrab/internal/encode"
	"github.com/maauso/framegrab/internal/extract"
	"github.com/maauso/framegrab/internal/job"
	"github.com/maauso/framegrab/internal/media"
	"github.com/maauso/framegrab/internal/storage"
)

// NewExtractor builds the frame extractor backed by the configured ffmpeg
// binaries.
func NewExtractor(cfg *config.Config, logger *slog.Logger) *extract.Extractor {
	decoder := media.NewFFmpegDecoder(cfg.FFmpegPath, cfg.FFprobePath)
	encoder := encode.NewFileEncoder(cfg.FFmpegPath)
	return extract.NewExtractor(decoder, encoder, logger)
}

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Extractor *extract.Extractor
	Storage   storage.Storage
	Service   *job.ExtractionService
}

// NewDependencies creates and initializes all dependencies for serve mode.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	extractor := NewExtractor(cfg, logger)

	// Initialize job repository
	repo := job.NewMemoryRepository()

	svc := job.NewExtractionService(
		repo,
		extractor,
		store,
		logger,
		job.WithQueueDepth(cfg.QueueDepth),
	)

	return &Dependencies{
		Extractor: extractor,
		Storage:   store,
		Service:   svc,
	}, nil
}

// DefaultParams returns the job parameters used when a request leaves a
// field empty.
func DefaultParams(cfg *config.Config) job.Params {
	return job.Params{
		Width:     cfg.Width,
		Height:    cfg.Height,
		Quality:   cfg.Quality,
		Format:    cfg.Format,
		TargetFPS: cfg.TargetFPS,
		OnError:   cfg.OnError,
	}
}

// NewStorage creates the storage backend for CLI publication. It returns
// LocalStorage when S3 is not configured.
func NewStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	return initStorage(cfg, logger)
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Debug("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}

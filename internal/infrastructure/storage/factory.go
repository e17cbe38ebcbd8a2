package storage

import (
	"context"

	invoicingapp "github.com/chantier/backend/internal/application/invoicing"
	"github.com/chantier/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewDocumentStore returns the S3 store when storage is enabled and the local
// store otherwise. localURL is where the HTTP layer serves local documents.
func NewDocumentStore(ctx context.Context, cfg *config.StorageConfig, localURL string, logger *zap.Logger) (invoicingapp.DocumentStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Info("Object storage disabled, keeping documents on disk", zap.String("path", cfg.LocalPath))
		return NewLocalDocumentStore(cfg.LocalPath, localURL, logger)
	}

	store, err := NewS3DocumentStore(ctx, cfg, WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	logger.Info("Object storage ready", zap.String("bucket", store.Bucket()))
	return store, nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	invoicingapp "github.com/chantier/backend/internal/application/invoicing"
	"go.uber.org/zap"
)

var _ invoicingapp.DocumentStore = (*LocalDocumentStore)(nil)

// LocalDocumentStore keeps documents on the local file system.
// Used in development when no bucket is configured; the HTTP layer serves
// BasePath under BaseURL.
type LocalDocumentStore struct {
	basePath string
	baseURL  string
	logger   *zap.Logger
}

// NewLocalDocumentStore creates the base directory and returns the store
func NewLocalDocumentStore(basePath, baseURL string, logger *zap.Logger) (*LocalDocumentStore, error) {
	if basePath == "" {
		return nil, errors.New("document directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create document directory %s: %w", basePath, err)
	}
	return &LocalDocumentStore{
		basePath: basePath,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		logger:   logger,
	}, nil
}

// BasePath returns the directory documents are written to
func (s *LocalDocumentStore) BasePath() string {
	return s.basePath
}

// Upload writes data to BasePath/storageKey
func (s *LocalDocumentStore) Upload(ctx context.Context, storageKey string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.resolve(storageKey)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create document directory: %w", err)
	}

	// Write to a temp file first so readers never see a partial document.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write document: %w", err)
	}

	s.logger.Debug("document stored",
		zap.String("path", path),
		zap.String("content_type", contentType),
		zap.Int("size", len(data)))
	return nil
}

// GenerateDownloadURL returns BaseURL/storageKey.
// The expiry is advisory: local links are not signed.
func (s *LocalDocumentStore) GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error) {
	path, err := s.resolve(storageKey)
	if err != nil {
		return "", time.Time{}, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", time.Time{}, fmt.Errorf("document %s does not exist", storageKey)
		}
		return "", time.Time{}, fmt.Errorf("failed to stat document: %w", err)
	}

	segments := strings.Split(storageKey, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(segments, "/"), time.Now().Add(expiresIn), nil
}

// resolve maps a storage key to a path inside basePath
func (s *LocalDocumentStore) resolve(storageKey string) (string, error) {
	if storageKey == "" {
		return "", errors.New("storage key is required")
	}
	if !filepath.IsLocal(filepath.FromSlash(storageKey)) {
		return "", fmt.Errorf("invalid storage key %q", storageKey)
	}
	return filepath.Join(s.basePath, filepath.FromSlash(storageKey)), nil
}

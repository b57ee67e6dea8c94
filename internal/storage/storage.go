// Package storage persists uploaded template and submission files.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"hoiku-portal/internal/config"
)

var (
	ErrNotExist   = errors.New("stored file not found")
	ErrInvalidKey = errors.New("invalid storage key")
)

// Store saves and serves files by key. Keys are flat names produced by
// TemplateKey or SubmissionKey.
type Store interface {
	Save(ctx context.Context, key string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// FromConfig builds the backend named by STORAGE_BACKEND.
func FromConfig(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StorageBackend {
	case "s3":
		s3, err := NewS3Store(ctx, S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return s3, nil
	case "local", "":
		local, err := NewLocalStore(cfg.UploadDir)
		if err != nil {
			return nil, err
		}
		return local, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

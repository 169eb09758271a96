package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	BackendLocal = "local"
	BackendMinIO = "minio"
)

// Config selects and configures the cover file store.
type Config struct {
	Backend  string
	Dir      string
	MaxBytes int64
	MinIO    MinIOConfig
}

// MinIOConfig holds MinIO connection configuration
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// Validate rejects unknown backends and incomplete MinIO settings.
func (c Config) Validate() error {
	if c.MaxBytes <= 0 {
		return errors.New("uploads max bytes must be positive")
	}
	switch c.Backend {
	case BackendLocal:
		if c.Dir == "" {
			return errors.New("uploads dir is required for the local backend")
		}
	case BackendMinIO:
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
			return errors.New("minio endpoint and bucket are required for the minio backend")
		}
	default:
		return fmt.Errorf("unknown uploads backend %q", c.Backend)
	}
	return nil
}

const bucketTimeout = 5 * time.Second

// Open builds the FileStore selected by c. The MinIO backend has its bucket
// ensured before it is returned.
func Open(ctx context.Context, c Config) (FileStore, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Backend != BackendMinIO {
		return NewLocalStore(c.Dir)
	}
	s, err := NewMinIOStore(&c.MinIO)
	if err != nil {
		return nil, err
	}
	bctx, cancel := context.WithTimeout(ctx, bucketTimeout)
	defer cancel()
	if err := s.EnsureBucket(bctx); err != nil {
		return nil, fmt.Errorf("minio: %w", err)
	}
	return s, nil
}

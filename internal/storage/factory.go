package storage

import (
	"context"
	"fmt"
)

// New creates the Storage selected by cfg.Driver.
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Driver {
	case "minio", "":
		return NewMinioStorage(ctx, cfg)
	case "s3":
		return NewS3Storage(ctx, cfg)
	case "memory":
		return NewMemoryStorage(cfg.PublicBase), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}

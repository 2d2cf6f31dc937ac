package store

import (
	"context"
	"fmt"

	"github.com/opsweep/opsweep/internal/config"
)

// BlobStore is the durable storage used for backup records and run
// reports. Handles returned by Write are opaque to callers; keys are
// stable and listable by prefix.
type BlobStore interface {
	Write(ctx context.Context, key string, blob []byte) (string, error)
	Read(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// New builds the configured store backend.
func New(ctx context.Context, cfg config.StoreConfig) (BlobStore, error) {
	switch cfg.Backend {
	case "filesystem":
		return NewFSStore(cfg.Path)
	case "s3":
		return NewS3Store(ctx, cfg.Bucket, cfg.Prefix, cfg.Region)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}

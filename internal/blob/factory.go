package blob

import (
	"context"
	"fmt"

	"caprev/internal/config"
	"caprev/internal/review"
)

// NewStoreFromConfig creates a BlobStore implementation based on the blob config type.
func NewStoreFromConfig(ctx context.Context, cfg config.BlobConfig) (review.BlobStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem blob store requires fs_root to be set")
		}
		return NewFileSystemStore(cfg.FSRoot)
	case "s3":
		return NewS3Store(ctx, S3Options{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	case "minio":
		return NewMinioStore(ctx, MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Region:    cfg.MinioRegion,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown blob store type: %s", cfg.Type)
	}
}

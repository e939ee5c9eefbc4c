package main

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/facevec/blobstore"
	minioblob "github.com/hupe1980/facevec/blobstore/minio"
	s3blob "github.com/hupe1980/facevec/blobstore/s3"
	"github.com/hupe1980/facevec/internal/config"
)

// newBlobStore returns the configured remote store, or nil for the local
// model-data directory.
func newBlobStore(ctx context.Context, cfg config.BackendConfig) (blobstore.Store, error) {
	switch cfg.Type {
	case config.BackendLocal:
		return nil, nil
	case config.BackendMinIO:
		client, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.Secure,
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return minioblob.NewStore(client, cfg.Bucket, cfg.Prefix), nil
	case config.BackendS3:
		opts := []s3blob.Option{s3blob.WithPrefix(cfg.Prefix)}
		if cfg.Region != "" {
			opts = append(opts, s3blob.WithRegion(cfg.Region))
		}
		if cfg.Endpoint != "" {
			opts = append(opts, s3blob.WithEndpoint(cfg.Endpoint))
		}
		if cfg.AccessKey != "" {
			opts = append(opts, s3blob.WithStaticCredentials(cfg.AccessKey, cfg.SecretKey))
		}
		return s3blob.New(ctx, cfg.Bucket, opts...)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Type)
	}
}

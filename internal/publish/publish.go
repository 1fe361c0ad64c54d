// Package publish uploads finished reels to S3-compatible object storage so
// they can be shared without touching the machine that rendered them.
// Publishing is optional; the pipeline is complete without it.
package publish

import (
	"context"
	"fmt"
	"path"
	"time"

	"reelforge/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const shareExpiry = 24 * time.Hour

// Publisher uploads reels to a bucket.
type Publisher struct {
	client *minio.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// Enabled reports whether publishing is configured.
func Enabled(cfg config.PublishConfig) bool {
	return cfg.Endpoint != ""
}

// New creates a publisher for the configured endpoint.
func New(cfg config.PublishConfig, logger *zap.Logger) (*Publisher, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}
	return &Publisher{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: logger,
	}, nil
}

// PublishReel uploads the reel file and returns a presigned share URL.
func (p *Publisher) PublishReel(ctx context.Context, runID, filePath string) (string, error) {
	key := path.Join(p.prefix, runID, "reel.mp4")

	info, err := p.client.FPutObject(ctx, p.bucket, key, filePath, minio.PutObjectOptions{
		ContentType: "video/mp4",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload reel: %w", err)
	}

	shareURL, err := p.client.PresignedGetObject(ctx, p.bucket, key, shareExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to sign share URL: %w", err)
	}

	p.logger.Info("Reel published",
		zap.String("run_id", runID),
		zap.String("key", key),
		zap.Int64("bytes", info.Size),
	)
	return shareURL.String(), nil
}

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/drivehub/backend/internal/config"
	"github.com/drivehub/backend/pkg/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinIOClient struct {
	client *minio.Client
	bucket string
}

func NewMinIOClient(cfg config.MinIOConfig) (*MinIOClient, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	return &MinIOClient{client: client, bucket: cfg.Bucket}, nil
}

func (m *MinIOClient) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	urlValue, err := m.client.PresignedPutObject(ctx, m.bucket, key, ttl)
	if err != nil {
		logger.Error("minio_presign_put_failed", err, map[string]interface{}{
			"object_name": key,
			"bucket":      m.bucket,
		})
		return "", err
	}
	return urlValue.String(), nil
}

func (m *MinIOClient) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	urlValue, err := m.client.PresignedGetObject(ctx, m.bucket, key, ttl, nil)
	if err != nil {
		logger.Error("minio_presign_get_failed", err, map[string]interface{}{
			"object_name": key,
			"bucket":      m.bucket,
		})
		return "", err
	}
	return urlValue.String(), nil
}

func (m *MinIOClient) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed creating bucket %s: %w", m.bucket, err)
	}
	return nil
}

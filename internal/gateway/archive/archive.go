// Package archive stores sourcing probe traces as JSON objects in MinIO so
// that chain decisions can be replayed offline. The archive is best-effort:
// callers log failures and move on.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"outreach_backend/platform/config"
)

// Store writes probe traces to object storage.
type Store interface {
	PutTrace(ctx context.Context, runID string, name string, payload any) (string, error)
}

// MinIOStore implements Store against a MinIO bucket.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

// NewMinIOStore connects to MinIO and ensures the trace bucket exists.
func NewMinIOStore(ctx context.Context, cfg config.ArchiveConfig) (*MinIOStore, error) {
	if !cfg.IsArchiveEnabled() {
		return nil, fmt.Errorf("archive is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	bucket := cfg.GetMinioBucketSourcingTraces()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}

	return &MinIOStore{client: client, bucket: bucket}, nil
}

// PutTrace serializes the payload and stores it under runID/name-timestamp.json.
// Returns the object key.
func (s *MinIOStore) PutTrace(ctx context.Context, runID, name string, payload any) (string, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize trace: %w", err)
	}

	key := fmt.Sprintf("%s/%s-%s.json", runID, name, time.Now().UTC().Format("20060102T150405"))
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload trace %s: %w", key, err)
	}
	return key, nil
}

// NoopStore discards traces. Used when the archive is not configured.
type NoopStore struct{}

func (NoopStore) PutTrace(context.Context, string, string, any) (string, error) {
	return "", nil
}

package archive

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// GCS writes payloads to a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
	logger *zap.Logger
}

// NewGCS initializes a GCS client and verifies the bucket is reachable.
// Authentication uses Application Default Credentials.
func NewGCS(ctx context.Context, bucket string, logger *zap.Logger) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("close gcs client after bucket check failure", zap.Error(cerr))
		}
		return nil, fmt.Errorf("get gcs bucket %q attributes: %w", bucket, err)
	}
	return &GCS{client: client, bucket: bucket, logger: logger}, nil
}

// Put uploads the payload to the bucket under key.
func (s *GCS) Put(ctx context.Context, key string, data []byte) (string, error) {
	wc := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if _, err := wc.Write(data); err != nil {
		if cerr := wc.Close(); cerr != nil {
			s.logger.Warn("close gcs writer after write failure", zap.Error(cerr))
		}
		return "", fmt.Errorf("write gcs object %s: %w", key, err)
	}
	// Close finalizes the upload and flushes buffered data.
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("close gcs writer for %s: %w", key, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, key), nil
}

// Close releases the underlying client.
func (s *GCS) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close gcs client: %w", err)
	}
	return nil
}

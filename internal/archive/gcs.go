package archive

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSStore writes snapshots to a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore creates a GCS-backed store and verifies bucket access so
// misconfiguration fails at startup rather than on the first snapshot.
// Authentication uses Application Default Credentials.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			return nil, fmt.Errorf("get bucket %q attributes: %w (close client: %v)", bucket, err, closeErr)
		}
		return nil, fmt.Errorf("get bucket %q attributes: %w", bucket, err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// PutObject uploads data to the bucket and returns a gs:// URI.
func (s *GCSStore) PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	writer := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, r); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, path), nil
}

// Close releases the underlying GCS client.
func (s *GCSStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close gcs client: %w", err)
	}
	return nil
}

//go:build gcp

package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"cloud.google.com/go/storage"
)

// GCSStore keeps compiled documents in a Google Cloud Storage bucket, one
// object per identifier.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// GCSStoreConfig holds configuration for GCSStore.
type GCSStoreConfig struct {
	Bucket string
	Prefix string // optional key prefix
}

// NewGCSStore creates a GCS-backed artifact store using ADC credentials.
func NewGCSStore(ctx context.Context, cfg GCSStoreConfig) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSStore{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *GCSStore) object(identifier string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(s.prefix + url.PathEscape(identifier) + ".blob")
}

func (s *GCSStore) Put(ctx context.Context, identifier string, data []byte) error {
	if identifier == "" {
		return fmt.Errorf("empty artifact identifier")
	}
	w := s.object(identifier).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close failed: %w", err)
	}
	return nil
}

func (s *GCSStore) Get(ctx context.Context, identifier string) ([]byte, error) {
	r, err := s.object(identifier).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("artifact not found: %s", identifier)
		}
		return nil, fmt.Errorf("gcs get failed for %s: %w", identifier, err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gcs read failed for %s: %w", identifier, err)
	}
	return data, nil
}

func (s *GCSStore) Exists(ctx context.Context, identifier string) (bool, error) {
	_, err := s.object(identifier).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("gcs attrs failed for %s: %w", identifier, err)
}

func (s *GCSStore) Delete(ctx context.Context, identifier string) error {
	err := s.object(identifier).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs delete failed for %s: %w", identifier, err)
	}
	return nil
}

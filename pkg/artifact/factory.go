package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// StoreType selects an artifact storage backend.
type StoreType string

const (
	StoreTypeFS    StoreType = "fs"
	StoreTypeS3    StoreType = "s3"
	StoreTypeRedis StoreType = "redis"
	StoreTypeGCS   StoreType = "gcs"
)

// NewStoreFromEnv creates an artifact store based on environment variables.
//
// Environment variables:
//   - SHIELD_ARTIFACT_STORE: "fs" (default), "s3", "redis", or "gcs"
//   - SHIELD_DATA_DIR: base directory for the filesystem store (default "data")
//
// For S3:
//   - SHIELD_S3_BUCKET (required)
//   - SHIELD_S3_REGION or AWS_REGION
//   - SHIELD_S3_ENDPOINT (optional, for MinIO/LocalStack)
//   - SHIELD_S3_PREFIX (optional)
//
// For Redis:
//   - SHIELD_REDIS_ADDR (default "localhost:6379")
//   - SHIELD_REDIS_PASSWORD, SHIELD_REDIS_DB, SHIELD_REDIS_PREFIX (optional)
//
// For GCS (requires -tags gcp):
//   - SHIELD_GCS_BUCKET (required)
//   - SHIELD_GCS_PREFIX (optional)
func NewStoreFromEnv(ctx context.Context) (Store, error) {
	storeType := StoreType(os.Getenv("SHIELD_ARTIFACT_STORE"))
	if storeType == "" {
		storeType = StoreTypeFS
	}

	switch storeType {
	case StoreTypeFS:
		return newFileStoreFromEnv()
	case StoreTypeS3:
		return newS3StoreFromEnv(ctx)
	case StoreTypeRedis:
		return newRedisStoreFromEnv()
	case StoreTypeGCS:
		return newGCSStoreFromEnv(ctx)
	default:
		return nil, fmt.Errorf("unsupported artifact store type: %s", storeType)
	}
}

func newFileStoreFromEnv() (Store, error) {
	dataDir := os.Getenv("SHIELD_DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}
	return NewFileStore(filepath.Join(dataDir, "artifacts"))
}

func newS3StoreFromEnv(ctx context.Context) (Store, error) {
	bucket := os.Getenv("SHIELD_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("SHIELD_S3_BUCKET is required for S3 storage")
	}

	region := os.Getenv("SHIELD_S3_REGION")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	return NewS3Store(ctx, S3StoreConfig{
		Bucket:   bucket,
		Region:   region,
		Endpoint: os.Getenv("SHIELD_S3_ENDPOINT"),
		Prefix:   os.Getenv("SHIELD_S3_PREFIX"),
	})
}

func newRedisStoreFromEnv() (Store, error) {
	addr := os.Getenv("SHIELD_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	db := 0
	if raw := os.Getenv("SHIELD_REDIS_DB"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("SHIELD_REDIS_DB must be an integer: %w", err)
		}
		db = n
	}
	return NewRedisStore(addr, os.Getenv("SHIELD_REDIS_PASSWORD"), db, os.Getenv("SHIELD_REDIS_PREFIX")), nil
}

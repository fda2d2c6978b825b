//go:build gcp

package artifact

import (
	"context"
	"fmt"
	"os"
)

func newGCSStoreFromEnv(ctx context.Context) (Store, error) {
	bucket := os.Getenv("SHIELD_GCS_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("SHIELD_GCS_BUCKET is required for GCS storage")
	}
	return NewGCSStore(ctx, GCSStoreConfig{
		Bucket: bucket,
		Prefix: os.Getenv("SHIELD_GCS_PREFIX"),
	})
}

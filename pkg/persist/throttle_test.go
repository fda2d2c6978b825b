package persist

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSaver struct {
	mu      sync.Mutex
	saves   int
	deletes int
}

func (c *countingSaver) SaveTiers(ctx context.Context, client string, tiers Tiers) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saves++
	return nil
}

func (c *countingSaver) DeleteClient(ctx context.Context, client string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	return nil
}

func TestThrottledSaverIsLossless(t *testing.T) {
	inner := &countingSaver{}
	throttled := NewThrottledSaver(inner, 1000, 1)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, throttled.SaveTiers(ctx, "ext-1", Tiers{}))
	}
	assert.Equal(t, 10, inner.saves)
}

func TestThrottledSaverPacesWrites(t *testing.T) {
	inner := &countingSaver{}
	// 100 writes/s with burst 1: 4 writes need roughly 30ms of waiting.
	throttled := NewThrottledSaver(inner, 100, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(t, throttled.SaveTiers(ctx, "ext-1", Tiers{}))
	}
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
	assert.Equal(t, 4, inner.saves)
}

func TestThrottledSaverHonorsContext(t *testing.T) {
	inner := &countingSaver{}
	throttled := NewThrottledSaver(inner, 0.001, 1)
	ctx := context.Background()

	// Burst token admits the first write.
	require.NoError(t, throttled.SaveTiers(ctx, "ext-1", Tiers{}))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, throttled.SaveTiers(cancelled, "ext-1", Tiers{}))
	assert.Equal(t, 1, inner.saves)
}

func TestThrottledDeleteNotThrottled(t *testing.T) {
	inner := &countingSaver{}
	throttled := NewThrottledSaver(inner, 0.001, 1)
	ctx := context.Background()

	require.NoError(t, throttled.SaveTiers(ctx, "ext-1", Tiers{}))
	// Deletes bypass the bucket entirely.
	require.NoError(t, throttled.DeleteClient(ctx, "ext-1"))
	assert.Equal(t, 1, inner.deletes)
}

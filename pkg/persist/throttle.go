package persist

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// ThrottledSaver paces writes through a token bucket so a burst of rule
// mutations does not amplify into a burst of storage writes. Waiting is
// lossless: every save eventually runs, in call order per caller.
type ThrottledSaver struct {
	next    Saver
	limiter *rate.Limiter
}

// NewThrottledSaver wraps next with a writes-per-second cap. A burst of
// size burst is admitted without waiting.
func NewThrottledSaver(next Saver, perSecond float64, burst int) *ThrottledSaver {
	if burst < 1 {
		burst = 1
	}
	return &ThrottledSaver{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (t *ThrottledSaver) SaveTiers(ctx context.Context, client string, tiers Tiers) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("throttle save for %s: %w", client, err)
	}
	return t.next.SaveTiers(ctx, client, tiers)
}

// DeleteClient is not throttled: teardown is rare and should not queue
// behind batched saves.
func (t *ThrottledSaver) DeleteClient(ctx context.Context, client string) error {
	return t.next.DeleteClient(ctx, client)
}

// Package persist is the optional persistence collaborator layered on top
// of the ephemeral rule store. When wired, every successful mutation writes
// the client's tiers out, and a restart restores them before the first
// request. The core store never depends on this package being present.
package persist

import (
	"context"

	"github.com/nook-browser/shield/pkg/rule"
)

// Tiers is one client's persisted rule state.
type Tiers struct {
	Static  []rule.Rule `json:"static,omitempty"`
	Dynamic []rule.Rule `json:"dynamic,omitempty"`
	Session []rule.Rule `json:"session,omitempty"`
}

// Saver writes tier state out after mutations.
type Saver interface {
	SaveTiers(ctx context.Context, client string, tiers Tiers) error
	DeleteClient(ctx context.Context, client string) error
}

// Loader restores persisted state on startup.
type Loader interface {
	// LoadAll returns every persisted client's tiers.
	LoadAll(ctx context.Context) (map[string]Tiers, error)
}

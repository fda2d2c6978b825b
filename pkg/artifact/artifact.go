// Package artifact holds compiled rule documents. A Store keeps the latest
// document revision per identifier; the identifier is stable across
// recompilations of the same client, so a new revision replaces the old one
// instead of accumulating next to it.
package artifact

import (
	"context"
	"time"
)

// Artifact is the opaque handle returned by the compilation service. Beyond
// the fields here callers treat it as a token: it names a compiled document
// revision, nothing more.
type Artifact struct {
	// Identifier is the store key the document was compiled under, one per
	// client.
	Identifier string `json:"identifier"`
	// ContentHash is the "sha256:" address of the canonicalized document.
	// Identical rule sets compile to identical hashes.
	ContentHash string `json:"contentHash"`
	// Size is the canonical document's byte length.
	Size int `json:"size"`
	// FragmentCount is the number of rules in the compiled document.
	FragmentCount int `json:"fragmentCount"`
	// CompiledAt is when the compilation service produced this revision.
	CompiledAt time.Time `json:"compiledAt"`
}

// Store is the blob storage contract for compiled documents, keyed by
// identifier. Put replaces any previous revision under the same key.
type Store interface {
	Put(ctx context.Context, identifier string, data []byte) error
	Get(ctx context.Context, identifier string) ([]byte, error)
	Exists(ctx context.Context, identifier string) (bool, error)
	Delete(ctx context.Context, identifier string) error
}

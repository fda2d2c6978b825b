// Package compiler drives the pipeline from rule-tier mutations to
// compiled artifacts: it owns the per-client artifact cache, serializes
// recompilation per client, and implements the visible contract of every
// mutating operation as mutate, then recompile, then return.
package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/nook-browser/shield/pkg/artifact"
	"github.com/nook-browser/shield/pkg/contentblocker"
	"github.com/nook-browser/shield/pkg/errdefs"
	"github.com/nook-browser/shield/pkg/persist"
	"github.com/nook-browser/shield/pkg/rule"
	"github.com/nook-browser/shield/pkg/rulestore"
	"github.com/nook-browser/shield/pkg/translate"
)

// Service is the external compilation contract. Compile must replace any
// previous artifact under the same identifier; Remove revokes it. The
// service is a black box: any matching runtime honoring this contract is a
// valid substitute.
type Service interface {
	Compile(ctx context.Context, identifier string, document []byte) (*artifact.Artifact, error)
	Remove(ctx context.Context, identifier string) error
}

// Result reports one compilation pass.
type Result struct {
	// JobID correlates the pass across logs and metrics.
	JobID string `json:"jobId"`
	// Artifact is the pass's compiled artifact. For a no-op pass it is the
	// previously cached artifact, which may be nil.
	Artifact *artifact.Artifact `json:"artifact,omitempty"`
	// Summary is the translation accounting for the pass: how many rules
	// were emitted, degraded, or dropped, and which ones.
	Summary translate.Summary `json:"summary"`
	// NoOp is true when the merged rule set was empty and no service call
	// was made.
	NoOp bool `json:"noOp,omitempty"`
}

// Observer receives compile-path signal. pkg/observability's Provider
// satisfies it; a nil observer is valid and drops everything.
type Observer interface {
	TrackCompilation(ctx context.Context, client string) (context.Context, func(error))
	RecordDegradations(ctx context.Context, client string, degraded, dropped int)
	RecordQuotaRejection(ctx context.Context, client, tier string)
}

// clientState carries the per-client cache entry. compileMu serializes
// compilation passes for the client; epoch detects removal racing an
// in-flight pass. epoch and artifact are guarded by Compiler.mu.
type clientState struct {
	compileMu sync.Mutex
	epoch     uint64
	artifact  *artifact.Artifact
	summary   translate.Summary
}

// Compiler merges a client's tiers, translates them, and submits the
// serialized document to the compilation service. Cross-client passes run
// fully parallel; per-client passes are serialized.
type Compiler struct {
	store      *rulestore.Store
	service    Service
	translator *translate.Translator
	saver      persist.Saver // optional, best-effort
	observer   Observer      // optional
	logger     *slog.Logger

	mu      sync.Mutex
	clients map[string]*clientState
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithSaver wires the persistence collaborator. Saves happen after
// successful mutations and are best-effort: a failing saver is logged, not
// surfaced.
func WithSaver(s persist.Saver) Option {
	return func(c *Compiler) { c.saver = s }
}

// WithObserver wires compile-path metrics and tracing.
func WithObserver(o Observer) Option {
	return func(c *Compiler) { c.observer = o }
}

// WithLogger overrides the default component logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Compiler over a rule store and a compilation service.
func New(store *rulestore.Store, service Service, opts ...Option) *Compiler {
	c := &Compiler{
		store:      store,
		service:    service,
		translator: translate.New(),
		logger:     slog.Default().With("component", "compiler"),
		clients:    make(map[string]*clientState),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// state returns the client's cache entry, creating it only for clients the
// rule store knows. Entries are never deleted: the compile mutex inside an
// entry must stay the identifier's serialization point even across removal
// and re-creation of the client.
func (c *Compiler) state(clientID string) (*clientState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.clients[clientID]
	if !ok {
		if !c.store.Has(clientID) {
			return nil, errdefs.New(errdefs.KindRulesetNotFound, clientID, "unknown client")
		}
		st = &clientState{}
		c.clients[clientID] = st
	}
	return st, nil
}

// LoadStatic replaces the client's static tier and recompiles.
func (c *Compiler) LoadStatic(ctx context.Context, clientID string, rules []rule.Rule) (*Result, error) {
	c.store.LoadStatic(clientID, rules)
	c.persistTiers(ctx, clientID)
	return c.Compile(ctx, clientID)
}

// UpdateDynamic applies an add/remove update to the dynamic tier and
// recompiles. A quota rejection leaves the tier and the cached artifact
// untouched.
func (c *Compiler) UpdateDynamic(ctx context.Context, clientID string, add []rule.Rule, removeIDs []int) (*Result, error) {
	if err := c.store.UpdateDynamic(clientID, add, removeIDs); err != nil {
		c.observeQuota(ctx, clientID, "dynamic", err)
		return nil, err
	}
	c.persistTiers(ctx, clientID)
	return c.Compile(ctx, clientID)
}

// UpdateSession is UpdateDynamic against the session tier.
func (c *Compiler) UpdateSession(ctx context.Context, clientID string, add []rule.Rule, removeIDs []int) (*Result, error) {
	if err := c.store.UpdateSession(clientID, add, removeIDs); err != nil {
		c.observeQuota(ctx, clientID, "session", err)
		return nil, err
	}
	c.persistTiers(ctx, clientID)
	return c.Compile(ctx, clientID)
}

// Compile runs one compilation pass for the client: snapshot the tiers,
// translate, serialize, submit, and atomically swap the cached artifact on
// success. At most one pass runs per client at a time; the snapshot is
// taken after the pass acquires the client's compile mutex, so a mutation
// landing while an earlier pass is in flight is always observed by the
// next pass.
func (c *Compiler) Compile(ctx context.Context, clientID string) (*Result, error) {
	st, err := c.state(clientID)
	if err != nil {
		return nil, err
	}
	st.compileMu.Lock()
	defer st.compileMu.Unlock()

	c.mu.Lock()
	startEpoch := st.epoch
	c.mu.Unlock()

	jobID := uuid.NewString()
	logger := c.logger.With("client", clientID, "job", jobID)

	var done func(error)
	if c.observer != nil {
		ctx, done = c.observer.TrackCompilation(ctx, clientID)
	} else {
		done = func(error) {}
	}

	merged, err := c.store.Snapshot(clientID)
	if err != nil {
		done(err)
		return nil, err
	}

	if len(merged) == 0 {
		// Nothing to compile. The previous artifact, if any, stays current:
		// an empty merge is a no-op, not an implicit revocation.
		done(nil)
		c.mu.Lock()
		prev := st.artifact
		c.mu.Unlock()
		logger.Debug("compilation skipped, empty rule set")
		return &Result{JobID: jobID, Artifact: prev, NoOp: true}, nil
	}

	fragments, summary := c.translator.TranslateAll(merged)
	if c.observer != nil {
		c.observer.RecordDegradations(ctx, clientID, summary.Degraded, summary.Dropped)
	}

	document, err := contentblocker.MarshalDocument(fragments)
	if err != nil {
		wrapped := errdefs.Wrap(errdefs.KindCompilationFailed, clientID, err)
		done(wrapped)
		return nil, wrapped
	}

	art, err := c.service.Compile(ctx, clientID, document)
	if err != nil {
		// The previous artifact stays cached and current.
		wrapped := errdefs.Wrap(errdefs.KindCompilationFailed, clientID, err)
		done(wrapped)
		logger.Warn("compilation service rejected document", "error", err)
		return nil, wrapped
	}

	c.mu.Lock()
	if st.epoch != startEpoch {
		// The client was removed while this pass was in flight. Caching the
		// result would resurrect a ruleset the caller already tore down, so
		// discard it. Revoke the freshly stored blob only while no newer
		// pass has cached an artifact under the identifier.
		stale := st.artifact == nil
		c.mu.Unlock()
		done(nil)
		if stale {
			if err := c.service.Remove(ctx, clientID); err != nil {
				logger.Warn("revoking artifact of removed client failed", "error", err)
			}
		}
		logger.Info("compilation discarded, client removed mid-flight")
		return nil, errdefs.New(errdefs.KindRulesetNotFound, clientID, "client removed during compilation")
	}
	st.artifact = art
	st.summary = summary
	c.mu.Unlock()

	done(nil)
	logger.Info("compilation succeeded",
		"rules", summary.Total,
		"fragments", summary.Emitted,
		"degraded", summary.Degraded,
		"dropped", summary.Dropped,
		"hash", art.ContentHash,
	)
	return &Result{JobID: jobID, Artifact: art, Summary: summary}, nil
}

// GetArtifact returns the client's current artifact without triggering a
// compilation. Absence is not an error.
func (c *Compiler) GetArtifact(clientID string) *artifact.Artifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.clients[clientID]; ok {
		return st.artifact
	}
	return nil
}

// LastSummary returns the translation accounting of the client's most
// recent successful pass.
func (c *Compiler) LastSummary(clientID string) translate.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.clients[clientID]; ok {
		return st.summary
	}
	return translate.Summary{}
}

// RemoveClient tears the client down: all tiers cleared, the cached
// artifact dropped, and the identifier revoked at the compilation service.
// Revocation and persistence cleanup are best-effort; a failure there is
// logged, not escalated.
func (c *Compiler) RemoveClient(ctx context.Context, clientID string) error {
	if err := c.store.Remove(clientID); err != nil {
		return err
	}

	c.mu.Lock()
	if st, ok := c.clients[clientID]; ok {
		// The entry stays: its compile mutex remains the identifier's
		// serialization point if the client is re-created. The epoch bump
		// tells any in-flight pass to discard its result.
		st.epoch++
		st.artifact = nil
		st.summary = translate.Summary{}
	}
	c.mu.Unlock()

	if err := c.service.Remove(ctx, clientID); err != nil {
		c.logger.Warn("artifact removal failed", "client", clientID, "error", err)
	}
	if c.saver != nil {
		if err := c.saver.DeleteClient(ctx, clientID); err != nil {
			c.logger.Warn("persisted state removal failed", "client", clientID, "error", err)
		}
	}
	return nil
}

// Restore loads persisted tiers into the store and compiles each restored
// client once.
func (c *Compiler) Restore(ctx context.Context, loader persist.Loader) error {
	all, err := loader.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("restore persisted rulesets: %w", err)
	}
	for clientID, tiers := range all {
		c.store.Restore(clientID, tiers.Static, tiers.Dynamic, tiers.Session)
		if _, err := c.Compile(ctx, clientID); err != nil {
			c.logger.Warn("restored client failed to compile", "client", clientID, "error", err)
		}
	}
	return nil
}

// persistTiers writes the client's tiers through the saver, when one is
// wired. Persistence is a collaborator, not a dependency: failures are
// logged and the mutation stands.
func (c *Compiler) persistTiers(ctx context.Context, clientID string) {
	if c.saver == nil {
		return
	}
	static, err := c.store.Static(clientID)
	if err != nil {
		return
	}
	dynamic, _ := c.store.Dynamic(clientID)
	session, _ := c.store.Session(clientID)
	tiers := persist.Tiers{Static: static, Dynamic: dynamic, Session: session}
	if err := c.saver.SaveTiers(ctx, clientID, tiers); err != nil {
		c.logger.Warn("tier persistence failed", "client", clientID, "error", err)
	}
}

func (c *Compiler) observeQuota(ctx context.Context, clientID, tier string, err error) {
	if c.observer != nil && errdefs.KindOf(err) == errdefs.KindQuotaExceeded {
		c.observer.RecordQuotaRejection(ctx, clientID, tier)
	}
}

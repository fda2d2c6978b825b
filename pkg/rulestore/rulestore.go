// Package rulestore holds each client's three rule tiers (static, dynamic,
// session) in an owned table behind a single store API. All mutations are
// atomic with their quota checks: no caller ever observes a tier that
// temporarily exceeds its cap or reflects only half of an update.
package rulestore

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/nook-browser/shield/pkg/errdefs"
	"github.com/nook-browser/shield/pkg/rule"
)

// DefaultTierQuota is the reference cardinality cap for each mutable tier.
const DefaultTierQuota = 5000

// Limits caps the dynamic and session tiers. The static tier is bounded by
// its rule package, not by the store. A zero or negative value selects
// DefaultTierQuota.
type Limits struct {
	Dynamic int
	Session int
}

// DefaultLimits returns the reference quotas.
func DefaultLimits() Limits {
	return Limits{Dynamic: DefaultTierQuota, Session: DefaultTierQuota}
}

func (l Limits) normalized() Limits {
	if l.Dynamic <= 0 {
		l.Dynamic = DefaultTierQuota
	}
	if l.Session <= 0 {
		l.Session = DefaultTierQuota
	}
	return l
}

// ruleSet is one client's tiers. Slices preserve insertion order; ids are
// unique within a tier.
type ruleSet struct {
	static  []rule.Rule
	dynamic []rule.Rule
	session []rule.Rule
}

// Store is the per-process tiered rule store. Safe for concurrent use;
// critical sections are in-memory map edits only and never perform I/O.
type Store struct {
	mu      sync.RWMutex
	limits  Limits
	clients map[string]*ruleSet
	logger  *slog.Logger
}

// New creates a Store with the given limits.
func New(limits Limits) *Store {
	return &Store{
		limits:  limits.normalized(),
		clients: make(map[string]*ruleSet),
		logger:  slog.Default().With("component", "rulestore"),
	}
}

// SetLogger overrides the store's logger.
func (s *Store) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// Limits reports the store's effective quotas.
func (s *Store) Limits() Limits {
	return s.limits
}

// LoadStatic replaces the client's static tier wholesale, creating the
// ruleset if this is the client's first operation. Static volume is bounded
// by the rule package, so no quota applies. Duplicate ids keep the last
// occurrence in its first position.
func (s *Store) LoadStatic(clientID string, rules []rule.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs := s.ensureLocked(clientID)
	rs.static = dedupe(rules)
	s.logger.Debug("static tier replaced", "client", clientID, "rules", len(rs.static))
}

// UpdateDynamic removes the dynamic-tier rules named in removeIDs, then
// appends add. When the result would exceed the dynamic quota the whole
// update is rejected and the tier is left untouched.
func (s *Store) UpdateDynamic(clientID string, add []rule.Rule, removeIDs []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs := s.ensureLocked(clientID)
	next, err := applyUpdate(rs.dynamic, add, removeIDs, s.limits.Dynamic, clientID, "dynamic")
	if err != nil {
		return err
	}
	rs.dynamic = next
	return nil
}

// UpdateSession is UpdateDynamic against the session tier and its own
// quota.
func (s *Store) UpdateSession(clientID string, add []rule.Rule, removeIDs []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs := s.ensureLocked(clientID)
	next, err := applyUpdate(rs.session, add, removeIDs, s.limits.Session, clientID, "session")
	if err != nil {
		return err
	}
	rs.session = next
	return nil
}

// Static returns a read-only snapshot of the client's static tier.
func (s *Store) Static(clientID string) ([]rule.Rule, error) {
	return s.tier(clientID, func(rs *ruleSet) []rule.Rule { return rs.static })
}

// Dynamic returns a read-only snapshot of the client's dynamic tier.
func (s *Store) Dynamic(clientID string) ([]rule.Rule, error) {
	return s.tier(clientID, func(rs *ruleSet) []rule.Rule { return rs.dynamic })
}

// Session returns a read-only snapshot of the client's session tier.
func (s *Store) Session(clientID string) ([]rule.Rule, error) {
	return s.tier(clientID, func(rs *ruleSet) []rule.Rule { return rs.session })
}

// Snapshot returns the client's merged rules in compilation order: static,
// then dynamic, then session, each in insertion order.
func (s *Store) Snapshot(clientID string) ([]rule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rs, ok := s.clients[clientID]
	if !ok {
		return nil, errdefs.New(errdefs.KindRulesetNotFound, clientID, "")
	}
	merged := make([]rule.Rule, 0, len(rs.static)+len(rs.dynamic)+len(rs.session))
	merged = append(merged, rs.static...)
	merged = append(merged, rs.dynamic...)
	merged = append(merged, rs.session...)
	return merged, nil
}

// Has reports whether the client has a ruleset.
func (s *Store) Has(clientID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.clients[clientID]
	return ok
}

// Clients returns the known client identifiers, sorted.
func (s *Store) Clients() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Remove clears all tiers for the client and forgets it.
func (s *Store) Remove(clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[clientID]; !ok {
		return errdefs.New(errdefs.KindRulesetNotFound, clientID, "")
	}
	delete(s.clients, clientID)
	s.logger.Debug("ruleset removed", "client", clientID)
	return nil
}

// Restore installs previously persisted tiers verbatim, replacing any
// current state for the client. Persisted state passed its quota checks
// when written, so none are re-applied here.
func (s *Store) Restore(clientID string, static, dynamic, session []rule.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs := s.ensureLocked(clientID)
	rs.static = dedupe(static)
	rs.dynamic = dedupe(dynamic)
	rs.session = dedupe(session)
}

func (s *Store) ensureLocked(clientID string) *ruleSet {
	rs, ok := s.clients[clientID]
	if !ok {
		rs = &ruleSet{}
		s.clients[clientID] = rs
	}
	return rs
}

func (s *Store) tier(clientID string, pick func(*ruleSet) []rule.Rule) ([]rule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rs, ok := s.clients[clientID]
	if !ok {
		return nil, errdefs.New(errdefs.KindRulesetNotFound, clientID, "")
	}
	src := pick(rs)
	out := make([]rule.Rule, len(src))
	copy(out, src)
	return out, nil
}

// applyUpdate computes the tier state after an atomic remove-then-add. The
// result is built aside and only adopted by the caller on success, which is
// what makes quota failures leave the tier byte-for-byte unchanged.
func applyUpdate(tier, add []rule.Rule, removeIDs []int, limit int, clientID, tierName string) ([]rule.Rule, error) {
	removing := make(map[int]bool, len(removeIDs))
	for _, id := range removeIDs {
		removing[id] = true
	}

	next := make([]rule.Rule, 0, len(tier)+len(add))
	index := make(map[int]int, len(tier)+len(add))
	for _, r := range tier {
		if removing[r.ID] {
			continue
		}
		index[r.ID] = len(next)
		next = append(next, r)
	}
	for _, r := range add {
		if at, ok := index[r.ID]; ok {
			// Re-adding an existing id replaces the rule in place so the
			// tier's insertion order stays stable.
			next[at] = r
			continue
		}
		index[r.ID] = len(next)
		next = append(next, r)
	}

	if len(next) > limit {
		return nil, errdefs.Newf(errdefs.KindQuotaExceeded, clientID,
			"%s tier would hold %d rules (limit %d)", tierName, len(next), limit)
	}
	return next, nil
}

// dedupe drops duplicate ids keeping the last occurrence in the position
// of the first.
func dedupe(rules []rule.Rule) []rule.Rule {
	if len(rules) == 0 {
		return nil
	}
	out := make([]rule.Rule, 0, len(rules))
	index := make(map[int]int, len(rules))
	for _, r := range rules {
		if at, ok := index[r.ID]; ok {
			out[at] = r
			continue
		}
		index[r.ID] = len(out)
		out = append(out, r)
	}
	return out
}

// Package errdefs defines the error taxonomy shared by the rule store,
// the translator, and the compiler. Every failure surfaced to a caller is
// classified by Kind so callers can branch on errors.Is without string
// matching.
package errdefs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. Kinds are stable API: callers match on them.
type Kind string

const (
	// KindInvalidRule marks a rule document entry that could not be parsed
	// into the typed model. Batch operations skip such entries instead of
	// aborting.
	KindInvalidRule Kind = "invalid_rule"
	// KindQuotaExceeded marks a dynamic/session update whose resulting tier
	// would exceed its cardinality cap. The update is rejected atomically.
	KindQuotaExceeded Kind = "quota_exceeded"
	// KindCompilationFailed marks a rejection or error from the external
	// compilation service. The previously cached artifact stays current.
	KindCompilationFailed Kind = "compilation_failed"
	// KindRulesetNotFound marks an operation referencing a client with no
	// known ruleset.
	KindRulesetNotFound Kind = "ruleset_not_found"
)

// Sentinels for errors.Is matching. Only the Kind participates in matching,
// so errors.Is(err, ErrQuotaExceeded) is true for any quota failure.
var (
	ErrInvalidRule       = &Error{Kind: KindInvalidRule}
	ErrQuotaExceeded     = &Error{Kind: KindQuotaExceeded}
	ErrCompilationFailed = &Error{Kind: KindCompilationFailed}
	ErrRulesetNotFound   = &Error{Kind: KindRulesetNotFound}
)

// Error is the concrete error type carried across package boundaries.
type Error struct {
	Kind   Kind
	Client string // client identifier, empty when not client-scoped
	Detail string
	Err    error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Client != "" {
		msg = fmt.Sprintf("%s: client %q", msg, e.Client)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the cause chain to errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind. This makes the
// package sentinels usable as errors.Is targets regardless of the client or
// detail carried by the concrete error.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New builds a classified error with a human-readable detail.
func New(kind Kind, client, detail string) *Error {
	return &Error{Kind: kind, Client: client, Detail: detail}
}

// Newf is New with formatting.
func Newf(kind Kind, client, format string, args ...any) *Error {
	return &Error{Kind: kind, Client: client, Detail: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying cause.
func Wrap(kind Kind, client string, err error) *Error {
	return &Error{Kind: kind, Client: client, Err: err}
}

// KindOf extracts the Kind from an error chain, or "" when the chain holds
// no classified error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

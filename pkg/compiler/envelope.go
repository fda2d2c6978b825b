package compiler

import (
	"context"

	"github.com/nook-browser/shield/pkg/rule"
	"github.com/nook-browser/shield/pkg/ruledoc"
)

// Envelope entry points. These decode a schema-validated operation envelope
// and run the corresponding tier operation, returning the per-entry issues
// alongside the compile result so callers can report skipped rules.

// ApplyStaticLoad decodes a static-load envelope and replaces the client's
// static tier.
func (c *Compiler) ApplyStaticLoad(ctx context.Context, data []byte) (*Result, []rule.Issue, error) {
	env, err := ruledoc.DecodeStaticLoad(data)
	if err != nil {
		return nil, nil, err
	}
	result, err := c.LoadStatic(ctx, env.Client, env.Rules)
	return result, env.Issues, err
}

// ApplyDynamicUpdate decodes an update envelope and merges it into the
// client's dynamic tier.
func (c *Compiler) ApplyDynamicUpdate(ctx context.Context, data []byte) (*Result, []rule.Issue, error) {
	env, err := ruledoc.DecodeUpdate(data)
	if err != nil {
		return nil, nil, err
	}
	result, err := c.UpdateDynamic(ctx, env.Client, env.Add, env.RemoveIDs)
	return result, env.Issues, err
}

// ApplySessionUpdate is ApplyDynamicUpdate for the session tier.
func (c *Compiler) ApplySessionUpdate(ctx context.Context, data []byte) (*Result, []rule.Issue, error) {
	env, err := ruledoc.DecodeUpdate(data)
	if err != nil {
		return nil, nil, err
	}
	result, err := c.UpdateSession(ctx, env.Client, env.Add, env.RemoveIDs)
	return result, env.Issues, err
}

package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nook-browser/shield/pkg/errdefs"
	"github.com/nook-browser/shield/pkg/rulestore"
)

func TestApplyStaticLoadEnvelope(t *testing.T) {
	svc := newFakeService()
	c := newTestCompiler(rulestore.DefaultLimits(), svc)

	payload := []byte(`{
		"client": "ext-1",
		"rules": [
			{"id": 1, "action": {"type": "block"}, "condition": {"urlFilter": "||ads.example^"}},
			{"id": "bogus", "action": {"type": "block"}}
		]
	}`)
	result, issues, err := c.ApplyStaticLoad(context.Background(), payload)
	require.NoError(t, err)
	require.NotNil(t, result.Artifact)
	assert.Equal(t, 1, result.Summary.Emitted)
	assert.Len(t, issues, 1)
}

func TestApplyUpdateEnvelopeRemovesRules(t *testing.T) {
	svc := newFakeService()
	c := newTestCompiler(rulestore.DefaultLimits(), svc)
	ctx := context.Background()

	_, _, err := c.ApplyDynamicUpdate(ctx, []byte(`{
		"client": "ext-1",
		"add": [
			{"id": 1, "action": {"type": "block"}, "condition": {"urlFilter": "||a.example^"}},
			{"id": 2, "action": {"type": "block"}, "condition": {"urlFilter": "||b.example^"}}
		]
	}`))
	require.NoError(t, err)

	result, issues, err := c.ApplyDynamicUpdate(ctx, []byte(`{"client": "ext-1", "removeIds": [1]}`))
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, 1, result.Summary.Emitted)
}

func TestApplyEnvelopeRejectsBadShape(t *testing.T) {
	c := newTestCompiler(rulestore.DefaultLimits(), newFakeService())

	_, _, err := c.ApplySessionUpdate(context.Background(), []byte(`{"add": []}`))
	require.Error(t, err)
	assert.Equal(t, errdefs.KindInvalidRule, errdefs.KindOf(err))
}

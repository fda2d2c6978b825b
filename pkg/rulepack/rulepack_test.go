package rulepack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nook-browser/shield/pkg/rule"
)

func writePack(t *testing.T, manifest string, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	path := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))
	return path
}

func TestLoadPack(t *testing.T) {
	path := writePack(t, `
name: easylist-slim
version: 1.4.0
description: trimmed ad-blocking list
rules:
  - ads.json
  - trackers.json
`, map[string]string{
		"ads.json":      `[{"id": 1, "action": {"type": "block"}, "condition": {"urlFilter": "||ads.example^"}}]`,
		"trackers.json": `[{"id": 2, "action": {"type": "block"}}, {"id": 3, "action": {"type": "upgradeScheme"}}]`,
	})

	pack, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "easylist-slim", pack.Manifest.Name)
	assert.Equal(t, uint64(1), pack.Version.Major())
	require.Len(t, pack.Rules, 3)
	// Manifest order, then file order.
	assert.Equal(t, []int{1, 2, 3}, []int{pack.Rules[0].ID, pack.Rules[1].ID, pack.Rules[2].ID})
	assert.Equal(t, rule.ActionUpgradeScheme, pack.Rules[2].Action.Type)
	assert.Empty(t, pack.Issues)
}

func TestLoadPackReportsSkippedEntries(t *testing.T) {
	path := writePack(t, `
name: mixed
version: 0.2.1
rules:
  - rules.json
`, map[string]string{
		"rules.json": `[{"id": 1, "action": {"type": "block"}}, {"action": {"type": "block"}}]`,
	})

	pack, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, pack.Rules, 1)
	require.Len(t, pack.Issues, 1)
	assert.Equal(t, "rules.json", pack.Issues[0].File)
	assert.Equal(t, 1, pack.Issues[0].Issue.Index)
}

func TestLoadPackRejectsNonSemver(t *testing.T) {
	path := writePack(t, "name: bad\nversion: not-a-version\nrules: []\n", nil)
	_, err := Load(path)
	assert.ErrorContains(t, err, "not semver")
}

func TestLoadPackRejectsMissingName(t *testing.T) {
	path := writePack(t, "version: 1.0.0\nrules: []\n", nil)
	_, err := Load(path)
	assert.ErrorContains(t, err, "name is required")
}

func TestLoadPackRejectsUnknownManifestKeys(t *testing.T) {
	path := writePack(t, "name: x\nversion: 1.0.0\nrules: []\nlicence: MIT\n", nil)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadPackMissingRuleFile(t *testing.T) {
	path := writePack(t, "name: x\nversion: 1.0.0\nrules: [missing.json]\n", nil)
	_, err := Load(path)
	assert.Error(t, err)
}

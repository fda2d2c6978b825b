// Package rulepack loads versioned rule packages: a YAML manifest naming
// the package plus the JSON rule files that make up a client's static tier.
// The manifest is strict (a malformed manifest or a non-semver version is
// an error); rule entries keep the per-entry skip-and-report contract.
package rulepack

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/nook-browser/shield/pkg/rule"
)

// Manifest is the package descriptor.
type Manifest struct {
	Name        string   `yaml:"name" json:"name"`
	Version     string   `yaml:"version" json:"version"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	// Rules lists JSON rule-file paths relative to the manifest.
	Rules []string `yaml:"rules" json:"rules"`
}

// Pack is a loaded rule package: its manifest, the rules parsed from its
// files in manifest order, and the entries that were skipped.
type Pack struct {
	Manifest Manifest
	Version  *semver.Version
	Rules    []rule.Rule
	Issues   []FileIssue
}

// FileIssue ties a skipped rule entry to the file it came from.
type FileIssue struct {
	File  string
	Issue rule.Issue
}

// Load reads the manifest at path and every rule file it references.
func Load(path string) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("manifest %s: name is required", path)
	}
	version, err := semver.NewVersion(m.Version)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: version %q is not semver: %w", path, m.Version, err)
	}

	pack := &Pack{Manifest: m, Version: version}
	baseDir := filepath.Dir(path)
	for _, rel := range m.Rules {
		file := filepath.Join(baseDir, rel)
		ruleData, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read rule file %s: %w", file, err)
		}
		rules, issues, err := rule.ParseRules(ruleData)
		if err != nil {
			return nil, fmt.Errorf("rule file %s: %w", file, err)
		}
		pack.Rules = append(pack.Rules, rules...)
		for _, issue := range issues {
			pack.Issues = append(pack.Issues, FileIssue{File: rel, Issue: issue})
		}
	}
	return pack, nil
}

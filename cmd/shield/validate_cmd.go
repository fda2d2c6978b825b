package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nook-browser/shield/pkg/rule"
	"github.com/nook-browser/shield/pkg/rulepack"
)

// ruleInput is the shared "rule file or rule pack" loader for the CLI
// subcommands. With -pack the path is a rulepack manifest; otherwise it is
// a JSON rule array.
func loadRuleInput(path string, isPack bool) ([]rule.Rule, []string, error) {
	if isPack {
		pack, err := rulepack.Load(path)
		if err != nil {
			return nil, nil, err
		}
		issues := make([]string, 0, len(pack.Issues))
		for _, fi := range pack.Issues {
			issues = append(issues, fmt.Sprintf("%s: %s", fi.File, fi.Issue))
		}
		return pack.Rules, issues, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	rules, ruleIssues, err := rule.ParseRules(data)
	if err != nil {
		return nil, nil, err
	}
	issues := make([]string, 0, len(ruleIssues))
	for _, is := range ruleIssues {
		issues = append(issues, is.String())
	}
	return rules, issues, nil
}

func runValidateCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	isPack := fs.Bool("pack", false, "treat the input as a rule-pack manifest")
	jsonOut := fs.Bool("json", false, "emit a JSON report")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: shield validate [-pack] [-json] <file>")
		return 2
	}

	rules, issues, err := loadRuleInput(fs.Arg(0), *isPack)
	if err != nil {
		fmt.Fprintf(stderr, "validate: %v\n", err)
		return 1
	}

	if *jsonOut {
		report := struct {
			Accepted int      `json:"accepted"`
			Skipped  int      `json:"skipped"`
			Issues   []string `json:"issues,omitempty"`
		}{Accepted: len(rules), Skipped: len(issues), Issues: issues}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	} else {
		fmt.Fprintf(stdout, "[shield] validate: %d rules accepted, %d skipped\n", len(rules), len(issues))
		if len(issues) > 0 {
			fmt.Fprintln(stdout, strings.Repeat("-", 40))
			for _, issue := range issues {
				fmt.Fprintf(stdout, "  %s\n", issue)
			}
		}
	}

	if len(issues) > 0 {
		return 1
	}
	return 0
}

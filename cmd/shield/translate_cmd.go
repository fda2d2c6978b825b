package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/nook-browser/shield/pkg/contentblocker"
	"github.com/nook-browser/shield/pkg/translate"
)

func runTranslateCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("translate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	isPack := fs.Bool("pack", false, "treat the input as a rule-pack manifest")
	out := fs.String("o", "", "write the document to a file instead of stdout")
	withSummary := fs.Bool("summary", false, "print the translation summary to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: shield translate [-pack] [-o file] [-summary] <file>")
		return 2
	}

	rules, issues, err := loadRuleInput(fs.Arg(0), *isPack)
	if err != nil {
		fmt.Fprintf(stderr, "translate: %v\n", err)
		return 1
	}
	for _, issue := range issues {
		fmt.Fprintf(stderr, "[shield] translate: skipped %s\n", issue)
	}

	fragments, summary := translate.New().TranslateAll(rules)
	document, err := contentblocker.MarshalDocument(fragments)
	if err != nil {
		fmt.Fprintf(stderr, "translate: %v\n", err)
		return 1
	}

	if *out != "" {
		if err := os.WriteFile(*out, document, 0o644); err != nil {
			fmt.Fprintf(stderr, "translate: %v\n", err)
			return 1
		}
	} else {
		fmt.Fprintln(stdout, string(document))
	}

	if *withSummary {
		enc := json.NewEncoder(stderr)
		enc.SetIndent("", "  ")
		_ = enc.Encode(summary)
	}
	return 0
}

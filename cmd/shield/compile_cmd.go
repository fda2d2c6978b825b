package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/nook-browser/shield/pkg/artifact"
	"github.com/nook-browser/shield/pkg/compiler"
	"github.com/nook-browser/shield/pkg/config"
	"github.com/nook-browser/shield/pkg/persist"
	"github.com/nook-browser/shield/pkg/rulestore"
)

// buildCompiler assembles the pipeline from the environment: rule store,
// artifact store, reference compilation service, and the optional
// persistence collaborator.
func buildCompiler(ctx context.Context, cfg *config.Config) (*compiler.Compiler, error) {
	store := rulestore.New(rulestore.Limits{
		Dynamic: cfg.DynamicQuota,
		Session: cfg.SessionQuota,
	})

	var blobs artifact.Store
	var err error
	if cfg.ArtifactStore == "" || cfg.ArtifactStore == string(artifact.StoreTypeFS) {
		blobs, err = artifact.NewFileStore(filepath.Join(cfg.DataDir, "artifacts"))
	} else {
		blobs, err = artifact.NewStoreFromEnv(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("artifact store: %w", err)
	}
	service := artifact.NewStoreService(blobs)

	var opts []compiler.Option
	if cfg.PersistDSN != "" {
		saver, err := openSaver(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, compiler.WithSaver(saver))
	}
	return compiler.New(store, service, opts...), nil
}

func openSaver(cfg *config.Config) (persist.Saver, error) {
	var saver persist.Saver
	if path, ok := strings.CutPrefix(cfg.PersistDSN, "sqlite:"); ok {
		s, err := persist.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		saver = s
	} else {
		s, err := persist.OpenPostgres(cfg.PersistDSN)
		if err != nil {
			return nil, err
		}
		saver = s
	}
	if cfg.PersistWritesPerSecond > 0 {
		saver = persist.NewThrottledSaver(saver, cfg.PersistWritesPerSecond, 1)
	}
	return saver, nil
}

func runCompileCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("compile", flag.ContinueOnError)
	fs.SetOutput(stderr)
	isPack := fs.Bool("pack", false, "treat the input as a rule-pack manifest")
	client := fs.String("client", "default", "client identifier to compile under")
	jsonOut := fs.Bool("json", false, "emit the compile result as JSON")
	configFile := fs.String("config", "", "YAML config overlay")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: shield compile [-pack] [-client id] [-json] <file>")
		return 2
	}

	cfg := config.LoadFromEnv()
	if *configFile != "" {
		if err := cfg.ApplyFile(*configFile); err != nil {
			fmt.Fprintf(stderr, "compile: %v\n", err)
			return 1
		}
	}

	rules, issues, err := loadRuleInput(fs.Arg(0), *isPack)
	if err != nil {
		fmt.Fprintf(stderr, "compile: %v\n", err)
		return 1
	}
	for _, issue := range issues {
		fmt.Fprintf(stderr, "[shield] compile: skipped %s\n", issue)
	}

	ctx := context.Background()
	comp, err := buildCompiler(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "compile: %v\n", err)
		return 1
	}

	log.Printf("[shield] compile: client=%s rules=%d", *client, len(rules))
	result, err := comp.LoadStatic(ctx, *client, rules)
	if err != nil {
		fmt.Fprintf(stderr, "compile: %v\n", err)
		return 1
	}

	if *jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
		return 0
	}

	if result.NoOp {
		fmt.Fprintf(stdout, "[shield] compile: nothing to compile for %s\n", *client)
		return 0
	}
	fmt.Fprintf(stdout, "[shield] compile: job=%s fragments=%d degraded=%d dropped=%d\n",
		result.JobID, result.Summary.Emitted, result.Summary.Degraded, result.Summary.Dropped)
	fmt.Fprintf(stdout, "[shield] compile: artifact %s (%d bytes)\n",
		result.Artifact.ContentHash, result.Artifact.Size)
	return 0
}

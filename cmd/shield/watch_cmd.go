package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nook-browser/shield/pkg/config"
)

func runWatchCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	isPack := fs.Bool("pack", false, "treat the input as a rule-pack manifest")
	client := fs.String("client", "default", "client identifier to compile under")
	interval := fs.Duration("interval", 2*time.Second, "poll interval")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: shield watch [-pack] [-client id] [-interval d] <file>")
		return 2
	}
	path := fs.Arg(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comp, err := buildCompiler(ctx, config.LoadFromEnv())
	if err != nil {
		fmt.Fprintf(stderr, "watch: %v\n", err)
		return 1
	}

	recompile := func() {
		rules, issues, err := loadRuleInput(path, *isPack)
		if err != nil {
			log.Printf("[shield] watch: load failed: %v", err)
			return
		}
		for _, issue := range issues {
			log.Printf("[shield] watch: skipped %s", issue)
		}
		result, err := comp.LoadStatic(ctx, *client, rules)
		if err != nil {
			log.Printf("[shield] watch: compile failed: %v", err)
			return
		}
		if result.NoOp {
			log.Printf("[shield] watch: empty rule set, nothing compiled")
			return
		}
		log.Printf("[shield] watch: compiled %d fragments (%s)",
			result.Summary.Emitted, result.Artifact.ContentHash)
	}

	var lastMod time.Time
	if info, err := os.Stat(path); err == nil {
		lastMod = info.ModTime()
	}
	recompile()

	log.Printf("[shield] watch: polling %s every %s", path, *interval)
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(stdout, "[shield] watch: stopped")
			return 0
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				log.Printf("[shield] watch: stat failed: %v", err)
				continue
			}
			if info.ModTime().After(lastMod) {
				lastMod = info.ModTime()
				recompile()
			}
		}
	}
}

// Command shield compiles declarative network-filter rules into
// content-blocker documents and manages the compiled artifacts.
package main

import (
	"fmt"
	"io"
	"os"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the testable entrypoint.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "validate":
		return runValidateCmd(args[2:], stdout, stderr)
	case "translate":
		return runTranslateCmd(args[2:], stdout, stderr)
	case "compile":
		return runCompileCmd(args[2:], stdout, stderr)
	case "watch":
		return runWatchCmd(args[2:], stdout, stderr)
	case "version", "--version":
		fmt.Fprintf(stdout, "shield %s\n", Version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "shield - declarative content-filter rule compiler")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: shield <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  validate   Parse a rule file or rule pack and report accepted/skipped entries")
	fmt.Fprintln(w, "  translate  Convert rules to a content-blocker document without compiling")
	fmt.Fprintln(w, "  compile    Compile rules into the configured artifact store")
	fmt.Fprintln(w, "  watch      Recompile whenever a rule file changes (development)")
	fmt.Fprintln(w, "  version    Print the version")
	fmt.Fprintln(w, "  help       Print this help")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'shield <command> -h' for command flags.")
}

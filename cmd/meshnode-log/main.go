// Command meshnode-log views and analyzes protocol capture files.
//
// Capture files are written by meshnode-client and meshnode-init with the
// -protocol-log flag.
//
// Usage:
//
//	meshnode-log <command> [flags] <file.mlog>
//
// Commands:
//
//	view     View capture in human-readable format
//	export   Export capture to JSONL, CSV or YAML
//	filter   Filter capture and write to new file
//	stats    Show statistics about the capture
//
// Examples:
//
//	# View only inbound wire-layer events
//	meshnode-log view -layer wire -direction in node.mlog
//
//	# Export text and admin traffic of one node as YAML
//	meshnode-log export -format yaml -node !1234abcd node.mlog
//
//	# Keep one connection
//	meshnode-log filter -conn-id abc12345-... -o one.mlog node.mlog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/meshnode/meshnode-go/cmd/meshnode-log/commands"
)

const usage = `meshnode-log - Mesh Protocol Capture Analyzer

Usage:
  meshnode-log <command> [flags] <file.mlog>

Commands:
  view     View capture in human-readable format
  export   Export capture to JSONL, CSV or YAML
  filter   Filter capture and write to new file
  stats    Show statistics about the capture

Use "meshnode-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// newFlagSet returns a flag set for cmd with the shared filter flags.
func newFlagSet(cmd, summary string, opts *commands.FilterOptions) *flag.FlagSet {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "meshnode-log %s - %s\n\nUsage:\n  meshnode-log %s [flags] <file.mlog>\n\nFlags:\n", cmd, summary, cmd)
		fs.PrintDefaults()
	}
	if opts != nil {
		fs.StringVar(&opts.ConnID, "conn-id", "", "Filter by connection ID")
		fs.StringVar(&opts.Node, "node", "", "Filter by node number (hex, e.g. !1234abcd)")
		fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
		fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
		fs.StringVar(&opts.Layer, "layer", "", "Filter by layer (transport, wire, session)")
		fs.StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out)")
		fs.StringVar(&opts.Category, "category", "", "Filter by category (message, debug, state, error)")
	}
	return fs
}

// parse parses args and returns the capture path.
func parse(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runView(args []string) {
	var opts commands.FilterOptions
	fs := newFlagSet("view", "View capture in human-readable format", &opts)
	path := parse(fs, args)

	filter, err := opts.Build()
	if err != nil {
		fail(err)
	}
	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	var opts commands.FilterOptions
	fs := newFlagSet("export", "Export capture to JSONL, CSV or YAML", &opts)
	format := fs.String("format", "jsonl", "Output format (jsonl, csv, yaml)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path := parse(fs, args)

	filter, err := opts.Build()
	if err != nil {
		fail(err)
	}
	if err := commands.RunExport(path, *format, *output, filter); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	var opts commands.FilterOptions
	fs := newFlagSet("filter", "Filter capture and write to new file", &opts)
	output := fs.String("o", "", "Output file (required)")
	path := parse(fs, args)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}
	filter, err := opts.Build()
	if err != nil {
		fail(err)
	}
	if err := commands.RunFilter(path, *output, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runStats(args []string) {
	fs := newFlagSet("stats", "Show statistics about the capture", nil)
	path := parse(fs, args)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}

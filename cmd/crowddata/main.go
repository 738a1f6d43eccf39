package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint, split out for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return runServer(nil, stderr)
	}

	switch args[1] {
	case "server", "serve":
		return runServer(args[2:], stderr)
	case "health":
		return runHealthCmd(args[2:], stdout, stderr)
	case "seed-key":
		return runSeedKey(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		if args[1][0] == '-' {
			return runServer(args[1:], stderr)
		}
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "crowddata — game telemetry ingest service")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  crowddata <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "COMMANDS:")
	fmt.Fprintln(w, "  server      Run the ingest server (default)")
	fmt.Fprintln(w, "              --config <path> load a YAML profile over the environment")
	fmt.Fprintln(w, "  health      Check a running server's /health endpoint")
	fmt.Fprintln(w, "  seed-key    Validate an API key and write it to a .env file")
	fmt.Fprintln(w, "  help        Show this help")
	fmt.Fprintln(w, "")
}

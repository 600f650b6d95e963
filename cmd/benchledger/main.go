package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

var version = "dev" // Set by -ldflags during build

// Available subcommands
var subcommands = []struct {
	name        string
	description string
}{
	{"append", "Record one benchmark run in the ledger"},
	{"query", "Query benchmark series and statistics"},
	{"import", "Mirror the ledger into SQLite"},
	{"serve", "Serve the ledger and series over HTTP"},
	{"config", "Manage configuration"},
}

func main() {
	// Handle version flag
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-V") {
		fmt.Printf("benchledger version %s\n", version)
		os.Exit(0)
	}

	// Handle help flag
	if len(os.Args) == 1 || os.Args[1] == "--help" || os.Args[1] == "-h" {
		printHelp()
		os.Exit(0)
	}

	// Get subcommand
	subcommand := os.Args[1]

	// Check if it's a valid subcommand
	validSubcommand := false
	for _, sc := range subcommands {
		if sc.name == subcommand {
			validSubcommand = true
			break
		}
	}

	if !validSubcommand {
		fmt.Fprintf(os.Stderr, "Error: unknown subcommand '%s'\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}

	// Build the command name
	cmdName := "benchledger-" + subcommand

	// Find the full path to the command
	cmdPath, err := exec.LookPath(cmdName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: command '%s' not found in PATH\n", cmdName)
		fmt.Fprintf(os.Stderr, "Make sure it is installed (try: go install ./cmd/...)\n")
		os.Exit(1)
	}

	// Prepare arguments (skip 'benchledger' and the subcommand name)
	args := []string{filepath.Base(cmdPath)}
	if len(os.Args) > 2 {
		args = append(args, os.Args[2:]...)
	}

	// Execute the subcommand using execve (replaces current process)
	// This ensures the subcommand receives signals directly
	if err := syscall.Exec(cmdPath, args, os.Environ()); err != nil {
		// If exec fails, fall back to running as subprocess
		cmd := exec.Command(cmdPath, args[1:]...)
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				os.Exit(exitErr.ExitCode())
			}
			fmt.Fprintf(os.Stderr, "Error executing %s: %v\n", cmdName, err)
			os.Exit(1)
		}
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: benchledger <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Available commands:\n")
	for _, sc := range subcommands {
		fmt.Fprintf(os.Stderr, "  %-12s %s\n", sc.name, sc.description)
	}
	fmt.Fprintf(os.Stderr, "\nRun 'benchledger <command> --help' for more information on a command.\n")
}

func printHelp() {
	fmt.Printf("benchledger - Continuous benchmark history\n\n")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Printf("DESCRIPTION:\n")
	fmt.Printf("  Records benchmark results per commit in an append-only ledger and\n")
	fmt.Printf("  answers per-benchmark trend queries for the project website.\n")
	fmt.Printf("  This is a unified command that dispatches to the individual benchledger-* tools.\n\n")

	fmt.Printf("USAGE:\n")
	fmt.Printf("  benchledger <command> [options]\n\n")

	fmt.Printf("AVAILABLE COMMANDS:\n")
	for _, sc := range subcommands {
		fmt.Printf("  %-12s %s\n", sc.name, sc.description)
	}

	fmt.Printf("\nGLOBAL OPTIONS:\n")
	fmt.Printf("  -h, --help       Show this help message\n")
	fmt.Printf("  -V, --version    Show version\n\n")

	fmt.Printf("EXAMPLES:\n")
	fmt.Printf("  # Record Google Benchmark output for HEAD\n")
	fmt.Printf("  benchledger append --tool googlecpp --output bench.json\n\n")

	fmt.Printf("  # List benchmarks recorded by a tool\n")
	fmt.Printf("  benchledger query names --tool googlecpp\n\n")

	fmt.Printf("  # Show a benchmark's history\n")
	fmt.Printf("  benchledger query series --tool googlecpp determinant_5x5\n\n")

	fmt.Printf("GETTING STARTED:\n")
	fmt.Printf("  1. Set up configuration:\n")
	fmt.Printf("       benchledger config init\n")
	fmt.Printf("       benchledger config set ledger dev/bench/data.js\n\n")

	fmt.Printf("  2. Record a run in CI:\n")
	fmt.Printf("       benchledger append --tool go --run 'go test -run ^$ -bench . ./...'\n\n")

	fmt.Printf("  3. Serve the data to the benchmark page:\n")
	fmt.Printf("       benchledger serve\n\n")

	fmt.Printf("For detailed help on any command:\n")
	fmt.Printf("  benchledger <command> --help\n")
}

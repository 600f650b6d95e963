package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/mslinn/benchledger/pkg/blob"
	"github.com/mslinn/benchledger/pkg/config"
	"github.com/mslinn/benchledger/pkg/git"
	"github.com/mslinn/benchledger/pkg/harness"
	"github.com/mslinn/benchledger/pkg/ledger"
	"github.com/mslinn/benchledger/pkg/logging"
	"github.com/mslinn/benchledger/pkg/timing"
)

var version = "dev" // Set by -ldflags during build

// Exit codes
const (
	exitError     = 1
	exitDuplicate = 2
)

func main() {
	var (
		showVersion bool
		showHelp    bool
		debug       bool
		dryRun      bool
		tool        string
		outputFile  string
		runCmd      string
		timeout     time.Duration
		group       string
		repoDir     string
		repoURL     string
		date        int64
		username    string
		ledgerPath  string
	)

	pflag.BoolVarP(&showVersion, "version", "V", false, "Show version and exit")
	pflag.BoolVarP(&showHelp, "help", "h", false, "Show this help message")
	pflag.BoolVarP(&debug, "debug", "d", false, "Enable debug output")
	pflag.BoolVar(&dryRun, "dry-run", false, "Print the entry instead of appending it")
	pflag.StringVarP(&tool, "tool", "t", "", "Benchmark tool that produced the output (required)")
	pflag.StringVarP(&outputFile, "output", "o", "", "File holding the tool output ('-' for stdin)")
	pflag.StringVar(&runCmd, "run", "", "Shell command to run; its stdout is the tool output")
	pflag.DurationVar(&timeout, "timeout", 0, "Timeout for --run (0 for none)")
	pflag.StringVarP(&group, "group", "g", "", "Ledger group (default from config)")
	pflag.StringVar(&repoDir, "repo", ".", "Git checkout the benchmarks were built from")
	pflag.StringVar(&repoURL, "repo-url", "", "Repository web URL (default from config or origin remote)")
	pflag.Int64Var(&date, "date", 0, "Run time in epoch milliseconds (default now)")
	pflag.StringVar(&username, "username", "", "Hosting username of the commit author and committer")
	pflag.StringVar(&ledgerPath, "ledger", "", "Ledger file (file backend; default from config)")

	pflag.Parse()

	if showVersion {
		fmt.Printf("benchledger-append version %s\n", version)
		os.Exit(0)
	}

	if showHelp {
		printHelp()
		os.Exit(0)
	}

	if tool == "" {
		fmt.Fprintf(os.Stderr, "Error: --tool is required (one of %v)\n", harness.Tools())
		os.Exit(exitError)
	}
	if (outputFile == "") == (runCmd == "") {
		fmt.Fprintf(os.Stderr, "Error: exactly one of --output or --run is required\n")
		os.Exit(exitError)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(exitError)
	}
	if group != "" {
		cfg.Group = group
	}
	if ledgerPath != "" {
		cfg.LedgerPath = ledgerPath
	}
	if repoURL != "" {
		cfg.RepoURL = repoURL
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}

	log := logging.Must(debug)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	output, err := readOutput(ctx, log, outputFile, runCmd, repoDir, timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}

	benches, err := harness.Parse(tool, output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}
	log.Debug("parsed tool output", zap.String("tool", tool), zap.Int("benches", len(benches)))

	if cfg.RepoURL == "" {
		if u, err := git.RemoteURL(repoDir, "origin"); err == nil {
			cfg.RepoURL = u
		} else {
			log.Debug("no origin remote", zap.Error(err))
		}
	}

	commit, err := git.HeadCommit(repoDir, cfg.RepoURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading commit: %v\n", err)
		os.Exit(exitError)
	}
	if username != "" {
		commit.Author.Username = username
		commit.Committer.Username = username
	}

	if date == 0 {
		date = time.Now().UnixMilli()
	}

	entry := ledger.Entry{
		Commit:  commit,
		Date:    date,
		Tool:    tool,
		Benches: benches,
	}

	if dryRun {
		if err := ledger.Validate(&entry); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitError)
		}
		if err := printEntry(os.Stdout, entry); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitError)
		}
		return
	}

	b, closeBlob, err := blob.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening ledger: %v\n", err)
		os.Exit(exitError)
	}
	defer closeBlob()

	format := ledger.FormatFor(cfg.ObjectName())
	if _, err := ledger.AppendTo(ctx, b, cfg.RepoURL, cfg.Group, entry, format, ledger.WithLogger(log)); err != nil {
		var dup *ledger.DuplicateCommitError
		if errors.As(err, &dup) {
			fmt.Fprintf(os.Stderr, "Commit %s already recorded for tool %s in group %s\n", dup.CommitID, dup.Tool, dup.Group)
			os.Exit(exitDuplicate)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}

	fmt.Printf("✓ Recorded %d benchmarks for %s (%s) in group %s\n", len(benches), shortID(commit.ID), tool, cfg.Group)
}

// printEntry writes the entry as it would be stored
func printEntry(w io.Writer, entry ledger.Entry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entry); err != nil {
		return fmt.Errorf("failed to print entry: %w", err)
	}
	return nil
}

// readOutput returns the tool output from a file, stdin or a command's stdout
func readOutput(ctx context.Context, log *zap.Logger, outputFile, runCmd, dir string, timeout time.Duration) ([]byte, error) {
	if runCmd != "" {
		log.Debug("running benchmark", zap.String("command", runCmd), zap.String("dir", dir))
		result := timing.Run(ctx, "sh", []string{"-c", runCmd}, &timing.Options{Dir: dir, Timeout: timeout})
		if err := result.Err(); err != nil {
			return nil, err
		}
		log.Info("benchmark finished", zap.Int64("duration_ms", result.DurationMs))
		return result.Stdout, nil
	}

	if outputFile == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(outputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", outputFile, err)
	}
	return data, nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func printHelp() {
	fmt.Printf("benchledger-append - Record one benchmark run in the ledger\n\n")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Printf("DESCRIPTION:\n")
	fmt.Printf("  Parses benchmark tool output, attributes it to the HEAD commit of a git\n")
	fmt.Printf("  checkout and appends it to the ledger. A commit that is already recorded\n")
	fmt.Printf("  for the same tool is rejected with exit status 2.\n\n")

	fmt.Printf("USAGE:\n")
	fmt.Printf("  benchledger-append --tool TOOL --output FILE [OPTIONS]\n")
	fmt.Printf("  benchledger-append --tool TOOL --run COMMAND [OPTIONS]\n\n")

	fmt.Printf("TOOLS:\n")
	fmt.Printf("  googlecpp    Google Benchmark JSON (--benchmark_format=json)\n")
	fmt.Printf("  go           go test -bench text output\n\n")

	fmt.Printf("OPTIONS:\n")
	pflag.PrintDefaults()

	fmt.Printf("\nEXAMPLES:\n")
	fmt.Printf("  # Append Google Benchmark results\n")
	fmt.Printf("  ./bench --benchmark_format=json > bench.json\n")
	fmt.Printf("  benchledger-append --tool googlecpp --output bench.json\n\n")

	fmt.Printf("  # Run Go benchmarks and append them\n")
	fmt.Printf("  benchledger-append --tool go --run 'go test -run ^$ -bench . ./...'\n\n")

	fmt.Printf("  # Preview the entry without touching the ledger\n")
	fmt.Printf("  benchledger-append --tool go --output bench.txt --dry-run\n\n")
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/mslinn/benchledger/pkg/blob"
	"github.com/mslinn/benchledger/pkg/config"
	"github.com/mslinn/benchledger/pkg/database"
	"github.com/mslinn/benchledger/pkg/ledger"
)

var version = "dev" // Set by -ldflags during build

func main() {
	// Define flags
	var (
		showVersion bool
		showHelp    bool
		debug       bool
		dbPath      string
		ledgerPath  string
		stdinMode   bool
	)

	pflag.BoolVarP(&showVersion, "version", "V", false, "Show version and exit")
	pflag.BoolVarP(&showHelp, "help", "h", false, "Show this help message")
	pflag.BoolVarP(&debug, "debug", "d", false, "Enable debug output")
	pflag.BoolVarP(&debug, "verbose", "v", false, "Enable verbose output (alias for --debug)")
	pflag.StringVar(&dbPath, "db", "", "Path to SQLite mirror (default from config)")
	pflag.StringVar(&ledgerPath, "ledger", "", "Ledger file (file backend; default from config)")
	pflag.BoolVar(&stdinMode, "stdin", false, "Read the ledger (JSON or data.js) from stdin")

	pflag.Parse()

	if showVersion {
		fmt.Printf("benchledger-import version %s\n", version)
		os.Exit(0)
	}

	if showHelp {
		printHelp()
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if ledgerPath != "" {
		cfg.LedgerPath = ledgerPath
	}
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	dbPath = cfg.GetDatabasePath()

	if debug {
		fmt.Printf("Database: %s\n", dbPath)
	}

	var l *ledger.Ledger
	switch {
	case stdinMode:
		l = loadReader(os.Stdin, "stdin")
	case pflag.NArg() > 0:
		f, err := os.Open(pflag.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
			os.Exit(1)
		}
		l = loadReader(f, pflag.Arg(0))
		f.Close()
	default:
		if debug {
			fmt.Printf("Reading ledger from %s backend: %s\n", cfg.Backend, cfg.ObjectName())
		}
		l = loadConfigured(cfg)
	}

	if err := cfg.ValidateDatabase(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	db, err := database.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Mirror(l); err != nil {
		fmt.Fprintf(os.Stderr, "Error mirroring ledger: %v\n", err)
		os.Exit(1)
	}

	groups, entries := l.Size()
	fmt.Printf("✓ Mirrored %d entries in %d groups into %s\n", entries, groups, dbPath)
}

func loadReader(r io.Reader, name string) *ledger.Ledger {
	data, err := io.ReadAll(r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", name, err)
		os.Exit(1)
	}
	if len(data) == 0 {
		fmt.Fprintf(os.Stderr, "Error: no ledger data provided\n")
		os.Exit(1)
	}

	l, err := ledger.Load(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading ledger: %v\n", err)
		os.Exit(1)
	}
	return l
}

func loadConfigured(cfg *config.Config) *ledger.Ledger {
	b, closeBlob, err := blob.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening ledger: %v\n", err)
		os.Exit(1)
	}
	defer closeBlob()

	store, err := ledger.Open(context.Background(), b, cfg.RepoURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading ledger: %v\n", err)
		os.Exit(1)
	}
	return store.Snapshot()
}

func printHelp() {
	fmt.Printf("benchledger-import - Mirror a ledger into SQLite for reporting\n\n")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Printf("DESCRIPTION:\n")
	fmt.Printf("  Loads a benchmark ledger and replaces the contents of the SQLite mirror\n")
	fmt.Printf("  with it. The ledger is read from the configured backend, a file, or stdin.\n")
	fmt.Printf("  Both plain JSON and the data.js script form are accepted.\n\n")

	fmt.Printf("USAGE:\n")
	fmt.Printf("  benchledger-import [OPTIONS] [LEDGER_FILE]\n")
	fmt.Printf("  benchledger-import --stdin < data.js\n\n")

	fmt.Printf("OPTIONS:\n")
	pflag.PrintDefaults()

	fmt.Printf("\nEXAMPLES:\n")
	fmt.Printf("  # Mirror the configured ledger\n")
	fmt.Printf("  benchledger-import\n\n")

	fmt.Printf("  # Mirror a published page's data\n")
	fmt.Printf("  curl -s https://example.github.io/repo/dev/bench/data.js | benchledger-import --stdin\n\n")

	fmt.Printf("  # Custom database location\n")
	fmt.Printf("  benchledger-import --db /tmp/bench.db dev/bench/data.js\n\n")

	fmt.Printf("CONFIGURATION:\n")
	fmt.Printf("  Database path can be set via:\n")
	fmt.Printf("  1. --db flag (highest priority)\n")
	fmt.Printf("  2. BENCHLEDGER_DB environment variable\n")
	fmt.Printf("  3. ~/.benchledger.yaml file\n")
	fmt.Printf("  4. Default: ~/.benchledger/benchledger.db\n\n")
}

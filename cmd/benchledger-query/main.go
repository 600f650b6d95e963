package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/mslinn/benchledger/pkg/blob"
	"github.com/mslinn/benchledger/pkg/config"
	"github.com/mslinn/benchledger/pkg/database"
	"github.com/mslinn/benchledger/pkg/ledger"
	"github.com/mslinn/benchledger/pkg/series"
)

var version = "dev" // Set by -ldflags during build

func main() {
	// Define global flags
	var (
		showVersion bool
		showHelp    bool
		debug       bool
		group       string
		ledgerPath  string
		dbPath      string
	)

	pflag.BoolVarP(&showVersion, "version", "V", false, "Show version and exit")
	pflag.BoolVarP(&showHelp, "help", "h", false, "Show this help message")
	pflag.BoolVarP(&debug, "debug", "d", false, "Enable debug output")
	pflag.BoolVarP(&debug, "verbose", "v", false, "Enable verbose output (alias for --debug)")
	pflag.StringVarP(&group, "group", "g", "", "Ledger group (default from config)")
	pflag.StringVar(&ledgerPath, "ledger", "", "Ledger file (file backend; default from config)")
	pflag.StringVar(&dbPath, "db", "", "Path to SQLite mirror for stats and series --mirror (default from config)")

	// Stop parsing at first non-flag argument (the subcommand)
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	if showVersion {
		fmt.Printf("benchledger-query version %s\n", version)
		os.Exit(0)
	}

	args := pflag.Args()
	if len(args) == 0 || showHelp {
		printHelp()
		os.Exit(0)
	}

	subcommand := args[0]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if group != "" {
		cfg.Group = group
	}
	if ledgerPath != "" {
		cfg.LedgerPath = ledgerPath
	}
	if dbPath == "" {
		dbPath = cfg.GetDatabasePath()
	}

	// stats reads the SQL mirror and series may; the rest read the ledger itself
	switch subcommand {
	case "stats":
		handleStats(dbPath, cfg.Group, args[1:], debug)
		return
	case "series":
		handleSeries(cfg, dbPath, args[1:], debug)
		return
	}

	l := loadLedger(cfg)

	switch subcommand {
	case "groups":
		handleGroups(l)
	case "tools":
		handleTools(l, cfg.Group)
	case "names":
		handleNames(l, cfg.Group, args[1:])
	case "latest":
		handleLatest(l, cfg.Group, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown subcommand '%s'\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func loadLedger(cfg *config.Config) *ledger.Ledger {
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

func handleGroups(l *ledger.Ledger) {
	for _, g := range series.Groups(l) {
		fmt.Printf("%s\t%d entries\n", g, len(l.Entries[g]))
	}
	if l.LastUpdate > 0 {
		fmt.Printf("\nLast update: %s\n", humanize.Time(time.UnixMilli(l.LastUpdate)))
	}
}

func handleTools(l *ledger.Ledger, group string) {
	tools := series.Tools(l, group)
	if len(tools) == 0 {
		fmt.Printf("No entries in group %s\n", group)
		return
	}
	for _, t := range tools {
		fmt.Println(t)
	}
}

func handleNames(l *ledger.Ledger, group string, args []string) {
	fs := pflag.NewFlagSet("names", pflag.ExitOnError)
	tool := fs.StringP("tool", "t", "", "Benchmark tool (required)")
	fs.Parse(args)

	if *tool == "" {
		fmt.Fprintf(os.Stderr, "Error: --tool is required\n")
		os.Exit(1)
	}

	names := series.BenchmarkNames(l, group, *tool)
	if len(names) == 0 {
		fmt.Printf("No benchmarks recorded for tool %s in group %s\n", *tool, group)
		return
	}
	for _, n := range names {
		fmt.Println(n)
	}
}

func handleSeries(cfg *config.Config, dbPath string, args []string, debug bool) {
	fs := pflag.NewFlagSet("series", pflag.ExitOnError)
	tool := fs.StringP("tool", "t", "", "Benchmark tool (required)")
	distinct := fs.Bool("distinct", false, "Only show commits that produced a distinct build")
	asJSON := fs.Bool("json", false, "Print the series as JSON")
	limit := fs.Int("limit", 0, "Show only the most recent N points (0 = all)")
	mirror := fs.Bool("mirror", false, "Read the series from the SQLite mirror instead of the ledger")
	fs.Parse(args)

	if *tool == "" || fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: benchledger-query series --tool TOOL [--mirror] NAME\n")
		os.Exit(1)
	}
	name := fs.Arg(0)
	group := cfg.Group

	var points []series.Point
	if *mirror {
		points = mirroredSeries(dbPath, group, *tool, name)
	} else {
		points = series.Query(loadLedger(cfg), group, *tool, name)
	}
	if *distinct {
		points = series.OnlyDistinct(points)
	}
	if *limit > 0 && len(points) > *limit {
		points = points[len(points)-*limit:]
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(points)
		return
	}

	if len(points) == 0 {
		fmt.Printf("No data for %s (tool %s) in group %s\n", name, *tool, group)
		return
	}

	fmt.Printf("History of %s (%s):\n\n", name, *tool)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Date\tCommit\tValue\tUnit")
	fmt.Fprintln(w, "----\t------\t-----\t----")
	for _, p := range points {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			time.UnixMilli(p.Date).UTC().Format("2006-01-02 15:04:05"),
			shortID(p.CommitID),
			humanize.CommafWithDigits(p.Value, 2),
			p.Unit,
		)
		if debug && p.Extra != "" {
			fmt.Fprintf(w, "\t\t%s\t\n", strconv.Quote(p.Extra))
		}
	}
	w.Flush()

	if ratio, ok := series.Change(points); ok {
		fmt.Printf("\nLast change: %+.2f%%\n", (ratio-1)*100)
	}
}

func mirroredSeries(dbPath, group, tool, name string) []series.Point {
	db, err := database.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	points, err := db.Points(group, tool, name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return points
}

func handleLatest(l *ledger.Ledger, group string, args []string) {
	fs := pflag.NewFlagSet("latest", pflag.ExitOnError)
	tool := fs.StringP("tool", "t", "", "Benchmark tool (required)")
	fs.Parse(args)

	if *tool == "" || fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: benchledger-query latest --tool TOOL NAME\n")
		os.Exit(1)
	}
	name := fs.Arg(0)

	p, err := series.Latest(l, group, *tool, name)
	if errors.Is(err, ledger.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "No data for %s (tool %s) in group %s\n", name, *tool, group)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s (%s)\n", name, *tool)
	fmt.Printf("  Value:   %s %s\n", humanize.CommafWithDigits(p.Value, 2), p.Unit)
	fmt.Printf("  Commit:  %s\n", p.CommitID)
	fmt.Printf("  Date:    %s (%s)\n", time.UnixMilli(p.Date).UTC().Format(time.RFC3339), humanize.Time(time.UnixMilli(p.Date)))
	if p.Extra != "" {
		fmt.Printf("  Details:\n")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, line := range splitLines(p.Extra) {
			fmt.Fprintf(w, "    %s\n", line)
		}
		w.Flush()
	}
}

func handleStats(dbPath, group string, args []string, debug bool) {
	fs := pflag.NewFlagSet("stats", pflag.ExitOnError)
	tool := fs.StringP("tool", "t", "", "Show per-benchmark statistics for this tool")
	fs.Parse(args)

	db, err := database.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	info, ok, err := db.Info()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Printf("Mirror at %s is empty; run 'benchledger import' first\n", dbPath)
		return
	}

	if *tool != "" {
		stats, err := db.BenchmarkStats(group, *tool)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Benchmarks for %s in group %s:\n\n", *tool, group)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "Name\tRuns\tMin\tAvg\tMax\tUnit")
		fmt.Fprintln(w, "----\t----\t---\t---\t---\t----")
		for _, s := range stats {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n", s.Name, s.Count,
				humanize.CommafWithDigits(s.Min, 2),
				humanize.CommafWithDigits(s.Avg, 2),
				humanize.CommafWithDigits(s.Max, 2),
				s.Unit)
		}
		w.Flush()
		return
	}

	fmt.Printf("Overall Statistics:\n\n")
	fmt.Printf("  Repository:   %s\n", info.RepoURL)
	fmt.Printf("  Last update:  %s\n", humanize.Time(time.UnixMilli(info.LastUpdate)))
	fmt.Printf("  Mirrored:     %s\n\n", humanize.Time(info.MirroredAt))

	stats, err := db.Stats()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Group\tTool\tEntries\tBenchmarks\tFirst\tLast")
	fmt.Fprintln(w, "-----\t----\t-------\t----------\t-----\t----")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n", s.Group, s.Tool, s.Entries, s.Benchmarks,
			time.UnixMilli(s.FirstDate).UTC().Format("2006-01-02"),
			time.UnixMilli(s.LastDate).UTC().Format("2006-01-02"))
	}
	w.Flush()

	if debug {
		fmt.Printf("\nDatabase: %s\n", dbPath)
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return append(lines, s[start:])
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: benchledger-query [OPTIONS] COMMAND [ARGS...]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  groups       List ledger groups\n")
	fmt.Fprintf(os.Stderr, "  tools        List tools used in a group\n")
	fmt.Fprintf(os.Stderr, "  names        List benchmark names for a tool\n")
	fmt.Fprintf(os.Stderr, "  series       Show the history of one benchmark\n")
	fmt.Fprintf(os.Stderr, "  latest       Show the most recent point of one benchmark\n")
	fmt.Fprintf(os.Stderr, "  stats        Show statistics from the SQLite mirror\n")
}

func printHelp() {
	fmt.Printf("benchledger-query - Query benchmark series and statistics\n\n")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Printf("USAGE:\n")
	fmt.Printf("  benchledger-query [OPTIONS] COMMAND [ARGS...]\n\n")

	fmt.Printf("COMMANDS:\n")
	fmt.Printf("  groups                      List ledger groups\n")
	fmt.Printf("  tools                       List tools used in a group\n")
	fmt.Printf("  names --tool TOOL           List benchmark names for a tool\n")
	fmt.Printf("  series --tool TOOL NAME     Show the history of one benchmark\n")
	fmt.Printf("         [--mirror]           ... as recorded in the SQLite mirror\n")
	fmt.Printf("  latest --tool TOOL NAME     Show the most recent point of one benchmark\n")
	fmt.Printf("  stats [--tool TOOL]         Show statistics from the SQLite mirror\n\n")

	fmt.Printf("GLOBAL OPTIONS:\n")
	pflag.PrintDefaults()

	fmt.Printf("\nEXAMPLES:\n")
	fmt.Printf("  # History of one benchmark, distinct builds only\n")
	fmt.Printf("  benchledger-query series --tool googlecpp --distinct determinant_5x5\n\n")

	fmt.Printf("  # Latest value as seen by the benchmark page\n")
	fmt.Printf("  benchledger-query latest --tool googlecpp determinant_10x10\n\n")

	fmt.Printf("  # Same history from the SQLite mirror\n")
	fmt.Printf("  benchledger-query series --tool googlecpp --mirror determinant_5x5\n\n")

	fmt.Printf("  # Per-benchmark min/avg/max\n")
	fmt.Printf("  benchledger-query stats --tool googlecpp\n\n")
}

package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/mslinn/benchledger/pkg/config"
)

var version = "dev" // Set by -ldflags during build

// configKeys lists the keys accepted by get and set, in display order
var configKeys = []string{
	"backend", "ledger", "group", "repo_url", "database", "listen",
	"s3.bucket", "s3.key", "s3.region", "s3.endpoint", "s3.path_style",
	"redis.addr", "redis.password", "redis.db", "redis.key",
	"bolt.path", "bolt.bucket", "bolt.key",
	"http.url", "http.retries",
}

// envOverrides maps environment variables to the key they override
var envOverrides = [][2]string{
	{"BENCHLEDGER_BACKEND", "backend"},
	{"BENCHLEDGER_LEDGER", "ledger"},
	{"BENCHLEDGER_GROUP", "group"},
	{"BENCHLEDGER_REPO_URL", "repo_url"},
	{"BENCHLEDGER_DB", "database"},
	{"BENCHLEDGER_LISTEN", "listen"},
	{"BENCHLEDGER_REDIS_ADDR", "redis.addr"},
	{"BENCHLEDGER_REDIS_DB", "redis.db"},
	{"BENCHLEDGER_S3_BUCKET", "s3.bucket"},
	{"BENCHLEDGER_HTTP_URL", "http.url"},
}

func main() {
	var (
		showVersion bool
		showHelp    bool
		configPath  string
	)

	pflag.BoolVarP(&showVersion, "version", "V", false, "Show version and exit")
	pflag.BoolVarP(&showHelp, "help", "h", false, "Show this help message")
	pflag.StringVar(&configPath, "config", "", "Path to config file (default: ~/.benchledger.yaml)")

	pflag.Parse()

	if showVersion {
		fmt.Printf("benchledger-config version %s\n", version)
		os.Exit(0)
	}

	if showHelp {
		printHelp()
		os.Exit(0)
	}

	args := pflag.Args()
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "Error: subcommand required\n\n")
		printUsage()
		os.Exit(1)
	}

	subcommand := args[0]

	if configPath != "" {
		os.Setenv("BENCHLEDGER_CONFIG", configPath)
	}

	switch subcommand {
	case "init":
		handleInit(args[1:])
	case "set":
		handleSet(args[1:])
	case "get":
		handleGet(args[1:])
	case "show":
		handleShow()
	case "check":
		handleCheck()
	case "path":
		fmt.Println(config.GetConfigPath())
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown subcommand '%s'\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func handleInit(args []string) {
	var force bool
	flags := pflag.NewFlagSet("init", pflag.ExitOnError)
	flags.BoolVarP(&force, "force", "f", false, "Overwrite existing config file")
	flags.Parse(args)

	configPath := config.GetConfigPath()

	if _, err := os.Stat(configPath); err == nil && !force {
		fmt.Fprintf(os.Stderr, "Error: config file already exists at %s\n", configPath)
		fmt.Fprintf(os.Stderr, "Use --force to overwrite\n")
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to save config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Created config file at %s\n", configPath)
	fmt.Println("\nDefault configuration:")
	fmt.Printf("  backend:  %s\n", cfg.Backend)
	fmt.Printf("  ledger:   %s\n", cfg.LedgerPath)
	fmt.Printf("  group:    %s\n", cfg.Group)
	fmt.Printf("  database: %s\n", cfg.DatabasePath)
	fmt.Println("\nEdit the file or use 'benchledger-config set' to customize.")
}

func handleSet(args []string) {
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "Error: 'set' requires KEY and VALUE arguments\n\n")
		fmt.Fprintf(os.Stderr, "Usage: benchledger-config set KEY VALUE\n")
		fmt.Fprintf(os.Stderr, "\nValid keys: %v\n", configKeys)
		os.Exit(1)
	}

	key, value := args[0], args[1]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		fmt.Fprintf(os.Stderr, "Try running 'benchledger-config init' first\n")
		os.Exit(1)
	}

	if err := setKey(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	configPath := config.GetConfigPath()
	if err := cfg.Save(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to save config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Set %s = %v\n", key, value)
}

func handleGet(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: 'get' requires KEY argument\n\n")
		fmt.Fprintf(os.Stderr, "Usage: benchledger-config get KEY\n")
		fmt.Fprintf(os.Stderr, "\nValid keys: %v\n", configKeys)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	value, ok := getKey(cfg, args[0])
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown config key '%s'\n", args[0])
		fmt.Fprintf(os.Stderr, "Valid keys: %v\n", configKeys)
		os.Exit(1)
	}
	fmt.Println(value)
}

func handleShow() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Configuration from: %s\n\n", config.GetConfigPath())
	for _, key := range configKeys {
		value, _ := getKey(cfg, key)
		if key == "redis.password" && value != "" {
			value = "********"
		}
		fmt.Printf("%-16s %s\n", key+":", value)
	}

	fmt.Println("\nEnvironment variable overrides:")
	for _, o := range envOverrides {
		if v := os.Getenv(o[0]); v != "" {
			fmt.Printf("  %s=%s (overrides %s)\n", o[0], v, o[1])
		}
	}
}

func handleCheck() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Configuration is valid (%s backend, ledger %s)\n", cfg.Backend, cfg.ObjectName())
}

func getKey(cfg *config.Config, key string) (string, bool) {
	switch key {
	case "backend":
		return cfg.Backend, true
	case "ledger":
		return cfg.GetLedgerPath(), true
	case "group":
		return cfg.Group, true
	case "repo_url":
		return cfg.RepoURL, true
	case "database":
		return cfg.GetDatabasePath(), true
	case "listen":
		return cfg.Listen, true
	case "s3.bucket":
		return cfg.S3.Bucket, true
	case "s3.key":
		return cfg.S3.Key, true
	case "s3.region":
		return cfg.S3.Region, true
	case "s3.endpoint":
		return cfg.S3.Endpoint, true
	case "s3.path_style":
		return strconv.FormatBool(cfg.S3.PathStyle), true
	case "redis.addr":
		return cfg.Redis.Addr, true
	case "redis.password":
		return cfg.Redis.Password, true
	case "redis.db":
		return strconv.Itoa(cfg.Redis.DB), true
	case "redis.key":
		return cfg.Redis.Key, true
	case "bolt.path":
		return cfg.Bolt.Path, true
	case "bolt.bucket":
		return cfg.Bolt.Bucket, true
	case "bolt.key":
		return cfg.Bolt.Key, true
	case "http.url":
		return cfg.HTTP.URL, true
	case "http.retries":
		return strconv.Itoa(cfg.HTTP.Retries), true
	}
	return "", false
}

func setKey(cfg *config.Config, key, value string) error {
	switch key {
	case "backend":
		cfg.Backend = value
	case "ledger":
		cfg.LedgerPath = value
	case "group":
		cfg.Group = value
	case "repo_url":
		cfg.RepoURL = value
	case "database":
		cfg.DatabasePath = value
	case "listen":
		cfg.Listen = value
	case "s3.bucket":
		cfg.S3.Bucket = value
	case "s3.key":
		cfg.S3.Key = value
	case "s3.region":
		cfg.S3.Region = value
	case "s3.endpoint":
		cfg.S3.Endpoint = value
	case "s3.path_style":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for s3.path_style (use true/false)")
		}
		cfg.S3.PathStyle = b
	case "redis.addr":
		cfg.Redis.Addr = value
	case "redis.password":
		cfg.Redis.Password = value
	case "redis.db":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for redis.db: %w", err)
		}
		cfg.Redis.DB = n
	case "redis.key":
		cfg.Redis.Key = value
	case "bolt.path":
		cfg.Bolt.Path = value
	case "bolt.bucket":
		cfg.Bolt.Bucket = value
	case "bolt.key":
		cfg.Bolt.Key = value
	case "http.url":
		cfg.HTTP.URL = value
	case "http.retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for http.retries: %w", err)
		}
		cfg.HTTP.Retries = n
	default:
		return fmt.Errorf("unknown config key '%s'", key)
	}
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: benchledger-config [OPTIONS] SUBCOMMAND\n\n")
	fmt.Fprintf(os.Stderr, "Manage benchledger configuration\n\n")
	fmt.Fprintf(os.Stderr, "Subcommands:\n")
	fmt.Fprintf(os.Stderr, "  init          Create default config file\n")
	fmt.Fprintf(os.Stderr, "  set KEY VAL   Set configuration value\n")
	fmt.Fprintf(os.Stderr, "  get KEY       Get configuration value\n")
	fmt.Fprintf(os.Stderr, "  show          Show all configuration\n")
	fmt.Fprintf(os.Stderr, "  check         Validate the configuration\n")
	fmt.Fprintf(os.Stderr, "  path          Show config file path\n\n")
	pflag.PrintDefaults()
}

func printHelp() {
	fmt.Printf("benchledger-config - Manage benchledger configuration\n\n")
	fmt.Printf("Version: %s\n\n", version)

	fmt.Printf("DESCRIPTION:\n")
	fmt.Printf("  Manages configuration for benchledger commands. Configuration is stored in\n")
	fmt.Printf("  ~/.benchledger.yaml by default and can be overridden with environment variables.\n\n")

	fmt.Printf("USAGE:\n")
	fmt.Printf("  benchledger-config [OPTIONS] SUBCOMMAND\n\n")

	fmt.Printf("SUBCOMMANDS:\n")
	fmt.Printf("  init          Create default configuration file\n")
	fmt.Printf("  set KEY VAL   Set a configuration value\n")
	fmt.Printf("  get KEY       Get a configuration value\n")
	fmt.Printf("  show          Display all configuration values\n")
	fmt.Printf("  check         Validate the configuration for the chosen backend\n")
	fmt.Printf("  path          Show the config file path\n\n")

	fmt.Printf("CONFIGURATION KEYS:\n")
	fmt.Printf("  backend       Where the ledger lives: file, s3, redis, bolt or http\n")
	fmt.Printf("                Default: file\n\n")
	fmt.Printf("  ledger        Ledger path for the file backend (.js selects data.js form)\n")
	fmt.Printf("                Default: dev/bench/data.js\n\n")
	fmt.Printf("  group         Group new entries are appended to\n")
	fmt.Printf("                Default: Benchmark\n\n")
	fmt.Printf("  database      Path to the SQLite mirror\n")
	fmt.Printf("                Default: ~/.benchledger/benchledger.db\n\n")
	fmt.Printf("  listen        Address for benchledger-serve\n")
	fmt.Printf("                Default: :8080\n\n")

	fmt.Printf("ENVIRONMENT VARIABLES:\n")
	fmt.Printf("  BENCHLEDGER_CONFIG    Path to config file\n")
	for _, o := range envOverrides {
		fmt.Printf("  %-21s Override %s\n", o[0], o[1])
	}
	fmt.Println()

	fmt.Printf("OPTIONS:\n")
	pflag.PrintDefaults()

	fmt.Printf("\nEXAMPLES:\n")
	fmt.Printf("  # Create default config\n")
	fmt.Printf("  benchledger-config init\n\n")

	fmt.Printf("  # Keep the ledger in S3\n")
	fmt.Printf("  benchledger-config set backend s3\n")
	fmt.Printf("  benchledger-config set s3.bucket my-bench\n")
	fmt.Printf("  benchledger-config set s3.key dev/bench/data.js\n\n")

	fmt.Printf("  # View all configuration\n")
	fmt.Printf("  benchledger-config show\n\n")
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Backends accepted for the ledger location
const (
	BackendFile  = "file"
	BackendS3    = "s3"
	BackendRedis = "redis"
	BackendBolt  = "bolt"
	BackendHTTP  = "http"
)

// Config represents the benchledger configuration
type Config struct {
	Backend      string      `yaml:"backend" validate:"oneof=file s3 redis bolt http"`
	LedgerPath   string      `yaml:"ledger" validate:"required_if=Backend file"`
	Group        string      `yaml:"group" validate:"required"`
	RepoURL      string      `yaml:"repo_url,omitempty"`
	DatabasePath string      `yaml:"database"`
	Listen       string      `yaml:"listen" validate:"required"`
	S3           S3Config    `yaml:"s3,omitempty"`
	Redis        RedisConfig `yaml:"redis,omitempty"`
	Bolt         BoltConfig  `yaml:"bolt,omitempty"`
	HTTP         HTTPConfig  `yaml:"http,omitempty"`
}

// S3Config locates the ledger in an S3-compatible bucket
type S3Config struct {
	Bucket    string `yaml:"bucket,omitempty"`
	Key       string `yaml:"key,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	PathStyle bool   `yaml:"path_style,omitempty"`
}

// RedisConfig locates the ledger under a Redis key
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Key      string `yaml:"key,omitempty"`
}

// BoltConfig locates the ledger in a BoltDB file
type BoltConfig struct {
	Path   string `yaml:"path,omitempty"`
	Bucket string `yaml:"bucket,omitempty"`
	Key    string `yaml:"key,omitempty"`
}

// HTTPConfig locates a published, read-only ledger
type HTTPConfig struct {
	URL     string `yaml:"url,omitempty"`
	Retries int    `yaml:"retries,omitempty"`
}

var validate = validator.New()

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	ledgerPath := "dev/bench/data.js"
	dbPath := "benchledger.db"
	if homeDir, err := os.UserHomeDir(); err == nil {
		dbPath = filepath.Join(homeDir, ".benchledger", "benchledger.db")
	}
	return &Config{
		Backend:      BackendFile,
		LedgerPath:   ledgerPath,
		Group:        "Benchmark",
		DatabasePath: dbPath,
		Listen:       ":8080",
		Redis:        RedisConfig{Addr: "localhost:6379", Key: "benchledger:data"},
		Bolt:         BoltConfig{Bucket: "benchledger", Key: "data"},
		HTTP:         HTTPConfig{Retries: 5},
	}
}

// Load loads configuration from file and environment variables
// Priority: environment variables > config file > defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := GetConfigPath()
	if err := loadFromFile(cfg, configPath); err != nil {
		// Config file is optional
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("BENCHLEDGER_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("BENCHLEDGER_LEDGER"); v != "" {
		cfg.LedgerPath = v
	}
	if v := os.Getenv("BENCHLEDGER_GROUP"); v != "" {
		cfg.Group = v
	}
	if v := os.Getenv("BENCHLEDGER_REPO_URL"); v != "" {
		cfg.RepoURL = v
	}
	if v := os.Getenv("BENCHLEDGER_DB"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("BENCHLEDGER_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("BENCHLEDGER_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("BENCHLEDGER_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid BENCHLEDGER_REDIS_DB %q: %w", v, err)
		}
		cfg.Redis.DB = n
	}
	if v := os.Getenv("BENCHLEDGER_S3_BUCKET"); v != "" {
		cfg.S3.Bucket = v
	}
	if v := os.Getenv("BENCHLEDGER_HTTP_URL"); v != "" {
		cfg.HTTP.URL = v
	}
	return nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// Save saves the configuration to a file
func (cfg *Config) Save(path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	configPath := os.Getenv("BENCHLEDGER_CONFIG")
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			configPath = filepath.Join(homeDir, ".benchledger.yaml")
		} else {
			configPath = ".benchledger.yaml"
		}
	}
	return configPath
}

// Validate checks field constraints and the settings the chosen backend needs
func (cfg *Config) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	switch cfg.Backend {
	case BackendS3:
		if cfg.S3.Bucket == "" || cfg.S3.Key == "" {
			return fmt.Errorf("invalid config: s3 backend needs s3.bucket and s3.key")
		}
	case BackendRedis:
		if cfg.Redis.Addr == "" || cfg.Redis.Key == "" {
			return fmt.Errorf("invalid config: redis backend needs redis.addr and redis.key")
		}
	case BackendBolt:
		if cfg.Bolt.Path == "" || cfg.Bolt.Bucket == "" || cfg.Bolt.Key == "" {
			return fmt.Errorf("invalid config: bolt backend needs bolt.path, bolt.bucket and bolt.key")
		}
	case BackendHTTP:
		if cfg.HTTP.URL == "" {
			return fmt.Errorf("invalid config: http backend needs http.url")
		}
	}
	return nil
}

// ValidateDatabase checks the mirror path and creates its parent directory
func (cfg *Config) ValidateDatabase() error {
	path := cfg.GetDatabasePath()
	if path == "" {
		return fmt.Errorf("invalid config: database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}

// ObjectName returns the name of the ledger object for the chosen backend.
// Its extension decides between the JSON and data.js forms.
func (cfg *Config) ObjectName() string {
	switch cfg.Backend {
	case BackendS3:
		return cfg.S3.Key
	case BackendRedis:
		return cfg.Redis.Key
	case BackendBolt:
		return cfg.Bolt.Key
	case BackendHTTP:
		return cfg.HTTP.URL
	default:
		return cfg.GetLedgerPath()
	}
}

// GetLedgerPath returns the ledger path with ~ and $VAR expanded
func (cfg *Config) GetLedgerPath() string {
	return ExpandPath(cfg.LedgerPath)
}

// GetDatabasePath returns the database path with ~ and $VAR expanded
func (cfg *Config) GetDatabasePath() string {
	return ExpandPath(cfg.DatabasePath)
}

// ExpandPath expands a leading ~/ and environment variables
func ExpandPath(path string) string {
	path = os.ExpandEnv(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(homeDir, path[1:])
		}
	}
	return path
}

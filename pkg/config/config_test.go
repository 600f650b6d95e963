package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if cfg.Backend != BackendFile {
		t.Errorf("Expected Backend='file', got '%s'", cfg.Backend)
	}

	if cfg.Group != "Benchmark" {
		t.Errorf("Expected Group='Benchmark', got '%s'", cfg.Group)
	}

	if cfg.DatabasePath == "" {
		t.Error("DatabasePath should not be empty")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid: %v", err)
	}
}

func TestConfigSaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "test-config.yaml")

	cfg := &Config{
		Backend:      BackendRedis,
		Group:        "Nightly",
		DatabasePath: "/tmp/test.db",
		Listen:       ":9000",
		Redis:        RedisConfig{Addr: "redis:6379", DB: 2, Key: "bench:data.js"},
	}

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("Config file was not created")
	}

	loadedCfg := DefaultConfig()
	if err := loadFromFile(loadedCfg, configPath); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loadedCfg.Backend != cfg.Backend {
		t.Errorf("Backend mismatch: expected '%s', got '%s'", cfg.Backend, loadedCfg.Backend)
	}
	if loadedCfg.Group != cfg.Group {
		t.Errorf("Group mismatch: expected '%s', got '%s'", cfg.Group, loadedCfg.Group)
	}
	if loadedCfg.Redis != cfg.Redis {
		t.Errorf("Redis mismatch: expected %+v, got %+v", cfg.Redis, loadedCfg.Redis)
	}
	if loadedCfg.Listen != cfg.Listen {
		t.Errorf("Listen mismatch: expected '%s', got '%s'", cfg.Listen, loadedCfg.Listen)
	}
}

func TestLoadWithEnvironmentOverrides(t *testing.T) {
	t.Setenv("BENCHLEDGER_CONFIG", "/nonexistent/config")
	t.Setenv("BENCHLEDGER_BACKEND", "redis")
	t.Setenv("BENCHLEDGER_GROUP", "EnvGroup")
	t.Setenv("BENCHLEDGER_DB", "/env/test.db")
	t.Setenv("BENCHLEDGER_REDIS_ADDR", "envhost:6380")
	t.Setenv("BENCHLEDGER_REDIS_DB", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Backend != BackendRedis {
		t.Errorf("Expected Backend from env 'redis', got '%s'", cfg.Backend)
	}
	if cfg.Group != "EnvGroup" {
		t.Errorf("Expected Group from env 'EnvGroup', got '%s'", cfg.Group)
	}
	if cfg.DatabasePath != "/env/test.db" {
		t.Errorf("Expected DatabasePath from env '/env/test.db', got '%s'", cfg.DatabasePath)
	}
	if cfg.Redis.Addr != "envhost:6380" || cfg.Redis.DB != 3 {
		t.Errorf("Expected redis envhost:6380/3, got %s/%d", cfg.Redis.Addr, cfg.Redis.DB)
	}
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("BENCHLEDGER_CONFIG", "/nonexistent/config")
	t.Setenv("BENCHLEDGER_REDIS_DB", "zero")

	if _, err := Load(); err == nil {
		t.Error("Expected error for non-numeric BENCHLEDGER_REDIS_DB")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "backend: bolt\ngroup: FromFile\nbolt:\n  path: /var/lib/bench.db\n"
	if err := os.WriteFile(configPath, []byte(yaml), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv("BENCHLEDGER_CONFIG", configPath)
	t.Setenv("BENCHLEDGER_GROUP", "FromEnv")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Backend != BackendBolt {
		t.Errorf("Backend = %s, want bolt", cfg.Backend)
	}
	if cfg.Group != "FromEnv" {
		t.Errorf("Group = %s, want FromEnv (env beats file)", cfg.Group)
	}
	// Unset nested keys keep their defaults
	if cfg.Bolt.Bucket != "benchledger" || cfg.Bolt.Key != "data" {
		t.Errorf("Bolt defaults lost: %+v", cfg.Bolt)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Backend = "ftp" },
			wantErr: "Backend",
		},
		{
			name:    "file backend without ledger",
			mutate:  func(c *Config) { c.LedgerPath = "" },
			wantErr: "LedgerPath",
		},
		{
			name:    "empty group",
			mutate:  func(c *Config) { c.Group = "" },
			wantErr: "Group",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.Backend = BackendS3; c.S3.Key = "data.js" },
			wantErr: "s3.bucket",
		},
		{
			name: "s3 complete",
			mutate: func(c *Config) {
				c.Backend = BackendS3
				c.S3 = S3Config{Bucket: "bench", Key: "dev/bench/data.js"}
			},
		},
		{
			name:    "bolt without path",
			mutate:  func(c *Config) { c.Backend = BackendBolt },
			wantErr: "bolt.path",
		},
		{
			name:    "http without url",
			mutate:  func(c *Config) { c.Backend = BackendHTTP },
			wantErr: "http.url",
		},
		{
			name:   "redis defaults",
			mutate: func(c *Config) { c.Backend = BackendRedis },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error mentioning %s, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestObjectName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LedgerPath = "/srv/bench/data.js"
	if got := cfg.ObjectName(); got != "/srv/bench/data.js" {
		t.Errorf("ObjectName() file = %s", got)
	}

	cfg.Backend = BackendRedis
	if got := cfg.ObjectName(); got != "benchledger:data" {
		t.Errorf("ObjectName() redis = %s", got)
	}

	cfg.Backend = BackendS3
	cfg.S3.Key = "bench/data.json"
	if got := cfg.ObjectName(); got != "bench/data.json" {
		t.Errorf("ObjectName() s3 = %s", got)
	}
}

func TestGetDatabasePath(t *testing.T) {
	tests := []struct {
		name     string
		dbPath   string
		envVars  map[string]string
		expected func() string
	}{
		{
			name:   "absolute path",
			dbPath: "/absolute/path/to/db",
			expected: func() string {
				return "/absolute/path/to/db"
			},
		},
		{
			name:   "home directory expansion",
			dbPath: "~/.benchledger/test.db",
			expected: func() string {
				home, _ := os.UserHomeDir()
				return filepath.Join(home, ".benchledger/test.db")
			},
		},
		{
			name:    "environment variable with braces",
			dbPath:  "${work}/bench/test.db",
			envVars: map[string]string{"work": "/mnt/f/work"},
			expected: func() string {
				return "/mnt/f/work/bench/test.db"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}
			cfg := &Config{DatabasePath: tt.dbPath}
			got := cfg.GetDatabasePath()
			expected := tt.expected()
			if got != expected {
				t.Errorf("GetDatabasePath() = %v, want %v", got, expected)
			}
		})
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("BENCHLEDGER_CONFIG", "/custom/config/path")
	path := GetConfigPath()
	if path != "/custom/config/path" {
		t.Errorf("GetConfigPath() with env = %v, want /custom/config/path", path)
	}

	t.Setenv("BENCHLEDGER_CONFIG", "")
	path = GetConfigPath()
	if path == "" {
		t.Error("GetConfigPath() should not return empty string")
	}
	if !filepath.IsAbs(path) && path != ".benchledger.yaml" {
		t.Errorf("GetConfigPath() should return absolute path or relative fallback, got %v", path)
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")

	cfg := DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save should create parent directories: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("Config file was not created in nested directory")
	}
}

func TestValidateDatabase_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	cfg := &Config{DatabasePath: dbPath}

	if err := cfg.ValidateDatabase(); err != nil {
		t.Fatalf("ValidateDatabase() failed: %v", err)
	}

	if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
		t.Error("ValidateDatabase() did not create database directory")
	}
}

func TestValidateDatabase_EmptyPath(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ValidateDatabase(); err == nil {
		t.Error("ValidateDatabase() expected error for empty path")
	}
}

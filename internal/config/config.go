// Package config provides configuration loading and structs for the kenkyu services.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. KENKYU_SERVER_PORT.
const EnvPrefix = "KENKYU"

// EnvFiles are loaded from the config directory before the environment is read.
// Variables already set in the process environment win.
var EnvFiles = []string{"config.env", ".env"}

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	LogLevel  string          `yaml:"log_level" split_words:"true"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Explain   ExplainConfig   `yaml:"explain"`
	Search    SearchConfig    `yaml:"search"`
	Migrate   MigrateConfig   `yaml:"migrate"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig selects the record substrate.
// Backend is "file" (JSON snapshot, exhaustive scan), "sqlite" or "postgres" (delegated match).
type StorageConfig struct {
	Backend      string `yaml:"backend"`
	SnapshotPath string `yaml:"snapshot_path" split_words:"true"`
	SQLitePath   string `yaml:"sqlite_path" envconfig:"sqlite_path"`
	PostgresDSN  string `yaml:"postgres_dsn" envconfig:"database_url"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider          string        `yaml:"provider"`
	Model             string        `yaml:"model"`
	Dimensions        int           `yaml:"dimensions"`
	BaseURL           string        `yaml:"base_url" split_words:"true"`
	APIKey            string        `yaml:"api_key" envconfig:"google_api_key"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" split_words:"true"`
	Burst             int           `yaml:"burst"`
	CacheSize         int           `yaml:"cache_size" split_words:"true"`
}

// ExplainConfig holds explanation settings. Provider "static" answers with StaticText.
type ExplainConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	MaxTexts   int    `yaml:"max_texts" split_words:"true"`
	StaticText string `yaml:"static_text" split_words:"true"`
}

// SearchConfig holds ranking settings.
type SearchConfig struct {
	MatchThreshold float64 `yaml:"match_threshold" split_words:"true"`
	MatchCount     int     `yaml:"match_count" split_words:"true"`
	MaxResults     int     `yaml:"max_results" split_words:"true"`
	SnippetLength  int     `yaml:"snippet_length" split_words:"true"`
}

// MigrateConfig holds flat-file to relational migration settings.
type MigrateConfig struct {
	BatchSize int    `yaml:"batch_size" split_words:"true"`
	Target    string `yaml:"target"`
}

// WatchConfig holds input-file watch settings.
type WatchConfig struct {
	Files    []string      `yaml:"files"`
	Debounce time.Duration `yaml:"debounce"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads the config file at path, overlays the environment, expands paths, and
// applies defaults. A missing file yields defaults; a malformed file is an error.
// config.env and .env next to the config file are loaded into the environment first.
func Load(path string) (*Config, error) {
	configDir := filepath.Dir(path)
	if err := LoadEnvFiles(configDir); err != nil {
		return nil, err
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)

	cfg.Storage.SnapshotPath = expandPath(cfg.Storage.SnapshotPath, configDir)
	cfg.Storage.SQLitePath = expandPath(cfg.Storage.SQLitePath, configDir)
	for i := range cfg.Watch.Files {
		cfg.Watch.Files[i] = expandPath(cfg.Watch.Files[i], configDir)
	}
	return &cfg, nil
}

// LoadEnvFiles loads EnvFiles found in dir. Missing files are skipped.
func LoadEnvFiles(dir string) error {
	var files []string
	for _, name := range EnvFiles {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			files = append(files, p)
		}
	}
	if len(files) == 0 {
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

// ApplyEnv overlays KENKYU_* variables onto cfg. Fields with an alternate name also
// read the bare variable, so GOOGLE_API_KEY and DATABASE_URL work unprefixed.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" paths are relative to the home directory; other relative paths are left alone.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

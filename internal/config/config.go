// Package config holds the application configuration, loaded from an optional
// YAML file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
	Scanner  ScannerConfig  `yaml:"scanner" json:"scanner"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host       string `yaml:"host" json:"host"`
	Port       int    `yaml:"port" json:"port"`
	EnableCORS bool   `yaml:"enable_cors" json:"enable_cors"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Type         string `yaml:"type" json:"type"` // "sqlite" or "postgres"
	DatabasePath string `yaml:"database_path" json:"database_path"`
	Host         string `yaml:"host" json:"host"`
	Port         int    `yaml:"port" json:"port"`
	Username     string `yaml:"username" json:"username"`
	Password     string `yaml:"password" json:"password"`
	Database     string `yaml:"database" json:"database"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// ScannerConfig holds library scanner configuration
type ScannerConfig struct {
	// AllowedBasePaths restricts which roots may be scanned. Empty means
	// any path is accepted.
	AllowedBasePaths []string `yaml:"allowed_base_paths" json:"allowed_base_paths"`

	VideoExtensions    []string `yaml:"video_extensions" json:"video_extensions"`
	AudioExtensions    []string `yaml:"audio_extensions" json:"audio_extensions"`
	SubtitleExtensions []string `yaml:"subtitle_extensions" json:"subtitle_extensions"`

	// ExcludedDirNames are directory names skipped during traversal, in
	// addition to dot-prefixed entries.
	ExcludedDirNames []string `yaml:"excluded_dir_names" json:"excluded_dir_names"`

	MaxScanDepth       int `yaml:"max_scan_depth" json:"max_scan_depth"`
	MaxConcurrentScans int `yaml:"max_concurrent_scans" json:"max_concurrent_scans"`
	WorkerCount        int `yaml:"worker_count" json:"worker_count"`

	// CaseInsensitiveKeys lowercases composite keys before duplicate
	// comparison. Off by default; paths compare byte-exact.
	CaseInsensitiveKeys bool `yaml:"case_insensitive_keys" json:"case_insensitive_keys"`

	FFprobePath       string        `yaml:"ffprobe_path" json:"ffprobe_path"`
	MetadataTimeout   time.Duration `yaml:"metadata_timeout" json:"metadata_timeout"`
	SweepInterval     time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
	CompletedScanTTL  time.Duration `yaml:"completed_scan_ttl" json:"completed_scan_ttl"`
	EnableFileMonitor bool          `yaml:"enable_file_monitor" json:"enable_file_monitor"`
}

var (
	current *Config
	mu      sync.RWMutex
)

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:       "0.0.0.0",
			Port:       8082,
			EnableCORS: true,
		},
		Database: DatabaseConfig{
			Type:         "sqlite",
			DatabasePath: "librarian.db",
			Host:         "localhost",
			Port:         5432,
			Username:     "librarian",
			Database:     "librarian",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Scanner: ScannerConfig{
			VideoExtensions:    []string{".mp4", ".mkv", ".avi", ".mov", ".wmv", ".m4v", ".flv", ".webm"},
			AudioExtensions:    []string{".mp3", ".flac", ".wav", ".aac", ".ogg"},
			SubtitleExtensions: []string{".srt", ".vtt", ".ass", ".ssa", ".sub", ".idx"},
			ExcludedDirNames:   []string{"@eaDir", "#recycle", "lost+found"},
			MaxScanDepth:       10,
			MaxConcurrentScans: 2,
			WorkerCount:        4,
			FFprobePath:        "ffprobe",
			MetadataTimeout:    30 * time.Second,
			SweepInterval:      time.Hour,
			CompletedScanTTL:   24 * time.Hour,
			EnableFileMonitor:  true,
		},
	}
}

// Load reads configuration from the given YAML file (if it exists), applies
// environment overrides, and installs the result as the active config.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	mu.Lock()
	current = cfg
	mu.Unlock()

	return cfg, nil
}

// Get returns the active configuration, loading defaults if Load was never
// called.
func Get() *Config {
	mu.RLock()
	if current != nil {
		defer mu.RUnlock()
		return current
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		current = Default()
		applyEnvOverrides(current)
	}
	return current
}

// Set installs a configuration directly. Intended for tests.
func Set(cfg *Config) {
	mu.Lock()
	current = cfg
	mu.Unlock()
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LIBRARIAN_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("LIBRARIAN_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LIBRARIAN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DATABASE_TYPE"); v != "" {
		cfg.Database.Type = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.DatabasePath = v
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		cfg.Database.Username = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("POSTGRES_DB"); v != "" {
		cfg.Database.Database = v
	}
	if v := os.Getenv("LIBRARIAN_ALLOWED_PATHS"); v != "" {
		cfg.Scanner.AllowedBasePaths = splitAndTrim(v)
	}
	if v := os.Getenv("LIBRARIAN_MAX_CONCURRENT_SCANS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Scanner.MaxConcurrentScans = n
		}
	}
	if v := os.Getenv("LIBRARIAN_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Scanner.WorkerCount = n
		}
	}
	if v := os.Getenv("LIBRARIAN_FFPROBE_PATH"); v != "" {
		cfg.Scanner.FFprobePath = v
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

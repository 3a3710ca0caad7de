// Package config loads and validates the service configuration from YAML.
//
// Placeholder tokens of the form ${NAME} anywhere in the file are substituted
// from the process environment before parsing. An unset variable resolves to
// an empty string with a logged warning; it is never a load error.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrMissingDatabaseHost = errors.New("database.host is required")
	ErrMissingDatabaseName = errors.New("database.database is required")
	ErrInvalidPort         = errors.New("app.port is out of range [1, 65535]")
	ErrNegativeRecentDays  = errors.New("data.recent_days must be non-negative")
	ErrMissingStoragePath  = errors.New("file.storage_path is required")
	ErrInvalidRateWindow   = errors.New("security.rate_limit_window must be at least 1s")
	ErrInvalidRateRequests = errors.New("security.rate_limit_requests must be at least 1")
	ErrMissingAPIKey       = errors.New("security.api_key is required when api_key_required is true")
	ErrMissingGitHubRepo   = errors.New("github.repo is required when github.enabled is true")
)

// Default values applied before parsing.
const (
	DefaultHost         = "0.0.0.0"
	DefaultPort         = 8002
	DefaultRecentDays   = 3
	DefaultMaxFiles     = 100
	DefaultRateWindow   = 60 // seconds
	DefaultRateRequests = 10
	DefaultBranch       = "main"
	DefaultCharset      = "utf8mb4"
)

// Config is the root of the parsed configuration file.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	Data     DataConfig     `yaml:"data"`
	File     FileConfig     `yaml:"file"`
	Security SecurityConfig `yaml:"security"`
	GitHub   GitHubConfig   `yaml:"github"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AppConfig holds HTTP listener settings.
type AppConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Debug bool   `yaml:"debug"`
}

// Addr returns the listen address in host:port form.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// DatabaseConfig holds MySQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Charset  string `yaml:"charset"`
}

// DSN returns a go-sql-driver/mysql data source name.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=false",
		d.User, d.Password, d.Host, d.Port, d.Database, d.Charset)
}

// DataConfig controls the aggregation window.
type DataConfig struct {
	// RecentDays selects how far back records are pulled. Zero means the
	// current calendar day at UTC+8; a positive N means the last N days.
	RecentDays int `yaml:"recent_days"`
}

// FileConfig controls local snapshot storage.
type FileConfig struct {
	StoragePath   string `yaml:"storage_path"`
	URLPrefixDev  string `yaml:"url_prefix_dev"`
	URLPrefixProd string `yaml:"url_prefix_prod"`
	// MaxFiles is how many non-canonical snapshot files cleanup retains.
	MaxFiles int `yaml:"max_files"`
}

// URLPrefix returns the base URL for the active deployment environment,
// selected by the ENVIRONMENT variable ("production" picks the prod prefix).
func (f FileConfig) URLPrefix() string {
	if os.Getenv("ENVIRONMENT") == "production" {
		return f.URLPrefixProd
	}
	return f.URLPrefixDev
}

// SecurityConfig holds the request gatekeeper toggles and secrets.
type SecurityConfig struct {
	APIKeyRequired     bool     `yaml:"api_key_required"`
	APIKey             string   `yaml:"api_key"`
	IPWhitelistEnabled bool     `yaml:"ip_whitelist_enabled"`
	IPWhitelist        []string `yaml:"ip_whitelist"`
	RateLimitEnabled   bool     `yaml:"rate_limit_enabled"`
	// RateLimitWindow is the sliding window length in seconds.
	RateLimitWindow   int `yaml:"rate_limit_window"`
	RateLimitRequests int `yaml:"rate_limit_requests"`
}

// Window returns the rate-limit window as a duration.
func (s SecurityConfig) Window() time.Duration {
	return time.Duration(s.RateLimitWindow) * time.Second
}

// GitHubConfig controls mirroring of the snapshot to a GitHub repository.
type GitHubConfig struct {
	Enabled bool `yaml:"enabled"`
	// Repo is the target repository in "owner/name" form.
	Repo       string `yaml:"repo"`
	Branch     string `yaml:"branch"`
	UploadPath string `yaml:"upload_path"`
	// Token is normally supplied as ${GITHUB_TOKEN} in the config file.
	Token string `yaml:"token"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv substitutes ${NAME} placeholders from the environment. An unset
// variable resolves to an empty string with a logged warning; a bare (not
// already quoted) placeholder is replaced with "" so the document stays
// valid YAML.
func expandEnv(data []byte) []byte {
	var out bytes.Buffer
	last := 0
	for _, m := range envPattern.FindAllSubmatchIndex(data, -1) {
		out.Write(data[last:m[0]])
		name := string(data[m[2]:m[3]])
		if val, ok := os.LookupEnv(name); ok {
			out.WriteString(val)
		} else {
			slog.Warn("config: environment variable not set, using empty value", "name", name)
			quoted := m[0] > 0 && data[m[0]-1] == '"' &&
				m[1] < len(data) && data[m[1]] == '"'
			if !quoted {
				out.WriteString(`""`)
			}
		}
		last = m[1]
	}
	out.Write(data[last:])
	return out.Bytes()
}

// Load reads and parses the config file at path. Missing fields are filled
// with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse parses raw YAML configuration bytes after environment interpolation.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(expandEnv(data), cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		App: AppConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Database: DatabaseConfig{
			Port:    3306,
			Charset: DefaultCharset,
		},
		Data: DataConfig{
			RecentDays: DefaultRecentDays,
		},
		File: FileConfig{
			MaxFiles: DefaultMaxFiles,
		},
		Security: SecurityConfig{
			RateLimitWindow:   DefaultRateWindow,
			RateLimitRequests: DefaultRateRequests,
		},
		GitHub: GitHubConfig{
			Branch: DefaultBranch,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.App.Port <= 0 || cfg.App.Port > 65535 {
		return ErrInvalidPort
	}
	if cfg.Database.Host == "" {
		return ErrMissingDatabaseHost
	}
	if cfg.Database.Database == "" {
		return ErrMissingDatabaseName
	}
	if cfg.Data.RecentDays < 0 {
		return ErrNegativeRecentDays
	}
	if cfg.File.StoragePath == "" {
		return ErrMissingStoragePath
	}
	if cfg.Security.RateLimitEnabled {
		if cfg.Security.RateLimitWindow < 1 {
			return ErrInvalidRateWindow
		}
		if cfg.Security.RateLimitRequests < 1 {
			return ErrInvalidRateRequests
		}
	}
	if cfg.Security.APIKeyRequired && cfg.Security.APIKey == "" {
		return ErrMissingAPIKey
	}
	if cfg.GitHub.Enabled && cfg.GitHub.Repo == "" {
		return ErrMissingGitHubRepo
	}
	return nil
}

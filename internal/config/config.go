package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/precountlive/precount/internal/logger"
	"github.com/precountlive/precount/internal/table"
)

const (
	DefaultSourceURL     = "http://info.nec.go.kr/electioninfo/electionInfo_report.xhtml"
	DefaultTableSelector = "table#table01"
	DefaultUserAgent     = "precount/1.0 (github.com/precountlive/precount)"
	DefaultDataDir       = "~/.local/share/precount"
	DefaultRecordsKey    = "precount:records"
	DefaultProjectionKey = "precount:projection"
	DefaultTimeout       = 30 * time.Second
)

// Store backends.
const (
	BackendNone   = "none"
	BackendREST   = "rest"
	BackendGist   = "gist"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Environment variables read by Load.
const (
	EnvStoreBackend = "PRECOUNT_STORE_BACKEND"
	EnvStoreURL     = "PRECOUNT_STORE_URL"
	EnvStoreToken   = "PRECOUNT_STORE_TOKEN"
	EnvGistID       = "PRECOUNT_GIST_ID"
	EnvGitHubToken  = "GITHUB_TOKEN"
	EnvLogLevel     = "PRECOUNT_LOG_LEVEL"
)

// Config is everything one run needs.
type Config struct {
	Source Source       `yaml:"source"`
	Layout table.Layout `yaml:"layout"`
	Store  Store        `yaml:"store"`
	Log    Log          `yaml:"log"`
}

// Source describes where the results page is fetched from.
type Source struct {
	URL           string            `yaml:"url"`
	Method        string            `yaml:"method"`
	Params        map[string]string `yaml:"params"`
	TableSelector string            `yaml:"table_selector"`
	UserAgent     string            `yaml:"user_agent"`
	Timeout       time.Duration     `yaml:"timeout"`
	Retries       int               `yaml:"retries"`
}

// Store selects and configures the destination key-value store.
type Store struct {
	Backend       string        `yaml:"backend"`
	URL           string        `yaml:"url"`
	Token         string        `yaml:"token"`
	GistID        string        `yaml:"gist_id"`
	DataDir       string        `yaml:"data_dir"`
	DSN           string        `yaml:"dsn"`
	RecordsKey    string        `yaml:"records_key"`
	ProjectionKey string        `yaml:"projection_key"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Log configures the structured logger.
type Log struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Source: Source{
			URL:           DefaultSourceURL,
			Method:        "GET",
			TableSelector: DefaultTableSelector,
			UserAgent:     DefaultUserAgent,
			Timeout:       DefaultTimeout,
			Retries:       2,
		},
		Layout: table.DefaultLayout(),
		Store: Store{
			Backend:       BackendFile,
			DataDir:       DefaultDataDir,
			DSN:           "precount.db",
			RecordsKey:    DefaultRecordsKey,
			ProjectionKey: DefaultProjectionKey,
			Timeout:       15 * time.Second,
		},
		Log: Log{Level: "info"},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), a .env file in the working directory if present, and the
// environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}

		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}

		if err := mergo.Merge(&cfg, fileCfg, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging config: %w", err)
		}

		var zeros explicitZeros
		if err := yaml.Unmarshal(data, &zeros); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
		zeros.apply(&cfg)
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// explicitZeros holds the options whose zero value means something ("retries: 0",
// "timeout: 0s" for no timeout). mergo skips zero values when overriding, so these
// are read a second time and applied when present.
type explicitZeros struct {
	Source struct {
		Timeout *time.Duration `yaml:"timeout"`
		Retries *int           `yaml:"retries"`
	} `yaml:"source"`
	Store struct {
		Timeout *time.Duration `yaml:"timeout"`
	} `yaml:"store"`
}

func (z explicitZeros) apply(cfg *Config) {
	if z.Source.Timeout != nil {
		cfg.Source.Timeout = *z.Source.Timeout
	}
	if z.Source.Retries != nil {
		cfg.Source.Retries = *z.Source.Retries
	}
	if z.Store.Timeout != nil {
		cfg.Store.Timeout = *z.Store.Timeout
	}
}

// loadDotEnv reads KEY=VALUE pairs from file into the environment without
// overriding variables that are already set.
func loadDotEnv(file string) error {
	if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(file); err != nil {
		return fmt.Errorf("loading %s: %w", file, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv(EnvStoreBackend); ok && v != "" {
		cfg.Store.Backend = v
	}
	if v, ok := os.LookupEnv(EnvStoreURL); ok && v != "" {
		cfg.Store.URL = v
	}
	if v, ok := os.LookupEnv(EnvGistID); ok && v != "" {
		cfg.Store.GistID = v
	}
	if v, ok := os.LookupEnv(EnvStoreToken); ok && v != "" {
		cfg.Store.Token = v
	} else if cfg.Store.Backend == BackendGist && cfg.Store.Token == "" {
		cfg.Store.Token = os.Getenv(EnvGitHubToken)
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		cfg.Log.Level = v
	}
}

// Validate checks the configuration for values no component can work with.
func (c *Config) Validate() error {
	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("layout: %w", err)
	}

	switch strings.ToUpper(c.Source.Method) {
	case "GET", "POST":
	default:
		return fmt.Errorf("source: invalid method %q (must be GET or POST)", c.Source.Method)
	}
	if c.Source.Retries < 0 {
		return fmt.Errorf("source: retries must not be negative")
	}
	if c.Source.Timeout < 0 || c.Store.Timeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}

	switch c.Store.Backend {
	case BackendNone, BackendFile, BackendSQLite:
	case BackendREST:
		if c.Store.URL == "" || c.Store.Token == "" {
			return fmt.Errorf("store: rest backend needs a url and %s", EnvStoreToken)
		}
	case BackendGist:
		if c.Store.GistID == "" || c.Store.Token == "" {
			return fmt.Errorf("store: gist backend needs %s and a token", EnvGistID)
		}
	default:
		return fmt.Errorf("store: invalid backend %q", c.Store.Backend)
	}

	if c.Store.Backend != BackendNone {
		if c.Store.RecordsKey == "" || c.Store.ProjectionKey == "" {
			return fmt.Errorf("store: records_key and projection_key are required")
		}
		if c.Store.RecordsKey == c.Store.ProjectionKey {
			return fmt.Errorf("store: records_key and projection_key must differ")
		}
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	return nil
}

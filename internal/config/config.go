// Package config loads the settings shared by the atrdoc commands.
//
// Settings come from three layers, later layers winning: built-in defaults, a YAML file,
// and ATRDOC_* environment variables. A .env file in the working directory (or the path
// given to Load) is read into the environment first.
//
// Example YAML:
//
//	listen: ":3000"
//	atr:
//	  url: "http://localhost:8080/"
//	  timeout: 60s
//	store:
//	  driver: sqlite
//	  sqlite_path: data/atrdoc.db
//	pdf:
//	  page_size: A4
//	gdocai:
//	  project_id: "your-gcp-project-id"
//	  location: "us"
//	  processor_id: "your-processor-id"
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/forsete/atrdoc/pkg/gdocai"
	"github.com/forsete/atrdoc/pkg/store"
)

// EnvPrefix is the prefix of every environment override
const EnvPrefix = "ATRDOC_"

// Config holds the settings of the atrdoc commands
type Config struct {
	Listen string       `yaml:"listen"` // HTTP listen address of atrserver
	ATR    ATRConfig    `yaml:"atr"`
	Store  StoreConfig  `yaml:"store"`
	PDF    PDFConfig    `yaml:"pdf"`
	GDocAI GDocAIConfig `yaml:"gdocai"`
}

// ATRConfig locates the ATR service
type ATRConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// StoreConfig selects the draft and confirmed-result backend
type StoreConfig struct {
	Driver     string        `yaml:"driver"` // memory, sqlite or redis
	SQLitePath string        `yaml:"sqlite_path"`
	RedisURL   string        `yaml:"redis_url"`
	DraftTTL   time.Duration `yaml:"draft_ttl"`
}

// PDFConfig holds export settings
type PDFConfig struct {
	PageSize string `yaml:"page_size"` // Page size of the plain PDF
	Debug    bool   `yaml:"debug"`     // Draw boxes and polygons in the geometry PDF
}

// GDocAIConfig holds the Google Document AI settings
type GDocAIConfig struct {
	ProjectID       string `yaml:"project_id"`
	Location        string `yaml:"location"`
	ProcessorID     string `yaml:"processor_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		Listen: ":3000",
		ATR: ATRConfig{
			URL:     "http://localhost:8080/",
			Timeout: 60 * time.Second,
		},
		Store: StoreConfig{
			Driver:     store.DriverMemory,
			SQLitePath: "data/atrdoc.db",
		},
		PDF: PDFConfig{PageSize: "Letter"},
	}
}

// Load reads the .env file (if present), the YAML file at path (if not empty) and the
// environment overrides, then validates the result
func Load(path string, envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles...); err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// loadEnvFiles loads .env files without overriding variables already set.
// A missing default .env is not an error; a missing named file is.
func loadEnvFiles(files ...string) error {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Listen = getEnvOrDefault("LISTEN", c.Listen)
	c.ATR.URL = getEnvOrDefault("ATR_URL", c.ATR.URL)
	c.ATR.Token = getEnvOrDefault("ATR_TOKEN", c.ATR.Token)
	c.Store.Driver = getEnvOrDefault("STORE_DRIVER", c.Store.Driver)
	c.Store.SQLitePath = getEnvOrDefault("SQLITE_PATH", c.Store.SQLitePath)
	c.Store.RedisURL = getEnvOrDefault("REDIS_URL", c.Store.RedisURL)
	c.PDF.PageSize = getEnvOrDefault("PDF_PAGE_SIZE", c.PDF.PageSize)
	c.GDocAI.ProjectID = getEnvOrDefault("GDOCAI_PROJECT_ID", c.GDocAI.ProjectID)
	c.GDocAI.Location = getEnvOrDefault("GDOCAI_LOCATION", c.GDocAI.Location)
	c.GDocAI.ProcessorID = getEnvOrDefault("GDOCAI_PROCESSOR_ID", c.GDocAI.ProcessorID)
	c.GDocAI.CredentialsFile = getEnvOrDefault("GDOCAI_CREDENTIALS_FILE", c.GDocAI.CredentialsFile)

	var err error
	if c.ATR.Timeout, err = getEnvAsDuration("ATR_TIMEOUT", c.ATR.Timeout); err != nil {
		return err
	}
	if c.Store.DraftTTL, err = getEnvAsDuration("DRAFT_TTL", c.Store.DraftTTL); err != nil {
		return err
	}
	if c.PDF.Debug, err = getEnvAsBool("PDF_DEBUG", c.PDF.Debug); err != nil {
		return err
	}
	return nil
}

// Validate checks the settings
func (c *Config) Validate() error {
	if c.ATR.Timeout < 0 {
		return fmt.Errorf("atr.timeout must not be negative, got %v", c.ATR.Timeout)
	}
	switch c.Store.Driver {
	case store.DriverMemory:
	case store.DriverSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite driver")
		}
	case store.DriverRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("store.redis_url is required for the redis driver")
		}
	default:
		return fmt.Errorf("store.driver must be memory, sqlite or redis, got %q", c.Store.Driver)
	}
	if c.Store.DraftTTL < 0 {
		return fmt.Errorf("store.draft_ttl must not be negative, got %v", c.Store.DraftTTL)
	}
	return nil
}

// StoreConfig converts the store settings for store.Open
func (c *Config) StoreConfig() store.Config {
	return store.Config{
		Driver:     c.Store.Driver,
		SQLitePath: c.Store.SQLitePath,
		RedisURL:   c.Store.RedisURL,
		DraftTTL:   c.Store.DraftTTL,
	}
}

// DocumentAI converts the Document AI settings. The result is validated by the caller.
func (c *Config) DocumentAI() *gdocai.Config {
	return &gdocai.Config{
		ProjectID:       c.GDocAI.ProjectID,
		Location:        c.GDocAI.Location,
		ProcessorID:     c.GDocAI.ProcessorID,
		CredentialsFile: c.GDocAI.CredentialsFile,
	}
}

// getEnvOrDefault gets an ATRDOC_ environment variable or returns the default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	s := os.Getenv(EnvPrefix + key)
	if s == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	return d, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	s := strings.TrimSpace(os.Getenv(EnvPrefix + key))
	if s == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	return b, nil
}

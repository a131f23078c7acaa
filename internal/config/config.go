// Package config loads the runtime configuration of the formflow binaries.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"regexp"
	"time"

	"github.com/aretw0/formflow/internal/logging"
	"github.com/aretw0/formflow/pkg/validation"
	"github.com/aretw0/formflow/pkg/wizard"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Prefix is prepended to every environment variable name.
const Prefix = "FORMFLOW_"

// Backend names.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendLoam   = "loam"
)

// Config holds every setting of the CLI and servers.
type Config struct {
	Addr     string `env:"ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	FormsDir string `env:"FORMS_DIR" envDefault:"forms"`
	Loader   string `env:"LOADER" envDefault:"file"`
	DataDir  string `env:"DATA_DIR" envDefault:".formflow"`

	SessionBackend    string `env:"SESSION_BACKEND" envDefault:"file"`
	SubmissionBackend string `env:"SUBMISSION_BACKEND" envDefault:"sqlite"`

	RedisURL    string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisPrefix string        `env:"REDIS_PREFIX" envDefault:"formflow:"`
	SessionTTL  time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// SQLitePath and UploadDir default to locations under DataDir.
	SQLitePath string `env:"SQLITE_PATH"`
	UploadDir  string `env:"UPLOAD_DIR"`

	UniquenessPolicy string        `env:"UNIQUENESS_POLICY" envDefault:"open"`
	StalePolicy      string        `env:"STALE_POLICY" envDefault:"discard"`
	ResetAfter       time.Duration `env:"RESET_AFTER" envDefault:"3s"`

	Metrics       bool     `env:"METRICS" envDefault:"true"`
	EncryptionKey string   `env:"ENCRYPTION_KEY"`
	PIIPatterns   []string `env:"PII_PATTERNS" envSeparator:","`
	MaxInputSize  int      `env:"MAX_INPUT_SIZE" envDefault:"4096"`
}

// Load reads the optional dotenv files (".env" when none are given) and then
// parses the FORMFLOW_* environment. Variables already set win over dotenv values.
func Load(files ...string) (*Config, error) {
	if err := loadDotenv(files...); err != nil {
		return nil, err
	}
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyDefaults derives unset paths from DataDir.
func (c *Config) ApplyDefaults() {
	if c.SQLitePath == "" {
		c.SQLitePath = filepath.Join(c.DataDir, "submissions.db")
	}
	if c.UploadDir == "" {
		c.UploadDir = filepath.Join(c.DataDir, "uploads")
	}
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	var errs []error
	check := func(name, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s%s: unsupported value %q (want one of %v)", Prefix, name, value, allowed))
	}
	check("LOADER", c.Loader, BackendFile, BackendLoam)
	check("SESSION_BACKEND", c.SessionBackend, BackendMemory, BackendFile, BackendRedis)
	check("SUBMISSION_BACKEND", c.SubmissionBackend, BackendMemory, BackendRedis, BackendSQLite)

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("%sLOG_LEVEL: %w", Prefix, err))
	}
	if _, err := c.FailurePolicy(); err != nil {
		errs = append(errs, fmt.Errorf("%sUNIQUENESS_POLICY: %w", Prefix, err))
	}
	if _, err := c.Stale(); err != nil {
		errs = append(errs, fmt.Errorf("%sSTALE_POLICY: %w", Prefix, err))
	}
	if c.EncryptionKey != "" && len(c.EncryptionKey) != 32 {
		errs = append(errs, fmt.Errorf("%sENCRYPTION_KEY: must be 32 bytes, got %d", Prefix, len(c.EncryptionKey)))
	}
	for _, p := range c.PIIPatterns {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("%sPII_PATTERNS: %w", Prefix, err))
		}
	}
	if c.ResetAfter < 0 {
		errs = append(errs, fmt.Errorf("%sRESET_AFTER: must not be negative", Prefix))
	}
	if c.MaxInputSize <= 0 {
		errs = append(errs, fmt.Errorf("%sMAX_INPUT_SIZE: must be positive", Prefix))
	}
	return errors.Join(errs...)
}

// Level returns the parsed log level.
func (c *Config) Level() slog.Level {
	level, _ := logging.ParseLevel(c.LogLevel)
	return level
}

// FailurePolicy returns the uniqueness failure policy.
func (c *Config) FailurePolicy() (validation.FailurePolicy, error) {
	return validation.ParseFailurePolicy(c.UniquenessPolicy)
}

// Stale returns the policy for uniqueness results that arrive after the answer changed.
func (c *Config) Stale() (wizard.StalePolicy, error) {
	return wizard.ParseStalePolicy(c.StalePolicy)
}

// UsesRedis reports whether any backend needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.SessionBackend == BackendRedis || c.SubmissionBackend == BackendRedis
}

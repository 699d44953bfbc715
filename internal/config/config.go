// Package config loads application settings. Values start from defaults, are
// overlaid by an optional YAML file, then by environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/sakif/webproof-contributors/internal/prover"
)

type Config struct {
	Port        int    `yaml:"port"        envconfig:"PORT"`
	DatabaseURL string `yaml:"databaseUrl" envconfig:"DATABASE_URL"`

	ProverURL      string        `yaml:"proverUrl"      envconfig:"WEB_PROVER_API_URL"`
	ProverClientID string        `yaml:"proverClientId" envconfig:"WEB_PROVER_API_CLIENT_ID"`
	ProverSecret   string        `yaml:"proverSecret"   envconfig:"WEB_PROVER_API_SECRET"`
	ProveTimeout   time.Duration `yaml:"proveTimeout"   envconfig:"PROVE_TIMEOUT"`
	VerifyTimeout  time.Duration `yaml:"verifyTimeout"  envconfig:"VERIFY_TIMEOUT"`

	WebproofsDir     string        `yaml:"webproofsDir"     envconfig:"WEBPROOFS_DIR"`
	BatchConcurrency int           `yaml:"batchConcurrency" envconfig:"BATCH_CONCURRENCY"`
	VerifyAllTimeout time.Duration `yaml:"verifyAllTimeout" envconfig:"VERIFY_ALL_TIMEOUT"`
	MaxProofBytes    int64         `yaml:"maxProofBytes"    envconfig:"MAX_PROOF_BYTES"`

	JWTSecret          string `yaml:"jwtSecret"          envconfig:"JWT_SECRET"`
	GitHubClientID     string `yaml:"githubClientId"     envconfig:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `yaml:"githubClientSecret" envconfig:"GITHUB_CLIENT_SECRET"`
	GitHubCallbackURL  string `yaml:"githubCallbackUrl"  envconfig:"GITHUB_CALLBACK_URL"`

	LogLevel        string        `yaml:"logLevel"        envconfig:"LOG_LEVEL"`
	LogFormat       string        `yaml:"logFormat"       envconfig:"LOG_FORMAT"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Port:             8080,
		DatabaseURL:      "data/webproofs.db",
		ProverURL:        "https://web-prover.vlayer.xyz",
		ProveTimeout:     90 * time.Second,
		VerifyTimeout:    85 * time.Second,
		WebproofsDir:     "webproofs",
		BatchConcurrency: 1,
		VerifyAllTimeout: 300 * time.Second,
		MaxProofBytes:    10 << 20,
		LogLevel:         "info",
		LogFormat:        "text",
		ShutdownTimeout:  30 * time.Second,
	}
}

// Load builds the configuration. configFile may be empty.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", configFile, err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("config: reading environment: %w", err)
	}

	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("config: invalid port %d", c.Port)
	case c.DatabaseURL == "":
		return errors.New("config: DATABASE_URL must not be empty")
	case c.ProverURL == "":
		return errors.New("config: WEB_PROVER_API_URL must not be empty")
	case c.ProveTimeout <= 0 || c.VerifyTimeout <= 0:
		return errors.New("config: prover timeouts must be positive")
	case c.VerifyAllTimeout <= 0:
		return errors.New("config: VERIFY_ALL_TIMEOUT must be positive")
	case c.BatchConcurrency <= 0:
		return fmt.Errorf("config: BATCH_CONCURRENCY must be positive, got %d", c.BatchConcurrency)
	case c.MaxProofBytes <= 0:
		return fmt.Errorf("config: MAX_PROOF_BYTES must be positive, got %d", c.MaxProofBytes)
	case c.ShutdownTimeout <= 0:
		return errors.New("config: SHUTDOWN_TIMEOUT must be positive")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	return level, nil
}

// Logger builds a logger writing to w from LogLevel and LogFormat.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// UsesPostgres reports whether DatabaseURL names a Postgres server rather
// than a SQLite file.
func (c *Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") ||
		strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

// AuthEnabled reports whether GitHub login is configured.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != "" && c.GitHubClientID != ""
}

// Prover returns the relay settings.
func (c *Config) Prover() prover.Config {
	return prover.Config{
		BaseURL:       c.ProverURL,
		ClientID:      c.ProverClientID,
		Secret:        c.ProverSecret,
		ProveTimeout:  c.ProveTimeout,
		VerifyTimeout: c.VerifyTimeout,
	}
}

// Package platform provides application configuration.
package platform

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Auth       AuthConfig       `yaml:"auth"`
	Database   DatabaseConfig   `yaml:"database"`
	Completion CompletionConfig `yaml:"completion"`
	Query      QueryConfig      `yaml:"query"`
	Schema     SchemaConfig     `yaml:"schema"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuthConfig configures request authentication.
type AuthConfig struct {
	// SigningKey is the HMAC key verifying bearer tokens.
	SigningKey string `yaml:"signing_key"`
	// APIKeys are accepted via X-API-Key; values are bcrypt hashes.
	APIKeys []APIKeyDef `yaml:"api_keys"`
	// AllowAnonymous admits uncredentialed requests. Default: false.
	AllowAnonymous bool `yaml:"allow_anonymous"`
}

// APIKeyDef defines a named API key hash.
type APIKeyDef struct {
	Name string `yaml:"name"`
	Hash string `yaml:"hash"`
}

// DatabaseConfig configures the database connection.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// CompletionConfig configures the text-completion service.
type CompletionConfig struct {
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxTokens int           `yaml:"max_tokens"`
}

// QueryConfig configures the query pipeline.
type QueryConfig struct {
	SchemaID         string        `yaml:"schema_id"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
	MaxRows          int           `yaml:"max_rows"`
	SampleRows       int           `yaml:"sample_rows"`
	RetryBackoff     time.Duration `yaml:"retry_backoff"`
}

// SchemaConfig configures schema evolution and caching.
type SchemaConfig struct {
	FuzzyThreshold float64       `yaml:"fuzzy_threshold"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
}

// LoadConfig reads, env-expands, parses and defaults a config file.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Completion.Timeout == 0 {
		cfg.Completion.Timeout = 60 * time.Second
	}
	if cfg.Query.StatementTimeout == 0 {
		cfg.Query.StatementTimeout = 30 * time.Second
	}
	if cfg.Query.MaxRows == 0 {
		cfg.Query.MaxRows = 1000
	}
	if cfg.Query.SampleRows == 0 {
		cfg.Query.SampleRows = 3
	}
	if cfg.Schema.FuzzyThreshold == 0 {
		cfg.Schema.FuzzyThreshold = 0.6
	}
	if cfg.Schema.CacheTTL == 0 {
		cfg.Schema.CacheTTL = 5 * time.Minute
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.DSN == "" {
		errs = append(errs, "database.dsn is required")
	}
	if c.Completion.BaseURL == "" {
		errs = append(errs, "completion.base_url is required")
	}
	if c.Completion.Model == "" {
		errs = append(errs, "completion.model is required")
	}
	if c.Query.SchemaID == "" {
		errs = append(errs, "query.schema_id is required")
	}
	if !c.Auth.AllowAnonymous && c.Auth.SigningKey == "" && len(c.Auth.APIKeys) == 0 {
		errs = append(errs, "auth requires a signing key or API keys unless allow_anonymous is set")
	}
	if c.Schema.FuzzyThreshold < 0 || c.Schema.FuzzyThreshold > 1 {
		errs = append(errs, "schema.fuzzy_threshold must be in [0,1]")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for lucerna-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Semantic index store (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Discovery pipeline settings
	Discovery DiscoveryConfig `yaml:"discovery"`

	// Complexity classifier thresholds
	Classifier ClassifierConfig `yaml:"classifier"`

	// Snippet and composition-chain catalog
	CatalogPath string `yaml:"catalog_path" env:"CATALOG_PATH" env-default:"catalog/snippets.yaml"`

	// LLM provider for intent classification ("anthropic" or "openai")
	LLM LLMConfig `yaml:"llm"`

	// Encryption key for customer connection strings.
	// Must be a 32-byte key, base64 encoded. Generate with: openssl rand -base64 32
	// Server will fail to start if this is not set.
	CustomerCredentialsKey string `yaml:"-" env:"CUSTOMER_CREDENTIALS_KEY"` // Secret - not in YAML
}

// DatabaseConfig holds PostgreSQL configuration for the semantic index store.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"lucerna"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"lucerna_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// DiscoveryConfig holds discovery pipeline settings.
type DiscoveryConfig struct {
	// AnalyticsSchema is the schema namespace introspected in customer databases.
	AnalyticsSchema string `yaml:"analytics_schema" env:"DISCOVERY_ANALYTICS_SCHEMA" env-default:"clinical"`
	// LogRetentionRuns is how many recent runs keep their verbose stage logs.
	LogRetentionRuns int `yaml:"log_retention_runs" env:"DISCOVERY_LOG_RETENTION_RUNS" env-default:"5"`
	// PoolMaxConns caps the per-run connection pool against a customer database.
	PoolMaxConns int32 `yaml:"pool_max_conns" env:"DISCOVERY_POOL_MAX_CONNS" env-default:"4"`
}

// ClassifierConfig holds question-complexity thresholds.
// Scores at or below Simple map to direct execution, at or below Medium to
// preview-then-run, and everything above to mandatory human inspection.
type ClassifierConfig struct {
	SimpleMax int `yaml:"simple_max" env:"CLASSIFIER_SIMPLE_MAX" env-default:"4"`
	MediumMax int `yaml:"medium_max" env:"CLASSIFIER_MEDIUM_MAX" env-default:"7"`
}

// LLMConfig selects the intent-classification provider.
type LLMConfig struct {
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:"anthropic"`
	Model    string `yaml:"model" env:"LLM_MODEL" env-default:""`
	APIKey   string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	BaseURL  string `yaml:"base_url" env:"LLM_BASE_URL" env-default:""`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// If config.yaml does not exist, configuration comes from the environment alone.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Classifier.SimpleMax < 0 || c.Classifier.MediumMax <= c.Classifier.SimpleMax {
		return fmt.Errorf("invalid classifier thresholds: simple_max=%d medium_max=%d",
			c.Classifier.SimpleMax, c.Classifier.MediumMax)
	}
	if c.Discovery.LogRetentionRuns < 1 {
		return fmt.Errorf("discovery log_retention_runs must be at least 1, got %d", c.Discovery.LogRetentionRuns)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string for the index store.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

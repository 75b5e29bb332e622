// Package config loads the engine configuration from defaults, an optional
// YAML file and ELIGIBILITY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/trial-eligibility-engine/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. ELIGIBILITY_SERVER_PORT.
const EnvPrefix = "ELIGIBILITY"

// Manager loads and validates configuration using Viper
type Manager struct {
	v          *viper.Viper
	configFile string
	config     *domain.Config
}

// Option configures a Manager.
type Option func(*Manager)

// WithConfigFile reads configuration from path instead of searching for config.yaml.
func WithConfigFile(path string) Option {
	return func(m *Manager) {
		m.configFile = path
	}
}

// NewManager creates a new configuration manager
func NewManager(opts ...Option) (*Manager, error) {
	m := &Manager{}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := viper.New()

	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/trial-eligibility-engine/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; defaults and environment variables suffice
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Ontology defaults
	v.SetDefault("ontology.path", "data/doid.json")
	v.SetDefault("ontology.format", "json")
	v.SetDefault("ontology.closure_cache_size", 4096)
	v.SetDefault("ontology.fetch_timeout", "2m")
	v.SetDefault("ontology.fetch_retries", 3)
	v.SetDefault("ontology.requests_per_second", 1)

	// Molecular test selection defaults
	v.SetDefault("molecular.max_test_age", "0s")
	v.SetDefault("molecular.include_insufficient_quality", false)

	// Evaluation defaults
	v.SetDefault("evaluation.max_concurrency", 8)

	// Outcome store defaults
	v.SetDefault("outcome.driver", "")
	v.SetDefault("outcome.dsn", "")
	v.SetDefault("outcome.migrations_path", "migrations")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// ConfigFileUsed returns the path of the file the configuration was read
// from, or "" when only defaults and environment variables were used.
func (m *Manager) ConfigFileUsed() string {
	return m.v.ConfigFileUsed()
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Ontology.Path == "" {
		return fmt.Errorf("ontology path is required")
	}
	switch strings.ToLower(config.Ontology.Format) {
	case "json", "dot":
	default:
		return fmt.Errorf("invalid ontology format: %s", config.Ontology.Format)
	}

	if config.Ontology.FetchRetries < 0 {
		return fmt.Errorf("ontology fetch retries must not be negative")
	}

	if config.Molecular.MaxTestAge < 0 {
		return fmt.Errorf("molecular max test age must not be negative")
	}

	if config.Evaluation.MaxConcurrency <= 0 {
		return fmt.Errorf("evaluation max concurrency must be positive")
	}

	switch config.Outcome.Driver {
	case "":
	case "sqlite", "postgres":
		if config.Outcome.DSN == "" {
			return fmt.Errorf("outcome dsn is required for driver %s", config.Outcome.Driver)
		}
	default:
		return fmt.Errorf("invalid outcome driver: %s", config.Outcome.Driver)
	}

	names := make(map[string]struct{}, len(config.Rules))
	for i, rule := range config.Rules {
		if rule.Name == "" {
			return fmt.Errorf("rule %d has no name", i)
		}
		if _, dup := names[rule.Name]; dup {
			return fmt.Errorf("duplicate rule name: %s", rule.Name)
		}
		names[rule.Name] = struct{}{}
	}

	return nil
}

package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string           `mapstructure:"environment"`
	Server      ServerConfig     `mapstructure:"server"`
	Logging     LoggingConfig    `mapstructure:"logging"`
	Ontology    OntologyConfig   `mapstructure:"ontology"`
	Molecular   MolecularConfig  `mapstructure:"molecular"`
	Evaluation  EvaluationConfig `mapstructure:"evaluation"`
	Outcome     OutcomeConfig    `mapstructure:"outcome"`
	Rules       []RuleSpec       `mapstructure:"rules"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// OntologyConfig points at the disease ontology reference data. Path may be
// a local file or an http(s) URL.
type OntologyConfig struct {
	Path              string        `mapstructure:"path"`
	Format            string        `mapstructure:"format"` // "json" (OBO graph) or "dot"
	ClosureCacheSize  int           `mapstructure:"closure_cache_size"`
	FetchTimeout      time.Duration `mapstructure:"fetch_timeout"`
	FetchRetries      int           `mapstructure:"fetch_retries"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// MolecularConfig controls which molecular tests take part in an evaluation.
type MolecularConfig struct {
	MaxTestAge                 time.Duration `mapstructure:"max_test_age"` // zero disables the age cutoff
	IncludeInsufficientQuality bool          `mapstructure:"include_insufficient_quality"`
}

// CutoffDate returns the oldest acceptable test date relative to now, or nil
// when no age limit is configured.
func (m MolecularConfig) CutoffDate(now time.Time) *time.Time {
	if m.MaxTestAge <= 0 {
		return nil
	}
	cutoff := now.Add(-m.MaxTestAge)
	return &cutoff
}

// EvaluationConfig tunes the eligibility service.
type EvaluationConfig struct {
	MaxConcurrency int `mapstructure:"max_concurrency"`
}

// OutcomeConfig selects where final evaluations are stored.
type OutcomeConfig struct {
	Driver         string `mapstructure:"driver"` // "", "sqlite" or "postgres"
	DSN            string `mapstructure:"dsn"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

// RuleSpec declares one configured eligibility rule.
type RuleSpec struct {
	Name      string   `mapstructure:"name" json:"name" yaml:"name"`
	Type      string   `mapstructure:"type" json:"type" yaml:"type"`
	Doid      string   `mapstructure:"doid" json:"doid,omitempty" yaml:"doid,omitempty"`
	Doids     []string `mapstructure:"doids" json:"doids,omitempty" yaml:"doids,omitempty"`
	FailDoids []string `mapstructure:"fail_doids" json:"fail_doids,omitempty" yaml:"fail_doids,omitempty"`
	WarnDoids []string `mapstructure:"warn_doids" json:"warn_doids,omitempty" yaml:"warn_doids,omitempty"`
	Terms     []string `mapstructure:"terms" json:"terms,omitempty" yaml:"terms,omitempty"`
	Gene      string   `mapstructure:"gene" json:"gene,omitempty" yaml:"gene,omitempty"`
	MinCopies int      `mapstructure:"min_copies" json:"min_copies,omitempty" yaml:"min_copies,omitempty"`
}

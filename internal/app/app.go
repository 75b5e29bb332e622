// Package app wires the engine components together from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/trial-eligibility-engine/internal/database"
	"github.com/trial-eligibility-engine/internal/doid"
	"github.com/trial-eligibility-engine/internal/domain"
	"github.com/trial-eligibility-engine/internal/logging"
	"github.com/trial-eligibility-engine/internal/molecular"
	"github.com/trial-eligibility-engine/internal/outcome"
	"github.com/trial-eligibility-engine/internal/rules"
	"github.com/trial-eligibility-engine/internal/service"
)

// App holds the long-lived components of a running engine.
type App struct {
	Config   *domain.Config
	Logger   *logrus.Logger
	Model    *doid.Model
	Registry *rules.Registry
	Store    outcome.Store
	Service  *service.EligibilityService

	logCloser io.Closer
}

// New loads the ontology, builds the configured rules and opens the outcome
// store. The molecular test age cutoff follows the wall clock at each
// evaluation.
func New(ctx context.Context, cfg *domain.Config) (*App, error) {
	logger, logCloser, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a, err := build(ctx, cfg, logger)
	if err != nil {
		logCloser.Close()
		return nil, err
	}
	a.logCloser = logCloser
	return a, nil
}

func build(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (*App, error) {
	client := doid.NewClient(doid.ClientConfig{
		Timeout:           cfg.Ontology.FetchTimeout,
		MaxRetries:        cfg.Ontology.FetchRetries,
		RequestsPerSecond: cfg.Ontology.RequestsPerSecond,
	}, logger)
	graph, err := doid.Load(ctx, client, cfg.Ontology.Path, cfg.Ontology.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to load ontology: %w", err)
	}

	model, err := doid.NewModel(graph,
		doid.WithLogger(logger),
		doid.WithCacheSize(cfg.Ontology.ClosureCacheSize),
	)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"path":  cfg.Ontology.Path,
		"codes": graph.Size(),
	}).Info("Loaded disease ontology")

	registry, err := rules.FromSpecs(cfg.Rules, rules.Dependencies{
		Model:  model,
		Filter: molecular.NewTestFilter(cfg.Molecular),
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build rules: %w", err)
	}

	if err := database.MigrateOutcomeStore(ctx, cfg.Outcome, logger); err != nil {
		return nil, fmt.Errorf("failed to migrate outcome store: %w", err)
	}

	store, err := outcome.Open(cfg.Outcome)
	if err != nil {
		return nil, fmt.Errorf("failed to open outcome store: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"rules":         registry.Len(),
		"outcome_store": cfg.Outcome.Driver,
	}).Info("Eligibility engine initialised")

	return &App{
		Config:   cfg,
		Logger:   logger,
		Model:    model,
		Registry: registry,
		Store:    store,
		Service:  service.NewEligibilityService(registry, store, cfg.Evaluation, logger),
	}, nil
}

// Close releases the outcome store and the log output.
func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close outcome store: %w", err))
		}
	}
	if a.logCloser != nil {
		if err := a.logCloser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close log output: %w", err))
		}
	}
	return errors.Join(errs...)
}

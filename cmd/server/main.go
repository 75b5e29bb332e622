package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/trial-eligibility-engine/internal/api"
	"github.com/trial-eligibility-engine/internal/app"
	"github.com/trial-eligibility-engine/internal/config"
)

func main() {
	configFile := flag.String("config", "", "path to a YAML configuration file")
	flag.Parse()

	var opts []config.Option
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}

	// Load configuration
	configManager, err := config.NewManager(opts...)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := app.New(ctx, configManager.GetConfig())
	if err != nil {
		log.Fatalf("Failed to initialise eligibility engine: %v", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			engine.Logger.WithError(err).Warn("Failed to close outcome store")
		}
	}()

	logger := engine.Logger
	cfg := configManager.GetServerConfig()
	logger.WithField("config_file", configManager.ConfigFileUsed()).
		Infof("Starting trial eligibility server on %s:%d", cfg.Host, cfg.Port)

	server := api.NewServer(*cfg, engine.Service, engine.Model, logger)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server failed")
		return
	}

	logger.Info("Server stopped")
}

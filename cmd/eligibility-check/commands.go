package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/trial-eligibility-engine/internal/app"
	"github.com/trial-eligibility-engine/internal/config"
	"github.com/trial-eligibility-engine/internal/database"
	"github.com/trial-eligibility-engine/internal/domain"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "eligibility-check",
		Short:         "Evaluate patients against clinical trial eligibility rules",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML configuration file")

	rootCmd.AddCommand(evaluateCmd())
	rootCmd.AddCommand(rulesCmd())
	rootCmd.AddCommand(ontologyCmd())
	rootCmd.AddCommand(outcomesCmd())
	rootCmd.AddCommand(migrateCmd())

	return rootCmd
}

func loadConfig(cmd *cobra.Command) (*domain.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var opts []config.Option
	if path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	manager, err := config.NewManager(opts...)
	if err != nil {
		return nil, err
	}
	if err := manager.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return manager.GetConfig(), nil
}

func loadApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return app.New(cmd.Context(), cfg)
}

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate <patient-file>",
		Short: "Evaluate a patient record (JSON or YAML) against the configured rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ruleName, _ := cmd.Flags().GetString("rule")
			output, _ := cmd.Flags().GetString("output")

			record, err := readPatient(args[0])
			if err != nil {
				return err
			}

			engine, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer engine.Close()

			var result any
			if ruleName != "" {
				result, err = engine.Service.EvaluateRule(cmd.Context(), ruleName, record)
			} else {
				result, err = engine.Service.EvaluateAll(cmd.Context(), record)
			}
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, result)
		},
	}
	cmd.Flags().String("rule", "", "Evaluate only the named rule")
	cmd.Flags().StringP("output", "o", "json", "Output format: json or yaml")
	return cmd
}

func rulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the configured eligibility rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer engine.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tDESCRIPTION")
			for _, r := range engine.Service.Rules() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, r.Type, r.Description)
			}
			return w.Flush()
		},
	}
}

func ontologyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ontology",
		Short: "Inspect the disease ontology",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ancestors <doid>",
		Short: "Print a disease code with all of its ancestors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer engine.Close()

			out := cmd.OutOrStdout()
			for _, code := range engine.Model.Ancestors(args[0]).Sorted() {
				term, _ := engine.Model.Term(code)
				fmt.Fprintf(out, "DOID:%s\t%s\n", code, term)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "lookup <term>",
		Short: "Find the disease code of a term",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer engine.Close()

			term := strings.Join(args, " ")
			code, ok := engine.Model.CodeForTerm(term)
			if !ok {
				return fmt.Errorf("%w: term %q", domain.ErrNotFound, term)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "DOID:%s\n", code)
			return nil
		},
	})

	return cmd
}

func outcomesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outcomes",
		Short: "Export or import stored evaluation outcomes",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Write every stored outcome as JSON to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer engine.Close()
			if engine.Store == nil {
				return fmt.Errorf("no outcome store configured")
			}
			return engine.Store.ExportJSON(cmd.Context(), cmd.OutOrStdout())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Import outcomes from a JSON export, skipping existing ones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer engine.Close()
			if engine.Store == nil {
				return fmt.Errorf("no outcome store configured")
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			imported, skipped, err := engine.Store.ImportJSON(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d outcome(s), skipped %d.\n", imported, skipped)
			return nil
		},
	})

	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run PostgreSQL outcome store migrations",
	}

	run := func(action func(ctx context.Context, runner *database.MigrationRunner, out io.Writer) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Outcome.Driver != "postgres" {
				return fmt.Errorf("migrations require the postgres outcome driver, got %q", cfg.Outcome.Driver)
			}
			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.Outcome.MigrationsPath
			}

			runner, err := database.NewMigrationRunner(cfg.Outcome.DSN, dir, nil)
			if err != nil {
				return err
			}
			defer runner.Close()

			return action(cmd.Context(), runner, cmd.OutOrStdout())
		}
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: run(func(ctx context.Context, runner *database.MigrationRunner, out io.Writer) error {
			if err := runner.Up(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintln(out, "Migrations applied successfully.")
			return nil
		}),
	}
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		RunE: run(func(ctx context.Context, runner *database.MigrationRunner, out io.Writer) error {
			if err := runner.Down(ctx); err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			fmt.Fprintln(out, "Migrations rolled back.")
			return nil
		}),
	}
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		RunE: run(func(ctx context.Context, runner *database.MigrationRunner, out io.Writer) error {
			version, dirty, err := runner.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Version: %d (dirty: %t)\n", version, dirty)
			return nil
		}),
	}

	for _, c := range []*cobra.Command{upCmd, downCmd, versionCmd} {
		c.Flags().String("dir", "", "Path to migrations directory")
		cmd.AddCommand(c)
	}
	return cmd
}

// readPatient decodes a patient record, choosing YAML or JSON by extension.
func readPatient(path string) (domain.PatientRecord, error) {
	var record domain.PatientRecord

	data, err := os.ReadFile(path)
	if err != nil {
		return record, fmt.Errorf("failed to read patient file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &record)
	default:
		err = json.Unmarshal(data, &record)
	}
	if err != nil {
		return record, fmt.Errorf("failed to decode patient file: %w", err)
	}
	return record, nil
}

func writeOutput(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

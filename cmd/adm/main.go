// Package main provides the examprep administration CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"examprep/cmd/adm/commands"
	"examprep/internal/config"
	"examprep/internal/di"
	"examprep/internal/observability"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	ctx := context.Background()

	_ = godotenv.Load()

	// Fall back to a config.yaml in the working directory
	if os.Getenv(config.ConfigFileEnv) == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			if err := os.Setenv(config.ConfigFileEnv, "config.yaml"); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to set %s: %v\n", config.ConfigFileEnv, err)
				os.Exit(1)
			}
		}
	}

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// The admin tool talks to the store directly; keep telemetry and chatter off
	cfg.Server.LogLevel = "error"
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	_, _, logger, err := observability.SetupObservabilityWithLevel(&cfg.OpenTelemetry, "examprep-adm", observability.ParseLevel(cfg.Server.LogLevel))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}

	container := di.NewServiceContainer(cfg, logger)
	if err := container.Initialize(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize services: %v\n", err)
		os.Exit(1)
	}

	svc, err := commands.ServicesFromContainer(container)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve services: %v\n", err)
		_ = container.Shutdown(ctx)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "examprep administration tool",
		Long: `examprep administration tool

Inspects and maintains the attempt record log, derived mistakes and cached
statistics of the configured storage backend.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}
	commands.Register(rootCmd, svc)

	execErr := rootCmd.Execute()
	if err := container.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to shut down services: %v\n", err)
	}
	if execErr != nil {
		os.Exit(1)
	}
}

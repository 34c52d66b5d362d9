package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/railstream/pkg/config"
	"github.com/ajitpratap0/railstream/pkg/connector/core"
	"github.com/ajitpratap0/railstream/pkg/connector/registry"
	jsonpool "github.com/ajitpratap0/railstream/pkg/json"
	"github.com/ajitpratap0/railstream/pkg/logger"

	// Import all available sources to register them
	_ "github.com/ajitpratap0/railstream/pkg/connector/sources/railz"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var logLevel string

	root := &cobra.Command{
		Use:   "railstream",
		Short: "Railstream - financial data source connectors",
		Long: `Railstream reads financial report data from aggregation APIs and
streams it as newline-delimited JSON records with resumable incremental state.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Init(logger.Config{Level: logLevel, Encoding: "console"})
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "error", "Log level (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Railstream v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available source connectors",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available Source Connectors:")
			for _, source := range registry.ListSources() {
				fmt.Printf("  - %s\n", source)
			}
		},
	})

	var checkConfigFile string
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check that the configured API is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(checkConfigFile)
		},
	}
	checkCmd.Flags().StringVarP(&checkConfigFile, "config", "c", "", "Path to source configuration YAML file (required)")
	_ = checkCmd.MarkFlagRequired("config")
	root.AddCommand(checkCmd)

	var readConfigFile, stateFile string
	var timeout time.Duration
	readCmd := &cobra.Command{
		Use:   "read",
		Short: "Read records and write them to stdout as NDJSON",
		Long: `Read records from the configured source and write them to stdout as
newline-delimited JSON. With --state, incremental cursor state is loaded
before the run and written back after it.

Example:
  railstream read --config railz.yaml --state state.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRead(readConfigFile, stateFile, timeout)
		},
	}
	readCmd.Flags().StringVarP(&readConfigFile, "config", "c", "", "Path to source configuration YAML file (required)")
	readCmd.Flags().StringVar(&stateFile, "state", "", "Path to incremental state JSON file (optional)")
	readCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Sync timeout")
	_ = readCmd.MarkFlagRequired("config")
	root.AddCommand(readCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadSourceConfig loads a BaseConfig from a YAML file with environment
// variable substitution.
func loadSourceConfig(filename string) (*config.BaseConfig, error) {
	cfg := config.NewBaseConfig("railz", "source")
	if err := config.Load(filename, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", filename, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createSource(ctx context.Context, cfg *config.BaseConfig) (core.Source, error) {
	source, err := registry.CreateSource(cfg.Type, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create source '%s': %w", cfg.Type, err)
	}

	if err := source.Initialize(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize source: %w", err)
	}

	return source, nil
}

// runCheck probes the API and reports availability with a reason
func runCheck(configFile string) error {
	cfg, err := loadSourceConfig(configFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	source, err := createSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = source.Close(ctx) }()

	checker, ok := source.(interface {
		CheckAvailability(context.Context) (bool, string)
	})
	if !ok {
		if err := source.Health(ctx); err != nil {
			return fmt.Errorf("source is unhealthy: %w", err)
		}
		fmt.Println("OK")
		return nil
	}

	available, reason := checker.CheckAvailability(ctx)
	if !available {
		return fmt.Errorf("source is unavailable: %s", reason)
	}

	fmt.Println("OK")
	return nil
}

// runRead executes a sync run, streaming records to stdout
func runRead(configFile, stateFile string, timeout time.Duration) error {
	cfg, err := loadSourceConfig(configFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	source, err := createSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = source.Close(ctx) }()

	log := logger.Get().With(
		zap.String("component", "railstream-cli"),
		zap.String("source", cfg.Type),
	)

	if stateFile != "" {
		state, err := loadState(stateFile)
		if err != nil {
			return err
		}
		if state != nil {
			if err := source.SetState(state); err != nil {
				return fmt.Errorf("failed to restore state: %w", err)
			}
			log.Info("restored incremental state", zap.String("state_file", stateFile))
		}
	}

	log.Info("starting sync", zap.String("config", configFile))
	startTime := time.Now()

	stream, err := source.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to start read: %w", err)
	}

	encoder := jsonpool.GetEncoder(os.Stdout)
	defer jsonpool.PutEncoder(encoder)

	var recordsProcessed int64
	for record := range stream.Records {
		if err := encoder.Encode(record); err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
		recordsProcessed++
		record.Release()
	}

	for err := range stream.Errors {
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
	}

	if stateFile != "" {
		if err := saveState(stateFile, source.GetState()); err != nil {
			return err
		}
		log.Info("saved incremental state", zap.String("state_file", stateFile))
	}

	duration := time.Since(startTime)
	log.Info("sync completed",
		zap.Duration("duration", duration),
		zap.Int64("records_processed", recordsProcessed),
		zap.Float64("records_per_second", float64(recordsProcessed)/duration.Seconds()))

	return nil
}

// loadState reads persisted incremental state; a missing file is a fresh run
func loadState(filename string) (core.State, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state file %s: %w", filename, err)
	}

	var state core.State
	if err := jsonpool.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", filename, err)
	}

	return state, nil
}

// saveState persists incremental state for the next run
func saveState(filename string, state core.State) error {
	data, err := jsonpool.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("failed to write state file %s: %w", filename, err)
	}

	return nil
}

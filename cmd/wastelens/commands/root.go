package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/wastelens/wastelens/pkg/config"
	"github.com/wastelens/wastelens/pkg/engine"
	"github.com/wastelens/wastelens/pkg/engine/policy"
	"github.com/wastelens/wastelens/pkg/version"
)

var (
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:     "wastelens",
	Short:   "Cloud waste detection and remediation over a simulated estate",
	Version: version.Current,
	Long: `WasteLens finds idle, orphaned, and over-provisioned resources in a
simulated multi-account cloud inventory, turns findings into reviewable
recommendations, and applies the safe ones automatically.`,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default wastelens.yaml)")
	rootCmd.PersistentFlags().String("db", "", "Postgres DSN (default in-memory store)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().Bool("json-logs", true, "Emit JSON logs")
}

func initConfig() {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	cfg = loaded
	applyFlagOverrides(rootCmd.PersistentFlags())
}

// applyFlagOverrides lets explicitly set flags win over file and env values.
func applyFlagOverrides(fs *pflag.FlagSet) {
	if fs.Changed("db") {
		cfg.DatabaseDSN, _ = fs.GetString("db")
	}
	if fs.Changed("verbose") {
		cfg.Verbose, _ = fs.GetBool("verbose")
	}
	if fs.Changed("json-logs") {
		cfg.JSONLogs, _ = fs.GetBool("json-logs")
	}
}

// buildEngine assembles the runtime from the loaded config.
func buildEngine(ctx context.Context) (*engine.Engine, error) {
	exclusions := make([]policy.ExclusionRule, 0, len(cfg.Exclusions))
	for _, ex := range cfg.Exclusions {
		exclusions = append(exclusions, policy.ExclusionRule{
			ID:        ex.ID,
			Condition: ex.Condition,
			Reason:    ex.Reason,
		})
	}

	return engine.New(ctx, engine.WithConfig(engine.Config{
		DatabaseDSN:               cfg.DatabaseDSN,
		CacheTTL:                  cfg.Detection.CacheTTL,
		TreatMissingMetricsAsIdle: cfg.Detection.TreatMissingMetricsAsIdle,
		Exclusions:                exclusions,
		OtelEndpoint:              cfg.OtelEndpoint,
		JSONLogs:                  cfg.JSONLogs,
		Verbose:                   cfg.Verbose,
		Logger:                    buildLogger(),
	}))
}

func buildLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.JSONLogs {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

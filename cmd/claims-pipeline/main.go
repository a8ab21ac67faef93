package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ignite/claims-pipeline/internal/config"
	"github.com/ignite/claims-pipeline/internal/pkg/logger"
	"github.com/ignite/claims-pipeline/internal/runner"
)

var (
	configPath string
	asOf       string
	outputDir  string
	echoStdout bool
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "claims-pipeline [flags] <source>...",
	Short: "Find denied claims that can be resubmitted",
	Long: `claims-pipeline reads claim exports from the Alpha (CSV) and Beta (JSON)
EMR systems, normalizes them, and writes two artifacts: the list of claims
eligible for resubmission and a metrics summary of how every record was
classified.

Each source is a local path or s3://bucket/key. Prefix it with alpha= or
beta= to name the source system; otherwise .csv means Alpha and .json
means Beta.`,
	Example: `  claims-pipeline emr_alpha.csv emr_beta.json
  claims-pipeline --as-of 2025-07-30 alpha=s3://claims-raw/alpha/today.csv beta=exports/beta.json`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config (defaults only when omitted)")
	rootCmd.Flags().StringVar(&asOf, "as-of", "", "reference date YYYY-MM-DD (default: today)")
	rootCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "write artifacts to this local directory")
	rootCmd.Flags().BoolVar(&echoStdout, "stdout", false, "also print the candidate list to stdout")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if asOf != "" {
		cfg.Eligibility.AsOf = asOf
	}
	if outputDir != "" {
		cfg.Output.Type = "local"
		cfg.Output.LocalPath = outputDir
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	logger.SetRedactPHI(cfg.Log.Redact())

	sources, err := runner.ParseSourceArgs(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r, cleanup, err := runner.FromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	if echoStdout {
		r.Echo = cmd.OutOrStdout()
	}

	out, err := r.Run(ctx, sources)
	if err != nil {
		return err
	}
	logger.Info("pipeline complete",
		"run_id", out.RunID,
		"flagged", out.Result.Metrics.FlaggedForResubmission,
		"elapsed", out.Elapsed.Round(time.Millisecond))
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kapu/lead-analyzer-go/internal/app"
	"github.com/kapu/lead-analyzer-go/internal/config"
	"github.com/kapu/lead-analyzer-go/internal/util"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const buildTimeout = 30 * time.Second

// options are the persistent flags shared by every subcommand.
type options struct {
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "leadanalyzer",
		Short: "Instagram lead analyzer workspace and enrichment backend",
		Long: `leadanalyzer analyzes Instagram profiles for sales prospecting.

It keeps a local workspace (experts, analysis history, the current conversation)
and can serve the scraping and AI collaborator the workspace talks to.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at the configured level instead of warnings only")

	root.AddCommand(
		newServeCmd(opts),
		newExpertsCmd(opts),
		newHistoryCmd(opts),
		newExportCmd(opts),
		newAnalyzeCmd(opts),
	)
	return root
}

// withContainer loads config, builds the services and runs fn. Short-lived
// commands log warnings only unless --verbose is set.
func withContainer(ctx context.Context, opts *options, quiet bool, fn func(c *app.Container) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level := cfg.Logging.Level
	if quiet && !opts.verbose {
		level = "warn"
	}
	logger, err := util.NewLogger(level, cfg.Logging.File)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	buildCtx, cancel := context.WithTimeout(ctx, buildTimeout)
	container, err := app.Build(buildCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("Failed to assemble application services", zap.Error(err))
		return err
	}
	defer container.Close()

	return fn(container)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

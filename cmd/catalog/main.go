package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/use-agent/catalog/config"
	"github.com/use-agent/catalog/metrics"
	"github.com/use-agent/catalog/pipeline"
	"github.com/use-agent/catalog/sink"
)

var rootCmd = &cobra.Command{
	Use:           "catalog",
	Short:         "catalog extracts normalized product records from retail listing pages.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger(config.Load().Log)
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// newPipeline opens the sink described by sc and builds a pipeline over it.
// The returned sink must be closed by the caller.
func newPipeline(ctx context.Context, cfg *config.Config, sc sink.Config, m *metrics.Metrics) (*pipeline.Pipeline, sink.Sink, error) {
	out, err := sink.Open(ctx, sc)
	if err != nil {
		return nil, nil, fmt.Errorf("open sink: %w", err)
	}
	p := pipeline.New(pipeline.Options{
		Locator:    cfg.Extraction.LocatorOptions(),
		Normalizer: cfg.Extraction.NormalizerOptions(),
	}, out, m)
	return p, out, nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/use-agent/catalog/api"
	"github.com/use-agent/catalog/api/handler"
	"github.com/use-agent/catalog/cache"
	"github.com/use-agent/catalog/config"
	"github.com/use-agent/catalog/crawler"
	"github.com/use-agent/catalog/metrics"
	"github.com/use-agent/catalog/models"
	"github.com/use-agent/catalog/scraper"
	"github.com/use-agent/catalog/webhook"
)

var noBrowser bool

func init() {
	serveCmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Serve /extract only; runs are disabled.")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [--no-browser]",
	Short: "Runs the HTTP API.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context(), config.Load())
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("catalog starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxPages", cfg.Browser.MaxPages,
		"sinks", cfg.Sink.Kinds,
	)

	// ── 1. Metrics ──────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// ── 2. Sink and pipeline ────────────────────────────────────────
	p, out, err := newPipeline(ctx, cfg, cfg.Sink.Options(), m)
	if err != nil {
		return err
	}
	defer out.Close()

	// ── 3. Browser, crawler and run store ───────────────────────────
	runs := handler.NewRunStore(cfg.Crawl.RunRetention)
	deps := api.Deps{
		Pipeline:     p,
		Runs:         runs,
		ExtractCache: cache.New[*models.ExtractResponse](cfg.Cache.MaxEntries, cfg.Cache.TTL),
		Metrics:      m,
		StartTime:    time.Now(),
	}
	defer deps.ExtractCache.Close()

	if !noBrowser {
		sc, err := scraper.NewScraper(cfg.Browser, cfg.Scraper, cfg.Engine)
		if err != nil {
			return fmt.Errorf("initialise scraper: %w", err)
		}
		defer sc.Close()

		pageCache := cache.New[crawler.Snapshot](cfg.Cache.MaxEntries, cfg.Cache.TTL)
		defer pageCache.Close()

		opts := crawler.OptionsFrom(cfg.Crawl)
		opts.WebhookSecret = cfg.Webhook.Secret
		deps.Runner = crawler.New(crawler.Deps{
			Browser:  crawler.ScraperBrowser(sc),
			Pipeline: p,
			Metrics:  m,
			Notifier: webhook.New(webhook.Options{Timeout: cfg.Webhook.Timeout, MaxRetries: cfg.Webhook.MaxRetries}),
			Cache:    pageCache,
			Memory:   sc.Memory(),
		}, opts)
		deps.Pool = sc
	} else {
		slog.Warn("browser disabled, runs are unavailable")
	}

	router := api.NewRouter(deps, cfg)

	// ── 4. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// ── 5. Sweep finished runs ──────────────────────────────────────
	sweep := time.NewTicker(time.Minute)
	defer sweep.Stop()

	// ── 6. Graceful shutdown ────────────────────────────────────────
loop:
	for {
		select {
		case err := <-errCh:
			return fmt.Errorf("http server: %w", err)
		case now := <-sweep.C:
			if n := runs.Sweep(now); n > 0 {
				slog.Debug("swept finished runs", "count", n)
			}
		case <-ctx.Done():
			break loop
		}
	}
	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}
	if err := runs.Shutdown(shutdownCtx); err != nil {
		slog.Warn("runs still in flight at shutdown", "active", runs.Active())
	}

	slog.Info("catalog stopped")
	return nil
}

package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/use-agent/catalog/config"
	"github.com/use-agent/catalog/crawler"
	"github.com/use-agent/catalog/models"
	"github.com/use-agent/catalog/scraper"
	"github.com/use-agent/catalog/webhook"
)

func init() {
	rootCmd.AddCommand(crawlCmd)
}

var crawlCmd = &cobra.Command{
	Use:   "crawl <plan.yaml>",
	Short: "Runs the crawl described by a plan file and prints a page summary.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.Load()

		plan, err := config.LoadPlan(args[0])
		if err != nil {
			return err
		}
		plan.ApplyDefaults(cfg.Crawl, cfg.Scraper)

		sinkCfg := cfg.Sink.Options()
		if plan.Sink != nil {
			sinkCfg = *plan.Sink
		}
		p, out, err := newPipeline(ctx, cfg, sinkCfg, nil)
		if err != nil {
			return err
		}
		defer out.Close()

		sc, err := scraper.NewScraper(cfg.Browser, cfg.Scraper, cfg.Engine)
		if err != nil {
			return fmt.Errorf("initialise scraper: %w", err)
		}
		defer sc.Close()

		opts := crawler.OptionsFrom(cfg.Crawl)
		opts.Concurrency = plan.Concurrency
		opts.WebhookSecret = cfg.Webhook.Secret
		c := crawler.New(crawler.Deps{
			Browser:  crawler.ScraperBrowser(sc),
			Pipeline: p,
			Notifier: webhook.New(webhook.Options{Timeout: cfg.Webhook.Timeout, MaxRetries: cfg.Webhook.MaxRetries}),
			Memory:   sc.Memory(),
		}, opts)

		req := planRequest(plan)
		job := models.NewRunJob(runID(plan), req.TargetCount, time.Now().Unix())

		slog.Info("crawl plan loaded", "plan", plan.Name, "categories", len(plan.Categories), "sink", out.Name())
		status := c.Run(ctx, job, req)

		printRun(job.StatusResponse())
		if status == models.RunFailed {
			return fmt.Errorf("crawl %s failed", job.ID)
		}
		return nil
	},
}

// planRequest converts a plan into the request a run executes.
func planRequest(plan *config.Plan) models.RunRequest {
	req := models.RunRequest{
		CategoryURLs: plan.Categories,
		Locale:       plan.Locale,
		TargetCount:  plan.TargetCount,
		MaxPages:     plan.MaxPages,
		Timeout:      int(plan.Timeout / time.Second),
		Stealth:      plan.Stealth,
		Actions:      plan.Actions,
	}
	if plan.Webhook != nil {
		req.WebhookURL = plan.Webhook.URL
		req.WebhookSecret = plan.Webhook.Secret
	}
	return req
}

func runID(plan *config.Plan) string {
	name := plan.Name
	if name == "" {
		name = "plan"
	}
	return fmt.Sprintf("%s-%d", name, time.Now().Unix())
}

func printRun(res models.RunStatusResponse) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Category", "Page", "Outcome", "Reason", "Accepted", "Cached", "Time"})
	for _, pg := range res.Pages {
		outcome := string(pg.Outcome)
		if pg.Error != nil {
			outcome = pg.Error.Code
		}
		t.AppendRow(table.Row{
			pg.CategoryID,
			pg.Page,
			outcome,
			string(pg.EmptyReason),
			pg.Accepted,
			pg.Cached,
			time.Duration(pg.Timing.TotalMs) * time.Millisecond,
		})
	}
	t.AppendFooter(table.Row{"", "", res.Status, "", fmt.Sprintf("%d/%d", res.SavedCount, res.TargetCount)})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

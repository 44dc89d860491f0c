package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/catalog/sink"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "GBP", cfg.Extraction.DefaultCurrency)
	assert.Equal(t, 100.0, cfg.Extraction.MediaFormatIDMax)
	assert.Equal(t, []string{"__PRELOADED_STATE__", "__INITIAL_STATE__", "__NEXT_DATA__"}, cfg.Scraper.StateGlobals)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, time.Hour, cfg.Crawl.RunRetention)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CATALOG_PORT", "9090")
	t.Setenv("CATALOG_MEDIA_FORMAT_ID_MAX", "20")
	t.Setenv("CATALOG_MIN_ID_LENGTH", "5")
	t.Setenv("CATALOG_SINK", "jsonl, SQLite")
	t.Setenv("CATALOG_API_TIMEOUT", "3s")
	t.Setenv("CATALOG_MAX_DEPTH", "not-a-number")

	cfg := Load()
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 20.0, cfg.Extraction.LocatorOptions().MediaFormatIDMax)
	assert.Equal(t, 5, cfg.Extraction.NormalizerOptions().MinIDLength)
	assert.Equal(t, []sink.Kind{sink.KindJSONL, sink.KindSQLite}, cfg.Sink.Options().Kinds)
	assert.Equal(t, 3*time.Second, cfg.Engine.HTTPTimeout)
	assert.Equal(t, 10, cfg.Extraction.MaxDepth)
}

const planYAML = `
name: uk-men-shirts
locale: uk/en
target_count: 250
timeout: 30s
categories:
  - https://www.example.com/uk/en/man-shirts-l737.html
  - https://www.example.com/uk/en/man-linen-l1234.html?v1=2112345
actions:
  - type: click
    selector: "#onetrust-accept-btn-handler"
    optional: true
  - type: scroll
    amount: 4
sink:
  kinds: [jsonl]
  path: out/shirts.jsonl
webhook:
  url: https://hooks.example.com/catalog
  secret: s3cret
`

func TestLoadPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(planYAML), 0o644))

	p, err := LoadPlan(path)
	require.NoError(t, err)
	assert.Equal(t, "uk-men-shirts", p.Name)
	assert.Equal(t, 250, p.TargetCount)
	assert.Equal(t, 30*time.Second, p.Timeout)
	assert.Len(t, p.Categories, 2)
	require.Len(t, p.Actions, 2)
	assert.True(t, p.Actions[0].Optional)
	assert.Equal(t, 4, p.Actions[1].Amount)
	require.NotNil(t, p.Sink)
	assert.Equal(t, []sink.Kind{sink.KindJSONL}, p.Sink.Kinds)
	require.NotNil(t, p.Webhook)
	assert.Equal(t, "s3cret", p.Webhook.Secret)

	p.ApplyDefaults(CrawlConfig{TargetCount: 100, MaxPages: 5, Concurrency: 2}, ScraperConfig{DefaultTimeout: 45 * time.Second, MaxTimeout: 20 * time.Second})
	assert.Equal(t, 250, p.TargetCount)
	assert.Equal(t, 5, p.MaxPages)
	assert.Equal(t, 2, p.Concurrency)
	assert.Equal(t, 20*time.Second, p.Timeout)
}

func TestParsePlanRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no categories", "name: x\n"},
		{"relative url", "categories: [/uk/en/shirts.html]\n"},
		{"bad action", "categories: [https://www.example.com/a]\nactions: [{type: hover}]\n"},
		{"negative target", "categories: [https://www.example.com/a]\ntarget_count: -1\n"},
		{"not yaml", "categories: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePlan([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/catalog/locator"
	"github.com/use-agent/catalog/normalizer"
	"github.com/use-agent/catalog/sink"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Browser    BrowserConfig
	Scraper    ScraperConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Cache      CacheConfig
	Log        LogConfig
	Engine     EngineConfig
	Extraction ExtractionConfig
	Crawl      CrawlConfig
	Sink       SinkConfig
	Webhook    WebhookConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"

	// ShutdownTimeout bounds draining requests and runs on exit.
	ShutdownTimeout time.Duration // default: 10s
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 4

	// DefaultProxy is the proxy URL for the browser and the HTTP engine.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// ControlURL connects to an already running browser instead of launching one.
	ControlURL string
}

// ScraperConfig controls page visits.
type ScraperConfig struct {
	// DefaultTimeout is the per-page timeout.
	DefaultTimeout time.Duration // default: 45s

	// MaxTimeout caps client-supplied timeouts.
	MaxTimeout time.Duration // default: 120s

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockAds drops requests to known ad and tracking hosts.
	BlockAds bool // default: true

	// RemoveOverlays strips cookie banners before the page is read.
	RemoveOverlays bool // default: true

	// StateGlobals are the window globals holding embedded state, in order.
	StateGlobals []string // default: ["__PRELOADED_STATE__", "__INITIAL_STATE__", "__NEXT_DATA__"]

	// ScrollSteps is how many viewports to scroll to trigger lazy loading.
	ScrollSteps int // default: 3
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// CacheConfig controls the page result cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached page results.
	MaxEntries int // default: 1000

	// TTL is how long a page result stays fresh.
	TTL time.Duration // default: 10m
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// EngineConfig controls the internal API fetch dispatcher.
type EngineConfig struct {
	// EscalationDelay is how long the HTTP engine runs alone before the
	// in-page fetch starts.
	EscalationDelay time.Duration // default: 2s

	// HTTPTimeout bounds one API fetch across engines.
	HTTPTimeout time.Duration // default: 15s

	// MemoryTTL is how long a host's winning engine is remembered.
	MemoryTTL time.Duration // default: 1h
}

// ExtractionConfig tunes the locator and normalizer.
type ExtractionConfig struct {
	DefaultCurrency string // default: "GBP"

	// MinIDLength rejects shorter product ids.
	MinIDLength int // default: 3

	// MediaFormatIDMax: elements with a smaller numeric id and no name are
	// treated as image-format descriptors.
	MediaFormatIDMax float64 // default: 100

	// MinorUnitThreshold: integer prices above it are read as minor units.
	MinorUnitThreshold float64 // default: 100

	// MaxDepth bounds the deep candidate search.
	MaxDepth int // default: 10

	// StaticHost is the media origin for root-relative image paths.
	StaticHost string

	// ImageWidth is the width used when assembling media paths.
	ImageWidth int // default: 750

	// WellKnownPaths overrides the locator's fast-path list when set.
	WellKnownPaths []string
}

// CrawlConfig controls crawl runs.
type CrawlConfig struct {
	// Concurrency is the number of categories visited in parallel.
	Concurrency int // default: 2

	// MaxPages caps pagination per category.
	MaxPages int // default: 5

	// TargetCount is the default records-per-run target.
	TargetCount int // default: 100

	// RequestsPerSecond paces page visits per run.
	RequestsPerSecond float64 // default: 0.5

	// Burst is the politeness limiter burst.
	Burst int // default: 1

	// LayoutDriftDistance is the fingerprint Hamming distance above which an
	// empty page counts as a layout change.
	LayoutDriftDistance int // default: 18

	// RunRetention is how long finished runs stay queryable.
	RunRetention time.Duration // default: 1h
}

// SinkConfig selects persistence.
type SinkConfig struct {
	Kinds    []string // default: ["jsonl"]
	Path     string   // default: "out/products.jsonl"
	DSN      string
	Table    string // default: "products"
	Database string // default: "catalog"
}

// WebhookConfig controls run event delivery.
type WebhookConfig struct {
	// Secret signs deliveries when a run does not supply its own.
	Secret string

	Timeout    time.Duration // default: 10s
	MaxRetries int           // default: 3
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("CATALOG_HOST", "0.0.0.0"),
			Port: envIntOr("CATALOG_PORT", 8080),
			Mode: envOr("CATALOG_MODE", "release"),

			ShutdownTimeout: envDurationOr("CATALOG_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("CATALOG_HEADLESS", true),
			MaxPages:     envIntOr("CATALOG_MAX_PAGES", 4),
			DefaultProxy: os.Getenv("CATALOG_PROXY"),
			NoSandbox:    envBoolOr("CATALOG_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("CATALOG_BROWSER_BIN"),
			ControlURL:   os.Getenv("CATALOG_BROWSER_URL"),
		},
		Scraper: ScraperConfig{
			DefaultTimeout: envDurationOr("CATALOG_DEFAULT_TIMEOUT", 45*time.Second),
			MaxTimeout:     envDurationOr("CATALOG_MAX_TIMEOUT", 120*time.Second),
			BlockedResourceTypes: envSliceOr("CATALOG_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
			BlockAds:       envBoolOr("CATALOG_BLOCK_ADS", true),
			RemoveOverlays: envBoolOr("CATALOG_REMOVE_OVERLAYS", true),
			StateGlobals: envSliceOr("CATALOG_STATE_GLOBALS", []string{
				"__PRELOADED_STATE__", "__INITIAL_STATE__", "__NEXT_DATA__",
			}),
			ScrollSteps: envIntOr("CATALOG_SCROLL_STEPS", 3),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("CATALOG_AUTH_ENABLED", true),
			APIKeys: envSliceOr("CATALOG_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("CATALOG_RATE_RPS", 5.0),
			Burst:             envIntOr("CATALOG_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("CATALOG_CACHE_MAX_ENTRIES", 1000),
			TTL:        envDurationOr("CATALOG_CACHE_TTL", 10*time.Minute),
		},
		Log: LogConfig{
			Level:  envOr("CATALOG_LOG_LEVEL", "info"),
			Format: envOr("CATALOG_LOG_FORMAT", "json"),
		},
		Engine: EngineConfig{
			EscalationDelay: envDurationOr("CATALOG_ESCALATION_DELAY", 2*time.Second),
			HTTPTimeout:     envDurationOr("CATALOG_API_TIMEOUT", 15*time.Second),
			MemoryTTL:       envDurationOr("CATALOG_ENGINE_MEMORY_TTL", time.Hour),
		},
		Extraction: ExtractionConfig{
			DefaultCurrency:    envOr("CATALOG_DEFAULT_CURRENCY", "GBP"),
			MinIDLength:        envIntOr("CATALOG_MIN_ID_LENGTH", 3),
			MediaFormatIDMax:   envFloatOr("CATALOG_MEDIA_FORMAT_ID_MAX", 100),
			MinorUnitThreshold: envFloatOr("CATALOG_MINOR_UNIT_THRESHOLD", 100),
			MaxDepth:           envIntOr("CATALOG_MAX_DEPTH", 10),
			StaticHost:         os.Getenv("CATALOG_STATIC_HOST"),
			ImageWidth:         envIntOr("CATALOG_IMAGE_WIDTH", 750),
			WellKnownPaths:     envSliceOr("CATALOG_WELL_KNOWN_PATHS", nil),
		},
		Crawl: CrawlConfig{
			Concurrency:         envIntOr("CATALOG_CRAWL_CONCURRENCY", 2),
			MaxPages:            envIntOr("CATALOG_CRAWL_MAX_PAGES", 5),
			TargetCount:         envIntOr("CATALOG_TARGET_COUNT", 100),
			RequestsPerSecond:   envFloatOr("CATALOG_CRAWL_RPS", 0.5),
			Burst:               envIntOr("CATALOG_CRAWL_BURST", 1),
			LayoutDriftDistance: envIntOr("CATALOG_LAYOUT_DRIFT_DISTANCE", 18),
			RunRetention:        envDurationOr("CATALOG_RUN_RETENTION", time.Hour),
		},
		Sink: SinkConfig{
			Kinds:    envSliceOr("CATALOG_SINK", []string{"jsonl"}),
			Path:     envOr("CATALOG_SINK_PATH", "out/products.jsonl"),
			DSN:      os.Getenv("CATALOG_SINK_DSN"),
			Table:    envOr("CATALOG_SINK_TABLE", "products"),
			Database: envOr("CATALOG_SINK_DATABASE", "catalog"),
		},
		Webhook: WebhookConfig{
			Secret:     os.Getenv("CATALOG_WEBHOOK_SECRET"),
			Timeout:    envDurationOr("CATALOG_WEBHOOK_TIMEOUT", 10*time.Second),
			MaxRetries: envIntOr("CATALOG_WEBHOOK_RETRIES", 3),
		},
	}
}

// LocatorOptions converts the extraction settings for the locator.
func (c ExtractionConfig) LocatorOptions() locator.Options {
	return locator.Options{
		MaxDepth:         c.MaxDepth,
		WellKnownPaths:   c.WellKnownPaths,
		MediaFormatIDMax: c.MediaFormatIDMax,
	}
}

// NormalizerOptions converts the extraction settings for the normalizer.
func (c ExtractionConfig) NormalizerOptions() normalizer.Options {
	return normalizer.Options{
		DefaultCurrency:    c.DefaultCurrency,
		MinIDLength:        c.MinIDLength,
		MinorUnitThreshold: c.MinorUnitThreshold,
		StaticHost:         c.StaticHost,
		ImageWidth:         c.ImageWidth,
	}
}

// Options converts the sink settings.
func (c SinkConfig) Options() sink.Config {
	kinds := make([]sink.Kind, 0, len(c.Kinds))
	for _, k := range c.Kinds {
		kinds = append(kinds, sink.Kind(strings.ToLower(strings.TrimSpace(k))))
	}
	return sink.Config{
		Kinds:    kinds,
		Path:     c.Path,
		DSN:      c.DSN,
		Table:    c.Table,
		Database: c.Database,
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/use-agent/catalog/models"
	"github.com/use-agent/catalog/sink"
)

// Plan is a crawl described in a YAML file:
//
//	name: uk-men-shirts
//	locale: uk/en
//	target_count: 500
//	max_pages: 8
//	categories:
//	  - https://www.example.com/uk/en/man-shirts-l737.html
//	actions:
//	  - {type: click, selector: "#onetrust-accept-btn-handler", optional: true}
//	sink:
//	  kinds: [jsonl, sqlite]
//	  path: out/shirts.db
type Plan struct {
	Name        string          `yaml:"name"`
	Locale      string          `yaml:"locale"`
	TargetCount int             `yaml:"target_count"`
	MaxPages    int             `yaml:"max_pages"`
	Concurrency int             `yaml:"concurrency"`
	Timeout     time.Duration   `yaml:"timeout"`
	Stealth     bool            `yaml:"stealth"`
	Categories  []string        `yaml:"categories"`
	Actions     []models.Action `yaml:"actions"`
	Sink        *sink.Config    `yaml:"sink"`
	Webhook     *PlanWebhook    `yaml:"webhook"`
}

// PlanWebhook receives run events for a planned crawl.
type PlanWebhook struct {
	URL    string `yaml:"url"`
	Secret string `yaml:"secret"`
}

// LoadPlan reads and validates a plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read plan: %w", err)
	}
	return ParsePlan(data)
}

// ParsePlan decodes and validates plan YAML.
func ParsePlan(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("config: decode plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks required fields.
func (p *Plan) Validate() error {
	if len(p.Categories) == 0 {
		return fmt.Errorf("config: plan %q has no categories", p.Name)
	}
	for _, c := range p.Categories {
		u, err := url.Parse(c)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config: plan %q: invalid category url %q", p.Name, c)
		}
	}
	if p.TargetCount < 0 || p.MaxPages < 0 || p.Concurrency < 0 {
		return fmt.Errorf("config: plan %q: counts must not be negative", p.Name)
	}
	for i, a := range p.Actions {
		switch a.Type {
		case "wait", "click", "scroll", "execute_js":
		default:
			return fmt.Errorf("config: plan %q: action %d has unknown type %q", p.Name, i, a.Type)
		}
	}
	return nil
}

// ApplyDefaults fills unset fields from the service configuration.
func (p *Plan) ApplyDefaults(crawl CrawlConfig, scraper ScraperConfig) {
	if p.TargetCount == 0 {
		p.TargetCount = crawl.TargetCount
	}
	if p.MaxPages == 0 {
		p.MaxPages = crawl.MaxPages
	}
	if p.Concurrency == 0 {
		p.Concurrency = crawl.Concurrency
	}
	if p.Timeout == 0 {
		p.Timeout = scraper.DefaultTimeout
	}
	if p.Timeout > scraper.MaxTimeout && scraper.MaxTimeout > 0 {
		p.Timeout = scraper.MaxTimeout
	}
}

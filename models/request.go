package models

import "encoding/json"

// ExtractRequest is the payload for POST /api/v1/extract.
//
// It runs the pipeline on JSON blobs the caller already holds, without a
// browser. Any source may be omitted.
type ExtractRequest struct {
	Context ExtractionContext `json:"context" binding:"required"`

	EmbeddedState    json.RawMessage `json:"embedded_state,omitempty"`
	APIResponse      json.RawMessage `json:"api_response,omitempty"`
	StructuredMarkup json.RawMessage `json:"structured_markup,omitempty"`

	// HTML, when set, is searched for ItemList blocks and used as the
	// structured-markup source if StructuredMarkup is empty.
	HTML string `json:"html,omitempty"`
}

// RunRequest is the payload for POST /api/v1/runs.
type RunRequest struct {
	// CategoryURLs are listing pages to visit. Required.
	CategoryURLs []string `json:"category_urls" binding:"required,min=1,max=50,dive,url"`

	// Locale is the site locale path ("uk/en"). Derived from the first URL
	// path when empty.
	Locale string `json:"locale,omitempty"`

	// TargetCount stops the run once this many unique products are saved.
	// Default: 100. Max: 10000.
	TargetCount int `json:"target_count,omitempty" binding:"omitempty,min=1,max=10000"`

	// MaxPages bounds pagination per category. Default: 5. Max: 50.
	MaxPages int `json:"max_pages,omitempty" binding:"omitempty,min=1,max=50"`

	// Timeout is the per-page deadline in seconds. Default: 45. Max: 120.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`

	// Stealth enables anti-bot-detection evasions on each page.
	Stealth bool `json:"stealth,omitempty"`

	// Actions run on every page after navigation (cookie banners, lazy loading).
	Actions []Action `json:"actions,omitempty" binding:"omitempty,max=20,dive"`

	WebhookURL    string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *RunRequest) Defaults() {
	if r.TargetCount == 0 {
		r.TargetCount = 100
	}
	if r.MaxPages == 0 {
		r.MaxPages = 5
	}
	if r.Timeout == 0 {
		r.Timeout = 45
	}
}

// Action is one browser step run after navigation.
type Action struct {
	// Type is "wait", "click", "scroll" or "execute_js".
	Type string `json:"type" yaml:"type" binding:"required,oneof=wait click scroll execute_js"`

	Selector     string `json:"selector,omitempty" yaml:"selector,omitempty"`
	Milliseconds int    `json:"milliseconds,omitempty" yaml:"milliseconds,omitempty"`

	// Amount is the number of viewports to scroll. Default: 1.
	Amount int `json:"amount,omitempty" yaml:"amount,omitempty"`

	// Direction is "down" (default) or "up".
	Direction string `json:"direction,omitempty" yaml:"direction,omitempty"`

	Code string `json:"code,omitempty" yaml:"code,omitempty"`

	// Optional actions never fail the visit.
	Optional bool `json:"optional,omitempty" yaml:"optional,omitempty"`
}

package models

// NormalizedProduct is the canonical catalog record emitted by the pipeline.
//
// ProductID and Name are always non-empty. Every other field degrades to
// null (nil) instead of blocking emission.
type NormalizedProduct struct {
	// ProductID is the site identifier with any trailing variant suffix
	// ("-I<digits>") stripped. Stable across repeated extraction.
	ProductID string `json:"productId" bson:"_id"`

	Name string `json:"name" bson:"name"`

	// Price is in major currency units (pounds, not pence).
	Price *float64 `json:"price" bson:"price"`

	// Currency is an ISO 4217 code; the configured fallback when absent.
	Currency string `json:"currency" bson:"currency"`

	// CurrencyDefaulted reports that Currency is the configured fallback
	// rather than a value read from the source. Not serialized.
	CurrencyDefaulted bool `json:"-" bson:"-"`

	// ImageURL is absolute with the query string removed.
	ImageURL *string `json:"imageUrl" bson:"image_url"`

	// ProductURL is absolute against the site's canonical host.
	ProductURL *string `json:"productUrl" bson:"product_url"`

	Availability *string `json:"availability" bson:"availability"`
	Category     *string `json:"category" bson:"category"`
	Subcategory  *string `json:"subcategory" bson:"subcategory"`
	Colors       []any   `json:"colors" bson:"colors"`
}

// Clone returns a copy that shares no pointers with p.
func (p NormalizedProduct) Clone() NormalizedProduct {
	out := p
	out.Price = clonePtr(p.Price)
	out.ImageURL = clonePtr(p.ImageURL)
	out.ProductURL = clonePtr(p.ProductURL)
	out.Availability = clonePtr(p.Availability)
	out.Category = clonePtr(p.Category)
	out.Subcategory = clonePtr(p.Subcategory)
	if p.Colors != nil {
		out.Colors = append([]any(nil), p.Colors...)
	}
	return out
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// ExtractionContext is the immutable per-page-visit input supplied by the
// automation collaborator.
type ExtractionContext struct {
	// Locale is the site locale path, e.g. "uk/en".
	Locale string `json:"locale" binding:"required"`

	// BaseURL is the site's canonical origin, e.g. "https://www.example.com".
	BaseURL string `json:"base_url" binding:"required,url"`

	// CategoryID is optional; the internal API is only reachable with it.
	CategoryID string `json:"category_id,omitempty"`

	// TargetCount is the number of records the run wants in total.
	TargetCount int `json:"target_count" binding:"required,min=1"`

	// Page is the 1-based listing page this visit covers.
	Page int `json:"page,omitempty"`
}

// LocalePrefix returns the locale as a site-root path ("/uk/en"), or "" when
// no locale is set.
func (c ExtractionContext) LocalePrefix() string {
	l := trimSlashes(c.Locale)
	if l == "" {
		return ""
	}
	return "/" + l
}

func trimSlashes(s string) string {
	for len(s) > 0 && s[0] == '/' {
		s = s[1:]
	}
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// Package engine fetches the site's internal JSON endpoints.
//
// Engines are tried cheapest first by a Dispatcher: a plain HTTP client with
// a Chrome TLS fingerprint, then an in-page fetch through the live browser
// session. The host's last winning engine is remembered and tried first.
package engine

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Engine fetches one URL.
type Engine interface {
	// Name returns the engine identifier ("http", "page").
	Name() string

	// Fetch returns a result only for 2xx responses; anything else is an
	// error, a *StatusError when the server answered.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest describes one endpoint fetch.
type FetchRequest struct {
	URL     string
	Headers map[string]string
	Cookies []http.Cookie
	Timeout time.Duration
}

// FetchResult is a successful response.
type FetchResult struct {
	Body        []byte
	ContentType string
	StatusCode  int
	FinalURL    string
	EngineName  string
}

// StatusError reports a non-2xx answer.
type StatusError struct {
	Engine string
	Status int
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d for %s", e.Engine, e.Status, e.URL)
}

func ok(status int) bool {
	return status >= 200 && status < 300
}

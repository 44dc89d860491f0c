// Package webhook delivers signed run events to caller-supplied endpoints.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// Event types.
const (
	EventRunPage      = "run.page"
	EventRunCompleted = "run.completed"
	EventRunFailed    = "run.failed"
)

// SignatureHeader carries "sha256=<hex HMAC of the body>".
const SignatureHeader = "X-Catalog-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string `json:"type"`
	RunID     string `json:"run_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// NewEvent stamps an event with the current time.
func NewEvent(typ, runID string, data any) *Event {
	return &Event{Type: typ, RunID: runID, Timestamp: time.Now().Unix(), Data: data}
}

// Options tune delivery.
type Options struct {
	Timeout    time.Duration // default: 10s
	MaxRetries int           // default: 3
	RetryWait  time.Duration // default: 1s, doubling up to 30s
}

// Notifier posts events. It is safe for concurrent use.
type Notifier struct {
	client *resty.Client
}

// New creates a Notifier.
func New(opts Options) *Notifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = time.Second
	}
	client := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.MaxRetries).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(30*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "Catalog-Webhook/1.0").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == 429 || r.StatusCode() >= 500
		})
	return &Notifier{client: client}
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Deliver sends an event synchronously, retrying transient failures. The
// body is signed when secret is non-empty.
func (n *Notifier) Deliver(ctx context.Context, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req := n.client.R().SetContext(ctx).SetBody(body)
	if secret != "" {
		req.SetHeader(SignatureHeader, Sign(secret, body))
	}

	resp, err := req.Post(url)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode())
	}
	return nil
}

// DeliverAsync sends an event in the background and logs the outcome.
func (n *Notifier) DeliverAsync(url, secret string, event *Event) {
	if n == nil || url == "" {
		return
	}
	go func() {
		if err := n.Deliver(context.Background(), url, secret, event); err != nil {
			slog.Error("webhook delivery failed",
				"url", url,
				"event", event.Type,
				"run_id", event.RunID,
				"error", err,
			)
			return
		}
		slog.Info("webhook delivered", "url", url, "event", event.Type, "run_id", event.RunID)
	}()
}

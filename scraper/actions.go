package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/use-agent/catalog/models"
)

// actionTimeout is the per-action deadline.
const actionTimeout = 10 * time.Second

// scrollPause lets lazy-loaded tiles request their data between steps.
const scrollPause = 250 * time.Millisecond

// executeActions runs the ordered list of browser actions on the page.
// Optional actions that fail are logged and skipped; any other failure stops
// the list.
func executeActions(ctx context.Context, page *rod.Page, actions []models.Action) error {
	for i, action := range actions {
		err := executeSingleAction(ctx, page, action)
		if err == nil {
			continue
		}
		if action.Optional {
			slog.Debug("optional action failed", "index", i, "type", action.Type, "selector", action.Selector, "error", err)
			continue
		}
		return models.NewCatalogError(
			models.ErrCodeActionFailed,
			fmt.Sprintf("action %d (%s) failed after %d completed", i, action.Type, i),
			err,
		)
	}
	return nil
}

// executeSingleAction dispatches a single action with its own timeout.
func executeSingleAction(ctx context.Context, page *rod.Page, action models.Action) error {
	actionCtx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	p := page.Context(actionCtx)

	switch action.Type {
	case "wait":
		return execWait(p, action)
	case "click":
		return execClick(p, action)
	case "scroll":
		return execScroll(p, action)
	case "execute_js":
		return execJS(p, action)
	default:
		return fmt.Errorf("unknown action type: %s", action.Type)
	}
}

// execWait either waits for a CSS selector to appear or sleeps.
func execWait(p *rod.Page, action models.Action) error {
	if action.Selector != "" {
		return p.WaitElementsMoreThan(action.Selector, 0)
	}
	if action.Milliseconds > 0 {
		return sleepCtx(p.GetContext(), time.Duration(action.Milliseconds)*time.Millisecond)
	}
	return nil
}

// execClick clicks the first element matching the selector.
func execClick(p *rod.Page, action models.Action) error {
	if action.Selector == "" {
		return fmt.Errorf("click action requires a selector")
	}
	el, err := p.Element(action.Selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", action.Selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// execScroll scrolls by whole viewports, pausing between steps so
// infinite-scroll listings fetch the next tiles.
func execScroll(p *rod.Page, action models.Action) error {
	amount := action.Amount
	if amount <= 0 {
		amount = 1
	}

	res, err := p.Eval(`() => window.innerHeight`)
	if err != nil {
		return fmt.Errorf("failed to get viewport height: %w", err)
	}
	delta := float64(res.Value.Int())
	if action.Direction == "up" {
		delta = -delta
	}

	for i := 0; i < amount; i++ {
		if err := p.Mouse.Scroll(0, delta, 0); err != nil {
			return fmt.Errorf("scroll step %d failed: %w", i, err)
		}
		if err := sleepCtx(p.GetContext(), scrollPause); err != nil {
			return err
		}
	}
	return nil
}

// execJS evaluates arbitrary JavaScript in the page context.
func execJS(p *rod.Page, action models.Action) error {
	if action.Code == "" {
		return fmt.Errorf("execute_js action requires code")
	}
	_, err := p.Eval(action.Code)
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

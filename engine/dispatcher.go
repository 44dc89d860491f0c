package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// Dispatcher runs engines in a staged race: engines[i] starts after
// delays[i] unless an earlier engine has already succeeded.
type Dispatcher struct {
	engines []Engine
	delays  []time.Duration
	memory  *DomainMemory
}

// NewDispatcher creates a Dispatcher. Missing delays default to 0. memory may
// be nil.
func NewDispatcher(engines []Engine, delays []time.Duration, memory *DomainMemory) *Dispatcher {
	d := make([]time.Duration, len(engines))
	copy(d, delays)
	return &Dispatcher{engines: engines, delays: d, memory: memory}
}

// Dispatch returns the first successful result. When every engine fails, the
// returned error is the most informative one: a *StatusError if any engine
// got an HTTP answer, otherwise the last error seen.
func (d *Dispatcher) Dispatch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if len(d.engines) == 0 {
		return nil, fmt.Errorf("dispatcher: no engines configured")
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	host := hostOf(req.URL)

	// ── 1. Remembered engine ────────────────────────────────────────
	if name := d.memory.Get(host); name != "" {
		if eng := d.byName(name); eng != nil {
			res, err := eng.Fetch(ctx, req)
			if err == nil {
				return res, nil
			}
			slog.Debug("dispatcher: remembered engine failed, racing all",
				"host", host, "engine", name, "error", err)
			d.memory.Delete(host)
		}
	}

	// ── 2. Staged race ──────────────────────────────────────────────
	return d.race(ctx, req, host)
}

func (d *Dispatcher) byName(name string) Engine {
	for _, e := range d.engines {
		if e.Name() == name {
			return e
		}
	}
	return nil
}

type attempt struct {
	res *FetchResult
	err error
}

func (d *Dispatcher) race(ctx context.Context, req *FetchRequest, host string) (*FetchResult, error) {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan attempt, len(d.engines))
	var wg sync.WaitGroup
	for i, eng := range d.engines {
		wg.Add(1)
		go func(e Engine, delay time.Duration) {
			defer wg.Done()
			if delay > 0 {
				t := time.NewTimer(delay)
				defer t.Stop()
				select {
				case <-raceCtx.Done():
					return
				case <-t.C:
				}
			}
			if raceCtx.Err() != nil {
				return
			}
			res, err := e.Fetch(raceCtx, req)
			results <- attempt{res: res, err: err}
		}(eng, d.delays[i])
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		lastErr   error
		statusErr *StatusError
	)
	for a := range results {
		if a.err != nil {
			var se *StatusError
			if errors.As(a.err, &se) {
				statusErr = se
			}
			lastErr = a.err
			continue
		}
		cancel()
		d.memory.Set(host, a.res.EngineName)
		slog.Debug("dispatcher: engine won", "engine", a.res.EngineName, "url", req.URL)
		return a.res, nil
	}

	if statusErr != nil {
		return nil, statusErr
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("dispatcher: all engines failed for %s", req.URL)
	}
	return nil, lastErr
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}

// Package tracker holds the run-scoped dedup set and saved count.
package tracker

import (
	"sync"

	"github.com/use-agent/catalog/models"
)

// State is shared by every page visit of one run. Accept applies a whole
// batch under one lock so concurrent batches never overshoot the target.
type State struct {
	mu     sync.Mutex
	target int
	seen   map[string]struct{}
	saved  int
}

// New creates the state for a run that wants target records.
func New(target int) *State {
	return &State{
		target: target,
		seen:   make(map[string]struct{}),
	}
}

// Accept returns the subset of batch to persist, in input order: records
// whose id has not been seen, up to the remaining quota. Skipped records do
// not enter the seen set.
func (s *State) Accept(batch []models.NormalizedProduct) []models.NormalizedProduct {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.NormalizedProduct
	for _, p := range batch {
		if s.saved >= s.target {
			break
		}
		if p.ProductID == "" {
			continue
		}
		if _, dup := s.seen[p.ProductID]; dup {
			continue
		}
		s.seen[p.ProductID] = struct{}{}
		s.saved++
		out = append(out, p)
	}
	return out
}

// Saved returns the number of accepted records.
func (s *State) Saved() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}

// Target returns the run's target count.
func (s *State) Target() int {
	return s.target
}

// Remaining returns how many more records the run accepts.
func (s *State) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved >= s.target {
		return 0
	}
	return s.target - s.saved
}

// Done reports whether the target has been reached.
func (s *State) Done() bool {
	return s.Remaining() == 0
}

// Seen reports whether id has been accepted.
func (s *State) Seen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[id]
	return ok
}

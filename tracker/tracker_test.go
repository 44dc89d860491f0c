package tracker

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/catalog/models"
)

func batch(ids ...string) []models.NormalizedProduct {
	out := make([]models.NormalizedProduct, len(ids))
	for i, id := range ids {
		out[i] = models.NormalizedProduct{ProductID: id, Name: "n-" + id, Currency: "GBP"}
	}
	return out
}

func TestAcceptStopsAtTarget(t *testing.T) {
	s := New(2)
	got := s.Accept(batch("p1", "p2", "p3", "p4", "p5"))

	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].ProductID)
	assert.Equal(t, "p2", got[1].ProductID)
	assert.Equal(t, 2, s.Saved())
	assert.True(t, s.Seen("p1"))
	assert.True(t, s.Seen("p2"))
	assert.False(t, s.Seen("p3"))
	assert.True(t, s.Done())
	assert.Empty(t, s.Accept(batch("p6")))
}

func TestAcceptSkipsSeenAcrossBatches(t *testing.T) {
	s := New(10)
	first := s.Accept(batch("a", "b", "a"))
	second := s.Accept(batch("b", "c", ""))

	assert.Len(t, first, 2)
	require.Len(t, second, 1)
	assert.Equal(t, "c", second[0].ProductID)
	assert.Equal(t, 3, s.Saved())
	assert.Equal(t, 7, s.Remaining())
}

func TestAcceptConcurrentNeverOvershoots(t *testing.T) {
	const target = 50
	s := New(target)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		all []models.NormalizedProduct
	)
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			ids := make([]string, 20)
			for i := range ids {
				// Overlapping id ranges across workers.
				ids[i] = fmt.Sprintf("p%03d", (w*7+i)%90)
			}
			got := s.Accept(batch(ids...))
			mu.Lock()
			all = append(all, got...)
			mu.Unlock()
		}(w)
	}
	wg.Wait()

	assert.Equal(t, target, s.Saved())
	assert.Len(t, all, target)

	seen := make(map[string]bool)
	for _, p := range all {
		assert.False(t, seen[p.ProductID], "duplicate %s", p.ProductID)
		seen[p.ProductID] = true
	}
}

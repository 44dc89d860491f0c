package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliverSigned(t *testing.T) {
	var (
		gotSig  string
		gotBody []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := New(Options{Timeout: time.Second, MaxRetries: 0})
	ev := NewEvent(EventRunCompleted, "run_1", map[string]int{"saved": 3})
	require.NoError(t, n.Deliver(context.Background(), srv.URL, "s3cret", ev))

	assert.Equal(t, Sign("s3cret", gotBody), gotSig)

	var decoded Event
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	assert.Equal(t, EventRunCompleted, decoded.Type)
	assert.Equal(t, "run_1", decoded.RunID)
}

func TestDeliverUnsigned(t *testing.T) {
	var hadSig atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hadSig.Store(r.Header.Get(SignatureHeader) != "")
	}))
	defer srv.Close()

	n := New(Options{})
	require.NoError(t, n.Deliver(context.Background(), srv.URL, "", NewEvent(EventRunPage, "run_2", nil)))
	assert.False(t, hadSig.Load())
}

func TestDeliverRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(Options{Timeout: time.Second, MaxRetries: 3, RetryWait: 5 * time.Millisecond})
	require.NoError(t, n.Deliver(context.Background(), srv.URL, "", NewEvent(EventRunFailed, "run_3", nil)))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDeliverClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	n := New(Options{Timeout: time.Second, MaxRetries: 3, RetryWait: 5 * time.Millisecond})
	err := n.Deliver(context.Background(), srv.URL, "", NewEvent(EventRunPage, "run_4", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "410")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSign(t *testing.T) {
	assert.Equal(t,
		"sha256=f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8",
		Sign("key", []byte("The quick brown fox jumps over the lazy dog")),
	)
}

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/catalog/models"
)

func TestStrictJSON(t *testing.T) {
	got, err := strictJSON(`{products: [{id: 'p1',},]}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"products":[{"id":"p1"}]}`, string(got))

	got, err = strictJSON("null")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = strictJSON(`{oops`)
	assert.Error(t, err)
}

func TestGetRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("X-API-Key"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/runs/r1":
			_, _ = w.Write([]byte(`{"id":"r1","status":"partial","target_count":10,"saved_count":4,
				"pages":[{"url":"u","page":1,"category_id":"737","outcome":"found","accepted":4,"timing":{"total_ms":5,"extraction_ms":1}},
				{"url":"u","page":2,"category_id":"737","outcome":"no_products_found","empty_reason":"blocked","accepted":0,"timing":{"total_ms":5,"extraction_ms":1}}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"success":false,"error":{"code":"NOT_FOUND","message":"run not found"}}`))
		}
	}))
	defer srv.Close()

	client := newClient(srv.URL+"/", "k")

	run, err := getRun(context.Background(), client, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.RunPartial, run.Status)
	require.Len(t, run.Pages, 2)

	text := formatRun(run)
	assert.Contains(t, text, "Run r1: partial, saved 4 of 10")
	assert.Contains(t, text, "737 page 1: found, 4 accepted")
	assert.Contains(t, text, "737 page 2: no_products_found (blocked)")

	_, err = getRun(context.Background(), client, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[NOT_FOUND] run not found")
}

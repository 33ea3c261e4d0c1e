package portal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(maxRetries int) *Client {
	return NewClient(Options{
		MaxRetries:        maxRetries,
		RequestsPerSecond: 1000,
	})
}

func TestFetchText_Success(t *testing.T) {
	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		w.Write([]byte("Navn: Jonas Beck\nTelefon: 98 76 54 32\n")) //nolint:errcheck
	}))
	defer srv.Close()

	text, err := newTestClient(3).FetchText(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, text, "Jonas Beck")
	assert.Equal(t, "leadflow/1.0", gotUA.Load())
}

func TestFetchText_RetriesOnTooManyRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	text, err := newTestClient(3).FetchText(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.EqualValues(t, 2, calls.Load())
}

func TestFetchText_ServerErrorsExhaustRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(2).FetchText(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retries exhausted")
	assert.EqualValues(t, 2, calls.Load())
}

func TestFetchText_NonRetryableStatusFailsFast(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(3).FetchText(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
	assert.EqualValues(t, 1, calls.Load())
}

func TestFetchText_BodyIsCapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for range 1000 {
			w.Write([]byte("xxxxxxxxxx")) //nolint:errcheck
		}
	}))
	defer srv.Close()

	c := NewClient(Options{MaxRetries: 1, RequestsPerSecond: 1000, MaxBodyBytes: 64})
	text, err := c.FetchText(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, text, 64)
}

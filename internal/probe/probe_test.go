package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func modelsServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestProber_WaitReady(t *testing.T) {
	srv := modelsServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[{"id":"meta-llama/Llama-3.1-8B","object":"model"}]}`))
	})

	p := New(srv.URL, "EMPTY", WithTimeout(time.Second), WithInterval(10*time.Millisecond))
	assert.NoError(t, p.WaitReady(context.Background()))
}

func TestProber_WaitReady_EventuallyUp(t *testing.T) {
	var calls atomic.Int32
	srv := modelsServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "loading", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[{"id":"m","object":"model"}]}`))
	})

	p := New(srv.URL, "EMPTY", WithTimeout(5*time.Second), WithInterval(10*time.Millisecond))
	require.NoError(t, p.WaitReady(context.Background()))
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestProber_WaitReady_Timeout(t *testing.T) {
	srv := modelsServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "loading", http.StatusServiceUnavailable)
	})

	p := New(srv.URL, "EMPTY", WithTimeout(50*time.Millisecond), WithInterval(10*time.Millisecond))
	err := p.WaitReady(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready")
}

func TestProber_WaitReady_NoModels(t *testing.T) {
	srv := modelsServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[]}`))
	})

	p := New(srv.URL, "EMPTY", WithTimeout(50*time.Millisecond), WithInterval(10*time.Millisecond))
	assert.Error(t, p.WaitReady(context.Background()))
}

func TestProber_WaitReady_Cancelled(t *testing.T) {
	srv := modelsServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "loading", http.StatusServiceUnavailable)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(srv.URL, "EMPTY", WithTimeout(time.Minute), WithInterval(time.Minute))
	err := p.WaitReady(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTransport_RetryLimitReached covers spec.md §8 scenario 1: a single
// endpoint with max_endpoint_retries=3 that always returns Retry exhausts
// its local budget, gets marked failed, and (being the only endpoint) is
// immediately un-failed and retried; the global retry_limit bounds the
// total number of attempts and Call returns ErrRetryLimitReached.
func TestTransport_RetryLimitReached(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	transport := NewTransport(
		[]EndpointConfig{{URL: srv.URL, Weight: 1, MaxEndpointRetries: 3}},
		10, 1*time.Millisecond, 0,
		zerolog.Nop(),
	)

	_, err := transport.Call(context.Background(), "query", map[string]string{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetryLimitReached)
	assert.Equal(t, int32(10), atomic.LoadInt32(&calls))
}

// TestTransport_SwitchesEndpointOn429 covers spec.md §8 scenario 2: A
// always returns SwitchEndpoint, B succeeds. Expected exactly 1 call on A,
// 1 on B, final result Ok.
func TestTransport_SwitchesEndpointOn429(t *testing.T) {
	var primaryCalls, secondaryCalls int32

	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&primaryCalls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer primary.Close()

	secondary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&secondaryCalls, 1)
		writeRPCResult(w, map[string]string{"ok": "true"})
	}))
	defer secondary.Close()

	transport := NewTransport(
		[]EndpointConfig{
			{URL: primary.URL, Weight: 1000, MaxEndpointRetries: 3},
			{URL: secondary.URL, Weight: 0.001, MaxEndpointRetries: 3},
		},
		5, 1*time.Millisecond, 0,
		zerolog.Nop(),
	)

	result, err := transport.Call(context.Background(), "query", map[string]string{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":"true"}`, string(result))
	assert.Equal(t, int32(1), atomic.LoadInt32(&primaryCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&secondaryCalls))
}

func TestTransport_FatalOn4xxDoesNotRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	transport := NewTransport(
		[]EndpointConfig{{URL: srv.URL, Weight: 1, MaxEndpointRetries: 10}},
		5, 1*time.Millisecond, 0,
		zerolog.Nop(),
	)

	_, err := transport.Call(context.Background(), "query", map[string]string{})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func writeRPCResult(w http.ResponseWriter, v interface{}) {
	raw, _ := json.Marshal(v)
	envelope := rpcEnvelope{JSONRPC: "2.0", ID: "agent", Result: raw}
	out, _ := json.Marshal(envelope)
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, string(out))
}

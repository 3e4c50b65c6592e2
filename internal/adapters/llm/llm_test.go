package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/resq-agent/internal/adapters/llm"
)

func TestParseReply(t *testing.T) {
	tests := []struct {
		raw   string
		value string
		found bool
	}{
		{"  house fire \n", "house fire", true},
		{`"MG Road, Pune"`, "MG Road, Pune", true},
		{"undefined", "", false},
		{"Undefined.", "", false},
		{"No value found", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		value, found := llm.ParseReply(tt.raw)
		assert.Equal(t, tt.value, value, tt.raw)
		assert.Equal(t, tt.found, found, tt.raw)
	}
}

func TestOllamaRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, false, req["stream"])
		assert.Equal(t, "neural-chat", req["model"])

		if calls.Add(1) < 3 {
			http.Error(w, "model loading", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"response": " cardiac arrest "})
	}))
	defer srv.Close()

	ex := llm.NewExtractor(
		llm.NewOllamaClient(srv.URL, "neural-chat", time.Second),
		"ollama",
		llm.RetryPolicy{Attempts: 3, Backoff: time.Millisecond},
	)

	value, found, err := ex.Extract(context.Background(), "what happened?")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "cardiac arrest", value)
	assert.EqualValues(t, 3, calls.Load())
}

func TestOllamaGivesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ex := llm.NewExtractor(
		llm.NewOllamaClient(srv.URL, "neural-chat", time.Second),
		"ollama",
		llm.RetryPolicy{Attempts: 3, Backoff: time.Millisecond},
	)

	_, _, err := ex.Extract(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.EqualValues(t, 3, calls.Load())
}

func TestSentinelIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "undefined"})
	}))
	defer srv.Close()

	ex := llm.NewExtractor(llm.NewOllamaClient(srv.URL, "m", time.Second), "ollama", llm.DefaultRetryPolicy)

	value, found, err := ex.Extract(context.Background(), "prompt")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, value)
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	ex := llm.NewExtractor(
		llm.NewOllamaClient(srv.URL, "m", time.Second),
		"ollama",
		llm.RetryPolicy{Attempts: 3, Backoff: time.Hour},
	)

	start := time.Now()
	_, _, err := ex.Extract(ctx, "prompt")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestMockEchoesLatestCallerLine(t *testing.T) {
	m := llm.NewMockLLM()
	ctx := context.Background()

	out, err := m.Generate(ctx, "Transcript: Dispatcher: where are you?\nCaller: near the bus stand\nLocation:")
	require.NoError(t, err)
	assert.Equal(t, "near the bus stand", out)

	out, err = m.Generate(ctx, "Transcript: Dispatcher: 1 1 2, what is your emergency?")
	require.NoError(t, err)
	assert.Equal(t, "undefined", out)

	out, err = m.Generate(ctx, "Caller: yes\nAsk a question. Dispatcher:\n")
	require.NoError(t, err)
	assert.NotEqual(t, "yes", out)
}

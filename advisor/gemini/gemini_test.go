package gemini

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

	"github.com/rustyeddy/fxpilot/advisor"
	"github.com/rustyeddy/fxpilot/market"
)

func reply(w http.ResponseWriter, text string) {
	json.NewEncoder(w).Encode(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	})
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(Config{
		APIKey:      "k",
		Model:       "gemini-test",
		BaseURL:     url,
		MaxAttempts: 3,
		MinWait:     time.Millisecond,
		MaxWait:     5 * time.Millisecond,
	}, nil)
	require.NoError(t, err)
	return c
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-goog-api-key"))

		var body generateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 0.2, body.GenerationConfig.Temperature)
		assert.Equal(t, "application/json", body.GenerationConfig.ResponseMimeType)
		if assert.Len(t, body.Contents, 1) {
			assert.Contains(t, body.Contents[0].Parts[0].Text, "EURUSD on the H1 timeframe")
		}

		reply(w, `{"decision":"SELL","confidence":0.8,"stop_loss_pips":25,"take_profit_pips":50,"rationale":"lower highs"}`)
	}))
	defer server.Close()

	sig, err := newTestClient(t, server.URL).Evaluate(context.Background(), advisor.Request{
		Symbol:    "EURUSD",
		Timeframe: market.H1,
		Technical: "ATR(H1)=0.00120",
	})
	require.NoError(t, err)
	assert.Equal(t, advisor.Sell, sig.Decision)
	assert.Equal(t, 25.0, sig.StopLossPips)
}

func TestEvaluate_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			reply(w, "not json at all")
		default:
			reply(w, `{"decision":"FLAT","confidence":0.3,"stop_loss_pips":10,"take_profit_pips":20,"rationale":"range"}`)
		}
	}))
	defer server.Close()

	sig, err := newTestClient(t, server.URL).Evaluate(context.Background(), advisor.Request{Symbol: "GBPUSD", Timeframe: market.M15})
	require.NoError(t, err)
	assert.Equal(t, advisor.Flat, sig.Decision)
	assert.Equal(t, int32(3), calls.Load())
}

func TestEvaluate_InvalidAfterRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		reply(w, `{"decision":"MAYBE"}`)
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).Evaluate(context.Background(), advisor.Request{Symbol: "EURUSD", Timeframe: market.H1})
	assert.ErrorIs(t, err, advisor.ErrInvalidResponse)
	assert.Equal(t, int32(3), calls.Load())
}

func TestEvaluate_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).Evaluate(context.Background(), advisor.Request{Symbol: "EURUSD", Timeframe: market.H1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Equal(t, int32(1), calls.Load())
}

func TestPromptPlaceholders(t *testing.T) {
	c, err := New(Config{
		APIKey:                "k",
		PromptTemplate:        "{symbol}|{timeframe}|{technical}|{sentiment}|{ohlcv}|{sl_atr_multiplier}|{tp_multiple}",
		StopLossATRMultiplier: 1.8,
		TakeProfitMultiple:    2,
	}, nil)
	require.NoError(t, err)

	p, err := c.Prompt(advisor.Request{
		Symbol:    "USDJPY",
		Timeframe: market.M15,
		Technical: "tech",
		Sentiment: "calm",
	})
	require.NoError(t, err)
	assert.Equal(t, `USDJPY|M15|tech|calm|{"data":[]}|1.8|2`, p)
}

func TestBackoff(t *testing.T) {
	c, err := New(Config{APIKey: "k"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, c.backoff(1))
	assert.Equal(t, 4*time.Second, c.backoff(2))
	assert.Equal(t, 8*time.Second, c.backoff(3))
	assert.Equal(t, 16*time.Second, c.backoff(4))
	assert.Equal(t, 20*time.Second, c.backoff(5))
}

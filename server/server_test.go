package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/fxpilot/bot"
	"github.com/rustyeddy/fxpilot/risk"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeController struct {
	mu       sync.Mutex
	running  bool
	params   risk.Params
	starts   int
	stops    int
	startErr error
	stopErr  error
}

func newFake() *fakeController {
	return &fakeController{params: risk.DefaultParams()}
}

func (f *fakeController) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}

func (f *fakeController) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.running = false
	return f.stopErr
}

func (f *fakeController) Status() bot.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return bot.Snapshot{
		Running:             f.running,
		RiskPerTrade:        f.params.RiskPerTrade,
		MaxConcurrentTrades: f.params.MaxConcurrentTrades,
		MaxDailyDrawdown:    f.params.MaxDailyDrawdown,
		RecentSignals:       []bot.SignalRecord{},
		Notes:               []string{},
	}
}

func (f *fakeController) UpdateRisk(p risk.Params) (bot.Snapshot, error) {
	if err := p.Validate(); err != nil {
		return bot.Snapshot{}, err
	}
	f.mu.Lock()
	f.params = p
	f.mu.Unlock()
	return f.Status(), nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}

func TestStatus(t *testing.T) {
	s := New(newFake(), Options{}, nil)

	w := do(t, s.Handler(), http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	m := decode(t, w)
	assert.Equal(t, false, m["running"])
	assert.Equal(t, 0.01, m["riskPerTrade"])
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}

func TestControl(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		startErr    error
		wantCode    int
		wantRunning any
		wantDetail  string
	}{
		{name: "start", body: `{"action":"start"}`, wantCode: http.StatusOK, wantRunning: true},
		{name: "stop", body: `{"action":"stop"}`, wantCode: http.StatusOK, wantRunning: false},
		{name: "refresh", body: `{"action":"refresh"}`, wantCode: http.StatusOK, wantRunning: false},
		{name: "unknown", body: `{"action":"launch"}`, wantCode: http.StatusBadRequest, wantDetail: "Unknown action."},
		{name: "missing action", body: `{}`, wantCode: http.StatusBadRequest},
		{name: "bad json", body: `{`, wantCode: http.StatusBadRequest},
		{name: "start fails", body: `{"action":"start"}`, startErr: errors.New("connect gateway: refused"),
			wantCode: http.StatusServiceUnavailable, wantDetail: "connect gateway: refused"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFake()
			f.startErr = tt.startErr
			s := New(f, Options{}, nil)

			w := do(t, s.Handler(), http.MethodPost, "/control", tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			m := decode(t, w)
			if tt.wantRunning != nil {
				assert.Equal(t, tt.wantRunning, m["running"])
			}
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, m["detail"])
			}
		})
	}
}

func TestControlStartStopSequence(t *testing.T) {
	f := newFake()
	h := New(f, Options{}, nil).Handler()

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/control", `{"action":"start"}`).Code)
	assert.Equal(t, true, decode(t, do(t, h, http.MethodGet, "/status", ""))["running"])
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/control", `{"action":"stop"}`).Code)
	assert.Equal(t, false, decode(t, do(t, h, http.MethodGet, "/status", ""))["running"])
	assert.Equal(t, 1, f.starts)
	assert.Equal(t, 1, f.stops)
}

func TestConfig(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"valid", `{"riskPerTrade":0.02,"maxConcurrentTrades":5,"maxDailyDrawdown":0.05}`, http.StatusOK},
		{"out of range", `{"riskPerTrade":0.5,"maxConcurrentTrades":5,"maxDailyDrawdown":0.05}`, http.StatusUnprocessableEntity},
		{"too many slots", `{"riskPerTrade":0.01,"maxConcurrentTrades":50,"maxDailyDrawdown":0.05}`, http.StatusUnprocessableEntity},
		{"missing field", `{"riskPerTrade":0.01,"maxConcurrentTrades":5}`, http.StatusBadRequest},
		{"negative", `{"riskPerTrade":-0.01,"maxConcurrentTrades":5,"maxDailyDrawdown":0.05}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFake()
			h := New(f, Options{}, nil).Handler()

			w := do(t, h, http.MethodPost, "/config", tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantCode == http.StatusOK {
				m := decode(t, w)
				assert.Equal(t, 0.02, m["riskPerTrade"])
				assert.Equal(t, float64(5), m["maxConcurrentTrades"])
				assert.Equal(t, 0.05, m["maxDailyDrawdown"])
			} else {
				assert.Equal(t, risk.DefaultParams(), f.params)
			}
		})
	}
}

func TestPingMetricsAndPreflight(t *testing.T) {
	h := New(newFake(), Options{}, nil).Handler()

	w := do(t, h, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())

	w = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "fxpilot_cycles_total")

	w = do(t, h, http.MethodOptions, "/control", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := New(newFake(), Options{}, nil).Handler()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))
}

func TestRateLimit(t *testing.T) {
	h := New(newFake(), Options{RateLimitPerMinute: 3}, nil).Handler()

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/status", "").Code, fmt.Sprint(i))
	}
	w := do(t, h, http.MethodGet, "/status", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestIPRateLimiterPerAddress(t *testing.T) {
	l := NewIPRateLimiter(1)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s := New(newFake(), Options{ShutdownTimeout: time.Second}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

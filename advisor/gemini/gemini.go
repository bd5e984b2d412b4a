// Package gemini implements advisor.Advisor on the Gemini generateContent API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/fxpilot/advisor"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-1.5-pro"

	DefaultMaxAttempts = 4
	DefaultTimeout     = 60 * time.Second
)

// DefaultPromptTemplate is used when no template is configured.
const DefaultPromptTemplate = `You are an FX trading assistant. Analyse {symbol} on the {timeframe} timeframe.

Technical summary: {technical}
Sentiment: {sentiment}
Recent bars (JSON): {ohlcv}

Place stops around {sl_atr_multiplier} x ATR and targets at {tp_multiple} x the stop distance.
Answer with a single JSON object with the keys decision (BUY, SELL or FLAT),
confidence (0 to 1), stop_loss_pips (> 0), take_profit_pips (> 0) and rationale.`

type Config struct {
	APIKey         string
	Model          string
	BaseURL        string
	PromptTemplate string
	Timeout        time.Duration
	MaxAttempts    int

	// Guidance substituted into the prompt.
	StopLossATRMultiplier float64
	TakeProfitMultiple    float64

	// Backoff bounds between attempts; zero means 2s and 20s.
	MinWait time.Duration
	MaxWait time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *zap.Logger
}

var _ advisor.Advisor = (*Client)(nil)

func New(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PromptTemplate == "" {
		cfg.PromptTemplate = DefaultPromptTemplate
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.MinWait <= 0 {
		cfg.MinWait = 2 * time.Second
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 20 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.Named("gemini"),
	}, nil
}

// Prompt renders the template for req.
func (c *Client) Prompt(req advisor.Request) (string, error) {
	ohlcv, err := advisor.SnapshotJSON(req.Snapshot)
	if err != nil {
		return "", err
	}
	r := strings.NewReplacer(
		"{symbol}", req.Symbol,
		"{timeframe}", req.Timeframe.String(),
		"{ohlcv}", ohlcv,
		"{sentiment}", req.Sentiment,
		"{technical}", req.Technical,
		"{sl_atr_multiplier}", strconv.FormatFloat(c.cfg.StopLossATRMultiplier, 'f', -1, 64),
		"{tp_multiple}", strconv.FormatFloat(c.cfg.TakeProfitMultiple, 'f', -1, 64),
	)
	return r.Replace(c.cfg.PromptTemplate), nil
}

// Evaluate asks the model for a signal, retrying transient failures and
// malformed answers with exponential backoff.
func (c *Client) Evaluate(ctx context.Context, req advisor.Request) (advisor.Signal, error) {
	prompt, err := c.Prompt(req)
	if err != nil {
		return advisor.Signal{}, err
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := c.backoff(attempt - 1)
			c.log.Warn("retrying advisor call",
				zap.String("symbol", req.Symbol),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return advisor.Signal{}, ctx.Err()
			case <-time.After(wait):
			}
		}

		text, err := c.generate(ctx, prompt)
		if err == nil {
			c.log.Debug("advisor raw response", zap.String("symbol", req.Symbol), zap.String("text", text))
			var sig advisor.Signal
			sig, err = advisor.ParseSignal(text)
			if err == nil {
				return sig, nil
			}
		}

		lastErr = err
		if !isRetryable(err) {
			return advisor.Signal{}, err
		}
	}
	return advisor.Signal{}, fmt.Errorf("gemini: failed after %d attempts: %w", c.cfg.MaxAttempts, lastErr)
}

// backoff doubles from MinWait and is capped at MaxWait.
func (c *Client) backoff(n int) time.Duration {
	d := c.cfg.MinWait << (n - 1)
	if d > c.cfg.MaxWait || d <= 0 {
		d = c.cfg.MaxWait
	}
	return d
}

type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gemini http %d: %s", e.Status, e.Body)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.Status == http.StatusTooManyRequests || se.Status >= 500
	}
	return true
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:      0.2,
			ResponseMimeType: "application/json",
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &statusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var gr generateResponse
	if err := json.Unmarshal(data, &gr); err != nil {
		return "", fmt.Errorf("%w: %v", advisor.ErrInvalidResponse, err)
	}

	var sb strings.Builder
	for _, cand := range gr.Candidates {
		for _, p := range cand.Content.Parts {
			sb.WriteString(p.Text)
		}
		if sb.Len() > 0 {
			break
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: empty payload", advisor.ErrInvalidResponse)
	}
	return sb.String(), nil
}

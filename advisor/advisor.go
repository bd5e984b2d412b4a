// Package advisor defines the contract with the external trade advisory
// service and the strict parsing of its answers.
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rustyeddy/fxpilot/market"
)

type Decision string

const (
	Buy  Decision = "BUY"
	Sell Decision = "SELL"
	Flat Decision = "FLAT"
)

// ErrInvalidResponse means the advisor answered with a payload that does not
// match the Signal schema.
var ErrInvalidResponse = errors.New("invalid advisor response")

// Bar is one row of the market snapshot sent to the advisor.
type Bar struct {
	Time   string  `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"tick_volume"`
}

// Request is everything the advisor sees for one symbol.
type Request struct {
	Symbol    string
	Timeframe market.Timeframe
	Technical string
	Snapshot  []Bar
	Sentiment string
}

type Signal struct {
	Decision       Decision
	Confidence     float64
	StopLossPips   float64
	TakeProfitPips float64
	Rationale      string
}

type Advisor interface {
	Evaluate(ctx context.Context, req Request) (Signal, error)
}

// Func adapts a function to Advisor.
type Func func(ctx context.Context, req Request) (Signal, error)

func (f Func) Evaluate(ctx context.Context, req Request) (Signal, error) { return f(ctx, req) }

// BarsFromCandles renders candles for the snapshot payload.
func BarsFromCandles(candles []market.Candle) []Bar {
	out := make([]Bar, len(candles))
	for i, c := range candles {
		out[i] = Bar{
			Time:   c.Time.UTC().Format(time.DateTime),
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		}
	}
	return out
}

// SnapshotJSON encodes bars as {"data": [...]}.
func SnapshotJSON(bars []Bar) (string, error) {
	if bars == nil {
		bars = []Bar{}
	}
	b, err := json.Marshal(struct {
		Data []Bar `json:"data"`
	}{bars})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type wireSignal struct {
	Decision       string   `json:"decision" validate:"required,oneof=BUY SELL FLAT"`
	Confidence     *float64 `json:"confidence" validate:"required,gte=0,lte=1"`
	StopLossPips   *float64 `json:"stop_loss_pips" validate:"required,gt=0"`
	TakeProfitPips *float64 `json:"take_profit_pips" validate:"required,gt=0"`
	Rationale      *string  `json:"rationale" validate:"required"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once

	reJSONFence = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ParseSignal decodes and validates an advisor payload. Any deviation from
// the schema is reported as ErrInvalidResponse.
func ParseSignal(text string) (Signal, error) {
	s := strings.TrimSpace(text)
	if m := reJSONFence.FindStringSubmatch(s); len(m) > 1 {
		s = m[1]
	}
	if s == "" {
		return Signal{}, fmt.Errorf("%w: empty payload", ErrInvalidResponse)
	}

	var w wireSignal
	if err := json.Unmarshal([]byte(s), &w); err != nil {
		return Signal{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	w.Decision = strings.ToUpper(strings.TrimSpace(w.Decision))
	if err := getValidator().Struct(w); err != nil {
		return Signal{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	return Signal{
		Decision:       Decision(w.Decision),
		Confidence:     *w.Confidence,
		StopLossPips:   *w.StopLossPips,
		TakeProfitPips: *w.TakeProfitPips,
		Rationale:      *w.Rationale,
	}, nil
}

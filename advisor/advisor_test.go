package advisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/fxpilot/market"
)

func TestParseSignal(t *testing.T) {
	t.Parallel()

	sig, err := ParseSignal(`{"decision":"buy","confidence":0.72,"stop_loss_pips":18,"take_profit_pips":36,"rationale":"breakout above range"}`)
	require.NoError(t, err)
	assert.Equal(t, Signal{
		Decision:       Buy,
		Confidence:     0.72,
		StopLossPips:   18,
		TakeProfitPips: 36,
		Rationale:      "breakout above range",
	}, sig)

	fenced := "```json\n{\"decision\":\"FLAT\",\"confidence\":0,\"stop_loss_pips\":10,\"take_profit_pips\":20,\"rationale\":\"\"}\n```"
	sig, err = ParseSignal(fenced)
	require.NoError(t, err)
	assert.Equal(t, Flat, sig.Decision)
	assert.Zero(t, sig.Confidence)
}

func TestParseSignal_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"empty", "  "},
		{"not json", "I would buy EURUSD"},
		{"unknown decision", `{"decision":"HOLD","confidence":0.7,"stop_loss_pips":10,"take_profit_pips":20,"rationale":"x"}`},
		{"confidence above one", `{"decision":"BUY","confidence":1.5,"stop_loss_pips":10,"take_profit_pips":20,"rationale":"x"}`},
		{"missing confidence", `{"decision":"BUY","stop_loss_pips":10,"take_profit_pips":20,"rationale":"x"}`},
		{"zero stop", `{"decision":"SELL","confidence":0.7,"stop_loss_pips":0,"take_profit_pips":20,"rationale":"x"}`},
		{"negative target", `{"decision":"SELL","confidence":0.7,"stop_loss_pips":10,"take_profit_pips":-5,"rationale":"x"}`},
		{"missing rationale", `{"decision":"SELL","confidence":0.7,"stop_loss_pips":10,"take_profit_pips":5}`},
		{"wrong type", `{"decision":"SELL","confidence":"high","stop_loss_pips":10,"take_profit_pips":5,"rationale":"x"}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseSignal(tt.body)
			assert.ErrorIs(t, err, ErrInvalidResponse)
		})
	}
}

func TestSnapshotJSON(t *testing.T) {
	t.Parallel()

	bars := BarsFromCandles([]market.Candle{{
		Time:  time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
		Open:  1.1, High: 1.2, Low: 1.0, Close: 1.15, Volume: 42,
	}})
	s, err := SnapshotJSON(bars)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[{"time":"2024-03-04 09:00:00","open":1.1,"high":1.2,"low":1.0,"close":1.15,"tick_volume":42}]}`, s)

	s, err = SnapshotJSON(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[]}`, s)
}

func TestFunc(t *testing.T) {
	var got Request
	a := Func(func(ctx context.Context, req Request) (Signal, error) {
		got = req
		return Signal{Decision: Flat}, nil
	})
	sig, err := a.Evaluate(context.Background(), Request{Symbol: "EURUSD"})
	require.NoError(t, err)
	assert.Equal(t, Flat, sig.Decision)
	assert.Equal(t, "EURUSD", got.Symbol)
}

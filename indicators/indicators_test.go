package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/fxpilot/market"
)

func TestATR_ConstantRange(t *testing.T) {
	t.Parallel()

	candles := make([]market.Candle, 30)
	for i := range candles {
		candles[i] = market.Candle{Open: 1.1, High: 1.1010, Low: 1.0990, Close: 1.1}
	}

	atr, err := ATR(candles, 14)
	require.NoError(t, err)
	assert.InDelta(t, 0.0020, atr, 1e-9)
}

func TestATR_UsesPreviousClose(t *testing.T) {
	t.Parallel()

	// each bar gaps 0.01 above the previous close with a 0.002 range
	candles := make([]market.Candle, 20)
	for i := range candles {
		base := 1.0 + 0.01*float64(i)
		candles[i] = market.Candle{High: base + 0.002, Low: base, Close: base + 0.001}
	}

	atr, err := ATR(candles, 14)
	require.NoError(t, err)
	// |high - prevClose| = 0.011 dominates the 0.002 range
	assert.InDelta(t, 0.011, atr, 1e-9)
}

func TestATR_NotEnoughData(t *testing.T) {
	t.Parallel()

	_, err := ATR(make([]market.Candle, 14), 14)
	assert.ErrorIs(t, err, ErrNotEnoughData)

	_, err = ATR(make([]market.Candle, 30), 0)
	assert.Error(t, err)
}

func TestRSI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		closes []float64
		want   float64
		isNaN  bool
	}{
		{
			name:   "alternating equal moves",
			closes: alternating(30, 1.0, 0.01),
			want:   50,
		},
		{
			name:   "only gains",
			closes: ramp(30, 1.0, 0.01),
			isNaN:  true,
		},
		{
			name:   "only losses",
			closes: ramp(30, 2.0, -0.01),
			want:   0,
		},
		{
			name:   "flat",
			closes: ramp(30, 1.0, 0),
			isNaN:  true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := RSI(tt.closes, 14)
			require.NoError(t, err)
			if tt.isNaN {
				assert.True(t, math.IsNaN(got), "got %v", got)
				return
			}
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestRSI_KnownWindow(t *testing.T) {
	t.Parallel()

	// 10 up moves of 0.02 and 4 down moves of 0.01 inside the last window
	closes := []float64{1.0}
	for i := 0; i < 10; i++ {
		closes = append(closes, closes[len(closes)-1]+0.02)
	}
	for i := 0; i < 4; i++ {
		closes = append(closes, closes[len(closes)-1]-0.01)
	}

	got, err := RSI(closes, 14)
	require.NoError(t, err)
	// avgGain = 0.2/14, avgLoss = 0.04/14, rs = 5
	assert.InDelta(t, 100-100.0/6, got, 1e-6)
}

func TestTrendSign(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, TrendSign(ramp(20, 1, 0.001), 10))
	assert.Equal(t, -1, TrendSign(ramp(20, 1, -0.001), 10))
	assert.Equal(t, 0, TrendSign(ramp(20, 1, 0), 10))
	assert.Equal(t, 0, TrendSign([]float64{1}, 10))
	// shorter than the window uses the first close
	assert.Equal(t, 1, TrendSign([]float64{1, 2, 3}, 10))
}

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func alternating(n int, start, step float64) []float64 {
	out := make([]float64, n)
	out[0] = start
	for i := 1; i < n; i++ {
		if i%2 == 1 {
			out[i] = out[i-1] + step
		} else {
			out[i] = out[i-1] - step
		}
	}
	return out
}

package indicators

import (
	"github.com/markcheno/go-talib"

	"github.com/rustyeddy/fxpilot/market"
)

// ATR is the simple moving average of true range over period, last value.
func ATR(candles []market.Candle, period int) (float64, error) {
	if err := checkWindow(len(candles), period); err != nil {
		return 0, err
	}

	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}

	tr := talib.TRange(highs, lows, closes)
	// first bar has no previous close
	tr[0] = highs[0] - lows[0]

	atr := talib.Sma(tr, period)
	return atr[len(atr)-1], nil
}

package strategy

import (
	"fmt"
	"math"

	"github.com/rustyeddy/fxpilot/indicators"
	"github.com/rustyeddy/fxpilot/market"
)

// Features are the technical values extracted from a price history.
type Features struct {
	ATR   float64
	RSI   float64 // NaN when the window had no losses
	Close float64
	Trend int
}

func extractFeatures(candles []market.Candle) (Features, error) {
	atr, err := indicators.ATR(candles, ATRPeriod)
	if err != nil {
		return Features{}, err
	}
	closes := market.Closes(candles)
	rsi, err := indicators.RSI(closes, RSIPeriod)
	if err != nil {
		return Features{}, err
	}
	return Features{
		ATR:   atr,
		RSI:   rsi,
		Close: closes[len(closes)-1],
		Trend: indicators.TrendSign(closes, TrendWindow),
	}, nil
}

// Summary renders the features for the advisor prompt.
func (f Features) Summary(tf market.Timeframe) string {
	rsi := "n/a"
	if !math.IsNaN(f.RSI) {
		rsi = fmt.Sprintf("%.2f", f.RSI)
	}
	return fmt.Sprintf("ATR(%s)=%.5f, RSI(%s)=%s, Close=%.5f, Trend=%d",
		tf, f.ATR, tf, rsi, f.Close, f.Trend)
}

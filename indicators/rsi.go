package indicators

import (
	"math"

	"github.com/markcheno/go-talib"
)

// RSI uses simple rolling means of gains and losses rather than Wilder
// smoothing. It is NaN when the average loss over the window is zero.
func RSI(closes []float64, period int) (float64, error) {
	if err := checkWindow(len(closes), period); err != nil {
		return 0, err
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}

	avgGain := talib.Sma(gains, period)
	avgLoss := talib.Sma(losses, period)
	g, l := avgGain[len(avgGain)-1], avgLoss[len(avgLoss)-1]
	if l <= 0 {
		return math.NaN(), nil
	}
	return 100 - 100/(1+g/l), nil
}

// TrendSign is the sign of the net change over the last n closes: 1, -1 or 0.
func TrendSign(closes []float64, n int) int {
	if len(closes) < 2 || n <= 0 {
		return 0
	}
	first := len(closes) - 1 - n
	if first < 0 {
		first = 0
	}
	d := closes[len(closes)-1] - closes[first]
	switch {
	case d > 0:
		return 1
	case d < 0:
		return -1
	}
	return 0
}

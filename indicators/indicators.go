// Package indicators computes the technical features fed to the advisor.
//
// Values are batch computed over a candle window with go-talib and only the
// last row is returned.
package indicators

import (
	"errors"
	"fmt"
)

var ErrNotEnoughData = errors.New("not enough data")

func checkWindow(n, period int) error {
	if period <= 0 {
		return fmt.Errorf("period must be positive, got %d", period)
	}
	if n < period+1 {
		return fmt.Errorf("%w: need %d bars, got %d", ErrNotEnoughData, period+1, n)
	}
	return nil
}

package broker

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/fxpilot/market"
)

var (
	// ErrConnection means the gateway is unreachable or not authenticated.
	ErrConnection = errors.New("gateway connection error")
	// ErrDataUnavailable means the gateway answered but had no usable data.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrNoTick is the "none" answer of CurrentTick.
	ErrNoTick = errors.New("no tick available")
	// ErrSymbolUnavailable means instrument metadata could not be resolved.
	ErrSymbolUnavailable = errors.New("symbol unavailable")

	ErrUnsupportedTimeframe = market.ErrUnsupportedTimeframe
)

// OrderRejectedError carries the gateway's rejection code and message.
type OrderRejectedError struct {
	Code    string
	Message string
}

func (e *OrderRejectedError) Error() string {
	return fmt.Sprintf("order rejected: %s %s", e.Code, e.Message)
}

// IsOrderRejected unwraps err looking for an OrderRejectedError.
func IsOrderRejected(err error) (*OrderRejectedError, bool) {
	var rej *OrderRejectedError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

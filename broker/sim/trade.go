package sim

import (
	"time"

	"github.com/rustyeddy/fxpilot/broker"
)

// Trade is a paper position. Units are signed: positive long, negative short.
type Trade struct {
	ID         string
	Symbol     string
	Volume     float64 // lots
	Units      float64
	EntryPrice float64
	OpenTime   time.Time

	Stop   float64 // 0 means none
	Target float64 // 0 means none

	Comment string

	ClosePrice  float64
	CloseTime   time.Time
	CloseReason string
	RealizedPL  float64 // account currency
	Open        bool
}

func (t *Trade) Side() broker.Side {
	if t.Units < 0 {
		return broker.Sell
	}
	return broker.Buy
}

// markPrice is the side of the quote a trade would close on.
func markPrice(t *Trade, bid, ask float64) float64 {
	if t.Units < 0 {
		return ask
	}
	return bid
}

func hitStopLoss(t *Trade, mark float64) bool {
	if t.Stop <= 0 {
		return false
	}
	if t.Units > 0 {
		return mark <= t.Stop
	}
	return mark >= t.Stop
}

func hitTakeProfit(t *Trade, mark float64) bool {
	if t.Target <= 0 {
		return false
	}
	if t.Units > 0 {
		return mark >= t.Target
	}
	return mark <= t.Target
}

// UnrealizedPL values t at price in the account currency.
func UnrealizedPL(t Trade, price, quoteToAccount float64) float64 {
	return t.Units * (price - t.EntryPrice) * quoteToAccount
}

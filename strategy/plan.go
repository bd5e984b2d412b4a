package strategy

import (
	"github.com/rustyeddy/fxpilot/advisor"
	"github.com/rustyeddy/fxpilot/broker"
	"github.com/rustyeddy/fxpilot/market"
)

// TradePlan is an approved, fully priced and sized order for one symbol.
// It is built once per cycle and consumed by the bot.
type TradePlan struct {
	Symbol     string
	Timeframe  market.Timeframe
	Direction  advisor.Decision
	Confidence float64
	Entry      float64
	Stop       float64
	Target     float64
	StopPips   float64
	Volume     float64 // lots
	Rationale  string
}

// Side maps the plan's direction onto an order side.
func (p *TradePlan) Side() broker.Side {
	if p.Direction == advisor.Sell {
		return broker.Sell
	}
	return broker.Buy
}

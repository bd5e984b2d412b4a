package broker

import (
	"context"
	"strings"
	"time"

	"github.com/rustyeddy/fxpilot/market"
)

// Gateway is the market data and execution collaborator of the control loop.
//
// Connect and Disconnect bracket a running bot. Implementations are not
// required to be safe for concurrent use; the bot never calls them
// concurrently.
type Gateway interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	Account(ctx context.Context) (Account, error)
	OpenPositions(ctx context.Context) ([]Position, error)
	PriceHistory(ctx context.Context, symbol string, tf market.Timeframe, count int) ([]market.Candle, error)
	// CurrentTick returns ErrNoTick when no quote is available.
	CurrentTick(ctx context.Context, symbol string) (market.Tick, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	Instrument(ctx context.Context, symbol string) (market.Instrument, error)
}

// InstrumentSource is the part of a Gateway the risk manager needs.
type InstrumentSource interface {
	Instrument(ctx context.Context, symbol string) (market.Instrument, error)
}

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

func ParseSide(s string) (Side, bool) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case Buy:
		return Buy, true
	case Sell:
		return Sell, true
	}
	return "", false
}

// Sign is +1 for Buy and -1 for Sell.
func (s Side) Sign() float64 {
	if s == Sell {
		return -1
	}
	return 1
}

type Account struct {
	Currency string
	Balance  float64
	Equity   float64
	Profit   float64 // floating P/L of open positions
}

type Position struct {
	Ticket     string
	Symbol     string
	Side       Side
	Volume     float64 // lots
	EntryPrice float64
	Stop       float64
	Target     float64
	Profit     float64
}

type OrderRequest struct {
	Symbol    string
	Side      Side
	Volume    float64 // lots
	Price     float64 // expected fill (ask for buys, bid for sells)
	Stop      float64
	Target    float64
	Deviation int // tolerated slippage in points
	Tag       int // identifies orders placed by this bot
	Comment   string
}

type OrderResult struct {
	OrderID string
	Price   float64
	Time    time.Time
}

// HasPosition reports whether positions contains one on symbol.
func HasPosition(positions []Position, symbol string) bool {
	for _, p := range positions {
		if market.SameSymbol(p.Symbol, symbol) {
			return true
		}
	}
	return false
}

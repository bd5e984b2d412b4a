// Package sim is a paper-trading gateway: orders fill locally against the
// quotes of a Feed, and stops and targets trigger when the account is read.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/fxpilot/broker"
	"github.com/rustyeddy/fxpilot/market"
	"github.com/rustyeddy/fxpilot/pkg/id"
)

var (
	ErrTradeNotFound      = errors.New("trade not found")
	ErrTradeAlreadyClosed = errors.New("trade already closed")
)

type Gateway struct {
	mu          sync.Mutex
	feed        Feed
	instruments broker.InstrumentSource
	acct        broker.Account
	trades      map[string]*Trade
	connected   bool
	log         *zap.Logger
	now         func() time.Time
}

var _ broker.Gateway = (*Gateway)(nil)

type Option func(*Gateway)

// WithInstruments resolves instrument metadata through src instead of the
// built-in table.
func WithInstruments(src broker.InstrumentSource) Option {
	return func(g *Gateway) { g.instruments = src }
}

func WithLogger(log *zap.Logger) Option {
	return func(g *Gateway) { g.log = log.Named("paper") }
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// NewGateway returns a paper account holding balance in currency.
func NewGateway(feed Feed, currency string, balance float64, opts ...Option) *Gateway {
	g := &Gateway{
		feed:   feed,
		acct:   broker.Account{Currency: currency, Balance: balance, Equity: balance},
		trades: make(map[string]*Trade),
		log:    zap.NewNop(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Gateway) Connect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.feed == nil {
		return fmt.Errorf("%w: paper gateway has no price feed", broker.ErrConnection)
	}
	g.connected = true
	g.log.Info("paper account ready", zap.String("currency", g.acct.Currency), zap.Float64("balance", g.acct.Balance))
	return nil
}

func (g *Gateway) Disconnect(ctx context.Context) error {
	g.mu.Lock()
	g.connected = false
	g.mu.Unlock()
	return nil
}

func (g *Gateway) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

// Account marks every open trade to market, closing those whose stop or
// target has been reached, and returns the resulting balances.
func (g *Gateway) Account(ctx context.Context) (broker.Account, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.revalueLocked(ctx)
	return g.acct, nil
}

func (g *Gateway) OpenPositions(ctx context.Context) ([]broker.Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.revalueLocked(ctx)

	out := make([]broker.Position, 0, len(g.trades))
	for _, t := range g.trades {
		if !t.Open {
			continue
		}
		out = append(out, broker.Position{
			Ticket:     t.ID,
			Symbol:     t.Symbol,
			Side:       t.Side(),
			Volume:     t.Volume,
			EntryPrice: t.EntryPrice,
			Stop:       t.Stop,
			Target:     t.Target,
			Profit:     g.unrealizedLocked(ctx, t),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticket < out[j].Ticket })
	return out, nil
}

func (g *Gateway) PriceHistory(ctx context.Context, symbol string, tf market.Timeframe, count int) ([]market.Candle, error) {
	if _, err := market.ParseTimeframe(string(tf)); err != nil {
		return nil, err
	}
	return g.feed.PriceHistory(ctx, symbol, tf, count)
}

func (g *Gateway) CurrentTick(ctx context.Context, symbol string) (market.Tick, error) {
	return g.feed.CurrentTick(ctx, symbol)
}

func (g *Gateway) Instrument(ctx context.Context, symbol string) (market.Instrument, error) {
	if g.instruments != nil {
		return g.instruments.Instrument(ctx, symbol)
	}
	in, ok := market.LookupInstrument(symbol)
	if !ok {
		return market.Instrument{}, fmt.Errorf("%w: %s", broker.ErrSymbolUnavailable, symbol)
	}
	return in, nil
}

// PlaceOrder fills a market order at the current ask (buys) or bid (sells).
func (g *Gateway) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	in, err := g.Instrument(ctx, req.Symbol)
	if err != nil {
		return broker.OrderResult{}, err
	}
	if req.Volume < in.VolumeMin || (in.VolumeMax > 0 && req.Volume > in.VolumeMax) {
		return broker.OrderResult{}, &broker.OrderRejectedError{
			Code:    "INVALID_VOLUME",
			Message: fmt.Sprintf("volume %.2f outside [%.2f, %.2f]", req.Volume, in.VolumeMin, in.VolumeMax),
		}
	}

	tick, err := g.feed.CurrentTick(ctx, req.Symbol)
	if err != nil || !tick.Valid() {
		return broker.OrderResult{}, &broker.OrderRejectedError{Code: "NO_PRICES", Message: "no quote for " + req.Symbol}
	}

	fill := tick.Ask
	if req.Side == broker.Sell {
		fill = tick.Bid
	}
	if req.Price > 0 && req.Deviation > 0 {
		slip := math.Abs(fill-req.Price) / in.PointSize
		if slip > float64(req.Deviation)+1e-6 {
			return broker.OrderResult{}, &broker.OrderRejectedError{
				Code:    "REQUOTE",
				Message: fmt.Sprintf("price moved %.1f points, tolerance %d", slip, req.Deviation),
			}
		}
	}
	if !stopsValid(req.Side, fill, req.Stop, req.Target) {
		return broker.OrderResult{}, &broker.OrderRejectedError{Code: "INVALID_STOPS", Message: "stop or target on the wrong side of the fill"}
	}

	now := g.now()
	t := &Trade{
		ID:         id.At(now),
		Symbol:     market.NormalizeSymbol(req.Symbol),
		Volume:     req.Volume,
		Units:      req.Side.Sign() * req.Volume * in.ContractSize,
		EntryPrice: fill,
		OpenTime:   now,
		Stop:       req.Stop,
		Target:     req.Target,
		Comment:    req.Comment,
		Open:       true,
	}

	g.mu.Lock()
	g.trades[t.ID] = t
	g.mu.Unlock()

	g.log.Info("paper fill",
		zap.String("ticket", t.ID),
		zap.String("symbol", t.Symbol),
		zap.String("side", string(req.Side)),
		zap.Float64("volume", t.Volume),
		zap.Float64("price", fill))

	return broker.OrderResult{OrderID: t.ID, Price: fill, Time: now}, nil
}

func stopsValid(side broker.Side, fill, stop, target float64) bool {
	if side == broker.Sell {
		return (stop == 0 || stop > fill) && (target == 0 || target < fill)
	}
	return (stop == 0 || stop < fill) && (target == 0 || target > fill)
}

// CloseTrade closes an open trade at the current quote.
func (g *Gateway) CloseTrade(ctx context.Context, ticket, reason string) (Trade, error) {
	if reason == "" {
		reason = "ManualClose"
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.trades[ticket]
	if !ok {
		return Trade{}, fmt.Errorf("close trade: %w: %q", ErrTradeNotFound, ticket)
	}
	if !t.Open {
		return Trade{}, fmt.Errorf("close trade: %w: %q", ErrTradeAlreadyClosed, ticket)
	}

	tick, err := g.feed.CurrentTick(ctx, t.Symbol)
	if err != nil {
		return Trade{}, fmt.Errorf("close trade: %w", err)
	}
	g.closeLocked(t, markPrice(t, tick.Bid, tick.Ask), reason)
	g.revalueLocked(ctx)
	return *t, nil
}

// ClosedTrades returns closed trades oldest first.
func (g *Gateway) ClosedTrades() []Trade {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []Trade
	for _, t := range g.trades {
		if !t.Open {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (g *Gateway) closeLocked(t *Trade, price float64, reason string) {
	pl := UnrealizedPL(*t, price, g.rate(t.Symbol, price))

	t.ClosePrice = price
	t.CloseTime = g.now()
	t.CloseReason = reason
	t.RealizedPL = pl
	t.Open = false

	g.acct.Balance += pl

	g.log.Info("paper close",
		zap.String("ticket", t.ID),
		zap.String("reason", reason),
		zap.Float64("price", price),
		zap.Float64("pl", pl))
}

// revalueLocked triggers stops and targets, then recomputes equity. Trades
// without a current quote keep their previous valuation at entry.
func (g *Gateway) revalueLocked(ctx context.Context) {
	var floating float64
	for _, t := range g.trades {
		if !t.Open {
			continue
		}
		tick, err := g.feed.CurrentTick(ctx, t.Symbol)
		if err != nil || !tick.Valid() {
			continue
		}

		mark := markPrice(t, tick.Bid, tick.Ask)
		switch {
		case hitStopLoss(t, mark):
			g.closeLocked(t, t.Stop, "StopLoss")
			continue
		case hitTakeProfit(t, mark):
			g.closeLocked(t, t.Target, "TakeProfit")
			continue
		}
		floating += UnrealizedPL(*t, mark, g.rate(t.Symbol, tick.Mid()))
	}

	g.acct.Profit = floating
	g.acct.Equity = g.acct.Balance + floating
}

func (g *Gateway) unrealizedLocked(ctx context.Context, t *Trade) float64 {
	tick, err := g.feed.CurrentTick(ctx, t.Symbol)
	if err != nil || !tick.Valid() {
		return 0
	}
	return UnrealizedPL(*t, markPrice(t, tick.Bid, tick.Ask), g.rate(t.Symbol, tick.Mid()))
}

// rate converts quote currency into account currency. Crosses that cannot
// be converted are valued in the quote currency.
func (g *Gateway) rate(symbol string, mid float64) float64 {
	r, err := market.QuoteToAccountRate(symbol, g.acct.Currency, mid)
	if err != nil {
		g.log.Debug("no conversion rate", zap.String("symbol", symbol), zap.Error(err))
		return 1
	}
	return r
}

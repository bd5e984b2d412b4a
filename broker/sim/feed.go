package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/rustyeddy/fxpilot/broker"
	"github.com/rustyeddy/fxpilot/market"
)

// Feed supplies market data to the paper gateway. The OANDA gateway
// satisfies it, so paper trading can run on live prices.
type Feed interface {
	PriceHistory(ctx context.Context, symbol string, tf market.Timeframe, count int) ([]market.Candle, error)
	CurrentTick(ctx context.Context, symbol string) (market.Tick, error)
}

// StaticFeed serves candles and ticks set by the caller.
type StaticFeed struct {
	mu      sync.RWMutex
	candles map[string][]market.Candle
	ticks   map[string]market.Tick
}

func NewStaticFeed() *StaticFeed {
	return &StaticFeed{
		candles: make(map[string][]market.Candle),
		ticks:   make(map[string]market.Tick),
	}
}

func (f *StaticFeed) SetCandles(symbol string, candles []market.Candle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candles[market.NormalizeSymbol(symbol)] = candles
}

func (f *StaticFeed) SetTick(tick market.Tick) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tick.Instrument = market.NormalizeSymbol(tick.Instrument)
	f.ticks[tick.Instrument] = tick
}

func (f *StaticFeed) ClearTick(symbol string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.ticks, market.NormalizeSymbol(symbol))
}

func (f *StaticFeed) PriceHistory(ctx context.Context, symbol string, tf market.Timeframe, count int) ([]market.Candle, error) {
	if _, err := market.ParseTimeframe(string(tf)); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	c := f.candles[market.NormalizeSymbol(symbol)]
	if len(c) == 0 {
		return nil, fmt.Errorf("%w: no candles for %s", broker.ErrDataUnavailable, symbol)
	}
	out := market.Tail(c, count)
	return append([]market.Candle(nil), out...), nil
}

func (f *StaticFeed) CurrentTick(ctx context.Context, symbol string) (market.Tick, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	t, ok := f.ticks[market.NormalizeSymbol(symbol)]
	if !ok {
		return market.Tick{}, fmt.Errorf("%w: %s", broker.ErrNoTick, symbol)
	}
	return t, nil
}

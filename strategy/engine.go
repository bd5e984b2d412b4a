// Package strategy turns price history and an advisor opinion into a sized
// trade plan.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/rustyeddy/fxpilot/advisor"
	"github.com/rustyeddy/fxpilot/broker"
	"github.com/rustyeddy/fxpilot/market"
	"github.com/rustyeddy/fxpilot/risk"
)

const (
	// MinConfidence is the lowest advisor confidence that can become a trade.
	MinConfidence = 0.6

	HistoryBars  = 300
	SnapshotBars = 50
	ATRPeriod    = 14
	RSIPeriod    = 14
	TrendWindow  = 10

	DefaultSentiment = "Risk sentiment neutral. Monitor central bank rhetoric and USD index bias."
)

// Market is the read side of the gateway used to build a plan.
type Market interface {
	PriceHistory(ctx context.Context, symbol string, tf market.Timeframe, count int) ([]market.Candle, error)
	CurrentTick(ctx context.Context, symbol string) (market.Tick, error)
	Instrument(ctx context.Context, symbol string) (market.Instrument, error)
}

type Engine struct {
	market    Market
	advisor   advisor.Advisor
	risk      *risk.Manager
	sentiment string
	log       *zap.Logger
}

func NewEngine(m Market, a advisor.Advisor, rm *risk.Manager, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		market:    m,
		advisor:   a,
		risk:      rm,
		sentiment: DefaultSentiment,
		log:       log.Named("strategy"),
	}
}

// BuildSignal returns a plan for symbol, or nil when no trade should be
// placed this cycle. Errors are per-symbol failures for the caller to record.
//
// Gates run in a fixed order: advisor decision and confidence, then the risk
// manager, then quote availability, then sizing. The advisor is consulted
// exactly once.
func (e *Engine) BuildSignal(ctx context.Context, symbol string, tf market.Timeframe, equity float64) (*TradePlan, error) {
	candles, err := e.market.PriceHistory(ctx, symbol, tf, HistoryBars)
	if err != nil {
		return nil, fmt.Errorf("price history %s %s: %w", symbol, tf, err)
	}

	feat, err := extractFeatures(candles)
	if err != nil {
		return nil, fmt.Errorf("%w: features %s: %v", broker.ErrDataUnavailable, symbol, err)
	}

	sig, err := e.advisor.Evaluate(ctx, advisor.Request{
		Symbol:    symbol,
		Timeframe: tf,
		Technical: feat.Summary(tf),
		Snapshot:  advisor.BarsFromCandles(market.Tail(candles, SnapshotBars)),
		Sentiment: e.sentiment,
	})
	if err != nil {
		return nil, fmt.Errorf("advisor %s: %w", symbol, err)
	}

	e.log.Info("advisor decision",
		zap.String("symbol", symbol),
		zap.String("decision", string(sig.Decision)),
		zap.Float64("confidence", sig.Confidence))

	if sig.Decision == advisor.Flat || sig.Confidence < MinConfidence {
		return nil, nil
	}

	if !e.risk.CanOpenTrade(equity) {
		e.log.Info("risk constraints prevent new trade", zap.String("symbol", symbol))
		return nil, nil
	}

	tick, err := e.market.CurrentTick(ctx, symbol)
	if err != nil || !tick.Valid() {
		e.log.Info("no tick, skipping", zap.String("symbol", symbol), zap.Error(err))
		return nil, nil
	}

	in, err := e.market.Instrument(ctx, symbol)
	if err != nil {
		if !errors.Is(err, broker.ErrSymbolUnavailable) {
			err = fmt.Errorf("%w: %v", broker.ErrSymbolUnavailable, err)
		}
		return nil, fmt.Errorf("instrument %s: %w", symbol, err)
	}

	plan := &TradePlan{
		Symbol:     symbol,
		Timeframe:  tf,
		Direction:  sig.Decision,
		Confidence: sig.Confidence,
		StopPips:   sig.StopLossPips,
		Rationale:  sig.Rationale,
	}

	dir := 1.0
	plan.Entry = tick.Ask
	if sig.Decision == advisor.Sell {
		dir = -1
		plan.Entry = tick.Bid
	}
	plan.Stop = roundPrice(plan.Entry-dir*sig.StopLossPips*in.PointSize, in.Digits)
	plan.Target = roundPrice(plan.Entry+dir*sig.TakeProfitPips*in.PointSize, in.Digits)

	plan.Volume, err = e.risk.ComputePositionSize(ctx, symbol, equity, sig.StopLossPips)
	if err != nil {
		return nil, fmt.Errorf("size %s: %w", symbol, err)
	}

	e.log.Debug("trade plan",
		zap.String("symbol", symbol),
		zap.String("side", string(plan.Direction)),
		zap.Float64("volume", plan.Volume),
		zap.Float64("rr", risk.RR(plan.Entry, plan.Stop, plan.Target)),
		zap.Float64("planned_loss", risk.PlannedLoss(plan.Volume, in.ContractSize, plan.Entry, plan.Stop)))
	return plan, nil
}

func roundPrice(p float64, digits int) float64 {
	if digits <= 0 {
		return p
	}
	f := math.Pow10(digits)
	return math.Round(p*f) / f
}

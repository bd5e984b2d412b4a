package strategy

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/fxpilot/advisor"
	"github.com/rustyeddy/fxpilot/broker"
	"github.com/rustyeddy/fxpilot/broker/sim"
	"github.com/rustyeddy/fxpilot/market"
	"github.com/rustyeddy/fxpilot/risk"
)

func syntheticCandles(n int, start float64) []market.Candle {
	out := make([]market.Candle, n)
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	price := start
	for i := range out {
		move := 0.0004 * math.Sin(float64(i)/3)
		open := price
		price += move
		out[i] = market.Candle{
			Time:   t0.Add(time.Duration(i) * time.Hour),
			Open:   open,
			High:   math.Max(open, price) + 0.0003,
			Low:    math.Min(open, price) - 0.0003,
			Close:  price,
			Volume: float64(100 + i),
		}
	}
	return out
}

type recorder struct {
	calls int
	last  advisor.Request
	sig   advisor.Signal
	err   error
}

func (r *recorder) Evaluate(ctx context.Context, req advisor.Request) (advisor.Signal, error) {
	r.calls++
	r.last = req
	return r.sig, r.err
}

type fixture struct {
	engine *Engine
	feed   *sim.StaticFeed
	gw     *sim.Gateway
	risk   *risk.Manager
	adv    *recorder
}

func newFixture(t *testing.T, sig advisor.Signal) *fixture {
	t.Helper()
	feed := sim.NewStaticFeed()
	feed.SetCandles("EURUSD", syntheticCandles(320, 1.1000))
	feed.SetCandles("USDJPY", syntheticCandles(320, 150.00))
	feed.SetTick(market.Tick{Instrument: "EURUSD", Bid: 1.10000, Ask: 1.10012})
	feed.SetTick(market.Tick{Instrument: "USDJPY", Bid: 150.000, Ask: 150.012})

	gw := sim.NewGateway(feed, "USD", 10_000)
	rm, err := risk.NewManager(risk.DefaultParams(), gw)
	require.NoError(t, err)

	adv := &recorder{sig: sig}
	return &fixture{
		engine: NewEngine(gw, adv, rm, nil),
		feed:   feed,
		gw:     gw,
		risk:   rm,
		adv:    adv,
	}
}

func buy(conf float64) advisor.Signal {
	return advisor.Signal{Decision: advisor.Buy, Confidence: conf, StopLossPips: 20, TakeProfitPips: 40, Rationale: "trend continuation"}
}

func TestBuildSignal_Buy(t *testing.T) {
	f := newFixture(t, buy(0.75))

	plan, err := f.engine.BuildSignal(context.Background(), "EURUSD", market.H1, 10_000)
	require.NoError(t, err)
	require.NotNil(t, plan)

	assert.Equal(t, advisor.Buy, plan.Direction)
	assert.Equal(t, broker.Buy, plan.Side())
	assert.Equal(t, 1.10012, plan.Entry)
	// 20 points below and 40 points above the ask
	assert.InDelta(t, 1.09992, plan.Stop, 1e-9)
	assert.InDelta(t, 1.10052, plan.Target, 1e-9)
	assert.InDelta(t, 0.50, plan.Volume, 1e-9)
	assert.Equal(t, "trend continuation", plan.Rationale)
	assert.Equal(t, 1, f.adv.calls)
}

func TestBuildSignal_SellMirrorsBracket(t *testing.T) {
	sig := buy(0.9)
	sig.Decision = advisor.Sell
	f := newFixture(t, sig)

	plan, err := f.engine.BuildSignal(context.Background(), "USDJPY", market.M15, 10_000)
	require.NoError(t, err)
	require.NotNil(t, plan)

	assert.Equal(t, broker.Sell, plan.Side())
	assert.Equal(t, 150.000, plan.Entry)
	assert.InDelta(t, 150.020, plan.Stop, 1e-9)
	assert.InDelta(t, 149.960, plan.Target, 1e-9)
}

func TestBuildSignal_RequestPayload(t *testing.T) {
	f := newFixture(t, advisor.Signal{Decision: advisor.Flat, Confidence: 0.2, StopLossPips: 1, TakeProfitPips: 1})

	_, err := f.engine.BuildSignal(context.Background(), "EURUSD", market.H1, 10_000)
	require.NoError(t, err)

	req := f.adv.last
	assert.Equal(t, "EURUSD", req.Symbol)
	assert.Equal(t, market.H1, req.Timeframe)
	assert.Len(t, req.Snapshot, SnapshotBars)
	assert.Equal(t, DefaultSentiment, req.Sentiment)
	assert.True(t, strings.HasPrefix(req.Technical, "ATR(H1)="), req.Technical)
	assert.Contains(t, req.Technical, "RSI(H1)=")
	assert.Contains(t, req.Technical, "Trend=")
}

func TestBuildSignal_Gates(t *testing.T) {
	tests := []struct {
		name  string
		sig   advisor.Signal
		setup func(f *fixture)
	}{
		{
			name: "flat with high confidence",
			sig:  advisor.Signal{Decision: advisor.Flat, Confidence: 0.9, StopLossPips: 10, TakeProfitPips: 20},
		},
		{
			name: "low confidence buy",
			sig:  buy(0.59),
		},
		{
			name: "at capacity",
			sig:  buy(0.8),
			setup: func(f *fixture) {
				f.risk.Reconcile(3)
			},
		},
		{
			name: "drawdown tripped",
			sig:  buy(0.8),
			setup: func(f *fixture) {
				f.risk.CheckDrawdown(20_000)
			},
		},
		{
			name: "no tick",
			sig:  buy(0.8),
			setup: func(f *fixture) {
				f.feed.ClearTick("EURUSD")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.sig)
			if tt.setup != nil {
				tt.setup(f)
			}
			plan, err := f.engine.BuildSignal(context.Background(), "EURUSD", market.H1, 10_000)
			require.NoError(t, err)
			assert.Nil(t, plan)
			assert.Equal(t, 1, f.adv.calls)
		})
	}
}

func TestBuildSignal_Errors(t *testing.T) {
	t.Run("invalid advisor response", func(t *testing.T) {
		f := newFixture(t, advisor.Signal{})
		f.adv.err = advisor.ErrInvalidResponse

		plan, err := f.engine.BuildSignal(context.Background(), "EURUSD", market.H1, 10_000)
		assert.Nil(t, plan)
		assert.ErrorIs(t, err, advisor.ErrInvalidResponse)
	})

	t.Run("no history", func(t *testing.T) {
		f := newFixture(t, buy(0.8))

		_, err := f.engine.BuildSignal(context.Background(), "GBPUSD", market.H1, 10_000)
		assert.ErrorIs(t, err, broker.ErrDataUnavailable)
		assert.Zero(t, f.adv.calls)
	})

	t.Run("short history", func(t *testing.T) {
		f := newFixture(t, buy(0.8))
		f.feed.SetCandles("EURUSD", syntheticCandles(10, 1.1))

		_, err := f.engine.BuildSignal(context.Background(), "EURUSD", market.H1, 10_000)
		assert.ErrorIs(t, err, broker.ErrDataUnavailable)
	})

	t.Run("unsupported timeframe", func(t *testing.T) {
		f := newFixture(t, buy(0.8))

		_, err := f.engine.BuildSignal(context.Background(), "EURUSD", market.Timeframe("W1"), 10_000)
		assert.ErrorIs(t, err, broker.ErrUnsupportedTimeframe)
	})

	t.Run("advisor failure", func(t *testing.T) {
		f := newFixture(t, buy(0.8))
		f.adv.err = errors.New("boom")

		_, err := f.engine.BuildSignal(context.Background(), "EURUSD", market.H1, 10_000)
		assert.EqualError(t, err, "advisor EURUSD: boom")
	})

	t.Run("zero stop distance", func(t *testing.T) {
		sig := buy(0.8)
		sig.StopLossPips = 0
		f := newFixture(t, sig)

		_, err := f.engine.BuildSignal(context.Background(), "EURUSD", market.H1, 10_000)
		assert.ErrorIs(t, err, risk.ErrInvalidInput)
	})
}

func TestFeaturesSummary(t *testing.T) {
	f := Features{ATR: 0.00123, RSI: math.NaN(), Close: 1.1, Trend: -1}
	assert.Equal(t, "ATR(M15)=0.00123, RSI(M15)=n/a, Close=1.10000, Trend=-1", f.Summary(market.M15))

	f.RSI = 55.555
	assert.Contains(t, f.Summary(market.M15), "RSI(M15)=55.56")
}

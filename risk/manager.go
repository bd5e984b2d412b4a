package risk

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/fxpilot/broker"
)

// BaselineStore persists the first equity seen on each trading day so a
// restart does not re-seed the drawdown baseline from reduced equity.
type BaselineStore interface {
	LoadBaseline(day time.Time) (equity float64, ok bool, err error)
	SaveBaseline(day time.Time, equity float64) error
}

// Manager gates new trades and sizes them. It is not safe for concurrent
// use; the bot serialises all access under its own lock.
type Manager struct {
	params      Params
	instruments broker.InstrumentSource
	loc         *time.Location
	now         func() time.Time
	store       BaselineStore
	log         *zap.Logger

	dayStartEquity float64
	hasBaseline    bool
	tripped        bool
	lastReset      time.Time
	openPositions  int
}

type Option func(*Manager)

// WithLocation sets the timezone whose midnight starts a trading day.
func WithLocation(loc *time.Location) Option {
	return func(m *Manager) {
		if loc != nil {
			m.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithBaselineStore(s BaselineStore) Option {
	return func(m *Manager) { m.store = s }
}

func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) { m.log = log.Named("risk") }
}

func NewManager(p Params, instruments broker.InstrumentSource, opts ...Option) (*Manager, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		params:      p,
		instruments: instruments,
		loc:         time.UTC,
		now:         time.Now,
		log:         zap.NewNop(),
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

func (m *Manager) Params() Params { return m.params }

// SetParams replaces the tunables after validating them.
func (m *Manager) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.params = p
	return nil
}

func (m *Manager) OpenPositions() int { return m.openPositions }

// Tripped reports whether the drawdown breaker has fired today.
func (m *Manager) Tripped() bool { return m.tripped }

// DayStartEquity returns the current baseline, if one has been set.
func (m *Manager) DayStartEquity() (float64, bool) {
	return m.dayStartEquity, m.hasBaseline
}

func (m *Manager) today() time.Time {
	y, mo, d := m.now().In(m.loc).Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, m.loc)
}

// ResetIfNewDay sets the baseline to equity on the first call of each
// calendar day. A persisted baseline for the same day wins over equity.
func (m *Manager) ResetIfNewDay(equity float64) {
	today := m.today()
	if m.hasBaseline && m.lastReset.Equal(today) {
		return
	}

	baseline := equity
	if m.store != nil {
		stored, ok, err := m.store.LoadBaseline(today)
		switch {
		case err != nil:
			m.log.Warn("load day baseline", zap.Error(err))
		case ok:
			baseline = stored
		default:
			if err := m.store.SaveBaseline(today, equity); err != nil {
				m.log.Warn("save day baseline", zap.Error(err))
			}
		}
	}

	m.dayStartEquity = baseline
	m.hasBaseline = true
	m.tripped = false
	m.lastReset = today
	m.log.Debug("daily risk counters reset",
		zap.Time("day", today),
		zap.Float64("baseline", baseline))
}

// CheckDrawdown is false once equity has fallen MaxDailyDrawdown or more
// below the day's baseline, and stays false until the next day even if
// equity recovers.
func (m *Manager) CheckDrawdown(equity float64) bool {
	m.ResetIfNewDay(equity)
	if !m.hasBaseline {
		m.dayStartEquity = equity
		m.hasBaseline = true
		return true
	}
	if m.tripped {
		return false
	}
	if m.dayStartEquity <= 0 {
		m.log.Warn("non-positive day baseline, blocking new trades", zap.Float64("baseline", m.dayStartEquity))
		return false
	}

	dd := (m.dayStartEquity - equity) / m.dayStartEquity
	if dd >= m.params.MaxDailyDrawdown {
		m.tripped = true
		m.log.Warn("daily drawdown breached",
			zap.Float64("drawdown", dd),
			zap.Float64("limit", m.params.MaxDailyDrawdown))
		return false
	}
	return true
}

func (m *Manager) CanOpenTrade(equity float64) bool {
	if !m.CheckDrawdown(equity) {
		return false
	}
	if m.openPositions >= m.params.MaxConcurrentTrades {
		m.log.Info("max concurrent trades reached", zap.Int("max", m.params.MaxConcurrentTrades))
		return false
	}
	return true
}

// ComputePositionSize returns the lots that risk RiskPerTrade of equity over
// stopPips, rounded to the volume step and clamped to the volume limits.
func (m *Manager) ComputePositionSize(ctx context.Context, symbol string, equity, stopPips float64) (float64, error) {
	if stopPips <= 0 {
		return 0, fmt.Errorf("%w: stop distance must be positive, got %v pips", ErrInvalidInput, stopPips)
	}

	in, err := m.instruments.Instrument(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", broker.ErrSymbolUnavailable, symbol, err)
	}
	if in.ContractSize <= 0 {
		return 0, fmt.Errorf("%w: %s has no contract size", broker.ErrSymbolUnavailable, symbol)
	}

	pipValue := in.ContractSize * PipSize(in)
	riskCapital := equity * m.params.RiskPerTrade
	raw := riskCapital / (stopPips * pipValue)
	lots := roundVolume(raw, in)

	m.log.Debug("position sizing",
		zap.String("symbol", symbol),
		zap.Float64("equity", equity),
		zap.Float64("risk", m.params.RiskPerTrade),
		zap.Float64("stop_pips", stopPips),
		zap.Float64("lots", lots))
	return lots, nil
}

func (m *Manager) RegisterOpenPosition() { m.openPositions++ }

func (m *Manager) RegisterClosedPosition() {
	if m.openPositions > 0 {
		m.openPositions--
	}
}

// Reconcile replaces the tracked count with the gateway's live count.
func (m *Manager) Reconcile(n int) {
	if n < 0 {
		n = 0
	}
	m.openPositions = n
}

// Package bot runs the trading loop: it refreshes the account, asks the
// strategy for a plan per symbol and executes approved plans through the
// gateway. All mutable state sits behind one mutex so operator calls see
// either the state before a cycle or after it, never the middle.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/fxpilot/advisor"
	"github.com/rustyeddy/fxpilot/broker"
	"github.com/rustyeddy/fxpilot/journal"
	"github.com/rustyeddy/fxpilot/market"
	"github.com/rustyeddy/fxpilot/pkg/id"
	"github.com/rustyeddy/fxpilot/risk"
	"github.com/rustyeddy/fxpilot/strategy"
)

const (
	// Deviation is the accepted slippage in points for market orders.
	Deviation = 15
	// MagicTag identifies orders placed by this bot.
	MagicTag = 424242

	CommentPrefix      = "FX Autopilot | "
	CommentRationale   = 48
	DefaultStopTimeout = 5 * time.Second
	disconnectTimeout  = 10 * time.Second
)

// SignalBuilder produces at most one plan per symbol per cycle.
type SignalBuilder interface {
	BuildSignal(ctx context.Context, symbol string, tf market.Timeframe, equity float64) (*strategy.TradePlan, error)
}

type Config struct {
	Symbols           []string
	Timeframes        []market.Timeframe
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	StopTimeout       time.Duration
}

type Bot struct {
	cfg      Config
	gateway  broker.Gateway
	strategy SignalBuilder
	risk     *risk.Manager
	journal  journal.Journal
	log      *zap.Logger
	now      func() time.Time

	// life serialises Start and Stop.
	life    sync.Mutex
	running atomic.Bool
	stop    chan struct{}
	done chan struct{}
	idle chan struct{} // closed once the previous run has disconnected

	mu    sync.Mutex
	state state
}

type Option func(*Bot)

func WithJournal(j journal.Journal) Option {
	return func(b *Bot) { b.journal = j }
}

func WithLogger(log *zap.Logger) Option {
	return func(b *Bot) { b.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(b *Bot) { b.now = now }
}

func New(cfg Config, gw broker.Gateway, sb SignalBuilder, rm *risk.Manager, opts ...Option) (*Bot, error) {
	if gw == nil || sb == nil || rm == nil {
		return nil, errors.New("bot: gateway, strategy and risk manager are required")
	}
	if len(cfg.Symbols) == 0 {
		return nil, errors.New("bot: no symbols configured")
	}
	if len(cfg.Timeframes) == 0 {
		return nil, errors.New("bot: no timeframes configured")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("bot: poll interval must be positive, got %s", cfg.PollInterval)
	}
	if cfg.HeartbeatInterval < 0 {
		cfg.HeartbeatInterval = 0
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}

	b := &Bot{
		cfg:      cfg,
		gateway:  gw,
		strategy: sb,
		risk:     rm,
		journal:  journal.Nop{},
		log:      zap.NewNop(),
		now:      time.Now,
		state:    newState(rm.Params()),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.Named("bot")
	return b, nil
}

// Start connects the gateway and launches the worker. Starting a running
// bot is a no-op. A connect failure leaves the bot stopped.
func (b *Bot) Start(ctx context.Context) error {
	b.life.Lock()
	defer b.life.Unlock()

	if b.running.Load() {
		return nil
	}

	// A worker from a previous run may still be finishing a cycle.
	if b.idle != nil {
		select {
		case <-b.idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := b.gateway.Connect(ctx); err != nil {
		b.mu.Lock()
		b.noteLocked(fmt.Sprintf("Start failed: %v", err))
		b.mu.Unlock()
		return fmt.Errorf("connect gateway: %w", err)
	}

	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	b.idle = nil
	go b.loop(b.stop, b.done)

	b.running.Store(true)
	metricRunning.Set(1)
	b.mu.Lock()
	b.noteLocked("Bot started.")
	b.mu.Unlock()
	return nil
}

// Stop signals the worker and waits up to the stop timeout for it to exit.
// The bot is reported stopped either way. A worker still inside a cycle
// finishes it, then the gateway is disconnected and the stop is noted.
func (b *Bot) Stop() error {
	b.life.Lock()
	defer b.life.Unlock()

	if !b.running.Load() {
		return nil
	}

	close(b.stop)
	b.running.Store(false)
	metricRunning.Set(0)

	done := b.done
	idle := make(chan struct{})
	b.idle = idle

	timer := time.NewTimer(b.cfg.StopTimeout)
	defer timer.Stop()
	select {
	case <-done:
		err := b.finishStop()
		close(idle)
		return err
	case <-timer.C:
		b.log.Warn("worker still busy, finishing stop in background", zap.Duration("timeout", b.cfg.StopTimeout))
		go func() {
			<-done
			if err := b.finishStop(); err != nil {
				b.log.Warn("deferred disconnect failed", zap.Error(err))
			}
			close(idle)
		}()
		return nil
	}
}

// finishStop runs once the worker has exited.
func (b *Bot) finishStop() error {
	err := b.disconnect()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.noteLocked(fmt.Sprintf("Disconnect failed: %v", err))
	}
	b.noteLocked("Bot stopped.")
	return err
}

func (b *Bot) disconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	if err := b.gateway.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect gateway: %w", err)
	}
	return nil
}

// Running reports whether the worker has been started and not stopped.
func (b *Bot) Running() bool {
	return b.running.Load()
}

// Status returns a snapshot of the current state.
func (b *Bot) Status() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.snapshot(b.running.Load())
}

// UpdateRisk validates p and applies it to the risk manager and the
// mirrored state in one step. On error nothing changes.
func (b *Bot) UpdateRisk(p risk.Params) (Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.risk.SetParams(p); err != nil {
		return Snapshot{}, err
	}
	b.state.params = p
	b.noteLocked(fmt.Sprintf("Risk updated | risk=%.2f%%, slots=%d, dd=%.1f%%",
		p.RiskPerTrade*100, p.MaxConcurrentTrades, p.MaxDailyDrawdown*100))
	return b.state.snapshot(b.running.Load()), nil
}

func (b *Bot) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	b.log.Info("trading loop started",
		zap.Strings("symbols", b.cfg.Symbols),
		zap.Duration("poll", b.cfg.PollInterval))

	// Calls already in flight are allowed to finish after a stop request.
	ctx := context.Background()
	for {
		select {
		case <-stop:
			b.log.Info("trading loop stopped")
			return
		default:
		}

		b.RunCycle(ctx)

		if !sleep(stop, b.cfg.PollInterval) {
			b.log.Info("trading loop stopped")
			return
		}
		b.mu.Lock()
		b.state.lastHeartbeat = b.now().UTC()
		b.mu.Unlock()

		if !sleep(stop, b.cfg.HeartbeatInterval-b.cfg.PollInterval) {
			b.log.Info("trading loop stopped")
			return
		}
	}
}

// sleep waits for d or until stop is closed. It reports false when stopped.
func sleep(stop <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-stop:
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-stop:
		return false
	case <-t.C:
		return true
	}
}

// RunCycle performs one refresh and symbol pass under the state lock.
// The worker calls it on every iteration.
func (b *Bot) RunCycle(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	metricCycles.Inc()

	defer func() {
		if r := recover(); r != nil {
			metricCycleFailures.Inc()
			b.log.Error("cycle panicked", zap.Any("panic", r))
			b.noteLocked(fmt.Sprintf("Cycle exception: %v", r))
		}
	}()

	positions, equity, err := b.refreshLocked(ctx)
	if err != nil {
		metricCycleFailures.Inc()
		b.log.Warn("account refresh failed", zap.Error(err))
		b.noteLocked(fmt.Sprintf("Cycle exception: %v", err))
		return
	}

	tf := b.cfg.Timeframes[0]
	for _, symbol := range b.cfg.Symbols {
		if broker.HasPosition(positions, symbol) {
			b.log.Debug("position already open, skipping", zap.String("symbol", symbol))
			continue
		}
		if b.processSymbolLocked(ctx, symbol, tf, equity) {
			positions = append(positions, broker.Position{Symbol: symbol})
		}
	}
}

// refreshLocked reads account and positions. State is only updated when
// both reads succeed.
func (b *Bot) refreshLocked(ctx context.Context) ([]broker.Position, float64, error) {
	acct, err := b.gateway.Account(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("account: %w", err)
	}
	positions, err := b.gateway.OpenPositions(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("open positions: %w", err)
	}

	now := b.now().UTC()
	b.state.accountBalance = acct.Balance
	b.state.accountEquity = acct.Equity
	b.state.todayPnL = acct.Profit
	b.state.lastHeartbeat = now
	b.state.openPositions = len(positions)
	b.risk.Reconcile(len(positions))

	metricBalance.Set(acct.Balance)
	metricEquity.Set(acct.Equity)
	metricOpenPositions.Set(float64(len(positions)))

	if err := b.journal.RecordEquity(journal.EquitySnapshot{
		Time:          now,
		Balance:       acct.Balance,
		Equity:        acct.Equity,
		Profit:        acct.Profit,
		OpenPositions: len(positions),
	}); err != nil {
		b.log.Warn("journal equity", zap.Error(err))
	}

	equity := acct.Equity
	if equity == 0 {
		equity = acct.Balance
	}
	return positions, equity, nil
}

// processSymbolLocked reports whether an order was placed.
func (b *Bot) processSymbolLocked(ctx context.Context, symbol string, tf market.Timeframe, equity float64) bool {
	plan, err := b.strategy.BuildSignal(ctx, symbol, tf, equity)
	if err != nil {
		b.symbolFailureLocked(symbol, err)
		return false
	}
	if plan == nil {
		return false
	}
	placed, err := b.executeLocked(ctx, plan)
	if err != nil {
		b.symbolFailureLocked(symbol, err)
		return false
	}
	return placed
}

func (b *Bot) executeLocked(ctx context.Context, plan *strategy.TradePlan) (bool, error) {
	tick, err := b.gateway.CurrentTick(ctx, plan.Symbol)
	if err != nil || !tick.Valid() {
		b.noteLocked(fmt.Sprintf("No tick data for %s; skipping execution.", plan.Symbol))
		return false, nil
	}

	side := plan.Side()
	price := tick.Ask
	if side == broker.Sell {
		price = tick.Bid
	}

	res, err := b.gateway.PlaceOrder(ctx, broker.OrderRequest{
		Symbol:    plan.Symbol,
		Side:      side,
		Volume:    plan.Volume,
		Price:     price,
		Stop:      plan.Stop,
		Target:    plan.Target,
		Deviation: Deviation,
		Tag:       MagicTag,
		Comment:   orderComment(plan.Rationale),
	})
	if err != nil {
		return false, fmt.Errorf("place order: %w", err)
	}

	now := b.now().UTC()
	b.noteLocked(fmt.Sprintf("Executed %s %s #%s", plan.Direction, plan.Symbol, res.OrderID))
	b.state.signals.push(SignalRecord{
		ID:         id.At(now),
		Symbol:     plan.Symbol,
		Direction:  string(plan.Direction),
		Confidence: plan.Confidence,
		Reason:     plan.Rationale,
		CreatedAt:  now.Truncate(time.Second),
	})
	b.state.activeSymbol = plan.Symbol
	b.risk.RegisterOpenPosition()
	b.state.openPositions = b.risk.OpenPositions()
	metricOrders.WithLabelValues(plan.Symbol, string(side)).Inc()

	fill := res.Price
	if fill == 0 {
		fill = price
	}
	if err := b.journal.RecordOrder(journal.OrderRecord{
		ID:         id.At(now),
		Ticket:     res.OrderID,
		Time:       now,
		Symbol:     plan.Symbol,
		Side:       string(side),
		Volume:     plan.Volume,
		Price:      fill,
		Stop:       plan.Stop,
		Target:     plan.Target,
		Confidence: plan.Confidence,
		Rationale:  plan.Rationale,
	}); err != nil {
		b.log.Warn("journal order", zap.Error(err))
	}

	b.log.Info("order executed",
		zap.String("symbol", plan.Symbol),
		zap.String("side", string(side)),
		zap.Float64("volume", plan.Volume),
		zap.Float64("price", fill),
		zap.String("ticket", res.OrderID))
	return true, nil
}

func (b *Bot) symbolFailureLocked(symbol string, err error) {
	kind, msg := describe(err)
	metricSymbolFailures.WithLabelValues(kind).Inc()
	b.log.Warn("symbol skipped", zap.String("symbol", symbol), zap.String("kind", kind), zap.Error(err))
	b.noteLocked(fmt.Sprintf("%s: %s", symbol, msg))
}

// describe classifies a per-symbol failure for notes and metrics.
func describe(err error) (kind, msg string) {
	if rej, ok := broker.IsOrderRejected(err); ok {
		return "order_rejected", fmt.Sprintf("order rejected (%s) %s", rej.Code, rej.Message)
	}
	switch {
	case errors.Is(err, advisor.ErrInvalidResponse):
		return "advisor", fmt.Sprintf("no signal, %v", err)
	case errors.Is(err, risk.ErrInvalidInput):
		return "invalid_input", err.Error()
	case errors.Is(err, broker.ErrSymbolUnavailable):
		return "symbol_unavailable", err.Error()
	case errors.Is(err, broker.ErrDataUnavailable), errors.Is(err, broker.ErrUnsupportedTimeframe):
		return "data", err.Error()
	case errors.Is(err, broker.ErrConnection):
		return "connection", err.Error()
	default:
		return "other", err.Error()
	}
}

func (b *Bot) noteLocked(msg string) {
	b.state.notes.push(msg)
	b.log.Info(msg)
	if err := b.journal.RecordNote(journal.Note{Time: b.now().UTC(), Message: msg}); err != nil {
		b.log.Warn("journal note", zap.Error(err))
	}
}

func orderComment(rationale string) string {
	r := []rune(rationale)
	if len(r) > CommentRationale {
		r = r[:CommentRationale]
	}
	return CommentPrefix + string(r)
}

package cmd

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rustyeddy/fxpilot/advisor/gemini"
	"github.com/rustyeddy/fxpilot/bot"
	"github.com/rustyeddy/fxpilot/broker"
	"github.com/rustyeddy/fxpilot/broker/oanda"
	"github.com/rustyeddy/fxpilot/broker/sim"
	"github.com/rustyeddy/fxpilot/config"
	"github.com/rustyeddy/fxpilot/journal"
	"github.com/rustyeddy/fxpilot/risk"
	"github.com/rustyeddy/fxpilot/server"
	"github.com/rustyeddy/fxpilot/strategy"
)

// app holds the wired components of one serve run.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *journal.SQLite
	gateway broker.Gateway
	bot     *bot.Bot
	server  *server.Server
}

func newApp(cfg *config.Config, log *zap.Logger) (a *app, err error) {
	a = &app{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	var jrnl journal.Journal = journal.Nop{}
	riskOpts := []risk.Option{
		risk.WithLocation(cfg.Location()),
		risk.WithLogger(log),
	}
	if cfg.Journal.DBPath != "" {
		db, err := journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		a.db = db
		jrnl = db
		riskOpts = append(riskOpts, risk.WithBaselineStore(db))
	}

	gw, err := newGateway(cfg, log)
	if err != nil {
		return nil, err
	}
	a.gateway = gw

	rm, err := risk.NewManager(cfg.RiskParams(), gw, riskOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}

	adv, err := gemini.New(gemini.Config{
		APIKey:                cfg.Advisor.APIKey,
		Model:                 cfg.Advisor.Model,
		BaseURL:               cfg.Advisor.BaseURL,
		PromptTemplate:        cfg.Advisor.PromptTemplate,
		Timeout:               time.Duration(cfg.Advisor.TimeoutSeconds) * time.Second,
		MaxAttempts:           cfg.Advisor.MaxRetries,
		StopLossATRMultiplier: cfg.Risk.StopLossATRMultiplier,
		TakeProfitMultiple:    cfg.Risk.TakeProfitMultiple,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}

	engine := strategy.NewEngine(gw, adv, rm, log)
	a.bot, err = bot.New(bot.Config{
		Symbols:           cfg.General.Symbols,
		Timeframes:        cfg.Timeframes(),
		PollInterval:      cfg.PollInterval(),
		HeartbeatInterval: cfg.HeartbeatInterval(),
	}, gw, engine, rm, bot.WithJournal(jrnl), bot.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}

	a.server = server.New(a.bot, server.Options{RateLimitPerMinute: cfg.Server.RateLimitPerMinute}, log)
	return a, nil
}

// newGateway builds the live OANDA gateway, or the paper gateway. The
// paper gateway takes its prices from OANDA when credentials are present,
// otherwise from the candle files in gateway.paper_data_dir.
func newGateway(cfg *config.Config, log *zap.Logger) (broker.Gateway, error) {
	gc := cfg.Gateway
	switch gc.Kind {
	case config.GatewayOanda:
		return newOanda(gc, log)

	case config.GatewayPaper:
		opts := []sim.Option{sim.WithLogger(log)}
		var feed sim.Feed
		if gc.Token != "" && gc.AccountID != "" {
			og, err := newOanda(gc, log)
			if err != nil {
				return nil, err
			}
			feed = og
			opts = append(opts, sim.WithInstruments(og))
		} else if gc.PaperDataDir != "" {
			f, err := sim.LoadCSVDir(gc.PaperDataDir, gc.PaperSpreadPoints)
			if err != nil {
				return nil, fmt.Errorf("%w: paper data: %v", config.ErrConfiguration, err)
			}
			feed = f
		} else {
			log.Warn("paper gateway has no market data; set OANDA_TOKEN and OANDA_ACCOUNT_ID or gateway.paper_data_dir")
			feed = sim.NewStaticFeed()
		}
		return sim.NewGateway(feed, cfg.General.AccountCurrency, gc.PaperBalance, opts...), nil

	default:
		return nil, fmt.Errorf("%w: unknown gateway kind %q", config.ErrConfiguration, gc.Kind)
	}
}

func newOanda(gc config.GatewayConfig, log *zap.Logger) (*oanda.Gateway, error) {
	base, err := oanda.BaseURL(gc.Environment)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}
	return oanda.NewGateway(oanda.NewClientWithURL(base, gc.Token), gc.AccountID, log), nil
}

// Close stops the bot and releases the journal.
func (a *app) Close() error {
	var err error
	if a.bot != nil {
		err = multierr.Append(err, a.bot.Stop())
	}
	if a.db != nil {
		err = multierr.Append(err, a.db.Close())
	}
	return err
}

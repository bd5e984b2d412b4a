package oanda

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/fxpilot/broker"
	"github.com/rustyeddy/fxpilot/market"
)

// Gateway implements broker.Gateway on top of an OANDA v3 account.
type Gateway struct {
	client    *Client
	accountID string
	log       *zap.Logger

	mu          sync.Mutex
	connected   bool
	instruments map[string]market.Instrument
}

var _ broker.Gateway = (*Gateway)(nil)

func NewGateway(client *Client, accountID string, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{
		client:      client,
		accountID:   accountID,
		log:         log.Named("oanda"),
		instruments: make(map[string]market.Instrument),
	}
}

func (g *Gateway) accountPath(suffix string) string {
	return "/v3/accounts/" + url.PathEscape(g.accountID) + suffix
}

// Connect verifies credentials by loading the account summary.
func (g *Gateway) Connect(ctx context.Context) error {
	if g.accountID == "" {
		return fmt.Errorf("%w: account id not set", broker.ErrConnection)
	}
	var sum accountSummary
	if err := g.client.do(ctx, http.MethodGet, g.accountPath("/summary"), nil, nil, &sum); err != nil {
		return fmt.Errorf("%w: %v", broker.ErrConnection, err)
	}

	g.mu.Lock()
	g.connected = true
	g.mu.Unlock()

	g.log.Info("connected", zap.String("account", sum.Account.ID), zap.String("currency", sum.Account.Currency))
	return nil
}

func (g *Gateway) Disconnect(ctx context.Context) error {
	g.mu.Lock()
	g.connected = false
	g.mu.Unlock()
	g.client.closeIdle()
	return nil
}

// ensureConnected reconnects a gateway that was used before Connect or after Disconnect.
func (g *Gateway) ensureConnected(ctx context.Context) error {
	g.mu.Lock()
	ok := g.connected
	g.mu.Unlock()
	if ok {
		return nil
	}
	return g.Connect(ctx)
}

// classify maps transport and auth failures to ErrConnection and any other
// API failure to fallback.
func classify(err error, fallback error) error {
	var ae *apiError
	if errors.As(err, &ae) {
		if ae.Status == http.StatusUnauthorized || ae.Status == http.StatusForbidden {
			return fmt.Errorf("%w: %v", broker.ErrConnection, err)
		}
		return fmt.Errorf("%w: %v", fallback, err)
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%w: %v", broker.ErrConnection, err)
	}
	return fmt.Errorf("%w: %v", fallback, err)
}

func (g *Gateway) Account(ctx context.Context) (broker.Account, error) {
	if err := g.ensureConnected(ctx); err != nil {
		return broker.Account{}, err
	}

	var sum accountSummary
	if err := g.client.do(ctx, http.MethodGet, g.accountPath("/summary"), nil, nil, &sum); err != nil {
		return broker.Account{}, classify(err, broker.ErrDataUnavailable)
	}

	var acct broker.Account
	acct.Currency = sum.Account.Currency
	var err error
	if acct.Balance, err = parseFloat(sum.Account.Balance); err != nil {
		return broker.Account{}, fmt.Errorf("%w: balance: %v", broker.ErrDataUnavailable, err)
	}
	if acct.Equity, err = parseFloat(sum.Account.NAV); err != nil {
		return broker.Account{}, fmt.Errorf("%w: nav: %v", broker.ErrDataUnavailable, err)
	}
	if acct.Profit, err = parseFloat(sum.Account.UnrealizedPL); err != nil {
		return broker.Account{}, fmt.Errorf("%w: unrealized pl: %v", broker.ErrDataUnavailable, err)
	}
	return acct, nil
}

func (g *Gateway) OpenPositions(ctx context.Context) ([]broker.Position, error) {
	if err := g.ensureConnected(ctx); err != nil {
		return nil, err
	}

	var resp openTradesResponse
	if err := g.client.do(ctx, http.MethodGet, g.accountPath("/openTrades"), nil, nil, &resp); err != nil {
		return nil, classify(err, broker.ErrDataUnavailable)
	}

	out := make([]broker.Position, 0, len(resp.Trades))
	for _, t := range resp.Trades {
		units, err := parseFloat(t.CurrentUnits)
		if err != nil {
			return nil, fmt.Errorf("%w: trade %s units: %v", broker.ErrDataUnavailable, t.ID, err)
		}
		p := broker.Position{
			Ticket: t.ID,
			Symbol: market.NormalizeSymbol(t.Instrument),
			Side:   broker.Buy,
			Volume: math.Abs(units) / market.StandardLot,
		}
		if units < 0 {
			p.Side = broker.Sell
		}
		p.EntryPrice, _ = parseFloat(t.Price)
		p.Profit, _ = parseFloat(t.UnrealizedPL)
		if t.StopLossOrder != nil {
			p.Stop, _ = parseFloat(t.StopLossOrder.Price)
		}
		if t.TakeProfitOrder != nil {
			p.Target, _ = parseFloat(t.TakeProfitOrder.Price)
		}
		out = append(out, p)
	}
	return out, nil
}

func (g *Gateway) PriceHistory(ctx context.Context, symbol string, tf market.Timeframe, count int) ([]market.Candle, error) {
	gran, err := GranularityFor(tf)
	if err != nil {
		return nil, err
	}
	if err := g.ensureConnected(ctx); err != nil {
		return nil, err
	}

	candles, err := g.client.GetCandles(ctx, CandlesRequest{
		Instrument:  market.OandaSymbol(symbol),
		Price:       MidPrice,
		Granularity: gran,
		Count:       count,
	})
	if err != nil {
		return nil, classify(err, broker.ErrDataUnavailable)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: no candles for %s %s", broker.ErrDataUnavailable, symbol, tf)
	}
	return candles, nil
}

func (g *Gateway) CurrentTick(ctx context.Context, symbol string) (market.Tick, error) {
	if err := g.ensureConnected(ctx); err != nil {
		return market.Tick{}, err
	}

	q := url.Values{}
	q.Set("instruments", market.OandaSymbol(symbol))
	var resp pricingResponse
	if err := g.client.do(ctx, http.MethodGet, g.accountPath("/pricing"), q, nil, &resp); err != nil {
		return market.Tick{}, classify(err, broker.ErrNoTick)
	}

	for _, p := range resp.Prices {
		if !market.SameSymbol(p.Instrument, symbol) || len(p.Bids) == 0 || len(p.Asks) == 0 {
			continue
		}
		bid, err1 := parseFloat(p.Bids[0].Price)
		ask, err2 := parseFloat(p.Asks[0].Price)
		if err1 != nil || err2 != nil {
			break
		}
		tick := market.Tick{
			Instrument: market.NormalizeSymbol(p.Instrument),
			Bid:        bid,
			Ask:        ask,
		}
		tick.Last = tick.Mid()
		tick.Time, _ = time.Parse(time.RFC3339, p.Time)
		if !tick.Valid() {
			break
		}
		return tick, nil
	}
	return market.Tick{}, fmt.Errorf("%w: %s", broker.ErrNoTick, symbol)
}

func (g *Gateway) Instrument(ctx context.Context, symbol string) (market.Instrument, error) {
	key := market.NormalizeSymbol(symbol)
	g.mu.Lock()
	in, ok := g.instruments[key]
	g.mu.Unlock()
	if ok {
		return in, nil
	}

	if err := g.ensureConnected(ctx); err != nil {
		return market.Instrument{}, err
	}

	q := url.Values{}
	q.Set("instruments", market.OandaSymbol(symbol))
	var resp instrumentsResponse
	if err := g.client.do(ctx, http.MethodGet, g.accountPath("/instruments"), q, nil, &resp); err != nil {
		return market.Instrument{}, classify(err, broker.ErrSymbolUnavailable)
	}
	if len(resp.Instruments) == 0 {
		return market.Instrument{}, fmt.Errorf("%w: %s", broker.ErrSymbolUnavailable, symbol)
	}

	in = toInstrument(resp.Instruments[0])
	g.mu.Lock()
	g.instruments[key] = in
	g.mu.Unlock()
	return in, nil
}

func toInstrument(ai apiInstrument) market.Instrument {
	base, quote, _ := market.SplitSymbol(ai.Name)
	minUnits, _ := parseFloat(ai.MinimumTradeSize)
	maxUnits, _ := parseFloat(ai.MaximumOrderUnits)

	unitStep := market.PointFromDigits(ai.TradeUnitsPrecision)
	return market.Instrument{
		Name:          market.NormalizeSymbol(ai.Name),
		BaseCurrency:  base,
		QuoteCurrency: quote,
		Digits:        ai.DisplayPrecision,
		PointSize:     market.PointFromDigits(ai.DisplayPrecision),
		ContractSize:  market.StandardLot,
		VolumeStep:    unitStep / market.StandardLot,
		VolumeMin:     minUnits / market.StandardLot,
		VolumeMax:     maxUnits / market.StandardLot,
	}
}

// PlaceOrder sends a FOK market order with attached stop loss and take profit.
// Deviation is translated into an OANDA price bound.
func (g *Gateway) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	in, err := g.Instrument(ctx, req.Symbol)
	if err != nil {
		return broker.OrderResult{}, err
	}

	unitStep := in.VolumeStep * in.ContractSize
	if unitStep <= 0 {
		unitStep = 1
	}
	units := math.Round(req.Volume*in.ContractSize/unitStep) * unitStep
	if units <= 0 {
		return broker.OrderResult{}, &broker.OrderRejectedError{Code: "UNITS_INVALID", Message: fmt.Sprintf("volume %.5f lots rounds to zero units", req.Volume)}
	}
	units *= req.Side.Sign()

	px := func(v float64) string { return strconv.FormatFloat(v, 'f', in.Digits, 64) }
	order := marketOrder{
		Type:         "MARKET",
		Instrument:   market.OandaSymbol(req.Symbol),
		Units:        strconv.FormatFloat(units, 'f', -1, 64),
		TimeInForce:  "FOK",
		PositionFill: "DEFAULT",
		ClientExtensions: clientExtensions{
			Tag:     strconv.Itoa(req.Tag),
			Comment: req.Comment,
		},
	}
	if req.Price > 0 && req.Deviation > 0 {
		order.PriceBound = px(req.Price + req.Side.Sign()*float64(req.Deviation)*in.PointSize)
	}
	if req.Stop > 0 {
		order.StopLossOnFill = &priceRef{Price: px(req.Stop)}
	}
	if req.Target > 0 {
		order.TakeProfitOnFill = &priceRef{Price: px(req.Target)}
	}

	g.log.Info("sending order",
		zap.String("symbol", order.Instrument),
		zap.String("side", string(req.Side)),
		zap.String("units", order.Units))

	var resp orderResponse
	err = g.client.do(ctx, http.MethodPost, g.accountPath("/orders"), nil, orderRequest{Order: order}, &resp)
	if err != nil {
		var ae *apiError
		if errors.As(err, &ae) && ae.Status != http.StatusUnauthorized && ae.Status != http.StatusForbidden {
			code := ae.Code
			if code == "" {
				code = strconv.Itoa(ae.Status)
			}
			return broker.OrderResult{}, &broker.OrderRejectedError{Code: code, Message: ae.Message}
		}
		return broker.OrderResult{}, classify(err, broker.ErrConnection)
	}

	if resp.OrderCancelTransaction != nil {
		return broker.OrderResult{}, &broker.OrderRejectedError{Code: resp.OrderCancelTransaction.Reason, Message: "order cancelled"}
	}
	if resp.OrderFillTransaction == nil {
		return broker.OrderResult{}, &broker.OrderRejectedError{Code: "NO_FILL", Message: "order was not filled"}
	}

	fill := resp.OrderFillTransaction
	res := broker.OrderResult{OrderID: fill.ID}
	if fill.TradeOpened != nil && fill.TradeOpened.TradeID != "" {
		res.OrderID = fill.TradeOpened.TradeID
	}
	res.Price, _ = parseFloat(fill.Price)
	res.Time, _ = time.Parse(time.RFC3339, fill.Time)

	g.log.Info("order executed", zap.String("ticket", res.OrderID), zap.Float64("price", res.Price))
	return res, nil
}

package oanda

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rustyeddy/fxpilot/market"
)

// Granularity represents the time frame for candles
type Granularity string

const (
	M1  Granularity = "M1"
	M5  Granularity = "M5"
	M15 Granularity = "M15"
	M30 Granularity = "M30"
	H1  Granularity = "H1"
	H4  Granularity = "H4"
	D   Granularity = "D"
)

// GranularityFor maps a bot timeframe onto OANDA's naming.
func GranularityFor(tf market.Timeframe) (Granularity, error) {
	switch tf {
	case market.M1:
		return M1, nil
	case market.M5:
		return M5, nil
	case market.M15:
		return M15, nil
	case market.M30:
		return M30, nil
	case market.H1:
		return H1, nil
	case market.H4:
		return H4, nil
	case market.D1:
		return D, nil
	}
	return "", fmt.Errorf("%w %q", market.ErrUnsupportedTimeframe, tf)
}

// PriceComponent represents the price component for candles
type PriceComponent string

const (
	MidPrice PriceComponent = "M"
	BidPrice PriceComponent = "B"
	AskPrice PriceComponent = "A"
)

// CandlesRequest represents parameters for fetching historical candles
type CandlesRequest struct {
	Instrument  string
	Price       PriceComponent // default: MidPrice
	Granularity Granularity
	Count       int // max 5000
}

type candleData struct {
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
}

type apiCandle struct {
	Complete bool       `json:"complete"`
	Volume   int        `json:"volume"`
	Time     string     `json:"time"`
	Mid      candleData `json:"mid,omitempty"`
	Bid      candleData `json:"bid,omitempty"`
	Ask      candleData `json:"ask,omitempty"`
}

type candlesResponse struct {
	Instrument  string      `json:"instrument"`
	Granularity string      `json:"granularity"`
	Candles     []apiCandle `json:"candles"`
}

// GetCandles fetches historical candles, oldest first. Incomplete candles are skipped.
func (c *Client) GetCandles(ctx context.Context, req CandlesRequest) ([]market.Candle, error) {
	if req.Instrument == "" {
		return nil, fmt.Errorf("instrument is required")
	}
	if req.Count <= 0 || req.Count > 5000 {
		return nil, fmt.Errorf("count must be in 1..5000, got %d", req.Count)
	}
	if req.Price == "" {
		req.Price = MidPrice
	}

	params := url.Values{}
	params.Set("price", string(req.Price))
	params.Set("granularity", string(req.Granularity))
	params.Set("count", fmt.Sprintf("%d", req.Count))

	var apiResp candlesResponse
	path := fmt.Sprintf("/v3/instruments/%s/candles", req.Instrument)
	if err := c.do(ctx, http.MethodGet, path, params, nil, &apiResp); err != nil {
		return nil, err
	}

	candles := make([]market.Candle, 0, len(apiResp.Candles))
	for _, ac := range apiResp.Candles {
		if !ac.Complete {
			continue
		}

		t, err := time.Parse(time.RFC3339, ac.Time)
		if err != nil {
			return nil, fmt.Errorf("parse time %s: %w", ac.Time, err)
		}

		var pd candleData
		switch req.Price {
		case BidPrice:
			pd = ac.Bid
		case AskPrice:
			pd = ac.Ask
		default:
			pd = ac.Mid
		}

		var ohlc [4]float64
		for i, s := range []string{pd.O, pd.H, pd.L, pd.C} {
			v, err := parseFloat(s)
			if err != nil {
				return nil, fmt.Errorf("parse price %q: %w", s, err)
			}
			ohlc[i] = v
		}

		candles = append(candles, market.Candle{
			Time:   t,
			Open:   ohlc[0],
			High:   ohlc[1],
			Low:    ohlc[2],
			Close:  ohlc[3],
			Volume: float64(ac.Volume),
		})
	}

	return candles, nil
}

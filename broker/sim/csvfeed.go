package sim

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/rustyeddy/fxpilot/market"
)

// LoadCSVDir builds a feed from <SYMBOL>.csv candle files in dir. Each
// symbol's quote is its last close, spread by spreadPoints around it.
func LoadCSVDir(dir string, spreadPoints float64) (*StaticFeed, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no candle files in %s", dir)
	}

	feed := NewStaticFeed()
	for _, p := range paths {
		symbol := market.NormalizeSymbol(strings.TrimSuffix(filepath.Base(p), filepath.Ext(p)))

		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		candles, err := market.ReadCandlesCSV(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		if len(candles) == 0 {
			continue
		}

		feed.SetCandles(symbol, candles)
		feed.SetTick(quoteAround(symbol, candles[len(candles)-1], spreadPoints))
	}
	return feed, nil
}

func quoteAround(symbol string, last market.Candle, spreadPoints float64) market.Tick {
	point := 0.00001
	digits := 5
	if in, ok := market.LookupInstrument(symbol); ok {
		point, digits = in.PointSize, in.Digits
	}
	half := spreadPoints * point / 2
	scale := math.Pow10(digits)
	return market.Tick{
		Instrument: symbol,
		Time:       last.Time,
		Bid:        math.Round((last.Close-half)*scale) / scale,
		Ask:        math.Round((last.Close+half)*scale) / scale,
		Last:       last.Close,
	}
}

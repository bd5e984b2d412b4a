package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/fxpilot/broker/oanda"
	"github.com/rustyeddy/fxpilot/config"
	"github.com/rustyeddy/fxpilot/market"
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Market data utilities",
}

var candlesCmd = &cobra.Command{
	Use:   "candles",
	Short: "Download OANDA candles to CSV for the paper feed",
	Long: `Candles downloads completed mid candles from OANDA and writes them as CSV.
Files named <SYMBOL>.csv in one directory form a paper data directory
(gateway.paper_data_dir).

Example:
  fxpilot data candles --symbol EURUSD --timeframe H1 --count 500 --out data/EURUSD.csv`,
	RunE: runCandles,
}

var (
	candlesSymbol    string
	candlesTimeframe string
	candlesCount     int
	candlesOut       string
	candlesEnv       string
	candlesToken     string
	candlesBaseURL   string
)

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(candlesCmd)

	f := candlesCmd.Flags()
	f.StringVar(&candlesSymbol, "symbol", "", "symbol, e.g. EURUSD or EUR_USD")
	f.StringVar(&candlesTimeframe, "timeframe", "H1", "M1, M5, M15, M30, H1, H4 or D1")
	f.IntVar(&candlesCount, "count", 500, "number of candles (max 5000)")
	f.StringVarP(&candlesOut, "out", "o", "", "output file (default <SYMBOL>.csv, - for stdout)")
	f.StringVar(&candlesEnv, "env", "practice", "OANDA environment: practice or live")
	f.StringVar(&candlesToken, "token", "", "OANDA token (default $"+config.EnvOandaToken+")")
	f.StringVar(&candlesBaseURL, "base-url", "", "override the OANDA REST endpoint")
	_ = candlesCmd.MarkFlagRequired("symbol")
}

func runCandles(cmd *cobra.Command, args []string) error {
	token := candlesToken
	if token == "" {
		token = strings.TrimSpace(os.Getenv(config.EnvOandaToken))
	}
	if token == "" {
		return fmt.Errorf("missing token: set --token or %s", config.EnvOandaToken)
	}

	tf, err := market.ParseTimeframe(candlesTimeframe)
	if err != nil {
		return err
	}
	gran, err := oanda.GranularityFor(tf)
	if err != nil {
		return err
	}

	base := candlesBaseURL
	if base == "" {
		if base, err = oanda.BaseURL(candlesEnv); err != nil {
			return err
		}
	}

	client := oanda.NewClientWithURL(base, token)
	candles, err := client.GetCandles(cmd.Context(), oanda.CandlesRequest{
		Instrument:  market.OandaSymbol(candlesSymbol),
		Price:       oanda.MidPrice,
		Granularity: gran,
		Count:       candlesCount,
	})
	if err != nil {
		return fmt.Errorf("fetch candles: %w", err)
	}

	out := candlesOut
	if out == "" {
		out = market.NormalizeSymbol(candlesSymbol) + ".csv"
	}

	var w io.Writer = cmd.OutOrStdout()
	if out != "-" {
		if dir := filepath.Dir(out); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	if err := market.WriteCandlesCSV(w, candles); err != nil {
		return err
	}
	if out != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d candles to %s\n", len(candles), out)
	}
	return nil
}

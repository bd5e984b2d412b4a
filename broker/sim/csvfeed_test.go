package sim

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/fxpilot/broker"
	"github.com/rustyeddy/fxpilot/market"
)

const eurusdCSV = `time,open,high,low,close,volume
2024-01-02T09:00:00Z,1.10000,1.10120,1.09950,1.10080,1200
2024-01-02T10:00:00Z,1.10080,1.10200,1.10000,1.10190,950
`

func TestLoadCSVDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "EURUSD.csv"), []byte(eurusdCSV), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "USD_JPY.csv"), []byte("time,open,high,low,close\n"), 0o600))

	feed, err := LoadCSVDir(dir, 12)
	require.NoError(t, err)
	ctx := context.Background()

	candles, err := feed.PriceHistory(ctx, "EUR/USD", market.H1, 300)
	require.NoError(t, err)
	assert.Len(t, candles, 2)

	tick, err := feed.CurrentTick(ctx, "EURUSD")
	require.NoError(t, err)
	assert.InDelta(t, 1.10184, tick.Bid, 1e-9)
	assert.InDelta(t, 1.10196, tick.Ask, 1e-9)

	// empty files load but carry no data
	_, err = feed.PriceHistory(ctx, "USDJPY", market.H1, 10)
	assert.True(t, errors.Is(err, broker.ErrDataUnavailable))
}

func TestLoadCSVDirErrors(t *testing.T) {
	_, err := LoadCSVDir(t.TempDir(), 10)
	assert.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "GBPUSD.csv"), []byte("2024-01-02T09:00:00Z,1,x,1,1\n"), 0o600))
	_, err = LoadCSVDir(dir, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GBPUSD.csv")
}

package bot

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/fxpilot/risk"
)

func TestRingRetention(t *testing.T) {
	r := newRing[string](Retention)
	for i := 0; i < 75; i++ {
		r.push(fmt.Sprintf("n%d", i))
	}
	assert.Equal(t, Retention, r.len())

	got := r.latest(StatusDepth)
	require.Len(t, got, StatusDepth)
	assert.Equal(t, "n74", got[0])
	assert.Equal(t, "n65", got[9])

	all := r.latest(100)
	assert.Len(t, all, Retention)
	assert.Equal(t, "n15", all[len(all)-1])
}

func TestRingLatestShort(t *testing.T) {
	r := newRing[int](3)
	assert.Empty(t, r.latest(10))
	r.push(1)
	r.push(2)
	assert.Equal(t, []int{2, 1}, r.latest(10))
}

func TestSnapshotJSON(t *testing.T) {
	s := newState(risk.DefaultParams())
	s.accountBalance = 1000
	s.notes.push("Bot started.")

	raw, err := json.Marshal(s.snapshot(false))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	for _, k := range []string{
		"running", "lastHeartbeat", "activeSymbol", "openPositions", "accountBalance",
		"accountEquity", "todayPnL", "riskPerTrade", "maxConcurrentTrades",
		"maxDailyDrawdown", "recentSignals", "notes",
	} {
		assert.Contains(t, m, k)
	}
	assert.Nil(t, m["lastHeartbeat"])
	assert.Nil(t, m["activeSymbol"])
	assert.Equal(t, []any{}, m["recentSignals"])

	s.lastHeartbeat = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.activeSymbol = "EURUSD"
	snap := s.snapshot(true)
	require.NotNil(t, snap.LastHeartbeat)
	assert.Equal(t, "EURUSD", *snap.ActiveSymbol)
	assert.True(t, snap.Running)
}

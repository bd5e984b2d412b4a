package bot

import (
	"time"

	"github.com/rustyeddy/fxpilot/risk"
)

const (
	// Retention is how many notes and signals are kept in memory.
	Retention = 60
	// StatusDepth is how many of them a snapshot returns.
	StatusDepth = 10
)

// SignalRecord is an executed signal as shown to operators.
type SignalRecord struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Direction  string    `json:"direction"`
	Confidence float64   `json:"confidence"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Snapshot is a point-in-time copy of the bot state. It shares nothing
// with the live state.
type Snapshot struct {
	Running             bool           `json:"running"`
	LastHeartbeat       *time.Time     `json:"lastHeartbeat"`
	ActiveSymbol        *string        `json:"activeSymbol"`
	OpenPositions       int            `json:"openPositions"`
	AccountBalance      float64        `json:"accountBalance"`
	AccountEquity       float64        `json:"accountEquity"`
	TodayPnL            float64        `json:"todayPnL"`
	RiskPerTrade        float64        `json:"riskPerTrade"`
	MaxConcurrentTrades int            `json:"maxConcurrentTrades"`
	MaxDailyDrawdown    float64        `json:"maxDailyDrawdown"`
	RecentSignals       []SignalRecord `json:"recentSignals"`
	Notes               []string       `json:"notes"`
}

// ring is a bounded, append-only history. Oldest entries fall off first.
type ring[T any] struct {
	items []T
	limit int
}

func newRing[T any](limit int) ring[T] {
	return ring[T]{items: make([]T, 0, limit), limit: limit}
}

func (r *ring[T]) push(v T) {
	if len(r.items) == r.limit {
		copy(r.items, r.items[1:])
		r.items = r.items[:len(r.items)-1]
	}
	r.items = append(r.items, v)
}

// latest returns up to n items, newest first, in a fresh slice.
func (r *ring[T]) latest(n int) []T {
	if n > len(r.items) {
		n = len(r.items)
	}
	out := make([]T, 0, n)
	for i := len(r.items) - 1; i >= len(r.items)-n; i-- {
		out = append(out, r.items[i])
	}
	return out
}

func (r *ring[T]) len() int { return len(r.items) }

type state struct {
	lastHeartbeat  time.Time
	activeSymbol   string
	openPositions  int
	accountBalance float64
	accountEquity  float64
	todayPnL       float64
	params         risk.Params
	signals        ring[SignalRecord]
	notes          ring[string]
}

func newState(p risk.Params) state {
	return state{
		params:  p,
		signals: newRing[SignalRecord](Retention),
		notes:   newRing[string](Retention),
	}
}

func (s *state) snapshot(running bool) Snapshot {
	snap := Snapshot{
		Running:             running,
		OpenPositions:       s.openPositions,
		AccountBalance:      s.accountBalance,
		AccountEquity:       s.accountEquity,
		TodayPnL:            s.todayPnL,
		RiskPerTrade:        s.params.RiskPerTrade,
		MaxConcurrentTrades: s.params.MaxConcurrentTrades,
		MaxDailyDrawdown:    s.params.MaxDailyDrawdown,
		RecentSignals:       s.signals.latest(StatusDepth),
		Notes:               s.notes.latest(StatusDepth),
	}
	if !s.lastHeartbeat.IsZero() {
		hb := s.lastHeartbeat
		snap.LastHeartbeat = &hb
	}
	if s.activeSymbol != "" {
		sym := s.activeSymbol
		snap.ActiveSymbol = &sym
	}
	return snap
}

// Package journal records executed orders, equity snapshots and operational
// notes.
package journal

import "time"

// OrderRecord is an order the bot sent and the gateway accepted.
type OrderRecord struct {
	ID         string
	Ticket     string
	Time       time.Time
	Symbol     string
	Side       string
	Volume     float64
	Price      float64
	Stop       float64
	Target     float64
	Confidence float64
	Rationale  string
}

type EquitySnapshot struct {
	Time          time.Time
	Balance       float64
	Equity        float64
	Profit        float64
	OpenPositions int
}

type Note struct {
	Time    time.Time
	Message string
}

type Journal interface {
	RecordOrder(OrderRecord) error
	RecordEquity(EquitySnapshot) error
	RecordNote(Note) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordOrder(OrderRecord) error     { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) RecordNote(Note) error             { return nil }
func (Nop) Close() error                      { return nil }

package market

import "time"

type Tick struct {
	Instrument string
	Time       time.Time
	Bid        float64
	Ask        float64
	Last       float64
}

func (t Tick) Mid() float64 {
	if t.Bid == 0 && t.Ask == 0 {
		return 0
	}
	return (t.Bid + t.Ask) / 2
}

func (t Tick) Spread() float64 {
	return t.Ask - t.Bid
}

// Valid reports whether both sides of the quote are usable.
func (t Tick) Valid() bool {
	return t.Bid > 0 && t.Ask > 0 && t.Ask >= t.Bid
}

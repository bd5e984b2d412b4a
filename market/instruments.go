// market/instruments.go
package market

import "math"

// Instrument is the broker metadata needed to size and price an order.
//
// Volumes are expressed in lots; ContractSize converts lots to units.
type Instrument struct {
	Name          string
	BaseCurrency  string
	QuoteCurrency string

	Digits       int     // quote decimals, e.g. 5 for EURUSD, 3 for USDJPY
	PointSize    float64 // smallest price increment, 10^-Digits
	ContractSize float64 // units per lot

	VolumeStep float64
	VolumeMin  float64
	VolumeMax  float64
}

const StandardLot = 100_000.0

// Instruments holds default metadata for the majors. The paper gateway uses it
// when no live metadata source is configured.
var Instruments = map[string]Instrument{
	"EURUSD": fx("EURUSD", 5),
	"GBPUSD": fx("GBPUSD", 5),
	"AUDUSD": fx("AUDUSD", 5),
	"NZDUSD": fx("NZDUSD", 5),
	"USDCHF": fx("USDCHF", 5),
	"USDCAD": fx("USDCAD", 5),
	"EURGBP": fx("EURGBP", 5),
	"USDJPY": fx("USDJPY", 3),
	"EURJPY": fx("EURJPY", 3),
	"GBPJPY": fx("GBPJPY", 3),
}

func fx(name string, digits int) Instrument {
	base, quote, _ := SplitSymbol(name)
	return Instrument{
		Name:          name,
		BaseCurrency:  base,
		QuoteCurrency: quote,
		Digits:        digits,
		PointSize:     PointFromDigits(digits),
		ContractSize:  StandardLot,
		VolumeStep:    0.01,
		VolumeMin:     0.01,
		VolumeMax:     50,
	}
}

// LookupInstrument finds default metadata for symbol in any accepted spelling.
func LookupInstrument(symbol string) (Instrument, bool) {
	in, ok := Instruments[NormalizeSymbol(symbol)]
	return in, ok
}

// PointFromDigits returns 10^-digits.
func PointFromDigits(digits int) float64 {
	return math.Pow10(-digits)
}

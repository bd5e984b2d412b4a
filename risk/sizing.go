package risk

import (
	"math"
	"strings"

	"github.com/rustyeddy/fxpilot/market"
)

// Volume bounds used when the gateway leaves them unset.
const (
	DefaultVolumeStep = 0.01
	DefaultVolumeMax  = 100.0
)

// PipSize derives the pip from the quote precision: 0.01 for three digit
// JPY quotes, 0.0001 for four or more digits and 0.01 otherwise.
func PipSize(in market.Instrument) float64 {
	if in.Digits == 3 && strings.Contains(strings.ToUpper(in.Name), "JPY") {
		return 0.01
	}
	if in.Digits >= 4 {
		return 0.0001
	}
	return 0.01
}

// roundVolume rounds raw to the nearest step and clamps it to the
// instrument's volume limits.
func roundVolume(raw float64, in market.Instrument) float64 {
	step := in.VolumeStep
	if step <= 0 {
		step = DefaultVolumeStep
	}
	minLot := in.VolumeMin
	if minLot <= 0 {
		minLot = step
	}
	maxLot := in.VolumeMax
	if maxLot <= 0 {
		maxLot = DefaultVolumeMax
	}

	lots := math.Round(raw/step) * step
	// drop the float noise of the step multiplication
	lots = math.Round(lots*1e8) / 1e8
	return math.Max(minLot, math.Min(maxLot, lots))
}

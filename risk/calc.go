package risk

import "math"

// RR is the reward to risk ratio of a bracket.
func RR(entry, stop, target float64) float64 {
	risk := math.Abs(entry - stop)
	if risk == 0 {
		return 0
	}
	return math.Abs(target-entry) / risk
}

// PlannedLoss is the quote currency loss if a position of volume lots is
// stopped out.
func PlannedLoss(volume, contractSize, entry, stop float64) float64 {
	return volume * contractSize * math.Abs(entry-stop)
}

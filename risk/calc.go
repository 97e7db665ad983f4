package risk

import "math"

// PlannedRisk is the account-currency loss if the stop is hit.
func PlannedRisk(lots, entry, stop, tickSize, tickValue float64) float64 {
	if tickSize <= 0 {
		return 0
	}
	return lots * math.Abs(entry-stop) / tickSize * tickValue
}

func RR(entry, stop, takeProfit float64) float64 {
	risk := math.Abs(entry - stop)
	reward := math.Abs(takeProfit - entry)
	if risk == 0 {
		return 0
	}
	return reward / risk
}

func RiskPct(plannedRisk, equity float64) float64 {
	if equity <= 0 {
		return math.Inf(1)
	}
	return plannedRisk / equity
}

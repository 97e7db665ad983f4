package risk

// Lots = balance * riskPct / (stopTicks * tickValue)
//
// TickValue is the account-currency value of one TickSize move for one lot,
// as reported by the terminal, so no quote conversion happens here.

import "math"

type Inputs struct {
	Balance    float64
	RiskPct    float64 // 0.01 = 1%
	EntryPrice float64
	StopPrice  float64
	TickSize   float64
	TickValue  float64
}

type Result struct {
	Lots       float64
	StopTicks  float64
	RiskAmount float64
}

// Calculate returns the raw (un-normalized) lot size that loses RiskAmount
// when the stop is hit. Lots is zero when the inputs cannot size a trade.
func Calculate(in Inputs) Result {
	riskAmt := in.Balance * in.RiskPct
	if in.TickSize <= 0 || in.TickValue <= 0 {
		return Result{RiskAmount: riskAmt}
	}

	stopTicks := math.Abs(in.EntryPrice-in.StopPrice) / in.TickSize
	if stopTicks == 0 || riskAmt <= 0 {
		return Result{StopTicks: stopTicks, RiskAmount: riskAmt}
	}

	return Result{
		Lots:       riskAmt / (stopTicks * in.TickValue),
		StopTicks:  stopTicks,
		RiskAmount: riskAmt,
	}
}

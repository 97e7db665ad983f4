package risk

import (
	"fmt"
	"strings"
)

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation

	PlannedRisk    float64
	PlannedRiskPct float64
	PlannedRR      float64
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Reason joins the violation messages for a trade report.
func (d Decision) Reason() string {
	msgs := make([]string, 0, len(d.Violations))
	for _, v := range d.Violations {
		msgs = append(msgs, v.Msg)
	}
	return strings.Join(msgs, "; ")
}

// Evaluate applies p to a sized intent. Limits that need a stop loss are
// skipped when the intent has none.
func Evaluate(p Policy, intent TradeIntent, acct AccountSnapshot) Decision {
	d := Decision{Allowed: true}

	if intent.Lots <= 0 {
		d.add("NO_VOLUME", "volume must be positive")
		return d
	}

	if p.MaxOpenPositions > 0 && acct.OpenPositions >= p.MaxOpenPositions {
		d.add("TOO_MANY_POSITIONS",
			fmt.Sprintf("open positions %d >= max %d", acct.OpenPositions, p.MaxOpenPositions))
	}

	if p.MaxMarginPct > 0 && acct.Equity > 0 && acct.Margin/acct.Equity > p.MaxMarginPct {
		d.add("MARGIN_TOO_HIGH",
			fmt.Sprintf("margin used %.2f%% exceeds max %.2f%%",
				100*(acct.Margin/acct.Equity), 100*p.MaxMarginPct))
	}

	if intent.Stop == 0 {
		return d
	}

	d.PlannedRisk = PlannedRisk(intent.Lots, intent.Entry, intent.Stop, intent.TickSize, intent.TickValue)
	d.PlannedRiskPct = RiskPct(d.PlannedRisk, acct.Equity)
	if intent.TakeProfit != 0 {
		d.PlannedRR = RR(intent.Entry, intent.Stop, intent.TakeProfit)
	}

	if p.MaxRiskPct > 0 && d.PlannedRiskPct > p.MaxRiskPct {
		d.add("RISK_TOO_HIGH",
			fmt.Sprintf("planned risk %.2f%% exceeds max %.2f%%",
				100*d.PlannedRiskPct, 100*p.MaxRiskPct))
	}
	if p.MinRR > 0 && intent.TakeProfit != 0 && d.PlannedRR < p.MinRR {
		d.add("RR_TOO_LOW",
			fmt.Sprintf("RR %.2f below minimum %.2f", d.PlannedRR, p.MinRR))
	}

	return d
}

package risk

// Policy holds optional pre-trade limits. Zero values disable a limit.
type Policy struct {
	DefaultRiskPct   float64 `json:"default_risk_pct" yaml:"default_risk_pct" validate:"gte=0,lte=1"`
	MaxRiskPct       float64 `json:"max_risk_pct" yaml:"max_risk_pct" validate:"gte=0,lte=1"`
	MaxOpenPositions int     `json:"max_open_positions" yaml:"max_open_positions" validate:"gte=0"`
	MaxMarginPct     float64 `json:"max_margin_pct" yaml:"max_margin_pct" validate:"gte=0,lte=1"`
	MinRR            float64 `json:"min_rr" yaml:"min_rr" validate:"gte=0"`
}

type TradeIntent struct {
	Symbol     string
	Lots       float64
	Entry      float64
	Stop       float64
	TakeProfit float64
	TickSize   float64
	TickValue  float64
}

type AccountSnapshot struct {
	Balance       float64
	Equity        float64
	Margin        float64
	OpenPositions int
}

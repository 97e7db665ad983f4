package market

import (
	"math"

	"github.com/shopspring/decimal"
)

// NormalizeVolume clamps v to [VolumeMin, VolumeMax] and rounds it down to a
// whole number of VolumeStep. The result is always within bounds and an exact
// multiple of the step.
func NormalizeVolume(v float64, info SymbolInfo) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = info.VolumeMin
	}

	step := decimal.NewFromFloat(info.VolumeStep)
	lo := decimal.NewFromFloat(info.VolumeMin)
	hi := decimal.NewFromFloat(info.VolumeMax)
	d := decimal.NewFromFloat(v)

	if step.IsPositive() {
		// keep the bounds themselves on the step grid
		lo = lo.Div(step).Ceil().Mul(step)
		hi = hi.Div(step).Floor().Mul(step)
		d = d.Div(step).Floor().Mul(step)
	}
	if hi.LessThan(lo) {
		hi = lo
	}
	if d.LessThan(lo) {
		d = lo
	}
	if d.GreaterThan(hi) {
		d = hi
	}

	f, _ := d.Float64()
	return f
}

// NormalizePrice rounds p to the symbol's quoted digits.
func NormalizePrice(p float64, digits int) float64 {
	if digits < 0 {
		return p
	}
	f, _ := decimal.NewFromFloat(p).Round(int32(digits)).Float64()
	return f
}

package market

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeVolume(t *testing.T) {
	t.Parallel()

	info := SymbolInfo{VolumeMin: 0.01, VolumeMax: 50, VolumeStep: 0.01}

	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"already on step", 0.25, 0.25},
		{"rounds down", 0.259, 0.25},
		{"below min", 0.001, 0.01},
		{"zero", 0, 0.01},
		{"negative", -3, 0.01},
		{"above max", 120, 50},
		{"float noise", 0.1 + 0.2, 0.3},
		{"nan", math.NaN(), 0.01},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, NormalizeVolume(tt.in, info), 1e-12)
		})
	}
}

func TestNormalizeVolumeBoundsAndStep(t *testing.T) {
	t.Parallel()

	infos := []SymbolInfo{
		{VolumeMin: 0.01, VolumeMax: 100, VolumeStep: 0.01},
		{VolumeMin: 0.1, VolumeMax: 10, VolumeStep: 0.1},
		{VolumeMin: 1, VolumeMax: 500, VolumeStep: 1},
		{VolumeMin: 0.05, VolumeMax: 3.33, VolumeStep: 0.05},
	}

	for _, info := range infos {
		step := decimal.NewFromFloat(info.VolumeStep)
		for v := -1.0; v < info.VolumeMax*1.5; v += info.VolumeMax / 97 {
			got := NormalizeVolume(v, info)
			assert.GreaterOrEqual(t, got, info.VolumeMin, "v=%v", v)
			assert.LessOrEqual(t, got, info.VolumeMax, "v=%v", v)

			ratio := decimal.NewFromFloat(got).Div(step)
			assert.True(t, ratio.Equal(ratio.Floor()), "%v is not a multiple of %v", got, info.VolumeStep)
		}
	}
}

func TestNormalizePrice(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.10001, NormalizePrice(1.100014, 5))
	assert.Equal(t, 151.235, NormalizePrice(151.2349, 3))
	assert.Equal(t, 2.5, NormalizePrice(2.5, -1))
}

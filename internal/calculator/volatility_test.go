package calculator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"CDPShield/internal/model"
)

func bars(closes ...float64) []model.OHLCV {
	out := make([]model.OHLCV, len(closes))
	for i, c := range closes {
		out[i] = model.OHLCV{Close: c}
	}
	return out
}

func TestCalculateVolatility(t *testing.T) {
	tests := []struct {
		name    string
		closes  []float64
		want    float64
		wantErr bool
	}{
		{name: "flat", closes: []float64{100, 100, 100, 100}, want: 0},
		{
			// returns +ln2, -ln2: sample stdev = ln2*sqrt(2)
			name:   "alternating",
			closes: []float64{100, 200, 100},
			want:   math.Ln2 * math.Sqrt2,
		},
		{
			// +3%, -3%, +3%: a normal ETH week stays far below the 0.5 alarm
			name:   "daily scale",
			closes: []float64{100, 103, 99.91, 102.9073},
			want:   stat.StdDev([]float64{math.Log(1.03), math.Log(0.97), math.Log(1.03)}, nil),
		},
		{name: "too short", closes: []float64{100, 101}, wantErr: true},
		{name: "non-positive", closes: []float64{100, 0, 100}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateVolatility(bars(tt.closes...))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCalculateChange24h(t *testing.T) {
	got, err := CalculateChange24h(bars(90, 100, 102.5))
	require.NoError(t, err)
	assert.InDelta(t, 2.5, got, 1e-9)

	_, err = CalculateChange24h(bars(100))
	assert.Error(t, err)

	_, err = CalculateChange24h(bars(0, 100))
	assert.Error(t, err)
}

func TestLogReturns(t *testing.T) {
	r, err := LogReturns([]float64{1, math.E})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r[0], 1e-12)
}

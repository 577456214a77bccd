package dataset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuantile(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		p      float64
		want   float64
	}{
		{"median of odd count", []float64{3, 1, 2}, 0.5, 2},
		{"median interpolates", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"first percentile interpolates", []float64{0, 100}, 0.01, 1},
		{"p75 of four", []float64{10, 20, 30, 40}, 0.75, 32.5},
		{"p0 is minimum", []float64{5, 1, 9}, 0, 1},
		{"p1 is maximum", []float64{5, 1, 9}, 1, 9},
		{"single value", []float64{7}, 0.9, 7},
		{"missing values ignored", []float64{1, Missing, 2, Missing, 3}, 0.5, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Quantile(tt.values, tt.p), 1e-12)
		})
	}

	t.Run("empty input is missing", func(t *testing.T) {
		assert.True(t, IsMissing(Quantile(nil, 0.5)))
		assert.True(t, IsMissing(Quantile([]float64{Missing}, 0.5)))
	})
}

func TestMean(t *testing.T) {
	assert.InDelta(t, 2.0, Mean([]float64{1, 2, 3}), 1e-12)
	assert.InDelta(t, 2.0, Mean([]float64{1, Missing, 3}), 1e-12)
	assert.True(t, IsMissing(Mean(nil)))
}

func TestClip(t *testing.T) {
	assert.Equal(t, 2.0, Clip(1, 2, 5))
	assert.Equal(t, 5.0, Clip(9, 2, 5))
	assert.Equal(t, 3.0, Clip(3, 2, 5))
	assert.True(t, math.IsNaN(Clip(Missing, 2, 5)))
}

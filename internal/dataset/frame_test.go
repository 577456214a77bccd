package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "bankpanel/internal/errors"
)

func newTestFrame(t *testing.T) *Frame {
	t.Helper()
	f, err := NewFrame(
		[]int64{1, 1, 2, 2},
		[]string{"2005Q1", "2005Q2", "2005Q1", "2005Q2"},
	)
	require.NoError(t, err)
	require.NoError(t, f.AddColumn("assets", []float64{10, 12, 20, Missing}))
	require.NoError(t, f.AddColumn("deposits", []float64{5, 6, 9, 11}))
	return f
}

func TestNewFrame_LengthMismatch(t *testing.T) {
	_, err := NewFrame([]int64{1}, []string{"2005Q1", "2005Q2"})
	assert.Error(t, err)
}

func TestAddColumn(t *testing.T) {
	f := newTestFrame(t)

	t.Run("wrong length", func(t *testing.T) {
		assert.Error(t, f.AddColumn("short", []float64{1}))
	})

	t.Run("duplicate name", func(t *testing.T) {
		assert.Error(t, f.AddColumn("assets", []float64{1, 2, 3, 4}))
	})

	t.Run("column order preserved", func(t *testing.T) {
		assert.Equal(t, []string{"assets", "deposits"}, f.Columns())
	})
}

func TestColumn_Missing(t *testing.T) {
	f := newTestFrame(t)

	_, err := f.Column("nonexistent")
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrTypeNotFound, appErr.Type)
}

func TestFilter_DeepCopy(t *testing.T) {
	f := newTestFrame(t)

	sub, err := f.Filter([]bool{true, false, true, false})
	require.NoError(t, err)
	assert.Equal(t, 2, sub.Len())
	assert.Equal(t, []int64{1, 2}, sub.Banks())
	assert.Equal(t, []string{"2005Q1", "2005Q1"}, sub.Quarters())

	// Mutating the filtered copy must not touch the base frame
	col, err := sub.Column("assets")
	require.NoError(t, err)
	col[0] = 999

	orig, err := f.Column("assets")
	require.NoError(t, err)
	assert.Equal(t, 10.0, orig[0])
}

func TestFilter_MaskLengthMismatch(t *testing.T) {
	f := newTestFrame(t)
	_, err := f.Filter([]bool{true})
	assert.Error(t, err)
}

func TestSortByBankQuarter(t *testing.T) {
	f, err := NewFrame(
		[]int64{2, 1, 2, 1},
		[]string{"2005Q2", "2005Q2", "2005Q1", "2005Q1"},
	)
	require.NoError(t, err)
	require.NoError(t, f.AddColumn("v", []float64{4, 2, 3, 1}))

	f.SortByBankQuarter()

	assert.Equal(t, []int64{1, 1, 2, 2}, f.Banks())
	assert.Equal(t, []string{"2005Q1", "2005Q2", "2005Q1", "2005Q2"}, f.Quarters())
	col, _ := f.Column("v")
	assert.Equal(t, []float64{1, 2, 3, 4}, col)
}

func TestDropColumn(t *testing.T) {
	f := newTestFrame(t)
	f.DropColumn("assets")

	assert.False(t, f.HasColumn("assets"))
	assert.Equal(t, []string{"deposits"}, f.Columns())

	// Dropping an unknown column is a no-op
	f.DropColumn("assets")
	assert.Equal(t, []string{"deposits"}, f.Columns())
}

func TestQuantile_Frame(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		p        float64
		expected float64
	}{
		{"median of odd count", []float64{3, 1, 2}, 0.5, 2},
		{"median interpolates", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"q75 interpolates", []float64{1, 2, 3, 4}, 0.75, 3.25},
		{"p=0 is minimum", []float64{5, 1, 9}, 0, 1},
		{"p=1 is maximum", []float64{5, 1, 9}, 1, 9},
		{"missing values ignored", []float64{1, Missing, 3}, 0.5, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Quantile(tt.values, tt.p), 1e-12)
		})
	}

	t.Run("all missing", func(t *testing.T) {
		assert.True(t, IsMissing(Quantile([]float64{Missing, Missing}, 0.5)))
	})
}

func TestMean_Frame(t *testing.T) {
	assert.InDelta(t, 2.0, Mean([]float64{1, 2, 3}), 1e-12)
	assert.InDelta(t, 2.0, Mean([]float64{1, Missing, 3}), 1e-12)
	assert.True(t, IsMissing(Mean(nil)))
}

func TestClip_Frame(t *testing.T) {
	assert.Equal(t, 1.0, Clip(0.5, 1, 2))
	assert.Equal(t, 2.0, Clip(3.0, 1, 2))
	assert.Equal(t, 1.5, Clip(1.5, 1, 2))
	assert.True(t, IsMissing(Clip(Missing, 1, 2)))
}

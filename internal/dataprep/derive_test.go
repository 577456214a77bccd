package dataprep

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankpanel/internal/config"
	"bankpanel/internal/dataset"
	apperrors "bankpanel/internal/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPipelineConfig() config.PipelineConfig {
	return config.Default().Pipeline
}

// rawPanel builds a minimal raw frame: two banks over three quarters with
// every column the derivation pass consumes.
func rawPanel(t *testing.T) *dataset.Frame {
	t.Helper()
	f, err := dataset.NewFrame(
		[]int64{1, 1, 1, 2, 2, 2},
		[]string{"2005Q1", "2005Q2", "2005Q3", "2005Q1", "2005Q2", "2005Q3"},
	)
	require.NoError(t, err)

	add := func(name string, values []float64) {
		require.NoError(t, f.AddColumn(name, values))
	}
	add("cert", []float64{101, 101, 101, 202, 202, 202})
	add("chartertype", []float64{200, 200, 200, 200, 200, 200})
	add("year", []float64{2005, 2005, 2005, 2005, 2005, 2005})
	add("quarter", []float64{1, 2, 3, 1, 2, 3})
	add("assets", []float64{100, 110, 121, 1000, 1100, 4000})
	add("liabilities", []float64{90, 99, 108, 900, 990, 1080})
	add("deposits", []float64{80, 88, 96, 800, 880, 960})
	add("intexpdomdep", []float64{1, 1.1, 1.2, 10, 11, 12})
	add("savdep", []float64{40, 44, 48, 400, 440, 480})
	add("timedep", []float64{20, 22, 24, 200, 220, 240})
	add("cash", []float64{10, 11, 12, 100, 110, 120})
	add("securities", []float64{30, 33, 36, 300, 330, 360})
	add("loans", []float64{50, 55, 60, 500, 550, 600})
	add("reloans", []float64{25, 27, 29, 250, 270, 290})
	add("ciloans", []float64{15, 16, 17, 150, 160, 170})
	return f
}

func mergeTestRates(t *testing.T, f *dataset.Frame) {
	t.Helper()
	require.NoError(t, MergeRates(f, []RateObservation{
		{Year: 2005, Quarter: 1, FF: 0.02, DFF: dataset.Missing},
		{Year: 2005, Quarter: 2, FF: 0.025, DFF: 0.005},
		{Year: 2005, Quarter: 3, FF: 0.0275, DFF: 0.0025},
	}))
}

func TestCleanPanel(t *testing.T) {
	cfg := testPipelineConfig()

	t.Run("charter filter", func(t *testing.T) {
		f, err := dataset.NewFrame([]int64{1, 2, 3}, []string{"2005Q1", "2005Q1", "2005Q1"})
		require.NoError(t, err)
		require.NoError(t, f.AddColumn("cert", []float64{101, 202, 303}))
		require.NoError(t, f.AddColumn("chartertype", []float64{200, 300, 200}))
		require.NoError(t, f.AddColumn("year", []float64{2005, 2005, 2005}))

		cleaned, err := CleanPanel(f, cfg, testLogger())
		require.NoError(t, err)
		assert.Equal(t, 2, cleaned.Len())
		assert.Equal(t, []int64{1, 3}, cleaned.Banks())
	})

	t.Run("load-year window", func(t *testing.T) {
		f, err := dataset.NewFrame([]int64{1, 1, 1}, []string{"1990Q1", "2005Q1", "2020Q1"})
		require.NoError(t, err)
		require.NoError(t, f.AddColumn("cert", []float64{101, 101, 101}))
		require.NoError(t, f.AddColumn("chartertype", []float64{200, 200, 200}))
		require.NoError(t, f.AddColumn("year", []float64{1990, 2005, 2020}))

		cleaned, err := CleanPanel(f, cfg, testLogger())
		require.NoError(t, err)
		assert.Equal(t, 1, cleaned.Len())
		assert.Equal(t, []string{"2005Q1"}, cleaned.Quarters())
	})

	t.Run("certificate repair", func(t *testing.T) {
		f, err := dataset.NewFrame([]int64{repairBankID}, []string{"2005Q1"})
		require.NoError(t, err)
		require.NoError(t, f.AddColumn("cert", []float64{99999}))
		require.NoError(t, f.AddColumn("chartertype", []float64{200}))
		require.NoError(t, f.AddColumn("year", []float64{2005}))

		cleaned, err := CleanPanel(f, cfg, testLogger())
		require.NoError(t, err)
		cert, err := cleaned.Column("cert")
		require.NoError(t, err)
		assert.Equal(t, float64(repairedCert), cert[0])
	})

	t.Run("duplicates keep first", func(t *testing.T) {
		f, err := dataset.NewFrame([]int64{1, 1}, []string{"2005Q1", "2005Q1"})
		require.NoError(t, err)
		require.NoError(t, f.AddColumn("cert", []float64{101, 101}))
		require.NoError(t, f.AddColumn("chartertype", []float64{200, 200}))
		require.NoError(t, f.AddColumn("year", []float64{2005, 2005}))
		require.NoError(t, f.AddColumn("assets", []float64{100, 999}))

		cleaned, err := CleanPanel(f, cfg, testLogger())
		require.NoError(t, err)
		assert.Equal(t, 1, cleaned.Len())
		assets, err := cleaned.Column("assets")
		require.NoError(t, err)
		assert.Equal(t, 100.0, assets[0])
	})
}

func TestMergeHerfindahl(t *testing.T) {
	t.Run("matched and unmatched keys", func(t *testing.T) {
		f, err := dataset.NewFrame([]int64{1, 1}, []string{"2005Q1", "2005Q2"})
		require.NoError(t, err)
		require.NoError(t, f.AddColumn("cert", []float64{101, 101}))
		require.NoError(t, f.AddColumn("year", []float64{2005, 2005}))
		require.NoError(t, f.AddColumn("quarter", []float64{1, 2}))

		series := map[HerfKey]float64{
			{Cert: 101, Year: 2005, Quarter: 1}: 0.25,
		}
		require.NoError(t, MergeHerfindahl(f, series))

		herf, err := f.Column("l1_herfdepcty")
		require.NoError(t, err)
		assert.Equal(t, 0.25, herf[0])
		assert.True(t, dataset.IsMissing(herf[1]))
	})

	t.Run("duplicate panel key is fatal", func(t *testing.T) {
		f, err := dataset.NewFrame([]int64{1, 2}, []string{"2005Q1", "2005Q1"})
		require.NoError(t, err)
		require.NoError(t, f.AddColumn("cert", []float64{101, 101}))
		require.NoError(t, f.AddColumn("year", []float64{2005, 2005}))
		require.NoError(t, f.AddColumn("quarter", []float64{1, 1}))

		err = MergeHerfindahl(f, map[HerfKey]float64{})
		require.Error(t, err)
		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.ErrTypeValidation, appErr.Type)
	})
}

func TestMergeRates(t *testing.T) {
	f, err := dataset.NewFrame([]int64{1, 1}, []string{"2005Q1", "2007Q1"})
	require.NoError(t, err)
	require.NoError(t, f.AddColumn("year", []float64{2005, 2007}))
	require.NoError(t, f.AddColumn("quarter", []float64{1, 1}))

	require.NoError(t, MergeRates(f, []RateObservation{
		{Year: 2005, Quarter: 1, FF: 0.02, DFF: 0.0025},
	}))

	ff, err := f.Column("FF")
	require.NoError(t, err)
	dff, err := f.Column("d_FF")
	require.NoError(t, err)
	assert.Equal(t, 0.02, ff[0])
	assert.Equal(t, 0.0025, dff[0])
	assert.True(t, dataset.IsMissing(ff[1]))
	assert.True(t, dataset.IsMissing(dff[1]))
}

func TestDeriveFeatures(t *testing.T) {
	cfg := testPipelineConfig()
	f := rawPanel(t)
	mergeTestRates(t, f)
	require.NoError(t, DeriveFeatures(f, cfg, testLogger()))

	t.Run("log differences within bank", func(t *testing.T) {
		d, err := f.Column("d_total_assets")
		require.NoError(t, err)
		assert.True(t, dataset.IsMissing(d[0]))
		assert.InDelta(t, math.Log(110.0/100.0), d[1], 1e-12)
		assert.True(t, dataset.IsMissing(d[3]), "first row of second bank")
	})

	t.Run("wholesale funding is liabilities minus deposits", func(t *testing.T) {
		d, err := f.Column("d_wholesale_funding")
		require.NoError(t, err)
		assert.InDelta(t, math.Log(11.0/10.0), d[1], 1e-12)
	})

	t.Run("deposit rate and spread", func(t *testing.T) {
		rate, err := f.Column("deposit_rate")
		require.NoError(t, err)
		assert.InDelta(t, 4*1.0/80.0, rate[0], 1e-12)

		spread, err := f.Column("d_deposit_spread")
		require.NoError(t, err)
		dRate := 4*1.1/88.0 - 4*1.0/80.0
		assert.InDelta(t, 0.005-dRate, spread[1], 1e-12)
	})

	t.Run("growth flag", func(t *testing.T) {
		flag, err := f.Column("high_asset_growth")
		require.NoError(t, err)
		// bank 2 quadruples assets between 2005Q2 and 2005Q3
		assert.Equal(t, 1.0, flag[5])
		assert.Equal(t, 0.0, flag[1])
		assert.Equal(t, 0.0, flag[0], "no computable growth on first observation")
	})

	t.Run("size flags from bank-average assets", func(t *testing.T) {
		top25, err := f.Column("top25_assets")
		require.NoError(t, err)
		top10, err := f.Column("top10_assets")
		require.NoError(t, err)
		// bank 2 holds the larger average and sits above both thresholds
		assert.Equal(t, 1.0, top25[3])
		assert.Equal(t, 1.0, top10[3])
		assert.Equal(t, 0.0, top25[0])
	})

	t.Run("post-period indicator", func(t *testing.T) {
		post, err := f.Column("post2008")
		require.NoError(t, err)
		for _, v := range post {
			assert.Equal(t, 0.0, v)
		}
	})

	t.Run("levels replaced by differences", func(t *testing.T) {
		assert.False(t, f.HasColumn("total_assets"))
		assert.False(t, f.HasColumn("assets"))
		assert.True(t, f.HasColumn("d_total_assets"))
	})
}

func TestDeriveFeatures_PostIndicator(t *testing.T) {
	f, err := dataset.NewFrame([]int64{1, 1}, []string{"2008Q4", "2009Q1"})
	require.NoError(t, err)
	add := func(name string, values []float64) {
		require.NoError(t, f.AddColumn(name, values))
	}
	add("cert", []float64{101, 101})
	add("year", []float64{2008, 2009})
	add("quarter", []float64{4, 1})
	add("assets", []float64{100, 110})
	add("liabilities", []float64{90, 99})
	add("deposits", []float64{80, 88})
	add("intexpdomdep", []float64{1, 1.1})
	add("savdep", []float64{40, 44})
	add("timedep", []float64{20, 22})
	add("cash", []float64{10, 11})
	add("securities", []float64{30, 33})
	add("loans", []float64{50, 55})
	add("reloans", []float64{25, 27})
	add("ciloans", []float64{15, 16})
	require.NoError(t, MergeRates(f, []RateObservation{
		{Year: 2008, Quarter: 4, FF: 0.0025, DFF: -0.0175},
		{Year: 2009, Quarter: 1, FF: 0.00125, DFF: -0.00125},
	}))

	require.NoError(t, DeriveFeatures(f, testPipelineConfig(), testLogger()))

	post, err := f.Column("post2008")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, post)
}

func TestTrimToWindow(t *testing.T) {
	f, err := dataset.NewFrame([]int64{1, 1, 1}, []string{"1993Q4", "2000Q1", "2014Q1"})
	require.NoError(t, err)
	require.NoError(t, f.AddColumn("year", []float64{1993, 2000, 2014}))

	trimmed, err := TrimToWindow(f, testPipelineConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, trimmed.Len())
	assert.Equal(t, []string{"2000Q1"}, trimmed.Quarters())
}

func TestGroupDiff(t *testing.T) {
	banks := []int64{1, 1, 1, 2, 2}
	values := []float64{10, 12, dataset.Missing, 5, 9}

	out := groupDiff(banks, values)
	assert.True(t, dataset.IsMissing(out[0]))
	assert.Equal(t, 2.0, out[1])
	assert.True(t, dataset.IsMissing(out[2]))
	assert.True(t, dataset.IsMissing(out[3]), "bank boundary")
	assert.Equal(t, 4.0, out[4])
}

func TestGroupPctChange_ZeroBase(t *testing.T) {
	out := groupPctChange([]int64{1, 1, 1}, []float64{0, 5, 0})
	assert.True(t, math.IsInf(out[1], 1), "growth from a zero base is unbounded")
	assert.Equal(t, -1.0, out[2])

	out = groupPctChange([]int64{1, 1}, []float64{0, 0})
	assert.True(t, dataset.IsMissing(out[1]), "zero over zero has no rate")
}

func TestDeriveGrowthFlag_ZeroBase(t *testing.T) {
	f, err := dataset.NewFrame([]int64{1, 1}, []string{"2005Q1", "2005Q2"})
	require.NoError(t, err)
	require.NoError(t, f.AddColumn("total_assets", []float64{0, 5}))

	require.NoError(t, deriveGrowthFlag(f, testPipelineConfig()))

	flag, err := f.Column("high_asset_growth")
	require.NoError(t, err)
	assert.Equal(t, 1.0, flag[1], "a bank growing from zero assets is flagged")
}

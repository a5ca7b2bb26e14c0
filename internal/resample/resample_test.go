package resample

import (
	"math"
	"testing"
	"time"

	"github.com/aristath/epochscript/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minuteBars(start time.Time, n int, open, high, low, close, volume func(i int) float64) *domain.Table {
	ts := make([]int64, n)
	o := make([]float64, n)
	h := make([]float64, n)
	l := make([]float64, n)
	c := make([]float64, n)
	v := make([]float64, n)
	for i := 0; i < n; i++ {
		ts[i] = start.Add(time.Duration(i) * time.Minute).UnixNano()
		o[i] = open(i)
		h[i] = high(i)
		l[i] = low(i)
		c[i] = close(i)
		v[i] = volume(i)
	}
	tbl := domain.NewTable(ts)
	tbl.AddColumn(&domain.Column{Name: "open", Kind: domain.ColumnKindOpen, Numbers: o})
	tbl.AddColumn(&domain.Column{Name: "high", Kind: domain.ColumnKindHigh, Numbers: h})
	tbl.AddColumn(&domain.Column{Name: "low", Kind: domain.ColumnKindLow, Numbers: l})
	tbl.AddColumn(&domain.Column{Name: "close", Kind: domain.ColumnKindClose, Numbers: c})
	tbl.AddColumn(&domain.Column{Name: "volume", Kind: domain.ColumnKindVolume, Numbers: v})
	return tbl
}

// TestResampleOneMinuteToHourly reproduces scenario #5: 180 one-minute bars
// from 09:00 to 12:00 UTC resampled to 1h buckets labeled 09:00, 10:00,
// 11:00, 12:00, with open=first/high=max/low=min/close=last/volume=sum.
func TestResampleOneMinuteToHourly(t *testing.T) {
	start := time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)
	src := minuteBars(start, 180,
		func(i int) float64 { return float64(100 + i) },     // open
		func(i int) float64 { return float64(100 + i + 1) }, // high
		func(i int) float64 { return float64(100 + i - 1) }, // low
		func(i int) float64 { return float64(100 + i) },     // close
		func(i int) float64 { return 1 },                    // volume
	)

	r := New([]domain.Timeframe{"1h"}, nil)
	buckets, err := r.Build([]AssetTable{{Asset: domain.Asset{Id: "TEST"}, Table: src}}, nil)
	require.NoError(t, err)
	require.Len(t, buckets, 1)

	out := buckets[0].Table
	require.Equal(t, 4, out.NumRows())

	wantLabels := []time.Time{
		time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 7, 29, 11, 0, 0, 0, time.UTC),
		time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC),
	}
	for i, want := range wantLabels {
		assert.Equal(t, want.UnixNano(), out.Timestamps[i], "bucket %d label", i)
	}

	// Bucket 0 is the single 09:00 instant (right-closed: (08:00,09:00]).
	openCol := out.Column("open")
	highCol := out.Column("high")
	lowCol := out.Column("low")
	closeCol := out.Column("close")
	volCol := out.Column("volume")

	assert.Equal(t, 100.0, openCol.Numbers[0])
	assert.Equal(t, 100.0, closeCol.Numbers[0])
	assert.Equal(t, 1.0, volCol.Numbers[0])

	// Bucket 1 covers minutes 09:01..10:00 (60 rows: i=1..60).
	assert.Equal(t, 101.0, openCol.Numbers[1])  // open at i=1
	assert.Equal(t, 160.0, closeCol.Numbers[1]) // close at i=60
	assert.Equal(t, 161.0, highCol.Numbers[1])  // max(high) over i=1..60 -> 100+60+1
	assert.Equal(t, 100.0, lowCol.Numbers[1])   // min(low) over i=1..60 -> 100+1-1
	assert.Equal(t, 60.0, volCol.Numbers[1])

	// Bucket 3 covers minutes 11:01..11:59 (i=121..179; the series ends
	// before the 12:00 edge row, so this bucket has 59 rows not 60).
	assert.Equal(t, 179.0+100.0, closeCol.Numbers[3])
}

func TestResampleNullPreservation(t *testing.T) {
	start := time.Date(2026, 7, 29, 9, 1, 0, 0, time.UTC)
	ts := []int64{
		start.UnixNano(),
		start.Add(time.Minute).UnixNano(),
		start.Add(2 * time.Minute).UnixNano(),
	}
	src := domain.NewTable(ts)
	src.AddColumn(&domain.Column{
		Name: "flag", Kind: domain.ColumnKindOther,
		Numbers: []float64{math.NaN(), math.NaN(), math.NaN()},
		Nulls:   []bool{true, true, true},
	})

	r := New([]domain.Timeframe{"5Min"}, nil)
	buckets, err := r.Build([]AssetTable{{Asset: domain.Asset{Id: "TEST"}, Table: src}}, nil)
	require.NoError(t, err)
	require.Len(t, buckets, 1)

	out := buckets[0].Table
	require.Equal(t, 1, out.NumRows())
	flagCol := out.Column("flag")
	assert.True(t, flagCol.IsNull(0), "bucket with only-null inputs must remain null, not synthesize a value")
}

func TestResampleSkipsNonContinuationFutures(t *testing.T) {
	src := minuteBars(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC), 5,
		func(i int) float64 { return 1 }, func(i int) float64 { return 1 },
		func(i int) float64 { return 1 }, func(i int) float64 { return 1 },
		func(i int) float64 { return 1 })

	r := New([]domain.Timeframe{"1h"}, nil)
	futuresContract := domain.Asset{Id: "ESZ6", Class: domain.AssetClassFutures, IsFutures: true}
	buckets, err := r.Build([]AssetTable{{Asset: futuresContract, Table: src}}, nil)
	require.NoError(t, err)
	assert.Empty(t, buckets, "a dated futures contract that is not a continuation must be skipped")
}

func TestResampleIntradayToDailyUsesMarketClose(t *testing.T) {
	day := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC) // ordinary NYSE trading Wednesday
	ts := []int64{
		day.Add(14 * time.Hour).UnixNano(), // 14:00 UTC == 10:00 America/New_York
		day.Add(19 * time.Hour).UnixNano(), // 19:00 UTC == 15:00 America/New_York
	}
	src := domain.NewTable(ts)
	src.AddColumn(&domain.Column{Name: "close", Kind: domain.ColumnKindClose, Numbers: []float64{10, 20}})

	r := New([]domain.Timeframe{"1D"}, nil)
	buckets, err := r.Build([]AssetTable{{Asset: domain.Asset{Id: "AAPL", Exchange: "NYSE"}, Table: src}}, nil)
	require.NoError(t, err)
	require.Len(t, buckets, 1)

	out := buckets[0].Table
	require.Equal(t, 1, out.NumRows())
	closeCol := out.Column("close")
	assert.Equal(t, 20.0, closeCol.Numbers[0])
}

func TestResampleMonthlyEndAnchor(t *testing.T) {
	ts := []int64{
		time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC).UnixNano(),
		time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC).UnixNano(),
	}
	src := domain.NewTable(ts)
	src.AddColumn(&domain.Column{Name: "close", Kind: domain.ColumnKindClose, Numbers: []float64{1, 2}})

	r := New([]domain.Timeframe{"1M-END"}, nil)
	buckets, err := r.Build([]AssetTable{{Asset: domain.Asset{Id: "AAPL"}, Table: src}}, nil)
	require.NoError(t, err)

	out := buckets[0].Table
	require.Equal(t, 2, out.NumRows())
	assert.Equal(t, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC).UnixNano(), out.Timestamps[0])
	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC).UnixNano(), out.Timestamps[1])
}

func TestResampleQuarterlyFiscalAnchor(t *testing.T) {
	// Fiscal year starting July: "3M" quarter grouping anchored on JUL.
	ts := []int64{
		time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC).UnixNano(), // FY Q4 (Apr-Jun)
		time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC).UnixNano(), // same quarter
	}
	src := domain.NewTable(ts)
	src.AddColumn(&domain.Column{Name: "close", Kind: domain.ColumnKindClose, Numbers: []float64{1, 2}})

	r := New([]domain.Timeframe{"1Q-JUL-END"}, nil)
	buckets, err := r.Build([]AssetTable{{Asset: domain.Asset{Id: "AAPL"}, Table: src}}, nil)
	require.NoError(t, err)

	out := buckets[0].Table
	require.Equal(t, 1, out.NumRows())
	assert.Equal(t, time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC).UnixNano(), out.Timestamps[0])
}

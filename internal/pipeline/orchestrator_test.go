package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/epochscript/internal/domain"
	"github.com/aristath/epochscript/internal/queue"
)

// fakeLoader is a minimal IDataLoader returning a fixed set of asset tables.
type fakeLoader struct {
	tables []AssetTable
}

func (f *fakeLoader) LoadData() error              { return nil }
func (f *fakeLoader) GetStoredData() []AssetTable   { return f.tables }
func (f *fakeLoader) GetDataCategory() DataCategory { return DataCategoryEquity }
func (f *fakeLoader) GetAssets() []domain.Asset {
	out := make([]domain.Asset, len(f.tables))
	for i, at := range f.tables {
		out[i] = at.Asset
	}
	return out
}
func (f *fakeLoader) GetBenchmark() (*domain.Table, bool) { return nil, false }

// noopResampler declares no additional timeframes, so the orchestrator's
// flattening/index-build stages are exercised against the base timeframe
// alone, independent of internal/resample.
type noopResampler struct{}

func (noopResampler) Build(base []AssetTable, progress *queue.ProgressReporter) ([]Bucket, error) {
	return nil, nil
}

// identityExecutor implements IDataFlowOrchestrator by returning its input
// unchanged, so transformed data equals the flattened input exactly.
type identityExecutor struct{}

func (identityExecutor) ExecutePipeline(in TimeframeAssetTables) (TimeframeAssetTables, error) {
	return in, nil
}
func (identityExecutor) GetGeneratedReports() []Report           { return nil }
func (identityExecutor) GetGeneratedEventMarkers() []EventMarker { return nil }

func tableWithTimestamps(id string, ts []int64) AssetTable {
	table := domain.NewTable(ts)
	closes := make([]float64, len(ts))
	for i := range closes {
		closes[i] = float64(i)
	}
	table.AddColumn(&domain.Column{Name: "close", Kind: domain.ColumnKindClose, Numbers: closes})
	return AssetTable{Asset: domain.Asset{Id: id, Class: domain.AssetClassEquity}, Table: table}
}

func newTestDatabase(t *testing.T, tables []AssetTable) *Database {
	t.Helper()
	db := NewDatabase(Config{
		Loader:        &fakeLoader{tables: tables},
		Resampler:     noopResampler{},
		Executor:      identityExecutor{},
		BaseTimeframe: domain.Timeframe("1D"),
	})
	require.NoError(t, db.RunPipeline(nil))
	return db
}

func TestHandleDataDispatchesOncePerEntry(t *testing.T) {
	ts := []int64{100, 200, 300}
	db := newTestDatabase(t, []AssetTable{tableWithTimestamps("AAA", ts)})

	var calls int
	db.HandleData(func(tf domain.Timeframe, assetId string, slice *domain.Table, got int64) {
		calls++
		assert.Equal(t, domain.Timeframe("1D"), tf)
		assert.Equal(t, "AAA", assetId)
		assert.Equal(t, int64(200), got)
		assert.Equal(t, 1, slice.NumRows())
	}, 200)
	assert.Equal(t, 1, calls)
}

func TestHandleDataAbsentTimestampIsNoop(t *testing.T) {
	db := newTestDatabase(t, []AssetTable{tableWithTimestamps("AAA", []int64{100, 200})})

	var calls int
	db.HandleData(func(domain.Timeframe, string, *domain.Table, int64) { calls++ }, 999)
	assert.Equal(t, 0, calls)
}

func TestHandleDataDispatchesOncePerSharedTimestampAcrossTimeframes(t *testing.T) {
	db := newTestDatabase(t, []AssetTable{tableWithTimestamps("AAA", []int64{100, 200})})
	// Seed a second timeframe sharing timestamp 200 directly, bypassing the
	// resampler, to exercise dispatch across >1 (timeframe, asset) entry.
	db.mu.Lock()
	db.transformedData["1H"] = map[string]*domain.Table{"AAA": tableWithTimestamps("AAA", []int64{200}).Table}
	db.timestampIndex[200] = append(db.timestampIndex[200], IndexEntry{Timeframe: "1H", AssetId: "AAA", Start: 0, End: 0})
	db.mu.Unlock()

	var calls int
	db.HandleData(func(domain.Timeframe, string, *domain.Table, int64) { calls++ }, 200)
	assert.Equal(t, 2, calls)
}

func TestTimestampIndexFaithfulness(t *testing.T) {
	db := newTestDatabase(t, []AssetTable{tableWithTimestamps("AAA", []int64{100, 200, 200, 300})})

	index := db.GetTimestampIndex()
	entries := index[200]
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, 1, e.Start)
	assert.Equal(t, 2, e.End)

	table := db.GetTransformedData()[e.Timeframe][e.AssetId]
	for i := e.Start; i <= e.End; i++ {
		assert.Equal(t, int64(200), table.Timestamps[i])
	}

	for _, ts := range sortedTimestamps(index) {
		for _, entry := range index[ts] {
			tbl := db.GetTransformedData()[entry.Timeframe][entry.AssetId]
			for i := entry.Start; i <= entry.End; i++ {
				assert.Equal(t, ts, tbl.Timestamps[i])
			}
		}
	}
}

func TestValidateNoLostAssetsCatchesDroppedAsset(t *testing.T) {
	in := TimeframeAssetTables{"1D": {"AAA": domain.NewTable(nil), "BBB": domain.NewTable(nil)}}
	out := TimeframeAssetTables{"1D": {"AAA": domain.NewTable(nil)}}
	err := validateNoLostAssets(in, out)
	assert.Error(t, err)
}

func TestValidateNoLostAssetsPassesWhenComplete(t *testing.T) {
	in := TimeframeAssetTables{"1D": {"AAA": domain.NewTable(nil)}}
	out := TimeframeAssetTables{"1D": {"AAA": domain.NewTable(nil)}}
	assert.NoError(t, validateNoLostAssets(in, out))
}

func TestRefreshPipelineAppendsNewRowAndRebuildsIndex(t *testing.T) {
	db := newTestDatabase(t, []AssetTable{tableWithTimestamps("AAA", []int64{100, 200})})

	// DataCategoryFutures bypasses the NYSE-session guard that would
	// otherwise make this test's outcome depend on wall-clock time.
	err := db.RefreshPipeline(DataCategoryFutures, []BarUpdate{
		{Asset: domain.Asset{Id: "AAA", Class: domain.AssetClassEquity}, Timestamp: 300, Fields: map[string]float64{"close": 9}},
	}, nil)
	require.NoError(t, err)

	table := db.GetTransformedData()[domain.Timeframe("1D")]["AAA"]
	require.Equal(t, 3, table.NumRows())
	assert.Equal(t, int64(300), table.Timestamps[2])

	entries := db.GetTimestampIndex()[300]
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].Start)
}

package pipeline

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/epochscript/internal/calendar"
	"github.com/aristath/epochscript/internal/domain"
	"github.com/aristath/epochscript/internal/queue"
)

// IndexEntry is one (timeframe, asset, row-range) tuple attached to a
// timestamp in the inverted index (spec §3 "Timestamp inverted index",
// §4.11).
type IndexEntry struct {
	Timeframe domain.Timeframe
	AssetId   string
	Start     int // inclusive
	End       int // inclusive
}

// Handler is invoked once per IndexEntry matching a dispatched timestamp.
// Implementations must not mutate slice (spec §4.11 "Handlers must not
// mutate the transformed tables").
type Handler func(tf domain.Timeframe, assetId string, slice *domain.Table, t int64)

// Config wires a Database's collaborators (spec §6 CONSUMED interfaces).
type Config struct {
	Program       *domain.CompiledProgram
	Loader        IDataLoader
	Continuations IFuturesContinuationConstructor // nil if the run declares none
	Resampler     IResampler
	Executor      IDataFlowOrchestrator
	BaseTimeframe domain.Timeframe
	// WorkerLimit caps goroutine fan-out in the flattening and index-build
	// stages (spec §5, resolved from config.Config.WorkerLimit). Zero means
	// unbounded (errgroup.SetLimit is skipped).
	WorkerLimit int
}

// Database is the data pipeline orchestrator (spec §4.9, §4.11, §4.12): it
// owns the compiled program, raw and transformed data for one run's
// lifetime, and exposes the O(1) timestamp-indexed event dispatch.
//
// Database is not itself thread-safe across mutating calls (RunPipeline,
// RefreshPipeline); its read-only getters are safe to call concurrently
// between mutations (spec §4.12).
type Database struct {
	cfg Config

	// mu guards loadedBarData across RefreshPipeline's websocket-driven
	// mutation and any concurrent reader (spec §4.9, §5).
	mu            sync.RWMutex
	loadedBarData []AssetTable

	assets       []domain.Asset
	assetById    map[string]domain.Asset
	dataCategory DataCategory
	benchmark    *domain.Table
	hasBenchmark bool

	// transformedData and timestampIndex are rebuilt wholesale on every
	// RunPipeline/RefreshPipeline and are read-only to consumers thereafter
	// (spec §4.12).
	transformedData TimeframeAssetTables
	timestampIndex  map[int64][]IndexEntry

	reports      []Report
	eventMarkers []EventMarker

	nySessionMu   sync.Mutex
	nySessionDay  string
	nySessionOpen time.Time
	nySessionShut time.Time
	nySessionOK   bool
}

// NewDatabase builds an orchestrator over cfg. cfg.WorkerLimit of 0 leaves
// the flattening/index-build stages unbounded.
func NewDatabase(cfg Config) *Database {
	return &Database{cfg: cfg}
}

// reportProgress and reportProgressDone guard a possibly-nil
// *queue.ProgressReporter so RunPipeline/RefreshPipeline callers aren't
// forced to construct one (progress is an optional emitter, spec §6
// "RunPipeline(progress_emitter)").
func reportProgress(p *queue.ProgressReporter, phase string, current, total int, msg string) {
	if p != nil {
		p.Report(phase, current, total, msg)
	}
}

func reportProgressDone(p *queue.ProgressReporter, phase string, current, total int, msg string) {
	if p != nil {
		p.ReportUnthrottled(phase, current, total, msg)
	}
}

// RunPipeline executes LoadData -> AppendFuturesContinuations ->
// ResampleBarData -> TransformBarData -> build timestamp inverted index, in
// that strict order (spec §4.9). progress may be nil.
func (db *Database) RunPipeline(progress *queue.ProgressReporter) error {
	runID := uuid.NewString()

	reportProgress(progress, queue.PhaseLoadData, 0, 1, "loading raw bar data")
	if err := db.cfg.Loader.LoadData(); err != nil {
		return fmt.Errorf("pipeline: LoadData: %w", err)
	}
	raw := db.cfg.Loader.GetStoredData()
	assets := db.cfg.Loader.GetAssets()
	category := db.cfg.Loader.GetDataCategory()
	benchmark, hasBenchmark := db.cfg.Loader.GetBenchmark()
	reportProgressDone(progress, queue.PhaseLoadData, 1, 1, fmt.Sprintf("loaded %d assets", len(raw)))

	if db.cfg.Continuations != nil {
		reportProgress(progress, queue.PhaseAppendFuturesContinuations, 0, 1, "synthesizing continuations")
		continuations, err := db.cfg.Continuations.Build(raw)
		if err != nil {
			return fmt.Errorf("pipeline: AppendFuturesContinuations: %w", err)
		}
		raw = append(raw, continuations...)
		reportProgressDone(progress, queue.PhaseAppendFuturesContinuations, 1, 1, fmt.Sprintf("added %d continuations", len(continuations)))
	}

	db.mu.Lock()
	db.loadedBarData = raw
	db.assets = assets
	db.assetById = indexAssets(assets)
	db.dataCategory = category
	db.benchmark = benchmark
	db.hasBenchmark = hasBenchmark
	db.mu.Unlock()

	if err := db.rebuildDerivedData(raw, progress); err != nil {
		return err
	}

	reportProgressDone(progress, "RunPipeline", 1, 1, fmt.Sprintf("run %s complete: %d nodes", runID, len(db.cfg.Program.Nodes)))
	return nil
}

// RefreshPipeline seeds raw data from one asset class's decoded websocket
// bar-message batch, then rebuilds transformed data and the inverted index
// (spec §4.9 "RefreshPipeline"). For DataCategoryEquity it drops the batch
// and returns nil without logging it (not an error — spec §7 "Websocket
// update skipped") unless NYSE is currently in its regular session.
func (db *Database) RefreshPipeline(assetClass DataCategory, batch []BarUpdate, progress *queue.ProgressReporter) error {
	if len(batch) == 0 {
		return nil
	}
	if assetClass == DataCategoryEquity && !db.isNYSESessionOpenNow() {
		return nil // spec §7: websocket update skipped, not an error
	}

	db.mu.Lock()
	raw := db.mergeBarUpdates(batch)
	db.loadedBarData = raw
	db.mu.Unlock()

	return db.rebuildDerivedData(raw, progress)
}

// isNYSESessionOpenNow reports whether "now" falls within the NYSE regular
// session, caching the day's open/close instants (spec §9 open question:
// the cache key is "today" in America/New_York).
func (db *Database) isNYSESessionOpenNow() bool {
	nyse := calendar.NewNYSE()
	now := time.Now().UTC()

	db.nySessionMu.Lock()
	defer db.nySessionMu.Unlock()

	dayKey := now.In(nyLocation()).Format("2006-01-02")
	if db.nySessionDay != dayKey {
		db.nySessionDay = dayKey
		open, okOpen := nyse.MarketOpen(now)
		shut, okShut := nyse.MarketClose(now)
		db.nySessionOpen, db.nySessionShut, db.nySessionOK = open, shut, okOpen && okShut
	}
	if !db.nySessionOK {
		return false
	}
	return !now.Before(db.nySessionOpen) && !now.After(db.nySessionShut)
}

func nyLocation() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// mergeBarUpdates folds a batch of per-asset bar updates into
// db.loadedBarData, appending a new row when the update's timestamp is
// newer than the asset's last row, or overwriting the last row when the
// timestamp matches (spec §3 "strictly increasing per asset"). Caller must
// hold db.mu.
func (db *Database) mergeBarUpdates(batch []BarUpdate) []AssetTable {
	byId := make(map[string]int, len(db.loadedBarData))
	out := make([]AssetTable, len(db.loadedBarData))
	copy(out, db.loadedBarData)
	for i, at := range out {
		byId[at.Asset.Id] = i
	}

	for _, upd := range batch {
		idx, ok := byId[upd.Asset.Id]
		if !ok {
			table := barUpdateToTable(upd)
			out = append(out, AssetTable{Asset: upd.Asset, Table: table})
			byId[upd.Asset.Id] = len(out) - 1
			continue
		}
		out[idx].Table = appendOrReplaceRow(out[idx].Table, upd)
	}
	return out
}

func barUpdateToTable(upd BarUpdate) *domain.Table {
	t := domain.NewTable([]int64{upd.Timestamp})
	for name, v := range upd.Fields {
		t.AddColumn(&domain.Column{Name: name, Kind: kindForField(name), Numbers: []float64{v}, Nulls: []bool{false}})
	}
	return t
}

func appendOrReplaceRow(table *domain.Table, upd BarUpdate) *domain.Table {
	n := table.NumRows()
	if n > 0 && table.Timestamps[n-1] == upd.Timestamp {
		out := domain.NewTable(append([]int64{}, table.Timestamps...))
		for _, name := range table.ColumnNames() {
			col := table.Column(name)
			replaceLast(col, upd.Fields[name])
			out.AddColumn(col)
		}
		return out
	}

	out := domain.NewTable(append(append([]int64{}, table.Timestamps...), upd.Timestamp))
	for _, name := range table.ColumnNames() {
		col := table.Column(name)
		v, hasField := upd.Fields[name]
		nv := &domain.Column{Name: col.Name, Kind: col.Kind}
		nv.Numbers = append(append([]float64{}, col.Numbers...), v)
		nv.Nulls = append(append([]bool{}, col.Nulls...), !hasField)
		out.AddColumn(nv)
	}
	return out
}

func replaceLast(col *domain.Column, v float64) {
	if col.Numbers == nil || len(col.Numbers) == 0 {
		return
	}
	col.Numbers[len(col.Numbers)-1] = v
	if col.Nulls != nil {
		col.Nulls[len(col.Nulls)-1] = false
	}
}

func kindForField(name string) domain.ColumnKind {
	switch name {
	case "open":
		return domain.ColumnKindOpen
	case "high":
		return domain.ColumnKindHigh
	case "low":
		return domain.ColumnKindLow
	case "close":
		return domain.ColumnKindClose
	case "volume":
		return domain.ColumnKindVolume
	default:
		return domain.ColumnKindOther
	}
}

func indexAssets(assets []domain.Asset) map[string]domain.Asset {
	out := make(map[string]domain.Asset, len(assets))
	for _, a := range assets {
		out[a.Id] = a
	}
	return out
}

// rebuildDerivedData runs ResampleBarData -> TransformBarData -> build
// timestamp inverted index over raw, replacing db.transformedData and
// db.timestampIndex (spec §4.9 steps 3-5). Shared by RunPipeline and
// RefreshPipeline.
func (db *Database) rebuildDerivedData(raw []AssetTable, progress *queue.ProgressReporter) error {
	resamplerInput := make([]AssetTable, len(raw))
	copy(resamplerInput, raw)

	buckets, err := db.cfg.Resampler.Build(resamplerInput, progress)
	if err != nil {
		return fmt.Errorf("pipeline: ResampleBarData: %w", err)
	}

	flattened, err := db.flatten(raw, buckets, progress)
	if err != nil {
		return fmt.Errorf("pipeline: flatten: %w", err)
	}

	transformed, err := db.cfg.Executor.ExecutePipeline(flattened)
	if err != nil {
		return fmt.Errorf("pipeline: TransformBarData: %w", err)
	}
	if err := validateNoLostAssets(flattened, transformed); err != nil {
		return fmt.Errorf("pipeline: TransformBarData: %w", err)
	}

	index, err := db.buildTimestampIndex(transformed, progress)
	if err != nil {
		return fmt.Errorf("pipeline: build timestamp index: %w", err)
	}

	db.mu.Lock()
	db.transformedData = transformed
	db.timestampIndex = index
	db.reports = db.cfg.Executor.GetGeneratedReports()
	db.eventMarkers = db.cfg.Executor.GetGeneratedEventMarkers()
	db.mu.Unlock()
	return nil
}

// flatten converts the base-timeframe asset maps plus every resampled
// Bucket into the string-id-keyed TimeframeAssetTables shape the external
// transform executor requires (spec §4.9 step 4, §6). Work items are
// processed data-parallel (spec §5 "parallel_for"); map writes are
// serialized by mu, mirroring the source's mutex-guarded flattening stage.
func (db *Database) flatten(base []AssetTable, buckets []Bucket, progress *queue.ProgressReporter) (TimeframeAssetTables, error) {
	out := make(TimeframeAssetTables)
	var mu sync.Mutex

	put := func(tf domain.Timeframe, assetId string, table *domain.Table) {
		mu.Lock()
		defer mu.Unlock()
		m, ok := out[tf]
		if !ok {
			m = make(map[string]*domain.Table)
			out[tf] = m
		}
		m[assetId] = table
	}

	g := new(errgroup.Group)
	db.applyLimit(g)

	total := len(base) + len(buckets)
	var done int32
	reportStep := func(label string) {
		if progress == nil {
			return
		}
		mu.Lock()
		done++
		d := done
		mu.Unlock()
		reportProgress(progress, queue.PhaseTransformBarData, int(d), total, label)
	}

	for _, at := range base {
		at := at
		g.Go(func() error {
			put(db.cfg.BaseTimeframe, at.Asset.Id, at.Table)
			reportStep(at.Asset.Id + "@" + string(db.cfg.BaseTimeframe))
			return nil
		})
	}
	for _, b := range buckets {
		b := b
		g.Go(func() error {
			put(b.Timeframe, b.Asset.Id, b.Table)
			reportStep(b.Asset.Id + "@" + string(b.Timeframe))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (db *Database) applyLimit(g *errgroup.Group) {
	if db.cfg.WorkerLimit > 0 {
		g.SetLimit(db.cfg.WorkerLimit)
	}
}

// validateNoLostAssets implements spec §9's open question resolution: a
// timeframe/asset pair present in the executor's input but absent from its
// output is always an error, never silently dropped.
func validateNoLostAssets(in, out TimeframeAssetTables) error {
	for tf, assets := range in {
		outAssets, ok := out[tf]
		if !ok {
			return fmt.Errorf("executor dropped timeframe %q entirely", tf)
		}
		for assetId := range assets {
			if _, ok := outAssets[assetId]; !ok {
				return fmt.Errorf("executor dropped asset %q at timeframe %q", assetId, tf)
			}
		}
	}
	return nil
}

// buildTimestampIndex scans every (timeframe, asset) table's timestamp
// column, merges consecutive equal timestamps into ranges, and inverts the
// result into ts -> []IndexEntry (spec §4.9 step 5, §4.11). Work items are
// processed data-parallel; writes to the shared index map are
// mutex-serialized.
func (db *Database) buildTimestampIndex(data TimeframeAssetTables, progress *queue.ProgressReporter) (map[int64][]IndexEntry, error) {
	type workItem struct {
		tf      domain.Timeframe
		assetId string
		table   *domain.Table
	}
	var items []workItem
	for tf, assets := range data {
		for assetId, table := range assets {
			items = append(items, workItem{tf, assetId, table})
		}
	}

	index := make(map[int64][]IndexEntry)
	var mu sync.Mutex

	g := new(errgroup.Group)
	db.applyLimit(g)

	total := len(items)
	var done int32
	for _, it := range items {
		it := it
		g.Go(func() error {
			ranges := it.table.TimestampRanges()
			mu.Lock()
			for _, rg := range ranges {
				index[rg.Timestamp] = append(index[rg.Timestamp], IndexEntry{
					Timeframe: it.tf, AssetId: it.assetId, Start: rg.Start, End: rg.End,
				})
			}
			done++
			d := done
			mu.Unlock()
			reportProgress(progress, queue.PhaseBuildTimestampIndex, int(d), total, it.assetId+"@"+string(it.tf))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return index, nil
}

// GetTransformedData returns the full nested timeframe -> asset id -> table
// map built by the most recent run (spec §6 "Database::GetTransformedData").
func (db *Database) GetTransformedData() TimeframeAssetTables {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.transformedData
}

// GetTimestampIndex returns the inverted index built by the most recent run.
func (db *Database) GetTimestampIndex() map[int64][]IndexEntry {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.timestampIndex
}

// HandleData performs an O(1) lookup of t in the inverted index; if absent,
// handler is invoked zero times (spec §4.11, §8 "HandleData O(1)
// absent-case"). Entry order within one timestamp is unspecified (spec §5).
func (db *Database) HandleData(handler Handler, t int64) {
	db.mu.RLock()
	entries := db.timestampIndex[t]
	data := db.transformedData
	db.mu.RUnlock()

	for _, e := range entries {
		table := data[e.Timeframe][e.AssetId]
		if table == nil {
			continue
		}
		handler(e.Timeframe, e.AssetId, table.Slice(e.Start, e.End), t)
	}
}

// GetFrontContract looks up the CONTRACT column value of a continuation
// series at time t (spec §6 "Database::GetFrontContract"). It reads from
// the base-timeframe transformed table (falling back to loaded raw data) so
// callers needn't know whether t also exists in other timeframes.
func (db *Database) GetFrontContract(assetId string, t int64) (string, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if base, ok := db.transformedData[db.cfg.BaseTimeframe]; ok {
		if table, ok := base[assetId]; ok {
			return GetFrontContract(table, t)
		}
	}
	for _, at := range db.loadedBarData {
		if at.Asset.Id == assetId {
			return GetFrontContract(at.Table, t)
		}
	}
	return "", false
}

// GetAssets returns the assets reported by the loader on the most recent
// run (spec §6 "Database::GetAssets").
func (db *Database) GetAssets() []domain.Asset {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.assets
}

// GetDataCategory returns the loader's declared data category (spec §6
// "Database::GetDataCategory").
func (db *Database) GetDataCategory() DataCategory {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.dataCategory
}

// GetBaseTimeframe returns the configured base timeframe (spec §6
// "Database::GetBaseTimeframe").
func (db *Database) GetBaseTimeframe() domain.Timeframe {
	return db.cfg.BaseTimeframe
}

// GetBenchmark returns the loader's optional benchmark series (spec §6
// "Database::GetBenchmark").
func (db *Database) GetBenchmark() (*domain.Table, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.benchmark, db.hasBenchmark
}

// GetGeneratedReports returns opaque tear-sheet/report results from the most
// recent run (spec §4.9 step 4).
func (db *Database) GetGeneratedReports() []Report {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.reports
}

// GetGeneratedEventMarkers returns opaque event markers from the most
// recent run (spec §4.9 step 4).
func (db *Database) GetGeneratedEventMarkers() []EventMarker {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.eventMarkers
}

// sortedTimestamps is a small test/debug helper exposing deterministic
// iteration over the inverted index without relying on Go's randomized map
// order (spec §5 "entry order ... must not be relied upon", but tests still
// want reproducible enumeration of keys).
func sortedTimestamps(index map[int64][]IndexEntry) []int64 {
	out := make([]int64, 0, len(index))
	for ts := range index {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

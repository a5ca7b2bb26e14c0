// Package pipeline implements the data pipeline orchestrator (spec.md §4.9):
// RunPipeline and RefreshPipeline, futures-continuation synthesis, the
// timestamp inverted index and event dispatch (§4.11), and concrete
// collaborator implementations (S3 loader, websocket manager) for the
// interfaces consumed per §6.
package pipeline

import (
	"github.com/aristath/epochscript/internal/domain"
	"github.com/aristath/epochscript/internal/queue"
)

// AssetTable pairs an asset with one table. Asset carries a slice field
// (RolloverChain) and so is not comparable; every "asset -> table" map the
// spec describes is represented as a slice of these instead, matching
// internal/resample.AssetTable.
type AssetTable struct {
	Asset domain.Asset
	Table *domain.Table
}

// DataCategory classifies the kind of data an IDataLoader produces (spec §6
// "GetDataCategory() -> enum").
type DataCategory int

const (
	DataCategoryEquity DataCategory = iota
	DataCategoryFutures
	DataCategoryForex
	DataCategoryCrypto
	DataCategoryMixed
)

func (c DataCategory) String() string {
	switch c {
	case DataCategoryEquity:
		return "EQUITY"
	case DataCategoryFutures:
		return "FUTURES"
	case DataCategoryForex:
		return "FOREX"
	case DataCategoryCrypto:
		return "CRYPTO"
	default:
		return "MIXED"
	}
}

// IDataLoader is the external, blocking raw-bar data source (spec §6).
type IDataLoader interface {
	LoadData() error
	GetStoredData() []AssetTable
	GetDataCategory() DataCategory
	GetAssets() []domain.Asset
	GetBenchmark() (*domain.Table, bool)
}

// IFuturesContinuationConstructor synthesizes continuation series from
// contract-level data and merges them into the loaded set under
// continuation-asset keys (spec §4.9 step 2, §6).
type IFuturesContinuationConstructor interface {
	Build(raw []AssetTable) ([]AssetTable, error)
}

// IResampler matches resample.Resampler.Build's signature; declared here so
// the orchestrator depends on an interface, not the concrete package.
type IResampler interface {
	Build(base []AssetTable, progress *queue.ProgressReporter) ([]Bucket, error)
}

// Bucket mirrors resample.Bucket without importing that package from this
// interface boundary file; orchestrator.go adapts between the two.
type Bucket struct {
	Timeframe domain.Timeframe
	Asset     domain.Asset
	Table     *domain.Table
}

// TimeframeAssetTables is timeframe -> asset-id -> table, the shape the
// external transform executor consumes/produces (spec §6 "ExecutePipeline").
type TimeframeAssetTables map[domain.Timeframe]map[string]*domain.Table

// Report and EventMarker are opaque side-results from IDataFlowOrchestrator,
// carried through RunPipeline without interpretation (spec §4.9 step 4).
type Report struct {
	Id      string
	Payload any
}

type EventMarker struct {
	Timestamp int64
	Label     string
}

// IDataFlowOrchestrator is the external transform executor (spec §6).
type IDataFlowOrchestrator interface {
	ExecutePipeline(in TimeframeAssetTables) (TimeframeAssetTables, error)
	GetGeneratedReports() []Report
	GetGeneratedEventMarkers() []EventMarker
}

// BarUpdate is one decoded incoming bar message (spec §4.9
// "RefreshPipeline... seeds raw data from websocket bar-message batches").
type BarUpdate struct {
	Asset     domain.Asset
	Timestamp int64
	Fields    map[string]float64
}

// IWebSocketManager is implemented per asset class (spec §6
// "IWebSocketManager per asset-class - subscription and
// HandleNewMessage(callback)").
type IWebSocketManager interface {
	Subscribe(assets []domain.Asset) error
	HandleNewMessage(callback func(batch []BarUpdate))
	Close() error
}

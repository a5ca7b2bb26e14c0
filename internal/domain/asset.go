package domain

import "fmt"

// AssetClass enumerates the broad category an Asset belongs to. External
// collaborators (loaders, websocket handlers) branch on this; the core
// treats it as an opaque tag.
type AssetClass string

const (
	AssetClassEquity    AssetClass = "EQUITY"
	AssetClassFutures   AssetClass = "FUTURES"
	AssetClassForex     AssetClass = "FOREX"
	AssetClassIndex     AssetClass = "INDEX"
	AssetClassCrypto    AssetClass = "CRYPTO"
	AssetClassContinuum AssetClass = "CONTINUATION" // synthesized futures continuation
)

// RolloverRule describes how a futures continuation is rolled from one
// front-month contract to the next.
type RolloverRule string

const (
	RolloverVolume       RolloverRule = "VOLUME"        // roll when next contract's volume exceeds current
	RolloverOpenInterest RolloverRule = "OPEN_INTEREST"  // roll when next contract's OI exceeds current
	RolloverCalendarDays RolloverRule = "CALENDAR_DAYS" // roll N calendar days before expiry
)

// AdjustmentMethod describes how historical continuation prices are adjusted
// across a roll to avoid price discontinuities.
type AdjustmentMethod string

const (
	AdjustmentNone            AdjustmentMethod = "NONE"
	AdjustmentBackRatio       AdjustmentMethod = "RATIO"
	AdjustmentBackDifference  AdjustmentMethod = "DIFFERENCE"
)

// Asset is an opaque, totally-ordered (by Id) identifier for a tradeable
// instrument. Currency and exchange are properties used only by external
// collaborators (loaders, calendars). Asset is not comparable with == (see
// Key); the core identifies and orders Assets by Id.
type Asset struct {
	Id         string
	Class      AssetClass
	Currency   string
	Exchange   string
	IsFutures  bool
	// ContinuationOf is non-empty when this Asset is a synthesized futures
	// continuation; it names the root symbol the continuation tracks.
	ContinuationOf string
	// RolloverChain holds, for futures contracts participating in a
	// continuation, the ordered list of contract ids defining front-month
	// succession. Empty for non-futures assets.
	RolloverChain []string
}

// IsContinuation reports whether this Asset is a synthesized continuation
// series rather than a single dated contract.
func (a Asset) IsContinuation() bool {
	return a.Class == AssetClassContinuum || a.ContinuationOf != ""
}

// Less defines the total order over Assets, by Id.
func (a Asset) Less(other Asset) bool { return a.Id < other.Id }

// String implements fmt.Stringer for diagnostics.
func (a Asset) String() string {
	return fmt.Sprintf("%s[%s]", a.Id, a.Class)
}

// Key canonicalizes an Asset to its Id for use as a map key. Asset itself
// holds a slice field (RolloverChain) and so is not comparable; callers that
// need asset-keyed maps (raw/transformed data, the string-keyed maps the
// external transform executor requires) key by Id via Key().
func (a Asset) Key() string { return a.Id }

package pipeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/aristath/epochscript/internal/domain"
)

// ContinuationSpec declares one futures continuation series to synthesize:
// an ordered front-month succession of dated contracts, a rollover rule
// choosing when to switch contracts, and an adjustment method smoothing the
// price discontinuity at each roll (spec §4.9 step 2, §6
// "IFuturesContinuationConstructor").
type ContinuationSpec struct {
	Continuation domain.Asset // Class == AssetClassContinuum, ContinuationOf == root symbol
	Contracts    []domain.Asset // oldest-first front-month succession
	Rollover     domain.RolloverRule
	Adjustment   domain.AdjustmentMethod

	// RolloverColumn names the column compared between adjacent contracts
	// for RolloverVolume/RolloverOpenInterest ("volume" or "open_interest").
	RolloverColumn string
	// RollDays is the number of calendar days before expiry to roll, used
	// only by RolloverCalendarDays.
	RollDays int
	// Expiry maps contract id to its expiry instant (UTC nanoseconds), used
	// only by RolloverCalendarDays.
	Expiry map[string]int64
}

// FuturesContinuationConstructor implements IFuturesContinuationConstructor
// (spec §6), grounded on the front-contract/rollover-chain shape described
// by original_source's database_impl.cpp mock (SPEC_FULL.md §C).
type FuturesContinuationConstructor struct {
	Specs []ContinuationSpec
}

// Build synthesizes every configured continuation series from raw,
// appending the result under each spec's Continuation asset key.
func (c *FuturesContinuationConstructor) Build(raw []AssetTable) ([]AssetTable, error) {
	byId := make(map[string]*domain.Table, len(raw))
	for _, at := range raw {
		byId[at.Asset.Id] = at.Table
	}

	out := make([]AssetTable, 0, len(c.Specs))
	for _, spec := range c.Specs {
		table, err := buildOneContinuation(spec, byId)
		if err != nil {
			return nil, fmt.Errorf("pipeline: continuation %s: %w", spec.Continuation.Id, err)
		}
		out = append(out, AssetTable{Asset: spec.Continuation, Table: table})
	}
	return out, nil
}

// segment is one contiguous span of rows drawn from a single contract's
// table, before adjustment.
type segment struct {
	contract domain.Asset
	table    *domain.Table
	start    int // inclusive row index into table
	end      int // exclusive row index into table
}

func buildOneContinuation(spec ContinuationSpec, byId map[string]*domain.Table) (*domain.Table, error) {
	if len(spec.Contracts) == 0 {
		return domain.NewTable(nil), nil
	}

	segments := make([]segment, 0, len(spec.Contracts))
	rollFactors := make([]float64, 0, len(spec.Contracts)-1) // factor applied at roll i, to contracts before it

	cursor := 0 // row index in current contract's table where this segment starts
	for i, contract := range spec.Contracts {
		table, ok := byId[contract.Id]
		if !ok {
			return nil, fmt.Errorf("missing raw data for contract %q", contract.Id)
		}

		if i == len(spec.Contracts)-1 {
			segments = append(segments, segment{contract: contract, table: table, start: cursor, end: table.NumRows()})
			break
		}

		next := spec.Contracts[i+1]
		nextTable, ok := byId[next.Id]
		if !ok {
			return nil, fmt.Errorf("missing raw data for contract %q", next.Id)
		}

		rollIdx, err := rollPoint(spec, contract, table, nextTable, cursor)
		if err != nil {
			return nil, err
		}
		segments = append(segments, segment{contract: contract, table: table, start: cursor, end: rollIdx})

		factor, err := adjustmentFactor(spec.Adjustment, table, nextTable, rollIdx)
		if err != nil {
			return nil, err
		}
		rollFactors = append(rollFactors, factor)

		// cursor in the next contract's table is the first row at/after the
		// roll timestamp.
		rollTs := table.Timestamps[min(rollIdx, table.NumRows()-1)]
		cursor = firstIndexAtOrAfter(nextTable, rollTs)
	}

	return assembleContinuation(segments, rollFactors, spec.Adjustment)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// rollPoint returns the row index in `table` (the current front contract)
// at which the series should roll to `next`.
func rollPoint(spec ContinuationSpec, contract domain.Asset, table, next *domain.Table, from int) (int, error) {
	switch spec.Rollover {
	case domain.RolloverVolume, domain.RolloverOpenInterest:
		col := table.Column(spec.RolloverColumn)
		nextCol := next.Column(spec.RolloverColumn)
		if col == nil || nextCol == nil {
			return 0, fmt.Errorf("rollover column %q missing", spec.RolloverColumn)
		}
		for i := from; i < table.NumRows(); i++ {
			nextIdx := firstIndexAtOrAfter(next, table.Timestamps[i])
			if nextIdx >= next.NumRows() {
				continue
			}
			if !col.IsNull(i) && !nextCol.IsNull(nextIdx) && nextCol.Numbers[nextIdx] > col.Numbers[i] {
				return i, nil
			}
		}
		return table.NumRows(), nil

	case domain.RolloverCalendarDays:
		expiry, ok := spec.Expiry[contract.Id]
		if !ok {
			return 0, fmt.Errorf("no expiry configured for contract %q", contract.Id)
		}
		rollTs := time.Unix(0, expiry).Add(-time.Duration(spec.RollDays) * 24 * time.Hour).UnixNano()
		return firstIndexAtOrAfter(table, rollTs), nil

	default:
		return 0, fmt.Errorf("unrecognized rollover rule %q", spec.Rollover)
	}
}

func firstIndexAtOrAfter(table *domain.Table, ts int64) int {
	return sort.Search(table.NumRows(), func(i int) bool { return table.Timestamps[i] >= ts })
}

// adjustmentFactor computes the back-adjustment value applied at one roll:
// RATIO is a multiplicative factor (new/old close), DIFFERENCE is additive
// (new - old), NONE is the identity for the method.
func adjustmentFactor(method domain.AdjustmentMethod, oldTable, newTable *domain.Table, rollIdx int) (float64, error) {
	if method == domain.AdjustmentNone {
		return 0, nil
	}
	oldClose := oldTable.Column("close")
	if oldClose == nil || rollIdx >= oldTable.NumRows() {
		return 0, fmt.Errorf("cannot compute adjustment: missing close column or roll out of range")
	}
	oldPrice := oldClose.Numbers[min(rollIdx, oldTable.NumRows()-1)]

	newClose := newTable.Column("close")
	newIdx := firstIndexAtOrAfter(newTable, oldTable.Timestamps[min(rollIdx, oldTable.NumRows()-1)])
	if newClose == nil || newIdx >= newTable.NumRows() {
		return 0, fmt.Errorf("cannot compute adjustment: missing close column on incoming contract")
	}
	newPrice := newClose.Numbers[newIdx]

	switch method {
	case domain.AdjustmentBackRatio:
		if oldPrice == 0 {
			return 1, nil
		}
		return newPrice / oldPrice, nil
	case domain.AdjustmentBackDifference:
		return newPrice - oldPrice, nil
	default:
		return 0, fmt.Errorf("unrecognized adjustment method %q", method)
	}
}

// assembleContinuation concatenates segments into one table, writing a
// "CONTRACT" string column naming the active contract per row, and applies
// the cumulative roll adjustment to earlier segments' price columns so the
// series has no roll-induced discontinuity.
func assembleContinuation(segments []segment, rollFactors []float64, method domain.AdjustmentMethod) (*domain.Table, error) {
	n := 0
	for _, s := range segments {
		n += s.end - s.start
	}
	ts := make([]int64, 0, n)
	contractCol := make([]string, 0, n)

	// cumulative[i] holds the adjustment to apply to segment i, the product
	// (RATIO) or sum (DIFFERENCE) of every roll factor at or after segment i.
	cumulative := make([]float64, len(segments))
	switch method {
	case domain.AdjustmentBackRatio:
		acc := 1.0
		for i := len(segments) - 1; i >= 0; i-- {
			cumulative[i] = acc
			if i > 0 && i-1 < len(rollFactors) {
				acc *= rollFactors[i-1]
			}
		}
	case domain.AdjustmentBackDifference:
		acc := 0.0
		for i := len(segments) - 1; i >= 0; i-- {
			cumulative[i] = acc
			if i > 0 && i-1 < len(rollFactors) {
				acc += rollFactors[i-1]
			}
		}
	default:
		for i := range cumulative {
			cumulative[i] = 1.0
		}
	}

	priceKinds := map[domain.ColumnKind]bool{
		domain.ColumnKindOpen: true, domain.ColumnKindHigh: true,
		domain.ColumnKindLow: true, domain.ColumnKindClose: true, domain.ColumnKindVWAP: true,
	}

	var columnNames []string
	if len(segments) > 0 {
		columnNames = segments[0].table.ColumnNames()
	}
	raw := make(map[string][]float64, len(columnNames))
	nulls := make(map[string][]bool, len(columnNames))
	kinds := make(map[string]domain.ColumnKind, len(columnNames))

	for segIdx, s := range segments {
		for i := s.start; i < s.end; i++ {
			ts = append(ts, s.table.Timestamps[i])
			contractCol = append(contractCol, s.contract.Id)
		}
		for _, name := range columnNames {
			col := s.table.Column(name)
			if col == nil || col.Numbers == nil {
				continue
			}
			kinds[name] = col.Kind
			factor := cumulative[segIdx]
			for i := s.start; i < s.end; i++ {
				v := col.Numbers[i]
				if priceKinds[col.Kind] {
					switch method {
					case domain.AdjustmentBackRatio:
						v = v * factor
					case domain.AdjustmentBackDifference:
						v = v + factor
					}
				}
				raw[name] = append(raw[name], v)
				nulls[name] = append(nulls[name], col.IsNull(i))
			}
		}
	}

	out := domain.NewTable(ts)
	out.AddColumn(&domain.Column{Name: "CONTRACT", Kind: domain.ColumnKindString, Strings: contractCol})
	for _, name := range columnNames {
		if raw[name] == nil {
			continue
		}
		out.AddColumn(&domain.Column{Name: name, Kind: kinds[name], Numbers: raw[name], Nulls: nulls[name]})
	}
	return out, nil
}

// GetFrontContract looks up the CONTRACT column value of a continuation
// series at time t (spec §6 "Database::GetFrontContract").
func GetFrontContract(continuation *domain.Table, t int64) (string, bool) {
	col := continuation.Column("CONTRACT")
	if col == nil {
		return "", false
	}
	i := sort.Search(continuation.NumRows(), func(i int) bool { return continuation.Timestamps[i] >= t })
	if i >= continuation.NumRows() || continuation.Timestamps[i] != t {
		return "", false
	}
	if col.IsNull(i) {
		return "", false
	}
	return col.Strings[i], true
}

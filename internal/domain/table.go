package domain

import (
	"fmt"
	"sort"
)

// ColumnKind classifies a column for resampling aggregation purposes
// (spec §4.10). It is independent of DataType: e.g. a "volume" column is
// ColumnKindVolume even though its DataType is Number.
type ColumnKind int

const (
	ColumnKindOpen ColumnKind = iota
	ColumnKindHigh
	ColumnKindLow
	ColumnKindClose
	ColumnKindVolume
	ColumnKindVWAP
	ColumnKindOther
	ColumnKindBoolean
	ColumnKindString
)

// Column is one named, typed series of values, one per row of a Table. Only
// one of the typed slices is populated, selected by Kind/DataType; Numbers
// holds NaN for nulls, Strings holds "" for a null with the null flagged in
// Nulls, Booleans likewise track nulls via Nulls.
type Column struct {
	Name    string
	Kind    ColumnKind
	Numbers []float64
	Strings []string
	Bools   []bool
	// Nulls marks, per row, whether the value at that index is null/missing.
	// Required for String and Boolean columns (no in-band sentinel); for
	// Numbers a NaN is also treated as null.
	Nulls []bool
}

// Len returns the row count of the column.
func (c *Column) Len() int {
	switch {
	case c.Numbers != nil:
		return len(c.Numbers)
	case c.Strings != nil:
		return len(c.Strings)
	case c.Bools != nil:
		return len(c.Bools)
	default:
		return 0
	}
}

// IsNull reports whether row i of the column is null.
func (c *Column) IsNull(i int) bool {
	if c.Nulls != nil && i < len(c.Nulls) && c.Nulls[i] {
		return true
	}
	if c.Numbers != nil && i < len(c.Numbers) {
		return c.Numbers[i] != c.Numbers[i] // NaN check
	}
	return false
}

// Table is a columnar, timestamp-indexed table: the unit of data flowing
// through the pipeline (raw bars, resampled bars, transform outputs).
// Timestamps are UTC nanoseconds and strictly increasing per-asset by
// invariant (spec §3); the table itself does not re-verify this globally.
type Table struct {
	Timestamps []int64 // UTC nanoseconds, index-aligned with every Column
	columns    map[string]*Column
	order      []string // preserves declaration order for deterministic iteration
}

// NewTable creates an empty table with the given timestamp column.
func NewTable(timestamps []int64) *Table {
	return &Table{
		Timestamps: timestamps,
		columns:    make(map[string]*Column),
	}
}

// NumRows returns the number of rows (length of the timestamp column).
func (t *Table) NumRows() int { return len(t.Timestamps) }

// AddColumn registers a column on the table. The column's length must equal
// NumRows(); AddColumn panics otherwise, since a length mismatch is always a
// programming error inside one compilation/resample pass, never a recoverable
// runtime condition.
func (t *Table) AddColumn(col *Column) {
	if col.Len() != t.NumRows() {
		panic(fmt.Sprintf("domain: column %q has %d rows, table has %d", col.Name, col.Len(), t.NumRows()))
	}
	if _, exists := t.columns[col.Name]; !exists {
		t.order = append(t.order, col.Name)
	}
	t.columns[col.Name] = col
}

// Column returns the named column, or nil if absent.
func (t *Table) Column(name string) *Column { return t.columns[name] }

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// ColumnNames returns column names in declaration order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Slice returns a new Table containing rows [start, end] inclusive, sharing
// the underlying arrays (read-only view semantics as required by
// HandleData's handler contract in spec §4.11).
func (t *Table) Slice(start, end int) *Table {
	if start < 0 {
		start = 0
	}
	if end >= t.NumRows() {
		end = t.NumRows() - 1
	}
	if end < start {
		return NewTable(nil)
	}
	out := NewTable(t.Timestamps[start : end+1])
	for _, name := range t.order {
		c := t.columns[name]
		sub := &Column{Name: c.Name, Kind: c.Kind}
		if c.Numbers != nil {
			sub.Numbers = c.Numbers[start : end+1]
		}
		if c.Strings != nil {
			sub.Strings = c.Strings[start : end+1]
		}
		if c.Bools != nil {
			sub.Bools = c.Bools[start : end+1]
		}
		if c.Nulls != nil {
			sub.Nulls = c.Nulls[start : end+1]
		}
		out.AddColumn(sub)
	}
	return out
}

// TimestampRanges groups row indices by equal consecutive timestamp into
// contiguous [start, end] ranges, the building block of the timestamp
// inverted index (spec §4.9 step 5 and §4.11).
func (t *Table) TimestampRanges() []TimestampRange {
	n := t.NumRows()
	if n == 0 {
		return nil
	}
	ranges := make([]TimestampRange, 0, n)
	start := 0
	for i := 1; i <= n; i++ {
		if i == n || t.Timestamps[i] != t.Timestamps[start] {
			ranges = append(ranges, TimestampRange{
				Timestamp: t.Timestamps[start],
				Start:     start,
				End:       i - 1,
			})
			start = i
		}
	}
	return ranges
}

// TimestampRange is a contiguous row span sharing one timestamp.
type TimestampRange struct {
	Timestamp int64
	Start     int
	End       int
}

// SortedUniqueTimestamps returns the distinct timestamps present, ascending.
func (t *Table) SortedUniqueTimestamps() []int64 {
	seen := make(map[int64]bool, t.NumRows())
	out := make([]int64, 0, t.NumRows())
	for _, ts := range t.Timestamps {
		if !seen[ts] {
			seen[ts] = true
			out = append(out, ts)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

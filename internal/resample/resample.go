// Package resample aggregates a base-timeframe table into each additional
// declared timeframe (spec.md §4.10).
package resample

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/epochscript/internal/calendar"
	"github.com/aristath/epochscript/internal/domain"
	"github.com/aristath/epochscript/internal/queue"
)

// AssetTable pairs an asset with its base-timeframe table. Asset carries a
// slice field (RolloverChain) and so is not comparable/hashable; inputs are
// passed as a slice rather than keyed by Asset directly.
type AssetTable struct {
	Asset domain.Asset
	Table *domain.Table
}

// Bucket is one (timeframe, asset, table) result of a Build call, matching
// the IResampler interface shape (spec.md §6).
type Bucket struct {
	Timeframe domain.Timeframe
	Asset     domain.Asset
	Table     *domain.Table
}

// Resampler aggregates one base table per asset into every configured
// additional Timeframe.
type Resampler struct {
	Timeframes []domain.Timeframe
	Calendar   calendar.Calendar
}

// New builds a Resampler targeting timeframes, using cal for intraday-to-daily
// market-close relabeling. A nil cal defaults to calendar.NewNYSE().
func New(timeframes []domain.Timeframe, cal calendar.Calendar) *Resampler {
	if cal == nil {
		cal = calendar.NewNYSE()
	}
	return &Resampler{Timeframes: timeframes, Calendar: cal}
}

// Build resamples every (asset, table) pair in base into every configured
// timeframe, skipping futures contracts that are not continuations (spec
// §4.10: "futures contracts that are not continuations are skipped").
func (r *Resampler) Build(base []AssetTable, progress *queue.ProgressReporter) ([]Bucket, error) {
	var out []Bucket
	total := len(base) * len(r.Timeframes)
	done := 0

	for _, at := range base {
		asset, table := at.Asset, at.Table
		if asset.IsFutures && !asset.IsContinuation() {
			continue
		}
		cal := r.Calendar
		if exchangeCal, ok := calendar.Lookup(asset.Exchange); ok {
			cal = exchangeCal
		}
		for _, tf := range r.Timeframes {
			resampled, err := r.resampleOne(table, tf, cal)
			if err != nil {
				return nil, fmt.Errorf("resample: asset %s to %s: %w", asset.Id, tf, err)
			}
			out = append(out, Bucket{Timeframe: tf, Asset: asset, Table: resampled})
			done++
			if progress != nil {
				progress.Report(queue.PhaseResampleBarData, done, total, fmt.Sprintf("%s -> %s", asset.Id, tf))
			}
		}
	}
	if progress != nil {
		progress.ReportUnthrottled(queue.PhaseResampleBarData, total, total, "resample complete")
	}
	return out, nil
}

func (r *Resampler) resampleOne(src *domain.Table, tf domain.Timeframe, cal calendar.Calendar) (*domain.Table, error) {
	parsed, err := tf.Parse()
	if err != nil {
		return nil, err
	}

	n := src.NumRows()
	if n == 0 {
		return domain.NewTable(nil), nil
	}

	labelFn, err := labelFuncFor(parsed, cal)
	if err != nil {
		return nil, err
	}

	// Group rows into buckets. Since input timestamps are strictly
	// increasing (spec §5), a single left-to-right scan suffices: flush
	// whenever the bucket label changes.
	var labels []int64
	var ranges []domain.TimestampRange
	start := 0
	curLabel, err := labelFn(unixToTime(src.Timestamps[0]))
	if err != nil {
		return nil, err
	}
	for i := 1; i <= n; i++ {
		var rowLabel int64
		if i < n {
			lbl, err := labelFn(unixToTime(src.Timestamps[i]))
			if err != nil {
				return nil, err
			}
			rowLabel = lbl
		}
		if i == n || rowLabel != curLabel {
			labels = append(labels, curLabel)
			ranges = append(ranges, domain.TimestampRange{Start: start, End: i - 1})
			start = i
			if i < n {
				curLabel = rowLabel
			}
		}
	}

	out := domain.NewTable(labels)
	for _, name := range src.ColumnNames() {
		col := src.Column(name)
		out.AddColumn(aggregateColumn(col, ranges))
	}
	return out, nil
}

func unixToTime(ns int64) time.Time { return time.Unix(0, ns).UTC() }

// labelFuncFor returns a function mapping a row timestamp to its bucket's
// label, as UTC nanoseconds, for the given parsed timeframe: the bucket's
// right edge, or the first day of the period for a START-positioned month,
// quarter or year timeframe.
func labelFuncFor(p domain.ParsedTimeframe, cal calendar.Calendar) (func(time.Time) (int64, error), error) {
	switch p.Unit {
	case domain.UnitMinute, domain.UnitHour:
		size := time.Duration(p.Multiplier) * unitDuration(p.Unit)
		return func(ts time.Time) (int64, error) {
			return ceilToMultiple(ts.UnixNano(), size.Nanoseconds()), nil
		}, nil

	case domain.UnitDay:
		if p.Multiplier != 1 {
			return nil, fmt.Errorf("resample: multi-day offsets are not supported (%dD)", p.Multiplier)
		}
		return func(ts time.Time) (int64, error) {
			closeTime, ok := cal.GetTimeOn(calendar.SessionClose, ts)
			if !ok {
				return 0, fmt.Errorf("resample: %s is not a trading day", ts.Format("2006-01-02"))
			}
			return closeTime.UnixNano(), nil
		}, nil

	case domain.UnitWeek:
		anchor := weekdayFromAnchor(p.Anchor, time.Friday)
		return func(ts time.Time) (int64, error) {
			return weekBoundary(ts, anchor).UnixNano(), nil
		}, nil

	case domain.UnitMonth:
		return func(ts time.Time) (int64, error) {
			return monthBoundary(ts, p.Position).UnixNano(), nil
		}, nil

	case domain.UnitQuarter:
		fiscalStart := monthFromAnchor(p.Anchor, time.January)
		return func(ts time.Time) (int64, error) {
			return quarterBoundary(ts, fiscalStart, p.Position).UnixNano(), nil
		}, nil

	case domain.UnitYear:
		fiscalStart := monthFromAnchor(p.Anchor, time.January)
		return func(ts time.Time) (int64, error) {
			return yearBoundary(ts, fiscalStart, p.Position).UnixNano(), nil
		}, nil

	default:
		return nil, fmt.Errorf("resample: unsupported unit %q", p.Unit)
	}
}

func unitDuration(unit string) time.Duration {
	if unit == domain.UnitHour {
		return time.Hour
	}
	return time.Minute
}

// ceilToMultiple returns the smallest multiple of size that is >= ns,
// implementing the right-closed/right-labeled bucket edge.
func ceilToMultiple(ns, size int64) int64 {
	if ns%size == 0 {
		return ns
	}
	return ((ns / size) + 1) * size
}

func weekBoundary(ts time.Time, anchor time.Weekday) time.Time {
	day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	delta := int(anchor - day.Weekday())
	if delta < 0 {
		delta += 7
	}
	return day.AddDate(0, 0, delta)
}

func monthBoundary(ts time.Time, position string) time.Time {
	if position == "START" {
		return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return lastDayOfMonth(ts.Year(), ts.Month())
}

func lastDayOfMonth(year int, month time.Month) time.Time {
	return time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

// absMonth/monthFromAbs encode a (year, month) pair as a single int counted
// in months, so fiscal-quarter/year boundary arithmetic never has to reason
// about calendar-year wraparound by hand.
func absMonth(year int, month time.Month) int { return year*12 + int(month) - 1 }

func monthFromAbs(abs int) (int, time.Month) {
	year := floorDiv(abs, 12)
	return year, time.Month(abs-year*12) + 1
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func quarterBoundary(ts time.Time, fiscalStart time.Month, position string) time.Time {
	fs := int(fiscalStart) - 1
	rel := absMonth(ts.Year(), ts.Month()) - fs
	q := floorDiv(rel, 3)
	firstAbs := fs + q*3

	if position == "START" {
		y, m := monthFromAbs(firstAbs)
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	}
	y, m := monthFromAbs(firstAbs + 2)
	return lastDayOfMonth(y, m)
}

func yearBoundary(ts time.Time, fiscalStart time.Month, position string) time.Time {
	fs := int(fiscalStart) - 1
	rel := absMonth(ts.Year(), ts.Month()) - fs
	yIdx := floorDiv(rel, 12)
	firstAbs := fs + yIdx*12

	if position == "START" {
		y, m := monthFromAbs(firstAbs)
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	}
	y, m := monthFromAbs(firstAbs + 11)
	return lastDayOfMonth(y, m)
}

var weekdayNames = map[string]time.Weekday{
	"SUN": time.Sunday, "MON": time.Monday, "TUE": time.Tuesday, "WED": time.Wednesday,
	"THU": time.Thursday, "FRI": time.Friday, "SAT": time.Saturday,
}

func weekdayFromAnchor(anchor string, fallback time.Weekday) time.Weekday {
	if wd, ok := weekdayNames[strings.ToUpper(anchor)]; ok {
		return wd
	}
	return fallback
}

var monthNames = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March, "APR": time.April,
	"MAY": time.May, "JUN": time.June, "JUL": time.July, "AUG": time.August,
	"SEP": time.September, "OCT": time.October, "NOV": time.November, "DEC": time.December,
}

func monthFromAnchor(anchor string, fallback time.Month) time.Month {
	if m, ok := monthNames[strings.ToUpper(anchor)]; ok {
		return m
	}
	return fallback
}

// aggregateColumn applies the per-ColumnKind aggregate rule of spec §4.10
// over each range of src, preserving nulls only when every value in a
// bucket is null ("null preservation").
func aggregateColumn(src *domain.Column, ranges []domain.TimestampRange) *domain.Column {
	out := &domain.Column{Name: src.Name, Kind: src.Kind}

	switch {
	case src.Numbers != nil:
		out.Numbers = make([]float64, len(ranges))
		out.Nulls = make([]bool, len(ranges))
		for i, rg := range ranges {
			v, allNull := aggregateNumeric(src, rg)
			out.Numbers[i] = v
			out.Nulls[i] = allNull
		}
	case src.Bools != nil:
		out.Bools = make([]bool, len(ranges))
		out.Nulls = make([]bool, len(ranges))
		for i, rg := range ranges {
			v, allNull := lastNonNullBool(src, rg)
			out.Bools[i] = v
			out.Nulls[i] = allNull
		}
	case src.Strings != nil:
		out.Strings = make([]string, len(ranges))
		out.Nulls = make([]bool, len(ranges))
		for i, rg := range ranges {
			v, allNull := lastNonNullString(src, rg)
			out.Strings[i] = v
			out.Nulls[i] = allNull
		}
	}
	return out
}

func aggregateNumeric(src *domain.Column, rg domain.TimestampRange) (float64, bool) {
	switch src.Kind {
	case domain.ColumnKindOpen:
		return firstNonNullNumber(src, rg)
	case domain.ColumnKindHigh:
		return maxNumber(src, rg)
	case domain.ColumnKindLow:
		return minNumber(src, rg)
	case domain.ColumnKindClose:
		return lastNonNullNumber(src, rg)
	case domain.ColumnKindVolume:
		return sumNumber(src, rg)
	case domain.ColumnKindVWAP:
		return meanNumber(src, rg)
	default:
		return lastNonNullNumber(src, rg)
	}
}

func firstNonNullNumber(c *domain.Column, rg domain.TimestampRange) (float64, bool) {
	for i := rg.Start; i <= rg.End; i++ {
		if !c.IsNull(i) {
			return c.Numbers[i], false
		}
	}
	return math.NaN(), true
}

func lastNonNullNumber(c *domain.Column, rg domain.TimestampRange) (float64, bool) {
	for i := rg.End; i >= rg.Start; i-- {
		if !c.IsNull(i) {
			return c.Numbers[i], false
		}
	}
	return math.NaN(), true
}

// nonNullValues collects the non-null values of c within rg, the shared
// input to the gonum-backed aggregates below.
func nonNullValues(c *domain.Column, rg domain.TimestampRange) []float64 {
	out := make([]float64, 0, rg.End-rg.Start+1)
	for i := rg.Start; i <= rg.End; i++ {
		if !c.IsNull(i) {
			out = append(out, c.Numbers[i])
		}
	}
	return out
}

func maxNumber(c *domain.Column, rg domain.TimestampRange) (float64, bool) {
	vals := nonNullValues(c, rg)
	if len(vals) == 0 {
		return math.NaN(), true
	}
	return floats.Max(vals), false
}

func minNumber(c *domain.Column, rg domain.TimestampRange) (float64, bool) {
	vals := nonNullValues(c, rg)
	if len(vals) == 0 {
		return math.NaN(), true
	}
	return floats.Min(vals), false
}

func sumNumber(c *domain.Column, rg domain.TimestampRange) (float64, bool) {
	vals := nonNullValues(c, rg)
	if len(vals) == 0 {
		return math.NaN(), true
	}
	return floats.Sum(vals), false
}

// meanNumber aggregates a vwap-like weighted-price column by unweighted
// mean (spec §4.10's "mean" rule; the source data already carries the
// per-bar weighting, so the bucket aggregate is a plain average of it).
func meanNumber(c *domain.Column, rg domain.TimestampRange) (float64, bool) {
	vals := nonNullValues(c, rg)
	if len(vals) == 0 {
		return math.NaN(), true
	}
	return stat.Mean(vals, nil), false
}

func lastNonNullBool(c *domain.Column, rg domain.TimestampRange) (bool, bool) {
	for i := rg.End; i >= rg.Start; i-- {
		if !c.IsNull(i) {
			return c.Bools[i], false
		}
	}
	return false, true
}

func lastNonNullString(c *domain.Column, rg domain.TimestampRange) (string, bool) {
	for i := rg.End; i >= rg.Start; i-- {
		if !c.IsNull(i) {
			return c.Strings[i], false
		}
	}
	return "", true
}

// Package calendar is the exchange calendar oracle used by the resampler to
// relabel intraday-to-daily buckets onto market-close time (spec.md §4.10,
// §6 "Exchange calendar — get_time_on(type, date)").
package calendar

import "time"

// SessionType names which side of the trading day a lookup wants.
type SessionType int

const (
	SessionOpen SessionType = iota
	SessionClose
)

// Calendar answers session-time and trading-day questions for one exchange.
type Calendar interface {
	// GetTimeOn returns the open/close instant on date (any time-of-day;
	// only the Y-M-D in the calendar's timezone is used), or false if date
	// is not a trading day.
	GetTimeOn(session SessionType, date time.Time) (time.Time, bool)
	IsTradingDay(date time.Time) bool
}

// registry maps an Asset.Exchange string to its Calendar, mirroring the
// factory-style lookup spec §9 describes for the transform registry.
var registry = map[string]Calendar{
	"NYSE":   NewNYSE(),
	"NASDAQ": NewNYSE(), // same trading calendar/session as NYSE
	"":       NewNYSE(), // default for assets with no declared exchange
}

// Lookup resolves a Calendar by exchange code.
func Lookup(exchange string) (Calendar, bool) {
	c, ok := registry[exchange]
	return c, ok
}

// NYSE implements Calendar for the New York Stock Exchange's regular
// session: 09:30-16:00 America/New_York, closed weekends and the holidays
// computed by CalculateUSHolidays.
type NYSE struct {
	loc          *time.Location
	holidayCache map[int]map[string]bool
}

// NewNYSE builds an NYSE calendar. Falls back to a fixed UTC-5 offset if the
// tzdata "America/New_York" entry cannot be loaded (e.g. a minimal base
// image with no zoneinfo installed).
func NewNYSE() *NYSE {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("EST", -5*60*60)
	}
	return &NYSE{loc: loc, holidayCache: make(map[int]map[string]bool)}
}

// MarketOpen returns 09:30 America/New_York on date, or false if date is not
// a trading day.
func (n *NYSE) MarketOpen(date time.Time) (time.Time, bool) {
	return n.GetTimeOn(SessionOpen, date)
}

// MarketClose returns 16:00 America/New_York on date, or false if date is
// not a trading day.
func (n *NYSE) MarketClose(date time.Time) (time.Time, bool) {
	return n.GetTimeOn(SessionClose, date)
}

// GetTimeOn implements Calendar.
func (n *NYSE) GetTimeOn(session SessionType, date time.Time) (time.Time, bool) {
	local := date.In(n.loc)
	if !n.isTradingDay(local) {
		return time.Time{}, false
	}
	hour, minute := 9, 30
	if session == SessionClose {
		hour, minute = 16, 0
	}
	return time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, n.loc), true
}

// IsTradingDay implements Calendar.
func (n *NYSE) IsTradingDay(date time.Time) bool {
	return n.isTradingDay(date.In(n.loc))
}

func (n *NYSE) isTradingDay(local time.Time) bool {
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	return !n.isHoliday(local)
}

func (n *NYSE) isHoliday(local time.Time) bool {
	set, ok := n.holidayCache[local.Year()]
	if !ok {
		set = holidaySet(CalculateUSHolidays(local.Year()))
		n.holidayCache[local.Year()] = set
	}
	return set[local.Format("2006-01-02")]
}

func holidaySet(dates []time.Time) map[string]bool {
	out := make(map[string]bool, len(dates))
	for _, d := range dates {
		out[d.Format("2006-01-02")] = true
	}
	return out
}

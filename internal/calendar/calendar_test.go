package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateEasterGregorian(t *testing.T) {
	cases := []struct {
		year     int
		expected time.Time
	}{
		{2024, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)},
		{2025, time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC)},
		{2026, time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got := CalculateEaster(tc.year)
		assert.True(t, got.Equal(tc.expected), "year %d: got %v want %v", tc.year, got, tc.expected)
		assert.Equal(t, time.Sunday, got.Weekday())
	}
}

func TestCalculateGoodFriday(t *testing.T) {
	got := CalculateGoodFriday(2024)
	assert.True(t, got.Equal(time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Friday, got.Weekday())
}

func TestNYSEClosedOnWeekends(t *testing.T) {
	nyse := NewNYSE()
	saturday := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	assert.False(t, nyse.IsTradingDay(saturday))
}

func TestNYSEClosedOnObservedHoliday(t *testing.T) {
	nyse := NewNYSE()
	// July 4, 2026 falls on a Saturday; observed on Friday July 3, 2026.
	observed := time.Date(2026, 7, 3, 12, 0, 0, 0, time.UTC)
	assert.False(t, nyse.IsTradingDay(observed))
}

func TestNYSEMarketOpenCloseOnTradingDay(t *testing.T) {
	nyse := NewNYSE()
	day := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC) // a Wednesday, ordinary trading day
	require.True(t, nyse.IsTradingDay(day))

	open, ok := nyse.MarketOpen(day)
	require.True(t, ok)
	assert.Equal(t, 9, open.Hour())
	assert.Equal(t, 30, open.Minute())

	close, ok := nyse.MarketClose(day)
	require.True(t, ok)
	assert.Equal(t, 16, close.Hour())
	assert.Equal(t, 0, close.Minute())
	assert.True(t, close.After(open))
}

func TestNYSEGetTimeOnNonTradingDayReturnsFalse(t *testing.T) {
	nyse := NewNYSE()
	sunday := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	_, ok := nyse.GetTimeOn(SessionOpen, sunday)
	assert.False(t, ok)
}

func TestLookupDefaultsUnknownExchangeEmptyString(t *testing.T) {
	c, ok := Lookup("")
	require.True(t, ok)
	assert.NotNil(t, c)

	_, ok = Lookup("TSE")
	assert.False(t, ok, "exchanges outside the registry should not silently resolve")
}

package calendar

import "time"

// CalculateEaster computes the Gregorian-calendar date of Easter Sunday for
// year, via the standard computus algorithm.
func CalculateEaster(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451

	month := (h + l - 7*m + 114) / 31
	day := ((h + l - 7*m + 114) % 31) + 1

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// CalculateGoodFriday returns the Friday preceding Easter Sunday.
func CalculateGoodFriday(year int) time.Time {
	return CalculateEaster(year).AddDate(0, 0, -2)
}

func findNthWeekday(year, month int, weekday time.Weekday, n int) time.Time {
	date := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	daysToAdd := int(weekday - date.Weekday())
	if daysToAdd < 0 {
		daysToAdd += 7
	}
	date = date.AddDate(0, 0, daysToAdd)
	return date.AddDate(0, 0, (n-1)*7)
}

func findLastWeekday(year, month int, weekday time.Weekday) time.Time {
	date := time.Date(year, time.Month(month+1), 0, 0, 0, 0, 0, time.UTC)
	daysToSubtract := int(date.Weekday() - weekday)
	if daysToSubtract < 0 {
		daysToSubtract += 7
	}
	return date.AddDate(0, 0, -daysToSubtract)
}

// observeOnWeekday moves a weekend date to the adjacent trading day:
// Saturday to Friday, Sunday to Monday.
func observeOnWeekday(date time.Time) time.Time {
	switch date.Weekday() {
	case time.Saturday:
		return date.AddDate(0, 0, -1)
	case time.Sunday:
		return date.AddDate(0, 0, 1)
	default:
		return date
	}
}

// CalculateUSHolidays returns the NYSE's full-closure holidays for year.
func CalculateUSHolidays(year int) []time.Time {
	holidays := make([]time.Time, 0, 10)

	newYear := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	holidays = append(holidays, observeOnWeekday(newYear))

	holidays = append(holidays, findNthWeekday(year, 1, time.Monday, 3))  // MLK Day
	holidays = append(holidays, findNthWeekday(year, 2, time.Monday, 3))  // Presidents Day
	holidays = append(holidays, CalculateGoodFriday(year))
	holidays = append(holidays, findLastWeekday(year, 5, time.Monday)) // Memorial Day

	juneteenth := time.Date(year, 6, 19, 0, 0, 0, 0, time.UTC)
	holidays = append(holidays, observeOnWeekday(juneteenth))

	independenceDay := time.Date(year, 7, 4, 0, 0, 0, 0, time.UTC)
	holidays = append(holidays, observeOnWeekday(independenceDay))

	holidays = append(holidays, findNthWeekday(year, 9, time.Monday, 1))   // Labor Day
	holidays = append(holidays, findNthWeekday(year, 11, time.Thursday, 4)) // Thanksgiving

	christmas := time.Date(year, 12, 25, 0, 0, 0, 0, time.UTC)
	holidays = append(holidays, observeOnWeekday(christmas))

	return holidays
}

package recurrence

import (
	"fmt"
	"math"
	"time"
)

const (
	day = 24 * time.Hour

	// maxDays is the largest day offset a time.Duration can hold.
	maxDays = math.MaxInt64 / int64(day)

	// MaxYear is the last year a stored date can fall in.
	MaxYear = 9999
)

// AddDays moves t by n whole days of absolute time. Negative n moves
// backwards. |n| must not exceed the range of time.Duration.
func AddDays(t time.Time, n int) time.Time {
	return t.Add(time.Duration(n) * day)
}

// DaysInMonth returns the number of days in the zero-based month of year.
func DaysInMonth(month int, year int) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, time.Month(month+2), 0, 0, 0, 0, 0, time.UTC).Day()
}

// DayOffset returns a-b in fractional days; positive when a is after b.
func DayOffset(a, b time.Time) float64 {
	return float64(a.Sub(b)) / float64(day)
}

// Next returns the date of the occurrence following t.
//
// Day and Week steps are absolute offsets. A Month step adds the length of
// the month the date is currently in, once per unit of magnitude, so
// consecutive steps accumulate different month lengths. A Year step advances
// the calendar year keeping month and day.
//
// Steps that would land after MaxYear fail with ErrInvalidInterval.
func Next(t time.Time, iv Interval) (time.Time, error) {
	n := int64(iv.Magnitude)
	var next time.Time
	switch iv.Unit {
	case Day, Week:
		if iv.Unit == Week {
			n *= 7
		}
		if n > maxDays {
			return time.Time{}, fmt.Errorf("%w: %v is too long", ErrInvalidInterval, iv)
		}
		next = AddDays(t, int(n))
	case Month:
		// Every step advances at least one calendar month.
		if n > 12*int64(MaxYear-t.Year()+1) {
			return time.Time{}, fmt.Errorf("%w: %v is too long", ErrInvalidInterval, iv)
		}
		next = t
		for i := int64(0); i < n; i++ {
			next = AddDays(next, DaysInMonth(int(next.Month())-1, next.Year()))
		}
	case Year:
		if int64(t.Year())+n > MaxYear {
			return time.Time{}, fmt.Errorf("%w: %v is too long", ErrInvalidInterval, iv)
		}
		next = t.AddDate(int(n), 0, 0)
	default:
		return time.Time{}, ErrInvalidInterval
	}
	if next.Year() > MaxYear {
		return time.Time{}, fmt.Errorf("%w: next date %s is after year %d", ErrInvalidInterval, next.Format(time.DateOnly), MaxYear)
	}
	return next, nil
}

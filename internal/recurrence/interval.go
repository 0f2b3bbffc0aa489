// Package recurrence expands recurring expenses into their next occurrence.
package recurrence

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInterval is returned for intervals that cannot be packed or
// unpacked.
var ErrInvalidInterval = errors.New("invalid recurring interval")

// Unit is the calendar unit of an interval.
type Unit uint32

const (
	Day Unit = iota
	Week
	Month
	Year
)

func (u Unit) String() string {
	switch u {
	case Day:
		return "day"
	case Week:
		return "week"
	case Month:
		return "month"
	case Year:
		return "year"
	default:
		return fmt.Sprintf("Unit(%d)", uint32(u))
	}
}

// Valid reports whether u is one of the four known units.
func (u Unit) Valid() bool {
	return u <= Year
}

// ParseUnit maps a unit name to a Unit.
func ParseUnit(s string) (Unit, error) {
	for u := Day; u <= Year; u++ {
		if u.String() == s {
			return u, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown unit %q", ErrInvalidInterval, s)
}

const (
	unitShift     = 29
	magnitudeMask = 1<<unitShift - 1

	// MaxMagnitude is the largest magnitude that fits in the packed form.
	MaxMagnitude = magnitudeMask
)

// Interval is a recurrence period such as "every 2 weeks".
type Interval struct {
	Unit      Unit
	Magnitude uint32
}

func (iv Interval) String() string {
	return fmt.Sprintf("%d %s", iv.Magnitude, iv.Unit)
}

// Encode packs an interval into 32 bits: the unit in the top 3 bits and the
// magnitude in the low 29.
func Encode(unit Unit, magnitude uint32) (uint32, error) {
	if !unit.Valid() {
		return 0, fmt.Errorf("%w: unit %d", ErrInvalidInterval, uint32(unit))
	}
	if magnitude > MaxMagnitude {
		return 0, fmt.Errorf("%w: magnitude %d exceeds %d", ErrInvalidInterval, magnitude, MaxMagnitude)
	}
	return uint32(unit)<<unitShift | magnitude, nil
}

// Decode unpacks a stored interval. Values outside the unsigned 32-bit range
// or carrying an unknown unit are rejected.
func Decode(value int64) (Interval, error) {
	if value < 0 || value > math.MaxUint32 {
		return Interval{}, fmt.Errorf("%w: %d out of range", ErrInvalidInterval, value)
	}
	v := uint32(value)
	iv := Interval{Unit: Unit(v >> unitShift), Magnitude: v & magnitudeMask}
	if !iv.Unit.Valid() {
		return Interval{}, fmt.Errorf("%w: unit %d", ErrInvalidInterval, uint32(iv.Unit))
	}
	return iv, nil
}

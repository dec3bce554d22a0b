package schedule

import (
	"fmt"
	"time"
)

// Clock abstracts the wall clock so the monitor loop and tests can share
// code against a controllable time source.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always reports the same instant. Test helper.
type FixedClock struct {
	Instant time.Time
}

func (c FixedClock) Now() time.Time { return c.Instant }

// LoadLocation resolves an IANA timezone name, defaulting to UTC when the
// name is empty.
func LoadLocation(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return loc, nil
}

// LocalNow returns the current instant in the agent's local timezone.
func LocalNow(clock Clock, loc *time.Location) time.Time {
	return clock.Now().In(loc)
}

// AtClock returns the instant on day's date with the given local wall-clock
// time, in day's location.
func AtClock(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

// NextWake returns the next occurrence of the wake time at or after now.
// If today's wake time has already passed, it is tomorrow's.
func NextWake(now time.Time, wakeHour, wakeMinute int) time.Time {
	wake := AtClock(now, wakeHour, wakeMinute)
	if !wake.After(now) {
		wake = wake.AddDate(0, 0, 1)
	}
	return wake
}

// MidnightAfter returns local midnight at the start of the day after t.
func MidnightAfter(t time.Time) time.Time {
	return AtClock(t, 0, 0).AddDate(0, 0, 1)
}

// ParseClockTime parses a local "HH:MM" wall-clock string into hour and
// minute components.
func ParseClockTime(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

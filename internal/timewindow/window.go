package timewindow

import (
	"errors"
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var (
	ErrBadDate       = errors.New("invalid date")
	ErrBadTime       = errors.New("invalid time")
	ErrOutsideHours  = errors.New("outside operating hours")
	ErrInPast        = errors.New("slot is in the past")
	ErrTooSoon       = errors.New("slot is inside the minimum notice window")
	ErrBeyondHorizon = errors.New("slot is beyond the booking horizon")
)

// ParseDate validates a YYYY-MM-DD string and returns midnight of that day
// in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, ErrBadDate
	}
	return d, nil
}

// ParseTime validates an HH:MM string and returns minutes since midnight.
func ParseTime(s string) (int, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return 0, ErrBadTime
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatTime renders minutes since midnight as HH:MM.
func FormatTime(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Slot is the half-open interval [Start, End) a reservation occupies.
type Slot struct {
	Start time.Time
	End   time.Time
}

// NewSlot builds the slot starting at date/hhmm and lasting duration.
func NewSlot(date, hhmm string, duration time.Duration, loc *time.Location) (Slot, error) {
	day, err := ParseDate(date, loc)
	if err != nil {
		return Slot{}, err
	}
	minutes, err := ParseTime(hhmm)
	if err != nil {
		return Slot{}, err
	}
	start := day.Add(time.Duration(minutes) * time.Minute)
	return Slot{Start: start, End: start.Add(duration)}, nil
}

// Overlaps reports whether the two slots share any instant. Slots that only
// touch (one ends exactly when the other starts) do not overlap.
func (s Slot) Overlaps(o Slot) bool {
	return s.Start.Before(o.End) && o.Start.Before(s.End)
}

// Contains reports whether t falls inside the slot.
func (s Slot) Contains(t time.Time) bool {
	return !t.Before(s.Start) && t.Before(s.End)
}

// Date returns the slot's calendar date in wire format.
func (s Slot) Date() string { return s.Start.Format(DateLayout) }

// Time returns the slot's start time in wire format.
func (s Slot) Time() string { return s.Start.Format(TimeLayout) }

/*
Package calendar provides the date, clock and timezone primitives shared by
the entitlement resolver and the SLA scheduler.

PURPOSE:
  Service commitments are expressed in local calendar days at a customer
  location, but records are stamped in UTC. This package owns the small,
  pure conversions between the two so that every caller does the same
  arithmetic.

KEY CONCEPTS IN THIS FILE (time.go):
  - Date:  A calendar day (no time-of-day), stored at midnight UTC
  - Clock: A time-of-day in minutes since midnight (e.g., 14:00 = 840)
  - Zone:  A fixed UTC offset in hours (e.g., -5, 5.5)

DESIGN PRINCIPLES:
  1. Purity: No function reads the wall clock; "now" is always passed in
  2. Fixed offsets: Locations carry a UTC offset, not a tz database name,
     so conversions are deterministic across hosts
  3. Day granularity: Date comparisons never look at hours

USAGE:
  local, _ := calendar.ToLocalTime(createdAt, -5)
  day := calendar.DateOf(local).AddDays(2)
  sla := day.EndOfDay(local.Location()).UTC()

SEE ALSO:
  - business.go: Business-hours calendar and NextBusinessDay
*/
package calendar

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Date layouts used on the wire.
const (
	LayoutISO = "2006-01-02"
	LayoutUS  = "01/02/2006"
)

// MaxOffsetHours bounds UTC offsets to the range used by real zones.
const MaxOffsetHours = 14

var (
	// ErrInvalidOffset is returned for offsets outside [-14, 14] hours.
	ErrInvalidOffset = errors.New("invalid utc offset")

	// ErrInvalidClock is returned when a time-of-day cannot be parsed.
	ErrInvalidClock = errors.New("invalid time of day")
)

// =============================================================================
// DATE - Calendar day without time-of-day
// =============================================================================

type Date struct {
	Time time.Time
}

// NewDate returns the given calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the wall-clock day of t in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses s with the given layout (LayoutISO or LayoutUS).
func ParseDate(layout, s string) (Date, error) {
	t, err := time.Parse(layout, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int             { return d.Time.Year() }
func (d Date) Month() time.Month     { return d.Time.Month() }
func (d Date) Day() int              { return d.Time.Day() }
func (d Date) Weekday() time.Weekday { return d.Time.Weekday() }
func (d Date) IsZero() bool          { return d.Time.IsZero() }
func (d Date) String() string        { return d.Time.Format(LayoutISO) }

// At returns the instant at the given wall-clock time on d in loc.
func (d Date) At(hour, min, sec int, loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), hour, min, sec, 0, loc)
}

// EndOfDay returns 23:59:59 on d in loc.
func (d Date) EndOfDay(loc *time.Location) time.Time {
	return d.At(23, 59, 59, loc)
}

// DaysBetween returns the number of whole days from -> to.
func DaysBetween(from, to Date) int { return int(to.Time.Sub(from.Time).Hours() / 24) }

// =============================================================================
// CLOCK - Time of day
// =============================================================================

// Clock is a time-of-day in minutes since midnight.
type Clock int

// NewClock returns hour:min as a Clock.
func NewClock(hour, min int) Clock { return Clock(hour*60 + min) }

// ParseClock parses "HH:MM" (24h).
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return NewClock(t.Hour(), t.Minute()), nil
}

// ClockOf returns the time-of-day of t in t's own location.
func ClockOf(t time.Time) Clock { return NewClock(t.Hour(), t.Minute()) }

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute()) }

// =============================================================================
// ZONES - Fixed UTC offsets
// =============================================================================

// Zone returns a fixed location for an offset in hours. Fractional offsets
// (India +5.5, Nepal +5.75) are kept to the second.
func Zone(offsetHours float64) (*time.Location, error) {
	if math.IsNaN(offsetHours) || math.Abs(offsetHours) > MaxOffsetHours {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOffset, offsetHours)
	}
	secs := int(math.Round(offsetHours * 3600))
	sign := "+"
	abs := secs
	if secs < 0 {
		sign = "-"
		abs = -secs
	}
	name := fmt.Sprintf("UTC%s%02d:%02d", sign, abs/3600, (abs%3600)/60)
	return time.FixedZone(name, secs), nil
}

// ToLocalTime converts an instant to wall-clock time at the given offset.
func ToLocalTime(utc time.Time, offsetHours float64) (time.Time, error) {
	loc, err := Zone(offsetHours)
	if err != nil {
		return time.Time{}, err
	}
	return utc.In(loc), nil
}

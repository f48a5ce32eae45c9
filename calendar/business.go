package calendar

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// BUSINESS HOURS - Working days a service date may land on
// =============================================================================

// ErrInvalidCalendar is returned for a calendar that can never yield an
// open day (no working weekdays, inverted windows, nil calendar).
var ErrInvalidCalendar = errors.New("invalid business hours calendar")

// maxScanDays bounds NextBusinessDay so a calendar made entirely of
// holidays fails instead of looping.
const maxScanDays = 400

// Calendar answers whether a day is open for service.
type Calendar interface {
	IsWithin(d Date) bool
}

// Window is the open interval of one weekday, [Start, End).
type Window struct {
	Start Clock
	End   Clock
}

// Holiday closes a single day, or the same month/day every year.
type Holiday struct {
	Date      Date
	Name      string
	Recurring bool
}

func (h Holiday) matches(d Date) bool {
	if h.Recurring {
		return h.Date.Month() == d.Month() && h.Date.Day() == d.Day()
	}
	return h.Date.Equal(d)
}

// BusinessHours is the organization's default business-hours definition.
// Weekdays without a window are closed.
type BusinessHours struct {
	ID       string
	Name     string
	Days     map[time.Weekday]Window
	Holidays []Holiday
}

// StandardBusinessHours returns Monday-Friday, 08:00-17:00, no holidays.
func StandardBusinessHours() *BusinessHours {
	days := make(map[time.Weekday]Window, 5)
	for wd := time.Monday; wd <= time.Friday; wd++ {
		days[wd] = Window{Start: NewClock(8, 0), End: NewClock(17, 0)}
	}
	return &BusinessHours{ID: "default", Name: "Default", Days: days}
}

// Validate checks that the calendar has at least one open weekday and
// that every window is well formed.
func (b *BusinessHours) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: calendar is nil", ErrInvalidCalendar)
	}
	open := 0
	for wd, w := range b.Days {
		if wd < time.Sunday || wd > time.Saturday {
			return fmt.Errorf("%w: weekday %d out of range", ErrInvalidCalendar, wd)
		}
		if w.End <= w.Start {
			return fmt.Errorf("%w: %s closes at %s before opening at %s", ErrInvalidCalendar, wd, w.End, w.Start)
		}
		open++
	}
	if open == 0 {
		return fmt.Errorf("%w: no working days", ErrInvalidCalendar)
	}
	return nil
}

// IsWithin reports whether d is a working day that is not a holiday.
func (b *BusinessHours) IsWithin(d Date) bool {
	if b == nil {
		return false
	}
	w, ok := b.Days[d.Weekday()]
	if !ok || w.End <= w.Start {
		return false
	}
	for _, h := range b.Holidays {
		if h.matches(d) {
			return false
		}
	}
	return true
}

// NextBusinessDay returns d itself when it is open, otherwise the first
// following open day.
func NextBusinessDay(d Date, cal Calendar) (Date, error) {
	if cal == nil {
		return Date{}, fmt.Errorf("%w: calendar is nil", ErrInvalidCalendar)
	}
	current := d
	for i := 0; i < maxScanDays; i++ {
		if cal.IsWithin(current) {
			return current, nil
		}
		current = current.AddDays(1)
	}
	return Date{}, fmt.Errorf("%w: no open day within %d days of %s", ErrInvalidCalendar, maxScanDays, d)
}

package calendar_test

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/entitlement-engine/calendar"
)

// =============================================================================
// ZONE / LOCAL TIME
// =============================================================================

func TestToLocalTime_NegativeOffset(t *testing.T) {
	utc := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)

	local, err := calendar.ToLocalTime(utc, -5)
	require.NoError(t, err)

	assert.Equal(t, 5, local.Hour())
	assert.Equal(t, 6, local.Day())
	assert.True(t, local.Equal(utc), "conversion must not move the instant")
}

func TestToLocalTime_CrossesMidnight(t *testing.T) {
	utc := time.Date(2025, 1, 6, 2, 0, 0, 0, time.UTC)

	local, err := calendar.ToLocalTime(utc, -5)
	require.NoError(t, err)

	assert.Equal(t, calendar.NewDate(2025, time.January, 5), calendar.DateOf(local))
}

func TestToLocalTime_FractionalOffset(t *testing.T) {
	utc := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)

	local, err := calendar.ToLocalTime(utc, 5.5)
	require.NoError(t, err)

	assert.Equal(t, 15, local.Hour())
	assert.Equal(t, 30, local.Minute())
	_, offset := local.Zone()
	assert.Equal(t, 19800, offset)
}

func TestToLocalTime_RejectsOutOfRangeOffset(t *testing.T) {
	for _, off := range []float64{-15, 14.5, 30} {
		_, err := calendar.ToLocalTime(time.Now(), off)
		assert.ErrorIs(t, err, calendar.ErrInvalidOffset, "offset %v", off)
	}
}

func TestZone_Name(t *testing.T) {
	loc, err := calendar.Zone(-5)
	require.NoError(t, err)
	assert.Equal(t, "UTC-05:00", loc.String())

	loc, err = calendar.Zone(5.75)
	require.NoError(t, err)
	assert.Equal(t, "UTC+05:45", loc.String())
}

// =============================================================================
// DATE / CLOCK
// =============================================================================

func TestParseDate_USLayout(t *testing.T) {
	d, err := calendar.ParseDate(calendar.LayoutUS, "01/15/2025")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-15", d.String())

	_, err = calendar.ParseDate(calendar.LayoutUS, "2025-01-15")
	assert.Error(t, err)
}

func TestDate_EndOfDay(t *testing.T) {
	loc, err := calendar.Zone(-5)
	require.NoError(t, err)

	end := calendar.NewDate(2025, time.January, 8).EndOfDay(loc)

	assert.Equal(t, time.Date(2025, 1, 9, 4, 59, 59, 0, time.UTC), end.UTC())
}

func TestParseClock(t *testing.T) {
	c, err := calendar.ParseClock("14:30")
	require.NoError(t, err)
	assert.Equal(t, 14, c.Hour())
	assert.Equal(t, 30, c.Minute())
	assert.Equal(t, "14:30", c.String())

	_, err = calendar.ParseClock("2pm")
	assert.ErrorIs(t, err, calendar.ErrInvalidClock)
}

func TestDaysBetween(t *testing.T) {
	from := calendar.NewDate(2025, time.January, 30)
	to := calendar.NewDate(2025, time.March, 1)
	assert.Equal(t, 30, calendar.DaysBetween(from, to))
}

// =============================================================================
// BUSINESS HOURS
// =============================================================================

func TestStandardBusinessHours_Weekends(t *testing.T) {
	cal := calendar.StandardBusinessHours()
	require.NoError(t, cal.Validate())

	assert.True(t, cal.IsWithin(calendar.NewDate(2025, time.January, 10)))  // Friday
	assert.False(t, cal.IsWithin(calendar.NewDate(2025, time.January, 11))) // Saturday
	assert.False(t, cal.IsWithin(calendar.NewDate(2025, time.January, 12))) // Sunday
}

func TestNextBusinessDay_AlreadyOpen(t *testing.T) {
	cal := calendar.StandardBusinessHours()
	wed := calendar.NewDate(2025, time.January, 8)

	got, err := calendar.NextBusinessDay(wed, cal)
	require.NoError(t, err)
	assert.Equal(t, wed, got)
}

func TestNextBusinessDay_SkipsWeekendAndHoliday(t *testing.T) {
	cal := calendar.StandardBusinessHours()
	cal.Holidays = []calendar.Holiday{
		{Date: calendar.NewDate(2024, time.January, 13), Name: "Founders Day", Recurring: true},
	}
	// Saturday 2025-01-11 -> Sunday -> Monday 13 is a recurring holiday -> Tuesday 14
	got, err := calendar.NextBusinessDay(calendar.NewDate(2025, time.January, 11), cal)
	require.NoError(t, err)
	assert.Equal(t, calendar.NewDate(2025, time.January, 14), got)
}

func TestNextBusinessDay_OneOffHolidayOnlyThatYear(t *testing.T) {
	cal := calendar.StandardBusinessHours()
	cal.Holidays = []calendar.Holiday{{Date: calendar.NewDate(2024, time.January, 8), Name: "Closure"}}

	got, err := calendar.NextBusinessDay(calendar.NewDate(2025, time.January, 8), cal)
	require.NoError(t, err)
	assert.Equal(t, calendar.NewDate(2025, time.January, 8), got)
}

func TestNextBusinessDay_NeverOpen(t *testing.T) {
	cal := &calendar.BusinessHours{Days: map[time.Weekday]calendar.Window{}}

	_, err := calendar.NextBusinessDay(calendar.NewDate(2025, time.January, 8), cal)
	assert.ErrorIs(t, err, calendar.ErrInvalidCalendar)

	_, err = calendar.NextBusinessDay(calendar.NewDate(2025, time.January, 8), nil)
	assert.ErrorIs(t, err, calendar.ErrInvalidCalendar)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cal  *calendar.BusinessHours
		ok   bool
	}{
		{"nil", nil, false},
		{"no days", &calendar.BusinessHours{}, false},
		{"inverted window", &calendar.BusinessHours{Days: map[time.Weekday]calendar.Window{
			time.Monday: {Start: calendar.NewClock(17, 0), End: calendar.NewClock(8, 0)},
		}}, false},
		{"single day", &calendar.BusinessHours{Days: map[time.Weekday]calendar.Window{
			time.Saturday: {Start: calendar.NewClock(9, 0), End: calendar.NewClock(12, 0)},
		}}, true},
		{"standard", calendar.StandardBusinessHours(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cal.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, calendar.ErrInvalidCalendar)
			}
		})
	}
}

// Property: NextBusinessDay always lands on an open day, never before the
// input, and at most 2 days later for the standard calendar.
func TestNextBusinessDay_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	cal := calendar.StandardBusinessHours()
	base := calendar.NewDate(2020, time.January, 1)

	properties.Property("lands on an open day", prop.ForAll(
		func(offset int) bool {
			d := base.AddDays(offset)
			got, err := calendar.NextBusinessDay(d, cal)
			if err != nil {
				return false
			}
			return cal.IsWithin(got) && !got.Before(d) && calendar.DaysBetween(d, got) <= 2
		},
		gen.IntRange(0, 3650),
	))

	properties.TestingRun(t)
}

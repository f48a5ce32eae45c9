package factory

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/entitlement-engine/calendar"
	"github.com/warp/entitlement-engine/entitlement"
)

// =============================================================================
// FIELD MAPPINGS
// =============================================================================

func TestParseFieldMappings_Defaults(t *testing.T) {
	mappings := DefaultFieldMappings()
	require.Len(t, mappings, 9)
	assert.Equal(t, "Location", mappings[1].Label)
	assert.Equal(t, "site_id", mappings[1].QuoteField)
	assert.Equal(t, entitlement.Band("02"), mappings[1].Band)
}

func TestParseFieldMappings_Rejects(t *testing.T) {
	f := NewFactory()
	tests := []struct {
		name string
		json string
	}{
		{"not json", `{`},
		{"unknown key", `[{"label":"A","band":"01","case_field":"account_id","entitlement_field":"account_id","colour":"red"}]`},
		{"bad band", `[{"label":"A","band":"91","case_field":"account_id","entitlement_field":"account_id"}]`},
		{"bad field", `[{"label":"A","band":"01","case_field":"acct","entitlement_field":"account_id"}]`},
		{"empty", `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseFieldMappings(tt.json)
			assert.Error(t, err)
		})
	}

	_, err := f.ParseFieldMappings(`[{"label":"A","band":"91","case_field":"account_id","entitlement_field":"account_id"}]`)
	assert.True(t, entitlement.IsConfiguration(err))
}

// =============================================================================
// BUSINESS HOURS
// =============================================================================

func TestParseBusinessHours_Defaults(t *testing.T) {
	bh := DefaultBusinessHours()
	require.NoError(t, bh.Validate())
	assert.Len(t, bh.Days, 5)
	assert.Equal(t, calendar.NewClock(8, 0), bh.Days[time.Monday].Start)
	assert.False(t, bh.IsWithin(calendar.NewDate(2025, time.January, 11)))
	assert.True(t, bh.IsWithin(calendar.NewDate(2025, time.January, 13)))
}

func TestParseBusinessHours_Holidays(t *testing.T) {
	bh, err := NewFactory().ParseBusinessHours(`{
		"id": "us", "name": "US",
		"days": {"Monday": {"start": "09:00", "end": "18:00"}, "friday": {"start": "09:00", "end": "13:00"}},
		"holidays": [{"date": "2024-12-25", "name": "Christmas", "recurring": true}]
	}`)
	require.NoError(t, err)
	assert.Len(t, bh.Days, 2)
	require.Len(t, bh.Holidays, 1)
	assert.True(t, bh.Holidays[0].Recurring)
	// 2028-12-25 is a Monday.
	assert.False(t, bh.IsWithin(calendar.NewDate(2028, time.December, 25)))
}

func TestParseBusinessHours_Rejects(t *testing.T) {
	f := NewFactory()
	tests := []struct {
		name string
		json string
	}{
		{"no days", `{"id":"x","days":{}}`},
		{"bad weekday", `{"id":"x","days":{"funday":{"start":"08:00","end":"17:00"}}}`},
		{"bad clock", `{"id":"x","days":{"monday":{"start":"8am","end":"17:00"}}}`},
		{"inverted window", `{"id":"x","days":{"monday":{"start":"17:00","end":"08:00"}}}`},
		{"bad holiday", `{"id":"x","days":{"monday":{"start":"08:00","end":"17:00"}},"holidays":[{"date":"12/25/2025"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseBusinessHours(tt.json)
			assert.Error(t, err)
		})
	}
}

func TestBusinessHoursToJSON_RoundTrips(t *testing.T) {
	f := NewFactory()
	bh := DefaultBusinessHours()
	bh.Holidays = []calendar.Holiday{{Date: calendar.NewDate(2025, time.July, 4), Name: "Independence Day"}}

	back, err := f.BusinessHoursFromJSON(f.BusinessHoursToJSON(bh))
	require.NoError(t, err)
	assert.Equal(t, bh.Days, back.Days)
	assert.Equal(t, bh.Holidays, back.Holidays)
}

// =============================================================================
// SEED DATA
// =============================================================================

func TestEntitlementFromJSON(t *testing.T) {
	cutoff := 14
	e, err := NewFactory().EntitlementFromJSON(EntitlementJSON{
		ID:         "ENT-1",
		Status:     "approved",
		AccountID:  "ACC-1",
		Start:      "2025-01-01",
		Guarantee:  GuaranteeJSON{Category: "Hours", Value: decimal.NewFromInt(48)},
		CutoffHour: &cutoff,
		CallWindow: &CallWindowJSON{Qualifier: "before", Time: "12:00", Days: []string{"monday", "Friday"}},
	})
	require.NoError(t, err)

	assert.Equal(t, entitlement.StatusApproved, e.Status)
	assert.Equal(t, entitlement.KindCustomerSpecific, e.Kind())
	assert.Equal(t, calendar.NewDate(2025, time.January, 1), e.Start)
	assert.True(t, e.End.IsZero())
	require.NotNil(t, e.CallWindow)
	assert.Equal(t, entitlement.QualifierBefore, e.CallWindow.Qualifier)
	assert.Equal(t, []time.Weekday{time.Monday, time.Friday}, e.CallWindow.Days)
	assert.Equal(t, 14, *e.CutoffHour)
}

func TestEntitlementFromJSON_Rejects(t *testing.T) {
	f := NewFactory()

	_, err := f.EntitlementFromJSON(EntitlementJSON{})
	assert.Error(t, err)

	_, err = f.EntitlementFromJSON(EntitlementJSON{ID: "E", End: "tomorrow"})
	assert.Error(t, err)

	_, err = f.EntitlementFromJSON(EntitlementJSON{ID: "E", CallWindow: &CallWindowJSON{Qualifier: "during"}})
	assert.Error(t, err)
}

func TestRecordFromJSON(t *testing.T) {
	r, err := NewFactory().RecordFromJSON(RecordJSON{
		ID:            "500A",
		ProductFamily: "Rolloff",
		CreatedDate:   "2025-01-06T10:00:00Z",
		Assets: []ChildAssetJSON{{
			AssetID: "CH-1", SelfService: true, Quantity: 1, VendorParentCode: "WM", BaselineID: "BL-1",
			ScheduledDates: []string{"2025-01-15"},
		}},
	})
	require.NoError(t, err)

	kind, ok := r.Kind()
	require.True(t, ok)
	assert.Equal(t, entitlement.RecordCase, kind)
	assert.Equal(t, time.Date(2025, time.January, 6, 10, 0, 0, 0, time.UTC), r.CreatedDate.UTC())
	require.Len(t, r.Assets, 1)
	assert.Equal(t, []calendar.Date{calendar.NewDate(2025, time.January, 15)}, r.Assets[0].ScheduledDates)
}

func TestRecordFromJSON_Rejects(t *testing.T) {
	f := NewFactory()

	_, err := f.RecordFromJSON(RecordJSON{ID: "XYZ", CreatedDate: "2025-01-06T10:00:00Z"})
	assert.Error(t, err)

	_, err = f.RecordFromJSON(RecordJSON{ID: "500A", CreatedDate: "yesterday"})
	assert.Error(t, err)
}

func TestLocationFromJSON(t *testing.T) {
	f := NewFactory()

	loc, err := f.LocationFromJSON(LocationJSON{ID: "L", UTCOffsetHours: 5.5, TimezoneID: "Asia/Kolkata"})
	require.NoError(t, err)
	assert.Equal(t, 5.5, loc.UTCOffsetHours)

	_, err = f.LocationFromJSON(LocationJSON{ID: "L", UTCOffsetHours: 15})
	assert.ErrorIs(t, err, calendar.ErrInvalidOffset)
}

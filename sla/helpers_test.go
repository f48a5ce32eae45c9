package sla_test

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/entitlement-engine/calendar"
	"github.com/warp/entitlement-engine/entitlement"
	"github.com/warp/entitlement-engine/sla"
)

// =============================================================================
// DAYS DELTA
// =============================================================================

func TestDaysDelta(t *testing.T) {
	tests := []struct {
		name     string
		category entitlement.GuaranteeCategory
		value    string
		want     int
		wantErr  bool
	}{
		{"days", entitlement.GuaranteeDays, "3", 3, false},
		{"fractional days truncate", entitlement.GuaranteeDays, "2.9", 2, false},
		{"hours under a day", entitlement.GuaranteeHours, "23", 0, false},
		{"hours exact days", entitlement.GuaranteeHours, "48", 2, false},
		{"hours round down", entitlement.GuaranteeHours, "71.5", 2, false},
		{"case insensitive", "hours", "24", 1, false},
		{"zero", entitlement.GuaranteeDays, "0", 0, false},
		{"negative", entitlement.GuaranteeDays, "-1", 0, true},
		{"unknown category", "Weeks", "1", 0, true},
		{"blank category", "", "1", 0, true},
		{"days at the bound", entitlement.GuaranteeDays, "36500.9", 36500, false},
		{"days beyond the bound", entitlement.GuaranteeDays, "36501", 0, true},
		{"days beyond int64", entitlement.GuaranteeDays, "10000000000000000000", 0, true},
		{"hours beyond the bound", entitlement.GuaranteeHours, "876024", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sla.DaysDelta(tt.category, decimal.RequireFromString(tt.value))
			if tt.wantErr {
				assert.ErrorIs(t, err, sla.ErrCalculation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// =============================================================================
// CUTOFF
// =============================================================================

func TestIsBeforeCutoff(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2025, time.January, 6, h, m, 0, 0, time.UTC) }

	assert.True(t, sla.IsBeforeCutoff(at(13, 59), 14))
	assert.False(t, sla.IsBeforeCutoff(at(14, 0), 14))
	assert.False(t, sla.IsBeforeCutoff(at(0, 0), 0))
	assert.True(t, sla.IsBeforeCutoff(at(23, 59), 24))
}

// =============================================================================
// STALENESS
// =============================================================================

func TestRequiresRecalculation(t *testing.T) {
	base := entitlement.Record{
		ID:            "500A",
		ProductFamily: sla.FamilyRolloff,
		CaseType:      "Pickup",
		LocationID:    "LOC-1",
		AssetID:       "AST-1",
		Material:      "Cardboard",
	}

	mutate := func(f func(r *entitlement.Record)) *entitlement.Record {
		r := base
		f(&r)
		return &r
	}

	assert.True(t, sla.RequiresRecalculation(nil, &base))
	assert.False(t, sla.RequiresRecalculation(&base, mutate(func(r *entitlement.Record) {})))
	assert.False(t, sla.RequiresRecalculation(&base, mutate(func(r *entitlement.Record) { r.Material = "Glass" })))
	assert.True(t, sla.RequiresRecalculation(&base, mutate(func(r *entitlement.Record) { r.ProductFamily = sla.FamilyCommercial })))
	assert.True(t, sla.RequiresRecalculation(&base, mutate(func(r *entitlement.Record) { r.CaseType = "Delivery" })))
	assert.True(t, sla.RequiresRecalculation(&base, mutate(func(r *entitlement.Record) { r.LocationID = "LOC-2" })))
	assert.True(t, sla.RequiresRecalculation(&base, mutate(func(r *entitlement.Record) { r.AssetID = "AST-2" })))
}

// =============================================================================
// SERVICE BASELINE
// =============================================================================

func TestServiceBaseline_PicksFirstEligible(t *testing.T) {
	rec := &entitlement.Record{Assets: []entitlement.ChildAsset{
		{AssetID: "a", SelfService: false, Quantity: 1, VendorParentCode: "WM", BaselineID: "B-a"},
		{AssetID: "b", SelfService: true, Quantity: 2, VendorParentCode: "WM", BaselineID: "B-b"},
		{AssetID: "c", SelfService: true, Quantity: 1, VendorParentCode: "XX", BaselineID: "B-c"},
		{AssetID: "d", SelfService: true, Quantity: 1, VendorParentCode: "WM", BaselineID: "  "},
		{AssetID: "e", SelfService: true, Quantity: 1, VendorParentCode: "WM", BaselineID: "B-e"},
		{AssetID: "f", SelfService: true, Quantity: 1, VendorParentCode: "WM", BaselineID: "B-f"},
	}}

	got, ok := sla.ServiceBaseline(rec, "WM")
	require.True(t, ok)
	assert.Equal(t, "e", got.AssetID)

	_, ok = sla.ServiceBaseline(&entitlement.Record{}, "WM")
	assert.False(t, ok)
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestCalculate_AlwaysProducesCommitment(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	cal := calendar.StandardBusinessHours()
	now := time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)
	s, err := sla.New(sla.Config{
		Calendar: cal,
		Capacity: &fakePlanner{dates: []calendar.Date{date(2025, time.March, 8), date(2025, time.March, 12)}},
		Now:      fixedNow(now),
	})
	require.NoError(t, err)

	categories := []string{"Days", "Hours", "Weeks"}

	properties.Property("service date is set, SLA is after creation, business days respected", prop.ForAll(
		func(minutes int64, offset float64, value int, categoryIdx int, cutoff int, override bool) bool {
			category := categories[categoryIdx]
			created := now.Add(time.Duration(minutes) * time.Minute)
			rec := rolloffRecord("500P", "BL-P", created)
			if minutes%2 == 0 {
				rec.ProductFamily = sla.FamilyCommercial
			}
			ent := &entitlement.Entitlement{
				ID:                    "ENT-P",
				Status:                entitlement.StatusApproved,
				Guarantee:             entitlement.Guarantee{Category: entitlement.GuaranteeCategory(category), Value: decimal.NewFromInt(int64(value))},
				CutoffHour:            &cutoff,
				OverrideBusinessHours: override,
			}

			res, err := s.Calculate(context.Background(), rec, ent, sla.Location{UTCOffsetHours: offset})
			if err != nil || res.ServiceDate.IsZero() || res.SLA.IsZero() {
				return false
			}
			if res.SLA.Before(created) {
				return false
			}
			if !override && !cal.IsWithin(res.ServiceDate) {
				return false
			}
			return res.SLA.Location() == time.UTC
		},
		gen.Int64Range(-30*24*60, 30*24*60),
		gen.Float64Range(-16, 16),
		gen.IntRange(-2, 40),
		gen.IntRange(0, len(categories)-1),
		gen.IntRange(-1, 25),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

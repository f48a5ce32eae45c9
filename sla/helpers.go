package sla

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/entitlement-engine/entitlement"
)

var hoursPerDay = decimal.NewFromInt(24)

// MaxDaysDelta bounds a guarantee to one hundred years of days.
const MaxDaysDelta = 36500

var maxDaysDelta = decimal.NewFromInt(MaxDaysDelta)

// DaysDelta converts a guarantee into whole days. Days are taken as-is
// (fractions dropped); hours are floor(value / 24). Values beyond
// MaxDaysDelta days are rejected.
func DaysDelta(category entitlement.GuaranteeCategory, value decimal.Decimal) (int, error) {
	if value.IsNegative() {
		return 0, calcErr("days_delta", "negative guarantee value %s", value)
	}
	var whole decimal.Decimal
	switch {
	case strings.EqualFold(string(category), string(entitlement.GuaranteeDays)):
		whole = value.Floor()
	case strings.EqualFold(string(category), string(entitlement.GuaranteeHours)):
		whole = value.Div(hoursPerDay).Floor()
	default:
		return 0, calcErr("days_delta", "unknown guarantee category %q", category)
	}
	if whole.GreaterThan(maxDaysDelta) {
		return 0, calcErr("days_delta", "guarantee of %s %s exceeds %d days", value, category, MaxDaysDelta)
	}
	return int(whole.IntPart()), nil
}

// IsBeforeCutoff reports whether local wall-clock time is before cutoffHour
// (0-24). At or after the cutoff, service slips one day.
func IsBeforeCutoff(local time.Time, cutoffHour int) bool {
	return local.Hour() < cutoffHour
}

// RequiresRecalculation reports whether a previously computed Result for
// old is stale for next: true iff product family / case type, location or
// asset changed.
func RequiresRecalculation(old, next *entitlement.Record) bool {
	if old == nil || next == nil {
		return true
	}
	return old.ProductFamily != next.ProductFamily ||
		old.CaseType != next.CaseType ||
		old.LocationID != next.LocationID ||
		old.AssetID != next.AssetID
}

// ServiceBaseline returns the child asset whose baseline id the capacity
// planner is keyed by: self-service, quantity 1, vendor-managed, non-blank
// baseline.
func ServiceBaseline(rec *entitlement.Record, vendorCode string) (entitlement.ChildAsset, bool) {
	for _, a := range rec.Assets {
		if a.SelfService && a.Quantity == 1 && a.VendorParentCode == vendorCode && strings.TrimSpace(a.BaselineID) != "" {
			return a, true
		}
	}
	return entitlement.ChildAsset{}, false
}

/*
Package sla computes the binding service date and SLA timestamp for a
record once its entitlement is known.

PURPOSE:
  An entitlement says "service within N days (or hours)". Turning that into
  a concrete commitment requires the customer's local time, a same-day
  cutoff, the organization's business-hours calendar and, for roll-off
  service on vendor-managed equipment, the external capacity planner.

STRATEGIES:
  EntitlementBased: created date + guarantee, cutoff, business hours
  CapacityPlanner:  earliest free date offered by the capacity planner
  ErrorFallback:    tomorrow, business-hours adjusted, on any fault

DECISION TREE (per record):
  entitlement nil                                 -> ErrNoEntitlement
  gold standard | contractual | family Commercial -> EntitlementBased
  family Rolloff & vendor parent == vendor code   -> CapacityPlanner,
                                                     falling back to
                                                     EntitlementBased
  otherwise                                       -> EntitlementBased

GUARANTEES:
  - Calculate never fails after the entitlement check: every fault ends in
    a Result with a service date and SLA timestamp
  - One capacity call per unique baseline id per batch
  - The Scheduler holds no per-call state

SEE ALSO:
  - scheduler.go: Calculate / CalculateBatch
  - capacity.go:  Capacity lookups fan-out
  - helpers.go:   Pure date helpers
*/
package sla

import (
	"context"
	"time"

	"github.com/warp/entitlement-engine/calendar"
	"github.com/warp/entitlement-engine/entitlement"
)

// Method is how a Result was produced.
type Method string

const (
	MethodEntitlementBased Method = "EntitlementBased"
	MethodCapacityPlanner  Method = "CapacityPlanner"
	MethodIndustryFallback Method = "IndustryFallback"
	MethodErrorFallback    Method = "ErrorFallback"
)

// Product families that drive strategy selection.
const (
	FamilyCommercial = "Commercial"
	FamilyRolloff    = "Rolloff"
)

// DefaultVendorCode is the vendor parent code of vendor-managed equipment.
const DefaultVendorCode = "WM"

// Result is created fresh per record and never mutated after return.
type Result struct {
	RecordID      entitlement.RecordID
	EntitlementID entitlement.EntitlementID
	ServiceDate   calendar.Date
	SLA           time.Time // UTC
	Method        Method

	// AvailableDates is set only when the capacity planner produced the date.
	AvailableDates []calendar.Date

	// ErrorMessage records a recovered failure (capacity fallback, error
	// fallback). Empty on the happy path.
	ErrorMessage string
}

// Location is the time context of a service location.
type Location struct {
	ID             string
	UTCOffsetHours float64
	TimezoneID     string
}

// =============================================================================
// EXTERNAL COLLABORATORS
// =============================================================================

// CapacityPlanner returns available service dates for a baseline, in any
// order. capacity.Client implements it.
type CapacityPlanner interface {
	AvailableDates(ctx context.Context, baselineID string) ([]calendar.Date, error)
}

// LocationSource loads the time context of a location.
type LocationSource interface {
	LoadLocation(ctx context.Context, id string) (Location, error)
}

// CalendarSource loads the organization's default business hours.
type CalendarSource interface {
	LoadBusinessHours(ctx context.Context) (*calendar.BusinessHours, error)
}

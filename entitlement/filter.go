package entitlement

import (
	"github.com/warp/entitlement-engine/calendar"
)

// =============================================================================
// FILTER CHAIN - A candidate survives only if every filter keeps it
// =============================================================================

type filter struct {
	name string
	keep func(r *Record, e *Entitlement, today calendar.Date) bool
}

// filterChain is evaluated in order and short-circuits on the first reject.
var filterChain = []filter{
	{name: "status", keep: keepApproved},
	{name: "date_range", keep: keepInDateRange},
	{name: "call_window", keep: keepInCallWindow},
	{name: "account_scope", keep: keepInAccountScope},
}

func keepApproved(_ *Record, e *Entitlement, _ calendar.Date) bool {
	return e.Status == StatusApproved
}

// keepInDateRange: Start <= earliest service date AND End >= today.
func keepInDateRange(r *Record, e *Entitlement, today calendar.Date) bool {
	if !e.Start.IsZero() && e.Start.After(r.EarliestServiceDate()) {
		return false
	}
	if !e.End.IsZero() && e.End.Before(today) {
		return false
	}
	return true
}

// keepInCallWindow reads the creation wall clock in the zone CreatedDate
// carries (UTC from the stores), not the location's local time.
func keepInCallWindow(r *Record, e *Entitlement, _ calendar.Date) bool {
	return e.CallWindow.Allows(r.CreatedDate)
}

func keepInAccountScope(r *Record, e *Entitlement, _ calendar.Date) bool {
	return e.AccountID == "" || e.AccountID == r.AccountID
}

// Eligible reports whether e passes the whole filter chain for r. The
// second result names the first filter that rejected it.
func Eligible(r *Record, e *Entitlement, today calendar.Date) (bool, string) {
	for _, f := range filterChain {
		if !f.keep(r, e, today) {
			return false, f.name
		}
	}
	return true, ""
}

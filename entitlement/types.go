/*
Package entitlement resolves which contractual service commitment applies to
a case or quote.

PURPOSE:
  A customer request (case or quote) can be covered by many entitlements:
  industry-standard ones that apply to every account and customer-specific
  ones negotiated per account, location or material. The resolver filters
  the candidates that can legally apply and ranks the survivors by how
  specifically they match the request.

KEY CONCEPTS IN THIS FILE (types.go):
  - Record:      A case or quote needing an entitlement (read-only input)
  - Entitlement: A candidate service commitment
  - Guarantee:   How fast the commitment must be met (days or hours)
  - CallWindow:  Optional time-of-day / weekday restriction on when the
                 request was created

RECORD KINDS:
  The kind of a record is derived from its identifier namespace, never
  passed explicitly:
    "500..." -> case
    "0Q0..." -> quote

DESIGN PRINCIPLES:
  1. Read-only: Records and entitlements are never mutated here
  2. Explicit context: Everything a filter or scorer needs arrives as an
     argument; there is no package-level mutable state
  3. No reflection: Field comparison goes through explicit accessor tables
     (fields.go)

SEE ALSO:
  - fields.go:   Field mapping configuration and accessors
  - filter.go:   Candidate filter chain
  - score.go:    Match scoring and priority rank
  - resolver.go: ResolvePrioritized / ResolveAll
*/
package entitlement

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/entitlement-engine/calendar"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RecordID string
type EntitlementID string

// RecordKind is the type of a target record.
type RecordKind string

const (
	RecordCase  RecordKind = "case"
	RecordQuote RecordKind = "quote"
)

// Identifier namespaces.
const (
	CasePrefix  = "500"
	QuotePrefix = "0Q0"
)

// KindOf returns the record kind encoded in id's namespace.
func KindOf(id RecordID) (RecordKind, bool) {
	switch {
	case strings.HasPrefix(string(id), CasePrefix):
		return RecordCase, true
	case strings.HasPrefix(string(id), QuotePrefix):
		return RecordQuote, true
	default:
		return "", false
	}
}

// =============================================================================
// RECORD - Case or quote
// =============================================================================

// ChildAsset is an asset line under the record's parent asset.
type ChildAsset struct {
	AssetID          string
	SelfService      bool
	Quantity         int
	VendorParentCode string
	BaselineID       string

	// ScheduledDates are the service dates of work orders already booked
	// against this asset.
	ScheduledDates []calendar.Date
}

// Record is a case or quote. Owned by the persistence layer.
type Record struct {
	ID         RecordID
	AccountID  string
	LocationID string

	// Service identification
	Material      string
	EquipmentSize string
	Schedule      string
	ServiceType   string

	// Transaction identification
	CaseType    string
	CaseSubType string
	CaseReason  string

	ProductFamily  string
	VendorParentID string
	AssetID        string
	Assets         []ChildAsset

	CreatedDate time.Time

	// MinServiceDate is the earliest date service may be requested for.
	// Zero means the creation date.
	MinServiceDate calendar.Date
}

// Kind returns the record kind derived from the identifier.
func (r *Record) Kind() (RecordKind, bool) { return KindOf(r.ID) }

// EarliestServiceDate returns MinServiceDate, or the creation day.
func (r *Record) EarliestServiceDate() calendar.Date {
	if !r.MinServiceDate.IsZero() {
		return r.MinServiceDate
	}
	return calendar.DateOf(r.CreatedDate)
}

// =============================================================================
// ENTITLEMENT - Candidate service commitment
// =============================================================================

type Status string

const (
	StatusDraft    Status = "Draft"
	StatusApproved Status = "Approved"
	StatusExpired  Status = "Expired"
)

// GuaranteeCategory is the unit of a guarantee.
type GuaranteeCategory string

const (
	GuaranteeDays  GuaranteeCategory = "Days"
	GuaranteeHours GuaranteeCategory = "Hours"
)

type Guarantee struct {
	Category GuaranteeCategory
	Value    decimal.Decimal
}

// Qualifier says which side of CallWindow.Time a request must fall on.
type Qualifier string

const (
	QualifierBefore Qualifier = "Before"
	QualifierAfter  Qualifier = "After"
)

// CallWindow restricts an entitlement to requests created before/after a
// time of day and/or on certain weekdays. A zero value restricts nothing.
type CallWindow struct {
	Qualifier Qualifier
	Time      calendar.Clock
	Days      []time.Weekday
}

// Allows reports whether a request created at t satisfies the window.
func (w *CallWindow) Allows(t time.Time) bool {
	if w == nil {
		return true
	}
	switch w.Qualifier {
	case QualifierBefore:
		if calendar.ClockOf(t) >= w.Time {
			return false
		}
	case QualifierAfter:
		if calendar.ClockOf(t) < w.Time {
			return false
		}
	}
	if len(w.Days) == 0 {
		return true
	}
	for _, d := range w.Days {
		if d == t.Weekday() {
			return true
		}
	}
	return false
}

// Kind groups entitlements for the "all options" view.
type Kind string

const (
	KindIndustryStandard Kind = "IndustryStandard"
	KindCustomerSpecific Kind = "CustomerSpecific"
)

type Entitlement struct {
	ID   EntitlementID
	Name string

	// AccountID is empty for industry-standard entitlements.
	AccountID string

	// Validity window. A zero End never expires.
	Start  calendar.Date
	End    calendar.Date
	Status Status

	Guarantee  Guarantee
	CutoffHour *int
	CallWindow *CallWindow

	OverrideBusinessHours bool
	GoldStandard          bool
	Contractual           bool

	// Comparison fields
	LocationID    string
	Material      string
	EquipmentSize string
	Schedule      string
	ServiceType   string
	CaseType      string
	CaseSubType   string
	CaseReason    string
}

// Kind returns IndustryStandard when the entitlement has no owning account.
func (e *Entitlement) Kind() Kind {
	if e.AccountID == "" {
		return KindIndustryStandard
	}
	return KindCustomerSpecific
}

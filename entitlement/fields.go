package entitlement

import (
	"strconv"
	"strings"
)

// =============================================================================
// FIELD MAPPING - Which attribute pairs to compare
// =============================================================================

// Band is a priority-band code. Only the leading digit matters:
//
//	0x        customer identification (account, location)
//	1x, 2x    service identification (material, schedule, service type)
//	3x, 4x    transaction identification (case type / sub-type / reason)
type Band string

// Category is the score bucket a band contributes to.
type Category int

const (
	CategoryCustomer Category = iota
	CategoryService
	CategoryTransaction
)

func (c Category) String() string {
	switch c {
	case CategoryCustomer:
		return "customer"
	case CategoryService:
		return "service"
	case CategoryTransaction:
		return "transaction"
	default:
		return "unknown"
	}
}

// Category returns the score bucket for the band.
func (b Band) Category() (Category, bool) {
	if b == "" {
		return 0, false
	}
	switch b[0] {
	case '0':
		return CategoryCustomer, true
	case '1', '2':
		return CategoryService, true
	case '3', '4':
		return CategoryTransaction, true
	default:
		return 0, false
	}
}

// FieldMapping is one configured comparison. The source field name differs
// by record kind; a blank name means the mapping does not apply to that kind.
type FieldMapping struct {
	Label            string
	Band             Band
	CaseField        string
	QuoteField       string
	EntitlementField string
}

// SourceField returns the record field name for kind.
func (m FieldMapping) SourceField(kind RecordKind) string {
	if kind == RecordQuote {
		return m.QuoteField
	}
	return m.CaseField
}

// =============================================================================
// ACCESSORS - Explicit per-kind field tables
// =============================================================================

type recordGetter func(*Record) string
type entitlementGetter func(*Entitlement) string

// Case field names.
var caseFields = map[string]recordGetter{
	"account_id":     func(r *Record) string { return r.AccountID },
	"location_id":    func(r *Record) string { return r.LocationID },
	"material":       func(r *Record) string { return r.Material },
	"equipment_size": func(r *Record) string { return r.EquipmentSize },
	"schedule":       func(r *Record) string { return r.Schedule },
	"service_type":   func(r *Record) string { return r.ServiceType },
	"case_type":      func(r *Record) string { return r.CaseType },
	"case_sub_type":  func(r *Record) string { return r.CaseSubType },
	"case_reason":    func(r *Record) string { return r.CaseReason },
}

// Quote field names. Quotes carry a site rather than a location and a
// quote type rather than a case type.
var quoteFields = map[string]recordGetter{
	"account_id":     func(r *Record) string { return r.AccountID },
	"site_id":        func(r *Record) string { return r.LocationID },
	"material":       func(r *Record) string { return r.Material },
	"equipment_size": func(r *Record) string { return r.EquipmentSize },
	"schedule":       func(r *Record) string { return r.Schedule },
	"service_type":   func(r *Record) string { return r.ServiceType },
	"quote_type":     func(r *Record) string { return r.CaseType },
	"quote_sub_type": func(r *Record) string { return r.CaseSubType },
	"quote_reason":   func(r *Record) string { return r.CaseReason },
}

var entitlementFields = map[string]entitlementGetter{
	"account_id":     func(e *Entitlement) string { return e.AccountID },
	"location_id":    func(e *Entitlement) string { return e.LocationID },
	"material":       func(e *Entitlement) string { return e.Material },
	"equipment_size": func(e *Entitlement) string { return e.EquipmentSize },
	"schedule":       func(e *Entitlement) string { return e.Schedule },
	"service_type":   func(e *Entitlement) string { return e.ServiceType },
	"case_type":      func(e *Entitlement) string { return e.CaseType },
	"case_sub_type":  func(e *Entitlement) string { return e.CaseSubType },
	"case_reason":    func(e *Entitlement) string { return e.CaseReason },
}

func recordFields(kind RecordKind) map[string]recordGetter {
	if kind == RecordQuote {
		return quoteFields
	}
	return caseFields
}

// FieldValue returns the value of the named field on r, using r's kind to
// pick the field table. ok is false for unknown fields.
func FieldValue(r *Record, key string) (string, bool) {
	kind, known := r.Kind()
	if !known {
		return "", false
	}
	get, ok := recordFields(kind)[key]
	if !ok {
		return "", false
	}
	return get(r), true
}

// EntitlementFieldValue returns the named comparison field of e.
func EntitlementFieldValue(e *Entitlement, key string) (string, bool) {
	get, ok := entitlementFields[key]
	if !ok {
		return "", false
	}
	return get(e), true
}

// =============================================================================
// COMPILED MAPPINGS
// =============================================================================

type compiledMapping struct {
	label    string
	category Category
	source   map[RecordKind]recordGetter
	target   entitlementGetter
}

// Mappings is a validated field-mapping configuration, immutable for the
// duration of a batch.
type Mappings struct {
	entries []compiledMapping
}

// Compile validates raw mapping entries. Any unknown band or field name is a
// ConfigurationError; so is an empty configuration.
func Compile(raw []FieldMapping) (*Mappings, error) {
	if len(raw) == 0 {
		return nil, &ConfigurationError{Reason: "no field mappings configured"}
	}

	entries := make([]compiledMapping, 0, len(raw))
	for _, m := range raw {
		cat, ok := m.Band.Category()
		if !ok {
			return nil, &ConfigurationError{Mapping: m.Label, Reason: "unknown priority band " + strconv.Quote(string(m.Band))}
		}
		target, ok := entitlementFields[strings.TrimSpace(m.EntitlementField)]
		if !ok {
			return nil, &ConfigurationError{Mapping: m.Label, Reason: "unknown entitlement field " + strconv.Quote(m.EntitlementField)}
		}

		cm := compiledMapping{label: m.Label, category: cat, target: target, source: make(map[RecordKind]recordGetter, 2)}
		for _, kind := range []RecordKind{RecordCase, RecordQuote} {
			name := strings.TrimSpace(m.SourceField(kind))
			if name == "" {
				continue
			}
			get, ok := recordFields(kind)[name]
			if !ok {
				return nil, &ConfigurationError{Mapping: m.Label, Reason: "unknown " + string(kind) + " field " + strconv.Quote(name)}
			}
			cm.source[kind] = get
		}
		if len(cm.source) == 0 {
			return nil, &ConfigurationError{Mapping: m.Label, Reason: "no source field for any record kind"}
		}
		entries = append(entries, cm)
	}
	return &Mappings{entries: entries}, nil
}

// Len returns the number of compiled entries.
func (m *Mappings) Len() int { return len(m.entries) }

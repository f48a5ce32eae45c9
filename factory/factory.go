/*
Package factory provides JSON to Go conversion for engine configuration and
seed data.

PURPOSE:
  Converts JSON definitions of field mappings, business hours, records,
  entitlements and locations into the engine's domain types. Operations
  staff can change which fields are compared, or the organization calendar,
  without code changes.

JSON SCHEMA (field mappings):
  [
    {"label": "Account",  "band": "01", "case_field": "account_id",
     "quote_field": "account_id", "entitlement_field": "account_id"},
    {"label": "Material", "band": "11", "case_field": "material",
     "quote_field": "material",   "entitlement_field": "material"}
  ]

JSON SCHEMA (business hours):
  {
    "id": "default",
    "name": "Default",
    "days": {"monday": {"start": "08:00", "end": "17:00"}, ...},
    "holidays": [{"date": "2025-12-25", "name": "Christmas", "recurring": true}]
  }

KEY FEATURES:
  - Strict decoding (unknown keys rejected)
  - Validates bands, field names, clocks and dates
  - Defaults for a deployment with no configuration yet

USAGE:
  f := NewFactory()
  mappings, err := f.ParseFieldMappings(jsonString)
  hours, err := f.ParseBusinessHours(DefaultBusinessHoursJSON)

SEE ALSO:
  - entitlement/fields.go: FieldMapping type definition
  - calendar/business.go:  BusinessHours type definition
  - api/scenarios.go:      Demo scenarios built from these schemas
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/entitlement-engine/calendar"
	"github.com/warp/entitlement-engine/entitlement"
	"github.com/warp/entitlement-engine/sla"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// FieldMappingJSON is the JSON representation of one comparison.
type FieldMappingJSON struct {
	Label            string `json:"label"`
	Band             string `json:"band"`
	CaseField        string `json:"case_field,omitempty"`
	QuoteField       string `json:"quote_field,omitempty"`
	EntitlementField string `json:"entitlement_field"`
}

// BusinessHoursJSON represents the organization calendar.
type BusinessHoursJSON struct {
	ID       string                `json:"id"`
	Name     string                `json:"name"`
	Days     map[string]WindowJSON `json:"days"`
	Holidays []HolidayJSON         `json:"holidays,omitempty"`
}

type WindowJSON struct {
	Start string `json:"start"` // HH:MM
	End   string `json:"end"`
}

type HolidayJSON struct {
	Date      string `json:"date"` // YYYY-MM-DD
	Name      string `json:"name,omitempty"`
	Recurring bool   `json:"recurring,omitempty"`
}

// GuaranteeJSON accepts value as a JSON number or string.
type GuaranteeJSON struct {
	Category string          `json:"category"`
	Value    decimal.Decimal `json:"value"`
}

type CallWindowJSON struct {
	Qualifier string   `json:"qualifier,omitempty"` // Before, After
	Time      string   `json:"time,omitempty"`      // HH:MM
	Days      []string `json:"days,omitempty"`      // monday ... sunday
}

// EntitlementJSON represents a candidate entitlement.
type EntitlementJSON struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name"`
	AccountID             string          `json:"account_id,omitempty"`
	Start                 string          `json:"start,omitempty"` // YYYY-MM-DD
	End                   string          `json:"end,omitempty"`
	Status                string          `json:"status"`
	Guarantee             GuaranteeJSON   `json:"guarantee"`
	CutoffHour            *int            `json:"cutoff_hour,omitempty"`
	CallWindow            *CallWindowJSON `json:"call_window,omitempty"`
	OverrideBusinessHours bool            `json:"override_business_hours,omitempty"`
	GoldStandard          bool            `json:"gold_standard,omitempty"`
	Contractual           bool            `json:"contractual,omitempty"`
	LocationID            string          `json:"location_id,omitempty"`
	Material              string          `json:"material,omitempty"`
	EquipmentSize         string          `json:"equipment_size,omitempty"`
	Schedule              string          `json:"schedule,omitempty"`
	ServiceType           string          `json:"service_type,omitempty"`
	CaseType              string          `json:"case_type,omitempty"`
	CaseSubType           string          `json:"case_sub_type,omitempty"`
	CaseReason            string          `json:"case_reason,omitempty"`
}

type ChildAssetJSON struct {
	AssetID          string   `json:"asset_id"`
	SelfService      bool     `json:"self_service,omitempty"`
	Quantity         int      `json:"quantity"`
	VendorParentCode string   `json:"vendor_parent_code,omitempty"`
	BaselineID       string   `json:"baseline_id,omitempty"`
	ScheduledDates   []string `json:"scheduled_dates,omitempty"` // YYYY-MM-DD
}

// RecordJSON represents a case or quote.
type RecordJSON struct {
	ID             string           `json:"id"`
	AccountID      string           `json:"account_id,omitempty"`
	LocationID     string           `json:"location_id,omitempty"`
	Material       string           `json:"material,omitempty"`
	EquipmentSize  string           `json:"equipment_size,omitempty"`
	Schedule       string           `json:"schedule,omitempty"`
	ServiceType    string           `json:"service_type,omitempty"`
	CaseType       string           `json:"case_type,omitempty"`
	CaseSubType    string           `json:"case_sub_type,omitempty"`
	CaseReason     string           `json:"case_reason,omitempty"`
	ProductFamily  string           `json:"product_family,omitempty"`
	VendorParentID string           `json:"vendor_parent_id,omitempty"`
	AssetID        string           `json:"asset_id,omitempty"`
	Assets         []ChildAssetJSON `json:"assets,omitempty"`
	CreatedDate    string           `json:"created_date"` // RFC 3339
	MinServiceDate string           `json:"min_service_date,omitempty"`
}

type LocationJSON struct {
	ID             string  `json:"id"`
	UTCOffsetHours float64 `json:"utc_offset_hours"`
	TimezoneID     string  `json:"timezone_id,omitempty"`
}

// =============================================================================
// FACTORY
// =============================================================================

// Factory converts JSON definitions to domain types.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func decodeStrict(data string, v any) error {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// ParseFieldMappings parses and validates a mapping configuration.
func (f *Factory) ParseFieldMappings(jsonStr string) ([]entitlement.FieldMapping, error) {
	var raw []FieldMappingJSON
	if err := decodeStrict(jsonStr, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse field mappings JSON: %w", err)
	}
	return f.FieldMappingsFromJSON(raw)
}

// FieldMappingsFromJSON converts and validates. Validation is the same
// compile step the resolver runs, so a configuration accepted here is
// accepted at resolution time.
func (f *Factory) FieldMappingsFromJSON(raw []FieldMappingJSON) ([]entitlement.FieldMapping, error) {
	out := make([]entitlement.FieldMapping, 0, len(raw))
	for _, m := range raw {
		out = append(out, entitlement.FieldMapping{
			Label:            strings.TrimSpace(m.Label),
			Band:             entitlement.Band(strings.TrimSpace(m.Band)),
			CaseField:        strings.TrimSpace(m.CaseField),
			QuoteField:       strings.TrimSpace(m.QuoteField),
			EntitlementField: strings.TrimSpace(m.EntitlementField),
		})
	}
	if _, err := entitlement.Compile(out); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseBusinessHours parses and validates a calendar.
func (f *Factory) ParseBusinessHours(jsonStr string) (*calendar.BusinessHours, error) {
	var bj BusinessHoursJSON
	if err := decodeStrict(jsonStr, &bj); err != nil {
		return nil, fmt.Errorf("failed to parse business hours JSON: %w", err)
	}
	return f.BusinessHoursFromJSON(bj)
}

func (f *Factory) BusinessHoursFromJSON(bj BusinessHoursJSON) (*calendar.BusinessHours, error) {
	bh := &calendar.BusinessHours{
		ID:   bj.ID,
		Name: bj.Name,
		Days: make(map[time.Weekday]calendar.Window, len(bj.Days)),
	}
	for name, wj := range bj.Days {
		wd, err := parseWeekday(name)
		if err != nil {
			return nil, err
		}
		start, err := calendar.ParseClock(wj.Start)
		if err != nil {
			return nil, fmt.Errorf("%s start: %w", name, err)
		}
		end, err := calendar.ParseClock(wj.End)
		if err != nil {
			return nil, fmt.Errorf("%s end: %w", name, err)
		}
		bh.Days[wd] = calendar.Window{Start: start, End: end}
	}
	for _, hj := range bj.Holidays {
		d, err := calendar.ParseDate(calendar.LayoutISO, hj.Date)
		if err != nil {
			return nil, fmt.Errorf("holiday %q: %w", hj.Name, err)
		}
		bh.Holidays = append(bh.Holidays, calendar.Holiday{Date: d, Name: hj.Name, Recurring: hj.Recurring})
	}
	if err := bh.Validate(); err != nil {
		return nil, err
	}
	return bh, nil
}

// BusinessHoursToJSON converts a calendar back to its JSON form.
func (f *Factory) BusinessHoursToJSON(bh *calendar.BusinessHours) BusinessHoursJSON {
	bj := BusinessHoursJSON{ID: bh.ID, Name: bh.Name, Days: make(map[string]WindowJSON, len(bh.Days))}
	for wd, w := range bh.Days {
		bj.Days[strings.ToLower(wd.String())] = WindowJSON{Start: w.Start.String(), End: w.End.String()}
	}
	for _, h := range bh.Holidays {
		bj.Holidays = append(bj.Holidays, HolidayJSON{Date: h.Date.String(), Name: h.Name, Recurring: h.Recurring})
	}
	return bj
}

// EntitlementFromJSON converts one entitlement definition.
func (f *Factory) EntitlementFromJSON(ej EntitlementJSON) (entitlement.Entitlement, error) {
	if strings.TrimSpace(ej.ID) == "" {
		return entitlement.Entitlement{}, fmt.Errorf("entitlement id is required")
	}
	e := entitlement.Entitlement{
		ID:                    entitlement.EntitlementID(ej.ID),
		Name:                  ej.Name,
		AccountID:             ej.AccountID,
		Status:                parseStatus(ej.Status),
		Guarantee:             entitlement.Guarantee{Category: entitlement.GuaranteeCategory(ej.Guarantee.Category), Value: ej.Guarantee.Value},
		CutoffHour:            ej.CutoffHour,
		OverrideBusinessHours: ej.OverrideBusinessHours,
		GoldStandard:          ej.GoldStandard,
		Contractual:           ej.Contractual,
		LocationID:            ej.LocationID,
		Material:              ej.Material,
		EquipmentSize:         ej.EquipmentSize,
		Schedule:              ej.Schedule,
		ServiceType:           ej.ServiceType,
		CaseType:              ej.CaseType,
		CaseSubType:           ej.CaseSubType,
		CaseReason:            ej.CaseReason,
	}

	var err error
	if e.Start, err = parseOptionalDate(ej.Start); err != nil {
		return e, fmt.Errorf("entitlement %s start: %w", ej.ID, err)
	}
	if e.End, err = parseOptionalDate(ej.End); err != nil {
		return e, fmt.Errorf("entitlement %s end: %w", ej.ID, err)
	}
	if ej.CallWindow != nil {
		if e.CallWindow, err = parseCallWindow(*ej.CallWindow); err != nil {
			return e, fmt.Errorf("entitlement %s call window: %w", ej.ID, err)
		}
	}
	return e, nil
}

// RecordFromJSON converts one case or quote.
func (f *Factory) RecordFromJSON(rj RecordJSON) (entitlement.Record, error) {
	id := entitlement.RecordID(strings.TrimSpace(rj.ID))
	if _, ok := entitlement.KindOf(id); !ok {
		return entitlement.Record{}, fmt.Errorf("record id %q is neither a case nor a quote", rj.ID)
	}
	created, err := time.Parse(time.RFC3339, rj.CreatedDate)
	if err != nil {
		return entitlement.Record{}, fmt.Errorf("record %s created_date: %w", rj.ID, err)
	}
	minDate, err := parseOptionalDate(rj.MinServiceDate)
	if err != nil {
		return entitlement.Record{}, fmt.Errorf("record %s min_service_date: %w", rj.ID, err)
	}

	r := entitlement.Record{
		ID:             id,
		AccountID:      rj.AccountID,
		LocationID:     rj.LocationID,
		Material:       rj.Material,
		EquipmentSize:  rj.EquipmentSize,
		Schedule:       rj.Schedule,
		ServiceType:    rj.ServiceType,
		CaseType:       rj.CaseType,
		CaseSubType:    rj.CaseSubType,
		CaseReason:     rj.CaseReason,
		ProductFamily:  rj.ProductFamily,
		VendorParentID: rj.VendorParentID,
		AssetID:        rj.AssetID,
		CreatedDate:    created,
		MinServiceDate: minDate,
	}
	for _, aj := range rj.Assets {
		a := entitlement.ChildAsset{
			AssetID:          aj.AssetID,
			SelfService:      aj.SelfService,
			Quantity:         aj.Quantity,
			VendorParentCode: aj.VendorParentCode,
			BaselineID:       aj.BaselineID,
		}
		for _, s := range aj.ScheduledDates {
			d, err := calendar.ParseDate(calendar.LayoutISO, s)
			if err != nil {
				return entitlement.Record{}, fmt.Errorf("record %s asset %s: %w", rj.ID, aj.AssetID, err)
			}
			a.ScheduledDates = append(a.ScheduledDates, d)
		}
		r.Assets = append(r.Assets, a)
	}
	return r, nil
}

// LocationFromJSON validates the offset eagerly so a bad location is caught
// at load time rather than as an error fallback later.
func (f *Factory) LocationFromJSON(lj LocationJSON) (sla.Location, error) {
	if strings.TrimSpace(lj.ID) == "" {
		return sla.Location{}, fmt.Errorf("location id is required")
	}
	if _, err := calendar.Zone(lj.UTCOffsetHours); err != nil {
		return sla.Location{}, fmt.Errorf("location %s: %w", lj.ID, err)
	}
	return sla.Location{ID: lj.ID, UTCOffsetHours: lj.UTCOffsetHours, TimezoneID: lj.TimezoneID}, nil
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseWeekday(s string) (time.Weekday, error) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", s)
	}
	return wd, nil
}

func parseStatus(s string) entitlement.Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approved":
		return entitlement.StatusApproved
	case "expired":
		return entitlement.StatusExpired
	default:
		return entitlement.StatusDraft
	}
}

func parseOptionalDate(s string) (calendar.Date, error) {
	if strings.TrimSpace(s) == "" {
		return calendar.Date{}, nil
	}
	return calendar.ParseDate(calendar.LayoutISO, s)
}

func parseCallWindow(cj CallWindowJSON) (*entitlement.CallWindow, error) {
	w := &entitlement.CallWindow{}
	switch strings.ToLower(strings.TrimSpace(cj.Qualifier)) {
	case "":
	case "before":
		w.Qualifier = entitlement.QualifierBefore
	case "after":
		w.Qualifier = entitlement.QualifierAfter
	default:
		return nil, fmt.Errorf("unknown qualifier %q", cj.Qualifier)
	}
	if w.Qualifier != "" {
		c, err := calendar.ParseClock(cj.Time)
		if err != nil {
			return nil, err
		}
		w.Time = c
	}
	for _, d := range cj.Days {
		wd, err := parseWeekday(d)
		if err != nil {
			return nil, err
		}
		w.Days = append(w.Days, wd)
	}
	return w, nil
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultFieldMappingsJSON compares account and location (customer),
// material, equipment, schedule and service type (service), and the case
// classification (transaction).
const DefaultFieldMappingsJSON = `[
  {"label": "Account",        "band": "01", "case_field": "account_id",     "quote_field": "account_id",     "entitlement_field": "account_id"},
  {"label": "Location",       "band": "02", "case_field": "location_id",    "quote_field": "site_id",        "entitlement_field": "location_id"},
  {"label": "Material",       "band": "11", "case_field": "material",       "quote_field": "material",       "entitlement_field": "material"},
  {"label": "Equipment Size", "band": "12", "case_field": "equipment_size", "quote_field": "equipment_size", "entitlement_field": "equipment_size"},
  {"label": "Schedule",       "band": "21", "case_field": "schedule",       "quote_field": "schedule",       "entitlement_field": "schedule"},
  {"label": "Service Type",   "band": "22", "case_field": "service_type",   "quote_field": "service_type",   "entitlement_field": "service_type"},
  {"label": "Case Type",      "band": "31", "case_field": "case_type",      "quote_field": "quote_type",     "entitlement_field": "case_type"},
  {"label": "Case Sub-Type",  "band": "32", "case_field": "case_sub_type",  "quote_field": "quote_sub_type", "entitlement_field": "case_sub_type"},
  {"label": "Case Reason",    "band": "41", "case_field": "case_reason",    "quote_field": "quote_reason",   "entitlement_field": "case_reason"}
]`

// DefaultBusinessHoursJSON is Monday-Friday, 08:00-17:00.
const DefaultBusinessHoursJSON = `{
  "id": "default",
  "name": "Default Business Hours",
  "days": {
    "monday":    {"start": "08:00", "end": "17:00"},
    "tuesday":   {"start": "08:00", "end": "17:00"},
    "wednesday": {"start": "08:00", "end": "17:00"},
    "thursday":  {"start": "08:00", "end": "17:00"},
    "friday":    {"start": "08:00", "end": "17:00"}
  }
}`

// DefaultFieldMappings returns the parsed default mapping set.
func DefaultFieldMappings() []entitlement.FieldMapping {
	m, err := NewFactory().ParseFieldMappings(DefaultFieldMappingsJSON)
	if err != nil {
		panic(fmt.Sprintf("default field mappings are invalid: %v", err))
	}
	return m
}

// DefaultBusinessHours returns the parsed default calendar.
func DefaultBusinessHours() *calendar.BusinessHours {
	bh, err := NewFactory().ParseBusinessHours(DefaultBusinessHoursJSON)
	if err != nil {
		panic(fmt.Sprintf("default business hours are invalid: %v", err))
	}
	return bh
}

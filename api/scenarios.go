/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	records, entitlements, locations and calendars. Each scenario
	demonstrates one part of resolution or service-date calculation.

AVAILABLE SCENARIOS:

	gold-standard:    Customer gold entitlement vs industry standard, cutoff
	rolloff-capacity: Vendor-managed roll-off assets, capacity planner path
	quote-priority:   Quotes with competing customer/service entitlements
	holiday-calendar: Holidays, business-hours override, call windows

HOW SCENARIOS WORK:
 1. Reset store (clear all data)
 2. Save default field mappings and the scenario calendar
 3. Save locations, entitlements and records
 4. Every timestamp is relative to the handler clock, so a scenario
    always produces live commitments

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "gold-standard"}

	then POST /api/service-dates/batch with the scenario's record_ids

ADDING NEW SCENARIOS:
 1. Add an entry to 'scenarios' with ID, name, description and builder
 2. Return the seed data from the builder as factory JSON types

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Calculation endpoints
  - factory/factory.go: JSON seed types
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/entitlement-engine/calendar"
	"github.com/warp/entitlement-engine/factory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// seedData is everything a scenario writes. A nil BusinessHours means the
// default calendar.
type seedData struct {
	BusinessHours *calendar.BusinessHours
	Locations     []factory.LocationJSON
	Entitlements  []factory.EntitlementJSON
	Records       []factory.RecordJSON
}

type scenario struct {
	ID          string
	Name        string
	Description string
	build       func(now time.Time) seedData
}

var scenarios = []scenario{
	{
		ID:          "gold-standard",
		Name:        "Gold Standard",
		Description: "Next-day gold entitlement for one account; everyone else gets the industry standard",
		build:       goldStandardScenario,
	},
	{
		ID:          "rolloff-capacity",
		Name:        "Roll-off Capacity",
		Description: "Self-service roll-off assets on vendor-managed equipment; two records share a baseline",
		build:       rolloffCapacityScenario,
	},
	{
		ID:          "quote-priority",
		Name:        "Quote Priority",
		Description: "Quotes matched against account, site and service specific entitlements",
		build:       quotePriorityScenario,
	},
	{
		ID:          "holiday-calendar",
		Name:        "Holiday Calendar",
		Description: "Company holidays over the next two days, a 24x7 override and an early call window",
		build:       holidayCalendarScenario,
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

func (s scenario) dto(now time.Time) ScenarioDTO {
	data := s.build(now)
	ids := make([]string, 0, len(data.Records))
	for _, r := range data.Records {
		ids = append(ids, r.ID)
	}
	return ScenarioDTO{ID: s.ID, Name: s.Name, Description: s.Description, RecordIDs: ids}
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns all available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	dtos := make([]ScenarioDTO, 0, len(scenarios))
	for _, s := range scenarios {
		dtos = append(dtos, s.dto(now))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	s, ok := findScenario(current)
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, s.dto(h.now()))
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.currentScenario = ""
	if err := h.loadScenario(r.Context(), s); err != nil {
		h.writeEngineError(w, r, "Failed to load scenario", err)
		return
	}
	h.currentScenario = s.ID
	h.logger.Info("scenario loaded", "scenario_id", s.ID)

	writeJSON(w, http.StatusOK, s.dto(h.now()))
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// loadScenario is called with h.mu held.
func (h *Handler) loadScenario(ctx context.Context, s scenario) error {
	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	data := s.build(h.now())

	if err := h.Store.SaveFieldMappings(ctx, factory.DefaultFieldMappings()); err != nil {
		return fmt.Errorf("save field mappings: %w", err)
	}
	hours := data.BusinessHours
	if hours == nil {
		hours = factory.DefaultBusinessHours()
	}
	if err := h.Store.SaveBusinessHours(ctx, hours); err != nil {
		return fmt.Errorf("save business hours: %w", err)
	}

	for _, lj := range data.Locations {
		loc, err := h.Factory.LocationFromJSON(lj)
		if err != nil {
			return fmt.Errorf("location %s: %w", lj.ID, err)
		}
		if err := h.Store.SaveLocation(ctx, loc); err != nil {
			return fmt.Errorf("save location %s: %w", lj.ID, err)
		}
	}
	for _, ej := range data.Entitlements {
		ent, err := h.Factory.EntitlementFromJSON(ej)
		if err != nil {
			return fmt.Errorf("entitlement %s: %w", ej.ID, err)
		}
		if err := h.Store.SaveEntitlement(ctx, ent); err != nil {
			return fmt.Errorf("save entitlement %s: %w", ej.ID, err)
		}
	}
	for _, rj := range data.Records {
		rec, err := h.Factory.RecordFromJSON(rj)
		if err != nil {
			return fmt.Errorf("record %s: %w", rj.ID, err)
		}
		if err := h.Store.SaveRecord(ctx, rec); err != nil {
			return fmt.Errorf("save record %s: %w", rj.ID, err)
		}
	}
	return nil
}

// =============================================================================
// SCENARIO DATA
// =============================================================================

var demoLocations = []factory.LocationJSON{
	{ID: "LOC-NYC", UTCOffsetHours: -5, TimezoneID: "America/New_York"},
	{ID: "LOC-LAX", UTCOffsetHours: -8, TimezoneID: "America/Los_Angeles"},
	{ID: "LOC-BOM", UTCOffsetHours: 5.5, TimezoneID: "Asia/Kolkata"},
}

func intPtr(v int) *int { return &v }

func guarantee(category string, value int64) factory.GuaranteeJSON {
	return factory.GuaranteeJSON{Category: category, Value: decimal.NewFromInt(value)}
}

func createdAt(now time.Time, ago time.Duration) string {
	return now.Add(-ago).UTC().Format(time.RFC3339)
}

// industryStandard is the catch-all every scenario carries.
func industryStandard(now time.Time) factory.EntitlementJSON {
	return factory.EntitlementJSON{
		ID:         "ENT-IND-STD",
		Name:       "Industry Standard (3 days)",
		Status:     "Approved",
		Start:      calendar.DateOf(now.UTC()).AddDays(-365).String(),
		Guarantee:  guarantee("Days", 3),
		CutoffHour: intPtr(14),
	}
}

func goldStandardScenario(now time.Time) seedData {
	start := calendar.DateOf(now.UTC()).AddDays(-90).String()
	return seedData{
		Locations: demoLocations,
		Entitlements: []factory.EntitlementJSON{
			industryStandard(now),
			{
				ID:           "ENT-ACME-GOLD",
				Name:         "Acme Gold Next Day",
				AccountID:    "ACC-ACME",
				Status:       "Approved",
				Start:        start,
				Guarantee:    guarantee("Days", 1),
				CutoffHour:   intPtr(12),
				GoldStandard: true,
			},
			{
				ID:        "ENT-ACME-EXPIRED",
				Name:      "Acme Legacy Same Day",
				AccountID: "ACC-ACME",
				Status:    "Approved",
				Start:     calendar.DateOf(now.UTC()).AddDays(-400).String(),
				End:       calendar.DateOf(now.UTC()).AddDays(-30).String(),
				Guarantee: guarantee("Days", 0),
			},
		},
		Records: []factory.RecordJSON{
			{
				ID: "500GOLD0001", AccountID: "ACC-ACME", LocationID: "LOC-NYC",
				ProductFamily: "Commercial", Material: "MSW", EquipmentSize: "8YD",
				CreatedDate: createdAt(now, 2*time.Hour),
			},
			{
				ID: "500GOLD0002", AccountID: "ACC-GLOBEX", LocationID: "LOC-LAX",
				ProductFamily: "Commercial", Material: "MSW",
				CreatedDate: createdAt(now, 30*time.Minute),
			},
		},
	}
}

func rolloffCapacityScenario(now time.Time) seedData {
	booked := calendar.DateOf(now.UTC()).AddDays(2).String()
	asset := func(id, baseline string, scheduled ...string) factory.ChildAssetJSON {
		return factory.ChildAssetJSON{
			AssetID: id, SelfService: true, Quantity: 1,
			VendorParentCode: "WM", BaselineID: baseline,
			ScheduledDates: scheduled,
		}
	}
	return seedData{
		Locations: demoLocations,
		Entitlements: []factory.EntitlementJSON{
			industryStandard(now),
			{
				ID:        "ENT-INITECH-ROLLOFF",
				Name:      "Initech Roll-off 2 Days",
				AccountID: "ACC-INITECH",
				Status:    "Approved",
				Start:     calendar.DateOf(now.UTC()).AddDays(-30).String(),
				Guarantee: guarantee("Days", 2),
			},
		},
		Records: []factory.RecordJSON{
			{
				ID: "500ROLL0001", AccountID: "ACC-INITECH", LocationID: "LOC-NYC",
				ProductFamily: "Rolloff", VendorParentID: "WM", AssetID: "PA-1",
				Assets:      []factory.ChildAssetJSON{asset("CA-1", "BL-100", booked)},
				CreatedDate: createdAt(now, time.Hour),
			},
			{
				ID: "500ROLL0002", AccountID: "ACC-INITECH", LocationID: "LOC-NYC",
				ProductFamily: "Rolloff", VendorParentID: "WM", AssetID: "PA-1",
				Assets:      []factory.ChildAssetJSON{asset("CA-2", "BL-100")},
				CreatedDate: createdAt(now, 45*time.Minute),
			},
			{
				ID: "500ROLL0003", AccountID: "ACC-INITECH", LocationID: "LOC-BOM",
				ProductFamily: "Rolloff", VendorParentID: "WM", AssetID: "PA-2",
				Assets:      []factory.ChildAssetJSON{asset("CA-3", "BL-200")},
				CreatedDate: createdAt(now, 10*time.Minute),
			},
		},
	}
}

func quotePriorityScenario(now time.Time) seedData {
	start := calendar.DateOf(now.UTC()).AddDays(-60).String()
	return seedData{
		Locations: demoLocations,
		Entitlements: []factory.EntitlementJSON{
			industryStandard(now),
			{
				ID: "ENT-UMBRELLA-ACCOUNT", Name: "Umbrella Account Default",
				AccountID: "ACC-UMBRELLA", Status: "Approved", Start: start,
				Guarantee: guarantee("Days", 2),
			},
			{
				ID: "ENT-UMBRELLA-SITE", Name: "Umbrella NYC Site",
				AccountID: "ACC-UMBRELLA", LocationID: "LOC-NYC", Status: "Approved", Start: start,
				Guarantee: guarantee("Hours", 36),
			},
			{
				ID: "ENT-UMBRELLA-RECYCLING", Name: "Umbrella NYC Recycling 20YD",
				AccountID: "ACC-UMBRELLA", LocationID: "LOC-NYC", Status: "Approved", Start: start,
				Material: "RECYCLING", EquipmentSize: "20YD",
				Guarantee: guarantee("Days", 1), Contractual: true,
			},
			{
				ID: "ENT-UMBRELLA-DRAFT", Name: "Umbrella Draft Offer",
				AccountID: "ACC-UMBRELLA", LocationID: "LOC-NYC", Status: "Draft", Start: start,
				Material: "RECYCLING", EquipmentSize: "20YD", CaseType: "New Service",
				Guarantee: guarantee("Days", 0),
			},
		},
		Records: []factory.RecordJSON{
			{
				ID: "0Q0PRIO0001", AccountID: "ACC-UMBRELLA", LocationID: "LOC-NYC",
				Material: "RECYCLING", EquipmentSize: "20YD", CaseType: "New Service",
				ProductFamily: "Commercial", CreatedDate: createdAt(now, 3*time.Hour),
			},
			{
				ID: "0Q0PRIO0002", AccountID: "ACC-UMBRELLA", LocationID: "LOC-NYC",
				Material: "MSW", ProductFamily: "Commercial",
				CreatedDate: createdAt(now, 2*time.Hour),
			},
			{
				ID: "0Q0PRIO0003", AccountID: "ACC-UMBRELLA", LocationID: "LOC-LAX",
				ProductFamily: "Commercial", CreatedDate: createdAt(now, time.Hour),
			},
		},
	}
}

func holidayCalendarScenario(now time.Time) seedData {
	today := calendar.DateOf(now.UTC())
	hours := factory.DefaultBusinessHours()
	hours.Holidays = []calendar.Holiday{
		{Date: today.AddDays(1), Name: "Company Day"},
		{Date: today.AddDays(2), Name: "Company Day (observed)"},
	}
	start := today.AddDays(-30).String()

	return seedData{
		BusinessHours: hours,
		Locations:     demoLocations,
		Entitlements: []factory.EntitlementJSON{
			industryStandard(now),
			{
				ID: "ENT-HOOLI-247", Name: "Hooli 24x7 Next Day",
				AccountID: "ACC-HOOLI", Status: "Approved", Start: start,
				Material: "MEDICAL", Guarantee: guarantee("Days", 1),
				OverrideBusinessHours: true,
			},
			{
				ID: "ENT-HOOLI-EARLY", Name: "Hooli Early Calls",
				AccountID: "ACC-HOOLI", Status: "Approved", Start: start,
				Material: "MSW", Guarantee: guarantee("Days", 1),
				CallWindow: &factory.CallWindowJSON{Qualifier: "Before", Time: "14:30"},
			},
		},
		Records: []factory.RecordJSON{
			{
				ID: "500HOLI0001", AccountID: "ACC-HOOLI", LocationID: "LOC-LAX",
				Material: "MEDICAL", ProductFamily: "Commercial",
				CreatedDate: createdAt(now, time.Hour),
			},
			{
				ID: "500HOLI0002", AccountID: "ACC-HOOLI", LocationID: "LOC-LAX",
				Material: "MSW", ProductFamily: "Commercial",
				CreatedDate: createdAt(now, time.Hour),
			},
			{
				ID: "500HOLI0003", AccountID: "ACC-HOOLI",
				ProductFamily: "Commercial", CreatedDate: createdAt(now, 15*time.Minute),
			},
		},
	}
}

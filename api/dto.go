/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Entitlements:
    EntitlementDTO, ScoredEntitlementDTO, ResolveRequest, ResolveResponse,
    OptionsResponse

  Service dates:
    CalculateRequest, ServiceDateDTO, BatchResponse,
    StalenessRequest, StalenessResponse

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

DATES:
  Calendar dates are YYYY-MM-DD. SLA timestamps are RFC 3339 in UTC.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/factory.go: RecordJSON, used by the staleness check
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/entitlement-engine/calendar"
	"github.com/warp/entitlement-engine/entitlement"
	"github.com/warp/entitlement-engine/factory"
	"github.com/warp/entitlement-engine/sla"
)

// =============================================================================
// ENTITLEMENTS
// =============================================================================

// ResolveRequest lists the records to resolve. Duplicates are ignored.
type ResolveRequest struct {
	RecordIDs []string `json:"record_ids"`
}

// GuaranteeDTO is a service guarantee.
type GuaranteeDTO struct {
	Category string          `json:"category"`
	Value    decimal.Decimal `json:"value"`
}

// EntitlementDTO represents an entitlement in API responses.
type EntitlementDTO struct {
	ID                    string       `json:"id"`
	Name                  string       `json:"name"`
	Kind                  string       `json:"kind"`
	AccountID             string       `json:"account_id,omitempty"`
	Status                string       `json:"status"`
	Start                 string       `json:"start,omitempty"`
	End                   string       `json:"end,omitempty"`
	Guarantee             GuaranteeDTO `json:"guarantee"`
	CutoffHour            *int         `json:"cutoff_hour,omitempty"`
	OverrideBusinessHours bool         `json:"override_business_hours"`
	GoldStandard          bool         `json:"gold_standard"`
	Contractual           bool         `json:"contractual"`
}

// ResolveResponse maps record id to its best entitlement. Records with no
// applicable entitlement are listed in Unmatched.
type ResolveResponse struct {
	Entitlements map[string]EntitlementDTO `json:"entitlements"`
	Unmatched    []string                  `json:"unmatched"`
}

// OptionsResponse maps record id to every valid option, grouped by kind.
type OptionsResponse struct {
	Options map[string]map[string][]EntitlementDTO `json:"options"`
}

// ScoreDTO is the match score behind a ranking.
type ScoreDTO struct {
	Rank        int `json:"rank"`
	Customer    int `json:"customer"`
	Service     int `json:"service"`
	Transaction int `json:"transaction"`
}

type ScoredEntitlementDTO struct {
	Entitlement EntitlementDTO `json:"entitlement"`
	Score       ScoreDTO       `json:"score"`
}

// =============================================================================
// SERVICE DATES
// =============================================================================

// Fallback policies for CalculateRequest.Fallback.
const (
	FallbackNone     = ""
	FallbackIndustry = "industry"
)

// CalculateRequest asks for one record's commitment. EntitlementID pins a
// specific valid option; otherwise the best one is resolved. Fallback
// "industry" uses the first industry-standard option when nothing else
// applies.
type CalculateRequest struct {
	RecordID      string `json:"record_id"`
	EntitlementID string `json:"entitlement_id,omitempty"`
	Fallback      string `json:"fallback,omitempty"`
}

// ServiceDateDTO is a computed commitment.
type ServiceDateDTO struct {
	RecordID       string   `json:"record_id"`
	EntitlementID  string   `json:"entitlement_id"`
	ServiceDate    string   `json:"service_date"`
	SLA            string   `json:"sla"`
	Method         string   `json:"method"`
	AvailableDates []string `json:"available_dates,omitempty"`
	ErrorMessage   string   `json:"error_message,omitempty"`
}

// BatchResponse maps record id to its commitment. Records that were not
// found or had no entitlement are listed in Unscheduled.
type BatchResponse struct {
	Results     map[string]ServiceDateDTO `json:"results"`
	Unscheduled []string                  `json:"unscheduled"`
}

// StalenessRequest compares two versions of a record.
type StalenessRequest struct {
	Old factory.RecordJSON `json:"old"`
	New factory.RecordJSON `json:"new"`
}

type StalenessResponse struct {
	RequiresRecalculation bool `json:"requires_recalculation"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	RecordIDs   []string `json:"record_ids"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toEntitlementDTO(e *entitlement.Entitlement) EntitlementDTO {
	dto := EntitlementDTO{
		ID:        string(e.ID),
		Name:      e.Name,
		Kind:      string(e.Kind()),
		AccountID: e.AccountID,
		Status:    string(e.Status),
		Guarantee: GuaranteeDTO{
			Category: string(e.Guarantee.Category),
			Value:    e.Guarantee.Value,
		},
		OverrideBusinessHours: e.OverrideBusinessHours,
		GoldStandard:          e.GoldStandard,
		Contractual:           e.Contractual,
	}
	if !e.Start.IsZero() {
		dto.Start = e.Start.String()
	}
	if !e.End.IsZero() {
		dto.End = e.End.String()
	}
	if e.CutoffHour != nil {
		hour := *e.CutoffHour
		dto.CutoffHour = &hour
	}
	return dto
}

func toEntitlementDTOs(ents []entitlement.Entitlement) []EntitlementDTO {
	dtos := make([]EntitlementDTO, 0, len(ents))
	for i := range ents {
		dtos = append(dtos, toEntitlementDTO(&ents[i]))
	}
	return dtos
}

func toServiceDateDTO(res sla.Result) ServiceDateDTO {
	dto := ServiceDateDTO{
		RecordID:      string(res.RecordID),
		EntitlementID: string(res.EntitlementID),
		ServiceDate:   res.ServiceDate.String(),
		SLA:           res.SLA.UTC().Format(time.RFC3339),
		Method:        string(res.Method),
		ErrorMessage:  res.ErrorMessage,
	}
	if len(res.AvailableDates) > 0 {
		dto.AvailableDates = formatDates(res.AvailableDates)
	}
	return dto
}

func toScoreDTO(s entitlement.MatchScore) ScoreDTO {
	return ScoreDTO{Rank: s.Rank, Customer: s.Customer, Service: s.Service, Transaction: s.Transaction}
}

func toRecordIDs(ids []string) []entitlement.RecordID {
	out := make([]entitlement.RecordID, 0, len(ids))
	for _, id := range ids {
		out = append(out, entitlement.RecordID(id))
	}
	return out
}

func formatDates(dates []calendar.Date) []string {
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.String())
	}
	return out
}

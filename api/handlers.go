/*
handlers.go - HTTP API handlers for the entitlement engine

PURPOSE:
  Exposes entitlement resolution and service-date calculation via a JSON
  API. Handles HTTP request/response, JSON serialization, and delegates to
  the entitlement resolver and the SLA scheduler.

ENDPOINTS:
  Entitlements:
    POST   /api/entitlements/resolve             Best entitlement per record
    POST   /api/entitlements/options             Every valid option per record
    GET    /api/entitlements/{recordID}/scores   Ranked candidates (diagnostics)

  Service dates:
    POST   /api/service-dates/calculate          One record's commitment
    POST   /api/service-dates/batch              Many records, one capacity
                                                 call per baseline
    POST   /api/service-dates/staleness          Does an edit require
                                                 recalculation?

  Scenarios:
    GET    /api/scenarios                        List demo scenarios
    GET    /api/scenarios/current                Currently loaded scenario
    POST   /api/scenarios/load                   Load a demo scenario
    POST   /api/scenarios/reset                  Clear all data

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Records, entitlements, locations and the business calendar
  - Resolver: Built once over Store
  - Scheduler settings: A scheduler is built per request from the stored
    calendar, so a newly loaded scenario takes effect immediately

FALLBACK POLICY:
  The scheduler refuses records with no entitlement. With
  "fallback": "industry" the calculate endpoint instead uses the first
  approved, unexpired industry-standard entitlement (ignoring call windows)
  and reports the method as IndustryFallback.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input
  - 404: Record not found
  - 422: No entitlement applies
  - 500: Configuration and internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/warp/entitlement-engine/calendar"
	"github.com/warp/entitlement-engine/entitlement"
	"github.com/warp/entitlement-engine/factory"
	"github.com/warp/entitlement-engine/metrics"
	"github.com/warp/entitlement-engine/sla"
)

// maxBatchSize bounds the number of record ids per request.
const maxBatchSize = 1000

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Seeder is the write side of the store, used only by scenarios.
type Seeder interface {
	Reset(ctx context.Context) error
	SaveRecord(ctx context.Context, rec entitlement.Record) error
	SaveEntitlement(ctx context.Context, ent entitlement.Entitlement) error
	SaveFieldMappings(ctx context.Context, mappings []entitlement.FieldMapping) error
	SaveLocation(ctx context.Context, loc sla.Location) error
	SaveBusinessHours(ctx context.Context, hours *calendar.BusinessHours) error
}

// Store is everything the handlers read and seed. store/sqlite and
// store/memory implement it.
type Store interface {
	entitlement.Source
	sla.LocationSource
	sla.CalendarSource
	Seeder
}

// Config holds the handler's optional collaborators.
type Config struct {
	// Scheduler is the template for per-request schedulers. Its Calendar
	// is ignored; the stored calendar is used instead.
	Scheduler sla.Config
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    Store
	Factory  *factory.Factory
	Resolver *entitlement.Resolver

	scheduler sla.Config
	logger    *slog.Logger
	now       func() time.Time

	// Track currently loaded scenario
	mu              sync.RWMutex
	currentScenario string
}

// NewHandler creates a new handler over store.
func NewHandler(store Store, cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	schedCfg := cfg.Scheduler
	schedCfg.Now = now
	schedCfg.Logger = logger.With("component", "sla")
	schedCfg.Metrics = cfg.Metrics

	return &Handler{
		Store:   store,
		Factory: factory.NewFactory(),
		Resolver: entitlement.NewResolver(store,
			entitlement.WithClock(now),
			entitlement.WithLogger(logger.With("component", "entitlement")),
			entitlement.WithMetrics(cfg.Metrics),
		),
		scheduler: schedCfg,
		logger:    logger,
		now:       now,
	}
}

// newScheduler builds a scheduler over the stored calendar.
func (h *Handler) newScheduler(ctx context.Context) (*sla.Scheduler, error) {
	hours, err := h.Store.LoadBusinessHours(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load business hours: %w", sla.ErrConfiguration, err)
	}
	cfg := h.scheduler
	cfg.Calendar = hours
	return sla.New(cfg)
}

// =============================================================================
// ENTITLEMENT HANDLERS
// =============================================================================

// ResolveEntitlements returns the best entitlement for each record.
// POST /api/entitlements/resolve
func (h *Handler) ResolveEntitlements(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validateRecordIDs(req.RecordIDs); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid record_ids", err)
		return
	}

	best, err := h.Resolver.ResolvePrioritized(r.Context(), toRecordIDs(req.RecordIDs))
	if err != nil {
		h.writeEngineError(w, r, "Failed to resolve entitlements", err)
		return
	}

	resp := ResolveResponse{
		Entitlements: make(map[string]EntitlementDTO, len(best)),
		Unmatched:    []string{},
	}
	for _, id := range uniqueIDs(req.RecordIDs) {
		if ent, ok := best[entitlement.RecordID(id)]; ok {
			resp.Entitlements[id] = toEntitlementDTO(ent)
			continue
		}
		resp.Unmatched = append(resp.Unmatched, id)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListOptions returns every valid entitlement for each record, grouped by
// kind. Unknown records are omitted.
// POST /api/entitlements/options
func (h *Handler) ListOptions(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validateRecordIDs(req.RecordIDs); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid record_ids", err)
		return
	}

	all, err := h.Resolver.ResolveAll(r.Context(), toRecordIDs(req.RecordIDs))
	if err != nil {
		h.writeEngineError(w, r, "Failed to list entitlement options", err)
		return
	}

	resp := OptionsResponse{Options: make(map[string]map[string][]EntitlementDTO, len(all))}
	for id, groups := range all {
		byKind := map[string][]EntitlementDTO{
			string(entitlement.KindIndustryStandard): toEntitlementDTOs(groups[entitlement.KindIndustryStandard]),
			string(entitlement.KindCustomerSpecific): toEntitlementDTOs(groups[entitlement.KindCustomerSpecific]),
		}
		resp.Options[string(id)] = byKind
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetScores returns the eligible candidates of one record ranked best first.
// GET /api/entitlements/{recordID}/scores
func (h *Handler) GetScores(w http.ResponseWriter, r *http.Request) {
	id := entitlement.RecordID(chi.URLParam(r, "recordID"))

	scored, err := h.Resolver.ScoreAll(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, r, "Failed to score entitlements", err)
		return
	}

	dtos := make([]ScoredEntitlementDTO, 0, len(scored))
	for i := range scored {
		dtos = append(dtos, ScoredEntitlementDTO{
			Entitlement: toEntitlementDTO(&scored[i].Entitlement),
			Score:       toScoreDTO(scored[i].Score),
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// SERVICE DATE HANDLERS
// =============================================================================

// CalculateServiceDate computes the commitment for one record.
// POST /api/service-dates/calculate
func (h *Handler) CalculateServiceDate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.RecordID = strings.TrimSpace(req.RecordID)
	if req.RecordID == "" {
		writeError(w, http.StatusBadRequest, "record_id is required", nil)
		return
	}
	if req.Fallback != FallbackNone && req.Fallback != FallbackIndustry {
		writeError(w, http.StatusBadRequest, "Invalid fallback", fmt.Errorf("unknown fallback %q", req.Fallback))
		return
	}

	ctx := r.Context()
	id := entitlement.RecordID(req.RecordID)

	recs, err := h.Store.LoadRecords(ctx, []entitlement.RecordID{id})
	if err != nil {
		h.writeEngineError(w, r, "Failed to load record", err)
		return
	}
	if len(recs) == 0 {
		h.writeEngineError(w, r, "Record not found", fmt.Errorf("%w: %s", entitlement.ErrRecordNotFound, id))
		return
	}
	rec := &recs[0]

	ent, usedFallback, err := h.chooseEntitlement(ctx, rec, req)
	if err != nil {
		h.writeEngineError(w, r, "No entitlement applies", err)
		return
	}

	loc, err := h.location(ctx, rec)
	if err != nil {
		h.writeEngineError(w, r, "Failed to load location", err)
		return
	}

	sched, err := h.newScheduler(ctx)
	if err != nil {
		h.writeEngineError(w, r, "Scheduler unavailable", err)
		return
	}

	res, err := sched.Calculate(ctx, rec, ent, loc)
	if err != nil {
		h.writeEngineError(w, r, "Failed to calculate service date", err)
		return
	}
	if usedFallback && res.Method != sla.MethodErrorFallback {
		res.Method = sla.MethodIndustryFallback
	}
	writeJSON(w, http.StatusOK, toServiceDateDTO(res))
}

// chooseEntitlement applies the request's selection policy. The bool is
// true when the industry fallback supplied the entitlement.
func (h *Handler) chooseEntitlement(ctx context.Context, rec *entitlement.Record, req CalculateRequest) (*entitlement.Entitlement, bool, error) {
	if req.EntitlementID != "" {
		all, err := h.Resolver.ResolveAll(ctx, []entitlement.RecordID{rec.ID})
		if err != nil {
			return nil, false, err
		}
		for _, group := range all[rec.ID] {
			for i := range group {
				if string(group[i].ID) == req.EntitlementID {
					return &group[i], false, nil
				}
			}
		}
		return nil, false, fmt.Errorf("%w: entitlement %s does not apply to %s", sla.ErrNoEntitlement, req.EntitlementID, rec.ID)
	}

	best, err := h.Resolver.ResolvePrioritized(ctx, []entitlement.RecordID{rec.ID})
	if err != nil {
		return nil, false, err
	}
	if ent := best[rec.ID]; ent != nil {
		return ent, false, nil
	}
	if req.Fallback != FallbackIndustry {
		return nil, false, fmt.Errorf("%w: %s", sla.ErrNoEntitlement, rec.ID)
	}

	ent, err := h.industryFallback(ctx)
	if err != nil {
		return nil, false, err
	}
	h.logger.Info("using industry fallback", "record_id", rec.ID, "entitlement_id", ent.ID)
	return ent, true, nil
}

// industryFallback returns the first approved, unexpired industry-standard
// entitlement in source order.
func (h *Handler) industryFallback(ctx context.Context) (*entitlement.Entitlement, error) {
	today := calendar.DateOf(h.now().UTC())
	cands, err := h.Store.LoadEntitlements(ctx, entitlement.Criteria{AsOf: today})
	if err != nil {
		return nil, fmt.Errorf("load industry entitlements: %w", err)
	}
	for i := range cands {
		e := &cands[i]
		if e.Kind() != entitlement.KindIndustryStandard || e.Status != entitlement.StatusApproved {
			continue
		}
		if !e.Start.IsZero() && e.Start.After(today) {
			continue
		}
		if !e.End.IsZero() && e.End.Before(today) {
			continue
		}
		return e, nil
	}
	return nil, fmt.Errorf("%w: no industry-standard entitlement available", sla.ErrNoEntitlement)
}

// CalculateBatch computes commitments for many records.
// POST /api/service-dates/batch
func (h *Handler) CalculateBatch(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validateRecordIDs(req.RecordIDs); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid record_ids", err)
		return
	}

	ctx := r.Context()
	ids := toRecordIDs(uniqueIDs(req.RecordIDs))

	recs, err := h.Store.LoadRecords(ctx, ids)
	if err != nil {
		h.writeEngineError(w, r, "Failed to load records", err)
		return
	}
	best, err := h.Resolver.ResolvePrioritized(ctx, ids)
	if err != nil {
		h.writeEngineError(w, r, "Failed to resolve entitlements", err)
		return
	}
	locations, err := h.locations(ctx, recs)
	if err != nil {
		h.writeEngineError(w, r, "Failed to load locations", err)
		return
	}
	sched, err := h.newScheduler(ctx)
	if err != nil {
		h.writeEngineError(w, r, "Scheduler unavailable", err)
		return
	}

	results := sched.CalculateBatch(ctx, recs, best, locations)

	resp := BatchResponse{
		Results:     make(map[string]ServiceDateDTO, len(results)),
		Unscheduled: []string{},
	}
	for _, id := range ids {
		if res, ok := results[id]; ok {
			resp.Results[string(id)] = toServiceDateDTO(res)
			continue
		}
		resp.Unscheduled = append(resp.Unscheduled, string(id))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CheckStaleness reports whether an edit to a record invalidates its
// computed service date.
// POST /api/service-dates/staleness
func (h *Handler) CheckStaleness(w http.ResponseWriter, r *http.Request) {
	var req StalenessRequest
	if !decodeBody(w, r, &req) {
		return
	}
	prev, err := h.Factory.RecordFromJSON(req.Old)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid old record", err)
		return
	}
	next, err := h.Factory.RecordFromJSON(req.New)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid new record", err)
		return
	}
	writeJSON(w, http.StatusOK, StalenessResponse{
		RequiresRecalculation: sla.RequiresRecalculation(&prev, &next),
	})
}

// =============================================================================
// LOCATIONS
// =============================================================================

// location loads the time context of rec. An unknown location means UTC.
func (h *Handler) location(ctx context.Context, rec *entitlement.Record) (sla.Location, error) {
	if rec.LocationID == "" {
		return sla.Location{}, nil
	}
	loc, err := h.Store.LoadLocation(ctx, rec.LocationID)
	if errors.Is(err, sla.ErrLocationNotFound) {
		h.logger.Warn("location not found, using UTC", "record_id", rec.ID, "location_id", rec.LocationID)
		return sla.Location{}, nil
	}
	return loc, err
}

// locations loads each distinct location once.
func (h *Handler) locations(ctx context.Context, recs []entitlement.Record) (map[entitlement.RecordID]sla.Location, error) {
	byLocation := make(map[string]sla.Location)
	out := make(map[entitlement.RecordID]sla.Location, len(recs))
	for i := range recs {
		rec := &recs[i]
		loc, ok := byLocation[rec.LocationID]
		if !ok {
			var err error
			if loc, err = h.location(ctx, rec); err != nil {
				return nil, err
			}
			byLocation[rec.LocationID] = loc
		}
		out[rec.ID] = loc
	}
	return out, nil
}

// =============================================================================
// HEALTH
// =============================================================================

type pinger interface {
	Ping(ctx context.Context) error
}

// Health reports whether the store is reachable.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps engine errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case entitlement.IsConfiguration(err), errors.Is(err, sla.ErrConfiguration):
		return http.StatusInternalServerError
	case errors.Is(err, sla.ErrNoEntitlement):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entitlement.ErrRecordNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(message,
			"error", err,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
		)
	}
	writeError(w, status, message, err)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// validateRecordIDs accepts an empty list; the engine answers it with an
// empty result.
func validateRecordIDs(ids []string) error {
	if len(ids) > maxBatchSize {
		return fmt.Errorf("at most %d record ids per request, got %d", maxBatchSize, len(ids))
	}
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return errors.New("record ids must not be blank")
		}
	}
	return nil
}

// uniqueIDs returns ids without duplicates, in first-seen order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

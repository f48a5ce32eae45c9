package sla

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/warp/entitlement-engine/calendar"
	"github.com/warp/entitlement-engine/entitlement"
	"github.com/warp/entitlement-engine/metrics"
)

// =============================================================================
// SCHEDULER
// =============================================================================

const defaultMaxConcurrent = 4

// Config holds the scheduler's collaborators. Calendar is required; a nil
// Capacity disables the capacity path (those records always fall back).
type Config struct {
	Calendar      *calendar.BusinessHours
	Capacity      CapacityPlanner
	VendorCode    string
	BatchTimeout  time.Duration
	MaxConcurrent int
	Now           func() time.Time
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
}

// Scheduler computes service dates. It keeps only read-only configuration
// and is safe for concurrent use.
type Scheduler struct {
	calendar      *calendar.BusinessHours
	capacity      CapacityPlanner
	vendorCode    string
	batchTimeout  time.Duration
	maxConcurrent int
	now           func() time.Time
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

// New validates cfg. An unusable calendar is a configuration error.
func New(cfg Config) (*Scheduler, error) {
	if err := cfg.Calendar.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if cfg.BatchTimeout < 0 {
		return nil, fmt.Errorf("%w: negative batch timeout %s", ErrConfiguration, cfg.BatchTimeout)
	}

	s := &Scheduler{
		calendar:      cfg.Calendar,
		capacity:      cfg.Capacity,
		vendorCode:    cfg.VendorCode,
		batchTimeout:  cfg.BatchTimeout,
		maxConcurrent: cfg.MaxConcurrent,
		now:           cfg.Now,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
	}
	if s.vendorCode == "" {
		s.vendorCode = DefaultVendorCode
	}
	if s.maxConcurrent <= 0 {
		s.maxConcurrent = defaultMaxConcurrent
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s, nil
}

type strategy int

const (
	strategyEntitlement strategy = iota
	strategyCapacity
)

// job is one record's inputs inside a batch.
type job struct {
	rec      *entitlement.Record
	ent      *entitlement.Entitlement
	loc      Location
	baseline string // set only for capacity jobs with an eligible asset
	strategy strategy
}

// Calculate computes the commitment for one record. The only error is
// ErrNoEntitlement; every other failure is folded into the Result.
func (s *Scheduler) Calculate(ctx context.Context, rec *entitlement.Record, ent *entitlement.Entitlement, loc Location) (Result, error) {
	if ent == nil {
		return Result{}, ErrNoEntitlement
	}
	j := s.plan(rec, ent, loc)
	var lookups map[string]lookup
	if j.baseline != "" {
		lookups = s.lookupCapacity(ctx, []string{j.baseline})
	}
	return s.run(j, lookups), nil
}

// CalculateBatch computes commitments for many records without side
// effects. Records with no entitlement are absent from the result. Capacity
// calls are issued once per unique baseline id and bounded by the batch
// timeout.
func (s *Scheduler) CalculateBatch(
	ctx context.Context,
	records []entitlement.Record,
	entitlements map[entitlement.RecordID]*entitlement.Entitlement,
	locations map[entitlement.RecordID]Location,
) map[entitlement.RecordID]Result {
	batchID := uuid.NewString()
	logger := s.logger.With("batch_id", batchID)

	if s.batchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.batchTimeout)
		defer cancel()
	}

	jobs := make([]job, 0, len(records))
	var baselines []string
	for i := range records {
		rec := &records[i]
		ent := entitlements[rec.ID]
		if ent == nil {
			logger.Info("no entitlement, record left unscheduled", "record_id", rec.ID)
			continue
		}
		loc, ok := locations[rec.ID]
		if !ok {
			logger.Warn("no location context, using UTC", "record_id", rec.ID, "location_id", rec.LocationID)
		}
		j := s.plan(rec, ent, loc)
		if j.baseline != "" {
			baselines = append(baselines, j.baseline)
		}
		jobs = append(jobs, j)
	}

	unique := uniqueBaselines(baselines)
	lookups := s.lookupCapacity(ctx, unique)
	logger.Debug("batch planned", "records", len(records), "scheduled", len(jobs), "capacity_calls", len(unique))

	out := make(map[entitlement.RecordID]Result, len(jobs))
	for _, j := range jobs {
		out[j.rec.ID] = s.run(j, lookups)
	}
	return out
}

// plan applies the decision tree. It does no I/O.
func (s *Scheduler) plan(rec *entitlement.Record, ent *entitlement.Entitlement, loc Location) job {
	j := job{rec: rec, ent: ent, loc: loc, strategy: strategyEntitlement}
	if rec == nil {
		return j
	}
	switch {
	case ent.GoldStandard || ent.Contractual || strings.EqualFold(rec.ProductFamily, FamilyCommercial):
		j.strategy = strategyEntitlement
	case strings.EqualFold(rec.ProductFamily, FamilyRolloff) && rec.VendorParentID == s.vendorCode:
		j.strategy = strategyCapacity
		if asset, ok := ServiceBaseline(rec, s.vendorCode); ok {
			j.baseline = strings.TrimSpace(asset.BaselineID)
		}
	}
	return j
}

// run executes a planned job. Any error or panic ends in the error fallback.
func (s *Scheduler) run(j job, lookups map[string]lookup) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res = s.errorFallback(j, fmt.Sprintf("panic during calculation: %v", p))
		}
		s.metrics.ObserveCalculation(string(res.Method))
		if res.Method == MethodErrorFallback {
			s.logger.Error("service date fell back", "record_id", res.RecordID, "error", res.ErrorMessage)
		}
	}()

	computed, err := s.compute(j, lookups)
	if err != nil {
		return s.errorFallback(j, err.Error())
	}
	return computed
}

func (s *Scheduler) compute(j job, lookups map[string]lookup) (Result, error) {
	if j.rec == nil {
		return Result{}, calcErr("input", "record is nil")
	}
	if j.strategy != strategyCapacity {
		return s.entitlementBased(j)
	}

	if j.baseline == "" {
		res, err := s.entitlementBased(j)
		res.ErrorMessage = "capacity planner skipped: no eligible service baseline"
		return res, err
	}

	l, ok := lookups[j.baseline]
	if !ok {
		l = lookup{err: errCapacitySkipped}
	}
	if l.err == nil {
		res, picked, err := s.capacityBased(j, l.dates)
		if err != nil {
			return Result{}, err
		}
		if picked {
			return res, nil
		}
		l.err = fmt.Errorf("no offered date is free and open (%d offered)", len(l.dates))
	}

	res, err := s.entitlementBased(j)
	res.ErrorMessage = "capacity planner: " + l.err.Error()
	return res, err
}

// =============================================================================
// STRATEGIES
// =============================================================================

// entitlementBased: local created date + guarantee, +1 at/after cutoff,
// then business hours unless overridden.
func (s *Scheduler) entitlementBased(j job) (Result, error) {
	rec, ent := j.rec, j.ent
	zone, err := calendar.Zone(j.loc.UTCOffsetHours)
	if err != nil {
		return Result{}, calcErr("timezone", "%v", err)
	}
	if rec.CreatedDate.IsZero() {
		return Result{}, calcErr("created_date", "record %s has no creation timestamp", rec.ID)
	}

	delta, err := DaysDelta(ent.Guarantee.Category, ent.Guarantee.Value)
	if err != nil {
		return Result{}, err
	}

	local := rec.CreatedDate.In(zone)
	day := calendar.DateOf(local).AddDays(delta)
	if ent.CutoffHour != nil {
		cutoff := *ent.CutoffHour
		if cutoff < 0 || cutoff > 24 {
			return Result{}, calcErr("cutoff", "cutoff hour %d out of range", cutoff)
		}
		if !IsBeforeCutoff(local, cutoff) {
			day = day.AddDays(1)
		}
	}

	day, err = s.adjust(day, ent.OverrideBusinessHours)
	if err != nil {
		return Result{}, calcErr("business_hours", "%v", err)
	}

	return Result{
		RecordID:      rec.ID,
		EntitlementID: ent.ID,
		ServiceDate:   day,
		SLA:           day.EndOfDay(zone).UTC(),
		Method:        MethodEntitlementBased,
	}, nil
}

// capacityBased picks the earliest offered date that is not before the
// local creation day, not already booked for the asset, and open (unless
// overridden). picked is false when no offered date qualifies.
func (s *Scheduler) capacityBased(j job, offered []calendar.Date) (Result, bool, error) {
	rec, ent := j.rec, j.ent
	zone, err := calendar.Zone(j.loc.UTCOffsetHours)
	if err != nil {
		return Result{}, false, calcErr("timezone", "%v", err)
	}
	earliest := calendar.DateOf(rec.CreatedDate.In(zone))

	booked := make(map[string]bool)
	if asset, ok := ServiceBaseline(rec, s.vendorCode); ok {
		for _, d := range asset.ScheduledDates {
			booked[d.String()] = true
		}
	}

	sorted := append([]calendar.Date(nil), offered...)
	sort.Slice(sorted, func(i, k int) bool { return sorted[i].Before(sorted[k]) })

	for _, d := range sorted {
		if d.Before(earliest) || booked[d.String()] {
			continue
		}
		if !ent.OverrideBusinessHours && !s.calendar.IsWithin(d) {
			continue
		}
		return Result{
			RecordID:       rec.ID,
			EntitlementID:  ent.ID,
			ServiceDate:    d,
			SLA:            d.EndOfDay(zone).UTC(),
			Method:         MethodCapacityPlanner,
			AvailableDates: sorted,
		}, true, nil
	}
	return Result{}, false, nil
}

// errorFallback never fails: tomorrow (local), end of day, business-hours
// adjusted the same way as the entitlement path.
func (s *Scheduler) errorFallback(j job, reason string) Result {
	zone, err := calendar.Zone(j.loc.UTCOffsetHours)
	if err != nil {
		zone = time.UTC
	}

	base := s.now()
	res := Result{Method: MethodErrorFallback, ErrorMessage: reason}
	override := false
	if j.rec != nil {
		res.RecordID = j.rec.ID
		if j.rec.CreatedDate.After(base) {
			base = j.rec.CreatedDate
		}
	}
	if j.ent != nil {
		res.EntitlementID = j.ent.ID
		override = j.ent.OverrideBusinessHours
	}

	day := calendar.DateOf(base.In(zone)).AddDays(1)
	if adjusted, err := s.adjust(day, override); err == nil {
		day = adjusted
	}
	res.ServiceDate = day
	res.SLA = day.EndOfDay(zone).UTC()
	return res
}

func (s *Scheduler) adjust(day calendar.Date, override bool) (calendar.Date, error) {
	if override {
		return day, nil
	}
	return calendar.NextBusinessDay(day, s.calendar)
}

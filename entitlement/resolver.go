package entitlement

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/warp/entitlement-engine/calendar"
	"github.com/warp/entitlement-engine/metrics"
)

// =============================================================================
// RESOLVER - Best entitlement per record
// =============================================================================

// Resolver matches records against candidate entitlements. It holds no
// per-call state and is safe for concurrent use.
type Resolver struct {
	source  Source
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Resolver)

// WithClock fixes "now" (tests, replays).
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

func NewResolver(source Source, opts ...Option) *Resolver {
	r := &Resolver{
		source: source,
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// batch is everything loaded for one resolution call.
type batch struct {
	mappings   *Mappings
	records    []Record
	candidates []Entitlement
	today      calendar.Date
}

// ResolvePrioritized returns the single best entitlement per record. Records
// that do not exist, or for which no candidate survives filtering, have no
// entry.
func (r *Resolver) ResolvePrioritized(ctx context.Context, ids []RecordID) (map[RecordID]*Entitlement, error) {
	out := make(map[RecordID]*Entitlement)
	b, err := r.load(ctx, ids)
	if err != nil || b == nil {
		return out, err
	}

	for i := range b.records {
		rec := &b.records[i]
		best, score, ok := b.selectBest(rec)
		r.metrics.ObserveResolution(ok)
		if !ok {
			r.logger.Debug("no entitlement matched", "record_id", rec.ID)
			continue
		}
		r.logger.Debug("entitlement resolved",
			"record_id", rec.ID,
			"entitlement_id", best.ID,
			"rank", score.Rank,
			"customer", score.Customer,
			"service", score.Service,
			"transaction", score.Transaction,
		)
		out[rec.ID] = best
	}
	return out, nil
}

// ResolveAll returns every valid candidate per record, grouped by kind and
// in source order. It applies the same filter chain as ResolvePrioritized
// but does not rank.
func (r *Resolver) ResolveAll(ctx context.Context, ids []RecordID) (map[RecordID]map[Kind][]Entitlement, error) {
	out := make(map[RecordID]map[Kind][]Entitlement)
	b, err := r.load(ctx, ids)
	if err != nil || b == nil {
		return out, err
	}

	for i := range b.records {
		rec := &b.records[i]
		groups := make(map[Kind][]Entitlement)
		for j := range b.candidates {
			cand := &b.candidates[j]
			if ok, _ := Eligible(rec, cand, b.today); ok {
				groups[cand.Kind()] = append(groups[cand.Kind()], *cand)
			}
		}
		out[rec.ID] = groups
	}
	return out, nil
}

// ScoreAll returns the score of every eligible candidate for one record, in
// source order. Used for diagnostics ("why was this picked").
func (r *Resolver) ScoreAll(ctx context.Context, id RecordID) ([]ScoredEntitlement, error) {
	b, err := r.load(ctx, []RecordID{id})
	if err != nil {
		return nil, err
	}
	if b == nil || len(b.records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	rec := &b.records[0]
	var scored []ScoredEntitlement
	for j := range b.candidates {
		cand := &b.candidates[j]
		if ok, _ := Eligible(rec, cand, b.today); !ok {
			continue
		}
		scored = append(scored, ScoredEntitlement{Entitlement: *cand, Score: b.mappings.Score(rec, cand)})
	}
	// Stable keeps source order among equals, matching selectBest.
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score.Better(scored[j].Score) })
	return scored, nil
}

// ScoredEntitlement pairs a candidate with its match score.
type ScoredEntitlement struct {
	Entitlement Entitlement
	Score       MatchScore
}

// selectBest walks candidates in source order, keeping the first strictly
// better one.
func (b *batch) selectBest(rec *Record) (*Entitlement, MatchScore, bool) {
	var (
		best      *Entitlement
		bestScore MatchScore
	)
	for j := range b.candidates {
		cand := &b.candidates[j]
		if ok, _ := Eligible(rec, cand, b.today); !ok {
			continue
		}
		score := b.mappings.Score(rec, cand)
		if best == nil || score.Better(bestScore) {
			best, bestScore = cand, score
		}
	}
	if best == nil {
		return nil, MatchScore{}, false
	}
	picked := *best
	return &picked, bestScore, true
}

// load performs steps shared by both entry points: configuration, records,
// candidates. A nil batch with nil error means there is nothing to do.
func (r *Resolver) load(ctx context.Context, ids []RecordID) (*batch, error) {
	wanted := dedupe(ids)
	if len(wanted) == 0 {
		return nil, nil
	}

	rawMappings, err := r.source.LoadFieldMappings(ctx)
	if err != nil {
		return nil, &ConfigurationError{Reason: "failed to load field mappings", Err: err}
	}
	mappings, err := Compile(rawMappings)
	if err != nil {
		return nil, err
	}

	loaded, err := r.source.LoadRecords(ctx, wanted)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}

	requested := make(map[RecordID]bool, len(wanted))
	for _, id := range wanted {
		requested[id] = true
	}
	seen := make(map[RecordID]bool, len(loaded))
	records := make([]Record, 0, len(loaded))
	accounts := make([]string, 0, len(loaded))
	accountSeen := make(map[string]bool)
	for _, rec := range loaded {
		if !requested[rec.ID] || seen[rec.ID] {
			continue
		}
		if _, ok := rec.Kind(); !ok {
			r.logger.Warn("skipping record with unknown id namespace", "record_id", rec.ID)
			continue
		}
		seen[rec.ID] = true
		records = append(records, rec)
		if rec.AccountID != "" && !accountSeen[rec.AccountID] {
			accountSeen[rec.AccountID] = true
			accounts = append(accounts, rec.AccountID)
		}
	}
	if len(records) == 0 {
		return nil, nil
	}

	today := calendar.DateOf(r.now())
	candidates, err := r.source.LoadEntitlements(ctx, Criteria{AccountIDs: accounts, AsOf: today})
	if err != nil {
		return nil, fmt.Errorf("load entitlements: %w", err)
	}

	return &batch{mappings: mappings, records: records, candidates: candidates, today: today}, nil
}

func dedupe(ids []RecordID) []RecordID {
	seen := make(map[RecordID]bool, len(ids))
	out := make([]RecordID, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

package sla

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/warp/entitlement-engine/calendar"
	"github.com/warp/entitlement-engine/capacity"
)

// =============================================================================
// CAPACITY LOOKUPS - One call per unique baseline id per batch
// =============================================================================

var (
	errCapacityNotConfigured = errors.New("capacity planner not configured")
	errCapacitySkipped       = errors.New("capacity lookup skipped: batch deadline reached")
)

// lookup is the outcome of one baseline call.
type lookup struct {
	dates []calendar.Date
	err   error
}

// lookupCapacity calls the planner once per distinct baseline. Calls that
// have not started when ctx is done are skipped and reported as
// errCapacitySkipped so their records fall back instead of hanging.
func (s *Scheduler) lookupCapacity(ctx context.Context, baselines []string) map[string]lookup {
	out := make(map[string]lookup, len(baselines))
	if len(baselines) == 0 {
		return out
	}
	if s.capacity == nil {
		for _, id := range baselines {
			out[id] = lookup{err: errCapacityNotConfigured}
		}
		return out
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.maxConcurrent)

	record := func(id string, l lookup) {
		mu.Lock()
		out[id] = l
		mu.Unlock()
	}

	for _, id := range baselines {
		id := id // per-iteration copy for the goroutine (go < 1.22 loop semantics)
		if ctx.Err() != nil {
			s.metrics.ObserveCapacitySkipped()
			record(id, lookup{err: errCapacitySkipped})
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				s.metrics.ObserveCapacitySkipped()
				record(id, lookup{err: errCapacitySkipped})
				return nil
			}
			start := time.Now()
			dates, err := s.callPlanner(ctx, id)
			s.metrics.ObserveCapacityRequest(capacityOutcome(err), time.Since(start))
			if err == nil && len(dates) == 0 {
				err = capacity.ErrNoDates
			}
			if err != nil {
				s.logger.Warn("capacity lookup failed", "baseline_id", id, "error", err)
			}
			record(id, lookup{dates: dates, err: err})
			return nil
		})
	}
	// Workers never return errors; failures live in the lookups.
	_ = g.Wait()
	return out
}

// callPlanner turns a panicking planner into an ordinary failure so one
// bad baseline cannot take down the batch.
func (s *Scheduler) callPlanner(ctx context.Context, id string) (dates []calendar.Date, err error) {
	defer func() {
		if p := recover(); p != nil {
			dates, err = nil, fmt.Errorf("capacity planner panicked: %v", p)
		}
	}()
	return s.capacity.AvailableDates(ctx, id)
}

func capacityOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, capacity.ErrNoDates):
		return "empty"
	default:
		return "error"
	}
}

// uniqueBaselines returns the distinct, trimmed baseline ids in first-seen
// order.
func uniqueBaselines(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

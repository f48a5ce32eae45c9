// Package memory provides an in-memory store for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/entitlement-engine/calendar"
	"github.com/warp/entitlement-engine/entitlement"
	"github.com/warp/entitlement-engine/sla"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Store implements entitlement.Source, sla.LocationSource and
// sla.CalendarSource. Entitlements are returned in insertion order.
type Store struct {
	mu           sync.RWMutex
	records      map[entitlement.RecordID]entitlement.Record
	entitlements []entitlement.Entitlement
	entIndex     map[entitlement.EntitlementID]int
	mappings     []entitlement.FieldMapping
	locations    map[string]sla.Location
	hours        *calendar.BusinessHours
}

var (
	_ entitlement.Source = (*Store)(nil)
	_ sla.LocationSource = (*Store)(nil)
	_ sla.CalendarSource = (*Store)(nil)
)

func New() *Store {
	return &Store{
		records:   make(map[entitlement.RecordID]entitlement.Record),
		entIndex:  make(map[entitlement.EntitlementID]int),
		locations: make(map[string]sla.Location),
	}
}

// =============================================================================
// WRITES
// =============================================================================

// SaveRecord inserts or replaces a record.
func (s *Store) SaveRecord(_ context.Context, rec entitlement.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	return nil
}

// SaveEntitlement inserts or replaces an entitlement. A replaced
// entitlement keeps its original position.
func (s *Store) SaveEntitlement(_ context.Context, ent entitlement.Entitlement) error {
	if ent.ID == "" {
		return fmt.Errorf("entitlement id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.entIndex[ent.ID]; ok {
		s.entitlements[i] = ent
		return nil
	}
	s.entIndex[ent.ID] = len(s.entitlements)
	s.entitlements = append(s.entitlements, ent)
	return nil
}

// SaveFieldMappings replaces the whole mapping configuration.
func (s *Store) SaveFieldMappings(_ context.Context, mappings []entitlement.FieldMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings = append([]entitlement.FieldMapping(nil), mappings...)
	return nil
}

func (s *Store) SaveLocation(_ context.Context, loc sla.Location) error {
	if loc.ID == "" {
		return fmt.Errorf("location id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations[loc.ID] = loc
	return nil
}

func (s *Store) SaveBusinessHours(_ context.Context, hours *calendar.BusinessHours) error {
	if err := hours.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hours = hours
	return nil
}

// =============================================================================
// READS
// =============================================================================

func (s *Store) LoadRecords(_ context.Context, ids []entitlement.RecordID) ([]entitlement.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entitlement.Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := s.records[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// LoadEntitlements pre-filters on status, expiry and account ownership.
func (s *Store) LoadEntitlements(_ context.Context, c entitlement.Criteria) ([]entitlement.Entitlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make(map[string]bool, len(c.AccountIDs))
	for _, a := range c.AccountIDs {
		accounts[a] = true
	}

	var out []entitlement.Entitlement
	for _, e := range s.entitlements {
		if e.Status != entitlement.StatusApproved {
			continue
		}
		if !e.End.IsZero() && !c.AsOf.IsZero() && e.End.Before(c.AsOf) {
			continue
		}
		if e.AccountID != "" && !accounts[e.AccountID] {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) LoadFieldMappings(_ context.Context) ([]entitlement.FieldMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entitlement.FieldMapping(nil), s.mappings...), nil
}

func (s *Store) LoadLocation(_ context.Context, id string) (sla.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, ok := s.locations[id]
	if !ok {
		return sla.Location{}, fmt.Errorf("%w: %s", sla.ErrLocationNotFound, id)
	}
	return loc, nil
}

// LoadBusinessHours returns the saved calendar, or the standard Mon-Fri
// calendar when none was saved.
func (s *Store) LoadBusinessHours(_ context.Context) (*calendar.BusinessHours, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.hours == nil {
		return calendar.StandardBusinessHours(), nil
	}
	return s.hours, nil
}

// Reset clears all data.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[entitlement.RecordID]entitlement.Record)
	s.entitlements = nil
	s.entIndex = make(map[entitlement.EntitlementID]int)
	s.mappings = nil
	s.locations = make(map[string]sla.Location)
	s.hours = nil
	return nil
}

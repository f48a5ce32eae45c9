package entitlement

import (
	"context"

	"github.com/warp/entitlement-engine/calendar"
)

// =============================================================================
// SOURCE - Read-only view of the persistence layer
// =============================================================================

// Criteria narrows the candidate load. Implementations must return every
// entitlement that is Approved, not expired on AsOf, and either has no
// owning account or is owned by one of AccountIDs. Returning a superset is
// allowed; the resolver re-applies the full filter chain.
type Criteria struct {
	AccountIDs []string
	AsOf       calendar.Date
}

// Source is everything the resolver reads. It never writes.
//
// IMPLEMENTATIONS:
//   - store/sqlite: SQLite-backed store used by the server
//   - store/memory: In-memory store for tests
type Source interface {
	// LoadRecords returns the records that exist among ids. Missing ids
	// are omitted, not errors.
	LoadRecords(ctx context.Context, ids []RecordID) ([]Record, error)

	// LoadEntitlements returns candidates in a stable order. That order is
	// the final tie-break between equally ranked candidates.
	LoadEntitlements(ctx context.Context, c Criteria) ([]Entitlement, error)

	// LoadFieldMappings returns the current mapping configuration.
	LoadFieldMappings(ctx context.Context) ([]FieldMapping, error)
}

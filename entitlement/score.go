package entitlement

import "strings"

// =============================================================================
// MATCH SCORE - How specifically a candidate matches a record
// =============================================================================

// Rank bounds. 0 is the most specific match.
const (
	BestRank  = 0
	WorstRank = 7
)

// MatchScore is computed per (record, candidate) pair and never persisted.
type MatchScore struct {
	Rank        int
	Customer    int
	Service     int
	Transaction int
}

// RankFor maps the three "category matched" predicates onto the fixed
// priority table:
//
//	customer service transaction  rank
//	   Y        Y         Y         0
//	   Y        Y         N         1
//	   Y        N         Y         2
//	   Y        N         N         3
//	   N        Y         Y         4
//	   N        Y         N         5
//	   N        N         Y         6
//	   N        N         N         7
func RankFor(customer, service, transaction bool) int {
	rank := 0
	if !customer {
		rank |= 4
	}
	if !service {
		rank |= 2
	}
	if !transaction {
		rank |= 1
	}
	return rank
}

// Score counts matching non-blank field pairs per category. Mappings that
// have no source field for the record's kind are skipped.
func (m *Mappings) Score(r *Record, e *Entitlement) MatchScore {
	var s MatchScore
	kind, ok := r.Kind()
	if !ok {
		s.Rank = WorstRank
		return s
	}

	for _, cm := range m.entries {
		get, ok := cm.source[kind]
		if !ok {
			continue
		}
		if !fieldsMatch(get(r), cm.target(e)) {
			continue
		}
		switch cm.category {
		case CategoryCustomer:
			s.Customer++
		case CategoryService:
			s.Service++
		case CategoryTransaction:
			s.Transaction++
		}
	}
	s.Rank = RankFor(s.Customer > 0, s.Service > 0, s.Transaction > 0)
	return s
}

func fieldsMatch(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	return a != "" && b != "" && a == b
}

// Better reports whether s should win over other: lower rank first, then
// higher customer, service and transaction counts. Equal scores are not
// better, so the first-seen candidate keeps the slot.
func (s MatchScore) Better(other MatchScore) bool {
	if s.Rank != other.Rank {
		return s.Rank < other.Rank
	}
	if s.Customer != other.Customer {
		return s.Customer > other.Customer
	}
	if s.Service != other.Service {
		return s.Service > other.Service
	}
	return s.Transaction > other.Transaction
}

/*
Package sqlite provides a SQLite-backed implementation of the engine's read
interfaces plus the seed writes used by demos and tests.

PURPOSE:
  Implements entitlement.Source, sla.LocationSource and sla.CalendarSource
  using SQLite. The engine only reads; the Save* methods exist for the
  scenario loader and tests.

INTERFACES IMPLEMENTED:
  entitlement.Source:  Records, candidate entitlements, field mappings
  sla.LocationSource:  Location time context
  sla.CalendarSource:  Default business hours

KEY TABLES:
  records:        Cases and quotes
  child_assets:   Asset lines under a record's parent asset
  work_orders:    Service dates already booked per child asset
  entitlements:   Candidate entitlements (seq fixes the stable load order)
  field_mappings: Comparison configuration, ordered by position
  locations:      UTC offset per service location
  business_hours: Calendar definitions as JSON, one flagged default

ORDERING:
  LoadEntitlements returns rows by insertion sequence. Updating an
  entitlement keeps its sequence, so the resolver's first-seen tie-break
  is stable across edits.

USAGE:
  store, err := sqlite.New("./data/entitlements.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  resolver := entitlement.NewResolver(store)

SEE ALSO:
  - entitlement/source.go: Source interface
  - sla/types.go:          LocationSource / CalendarSource
  - store/memory:          In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/entitlement-engine/calendar"
	"github.com/warp/entitlement-engine/entitlement"
	"github.com/warp/entitlement-engine/factory"
	"github.com/warp/entitlement-engine/sla"
)

// Store implements the engine's storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ entitlement.Source = (*Store)(nil)
	_ sla.LocationSource = (*Store)(nil)
	_ sla.CalendarSource = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	store := NewWithDB(db)
	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// NewWithDB wraps an already opened database. The schema is not touched;
// call Migrate when needed.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection (health checks).
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the database schema.
func (s *Store) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		account_id TEXT,
		location_id TEXT,
		material TEXT,
		equipment_size TEXT,
		schedule TEXT,
		service_type TEXT,
		case_type TEXT,
		case_sub_type TEXT,
		case_reason TEXT,
		product_family TEXT,
		vendor_parent_id TEXT,
		asset_id TEXT,
		created_at TEXT NOT NULL,
		min_service_date TEXT
	);

	CREATE TABLE IF NOT EXISTS child_assets (
		record_id TEXT NOT NULL REFERENCES records(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		asset_id TEXT NOT NULL,
		self_service INTEGER NOT NULL DEFAULT 0,
		quantity INTEGER NOT NULL DEFAULT 0,
		vendor_parent_code TEXT,
		baseline_id TEXT,
		PRIMARY KEY (record_id, position)
	);

	CREATE TABLE IF NOT EXISTS work_orders (
		asset_id TEXT NOT NULL,
		service_date TEXT NOT NULL,
		PRIMARY KEY (asset_id, service_date)
	);

	CREATE TABLE IF NOT EXISTS entitlements (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		name TEXT,
		account_id TEXT,
		start_date TEXT,
		end_date TEXT,
		status TEXT NOT NULL,
		guarantee_category TEXT NOT NULL,
		guarantee_value TEXT NOT NULL,
		cutoff_hour INTEGER,
		call_window_json TEXT,
		override_business_hours INTEGER NOT NULL DEFAULT 0,
		gold_standard INTEGER NOT NULL DEFAULT 0,
		contractual INTEGER NOT NULL DEFAULT 0,
		location_id TEXT,
		material TEXT,
		equipment_size TEXT,
		schedule TEXT,
		service_type TEXT,
		case_type TEXT,
		case_sub_type TEXT,
		case_reason TEXT
	);

	-- Candidate load (hot path)
	CREATE INDEX IF NOT EXISTS idx_entitlements_status_account
		ON entitlements(status, account_id, end_date);

	CREATE TABLE IF NOT EXISTS field_mappings (
		position INTEGER PRIMARY KEY,
		label TEXT NOT NULL,
		band TEXT NOT NULL,
		case_field TEXT,
		quote_field TEXT,
		entitlement_field TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS locations (
		id TEXT PRIMARY KEY,
		utc_offset_hours REAL NOT NULL,
		timezone_id TEXT
	);

	CREATE TABLE IF NOT EXISTS business_hours (
		id TEXT PRIMARY KEY,
		name TEXT,
		config_json TEXT NOT NULL,
		is_default INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// =============================================================================
// RECORDS (entitlement.Source)
// =============================================================================

// SaveRecord inserts or replaces a record and its child assets. Scheduled
// dates of each child asset are added to work_orders.
func (s *Store) SaveRecord(ctx context.Context, rec entitlement.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO records
		(id, account_id, location_id, material, equipment_size, schedule, service_type,
		 case_type, case_sub_type, case_reason, product_family, vendor_parent_id, asset_id,
		 created_at, min_service_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_id = excluded.account_id,
			location_id = excluded.location_id,
			material = excluded.material,
			equipment_size = excluded.equipment_size,
			schedule = excluded.schedule,
			service_type = excluded.service_type,
			case_type = excluded.case_type,
			case_sub_type = excluded.case_sub_type,
			case_reason = excluded.case_reason,
			product_family = excluded.product_family,
			vendor_parent_id = excluded.vendor_parent_id,
			asset_id = excluded.asset_id,
			created_at = excluded.created_at,
			min_service_date = excluded.min_service_date
	`
	_, err = tx.ExecContext(ctx, query,
		rec.ID, nullString(rec.AccountID), nullString(rec.LocationID),
		nullString(rec.Material), nullString(rec.EquipmentSize), nullString(rec.Schedule), nullString(rec.ServiceType),
		nullString(rec.CaseType), nullString(rec.CaseSubType), nullString(rec.CaseReason),
		nullString(rec.ProductFamily), nullString(rec.VendorParentID), nullString(rec.AssetID),
		rec.CreatedDate.UTC().Format(time.RFC3339Nano), nullDate(rec.MinServiceDate),
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM child_assets WHERE record_id = ?", rec.ID); err != nil {
		return fmt.Errorf("failed to clear child assets: %w", err)
	}
	for i, a := range rec.Assets {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO child_assets
			(record_id, position, asset_id, self_service, quantity, vendor_parent_code, baseline_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, i, a.AssetID, a.SelfService, a.Quantity, nullString(a.VendorParentCode), nullString(a.BaselineID),
		)
		if err != nil {
			return fmt.Errorf("failed to save child asset %s: %w", a.AssetID, err)
		}
		for _, d := range a.ScheduledDates {
			_, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO work_orders (asset_id, service_date) VALUES (?, ?)",
				a.AssetID, d.String(),
			)
			if err != nil {
				return fmt.Errorf("failed to save work order: %w", err)
			}
		}
	}

	return tx.Commit()
}

// LoadRecords returns the records that exist among ids, in request order.
func (s *Store) LoadRecords(ctx context.Context, ids []entitlement.RecordID) ([]entitlement.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = string(id)
	}

	query := `
		SELECT id, account_id, location_id, material, equipment_size, schedule, service_type,
		       case_type, case_sub_type, case_reason, product_family, vendor_parent_id, asset_id,
		       created_at, min_service_date
		FROM records
		WHERE id IN (` + placeholders(len(ids)) + `)`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	byID := make(map[entitlement.RecordID]*entitlement.Record, len(ids))
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		byID[rec.ID] = &rec
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Release the connection before the asset query.
	rows.Close()
	if len(byID) == 0 {
		return nil, nil
	}

	if err := s.loadAssets(ctx, byID, args); err != nil {
		return nil, err
	}

	out := make([]entitlement.Record, 0, len(byID))
	seen := make(map[entitlement.RecordID]bool, len(byID))
	for _, id := range ids {
		if rec, ok := byID[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *Store) loadAssets(ctx context.Context, byID map[entitlement.RecordID]*entitlement.Record, args []any) error {
	query := `
		SELECT a.record_id, a.asset_id, a.self_service, a.quantity, a.vendor_parent_code, a.baseline_id,
		       w.service_date
		FROM child_assets a
		LEFT JOIN work_orders w ON w.asset_id = a.asset_id
		WHERE a.record_id IN (` + placeholders(len(args)) + `)
		ORDER BY a.record_id, a.position, w.service_date`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query child assets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			recordID     string
			a            entitlement.ChildAsset
			vendorParent sql.NullString
			baseline     sql.NullString
			serviceDate  sql.NullString
		)
		if err := rows.Scan(&recordID, &a.AssetID, &a.SelfService, &a.Quantity, &vendorParent, &baseline, &serviceDate); err != nil {
			return fmt.Errorf("failed to scan child asset: %w", err)
		}
		rec := byID[entitlement.RecordID(recordID)]
		if rec == nil {
			continue
		}
		a.VendorParentCode = vendorParent.String
		a.BaselineID = baseline.String

		// Rows for the same asset are adjacent; append dates to the last one.
		n := len(rec.Assets)
		if n == 0 || rec.Assets[n-1].AssetID != a.AssetID {
			rec.Assets = append(rec.Assets, a)
			n++
		}
		if serviceDate.Valid {
			d, err := calendar.ParseDate(calendar.LayoutISO, serviceDate.String)
			if err != nil {
				return fmt.Errorf("bad work order date %q: %w", serviceDate.String, err)
			}
			rec.Assets[n-1].ScheduledDates = append(rec.Assets[n-1].ScheduledDates, d)
		}
	}
	return rows.Err()
}

func scanRecord(rows *sql.Rows) (entitlement.Record, error) {
	var (
		rec                                           entitlement.Record
		account, location, material, size, schedule   sql.NullString
		serviceType, caseType, caseSubType, reason    sql.NullString
		family, vendorParent, assetID, minServiceDate sql.NullString
		createdAt                                     string
	)

	err := rows.Scan(
		&rec.ID, &account, &location, &material, &size, &schedule, &serviceType,
		&caseType, &caseSubType, &reason, &family, &vendorParent, &assetID,
		&createdAt, &minServiceDate,
	)
	if err != nil {
		return rec, fmt.Errorf("failed to scan record: %w", err)
	}

	rec.AccountID = account.String
	rec.LocationID = location.String
	rec.Material = material.String
	rec.EquipmentSize = size.String
	rec.Schedule = schedule.String
	rec.ServiceType = serviceType.String
	rec.CaseType = caseType.String
	rec.CaseSubType = caseSubType.String
	rec.CaseReason = reason.String
	rec.ProductFamily = family.String
	rec.VendorParentID = vendorParent.String
	rec.AssetID = assetID.String

	rec.CreatedDate, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return rec, fmt.Errorf("record %s: bad created_at %q: %w", rec.ID, createdAt, err)
	}
	if rec.MinServiceDate, err = parseNullDate(minServiceDate); err != nil {
		return rec, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	return rec, nil
}

// =============================================================================
// ENTITLEMENTS (entitlement.Source)
// =============================================================================

type callWindowRow struct {
	Qualifier string         `json:"qualifier,omitempty"`
	Minutes   int            `json:"minutes"`
	Days      []time.Weekday `json:"days,omitempty"`
}

// SaveEntitlement inserts or updates an entitlement. An update keeps the
// original load position.
func (s *Store) SaveEntitlement(ctx context.Context, e entitlement.Entitlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var window sql.NullString
	if e.CallWindow != nil {
		raw, err := json.Marshal(callWindowRow{
			Qualifier: string(e.CallWindow.Qualifier),
			Minutes:   int(e.CallWindow.Time),
			Days:      e.CallWindow.Days,
		})
		if err != nil {
			return fmt.Errorf("failed to encode call window: %w", err)
		}
		window = sql.NullString{String: string(raw), Valid: true}
	}
	var cutoff sql.NullInt64
	if e.CutoffHour != nil {
		cutoff = sql.NullInt64{Int64: int64(*e.CutoffHour), Valid: true}
	}

	query := `
		INSERT INTO entitlements
		(id, name, account_id, start_date, end_date, status, guarantee_category, guarantee_value,
		 cutoff_hour, call_window_json, override_business_hours, gold_standard, contractual,
		 location_id, material, equipment_size, schedule, service_type, case_type, case_sub_type, case_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			account_id = excluded.account_id,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			status = excluded.status,
			guarantee_category = excluded.guarantee_category,
			guarantee_value = excluded.guarantee_value,
			cutoff_hour = excluded.cutoff_hour,
			call_window_json = excluded.call_window_json,
			override_business_hours = excluded.override_business_hours,
			gold_standard = excluded.gold_standard,
			contractual = excluded.contractual,
			location_id = excluded.location_id,
			material = excluded.material,
			equipment_size = excluded.equipment_size,
			schedule = excluded.schedule,
			service_type = excluded.service_type,
			case_type = excluded.case_type,
			case_sub_type = excluded.case_sub_type,
			case_reason = excluded.case_reason
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.Name, nullString(e.AccountID), nullDate(e.Start), nullDate(e.End), e.Status,
		e.Guarantee.Category, e.Guarantee.Value.String(),
		cutoff, window, e.OverrideBusinessHours, e.GoldStandard, e.Contractual,
		nullString(e.LocationID), nullString(e.Material), nullString(e.EquipmentSize), nullString(e.Schedule),
		nullString(e.ServiceType), nullString(e.CaseType), nullString(e.CaseSubType), nullString(e.CaseReason),
	)
	if err != nil {
		return fmt.Errorf("failed to save entitlement: %w", err)
	}
	return nil
}

// LoadEntitlements pre-filters on status, expiry and account in SQL and
// returns rows in insertion order.
func (s *Store) LoadEntitlements(ctx context.Context, c entitlement.Criteria) ([]entitlement.Entitlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, name, account_id, start_date, end_date, status, guarantee_category, guarantee_value,
		       cutoff_hour, call_window_json, override_business_hours, gold_standard, contractual,
		       location_id, material, equipment_size, schedule, service_type, case_type, case_sub_type, case_reason
		FROM entitlements
		WHERE status = ?
		  AND (end_date IS NULL OR end_date >= ?)
		  AND (account_id IS NULL`
	args := []any{string(entitlement.StatusApproved), c.AsOf.String()}
	if len(c.AccountIDs) > 0 {
		query += ` OR account_id IN (` + placeholders(len(c.AccountIDs)) + `)`
		for _, a := range c.AccountIDs {
			args = append(args, a)
		}
	}
	query += `)
		ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entitlements: %w", err)
	}
	defer rows.Close()

	var ents []entitlement.Entitlement
	for rows.Next() {
		e, err := scanEntitlement(rows)
		if err != nil {
			return nil, err
		}
		ents = append(ents, e)
	}
	return ents, rows.Err()
}

func scanEntitlement(rows *sql.Rows) (entitlement.Entitlement, error) {
	var (
		e                                         entitlement.Entitlement
		name, account, startDate, endDate, window sql.NullString
		location, material, size, schedule        sql.NullString
		serviceType, caseType, caseSubType        sql.NullString
		reason                                    sql.NullString
		category, value                           string
		cutoff                                    sql.NullInt64
	)

	err := rows.Scan(
		&e.ID, &name, &account, &startDate, &endDate, &e.Status, &category, &value,
		&cutoff, &window, &e.OverrideBusinessHours, &e.GoldStandard, &e.Contractual,
		&location, &material, &size, &schedule, &serviceType, &caseType, &caseSubType, &reason,
	)
	if err != nil {
		return e, fmt.Errorf("failed to scan entitlement: %w", err)
	}

	e.Name = name.String
	e.AccountID = account.String
	e.LocationID = location.String
	e.Material = material.String
	e.EquipmentSize = size.String
	e.Schedule = schedule.String
	e.ServiceType = serviceType.String
	e.CaseType = caseType.String
	e.CaseSubType = caseSubType.String
	e.CaseReason = reason.String

	e.Guarantee.Category = entitlement.GuaranteeCategory(category)
	if e.Guarantee.Value, err = decimal.NewFromString(value); err != nil {
		return e, fmt.Errorf("entitlement %s: bad guarantee value %q: %w", e.ID, value, err)
	}
	if cutoff.Valid {
		h := int(cutoff.Int64)
		e.CutoffHour = &h
	}
	if e.Start, err = parseNullDate(startDate); err != nil {
		return e, fmt.Errorf("entitlement %s: %w", e.ID, err)
	}
	if e.End, err = parseNullDate(endDate); err != nil {
		return e, fmt.Errorf("entitlement %s: %w", e.ID, err)
	}
	if window.Valid && window.String != "" {
		var row callWindowRow
		if err := json.Unmarshal([]byte(window.String), &row); err != nil {
			return e, fmt.Errorf("entitlement %s: bad call window: %w", e.ID, err)
		}
		e.CallWindow = &entitlement.CallWindow{
			Qualifier: entitlement.Qualifier(row.Qualifier),
			Time:      calendar.Clock(row.Minutes),
			Days:      row.Days,
		}
	}
	return e, nil
}

// =============================================================================
// FIELD MAPPINGS (entitlement.Source)
// =============================================================================

// SaveFieldMappings replaces the whole configuration atomically.
func (s *Store) SaveFieldMappings(ctx context.Context, mappings []entitlement.FieldMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM field_mappings"); err != nil {
		return fmt.Errorf("failed to clear field mappings: %w", err)
	}
	for i, m := range mappings {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO field_mappings (position, label, band, case_field, quote_field, entitlement_field)
			VALUES (?, ?, ?, ?, ?, ?)`,
			i, m.Label, string(m.Band), nullString(m.CaseField), nullString(m.QuoteField), m.EntitlementField,
		)
		if err != nil {
			return fmt.Errorf("failed to save field mapping %q: %w", m.Label, err)
		}
	}
	return tx.Commit()
}

func (s *Store) LoadFieldMappings(ctx context.Context) ([]entitlement.FieldMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT label, band, case_field, quote_field, entitlement_field
		FROM field_mappings
		ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query field mappings: %w", err)
	}
	defer rows.Close()

	var out []entitlement.FieldMapping
	for rows.Next() {
		var (
			m                     entitlement.FieldMapping
			band                  string
			caseField, quoteField sql.NullString
		)
		if err := rows.Scan(&m.Label, &band, &caseField, &quoteField, &m.EntitlementField); err != nil {
			return nil, fmt.Errorf("failed to scan field mapping: %w", err)
		}
		m.Band = entitlement.Band(band)
		m.CaseField = caseField.String
		m.QuoteField = quoteField.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// =============================================================================
// LOCATIONS (sla.LocationSource)
// =============================================================================

func (s *Store) SaveLocation(ctx context.Context, loc sla.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO locations (id, utc_offset_hours, timezone_id)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			utc_offset_hours = excluded.utc_offset_hours,
			timezone_id = excluded.timezone_id`,
		loc.ID, loc.UTCOffsetHours, nullString(loc.TimezoneID),
	)
	if err != nil {
		return fmt.Errorf("failed to save location: %w", err)
	}
	return nil
}

func (s *Store) LoadLocation(ctx context.Context, id string) (sla.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		loc = sla.Location{ID: id}
		tz  sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT utc_offset_hours, timezone_id FROM locations WHERE id = ?", id,
	).Scan(&loc.UTCOffsetHours, &tz)
	if errors.Is(err, sql.ErrNoRows) {
		return sla.Location{}, fmt.Errorf("%w: %s", sla.ErrLocationNotFound, id)
	}
	if err != nil {
		return sla.Location{}, fmt.Errorf("failed to load location: %w", err)
	}
	loc.TimezoneID = tz.String
	return loc, nil
}

// =============================================================================
// BUSINESS HOURS (sla.CalendarSource)
// =============================================================================

// SaveBusinessHours stores a calendar and makes it the default.
func (s *Store) SaveBusinessHours(ctx context.Context, bh *calendar.BusinessHours) error {
	if err := bh.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(factory.NewFactory().BusinessHoursToJSON(bh))
	if err != nil {
		return fmt.Errorf("failed to encode business hours: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "UPDATE business_hours SET is_default = 0"); err != nil {
		return fmt.Errorf("failed to clear default business hours: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO business_hours (id, name, config_json, is_default, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			config_json = excluded.config_json,
			is_default = 1,
			updated_at = excluded.updated_at`,
		bh.ID, bh.Name, string(raw), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save business hours: %w", err)
	}
	return tx.Commit()
}

// LoadBusinessHours returns the default calendar, or the standard
// Monday-Friday calendar when none is stored.
func (s *Store) LoadBusinessHours(ctx context.Context) (*calendar.BusinessHours, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT config_json FROM business_hours WHERE is_default = 1 ORDER BY updated_at DESC LIMIT 1",
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return factory.DefaultBusinessHours(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load business hours: %w", err)
	}
	bh, err := factory.NewFactory().ParseBusinessHours(raw)
	if err != nil {
		return nil, fmt.Errorf("stored business hours: %w", err)
	}
	return bh, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"work_orders", "child_assets", "records", "entitlements", "field_mappings", "locations", "business_hours"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(d calendar.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDate(s sql.NullString) (calendar.Date, error) {
	if !s.Valid || s.String == "" {
		return calendar.Date{}, nil
	}
	return calendar.ParseDate(calendar.LayoutISO, s.String)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/entitlement-engine/calendar"
	"github.com/warp/entitlement-engine/entitlement"
	"github.com/warp/entitlement-engine/factory"
	"github.com/warp/entitlement-engine/sla"
	"github.com/warp/entitlement-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func entitlementFixture(id, account string) entitlement.Entitlement {
	return entitlement.Entitlement{
		ID:        entitlement.EntitlementID(id),
		Name:      id,
		AccountID: account,
		Status:    entitlement.StatusApproved,
		Guarantee: entitlement.Guarantee{Category: entitlement.GuaranteeHours, Value: decimal.RequireFromString("36.5")},
	}
}

// =============================================================================
// RECORDS
// =============================================================================

func TestRecords_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rec := entitlement.Record{
		ID:             "500A",
		AccountID:      "ACC-1",
		LocationID:     "LOC-1",
		Material:       "Cardboard",
		CaseType:       "Pickup",
		ProductFamily:  "Rolloff",
		VendorParentID: "WM",
		AssetID:        "PARENT-1",
		CreatedDate:    time.Date(2025, time.January, 6, 10, 0, 0, 0, time.UTC),
		MinServiceDate: calendar.NewDate(2025, time.January, 8),
		Assets: []entitlement.ChildAsset{
			{AssetID: "CH-1", SelfService: true, Quantity: 1, VendorParentCode: "WM", BaselineID: "BL-1",
				ScheduledDates: []calendar.Date{calendar.NewDate(2025, time.January, 16), calendar.NewDate(2025, time.January, 15)}},
			{AssetID: "CH-2", Quantity: 3},
		},
	}
	require.NoError(t, store.SaveRecord(ctx, rec))

	got, err := store.LoadRecords(ctx, []entitlement.RecordID{"500MISSING", "500A"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	r := got[0]
	assert.Equal(t, rec.ID, r.ID)
	assert.Equal(t, "Cardboard", r.Material)
	assert.Equal(t, "WM", r.VendorParentID)
	assert.True(t, rec.CreatedDate.Equal(r.CreatedDate))
	assert.Equal(t, rec.MinServiceDate, r.MinServiceDate)
	require.Len(t, r.Assets, 2)
	assert.Equal(t, "CH-1", r.Assets[0].AssetID)
	assert.True(t, r.Assets[0].SelfService)
	assert.Equal(t, "BL-1", r.Assets[0].BaselineID)
	assert.Equal(t, []calendar.Date{calendar.NewDate(2025, time.January, 15), calendar.NewDate(2025, time.January, 16)}, r.Assets[0].ScheduledDates)
	assert.Equal(t, 3, r.Assets[1].Quantity)
	assert.Empty(t, r.Assets[1].ScheduledDates)
}

func TestRecords_RequestOrderAndReplace(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	created := time.Date(2025, time.January, 6, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveRecord(ctx, entitlement.Record{ID: "500A", CreatedDate: created, Assets: []entitlement.ChildAsset{{AssetID: "X"}}}))
	require.NoError(t, store.SaveRecord(ctx, entitlement.Record{ID: "500B", CreatedDate: created}))
	require.NoError(t, store.SaveRecord(ctx, entitlement.Record{ID: "500A", CreatedDate: created, Material: "Glass"}))

	got, err := store.LoadRecords(ctx, []entitlement.RecordID{"500B", "500A", "500B"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, entitlement.RecordID("500B"), got[0].ID)
	assert.Equal(t, "Glass", got[1].Material)
	assert.Empty(t, got[1].Assets)

	none, err := store.LoadRecords(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

// =============================================================================
// ENTITLEMENTS
// =============================================================================

func TestEntitlements_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	cutoff := 14
	e := entitlementFixture("ENT-1", "ACC-1")
	e.Start = calendar.NewDate(2025, time.January, 1)
	e.End = calendar.NewDate(2025, time.December, 31)
	e.CutoffHour = &cutoff
	e.CallWindow = &entitlement.CallWindow{Qualifier: entitlement.QualifierAfter, Time: calendar.NewClock(7, 30), Days: []time.Weekday{time.Monday}}
	e.GoldStandard = true
	e.Material = "Cardboard"
	require.NoError(t, store.SaveEntitlement(ctx, e))

	got, err := store.LoadEntitlements(ctx, entitlement.Criteria{AccountIDs: []string{"ACC-1"}, AsOf: calendar.NewDate(2025, time.June, 1)})
	require.NoError(t, err)
	require.Len(t, got, 1)

	g := got[0]
	assert.Equal(t, e.ID, g.ID)
	assert.True(t, e.Guarantee.Value.Equal(g.Guarantee.Value))
	assert.Equal(t, entitlement.GuaranteeHours, g.Guarantee.Category)
	require.NotNil(t, g.CutoffHour)
	assert.Equal(t, 14, *g.CutoffHour)
	assert.Equal(t, e.CallWindow, g.CallWindow)
	assert.Equal(t, e.Start, g.Start)
	assert.Equal(t, e.End, g.End)
	assert.True(t, g.GoldStandard)
	assert.False(t, g.Contractual)
	assert.Equal(t, "Cardboard", g.Material)
}

func TestEntitlements_PrefilterAndStableOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	expired := entitlementFixture("ENT-EXPIRED", "")
	expired.End = calendar.NewDate(2024, time.December, 31)
	draft := entitlementFixture("ENT-DRAFT", "")
	draft.Status = entitlement.StatusDraft

	for _, e := range []entitlement.Entitlement{
		entitlementFixture("ENT-IS-1", ""),
		entitlementFixture("ENT-ACC-1", "ACC-1"),
		entitlementFixture("ENT-ACC-2", "ACC-2"),
		expired,
		draft,
		entitlementFixture("ENT-IS-2", ""),
	} {
		require.NoError(t, store.SaveEntitlement(ctx, e))
	}

	// Updating keeps the original position.
	renamed := entitlementFixture("ENT-IS-1", "")
	renamed.Name = "renamed"
	require.NoError(t, store.SaveEntitlement(ctx, renamed))

	asOf := calendar.NewDate(2025, time.January, 6)
	got, err := store.LoadEntitlements(ctx, entitlement.Criteria{AccountIDs: []string{"ACC-1"}, AsOf: asOf})
	require.NoError(t, err)
	assert.Equal(t, []entitlement.EntitlementID{"ENT-IS-1", "ENT-ACC-1", "ENT-IS-2"}, entIDs(got))
	assert.Equal(t, "renamed", got[0].Name)

	industryOnly, err := store.LoadEntitlements(ctx, entitlement.Criteria{AsOf: asOf})
	require.NoError(t, err)
	assert.Equal(t, []entitlement.EntitlementID{"ENT-IS-1", "ENT-IS-2"}, entIDs(industryOnly))
}

// =============================================================================
// FIELD MAPPINGS, LOCATIONS, BUSINESS HOURS
// =============================================================================

func TestFieldMappings_ReplaceKeepsOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveFieldMappings(ctx, factory.DefaultFieldMappings()))
	got, err := store.LoadFieldMappings(ctx)
	require.NoError(t, err)
	assert.Equal(t, factory.DefaultFieldMappings(), got)

	short := []entitlement.FieldMapping{{Label: "Material", Band: "11", CaseField: "material", EntitlementField: "material"}}
	require.NoError(t, store.SaveFieldMappings(ctx, short))
	got, err = store.LoadFieldMappings(ctx)
	require.NoError(t, err)
	assert.Equal(t, short, got)
}

func TestLocations(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveLocation(ctx, sla.Location{ID: "LOC-1", UTCOffsetHours: -5, TimezoneID: "America/New_York"}))
	require.NoError(t, store.SaveLocation(ctx, sla.Location{ID: "LOC-1", UTCOffsetHours: -4, TimezoneID: "America/New_York"}))

	loc, err := store.LoadLocation(ctx, "LOC-1")
	require.NoError(t, err)
	assert.Equal(t, -4.0, loc.UTCOffsetHours)

	_, err = store.LoadLocation(ctx, "LOC-404")
	assert.ErrorIs(t, err, sla.ErrLocationNotFound)
}

func TestBusinessHours_DefaultAndSaved(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	bh, err := store.LoadBusinessHours(ctx)
	require.NoError(t, err)
	assert.Len(t, bh.Days, 5)

	custom := calendar.StandardBusinessHours()
	custom.ID = "saturdays"
	custom.Days[time.Saturday] = calendar.Window{Start: calendar.NewClock(9, 0), End: calendar.NewClock(12, 0)}
	custom.Holidays = []calendar.Holiday{{Date: calendar.NewDate(2025, time.December, 25), Name: "Christmas", Recurring: true}}
	require.NoError(t, store.SaveBusinessHours(ctx, custom))

	bh, err = store.LoadBusinessHours(ctx)
	require.NoError(t, err)
	assert.Equal(t, "saturdays", bh.ID)
	assert.True(t, bh.IsWithin(calendar.NewDate(2025, time.January, 11)))
	assert.False(t, bh.IsWithin(calendar.NewDate(2026, time.December, 25)))

	err = store.SaveBusinessHours(ctx, &calendar.BusinessHours{ID: "closed"})
	assert.ErrorIs(t, err, calendar.ErrInvalidCalendar)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveEntitlement(ctx, entitlementFixture("ENT-1", "")))
	require.NoError(t, store.Reset(ctx))

	got, err := store.LoadEntitlements(ctx, entitlement.Criteria{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

// =============================================================================
// RESOLVER INTEGRATION
// =============================================================================

func TestResolver_OverSQLite(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveFieldMappings(ctx, factory.DefaultFieldMappings()))

	rec := entitlement.Record{
		ID: "500A", AccountID: "ACC-1", LocationID: "LOC-1", Material: "Cardboard", CaseType: "Pickup",
		CreatedDate: time.Date(2025, time.January, 6, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveRecord(ctx, rec))

	customerOnly := entitlementFixture("ENT-CUST", "ACC-1")
	full := entitlementFixture("ENT-FULL", "ACC-1")
	full.LocationID = "LOC-1"
	full.Material = "Cardboard"
	full.CaseType = "Pickup"
	require.NoError(t, store.SaveEntitlement(ctx, customerOnly))
	require.NoError(t, store.SaveEntitlement(ctx, full))

	r := entitlement.NewResolver(store, entitlement.WithClock(func() time.Time { return rec.CreatedDate }))
	got, err := r.ResolvePrioritized(ctx, []entitlement.RecordID{"500A"})
	require.NoError(t, err)
	require.Contains(t, got, entitlement.RecordID("500A"))
	assert.Equal(t, entitlement.EntitlementID("ENT-FULL"), got["500A"].ID)
}

// =============================================================================
// ERROR PROPAGATION
// =============================================================================

func TestLoadEntitlements_QueryErrorPropagates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("disk I/O error")
	mock.ExpectQuery(`SELECT id, name, account_id`).WillReturnError(boom)

	store := sqlite.NewWithDB(db)
	_, err = store.LoadEntitlements(context.Background(), entitlement.Criteria{AccountIDs: []string{"ACC-1"}})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadFieldMappings_ScanErrorPropagates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"label", "band", "case_field", "quote_field", "entitlement_field"}).
		AddRow("Account", "01", "account_id", "account_id", "account_id").
		RowError(0, errors.New("row corrupted"))
	mock.ExpectQuery(`SELECT label, band`).WillReturnRows(rows)

	store := sqlite.NewWithDB(db)
	_, err = store.LoadFieldMappings(context.Background())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadLocation_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT utc_offset_hours`).WithArgs("LOC-1").WillReturnError(errors.New("locked"))

	store := sqlite.NewWithDB(db)
	_, err = store.LoadLocation(context.Background(), "LOC-1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, sla.ErrLocationNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func entIDs(ents []entitlement.Entitlement) []entitlement.EntitlementID {
	out := make([]entitlement.EntitlementID, 0, len(ents))
	for _, e := range ents {
		out = append(out, e.ID)
	}
	return out
}

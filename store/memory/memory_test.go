package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/entitlement-engine/calendar"
	"github.com/warp/entitlement-engine/entitlement"
	"github.com/warp/entitlement-engine/sla"
	"github.com/warp/entitlement-engine/store/memory"
)

func ent(id, account string, status entitlement.Status) entitlement.Entitlement {
	return entitlement.Entitlement{ID: entitlement.EntitlementID(id), AccountID: account, Status: status}
}

func TestLoadEntitlements_PrefiltersInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	// GIVEN: A mix of owned, unowned, draft and expired entitlements
	expired := ent("E-EXPIRED", "", entitlement.StatusApproved)
	expired.End = calendar.NewDate(2025, time.January, 1)
	for _, e := range []entitlement.Entitlement{
		ent("E-STD", "", entitlement.StatusApproved),
		ent("E-ACME", "ACC-ACME", entitlement.StatusApproved),
		ent("E-OTHER", "ACC-OTHER", entitlement.StatusApproved),
		ent("E-DRAFT", "ACC-ACME", entitlement.StatusDraft),
		expired,
		ent("E-ACME-2", "ACC-ACME", entitlement.StatusApproved),
	} {
		require.NoError(t, store.SaveEntitlement(ctx, e))
	}

	// WHEN: Loading for ACC-ACME after the expiry
	got, err := store.LoadEntitlements(ctx, entitlement.Criteria{
		AccountIDs: []string{"ACC-ACME"},
		AsOf:       calendar.NewDate(2025, time.January, 6),
	})
	require.NoError(t, err)

	// THEN: Only approved, unexpired, reachable entitlements remain, in order
	var ids []entitlement.EntitlementID
	for _, e := range got {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []entitlement.EntitlementID{"E-STD", "E-ACME", "E-ACME-2"}, ids)
}

func TestSaveEntitlement_ReplaceKeepsPosition(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.SaveEntitlement(ctx, ent("E-1", "", entitlement.StatusApproved)))
	require.NoError(t, store.SaveEntitlement(ctx, ent("E-2", "", entitlement.StatusApproved)))

	replaced := ent("E-1", "", entitlement.StatusApproved)
	replaced.Name = "renamed"
	require.NoError(t, store.SaveEntitlement(ctx, replaced))

	got, err := store.LoadEntitlements(ctx, entitlement.Criteria{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "renamed", got[0].Name)
	assert.Equal(t, entitlement.EntitlementID("E-2"), got[1].ID)
}

func TestSave_RequiresIDs(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	assert.Error(t, store.SaveRecord(ctx, entitlement.Record{}))
	assert.Error(t, store.SaveEntitlement(ctx, entitlement.Entitlement{}))
	assert.Error(t, store.SaveLocation(ctx, sla.Location{}))
}

func TestReset_ClearsEverything(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	// GIVEN: A populated store with a custom calendar
	hours := calendar.StandardBusinessHours()
	hours.ID = "custom"
	require.NoError(t, store.SaveBusinessHours(ctx, hours))
	require.NoError(t, store.SaveRecord(ctx, entitlement.Record{ID: "500A"}))
	require.NoError(t, store.SaveEntitlement(ctx, ent("E-1", "", entitlement.StatusApproved)))
	require.NoError(t, store.SaveLocation(ctx, sla.Location{ID: "LOC-1"}))
	require.NoError(t, store.SaveFieldMappings(ctx, []entitlement.FieldMapping{{}}))

	// WHEN: Resetting
	require.NoError(t, store.Reset(ctx))

	// THEN: Nothing remains and the calendar falls back to the standard one
	recs, err := store.LoadRecords(ctx, []entitlement.RecordID{"500A"})
	require.NoError(t, err)
	assert.Empty(t, recs)

	ents, err := store.LoadEntitlements(ctx, entitlement.Criteria{})
	require.NoError(t, err)
	assert.Empty(t, ents)

	mappings, err := store.LoadFieldMappings(ctx)
	require.NoError(t, err)
	assert.Empty(t, mappings)

	_, err = store.LoadLocation(ctx, "LOC-1")
	assert.True(t, errors.Is(err, sla.ErrLocationNotFound))

	got, err := store.LoadBusinessHours(ctx)
	require.NoError(t, err)
	assert.Equal(t, "default", got.ID)
}

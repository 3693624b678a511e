package submission

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openwis/form-registry/pkg/datastore"
	"github.com/openwis/form-registry/pkg/forms"
)

func TestCreateAndLoad_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	viewID := setupEnergyForm(t, db)
	m := NewManager(db)
	ctx := context.Background()

	obj, err := m.Create(ctx, viewID, energyValues(), 1, "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(obj.Name, "REG-ENERGY-"))
	assert.Equal(t, 1, obj.Revision)
	assert.Equal(t, datastore.StatusDraft, obj.Status)
	assert.True(t, obj.Active)
	assert.False(t, obj.CheckedOut)

	sub, err := m.Load(ctx, obj.ID)
	require.NoError(t, err)
	assert.Equal(t, "energy", sub.Schema.Name)

	v := sub.Values
	assert.Equal(t, "plant-a", v["facility"])
	assert.Equal(t, 12.5, v["consumption"])
	assert.Equal(t, true, v["renewable"])
	assert.Equal(t, int64(2), v["energy_scope"])
	assert.Equal(t, []any{int64(1), "custom blend"}, v["carriers"])

	meters, ok := v["meters"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, meters, 2)
	assert.Equal(t, "M-1", meters[0]["serial"])
	assert.Equal(t, 10.5, meters[0]["reading"])
	assert.Equal(t, "M-2", meters[1]["serial"])
	assert.Equal(t, 20.0, meters[1]["reading"])
	// each entry carries its row identity and its group id
	assert.NotEqual(t, meters[0]["id"], meters[1]["id"])
	assert.Equal(t, meters[0]["value_id"], meters[1]["value_id"])
	assert.Equal(t, obj.ID, meters[0]["obj_id"])
}

func TestCreateAndLoad_OrNullStates(t *testing.T) {
	db := newTestDB(t)
	viewID := setupEnergyForm(t, db)
	m := NewManager(db)
	ctx := context.Background()

	// explicit sentinel
	obj, err := m.Create(ctx, viewID, map[string]any{"grid_share": "N/A"}, 1, "")
	require.NoError(t, err)
	sub, err := m.Load(ctx, obj.ID)
	require.NoError(t, err)
	assert.Equal(t, "N/A", sub.Values["grid_share"])

	// real value clears the state
	obj2, err := m.Create(ctx, viewID, map[string]any{"grid_share": 0.4}, 1, "")
	require.NoError(t, err)
	sub2, err := m.Load(ctx, obj2.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.4, sub2.Values["grid_share"])

	// never answered falls back to the column default
	obj3, err := m.Create(ctx, viewID, map[string]any{"facility": "plant-c"}, 1, "")
	require.NoError(t, err)
	sub3, err := m.Load(ctx, obj3.ID)
	require.NoError(t, err)
	assert.Equal(t, "—", sub3.Values["grid_share"])
}

func TestCreate_EmptyStartsCheckedOut(t *testing.T) {
	db := newTestDB(t)
	viewID := setupEnergyForm(t, db)
	m := NewManager(db)
	ctx := context.Background()

	obj, err := m.Create(ctx, viewID, nil, 4, "ACME-2026-ENERGY")
	require.NoError(t, err)
	assert.Equal(t, "ACME-2026-ENERGY", obj.Name)
	assert.True(t, obj.CheckedOut)
	require.NotNil(t, obj.CheckedOutOn)

	sub, err := m.Load(ctx, obj.ID)
	require.NoError(t, err)
	assert.Empty(t, sub.Values)

	// first Update fills the reserved name and releases the checkout
	require.NoError(t, m.Update(ctx, obj.ID, energyValues(), 4))

	sub, err = m.Load(ctx, obj.ID)
	require.NoError(t, err)
	assert.Equal(t, "plant-a", sub.Values["facility"])
	assert.False(t, sub.Obj.CheckedOut)
	assert.Nil(t, sub.Obj.CheckedOutOn)
}

func TestUpdate_RejectsNonEmpty(t *testing.T) {
	db := newTestDB(t)
	viewID := setupEnergyForm(t, db)
	m := NewManager(db)
	ctx := context.Background()

	obj, err := m.Create(ctx, viewID, energyValues(), 1, "")
	require.NoError(t, err)

	err = m.Update(ctx, obj.ID, map[string]any{"facility": "plant-b"}, 1)
	assert.ErrorIs(t, err, ErrNotEmpty)
}

func TestCreate_Validation(t *testing.T) {
	db := newTestDB(t)
	viewID := setupEnergyForm(t, db)
	m := NewManager(db)
	ctx := context.Background()

	_, err := m.Create(ctx, viewID, map[string]any{"bogus": 1}, 1, "")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "bogus", ve.Field)

	_, err = m.Create(ctx, viewID, map[string]any{"energy_scope": 9}, 1, "")
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "energy_scope", ve.Field)

	_, err = m.Create(ctx, viewID, map[string]any{"carriers": []any{5}}, 1, "")
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "carriers", ve.Field)

	_, err = m.Create(ctx, viewID, map[string]any{"consumption": "a lot"}, 1, "")
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "consumption", ve.Field)

	_, err = m.Create(ctx, viewID, map[string]any{"renewable": "yes"}, 1, "")
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "renewable", ve.Field)

	// a failed create leaves no submission behind
	var count int64
	require.NoError(t, db.Model(&datastore.SubmissionObj{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreate_DistinctFormIDsAcrossSubmissions(t *testing.T) {
	db := newTestDB(t)
	viewID := setupEnergyForm(t, db)
	m := NewManager(db)
	ctx := context.Background()

	first, err := m.Create(ctx, viewID, energyValues(), 1, "")
	require.NoError(t, err)
	second, err := m.Create(ctx, viewID, energyValues(), 1, "")
	require.NoError(t, err)

	subA, err := m.Load(ctx, first.ID)
	require.NoError(t, err)
	subB, err := m.Load(ctx, second.ID)
	require.NoError(t, err)

	// group ids never collide between submissions sharing the tables
	metersA := subA.Values["meters"].([]map[string]any)
	metersB := subB.Values["meters"].([]map[string]any)
	assert.NotEqual(t, metersA[0]["value_id"], metersB[0]["value_id"])
	assert.Equal(t, "M-1", metersB[0]["serial"])
}

func TestLoad_NotFound(t *testing.T) {
	db := newTestDB(t)
	setupEnergyForm(t, db)
	m := NewManager(db)

	_, err := m.Load(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreate_ChoiceValidationWithSchemaCache(t *testing.T) {
	db := newTestDB(t)
	viewID := setupEnergyForm(t, db)
	ctx := context.Background()

	schemas := forms.NewSchemaCache(db)
	require.NoError(t, schemas.Refresh(ctx))
	m := NewManager(db).WithSchemaCache(schemas)

	// membership checks run against the snapshot
	obj, err := m.Create(ctx, viewID, energyValues(), 1, "")
	require.NoError(t, err)
	require.NotNil(t, obj)

	bad := energyValues()
	bad["energy_scope"] = 9
	var verr *ValidationError
	_, err = m.Create(ctx, viewID, bad, 1, "")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "energy_scope", verr.Field)

	bad = energyValues()
	bad["carriers"] = []any{7}
	_, err = m.Create(ctx, viewID, bad, 1, "")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "carriers", verr.Field)

	// a snapshot that has not seen the form yet falls back to the loaded
	// choice set
	stale := NewManager(db).WithSchemaCache(forms.NewSchemaCache(db))
	_, err = stale.Create(ctx, viewID, energyValues(), 1, "")
	require.NoError(t, err)
	bad = energyValues()
	bad["energy_scope"] = 9
	_, err = stale.Create(ctx, viewID, bad, 1, "")
	require.ErrorAs(t, err, &verr)
}

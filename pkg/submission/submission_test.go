package submission

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/openwis/form-registry/pkg/datastore"
	"github.com/openwis/form-registry/pkg/forms"
	"github.com/openwis/form-registry/pkg/schema"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, datastore.AutoMigrate(db))
	return db
}

// setupEnergyForm builds the test form and returns its active view id.
func setupEnergyForm(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	spec := &schema.CreateForm{
		Name:   "energy",
		UserID: 1,
		Attributes: []schema.CreateAttribute{
			{Name: "facility", Type: schema.TypeText},
			{Name: "consumption", Type: schema.TypeFloat},
			{Name: "renewable", Type: schema.TypeBool},
			{Name: "grid_share", Type: schema.TypeFloatOrNull},
			{
				Name: "energy_scope",
				Type: schema.TypeSingle,
				Choices: []schema.CreateChoice{
					{ChoiceID: 1, Value: "Scope 1"},
					{ChoiceID: 2, Value: "Scope 2"},
					{ChoiceID: 3, Value: "Scope 3"},
				},
			},
			{
				Name: "carriers",
				Type: schema.TypeMultiple,
				Choices: []schema.CreateChoice{
					{ChoiceID: 1, Value: "Electricity"},
					{ChoiceID: 2, Value: "Natural gas"},
				},
			},
			{
				Name: "meters",
				Type: schema.TypeForm,
				Form: &schema.CreateForm{
					Name:   "energy_meters",
					UserID: 1,
					Attributes: []schema.CreateAttribute{
						{Name: "serial", Type: schema.TypeText},
						{Name: "reading", Type: schema.TypeFloat},
					},
				},
			},
		},
	}
	_, err := forms.NewFormBuilder(db).Build(context.Background(), spec)
	require.NoError(t, err)

	var view datastore.TableView
	require.NoError(t, db.Where("name = ?", "energy_view").First(&view).Error)
	return view.ID
}

// energyValues is a full value tree exercising every attribute kind.
func energyValues() map[string]any {
	return map[string]any{
		"facility":     "plant-a",
		"consumption":  12.5,
		"renewable":    true,
		"grid_share":   "N/A",
		"energy_scope": 2,
		"carriers":     []any{1, "custom blend"},
		"meters": []any{
			map[string]any{"serial": "M-1", "reading": 10.5},
			map[string]any{"serial": "M-2", "reading": 20.0},
		},
	}
}

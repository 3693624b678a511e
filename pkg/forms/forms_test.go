package forms

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/openwis/form-registry/pkg/datastore"
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

// emissionsSpec covers every attribute kind: primitives, or-null, choices,
// multiple choice and a nested sub-form.
func emissionsSpec() *schema.CreateForm {
	return &schema.CreateForm{
		Name:        "emissions",
		Description: "annual emissions disclosure",
		UserID:      7,
		Attributes: []schema.CreateAttribute{
			{Name: "section_header", Type: schema.TypeLabel, Prompts: []schema.CreatePrompt{{Value: "Emissions"}}},
			{Name: "site", Type: schema.TypeText, Prompts: []schema.CreatePrompt{{Value: "Site"}}},
			{Name: "amount", Type: schema.TypeFloat},
			{Name: "headcount", Type: schema.TypeIntOrNull},
			{Name: "verified", Type: schema.TypeBool},
			{Name: "reported_at", Type: schema.TypeDatetime},
			{
				Name: "scope",
				Type: schema.TypeSingle,
				Choices: []schema.CreateChoice{
					{ChoiceID: 1, Value: "Scope 1"},
					{ChoiceID: 2, Value: "Scope 2"},
					{ChoiceID: 3, Value: "Scope 3"},
				},
			},
			{
				Name: "fuels",
				Type: schema.TypeMultiple,
				Choices: []schema.CreateChoice{
					{ChoiceID: 1, Value: "Diesel"},
					{ChoiceID: 2, Value: "Petrol"},
				},
			},
			{
				Name: "sources",
				Type: schema.TypeForm,
				Form: &schema.CreateForm{
					Name:   "emission_sources",
					UserID: 7,
					Attributes: []schema.CreateAttribute{
						{Name: "source_name", Type: schema.TypeText},
						{Name: "quantity", Type: schema.TypeFloat},
					},
				},
			},
		},
	}
}

package datastore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/openwis/form-registry/pkg/datastore"
	"github.com/openwis/form-registry/pkg/forms"
	"github.com/openwis/form-registry/pkg/schema"
	"github.com/openwis/form-registry/pkg/submission"
)

// TestPostgresIntegration runs the full build/submit/load cycle against a real
// postgres instance, covering the postgres DDL path and the null_state enum.
// It needs a docker daemon; set POSTGRES_INTEGRATION=1 to enable it.
func TestPostgresIntegration(t *testing.T) {
	if os.Getenv("POSTGRES_INTEGRATION") == "" {
		t.Skip("set POSTGRES_INTEGRATION=1 to run postgres integration tests")
	}
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("registry"),
		tcpostgres.WithUsername("registry"),
		tcpostgres.WithPassword("registry"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(ctx) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := datastore.Open("postgres", dsn)
	require.NoError(t, err)
	require.NoError(t, datastore.Bootstrap(db))
	require.NoError(t, datastore.AutoMigrate(db))

	// bootstrap must be idempotent across restarts
	require.NoError(t, datastore.Bootstrap(db))

	builder := forms.NewFormBuilder(db)
	_, err = builder.Build(ctx, &schema.CreateForm{
		Name:   "water",
		UserID: 1,
		Attributes: []schema.CreateAttribute{
			{Name: "withdrawal", Type: schema.TypeFloat},
			{Name: "discharge", Type: schema.TypeFloatOrNull},
			{
				Name: "basins",
				Type: schema.TypeForm,
				Form: &schema.CreateForm{
					Name:   "water_basins",
					UserID: 1,
					Attributes: []schema.CreateAttribute{
						{Name: "basin_name", Type: schema.TypeText},
					},
				},
			},
		},
	})
	require.NoError(t, err)

	var view struct{ ID int64 }
	require.NoError(t, db.Table("reg_table_view").
		Where("name = ?", "water_view").Select("id").Scan(&view).Error)

	m := submission.NewManager(db)
	obj, err := m.Create(ctx, view.ID, map[string]any{
		"withdrawal": 120.5,
		"discharge":  "N/A",
		"basins": []any{
			map[string]any{"basin_name": "Rhine"},
		},
	}, 1, "")
	require.NoError(t, err)

	sub, err := m.Load(ctx, obj.ID)
	require.NoError(t, err)
	assert.Equal(t, 120.5, sub.Values["withdrawal"])
	assert.Equal(t, "N/A", sub.Values["discharge"])
	basins := sub.Values["basins"].([]map[string]any)
	require.Len(t, basins, 1)
	assert.Equal(t, "Rhine", basins[0]["basin_name"])

	// the sentinel column uses the enum type created by Bootstrap
	var colType string
	require.NoError(t, db.Raw(`SELECT udt_name FROM information_schema.columns
		WHERE table_name = 'water' AND column_name = 'discharge__state'`).
		Scan(&colType).Error)
	assert.Equal(t, "null_state", colType)

	rm := submission.NewRevisionManager(db)
	next, err := rm.Update(ctx, obj.ID, submission.UpdateRequest{
		NewValues:        map[string]any{"withdrawal": 130.0},
		Restatements:     map[string]string{"withdrawal": "meter audit"},
		CreateSubmission: true,
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, next.Revision)

	rows, err := rm.Restatements(ctx, next.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 120.5, rows[0].OldValue.Data)
}

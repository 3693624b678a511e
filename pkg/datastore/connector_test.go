package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLiteAndMigrate(t *testing.T) {
	db, err := Open("sqlite", ":memory:")
	require.NoError(t, err)

	require.NoError(t, AutoMigrate(db))
	for _, table := range []string{
		"reg_table_def", "reg_table_view", "reg_column_def", "reg_column_view",
		"reg_choice", "reg_prompt", "reg_submission", "reg_restatement",
	} {
		assert.True(t, db.Migrator().HasTable(table), "table %s", table)
	}

	// sqlite needs no database-level objects
	require.NoError(t, Bootstrap(db))
}

func TestOpenUnsupportedType(t *testing.T) {
	_, err := Open("oracle", "dsn")
	assert.Error(t, err)
}

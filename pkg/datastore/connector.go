package datastore

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the registry database. Supported types are "postgres",
// "mysql" and "sqlite" (dsn ":memory:" gives an in-memory database).
func Open(dbType, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	var dialector gorm.Dialector
	switch dbType {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %q", dbType)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dbType, err)
	}
	return db, nil
}

// AutoMigrate creates or updates the fixed metadata tables. Runtime data
// tables are not touched here; the form builder creates those per form.
func AutoMigrate(db *gorm.DB) error {
	models := []any{
		&TableDef{},
		&TableView{},
		&ColumnDef{},
		&ColumnView{},
		&Choice{},
		&AttributePrompt{},
		&SubmissionObj{},
		&Restatement{},
	}
	for _, m := range models {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("auto-migrate metadata tables: %w", err)
		}
	}
	return nil
}

// Bootstrap registers database-level support objects the generated tables
// depend on. On Postgres this creates the null_state enum used by sentinel
// state columns, guarded so repeated startup is harmless. Other dialects
// store states as plain text and need no setup.
func Bootstrap(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	script := `DO $$ BEGIN ` +
		`PERFORM 'null_state'::regtype; ` +
		`EXCEPTION WHEN undefined_object THEN ` +
		`CREATE TYPE null_state AS ENUM ('-', '—', 'N/A'); ` +
		`END $$;`
	if err := db.Exec(script).Error; err != nil {
		return fmt.Errorf("bootstrap null_state type: %w", err)
	}
	return nil
}

package forms

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/openwis/form-registry/pkg/schema"
)

// QuoteIdent quotes a SQL identifier for the dialect.
func QuoteIdent(dialect, name string) string {
	if dialect == schema.DialectMySQL {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}

// dataTableDDL holds the statements that materialize one form's data table:
// the CREATE TABLE, its indexes, and the SET DEFAULT statements for or-null
// state columns.
type dataTableDDL struct {
	createTable  string
	indexes      []string
	alterDefault []string
}

// buildDataTableDDL generates the DDL for a form's runtime data table. Every
// table carries an id primary key and an indexed obj_id; heritable tables add
// an indexed value_id linking each row to the hosting value in the parent
// form. One column is added per attribute that materializes storage, and
// or-null attributes add a companion state column defaulting to the long-dash
// "unanswered" sentinel.
func buildDataTableDDL(dialect, tableName string, attrs []schema.CreateAttribute, heritable bool) dataTableDDL {
	q := func(s string) string { return QuoteIdent(dialect, s) }

	var pk, intType string
	switch dialect {
	case schema.DialectSQLite:
		pk = "INTEGER PRIMARY KEY AUTOINCREMENT"
		intType = "INTEGER"
	case schema.DialectMySQL:
		pk = "BIGINT AUTO_INCREMENT PRIMARY KEY"
		intType = "BIGINT"
	default:
		pk = "BIGSERIAL PRIMARY KEY"
		intType = "BIGINT"
	}

	ifNotExists := "IF NOT EXISTS "
	if dialect == schema.DialectMySQL {
		// mysql has no IF NOT EXISTS for indexes; applyDDL tolerates the
		// duplicate error instead.
		ifNotExists = ""
	}

	cols := []string{
		fmt.Sprintf("%s %s", q(FieldID), pk),
		fmt.Sprintf("%s %s NOT NULL", q(FieldObjID), intType),
	}
	indexes := []string{
		fmt.Sprintf("CREATE INDEX %s%s ON %s (%s)",
			ifNotExists, q(indexName(tableName, FieldObjID)), q(tableName), q(FieldObjID)),
	}
	if heritable {
		cols = append(cols, fmt.Sprintf("%s %s", q(FieldValueID), intType))
		indexes = append(indexes, fmt.Sprintf("CREATE INDEX %s%s ON %s (%s)",
			ifNotExists, q(indexName(tableName, FieldValueID)), q(tableName), q(FieldValueID)))
	}

	var alters []string
	for _, attr := range attrs {
		ct, ok := schema.ColumnTypeFor(attr.Type, dialect)
		if !ok {
			continue
		}
		cols = append(cols, fmt.Sprintf("%s %s", q(attr.Name), ct.SQLType))
		if ct.HasState {
			state := schema.StateColumn(attr.Name)
			cols = append(cols, fmt.Sprintf("%s %s DEFAULT '%s'",
				q(state), schema.StateColumnType(dialect), schema.LongDash))
			if dialect != schema.DialectSQLite {
				// sqlite cannot alter column defaults; there the inline
				// default above is the whole story.
				alters = append(alters, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT '%s'",
					q(tableName), q(state), schema.LongDash))
			}
		}
	}

	create := fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", q(tableName), strings.Join(cols, ",\n  "))
	return dataTableDDL{createTable: create, indexes: indexes, alterDefault: alters}
}

// applyDDL executes the table DDL on the session. Index creation tolerates
// already-exists failures (mysql has no IF NOT EXISTS for indexes); table
// creation and default statements surface every error.
func applyDDL(tx *gorm.DB, ddl dataTableDDL) error {
	if err := tx.Exec(ddl.createTable).Error; err != nil {
		return fmt.Errorf("create data table: %w", err)
	}
	for _, stmt := range ddl.indexes {
		if err := tx.Exec(stmt).Error; err != nil {
			e := strings.ToLower(err.Error())
			if strings.Contains(e, "already exists") || strings.Contains(e, "duplicate") {
				continue
			}
			return fmt.Errorf("create index: %w", err)
		}
	}
	for _, stmt := range ddl.alterDefault {
		if err := tx.Exec(stmt).Error; err != nil {
			return fmt.Errorf("set sentinel default: %w", err)
		}
	}
	return nil
}

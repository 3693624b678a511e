package schema

// Dialect names as reported by the GORM dialector.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
)

// StateSuffix is appended to an or-null attribute's column name to form its
// companion sentinel-state column. Attribute names carrying this suffix are
// rejected by the builder so generated names cannot collide with user names.
const StateSuffix = "__state"

// ColumnType is the storage mapping of one attribute type: the SQL type of
// its value column, whether the attribute materializes a column at all, and
// whether a companion state column is required (or-null variants).
type ColumnType struct {
	SQLType  string
	HasState bool
}

// ColumnTypeFor returns the storage column type for an attribute type under
// the given SQL dialect. The second return is false for types that do not
// materialize a data column (label). Choice, file and form references are
// stored as integers; or-null variants store their base type plus a state
// column.
func ColumnTypeFor(t AttributeType, dialect string) (ColumnType, bool) {
	intType := "BIGINT"
	floatType := "DOUBLE PRECISION"
	timeType := "TIMESTAMP"
	if dialect == DialectSQLite {
		intType = "INTEGER"
		floatType = "REAL"
	}
	if dialect == DialectMySQL {
		floatType = "DOUBLE"
		timeType = "DATETIME"
	}

	switch t {
	case TypeLabel:
		return ColumnType{}, false
	case TypeText:
		return ColumnType{SQLType: "TEXT"}, true
	case TypeBool:
		return ColumnType{SQLType: "BOOLEAN"}, true
	case TypeInt, TypeSingle, TypeMultiple, TypeForm, TypeFile:
		return ColumnType{SQLType: intType}, true
	case TypeFloat:
		return ColumnType{SQLType: floatType}, true
	case TypeDatetime:
		return ColumnType{SQLType: timeType}, true
	case TypeIntOrNull, TypeFormOrNull, TypeFileOrNull:
		return ColumnType{SQLType: intType, HasState: true}, true
	case TypeTextOrNull:
		return ColumnType{SQLType: "TEXT", HasState: true}, true
	case TypeFloatOrNull:
		return ColumnType{SQLType: floatType, HasState: true}, true
	case TypeBoolOrNull:
		return ColumnType{SQLType: "BOOLEAN", HasState: true}, true
	}
	return ColumnType{}, false
}

// StateColumnType returns the SQL type of the sentinel-state companion
// column. Postgres uses the registered null_state enum; other dialects fall
// back to plain text.
func StateColumnType(dialect string) string {
	if dialect == DialectPostgres {
		return "null_state"
	}
	return "TEXT"
}

// StateColumn returns the name of the sentinel-state companion column for an
// or-null attribute.
func StateColumn(attr string) string {
	return attr + StateSuffix
}

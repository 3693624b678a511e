// Package forms implements the schema-to-table compiler (form builder) and
// its inverse (form reader). A form specification is compiled into metadata
// rows plus one runtime data table per form level; the reader reconstructs
// the full nested specification from those rows.
package forms

import (
	"fmt"
	"strings"

	"github.com/openwis/form-registry/pkg/schema"
)

// Bookkeeping column names present in every data table. They are reserved:
// user attributes may not use them.
const (
	FieldID      = "id"
	FieldObjID   = "obj_id"
	FieldValueID = "value_id"
)

// HeritableSuffix marks the data table of a sub-form.
const HeritableSuffix = "_heritable"

// maxIdentifier is the Postgres identifier length limit; generated index
// names truncate the table name to stay below it.
const maxIdentifier = 63

// ReservedFields holds the bookkeeping column names.
var ReservedFields = map[string]struct{}{
	FieldID:      {},
	FieldObjID:   {},
	FieldValueID: {},
}

// IsReservedField reports whether name collides with a bookkeeping column or
// the generated sentinel-state column namespace.
func IsReservedField(name string) bool {
	if _, ok := ReservedFields[name]; ok {
		return true
	}
	return strings.HasSuffix(name, schema.StateSuffix)
}

// DataTableName returns the runtime data table name for a form.
func DataTableName(formName string, heritable bool) string {
	if heritable {
		return formName + HeritableSuffix
	}
	return formName
}

// indexName builds an index identifier <table>_<field>, truncating the table
// part so the whole name fits the identifier limit.
func indexName(table, field string) string {
	budget := maxIdentifier - len(field) - 1
	if len(table) > budget {
		table = table[:budget]
	}
	return fmt.Sprintf("%s_%s", table, field)
}

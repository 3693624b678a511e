package submission

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/openwis/form-registry/pkg/forms"
	"github.com/openwis/form-registry/pkg/schema"
)

// loadValues reconstructs the nested value tree of one submission. Each data
// table is queried once for the whole submission; rows are then grouped in
// memory by value_id, so query count is proportional to nesting depth.
func loadValues(tx *gorm.DB, fs *forms.FormSchema, objID int64) (map[string]any, error) {
	l := &loader{tx: tx, objID: objID, cache: map[string][]map[string]any{}}
	rows, err := l.tableRows(fs.TableName, fs.Heritable)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return map[string]any{}, nil
	}
	return l.loadLevel(fs, rows[0])
}

type loader struct {
	tx    *gorm.DB
	objID int64
	cache map[string][]map[string]any
}

// tableRows returns every row of a data table belonging to the submission.
// Heritable tables come back newest group first, so sibling entries keep a
// stable order when assembled.
func (l *loader) tableRows(table string, heritable bool) ([]map[string]any, error) {
	if rows, ok := l.cache[table]; ok {
		return rows, nil
	}
	order := forms.FieldID
	if heritable {
		order = forms.FieldValueID + " DESC, " + forms.FieldID
	}
	var rows []map[string]any
	if err := l.tx.Table(table).Where("obj_id = ?", l.objID).
		Order(order).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load rows of %s: %w", table, err)
	}
	l.cache[table] = rows
	return rows, nil
}

// loadLevel converts one stored row into its wire shape, recursing into
// hosted sub-form groups.
func (l *loader) loadLevel(fs *forms.FormSchema, row map[string]any) (map[string]any, error) {
	out := map[string]any{}
	for _, field := range []string{forms.FieldID, forms.FieldObjID, forms.FieldValueID} {
		if v, ok := row[field]; ok {
			if n, isInt := intValue(v); isInt {
				out[field] = n
			}
		}
	}

	for i := range fs.Attributes {
		attr := &fs.Attributes[i]
		if attr.Type == schema.TypeLabel {
			continue
		}

		if attr.Type.OrNull() {
			if s, ok := row[schema.StateColumn(attr.Name)].(string); ok && s != "" {
				out[attr.Name] = s
				continue
			}
		}

		raw, present := row[attr.Name]
		if !present || raw == nil {
			out[attr.Name] = nil
			continue
		}

		switch attr.Type {
		case schema.TypeMultiple:
			gid, ok := intValue(raw)
			if !ok {
				return nil, fmt.Errorf("attribute %q: bad form id %v", attr.Name, raw)
			}
			table := forms.DataTableName(attr.Name+forms.MultipleFormSuffix, true)
			rows, err := l.groupRows(table, gid)
			if err != nil {
				return nil, err
			}
			converted, err := FormToMultiple(rows, attr.Name)
			if err != nil {
				return nil, fmt.Errorf("attribute %q: %w", attr.Name, err)
			}
			out[attr.Name] = converted

		case schema.TypeForm, schema.TypeFormOrNull:
			gid, ok := intValue(raw)
			if !ok {
				return nil, fmt.Errorf("attribute %q: bad form id %v", attr.Name, raw)
			}
			rows, err := l.groupRows(attr.Form.TableName, gid)
			if err != nil {
				return nil, err
			}
			entries := make([]map[string]any, 0, len(rows))
			for _, r := range rows {
				entry, err := l.loadLevel(attr.Form, r)
				if err != nil {
					return nil, err
				}
				entries = append(entries, entry)
			}
			out[attr.Name] = entries

		default:
			out[attr.Name] = normalizeValue(attr.Type, raw)
		}
	}
	return out, nil
}

// groupRows returns the child rows hosted under one form id.
func (l *loader) groupRows(table string, gid int64) ([]map[string]any, error) {
	rows, err := l.tableRows(table, true)
	if err != nil {
		return nil, err
	}
	var group []map[string]any
	for _, r := range rows {
		if v, ok := intValue(r[forms.FieldValueID]); ok && v == gid {
			group = append(group, r)
		}
	}
	return group, nil
}

// normalizeValue maps driver representations back to wire types: booleans
// arrive as integers from sqlite, floats may arrive as integers when whole,
// timestamps come back formatted.
func normalizeValue(t schema.AttributeType, v any) any {
	switch t {
	case schema.TypeBool, schema.TypeBoolOrNull:
		switch b := v.(type) {
		case bool:
			return b
		case int64:
			return b != 0
		}
	case schema.TypeFloat, schema.TypeFloatOrNull:
		switch f := v.(type) {
		case float64:
			return f
		case int64:
			return float64(f)
		}
	case schema.TypeInt, schema.TypeIntOrNull, schema.TypeSingle,
		schema.TypeFile, schema.TypeFileOrNull:
		if n, ok := intValue(v); ok {
			return n
		}
	case schema.TypeDatetime:
		if ts, ok := v.(time.Time); ok {
			return ts.UTC().Format(time.RFC3339)
		}
	}
	return v
}

package submission

import (
	"fmt"

	"github.com/openwis/form-registry/pkg/forms"
)

// FreeTextSentinel marks a stored multiple-choice row as free text rather
// than a catalog choice.
const FreeTextSentinel int64 = -1

// intValue normalizes the numeric representations that reach the converter:
// native ints from callers, int64 from the database, float64 from JSON
// decoding. Non-integral floats are not ints.
func intValue(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

// MultipleToForm converts a multiple-choice value list into storage rows for
// the attribute's backing sub-form. Integers become catalog-choice rows,
// non-empty strings become free-text rows, anything else is dropped.
func MultipleToForm(values []any, attr string) []map[string]any {
	intField := attr + forms.MultipleIntSuffix
	textField := attr + forms.MultipleTextSuffix

	out := make([]map[string]any, 0, len(values))
	for _, v := range values {
		if n, ok := intValue(v); ok {
			out = append(out, map[string]any{intField: n, textField: ""})
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			out = append(out, map[string]any{intField: FreeTextSentinel, textField: s})
		}
	}
	return out
}

// FormToMultiple is the inverse of MultipleToForm: each stored row yields its
// choice id, or its free text when the int field carries the sentinel.
// Bookkeeping fields are skipped; any other unrecognized key is a
// data-integrity error.
func FormToMultiple(rows []map[string]any, attr string) ([]any, error) {
	intField := attr + forms.MultipleIntSuffix
	textField := attr + forms.MultipleTextSuffix

	out := make([]any, 0, len(rows))
	for _, row := range rows {
		for key := range row {
			switch key {
			case intField, textField,
				forms.FieldID, forms.FieldObjID, forms.FieldValueID, "prompt":
			default:
				return nil, fmt.Errorf("%w: %s", ErrUnexpectedField, key)
			}
		}
		if n, ok := intValue(row[intField]); ok && n != FreeTextSentinel {
			out = append(out, n)
			continue
		}
		if s, ok := row[textField].(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

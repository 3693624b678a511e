// Package schema defines the attribute type system and the wire-level form
// specification consumed by the form builder. Specifications are validated
// against a JSON Schema before they reach this package; the types here assume
// well-formed input and enforce only the invariants the builder depends on.
package schema

// AttributeType is the closed set of semantic attribute types a form
// specification may use.
type AttributeType string

const (
	TypeLabel    AttributeType = "label"
	TypeText     AttributeType = "text"
	TypeBool     AttributeType = "bool"
	TypeInt      AttributeType = "int"
	TypeFloat    AttributeType = "float"
	TypeDatetime AttributeType = "datetime"
	TypeSingle   AttributeType = "single"
	TypeMultiple AttributeType = "multiple"
	TypeForm     AttributeType = "form"
	TypeFile     AttributeType = "file"

	TypeFormOrNull  AttributeType = "form_or_null"
	TypeBoolOrNull  AttributeType = "bool_or_null"
	TypeTextOrNull  AttributeType = "text_or_null"
	TypeFloatOrNull AttributeType = "float_or_null"
	TypeIntOrNull   AttributeType = "int_or_null"
	TypeFileOrNull  AttributeType = "file_or_null"
)

// PrimitiveTypes are the attribute types handled by the primitive builder and
// reader: they materialize (at most) one plainly-typed storage column and
// carry no choices or sub-forms.
var PrimitiveTypes = []AttributeType{
	TypeLabel,
	TypeText,
	TypeBool,
	TypeInt,
	TypeFloat,
	TypeDatetime,
}

// Valid reports whether t is a member of the closed attribute type enum.
func (t AttributeType) Valid() bool {
	switch t {
	case TypeLabel, TypeText, TypeBool, TypeInt, TypeFloat, TypeDatetime,
		TypeSingle, TypeMultiple, TypeForm, TypeFile,
		TypeFormOrNull, TypeBoolOrNull, TypeTextOrNull, TypeFloatOrNull,
		TypeIntOrNull, TypeFileOrNull:
		return true
	}
	return false
}

// IsPrimitive reports whether t is one of PrimitiveTypes.
func (t AttributeType) IsPrimitive() bool {
	for _, p := range PrimitiveTypes {
		if t == p {
			return true
		}
	}
	return false
}

// OrNull reports whether t is an "or-null" variant, i.e. a tri-state type
// whose storage carries an explicit sentinel state alongside the value.
func (t AttributeType) OrNull() bool {
	switch t {
	case TypeFormOrNull, TypeBoolOrNull, TypeTextOrNull, TypeFloatOrNull,
		TypeIntOrNull, TypeFileOrNull:
		return true
	}
	return false
}

// Recursive reports whether values of t fan out into rows of a nested
// sub-form table during submission writes and reads.
func (t AttributeType) Recursive() bool {
	switch t {
	case TypeForm, TypeFormOrNull, TypeMultiple:
		return true
	}
	return false
}

// NullState is the explicit "not a value" sentinel stored for or-null
// attributes. It distinguishes "not yet answered" (the LongDash default)
// from an explicit "not applicable", neither of which is SQL NULL at the
// wire level.
type NullState string

const (
	Dash          NullState = "-"
	LongDash      NullState = "—"
	NotApplicable NullState = "N/A"
)

// NullStates lists all valid sentinel states.
var NullStates = []NullState{Dash, LongDash, NotApplicable}

// IsNullState reports whether v is one of the sentinel strings.
func IsNullState(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	for _, ns := range NullStates {
		if s == string(ns) {
			return true
		}
	}
	return false
}

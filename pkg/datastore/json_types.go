package datastore

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap is a custom GORM type for map[string]any stored as JSON text.
type JSONMap map[string]any

// Scan implements the sql.Scanner interface for JSONMap.
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for JSONMap: %T", value)
	}
	return json.Unmarshal(bytes, m)
}

// Value implements the driver.Valuer interface for JSONMap.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// JSONSlice is a custom GORM type for []map[string]any stored as JSON text.
// It holds constraint rule lists.
type JSONSlice []map[string]any

// Scan implements the sql.Scanner interface for JSONSlice.
func (s *JSONSlice) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for JSONSlice: %T", value)
	}
	return json.Unmarshal(bytes, s)
}

// Value implements the driver.Valuer interface for JSONSlice.
func (s JSONSlice) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// JSONValue is a custom GORM type holding one JSON-encoded value of any
// shape. Restatements use it to persist old/new field values.
type JSONValue struct {
	Data any
}

// Scan implements the sql.Scanner interface for JSONValue.
func (v *JSONValue) Scan(value any) error {
	if value == nil {
		v.Data = nil
		return nil
	}
	var bytes []byte
	switch t := value.(type) {
	case string:
		bytes = []byte(t)
	case []byte:
		bytes = t
	default:
		return fmt.Errorf("unsupported type for JSONValue: %T", value)
	}
	return json.Unmarshal(bytes, &v.Data)
}

// MarshalJSON renders the wrapped value directly.
func (v JSONValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Data)
}

// UnmarshalJSON wraps the decoded value.
func (v *JSONValue) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &v.Data)
}

// Value implements the driver.Valuer interface for JSONValue.
func (v JSONValue) Value() (driver.Value, error) {
	if v.Data == nil {
		return nil, nil
	}
	b, err := json.Marshal(v.Data)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

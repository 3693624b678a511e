package submission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultipleToForm(t *testing.T) {
	rows := MultipleToForm([]any{1, "custom blend", 2}, "carriers")
	require.Len(t, rows, 3)
	assert.Equal(t, map[string]any{"carriers_int": int64(1), "carriers_text": ""}, rows[0])
	assert.Equal(t, map[string]any{"carriers_int": FreeTextSentinel, "carriers_text": "custom blend"}, rows[1])
	assert.Equal(t, map[string]any{"carriers_int": int64(2), "carriers_text": ""}, rows[2])
}

func TestMultipleToForm_DropsUnusable(t *testing.T) {
	// empty strings and non-integral values carry no selection
	rows := MultipleToForm([]any{"", 1.5, nil, true}, "carriers")
	assert.Empty(t, rows)

	// JSON-decoded whole floats are choice ids
	rows = MultipleToForm([]any{float64(2)}, "carriers")
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0]["carriers_int"])
}

func TestFormToMultiple(t *testing.T) {
	rows := []map[string]any{
		{"carriers_int": int64(1), "carriers_text": "", "id": int64(11), "obj_id": int64(3), "value_id": int64(9)},
		{"carriers_int": FreeTextSentinel, "carriers_text": "custom blend"},
	}
	values, err := FormToMultiple(rows, "carriers")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), "custom blend"}, values)
}

func TestFormToMultiple_UnexpectedField(t *testing.T) {
	rows := []map[string]any{
		{"carriers_int": int64(1), "carriers_text": "", "stray": "x"},
	}
	_, err := FormToMultiple(rows, "carriers")
	assert.ErrorIs(t, err, ErrUnexpectedField)
}

func TestConverterRoundTrip(t *testing.T) {
	in := []any{1, "custom blend", 2}
	out, err := FormToMultiple(MultipleToForm(in, "carriers"), "carriers")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), "custom blend", int64(2)}, out)
}

func TestIntValue(t *testing.T) {
	for _, v := range []any{7, int32(7), int64(7), float64(7)} {
		n, ok := intValue(v)
		assert.True(t, ok)
		assert.Equal(t, int64(7), n)
	}
	_, ok := intValue(7.5)
	assert.False(t, ok)
	_, ok = intValue("7")
	assert.False(t, ok)
}

package quality

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAny(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		input    any
		wantKind Kind
		wantStr  string
	}{
		{"nil", nil, KindNull, ""},
		{"bool", true, KindBool, "true"},
		{"string", "abc", KindText, "abc"},
		{"int", 42, KindNumber, "42"},
		{"int64", int64(-7), KindNumber, "-7"},
		{"float", 2.5, KindNumber, "2.5"},
		{"json number keeps literal", json.Number("1.50"), KindNumber, "1.50"},
		{"time", ts, KindTime, "2024-05-01T12:00:00Z"},
		{"nil time pointer", (*time.Time)(nil), KindNull, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := FromAny(tt.input)
			assert.Equal(t, tt.wantKind, v.Kind())
			assert.Equal(t, tt.wantStr, v.String())
		})
	}
}

func TestValue_IsBlank(t *testing.T) {
	assert.True(t, Null().IsBlank())
	assert.True(t, Text("").IsBlank())
	assert.True(t, Text("  \t").IsBlank())
	assert.False(t, Text(" x ").IsBlank())
	assert.False(t, Number(0).IsBlank())
	assert.False(t, Bool(false).IsBlank())
}

func TestValue_GroupKeySeparatesKinds(t *testing.T) {
	assert.NotEqual(t, FromAny(1).groupKey(), Text("1").groupKey())
	assert.Equal(t, Text("x").groupKey(), Text("x").groupKey())
}

func TestValue_JSON(t *testing.T) {
	var row Row
	err := json.Unmarshal([]byte(`{"a":1.50,"b":"x","c":null,"d":true}`), &row)
	require.NoError(t, err)

	assert.Equal(t, KindNumber, row["a"].Kind())
	assert.Equal(t, "1.50", row["a"].String())
	assert.Equal(t, KindText, row["b"].Kind())
	assert.True(t, row["c"].IsNull())
	assert.Equal(t, KindBool, row["d"].Kind())

	out, err := json.Marshal(row["a"])
	require.NoError(t, err)
	assert.Equal(t, "1.50", string(out))

	out, err = json.Marshal(Null())
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestValue_UnmarshalRejectsComposite(t *testing.T) {
	var row Row
	assert.Error(t, json.Unmarshal([]byte(`{"a":{"nested":1}}`), &row))
	assert.Error(t, json.Unmarshal([]byte(`{"a":[1,2]}`), &row))
}

func TestRowFromMap(t *testing.T) {
	row := RowFromMap(map[string]any{"n": 3, "s": "x", "z": nil})
	assert.Len(t, row, 3)
	assert.Equal(t, "3", row["n"].String())
	assert.True(t, row["z"].IsNull())
}

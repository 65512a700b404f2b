package sqlite

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/flipstore/pkg/types"
)

func TestFormatTimeSortsChronologically(t *testing.T) {
	early := time.Date(2024, 1, 1, 0, 0, 0, 5, time.UTC)
	late := time.Date(2024, 1, 1, 0, 0, 0, 40, time.UTC)
	plusTwo := time.FixedZone("plus2", 2*3600)

	assert.Less(t, formatTime(early), formatTime(late))
	assert.Equal(t, formatTime(early), formatTime(early.In(plusTwo)))

	got, err := parseTime(formatTime(late))
	require.NoError(t, err)
	assert.Equal(t, late, got)
}

func TestNullableTime(t *testing.T) {
	assert.Nil(t, nullableTime(nil))

	got, err := parseNullableTime(sql.NullString{})
	require.NoError(t, err)
	assert.Nil(t, got)

	now := baseTime
	got, err = parseNullableTime(sql.NullString{String: formatTime(now), Valid: true})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, now, *got)
}

func TestBlobPreservesBytes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"object with spacing", `{ "name": "Guthan set",  "inputs": [1, 2] }`},
		{"array", `[{"a":1},{"b":2}]`},
		{"string", `"plain"`},
		{"number", `12.50`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stored, err := encodeBlob(json.RawMessage(tt.raw))
			require.NoError(t, err)
			got, err := decodeBlob(stored)
			require.NoError(t, err)
			assert.Equal(t, tt.raw, string(got))
		})
	}
}

func TestDecodeBlobAcceptsUnversioned(t *testing.T) {
	got, err := decodeBlob(`{"name":"Guthan set"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Guthan set"}`, string(got))
}

func TestBlobRejectsInvalidJSON(t *testing.T) {
	_, err := encodeBlob(json.RawMessage(`{broken`))
	assert.ErrorIs(t, err, types.ErrInvalidData)

	_, err = decodeBlob(`{broken`)
	assert.ErrorIs(t, err, types.ErrInvalidData)
}

func TestDecodeBlobRejectsNewerVersion(t *testing.T) {
	_, err := decodeBlob(`{"v":9,"data":[]}`)
	assert.Error(t, err)
}

func TestListRoundTrip(t *testing.T) {
	elems := []json.RawMessage{json.RawMessage(`{"key":"a"}`), json.RawMessage(`"b"`)}
	stored, err := encodeList(elems)
	require.NoError(t, err)

	got, err := decodeList(sql.NullString{String: stored, Valid: true})
	require.NoError(t, err)
	assert.Equal(t, elems, got)
}

func TestDecodeListNullIsEmpty(t *testing.T) {
	got, err := decodeList(sql.NullString{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	stored, err := encodeBlob(nil)
	require.NoError(t, err)
	got, err = decodeList(sql.NullString{String: stored, Valid: true})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

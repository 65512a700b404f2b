// This file holds the column encodings shared by the stores: timestamps,
// booleans, and the versioned envelope for opaque blobs.
package sqlite

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mesh-intelligence/flipstore/pkg/types"
)

// timeLayout is fixed width and always UTC, so text order equals time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// nullableTime encodes nil as SQL NULL.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func parseNullableTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// blobVersion tags the envelope around opaque payloads.
const blobVersion = 1

type blobEnvelope struct {
	V    int             `json:"v"`
	Data json.RawMessage `json:"data"`
}

// encodeBlob wraps raw in the versioned envelope without re-encoding it, so
// the payload bytes survive unchanged. Empty input is stored as null.
func encodeBlob(raw json.RawMessage) (string, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("null")
	}
	if !json.Valid(raw) {
		return "", fmt.Errorf("encoding blob: %w", types.ErrInvalidData)
	}
	return fmt.Sprintf(`{"v":%d,"data":%s}`, blobVersion, raw), nil
}

// decodeBlob unwraps a stored blob. Values written before the envelope
// existed are returned as they are.
func decodeBlob(s string) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.DisallowUnknownFields()
	var env blobEnvelope
	if err := dec.Decode(&env); err == nil && env.V > 0 {
		if env.V > blobVersion {
			return nil, fmt.Errorf("decoding blob: unsupported version %d", env.V)
		}
		return env.Data, nil
	}
	if !json.Valid([]byte(s)) {
		return nil, fmt.Errorf("decoding blob: %w", types.ErrInvalidData)
	}
	return json.RawMessage(s), nil
}

// encodeList stores a list of opaque elements as one blob.
func encodeList(elems []json.RawMessage) (string, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, e := range elems {
		if !json.Valid(e) {
			return "", fmt.Errorf("encoding list element %d: %w", i, types.ErrInvalidData)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(e)
	}
	buf.WriteByte(']')
	return encodeBlob(buf.Bytes())
}

// decodeList reverses encodeList. NULL columns and null payloads decode to
// an empty, non-nil list.
func decodeList(ns sql.NullString) ([]json.RawMessage, error) {
	if !ns.Valid {
		return []json.RawMessage{}, nil
	}
	raw, err := decodeBlob(ns.String)
	if err != nil {
		return nil, err
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("decoding list: %w", err)
	}
	if elems == nil {
		elems = []json.RawMessage{}
	}
	return elems, nil
}

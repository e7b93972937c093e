package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/recipesync/internal/identity"
)

// legacyMarker is the value older clients wrote for a liked key.
const legacyMarker = "1"

type wireRecord struct {
	ServerCode int64     `json:"server_code"`
	State      State     `json:"state"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// marshalRecord converts a Record to the stored JSON value. The key is not
// repeated in the value.
func marshalRecord(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(wireRecord{
		ServerCode: rec.ServerCode,
		State:      rec.State,
		UpdatedAt:  rec.UpdatedAt.UTC(),
	}); err != nil {
		return nil, fmt.Errorf("marshal record %q: %w", rec.Key, err)
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}

// unmarshalRecord parses a stored value. The legacy presence marker decodes
// as a Liked record whose server code comes from the key itself.
func unmarshalRecord(key string, value []byte) (Record, error) {
	if string(bytes.TrimSpace(value)) == legacyMarker {
		rec := Record{Key: key, State: Liked}
		if parts, err := identity.Parse(key); err == nil {
			rec.ServerCode = parts.ServerCode
		}
		return rec, nil
	}

	var w wireRecord
	if err := json.Unmarshal(value, &w); err != nil {
		return Record{}, fmt.Errorf("unmarshal record %q: %w", key, err)
	}
	if !w.State.Valid() {
		return Record{}, fmt.Errorf("unmarshal record %q: unknown state %q", key, w.State)
	}
	return Record{
		Key:        key,
		ServerCode: w.ServerCode,
		State:      w.State,
		UpdatedAt:  w.UpdatedAt,
	}, nil
}

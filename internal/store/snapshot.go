package store

import (
	"encoding/json"
	"fmt"

	"tokenScope/internal/model"
)

// EncodeSnapshot serializes a cycle result for the previous-cycle cache key.
func EncodeSnapshot(entries []model.TokenEntry) ([]byte, error) {
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a persisted cycle result. A corrupt snapshot is
// reported as an error so callers can fall back to "no previous cycle".
func DecodeSnapshot(raw string) ([]model.TokenEntry, error) {
	if raw == "" {
		return nil, nil
	}
	var entries []model.TokenEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return entries, nil
}

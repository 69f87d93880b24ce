package history

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Snapshot is one stored version of an entity. A nil Snapshot marks a version in
// which the entity (or sub-entity) did not exist.
type Snapshot map[string]any

// ChangePoint marks the moment a field took a new value.
type ChangePoint struct {
	UpdatedAt any `json:"updatedAt"`
	Value     any `json:"value"`
}

// Field holds the history of a single field. Exactly one of Changes, Nested or
// Items is populated, depending on whether the field is a scalar, a nested
// object or an array of identity-bearing objects.
type Field struct {
	Changes []ChangePoint
	Nested  *Record
	Items   []Record
}

// Entry maps field names to their history.
type Entry map[string]Field

// Record is the history of one entity or sub-entity.
type Record struct {
	ID           string `json:"id,omitempty"`
	HistoryEntry Entry  `json:"historyEntry"`
}

// IsChanges reports whether the field carries scalar change-points.
func (f Field) IsChanges() bool {
	return f.Nested == nil && f.Items == nil
}

// MarshalJSON renders the populated variant only.
func (f Field) MarshalJSON() ([]byte, error) {
	switch {
	case f.Nested != nil:
		return json.Marshal(f.Nested)
	case f.Items != nil:
		return json.Marshal(f.Items)
	default:
		changes := f.Changes
		if changes == nil {
			changes = []ChangePoint{}
		}
		return json.Marshal(changes)
	}
}

// UnmarshalJSON restores a field rendered by MarshalJSON. Lists whose elements
// carry a historyEntry are read back as Items.
func (f *Field) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*f = Field{}
		return nil
	}

	switch trimmed[0] {
	case '{':
		var nested Record
		if err := json.Unmarshal(trimmed, &nested); err != nil {
			return fmt.Errorf("failed to decode nested history: %w", err)
		}
		*f = Field{Nested: &nested}
		return nil
	case '[':
		var raw []map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return fmt.Errorf("failed to decode history list: %w", err)
		}
		if len(raw) > 0 {
			if _, ok := raw[0]["historyEntry"]; ok {
				var items []Record
				if err := json.Unmarshal(trimmed, &items); err != nil {
					return fmt.Errorf("failed to decode history items: %w", err)
				}
				*f = Field{Items: items}
				return nil
			}
		}
		var changes []ChangePoint
		if err := json.Unmarshal(trimmed, &changes); err != nil {
			return fmt.Errorf("failed to decode change points: %w", err)
		}
		*f = Field{Changes: changes}
		return nil
	default:
		return fmt.Errorf("unexpected history field payload %q", string(trimmed))
	}
}

// Package history reconstructs field-level audit trails from a chronologically
// ordered sequence of entity snapshots.
//
// CreateHistory walks the snapshots newest to oldest and records, per field, the
// points at which the value changed. Nested objects are diffed recursively and
// arrays of objects are correlated across snapshots by their staticId (or _id).
package history

import (
	"fmt"
	"slices"
	"sort"
)

const (
	fieldUpdatedAt = "updatedAt"
	fieldStaticID  = "staticId"
	fieldID        = "_id"
)

// CreateHistory computes the history of the entity described by entities, which
// must be ordered oldest first. It returns nil when fewer than two snapshots are
// given, when any snapshot is absent, or when no field changed.
func CreateHistory(entities []Snapshot, ignoredFields ...string) *Record {
	if len(entities) < 2 {
		return nil
	}
	if slices.ContainsFunc(entities, func(s Snapshot) bool { return s == nil }) {
		return nil
	}

	entry := Entry{}
	for _, field := range collectFields(entities, ignoredFields) {
		if result, ok := fieldHistory(entities, field, ignoredFields); ok {
			entry[field] = result
		}
	}

	if len(entry) == 0 {
		return nil
	}

	return &Record{
		ID:           identityOf(entities[0]),
		HistoryEntry: entry,
	}
}

// collectFields lists every non-ignored field in first-seen order, newest snapshot first.
func collectFields(entities []Snapshot, ignoredFields []string) []string {
	seen := make(map[string]struct{})
	var fields []string
	for i := len(entities) - 1; i >= 0; i-- {
		keys := make([]string, 0, len(entities[i]))
		for key := range entities[i] {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			if IsIgnoredField(key, ignoredFields) {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			fields = append(fields, key)
		}
	}
	return fields
}

// fieldHistory builds the history of one field by visiting each snapshot that
// carries it, newest first, and dispatching on the kind of the value found there.
func fieldHistory(entities []Snapshot, field string, ignoredFields []string) (Field, bool) {
	var (
		result     Field
		found      bool
		nestedDone bool
		itemsDone  bool
	)

	// Change-points never land on a field already holding nested history.
	appendPoint := func(i int, value any) {
		if found && !result.IsChanges() {
			return
		}
		result.Changes = append(result.Changes, ChangePoint{
			UpdatedAt: entities[i][fieldUpdatedAt],
			Value:     value,
		})
		found = true
	}

	for i := len(entities) - 1; i >= 0; i-- {
		value, ok := entities[i][field]
		if !ok {
			continue
		}

		switch Classify(value) {
		case KindArray:
			if !isObjectArray(value) {
				if scalarChanged(entities, i, field, value, found && result.IsChanges()) {
					appendPoint(i, value)
				}
				continue
			}
			if itemsDone {
				continue
			}
			itemsDone = true
			if items := arrayHistory(entities, field, ignoredFields); len(items) > 0 {
				result = Field{Items: items}
				found = true
			}
		case KindObject:
			if nestedDone {
				continue
			}
			nestedDone = true
			if nested := objectHistory(entities, field); nested != nil {
				result = Field{Nested: nested}
				found = true
			}
		default:
			if scalarChanged(entities, i, field, value, found && result.IsChanges()) {
				appendPoint(i, value)
			}
		}
	}

	return result, found
}

// scalarChanged decides whether snapshot i contributes a change-point. Empty
// values never do. The oldest snapshot has nothing to compare against and only
// contributes its value as the baseline once a later change has been recorded.
func scalarChanged(entities []Snapshot, i int, field string, value any, hasChanges bool) bool {
	if isFalsy(value) {
		return false
	}
	if i == 0 {
		return hasChanges
	}
	return HasFieldChanged(value, entities[i-1][field])
}

// objectHistory diffs the sub-object stored under field across all snapshots.
func objectHistory(entities []Snapshot, field string) *Record {
	subs := make([]Snapshot, len(entities))
	for i, entity := range entities {
		obj, ok := asObject(entity[field])
		if !ok {
			continue
		}
		subs[i] = withParentTimestamp(obj, entity)
	}
	return CreateHistory(subs)
}

// arrayHistory correlates array elements across snapshots by identity and
// diffs each identity group on its own. Groups are returned in first-seen order.
func arrayHistory(entities []Snapshot, field string, ignoredFields []string) []Record {
	var identities []string
	seen := make(map[string]struct{})
	for _, entity := range entities {
		for _, element := range elements(entity[field]) {
			obj, ok := asObject(element)
			if !ok {
				continue
			}
			id := identityOf(obj)
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			identities = append(identities, id)
		}
	}

	var records []Record
	for _, id := range identities {
		correlated := make([]Snapshot, 0, len(entities))
		for _, entity := range entities {
			if match, ok := findByIdentity(entity[field], id); ok {
				correlated = append(correlated, withParentTimestamp(match, entity))
			}
		}
		if record := CreateHistory(correlated, ignoredFields...); record != nil {
			records = append(records, *record)
		}
	}
	return records
}

func isObjectArray(value any) bool {
	items := elements(value)
	return len(items) > 0 && IsObject(items[0])
}

func findByIdentity(value any, id string) (Snapshot, bool) {
	for _, element := range elements(value) {
		obj, ok := asObject(element)
		if !ok {
			continue
		}
		if identityOf(obj) == id {
			return obj, true
		}
	}
	return nil, false
}

// withParentTimestamp copies a sub-object, defaulting its updatedAt to the parent's.
func withParentTimestamp(obj Snapshot, parent Snapshot) Snapshot {
	out := make(Snapshot, len(obj)+1)
	for key, value := range obj {
		out[key] = value
	}
	if isFalsy(out[fieldUpdatedAt]) {
		out[fieldUpdatedAt] = parent[fieldUpdatedAt]
	}
	return out
}

// identityOf returns staticId, falling back to _id, or "" when neither is set.
func identityOf(obj Snapshot) string {
	value := obj[fieldStaticID]
	if isFalsy(value) {
		value = obj[fieldID]
	}
	if isFalsy(value) {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	if stringer, ok := value.(fmt.Stringer); ok {
		return stringer.String()
	}
	return fmt.Sprint(value)
}

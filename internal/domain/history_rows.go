package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rpattn/enghistory/pkg/history"
)

// HistoryRow is one change-point flattened to a dotted field path.
type HistoryRow struct {
	Path      string `json:"path"`
	UpdatedAt string `json:"updatedAt"`
	Value     string `json:"value"`
}

// FlattenHistory produces a deterministic list of rows for tabular output.
// Nested objects extend the path with ".field" and array elements with "[id]".
// Within a path, rows keep the newest-first order of the record.
func FlattenHistory(record *history.Record) []HistoryRow {
	if record == nil {
		return nil
	}
	var rows []HistoryRow
	flattenRecord("", record, &rows)
	return rows
}

func flattenRecord(prefix string, record *history.Record, acc *[]HistoryRow) {
	keys := make([]string, 0, len(record.HistoryEntry))
	for key := range record.HistoryEntry {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		field := record.HistoryEntry[key]
		switch {
		case field.Nested != nil:
			flattenRecord(path, field.Nested, acc)
		case field.Items != nil:
			for i := range field.Items {
				item := field.Items[i]
				flattenRecord(fmt.Sprintf("%s[%s]", path, item.ID), &item, acc)
			}
		default:
			for _, point := range field.Changes {
				*acc = append(*acc, HistoryRow{
					Path:      path,
					UpdatedAt: formatTimestamp(point.UpdatedAt),
					Value:     formatValue(point.Value),
				})
			}
		}
	}
}

func formatTimestamp(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case time.Time:
		return typed.UTC().Format(time.RFC3339)
	case *time.Time:
		if typed == nil {
			return ""
		}
		return typed.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", typed)
	}
}

func formatValue(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(encoded)
}

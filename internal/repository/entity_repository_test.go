package repository

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/enghistory/internal/domain"
)

func TestBuildVersionDecodesProperties(t *testing.T) {
	record := versionRecord{
		ID:         uuid.New(),
		EntityID:   uuid.New(),
		Properties: json.RawMessage(`{"name":"Alpha","lines":[{"staticId":"L1","qty":2}]}`),
		Version:    3,
		ChangeType: domain.ChangeTypeUpdate,
		UpdatedAt:  time.Now(),
	}

	version, err := buildVersion(record)
	if err != nil {
		t.Fatalf("unexpected error building version: %v", err)
	}
	if version.Properties["name"] != "Alpha" {
		t.Fatalf("expected decoded name, got %#v", version.Properties["name"])
	}
	lines, ok := version.Properties["lines"].([]any)
	if !ok || len(lines) != 1 {
		t.Fatalf("expected decoded lines array, got %#v", version.Properties["lines"])
	}
}

func TestBuildVersionRejectsInvalidJSON(t *testing.T) {
	record := versionRecord{EntityID: uuid.New(), Properties: json.RawMessage(`{"name":`)}
	if _, err := buildVersion(record); err == nil {
		t.Fatalf("expected error for malformed properties")
	}
}

func TestBuildVersionEmptyProperties(t *testing.T) {
	version, err := buildVersion(versionRecord{EntityID: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version.Properties == nil {
		t.Fatalf("expected empty properties map, got nil")
	}
}

func TestGroupVersionsKeepsOrder(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	versions := []domain.EntityVersion{
		{EntityID: a, Version: 1},
		{EntityID: b, Version: 1},
		{EntityID: a, Version: 2},
	}

	grouped := groupVersions(versions)
	if len(grouped[a]) != 2 || grouped[a][0].Version != 1 || grouped[a][1].Version != 2 {
		t.Fatalf("unexpected versions for a: %+v", grouped[a])
	}
	if len(grouped[b]) != 1 {
		t.Fatalf("unexpected versions for b: %+v", grouped[b])
	}
}

package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/enghistory/pkg/history"
)

// Change types recorded against a version.
const (
	ChangeTypeCreate = "CREATE"
	ChangeTypeUpdate = "UPDATE"
)

// EntityVersion captures one stored version of an entity.
type EntityVersion struct {
	ID             uuid.UUID
	EntityID       uuid.UUID
	OrganizationID uuid.UUID
	EntityType     string
	Properties     map[string]any
	Version        int64
	ChangeType     string
	Reason         *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewEntityVersion records the given entity state as a version.
func NewEntityVersion(entity Entity, changeType string, reason *string) EntityVersion {
	return EntityVersion{
		ID:             uuid.New(),
		EntityID:       entity.ID,
		OrganizationID: entity.OrganizationID,
		EntityType:     entity.EntityType,
		Properties:     copyProperties(entity.Properties),
		Version:        entity.Version,
		ChangeType:     changeType,
		Reason:         reason,
		CreatedAt:      entity.CreatedAt,
		UpdatedAt:      entity.UpdatedAt,
	}
}

// Snapshot converts the version into the shape expected by the history differ.
// The entity id becomes the staticId so every version of an entity shares one identity.
func (v EntityVersion) Snapshot() history.Snapshot {
	snapshot := make(history.Snapshot, len(v.Properties)+3)
	for key, value := range v.Properties {
		snapshot[key] = copyValue(value)
	}
	snapshot["staticId"] = v.EntityID.String()
	snapshot["createdAt"] = v.CreatedAt.UTC().Format(time.RFC3339Nano)
	snapshot["updatedAt"] = v.UpdatedAt.UTC().Format(time.RFC3339Nano)
	return snapshot
}

// SnapshotsFromVersions orders versions oldest first and converts them to snapshots.
func SnapshotsFromVersions(versions []EntityVersion) []history.Snapshot {
	ordered := make([]EntityVersion, len(versions))
	copy(ordered, versions)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].UpdatedAt.Equal(ordered[j].UpdatedAt) {
			return ordered[i].UpdatedAt.Before(ordered[j].UpdatedAt)
		}
		return ordered[i].Version < ordered[j].Version
	})

	snapshots := make([]history.Snapshot, len(ordered))
	for i, version := range ordered {
		snapshots[i] = version.Snapshot()
	}
	return snapshots
}

// LatestVersion returns the highest version number in the list, or 0 when empty.
func LatestVersion(versions []EntityVersion) int64 {
	var latest int64
	for _, version := range versions {
		if version.Version > latest {
			latest = version.Version
		}
	}
	return latest
}

package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entity represents the current version of a tracked entity
type Entity struct {
	ID             uuid.UUID      `json:"id"`
	OrganizationID uuid.UUID      `json:"organization_id"`
	EntityType     string         `json:"entity_type"`
	Properties     map[string]any `json:"properties"`
	Version        int64          `json:"version"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NewEntity creates a new entity at version 1
func NewEntity(organizationID uuid.UUID, entityType string, properties map[string]any) Entity {
	now := time.Now().UTC()
	return Entity{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		EntityType:     entityType,
		Properties:     copyProperties(properties),
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// WithProperty returns a new entity with an added/updated property
func (e Entity) WithProperty(key string, value any) Entity {
	next := e.touch()
	next.Properties[key] = copyValue(value)
	return next
}

// WithoutProperty returns a new entity without the specified property
func (e Entity) WithoutProperty(key string) Entity {
	next := e.touch()
	delete(next.Properties, key)
	return next
}

// WithProperties returns a new entity with its properties replaced
func (e Entity) WithProperties(properties map[string]any) Entity {
	next := e.touch()
	next.Properties = copyProperties(properties)
	return next
}

func (e Entity) touch() Entity {
	return Entity{
		ID:             e.ID,
		OrganizationID: e.OrganizationID,
		EntityType:     e.EntityType,
		Properties:     copyProperties(e.Properties),
		Version:        e.Version,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      time.Now().UTC(),
	}
}

// GetPropertiesAsJSONB encodes the properties for a jsonb column
func (e *Entity) GetPropertiesAsJSONB() (json.RawMessage, error) {
	if e.Properties == nil {
		e.Properties = make(map[string]any)
	}
	return json.Marshal(e.Properties)
}

// FromJSONBProperties creates properties map from JSONB data
func FromJSONBProperties(propertiesJSON json.RawMessage) (map[string]any, error) {
	if len(propertiesJSON) == 0 {
		return map[string]any{}, nil
	}
	var properties map[string]any
	if err := json.Unmarshal(propertiesJSON, &properties); err != nil {
		return nil, err
	}
	if properties == nil {
		properties = map[string]any{}
	}
	return properties, nil
}

// copyProperties deep copies nested maps and slices so versions never share state.
func copyProperties(properties map[string]any) map[string]any {
	out := make(map[string]any, len(properties))
	for k, v := range properties {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return copyProperties(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = copyValue(item)
		}
		return out
	default:
		return value
	}
}

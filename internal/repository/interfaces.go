package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/rpattn/enghistory/internal/domain"
)

// ErrNotFound is returned when the requested entity does not exist.
var ErrNotFound = errors.New("entity not found")

// EntityRepository defines the interface for entity and version operations
type EntityRepository interface {
	Create(ctx context.Context, entity domain.Entity) (domain.Entity, error)
	Update(ctx context.Context, entity domain.Entity, reason string) (domain.Entity, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Entity, error)

	// Version history, oldest first
	ListVersions(ctx context.Context, entityID uuid.UUID) ([]domain.EntityVersion, error)
	ListVersionsByEntityIDs(ctx context.Context, entityIDs []uuid.UUID) (map[uuid.UUID][]domain.EntityVersion, error)
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/rpattn/enghistory/internal/db"
	"github.com/rpattn/enghistory/internal/domain"
)

const (
	entityColumns  = "id, organization_id, entity_type, properties, version, created_at, updated_at"
	versionColumns = "id, entity_id, organization_id, entity_type, properties, version, change_type, reason, created_at, updated_at"
)

// entityRepository implements EntityRepository on top of a pgx pool
type entityRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewEntityRepository creates a new entity repository
func NewEntityRepository(pool *pgxpool.Pool, logger *zap.Logger) EntityRepository {
	return &entityRepository{
		pool:   pool,
		logger: logger,
	}
}

// Create inserts the entity together with its first version
func (r *entityRepository) Create(ctx context.Context, entity domain.Entity) (domain.Entity, error) {
	propertiesJSON, err := entity.GetPropertiesAsJSONB()
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to marshal properties: %w", err)
	}
	if entity.Version <= 0 {
		entity.Version = 1
	}

	var created domain.Entity
	err = db.WithTx(ctx, r.pool, r.logger, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`INSERT INTO entities (`+entityColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING `+entityColumns,
			entity.ID, entity.OrganizationID, entity.EntityType, propertiesJSON,
			entity.Version, entity.CreatedAt, entity.UpdatedAt,
		)
		created, err = scanEntity(row)
		if err != nil {
			return fmt.Errorf("failed to create entity: %w", err)
		}

		return insertVersion(ctx, tx, domain.NewEntityVersion(created, domain.ChangeTypeCreate, nil))
	})
	if err != nil {
		return domain.Entity{}, err
	}

	return created, nil
}

// Update stores the new entity state as the next version
func (r *entityRepository) Update(ctx context.Context, entity domain.Entity, reason string) (domain.Entity, error) {
	propertiesJSON, err := entity.GetPropertiesAsJSONB()
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to marshal properties: %w", err)
	}

	var updated domain.Entity
	err = db.WithTx(ctx, r.pool, r.logger, func(tx pgx.Tx) error {
		var current int64
		if err := tx.QueryRow(ctx, `SELECT version FROM entities WHERE id = $1 FOR UPDATE`, entity.ID).Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("failed to lock entity %s: %w", entity.ID, ErrNotFound)
			}
			return fmt.Errorf("failed to lock entity %s: %w", entity.ID, err)
		}

		updatedAt := entity.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now().UTC()
		}

		row := tx.QueryRow(ctx,
			`UPDATE entities
			 SET entity_type = $2, properties = $3, version = $4, updated_at = $5
			 WHERE id = $1
			 RETURNING `+entityColumns,
			entity.ID, entity.EntityType, propertiesJSON, current+1, updatedAt,
		)
		updated, err = scanEntity(row)
		if err != nil {
			return fmt.Errorf("failed to update entity: %w", err)
		}

		var reasonPtr *string
		if trimmed := strings.TrimSpace(reason); trimmed != "" {
			reasonPtr = &trimmed
		}
		return insertVersion(ctx, tx, domain.NewEntityVersion(updated, domain.ChangeTypeUpdate, reasonPtr))
	})
	if err != nil {
		return domain.Entity{}, err
	}

	return updated, nil
}

// GetByID retrieves an entity by ID
func (r *entityRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Entity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = $1`, id)
	entity, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Entity{}, fmt.Errorf("failed to get entity %s: %w", id, ErrNotFound)
		}
		return domain.Entity{}, fmt.Errorf("failed to get entity: %w", err)
	}
	return entity, nil
}

// ListVersions returns every stored version of an entity, oldest first
func (r *entityRepository) ListVersions(ctx context.Context, entityID uuid.UUID) ([]domain.EntityVersion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+versionColumns+` FROM entity_versions
		 WHERE entity_id = $1
		 ORDER BY updated_at ASC, version ASC`,
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list entity versions: %w", err)
	}
	defer rows.Close()

	versions, err := collectVersions(rows)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("failed to list versions of entity %s: %w", entityID, ErrNotFound)
	}
	return versions, nil
}

// ListVersionsByEntityIDs loads the versions of several entities in one query
func (r *entityRepository) ListVersionsByEntityIDs(ctx context.Context, entityIDs []uuid.UUID) (map[uuid.UUID][]domain.EntityVersion, error) {
	if len(entityIDs) == 0 {
		return map[uuid.UUID][]domain.EntityVersion{}, nil
	}

	ids := make([]string, len(entityIDs))
	for i, id := range entityIDs {
		ids[i] = id.String()
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+versionColumns+` FROM entity_versions
		 WHERE entity_id = ANY($1::uuid[])
		 ORDER BY entity_id, updated_at ASC, version ASC`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list entity versions: %w", err)
	}
	defer rows.Close()

	versions, err := collectVersions(rows)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("loaded version batch", zap.Int("entities", len(entityIDs)), zap.Int("versions", len(versions)))
	return groupVersions(versions), nil
}

func insertVersion(ctx context.Context, tx pgx.Tx, version domain.EntityVersion) error {
	propertiesJSON, err := json.Marshal(version.Properties)
	if err != nil {
		return fmt.Errorf("failed to marshal version properties: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO entity_versions (`+versionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		version.ID, version.EntityID, version.OrganizationID, version.EntityType, propertiesJSON,
		version.Version, version.ChangeType, version.Reason, version.CreatedAt, version.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record entity version: %w", err)
	}
	return nil
}

func scanEntity(row pgx.Row) (domain.Entity, error) {
	var (
		entity         domain.Entity
		propertiesJSON []byte
	)
	if err := row.Scan(
		&entity.ID, &entity.OrganizationID, &entity.EntityType, &propertiesJSON,
		&entity.Version, &entity.CreatedAt, &entity.UpdatedAt,
	); err != nil {
		return domain.Entity{}, err
	}

	properties, err := domain.FromJSONBProperties(propertiesJSON)
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to decode properties for entity %s: %w", entity.ID, err)
	}
	entity.Properties = properties
	return entity, nil
}

func collectVersions(rows pgx.Rows) ([]domain.EntityVersion, error) {
	var versions []domain.EntityVersion
	for rows.Next() {
		var (
			record         versionRecord
			propertiesJSON []byte
		)
		if err := rows.Scan(
			&record.ID, &record.EntityID, &record.OrganizationID, &record.EntityType, &propertiesJSON,
			&record.Version, &record.ChangeType, &record.Reason, &record.CreatedAt, &record.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan entity version: %w", err)
		}
		record.Properties = propertiesJSON

		version, err := buildVersion(record)
		if err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entity versions: %w", err)
	}
	return versions, nil
}

type versionRecord struct {
	ID             uuid.UUID
	EntityID       uuid.UUID
	OrganizationID uuid.UUID
	EntityType     string
	Properties     json.RawMessage
	Version        int64
	ChangeType     string
	Reason         *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func buildVersion(record versionRecord) (domain.EntityVersion, error) {
	properties, err := domain.FromJSONBProperties(record.Properties)
	if err != nil {
		return domain.EntityVersion{}, fmt.Errorf("failed to decode properties for entity %s version %d: %w", record.EntityID, record.Version, err)
	}

	return domain.EntityVersion{
		ID:             record.ID,
		EntityID:       record.EntityID,
		OrganizationID: record.OrganizationID,
		EntityType:     record.EntityType,
		Properties:     properties,
		Version:        record.Version,
		ChangeType:     record.ChangeType,
		Reason:         record.Reason,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}, nil
}

func groupVersions(versions []domain.EntityVersion) map[uuid.UUID][]domain.EntityVersion {
	grouped := make(map[uuid.UUID][]domain.EntityVersion)
	for _, version := range versions {
		grouped[version.EntityID] = append(grouped[version.EntityID], version)
	}
	return grouped
}

package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rpattn/enghistory/internal/auth"
	"github.com/rpattn/enghistory/internal/cache"
	"github.com/rpattn/enghistory/internal/domain"
	"github.com/rpattn/enghistory/internal/metrics"
	"github.com/rpattn/enghistory/internal/repository"
	"github.com/rpattn/enghistory/internal/versionloader"
	"github.com/rpattn/enghistory/pkg/history"
)

const defaultBatchConcurrency = 8

// HistoryService computes entity histories from stored versions.
type HistoryService struct {
	repo             repository.EntityRepository
	cache            cache.HistoryCache
	metrics          *metrics.Metrics
	logger           *zap.Logger
	ignoredFields    []string
	batchConcurrency int
}

// Option configures a HistoryService.
type Option func(*HistoryService)

// WithCache stores computed records in c.
func WithCache(c cache.HistoryCache) Option {
	return func(s *HistoryService) { s.cache = c }
}

// WithMetrics records computation metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *HistoryService) { s.metrics = m }
}

// WithIgnoredFields adds deployment-wide fields excluded from every history.
func WithIgnoredFields(fields []string) Option {
	return func(s *HistoryService) { s.ignoredFields = slices.Clone(fields) }
}

// WithBatchConcurrency bounds the number of histories computed in parallel.
func WithBatchConcurrency(n int) Option {
	return func(s *HistoryService) {
		if n > 0 {
			s.batchConcurrency = n
		}
	}
}

func NewHistoryService(repo repository.EntityRepository, logger *zap.Logger, opts ...Option) *HistoryService {
	s := &HistoryService{
		repo:             repo,
		cache:            cache.NewNoopCache(),
		metrics:          metrics.New(),
		logger:           logger,
		batchConcurrency: defaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EntityHistory returns the history of one stored entity, or nil when nothing changed.
func (s *HistoryService) EntityHistory(ctx context.Context, entityID uuid.UUID, ignoredFields []string) (*history.Record, error) {
	versions, err := s.loadVersions(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if err := auth.EnforceOrganizationScope(ctx, versions[len(versions)-1].OrganizationID); err != nil {
		return nil, err
	}

	ignored := s.mergeIgnored(ignoredFields)
	key := cache.Key(entityID, domain.LatestVersion(versions), ignored)

	record, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("history cache read failed", zap.String("key", key), zap.Error(err))
	} else if hit {
		s.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return record, nil
	}
	s.metrics.CacheLookups.WithLabelValues("miss").Inc()

	record = s.compute(domain.SnapshotsFromVersions(versions), ignored, "entity")
	s.logger.Debug("computed entity history",
		zap.Stringer("entity_id", entityID),
		zap.Int("versions", len(versions)),
		zap.Int("fields", fieldCount(record)),
	)

	if err := s.cache.Set(ctx, key, record); err != nil {
		s.logger.Warn("history cache write failed", zap.String("key", key), zap.Error(err))
	}
	return record, nil
}

// BatchHistory computes the histories of several entities concurrently. Unknown
// entities and entities without changes are left out of the result.
func (s *HistoryService) BatchHistory(ctx context.Context, entityIDs []uuid.UUID, ignoredFields []string) (map[uuid.UUID]*history.Record, error) {
	results := make([]*history.Record, len(entityIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchConcurrency)
	for i, id := range entityIDs {
		g.Go(func() error {
			record, err := s.EntityHistory(gctx, id, ignoredFields)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return nil
				}
				return fmt.Errorf("entity %s: %w", id, err)
			}
			results[i] = record
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID]*history.Record, len(entityIDs))
	for i, record := range results {
		if record != nil {
			out[entityIDs[i]] = record
		}
	}
	return out, nil
}

// Diff runs the differ on caller-supplied snapshots ordered oldest first.
func (s *HistoryService) Diff(snapshots []history.Snapshot, ignoredFields []string) *history.Record {
	return s.compute(snapshots, s.mergeIgnored(ignoredFields), "adhoc")
}

// CreateEntity stores a new entity as version 1.
func (s *HistoryService) CreateEntity(ctx context.Context, organizationID uuid.UUID, entityType string, properties map[string]any) (domain.Entity, error) {
	if err := auth.EnforceOrganizationScope(ctx, organizationID); err != nil {
		return domain.Entity{}, err
	}
	entity, err := s.repo.Create(ctx, domain.NewEntity(organizationID, entityType, properties))
	if err != nil {
		return domain.Entity{}, err
	}
	s.logger.Info("created entity", zap.Stringer("entity_id", entity.ID), zap.String("entity_type", entity.EntityType))
	return entity, nil
}

// UpdateEntity replaces the entity properties, recording a new version.
func (s *HistoryService) UpdateEntity(ctx context.Context, entityID uuid.UUID, properties map[string]any, reason string) (domain.Entity, error) {
	current, err := s.repo.GetByID(ctx, entityID)
	if err != nil {
		return domain.Entity{}, err
	}
	if err := auth.EnforceOrganizationScope(ctx, current.OrganizationID); err != nil {
		return domain.Entity{}, err
	}

	updated, err := s.repo.Update(ctx, current.WithProperties(properties), reason)
	if err != nil {
		return domain.Entity{}, err
	}
	s.logger.Info("updated entity", zap.Stringer("entity_id", updated.ID), zap.Int64("version", updated.Version))
	return updated, nil
}

// PatchEntity sets and removes individual properties, recording a new version.
func (s *HistoryService) PatchEntity(ctx context.Context, entityID uuid.UUID, set map[string]any, unset []string, reason string) (domain.Entity, error) {
	current, err := s.repo.GetByID(ctx, entityID)
	if err != nil {
		return domain.Entity{}, err
	}
	if err := auth.EnforceOrganizationScope(ctx, current.OrganizationID); err != nil {
		return domain.Entity{}, err
	}

	next := current
	for key, value := range set {
		next = next.WithProperty(key, value)
	}
	for _, key := range unset {
		next = next.WithoutProperty(key)
	}

	updated, err := s.repo.Update(ctx, next, reason)
	if err != nil {
		return domain.Entity{}, err
	}
	s.logger.Info("patched entity",
		zap.Stringer("entity_id", updated.ID),
		zap.Int64("version", updated.Version),
		zap.Int("set", len(set)),
		zap.Int("unset", len(unset)),
	)
	return updated, nil
}

func (s *HistoryService) loadVersions(ctx context.Context, entityID uuid.UUID) ([]domain.EntityVersion, error) {
	var (
		versions []domain.EntityVersion
		err      error
	)
	if loader := versionloader.FromContext(ctx); loader != nil {
		versions, err = loader.Load(ctx, entityID)
	} else {
		versions, err = s.repo.ListVersions(ctx, entityID)
	}
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("versions of entity %s: %w", entityID, repository.ErrNotFound)
	}
	return versions, nil
}

func (s *HistoryService) compute(snapshots []history.Snapshot, ignored []string, source string) *history.Record {
	start := time.Now()
	record := history.CreateHistory(snapshots, ignored...)
	s.metrics.ComputeDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	s.metrics.SnapshotCount.Observe(float64(len(snapshots)))

	outcome := "changed"
	if record == nil {
		outcome = "unchanged"
	}
	s.metrics.Computations.WithLabelValues(outcome).Inc()
	return record
}

func (s *HistoryService) mergeIgnored(fields []string) []string {
	merged := make([]string, 0, len(s.ignoredFields)+len(fields))
	merged = append(merged, s.ignoredFields...)
	for _, field := range fields {
		if field != "" && !slices.Contains(merged, field) {
			merged = append(merged, field)
		}
	}
	return merged
}

func fieldCount(record *history.Record) int {
	if record == nil {
		return 0
	}
	return len(record.HistoryEntry)
}

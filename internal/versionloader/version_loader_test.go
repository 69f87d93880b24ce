package versionloader

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"

	"github.com/rpattn/enghistory/internal/domain"
	"github.com/rpattn/enghistory/internal/repository"
)

type stubRepo struct {
	versions map[uuid.UUID][]domain.EntityVersion
	calls    atomic.Int32
	err      error
}

var _ repository.EntityRepository = (*stubRepo)(nil)

func (s *stubRepo) Create(ctx context.Context, entity domain.Entity) (domain.Entity, error) {
	panic("not implemented")
}

func (s *stubRepo) Update(ctx context.Context, entity domain.Entity, reason string) (domain.Entity, error) {
	panic("not implemented")
}

func (s *stubRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Entity, error) {
	panic("not implemented")
}

func (s *stubRepo) ListVersions(ctx context.Context, entityID uuid.UUID) ([]domain.EntityVersion, error) {
	panic("not implemented")
}

func (s *stubRepo) ListVersionsByEntityIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]domain.EntityVersion, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[uuid.UUID][]domain.EntityVersion)
	for _, id := range ids {
		if versions, ok := s.versions[id]; ok {
			out[id] = versions
		}
	}
	return out, nil
}

func TestVersionLoaderBatchesKeys(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	repo := &stubRepo{versions: map[uuid.UUID][]domain.EntityVersion{
		a: {{EntityID: a, Version: 1}, {EntityID: a, Version: 2}},
		b: {{EntityID: b, Version: 1}},
	}}
	loader := NewVersionLoader(repo)
	ctx := context.Background()

	thunkA := loader.Loader.Load(ctx, dataloader.StringKey(a.String()))
	thunkB := loader.Loader.Load(ctx, dataloader.StringKey(b.String()))

	dataA, err := thunkA()
	if err != nil {
		t.Fatalf("unexpected error for a: %v", err)
	}
	if _, err := thunkB(); err != nil {
		t.Fatalf("unexpected error for b: %v", err)
	}

	if got := len(dataA.([]domain.EntityVersion)); got != 2 {
		t.Fatalf("expected 2 versions for a, got %d", got)
	}
	if calls := repo.calls.Load(); calls != 1 {
		t.Fatalf("expected a single batched repository call, got %d", calls)
	}
}

func TestVersionLoaderMissingEntity(t *testing.T) {
	repo := &stubRepo{versions: map[uuid.UUID][]domain.EntityVersion{}}
	loader := NewVersionLoader(repo)

	_, err := loader.Load(context.Background(), uuid.New())
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestVersionLoaderRepositoryError(t *testing.T) {
	boom := errors.New("boom")
	loader := NewVersionLoader(&stubRepo{err: boom})

	_, err := loader.Load(context.Background(), uuid.New())
	if !errors.Is(err, boom) {
		t.Fatalf("expected repository error, got %v", err)
	}
}

func TestLoaderContext(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Fatalf("expected no loader on a bare context")
	}
	loader := NewVersionLoader(&stubRepo{})
	ctx := WithLoader(context.Background(), loader)
	if FromContext(ctx) != loader {
		t.Fatalf("expected loader from context")
	}
}

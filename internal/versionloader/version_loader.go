package versionloader

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"

	"github.com/rpattn/enghistory/internal/domain"
	"github.com/rpattn/enghistory/internal/repository"
)

// VersionLoader batches version lookups for many entities into one query.
type VersionLoader struct {
	Loader *dataloader.Loader
}

func NewVersionLoader(repo repository.EntityRepository) *VersionLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		results := make([]*dataloader.Result, len(keys))

		ids := make([]uuid.UUID, 0, len(keys))
		parsed := make([]uuid.UUID, len(keys))
		for i, k := range keys {
			id, err := uuid.Parse(k.String())
			if err != nil {
				results[i] = &dataloader.Result{Error: fmt.Errorf("invalid UUID: %w", err)}
				continue
			}
			parsed[i] = id
			ids = append(ids, id)
		}

		grouped, err := repo.ListVersionsByEntityIDs(ctx, ids)
		if err != nil {
			for i := range results {
				if results[i] == nil {
					results[i] = &dataloader.Result{Error: err}
				}
			}
			return results
		}

		// Results must line up with keys
		for i, id := range parsed {
			if results[i] != nil {
				continue
			}
			versions, ok := grouped[id]
			if !ok || len(versions) == 0 {
				results[i] = &dataloader.Result{Error: fmt.Errorf("versions of entity %s: %w", id, repository.ErrNotFound)}
				continue
			}
			results[i] = &dataloader.Result{Data: versions}
		}

		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(5*time.Millisecond))

	return &VersionLoader{Loader: loader}
}

// Load returns the versions of one entity, batched with concurrent callers.
func (l *VersionLoader) Load(ctx context.Context, id uuid.UUID) ([]domain.EntityVersion, error) {
	data, err := l.Loader.Load(ctx, dataloader.StringKey(id.String()))()
	if err != nil {
		return nil, err
	}
	versions, ok := data.([]domain.EntityVersion)
	if !ok {
		return nil, fmt.Errorf("unexpected loader result %T for entity %s", data, id)
	}
	return versions, nil
}

type ctxKey string

const loaderKey ctxKey = "versionLoader"

// WithLoader attaches a loader to the context.
func WithLoader(ctx context.Context, loader *VersionLoader) context.Context {
	return context.WithValue(ctx, loaderKey, loader)
}

// FromContext retrieves the loader attached to the context, if any.
func FromContext(ctx context.Context) *VersionLoader {
	if l, ok := ctx.Value(loaderKey).(*VersionLoader); ok {
		return l
	}
	return nil
}

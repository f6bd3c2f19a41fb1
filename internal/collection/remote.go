package collection

import (
	"context"
	"slices"

	"github.com/five82/depot/internal/api"
	"github.com/five82/depot/internal/entity"
)

// Lists caches GET /{resource} results.
type Lists = Store[[]entity.Entity]

// Details caches GET /{resource}/{id} results.
type Details = Store[entity.Entity]

// NewListStore builds a list cache backed by b. Snapshots copy the slice but
// share the row maps with the cache, so rows must be treated as read-only;
// clone a row before changing it.
func NewListStore(b api.Backend, opts Options[[]entity.Entity]) *Lists {
	if opts.Clone == nil {
		opts.Clone = slices.Clone[[]entity.Entity]
	}
	return NewStore(func(ctx context.Context, key Key) ([]entity.Entity, error) {
		return b.List(ctx, key.Resource)
	}, opts)
}

// NewDetailStore builds a record cache backed by b. Each snapshot is a deep
// copy of the record.
func NewDetailStore(b api.Backend, opts Options[entity.Entity]) *Details {
	if opts.Clone == nil {
		opts.Clone = entity.Entity.Clone
	}
	return NewStore(func(ctx context.Context, key Key) (entity.Entity, error) {
		return b.Get(ctx, key.Resource, key.ID)
	}, opts)
}

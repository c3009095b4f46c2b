package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nimburion/endpointstore/pkg/endpoints"
	"github.com/nimburion/endpointstore/pkg/endpoints/listing"
	"github.com/nimburion/endpointstore/pkg/store"
)

// StoreRepository implements Repository on top of an object store.
type StoreRepository[T any, ID comparable] struct {
	store  store.Store
	mapper EntityMapper[T, ID]
}

var _ Repository[struct{}, string] = (*StoreRepository[struct{}, string])(nil)

// NewStoreRepository creates a repository reading and writing through s.
func NewStoreRepository[T any, ID comparable](s store.Store, mapper EntityMapper[T, ID]) *StoreRepository[T, ID] {
	return &StoreRepository[T, ID]{store: s, mapper: mapper}
}

// Create adds entity to the store. An entity without identity receives the
// one assigned by the store.
func (r *StoreRepository[T, ID]) Create(ctx context.Context, entity *T) error {
	if entity == nil {
		return errors.New("entity cannot be nil")
	}
	record, err := r.mapper.ToRecord(entity)
	if err != nil {
		return err
	}
	var zero ID
	if r.mapper.GetID(entity) == zero {
		delete(record, r.mapper.IDProperty())
	}

	created, err := r.store.Add(ctx, record, nil).Await(ctx)
	if err != nil {
		return fmt.Errorf("failed to create entity: %w", translate(err))
	}
	return r.refresh(entity, created)
}

// FindByID retrieves an entity by its ID
func (r *StoreRepository[T, ID]) FindByID(ctx context.Context, id ID) (*T, error) {
	record, err := r.store.Get(ctx, id).Await(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return r.mapper.FromRecord(record)
}

// FindAll retrieves entities matching opts. Sorting and pagination are
// delegated to the store; when a filter is set the store is asked for every
// record and filtering and pagination happen here.
func (r *StoreRepository[T, ID]) FindAll(ctx context.Context, opts QueryOptions) ([]T, error) {
	storeOpts := opts.StoreOptions()
	if len(opts.Filter) > 0 {
		storeOpts.Start, storeOpts.Count = 0, 0
	}

	records, err := r.store.Query(ctx, store.Query(opts.Filter), storeOpts).
		Filter(matcher(opts.Filter)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", translate(err))
	}
	if len(opts.Filter) > 0 {
		records = window(records, opts.Pagination)
	}

	entities := make([]T, 0, len(records))
	for _, record := range records {
		entity, err := r.mapper.FromRecord(record)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *entity)
	}
	return entities, nil
}

// Count returns the number of entities matching the filter
func (r *StoreRepository[T, ID]) Count(ctx context.Context, filter Filter) (int64, error) {
	results := r.store.Query(ctx, store.Query(filter), nil)
	if len(filter) > 0 {
		results = results.Filter(matcher(filter))
	}
	total, err := results.Total().Await(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count entities: %w", translate(err))
	}
	return int64(total), nil
}

// Update replaces an existing entity. Entities implementing Versioned are
// checked against the stored version first and have their version bumped.
// The check and the write are separate remote calls.
func (r *StoreRepository[T, ID]) Update(ctx context.Context, entity *T) error {
	if entity == nil {
		return errors.New("entity cannot be nil")
	}
	id := r.mapper.GetID(entity)
	var zero ID
	if id == zero {
		return errors.New("entity has no identity")
	}

	current, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}

	restore, err := claimNextVersion(id, any(entity), any(current))
	if err != nil {
		return err
	}

	record, err := r.mapper.ToRecord(entity)
	if err != nil {
		restore()
		return err
	}
	updated, err := r.store.Put(ctx, record, store.ExplicitID(id)).Await(ctx)
	if err != nil {
		restore()
		return fmt.Errorf("failed to update entity: %w", translate(err))
	}
	return r.refresh(entity, updated)
}

// Delete removes an entity from the store by its ID
func (r *StoreRepository[T, ID]) Delete(ctx context.Context, id ID) error {
	if _, err := r.store.Remove(ctx, id).Await(ctx); err != nil {
		return translate(err)
	}
	return nil
}

func (r *StoreRepository[T, ID]) refresh(entity *T, record store.Record) error {
	fresh, err := r.mapper.FromRecord(record)
	if err != nil {
		return err
	}
	*entity = *fresh
	return nil
}

// translate maps a remote 404 onto ErrNotFound and leaves other errors as
// they are.
func translate(err error) error {
	var remote *endpoints.Error
	if errors.As(err, &remote) && remote.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, remote.Message)
	}
	return err
}

func matcher(filter Filter) func(store.Record, int) bool {
	return func(record store.Record, _ int) bool {
		for field, want := range filter {
			got, ok := record[field]
			if !ok || listing.Compare(got, want) != 0 {
				return false
			}
		}
		return true
	}
}

func window(records []store.Record, p Pagination) []store.Record {
	start := p.Offset()
	if start >= len(records) {
		return []store.Record{}
	}
	end := len(records)
	if p.Limit() > 0 && start+p.Limit() < end {
		end = start + p.Limit()
	}
	return records[start:end]
}

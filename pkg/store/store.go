// Package store defines the generic object-store contract: identity-based
// CRUD plus queries whose results and totals arrive asynchronously.
package store

import (
	"context"

	"github.com/nimburion/endpointstore/pkg/future"
)

// Record is one entity. One field holds its identity.
type Record map[string]any

// Query is a backend-specific predicate.
type Query map[string]any

// Store is the object-store contract.
type Store interface {
	// Get retrieves a record by identity.
	Get(ctx context.Context, id any) *future.Future[Record]
	// GetIdentity returns the identity of record, or nil.
	GetIdentity(record Record) any
	// Put stores record, creating it when it has no identity.
	Put(ctx context.Context, record Record, directives *PutDirectives) *future.Future[Record]
	// Add creates record.
	Add(ctx context.Context, record Record, directives *PutDirectives) *future.Future[Record]
	// Remove deletes a record by identity.
	Remove(ctx context.Context, id any) *future.Future[any]
	// Query lists records.
	Query(ctx context.Context, query Query, options *QueryOptions) *QueryResults
}

// PutDirectives carries the optional arguments of Put and Add.
type PutDirectives struct {
	// ID, when non-nil, overrides the record identity. A non-nil pointer to a
	// nil value explicitly means "no identity".
	ID *any
	// Overwrite requests a full replace (true) or a patch (false).
	Overwrite *bool
}

// ExplicitID returns directives whose ID is set to id.
func ExplicitID(id any) *PutDirectives {
	return &PutDirectives{ID: &id}
}

// QueryOptions controls paging and ordering of a query.
type QueryOptions struct {
	// Start is the index of the first record to return.
	Start int
	// Count is the maximum number of records to return.
	Count int
	Sort  []SortInformation
}

// SortInformation is one ordering key.
type SortInformation struct {
	Attribute  string
	Descending bool
}

// Adapter is the lifecycle and health contract of a storage backend.
type Adapter interface {
	HealthCheck(ctx context.Context) error
	Close() error
}

// Package kv implements the endpoints API on top of a byte-oriented
// key/value storage. Records are stored as JSON under their identity.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/nimburion/endpointstore/pkg/endpoints"
	"github.com/nimburion/endpointstore/pkg/endpoints/listing"
	"github.com/nimburion/endpointstore/pkg/observability/logger"
)

// DefaultIDProperty is the identity field used when none is configured.
const DefaultIDProperty = "id"

// ErrExists is returned by Storage.Create when the key is taken.
var ErrExists = errors.New("kv: key already exists")

// Entry is one stored value.
type Entry struct {
	Key   string
	Value []byte
}

// Storage is the persistence a kv API needs. Load reports found=false for a
// missing key and Delete reports whether a key was removed.
type Storage interface {
	Load(ctx context.Context, key string) (value []byte, found bool, err error)
	Save(ctx context.Context, key string, value []byte) error
	Create(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context) ([]Entry, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// Options configure an API.
type Options struct {
	IDProperty  string
	ReportCount bool
	// Name labels log entries, e.g. "redis".
	Name string
}

// API serves endpoints calls from a Storage.
type API struct {
	storage     Storage
	idProperty  string
	reportCount bool
	name        string
	log         logger.Logger
}

var _ endpoints.API = (*API)(nil)

// New wraps storage.
func New(storage Storage, opts Options, log logger.Logger) *API {
	idProperty := opts.IDProperty
	if idProperty == "" {
		idProperty = DefaultIDProperty
	}
	name := opts.Name
	if name == "" {
		name = "kv"
	}
	return &API{
		storage:     storage,
		idProperty:  idProperty,
		reportCount: opts.ReportCount,
		name:        name,
		log:         logger.OrNop(log),
	}
}

// IDProperty returns the identity field.
func (a *API) IDProperty() string { return a.idProperty }

// Storage returns the underlying storage.
func (a *API) Storage() Storage { return a.storage }

// Get fetches the record named by params[idProperty].
func (a *API) Get(ctx context.Context, params endpoints.Params) endpoints.Request {
	return a.call(ctx, "get", func(ctx context.Context) endpoints.Response {
		id, ok := params[a.idProperty]
		if !ok || id == nil {
			return endpoints.Failed(endpoints.BadRequest(fmt.Sprintf("missing %s", a.idProperty)))
		}
		raw, found, err := a.storage.Load(ctx, key(id))
		if err != nil {
			return endpoints.Failed(endpoints.Internal(err))
		}
		if !found {
			return endpoints.Failed(endpoints.NotFound(id))
		}
		return decoded(raw)
	})
}

// Update stores record under its identity, replacing any previous version.
func (a *API) Update(ctx context.Context, record map[string]any) endpoints.Request {
	return a.call(ctx, "update", func(ctx context.Context) endpoints.Response {
		id, ok := record[a.idProperty]
		if !ok || id == nil {
			return endpoints.Failed(endpoints.BadRequest(fmt.Sprintf("record has no %s", a.idProperty)))
		}
		raw, err := json.Marshal(record)
		if err != nil {
			return endpoints.Failed(endpoints.BadRequest(err.Error()))
		}
		if err := a.storage.Save(ctx, key(id), raw); err != nil {
			return endpoints.Failed(endpoints.Internal(err))
		}
		return decoded(raw)
	})
}

// Insert creates record, generating a missing identity. An identity that is
// already stored fails with 409.
func (a *API) Insert(ctx context.Context, record map[string]any) endpoints.Request {
	return a.call(ctx, "insert", func(ctx context.Context) endpoints.Response {
		stored := make(map[string]any, len(record)+1)
		for k, v := range record {
			stored[k] = v
		}
		if id, ok := stored[a.idProperty]; !ok || id == nil {
			stored[a.idProperty] = uuid.NewString()
		}
		id := stored[a.idProperty]
		raw, err := json.Marshal(stored)
		if err != nil {
			return endpoints.Failed(endpoints.BadRequest(err.Error()))
		}
		if err := a.storage.Create(ctx, key(id), raw); err != nil {
			if errors.Is(err, ErrExists) {
				return endpoints.Failed(endpoints.Conflict(id))
			}
			return endpoints.Failed(endpoints.Internal(err))
		}
		return decoded(raw)
	})
}

// Remove deletes the record named by params[idProperty].
func (a *API) Remove(ctx context.Context, params endpoints.Params) endpoints.Request {
	return a.call(ctx, "remove", func(ctx context.Context) endpoints.Response {
		id, ok := params[a.idProperty]
		if !ok || id == nil {
			return endpoints.Failed(endpoints.BadRequest(fmt.Sprintf("missing %s", a.idProperty)))
		}
		removed, err := a.storage.Delete(ctx, key(id))
		if err != nil {
			return endpoints.Failed(endpoints.Internal(err))
		}
		if !removed {
			return endpoints.Failed(endpoints.NotFound(id))
		}
		return endpoints.Succeeded(map[string]any{})
	})
}

// List returns one page of records. Without an order, records come in key
// order.
func (a *API) List(ctx context.Context, params endpoints.ListParams) endpoints.Request {
	return a.call(ctx, "list", func(ctx context.Context) endpoints.Response {
		entries, err := a.storage.Scan(ctx)
		if err != nil {
			return endpoints.Failed(endpoints.Internal(err))
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

		records := make([]map[string]any, 0, len(entries))
		for _, e := range entries {
			var rec map[string]any
			if err := json.Unmarshal(e.Value, &rec); err != nil {
				return endpoints.Failed(endpoints.Internal(fmt.Errorf("decode %s: %w", e.Key, err)))
			}
			records = append(records, rec)
		}
		return endpoints.Succeeded(listing.List(records, params).Body(a.reportCount))
	})
}

// HealthCheck checks the storage.
func (a *API) HealthCheck(ctx context.Context) error { return a.storage.HealthCheck(ctx) }

// Close closes the storage.
func (a *API) Close() error { return a.storage.Close() }

func (a *API) call(ctx context.Context, operation string, run func(context.Context) endpoints.Response) endpoints.Request {
	ctx = context.WithoutCancel(ctx)
	return endpoints.RequestFunc(func(callback func(endpoints.Response)) {
		go func() {
			resp := run(ctx)
			if resp.Error != nil {
				a.log.Debug("kv api call failed", "backend", a.name, "operation", operation, "error", resp.Error.Error())
			} else {
				a.log.Debug("kv api call", "backend", a.name, "operation", operation)
			}
			callback(resp)
		}()
	})
}

func decoded(raw []byte) endpoints.Response {
	var rec map[string]any
	if err := json.Unmarshal(raw, &rec); err != nil {
		return endpoints.Failed(endpoints.Internal(err))
	}
	return endpoints.Succeeded(rec)
}

func key(id any) string {
	return fmt.Sprint(id)
}

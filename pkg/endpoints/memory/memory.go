// Package memory is an in-process endpoints API. It behaves like a remote
// service: calls run when executed and their callbacks fire on a separate
// goroutine.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/nimburion/endpointstore/pkg/endpoints"
	"github.com/nimburion/endpointstore/pkg/endpoints/listing"
	"github.com/nimburion/endpointstore/pkg/observability/logger"
)

// DefaultIDProperty is the identity field used when none is configured.
const DefaultIDProperty = "id"

// API keeps records in a map keyed by their identity.
type API struct {
	mu          sync.RWMutex
	records     map[string]map[string]any
	order       []string
	idProperty  string
	reportCount bool
	log         logger.Logger
}

var _ endpoints.API = (*API)(nil)

// Option configures an API.
type Option func(*API)

// WithIDProperty sets the identity field.
func WithIDProperty(name string) Option {
	return func(a *API) {
		if name != "" {
			a.idProperty = name
		}
	}
}

// WithCount makes list responses carry the total number of records.
func WithCount(report bool) Option {
	return func(a *API) { a.reportCount = report }
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(a *API) { a.log = logger.OrNop(log) }
}

// WithRecords seeds the API. Records without an identity get a generated one.
func WithRecords(records ...map[string]any) Option {
	return func(a *API) {
		for _, r := range records {
			_, _ = a.insert(r)
		}
	}
}

// New creates an empty API.
func New(opts ...Option) *API {
	a := &API{
		records:    map[string]map[string]any{},
		idProperty: DefaultIDProperty,
		log:        logger.Nop{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// IDProperty returns the identity field.
func (a *API) IDProperty() string { return a.idProperty }

// Len returns the number of stored records.
func (a *API) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.records)
}

// Get fetches the record named by params[idProperty].
func (a *API) Get(ctx context.Context, params endpoints.Params) endpoints.Request {
	return a.call("get", func() endpoints.Response {
		id, ok := params[a.idProperty]
		if !ok || id == nil {
			return endpoints.Failed(endpoints.BadRequest(fmt.Sprintf("missing %s", a.idProperty)))
		}
		a.mu.RLock()
		defer a.mu.RUnlock()
		rec, found := a.records[key(id)]
		if !found {
			return endpoints.Failed(endpoints.NotFound(id))
		}
		return endpoints.Succeeded(clone(rec))
	})
}

// Update stores record under its identity, replacing any previous version.
func (a *API) Update(ctx context.Context, record map[string]any) endpoints.Request {
	return a.call("update", func() endpoints.Response {
		id, ok := record[a.idProperty]
		if !ok || id == nil {
			return endpoints.Failed(endpoints.BadRequest(fmt.Sprintf("record has no %s", a.idProperty)))
		}
		stored := clone(record)
		a.mu.Lock()
		defer a.mu.Unlock()
		k := key(id)
		if _, exists := a.records[k]; !exists {
			a.order = append(a.order, k)
		}
		a.records[k] = stored
		return endpoints.Succeeded(clone(stored))
	})
}

// Insert creates record. A missing identity is generated; an existing one
// fails with 409.
func (a *API) Insert(ctx context.Context, record map[string]any) endpoints.Request {
	return a.call("insert", func() endpoints.Response {
		stored, err := a.insert(record)
		if err != nil {
			return endpoints.Failed(err)
		}
		return endpoints.Succeeded(stored)
	})
}

func (a *API) insert(record map[string]any) (map[string]any, *endpoints.Error) {
	stored := clone(record)
	if id, ok := stored[a.idProperty]; !ok || id == nil {
		stored[a.idProperty] = uuid.NewString()
	}
	k := key(stored[a.idProperty])

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.records[k]; exists {
		return nil, endpoints.Conflict(stored[a.idProperty])
	}
	a.records[k] = stored
	a.order = append(a.order, k)
	return clone(stored), nil
}

// Remove deletes the record named by params[idProperty].
func (a *API) Remove(ctx context.Context, params endpoints.Params) endpoints.Request {
	return a.call("remove", func() endpoints.Response {
		id, ok := params[a.idProperty]
		if !ok || id == nil {
			return endpoints.Failed(endpoints.BadRequest(fmt.Sprintf("missing %s", a.idProperty)))
		}
		k := key(id)
		a.mu.Lock()
		defer a.mu.Unlock()
		if _, exists := a.records[k]; !exists {
			return endpoints.Failed(endpoints.NotFound(id))
		}
		delete(a.records, k)
		for i, existing := range a.order {
			if existing == k {
				a.order = append(a.order[:i], a.order[i+1:]...)
				break
			}
		}
		return endpoints.Succeeded(map[string]any{})
	})
}

// List returns one ordered page of records.
func (a *API) List(ctx context.Context, params endpoints.ListParams) endpoints.Request {
	return a.call("list", func() endpoints.Response {
		a.mu.RLock()
		snapshot := make([]map[string]any, 0, len(a.order))
		for _, k := range a.order {
			snapshot = append(snapshot, clone(a.records[k]))
		}
		a.mu.RUnlock()
		return endpoints.Succeeded(listing.List(snapshot, params).Body(a.reportCount))
	})
}

// HealthCheck always succeeds.
func (a *API) HealthCheck(context.Context) error { return nil }

// Close is a no-op.
func (a *API) Close() error { return nil }

func (a *API) call(operation string, run func() endpoints.Response) endpoints.Request {
	return endpoints.RequestFunc(func(callback func(endpoints.Response)) {
		go func() {
			resp := run()
			if resp.Error != nil {
				a.log.Debug("memory api call failed", "operation", operation, "error", resp.Error.Error())
			} else {
				a.log.Debug("memory api call", "operation", operation)
			}
			callback(resp)
		}()
	})
}

func key(id any) string {
	return fmt.Sprint(id)
}

func clone(record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for k, v := range record {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return clone(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

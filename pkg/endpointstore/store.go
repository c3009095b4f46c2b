// Package endpointstore adapts an endpoints API to the generic store
// contract. Every store operation issues exactly one remote call and settles
// its future from the call's completion handler.
package endpointstore

import (
	"context"
	"fmt"
	"time"

	"github.com/nimburion/endpointstore/pkg/endpoints"
	"github.com/nimburion/endpointstore/pkg/endpoints/listing"
	"github.com/nimburion/endpointstore/pkg/future"
	"github.com/nimburion/endpointstore/pkg/observability/logger"
	"github.com/nimburion/endpointstore/pkg/observability/metrics"
	"github.com/nimburion/endpointstore/pkg/observability/tracing"
	"github.com/nimburion/endpointstore/pkg/store"
)

// DefaultIDProperty is the identity field used when Config.IDProperty is empty.
const DefaultIDProperty = "id"

// Config configures a Store. API is required.
type Config struct {
	API        endpoints.API
	IDProperty string
	// System names the transport in spans, e.g. "rest" or "grpc".
	System string
	// Resource names the remote collection in spans.
	Resource string
}

// Store is a store.Store backed by an endpoints API.
type Store struct {
	api        endpoints.API
	idProperty string
	system     string
	resource   string
	log        logger.Logger
}

var _ store.Store = (*Store)(nil)

// New creates a Store. A nil log discards output.
func New(cfg Config, log logger.Logger) (*Store, error) {
	if cfg.API == nil {
		return nil, ErrAPIRequired
	}
	idProperty := cfg.IDProperty
	if idProperty == "" {
		idProperty = DefaultIDProperty
	}
	return &Store{
		api:        cfg.API,
		idProperty: idProperty,
		system:     cfg.System,
		resource:   cfg.Resource,
		log:        logger.OrNop(log).With("component", "endpointstore", "id_property", idProperty),
	}, nil
}

// MustNew is like New but panics on a missing API.
func MustNew(cfg Config, log logger.Logger) *Store {
	s, err := New(cfg, log)
	if err != nil {
		panic(err)
	}
	return s
}

// IDProperty returns the identity field.
func (s *Store) IDProperty() string { return s.idProperty }

// Get fetches the record whose identity is id.
func (s *Store) Get(ctx context.Context, id any) *future.Future[store.Record] {
	payload := s.execute(ctx, "get", func(ctx context.Context) endpoints.Request {
		return s.api.Get(ctx, endpoints.Params{s.idProperty: id})
	}, tracing.WithRecordID(id))
	return future.Then(payload, asRecord)
}

// GetIdentity returns record[IDProperty], or nil.
func (s *Store) GetIdentity(record store.Record) any {
	return record[s.idProperty]
}

// Put updates record. When neither directives nor the record carry an
// identity the record is created through Add instead. Overwrite is not
// honored: every update sends the full record.
func (s *Store) Put(ctx context.Context, record store.Record, directives *store.PutDirectives) *future.Future[store.Record] {
	id := s.effectiveIdentity(record, directives)
	if id == nil {
		return s.Add(ctx, record, directives)
	}
	payload := s.execute(ctx, "update", func(ctx context.Context) endpoints.Request {
		return s.api.Update(ctx, record)
	}, tracing.WithRecordID(id))
	return future.Then(payload, asRecord)
}

// Add creates record. An identity that is already present is sent as is;
// rejecting duplicates is left to the remote service.
func (s *Store) Add(ctx context.Context, record store.Record, directives *store.PutDirectives) *future.Future[store.Record] {
	id := s.effectiveIdentity(record, directives)
	payload := s.execute(ctx, "insert", func(ctx context.Context) endpoints.Request {
		return s.api.Insert(ctx, record)
	}, tracing.WithRecordID(id))
	return future.Then(payload, asRecord)
}

// Remove deletes the record whose identity is id and resolves with the raw
// response payload.
func (s *Store) Remove(ctx context.Context, id any) *future.Future[any] {
	return s.execute(ctx, "remove", func(ctx context.Context) endpoints.Request {
		return s.api.Remove(ctx, endpoints.Params{s.idProperty: id})
	}, tracing.WithRecordID(id))
}

// Query lists one page of records. The query predicate is not sent; only
// paging and ordering options reach the remote service. A count that cannot
// be read rejects the total but leaves the items resolved.
func (s *Store) Query(ctx context.Context, _ store.Query, options *store.QueryOptions) *store.QueryResults {
	params := ListParams(options)
	payload := s.execute(ctx, "list", func(ctx context.Context) endpoints.Request {
		return s.api.List(ctx, params)
	}, tracing.WithListOrder(params.Order))
	body := future.Then(payload, asRecord)
	return store.NewQueryResults(
		future.Then(body, pageItems),
		future.Then(body, func(b store.Record) (int, error) {
			return pageTotal(b, params.Offset)
		}),
		future.Then(body, pageToken),
	)
}

// ListParams translates query options into remote list parameters. Zero
// Start and Count are left unset.
func ListParams(options *store.QueryOptions) endpoints.ListParams {
	var params endpoints.ListParams
	if options == nil {
		return params
	}
	if options.Start != 0 {
		params.Offset = options.Start
	}
	if options.Count != 0 {
		params.Limit = options.Count
	}
	if len(options.Sort) > 0 {
		keys := make([]listing.OrderKey, len(options.Sort))
		for i, s := range options.Sort {
			keys[i] = listing.OrderKey{Attribute: s.Attribute, Descending: s.Descending}
		}
		params.Order = listing.FormatOrder(keys)
	}
	return params
}

func (s *Store) effectiveIdentity(record store.Record, directives *store.PutDirectives) any {
	if directives != nil && directives.ID != nil {
		return *directives.ID
	}
	return s.GetIdentity(record)
}

// execute issues the request built by build and settles the returned future
// from its completion handler: rejected with the response error verbatim,
// otherwise resolved with the response payload.
func (s *Store) execute(ctx context.Context, operation string, build func(context.Context) endpoints.Request, spanOpts ...tracing.RemoteCallSpanOption) *future.Future[any] {
	ctx = context.WithoutCancel(ctx)
	opts := append([]tracing.RemoteCallSpanOption{
		tracing.WithRPCSystem(s.system),
		tracing.WithRPCService(s.resource),
	}, spanOpts...)
	ctx, span := tracing.StartRemoteCallSpan(ctx, operation, opts...)
	log := s.log.WithContext(ctx)

	result := future.New[any]()
	start := time.Now()
	req := build(ctx)
	if req == nil {
		err := fmt.Errorf("%w: %s", ErrNilRequest, operation)
		metrics.RecordRemoteCall(operation, metrics.StatusError, time.Since(start))
		tracing.RecordError(span, err)
		span.End()
		log.Error("api returned no request", "operation", operation)
		result.Reject(err)
		return result
	}
	req.Execute(func(resp endpoints.Response) {
		defer span.End()
		elapsed := time.Since(start)
		if resp.Error != nil {
			metrics.RecordRemoteCall(operation, metrics.StatusError, elapsed)
			tracing.RecordError(span, resp.Error)
			log.Debug("remote call failed", "operation", operation, "error", resp.Error.Error(), "duration", elapsed)
			if !result.Reject(resp.Error) {
				log.Warn("remote call completed more than once", "operation", operation)
			}
			return
		}
		metrics.RecordRemoteCall(operation, metrics.StatusOK, elapsed)
		tracing.RecordSuccess(span)
		log.Debug("remote call completed", "operation", operation, "duration", elapsed)
		if !result.Resolve(resp.Payload()) {
			log.Warn("remote call completed more than once", "operation", operation)
		}
	})
	return result
}

func asRecord(payload any) (store.Record, error) {
	switch v := payload.(type) {
	case store.Record:
		return v, nil
	case map[string]any:
		return store.Record(v), nil
	default:
		return nil, fmt.Errorf("%w: want an object, got %T", ErrUnexpectedPayload, payload)
	}
}

package cli

import (
	"fmt"

	"github.com/nimburion/endpointstore/pkg/config"
	"github.com/nimburion/endpointstore/pkg/endpoints"
	"github.com/nimburion/endpointstore/pkg/endpoints/grpcapi"
	"github.com/nimburion/endpointstore/pkg/endpoints/rest"
	"github.com/nimburion/endpointstore/pkg/endpointstore"
	"github.com/nimburion/endpointstore/pkg/observability/logger"
	"github.com/nimburion/endpointstore/pkg/resilience"
	"github.com/nimburion/endpointstore/pkg/sandbox"
)

// OpenAPI builds the endpoints client named by cfg.Endpoints.Transport. The
// memory transport runs the sandbox backend in process. Remote transports are
// guarded by the configured circuit breaker. The returned function releases
// the client.
func OpenAPI(cfg *config.Config, log logger.Logger) (endpoints.API, func() error, error) {
	ep := cfg.Endpoints
	switch ep.Transport {
	case "", config.TransportMemory:
		backend, err := sandbox.OpenBackend(cfg.Sandbox, ep.IDProperty, log)
		if err != nil {
			return nil, nil, err
		}
		return backend, backend.Close, nil
	case config.TransportREST:
		opts := []rest.Option{rest.WithIDProperty(ep.IDProperty), rest.WithLogger(log)}
		if ep.BearerToken != "" {
			opts = append(opts, rest.WithBearerToken(ep.BearerToken))
		}
		client, err := rest.NewClient(ep.URL, ep.Resource, opts...)
		if err != nil {
			return nil, nil, err
		}
		return guard(client, cfg, log), func() error { return nil }, nil
	case config.TransportGRPC:
		conn, err := grpcapi.Dial(ep.GRPC.Target, ep.GRPC.Insecure)
		if err != nil {
			return nil, nil, err
		}
		return guard(grpcapi.NewClient(conn, log), cfg, log), conn.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport %q", ep.Transport)
	}
}

func guard(api endpoints.API, cfg *config.Config, log logger.Logger) endpoints.API {
	cb := cfg.Endpoints.CircuitBreaker
	if cb.MaxFailures <= 0 {
		return api
	}
	return resilience.Guard(api, resilience.NewCircuitBreaker(cb.MaxFailures, cb.ResetTimeout), log)
}

// OpenStore wraps the configured endpoints client in a store.
func OpenStore(cfg *config.Config, log logger.Logger) (*endpointstore.Store, func() error, error) {
	api, closeFn, err := OpenAPI(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	st, err := endpointstore.New(endpointstore.Config{
		API:        api,
		IDProperty: cfg.Endpoints.IDProperty,
		System:     cfg.Endpoints.Transport,
		Resource:   cfg.Endpoints.Resource,
	}, log)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return st, closeFn, nil
}

package sandbox

import (
	"fmt"

	"github.com/nimburion/endpointstore/pkg/config"
	"github.com/nimburion/endpointstore/pkg/endpoints"
	"github.com/nimburion/endpointstore/pkg/endpoints/boltapi"
	"github.com/nimburion/endpointstore/pkg/endpoints/memory"
	"github.com/nimburion/endpointstore/pkg/endpoints/redisapi"
	"github.com/nimburion/endpointstore/pkg/observability/logger"
	"github.com/nimburion/endpointstore/pkg/store"
)

// Backend is an endpoints API the sandbox can serve, check and close.
type Backend interface {
	endpoints.API
	store.Adapter
}

// OpenBackend builds the backend named by cfg.Backend.
func OpenBackend(cfg config.SandboxConfig, idProperty string, log logger.Logger) (Backend, error) {
	switch cfg.Backend {
	case "", config.BackendMemory:
		return memory.New(
			memory.WithIDProperty(idProperty),
			memory.WithCount(cfg.ReportCount),
			memory.WithLogger(log),
		), nil
	case config.BackendRedis:
		api, err := redisapi.New(redisapi.Config{
			URL:              cfg.Redis.URL,
			Key:              cfg.Redis.Key,
			MaxConns:         cfg.Redis.MaxConns,
			OperationTimeout: cfg.Redis.OperationTimeout,
			IDProperty:       idProperty,
			ReportCount:      cfg.ReportCount,
		}, log)
		if err != nil {
			return nil, err
		}
		return api, nil
	case config.BackendBolt:
		api, err := boltapi.New(boltapi.Config{
			Path:        cfg.Bolt.Path,
			Bucket:      cfg.Bolt.Bucket,
			IDProperty:  idProperty,
			ReportCount: cfg.ReportCount,
		}, log)
		if err != nil {
			return nil, err
		}
		return api, nil
	default:
		return nil, fmt.Errorf("sandbox: unknown backend %q", cfg.Backend)
	}
}

package cli

import (
	"testing"

	"github.com/nimburion/endpointstore/pkg/config"
	"github.com/nimburion/endpointstore/pkg/endpoints/memory"
	"github.com/nimburion/endpointstore/pkg/endpoints/rest"
	"github.com/nimburion/endpointstore/pkg/resilience"
)

func TestOpenAPI(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		check  func(t *testing.T, api any)
	}{
		{
			name:   "memory runs the backend in process",
			mutate: func(*config.Config) {},
			check: func(t *testing.T, api any) {
				if _, ok := api.(*memory.API); !ok {
					t.Fatalf("api = %T, want *memory.API", api)
				}
			},
		},
		{
			name: "rest is guarded",
			mutate: func(c *config.Config) {
				c.Endpoints.Transport = config.TransportREST
				c.Endpoints.URL = "http://localhost:8080/_ah/api/endpointstore/v1"
			},
			check: func(t *testing.T, api any) {
				if _, ok := api.(*resilience.API); !ok {
					t.Fatalf("api = %T, want *resilience.API", api)
				}
			},
		},
		{
			name: "rest without breaker",
			mutate: func(c *config.Config) {
				c.Endpoints.Transport = config.TransportREST
				c.Endpoints.URL = "http://localhost:8080"
				c.Endpoints.CircuitBreaker.MaxFailures = 0
			},
			check: func(t *testing.T, api any) {
				if _, ok := api.(*rest.Client); !ok {
					t.Fatalf("api = %T, want *rest.Client", api)
				}
			},
		},
		{
			name: "grpc is guarded",
			mutate: func(c *config.Config) {
				c.Endpoints.Transport = config.TransportGRPC
				c.Endpoints.GRPC = config.GRPCConfig{Target: "localhost:9090", Insecure: true}
			},
			check: func(t *testing.T, api any) {
				if _, ok := api.(*resilience.API); !ok {
					t.Fatalf("api = %T, want *resilience.API", api)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			api, closeFn, err := OpenAPI(cfg, nil)
			if err != nil {
				t.Fatalf("OpenAPI: %v", err)
			}
			defer closeFn()
			tt.check(t, api)
		})
	}
}

func TestOpenAPI_Errors(t *testing.T) {
	for name, mutate := range map[string]func(*config.Config){
		"unknown transport": func(c *config.Config) { c.Endpoints.Transport = "pigeon" },
		"bad url":           func(c *config.Config) { c.Endpoints.Transport = config.TransportREST; c.Endpoints.URL = "ftp://x" },
		"grpc without target": func(c *config.Config) {
			c.Endpoints.Transport = config.TransportGRPC
		},
		"bad backend": func(c *config.Config) { c.Sandbox.Backend = "tape" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			mutate(cfg)
			if _, _, err := OpenAPI(cfg, nil); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

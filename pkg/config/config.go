// Package config loads endpointstore settings from defaults, an optional
// config file, an optional secrets file, environment variables and command
// line flags.
package config

import "time"

// Transport names for endpoints.transport.
const (
	TransportMemory = "memory"
	TransportREST   = "rest"
	TransportGRPC   = "grpc"
)

// Sandbox backend names for sandbox.backend.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBolt   = "bolt"
)

// Config is the root configuration structure
type Config struct {
	Service       ServiceConfig       `mapstructure:"service" yaml:"service"`
	Log           LogConfig           `mapstructure:"log" yaml:"log"`
	Endpoints     EndpointsConfig     `mapstructure:"endpoints" yaml:"endpoints"`
	Sandbox       SandboxConfig       `mapstructure:"sandbox" yaml:"sandbox"`
	Observability ObservabilityConfig `mapstructure:"observability" yaml:"observability"`
}

// ServiceConfig configures service identity metadata.
type ServiceConfig struct {
	Name        string `mapstructure:"name" yaml:"name"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// EndpointsConfig selects and configures the client used to reach the
// remote endpoints service.
type EndpointsConfig struct {
	Transport   string        `mapstructure:"transport" yaml:"transport"`
	URL         string        `mapstructure:"url" yaml:"url"`
	Resource    string        `mapstructure:"resource" yaml:"resource"`
	IDProperty  string        `mapstructure:"id_property" yaml:"id_property"`
	BearerToken string        `mapstructure:"bearer_token" yaml:"bearer_token"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	GRPC        GRPCConfig    `mapstructure:"grpc" yaml:"grpc"`

	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker" yaml:"circuit_breaker"`
}

// CircuitBreakerConfig guards the remote transports. A zero MaxFailures
// disables the breaker.
type CircuitBreakerConfig struct {
	MaxFailures  int           `mapstructure:"max_failures" yaml:"max_failures"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout" yaml:"reset_timeout"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Target   string `mapstructure:"target" yaml:"target"`
	Insecure bool   `mapstructure:"insecure" yaml:"insecure"`
}

// SandboxConfig configures the local endpoints service.
type SandboxConfig struct {
	HTTPAddr    string          `mapstructure:"http_addr" yaml:"http_addr"`
	GRPCAddr    string          `mapstructure:"grpc_addr" yaml:"grpc_addr"`
	Backend     string          `mapstructure:"backend" yaml:"backend"`
	ReportCount bool            `mapstructure:"report_count" yaml:"report_count"`
	Redis       RedisConfig     `mapstructure:"redis" yaml:"redis"`
	Bolt        BoltConfig      `mapstructure:"bolt" yaml:"bolt"`
	Auth        AuthConfig      `mapstructure:"auth" yaml:"auth"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RedisConfig configures the redis sandbox backend.
type RedisConfig struct {
	URL              string        `mapstructure:"url" yaml:"url"`
	Key              string        `mapstructure:"key" yaml:"key"`
	MaxConns         int           `mapstructure:"max_conns" yaml:"max_conns"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout"`
}

// BoltConfig configures the bbolt sandbox backend.
type BoltConfig struct {
	Path   string `mapstructure:"path" yaml:"path"`
	Bucket string `mapstructure:"bucket" yaml:"bucket"`
}

// AuthConfig configures bearer token checks on the sandbox REST surface. An
// empty secret disables them.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	Issuer    string `mapstructure:"issuer" yaml:"issuer"`
}

// RateLimitConfig configures request throttling on the sandbox. A zero RPS
// disables it.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps" yaml:"rps"`
	Burst int     `mapstructure:"burst" yaml:"burst"`
}

// ObservabilityConfig configures metrics and tracing.
type ObservabilityConfig struct {
	MetricsEnabled    bool    `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`
	TracingEnabled    bool    `mapstructure:"tracing_enabled" yaml:"tracing_enabled"`
	TracingEndpoint   string  `mapstructure:"tracing_endpoint" yaml:"tracing_endpoint"`
	TracingSampleRate float64 `mapstructure:"tracing_sample_rate" yaml:"tracing_sample_rate"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "endpointstore",
			Environment: "development",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Endpoints: EndpointsConfig{
			Transport:  TransportMemory,
			Resource:   "records",
			IDProperty: "id",
			Timeout:    30 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				MaxFailures:  5,
				ResetTimeout: 30 * time.Second,
			},
		},
		Sandbox: SandboxConfig{
			HTTPAddr: ":8080",
			GRPCAddr: ":9090",
			Backend:  BackendMemory,
			Redis: RedisConfig{
				Key:              "endpointstore:records",
				MaxConns:         10,
				OperationTimeout: 5 * time.Second,
			},
			Bolt: BoltConfig{
				Path:   "endpointstore.db",
				Bucket: "records",
			},
			Auth: AuthConfig{
				Issuer: "endpointstore",
			},
			RateLimit: RateLimitConfig{
				Burst: 10,
			},
		},
		Observability: ObservabilityConfig{
			MetricsEnabled:    true,
			TracingSampleRate: 1.0,
		},
	}
}

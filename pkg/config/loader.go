package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultEnvPrefix prefixes environment variables when no prefix is given.
const DefaultEnvPrefix = "ENDPOINTSTORE"

// Loader defines the interface for loading configuration
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader implements Loader using Viper for configuration management
type ViperLoader struct {
	configFile string
	envPrefix  string
	flags      *pflag.FlagSet
}

// flagKeys maps command line flag names onto configuration keys.
var flagKeys = map[string]string{
	"transport":   "endpoints.transport",
	"url":         "endpoints.url",
	"resource":    "endpoints.resource",
	"id-property": "endpoints.id_property",
	"timeout":     "endpoints.timeout",
	"log-level":   "log.level",
	"log-format":  "log.format",
	"http-addr":   "sandbox.http_addr",
	"grpc-addr":   "sandbox.grpc_addr",
	"backend":     "sandbox.backend",
}

// NewViperLoader creates a new ViperLoader
// configFile: path to configuration file (optional, can be empty)
// envPrefix: prefix for environment variables (defaults to ENDPOINTSTORE)
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{
		configFile: configFile,
		envPrefix:  envPrefix,
	}
}

// WithFlags makes the known flags of flags override every other source.
// Flags that were not set on the command line are ignored.
func (l *ViperLoader) WithFlags(flags *pflag.FlagSet) *ViperLoader {
	l.flags = flags
	return l
}

// ConfigFile returns the configured file path, or "".
func (l *ViperLoader) ConfigFile() string { return l.configFile }

// Load loads configuration with precedence: flags > ENV > secrets file >
// config file > defaults
func (l *ViperLoader) Load() (*Config, error) {
	v := viper.New()
	l.setDefaults(v, DefaultConfig())

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}

	secretsFile, err := l.discoverSecretsFile()
	if err != nil {
		return nil, err
	}
	if secretsFile != "" {
		secrets := viper.New()
		secrets.SetConfigFile(secretsFile)
		if err := secrets.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read secrets file %s: %w", secretsFile, err)
		}
		if err := v.MergeConfigMap(secrets.AllSettings()); err != nil {
			return nil, fmt.Errorf("failed to merge secrets: %w", err)
		}
	}

	l.bindEnvVars(v)
	if err := l.bindFlags(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// bindEnvVars explicitly binds environment variables for nested structs
func (l *ViperLoader) bindEnvVars(v *viper.Viper) {
	v.BindEnv("service.name", l.prefixedEnv("SERVICE_NAME"))
	v.BindEnv("service.environment", l.prefixedEnv("SERVICE_ENVIRONMENT"), l.prefixedEnv("ENVIRONMENT"))

	v.BindEnv("log.level", l.prefixedEnv("LOG_LEVEL"))
	v.BindEnv("log.format", l.prefixedEnv("LOG_FORMAT"))

	// Endpoints client
	v.BindEnv("endpoints.transport", l.prefixedEnv("TRANSPORT"))
	v.BindEnv("endpoints.url", l.prefixedEnv("URL"))
	v.BindEnv("endpoints.resource", l.prefixedEnv("RESOURCE"))
	v.BindEnv("endpoints.id_property", l.prefixedEnv("ID_PROPERTY"))
	v.BindEnv("endpoints.bearer_token", l.prefixedEnv("BEARER_TOKEN"))
	v.BindEnv("endpoints.timeout", l.prefixedEnv("TIMEOUT"))
	v.BindEnv("endpoints.grpc.target", l.prefixedEnv("GRPC_TARGET"))
	v.BindEnv("endpoints.grpc.insecure", l.prefixedEnv("GRPC_INSECURE"))
	v.BindEnv("endpoints.circuit_breaker.max_failures", l.prefixedEnv("CIRCUIT_BREAKER_MAX_FAILURES"))
	v.BindEnv("endpoints.circuit_breaker.reset_timeout", l.prefixedEnv("CIRCUIT_BREAKER_RESET_TIMEOUT"))

	// Sandbox
	v.BindEnv("sandbox.http_addr", l.prefixedEnv("SANDBOX_HTTP_ADDR"))
	v.BindEnv("sandbox.grpc_addr", l.prefixedEnv("SANDBOX_GRPC_ADDR"))
	v.BindEnv("sandbox.backend", l.prefixedEnv("SANDBOX_BACKEND"))
	v.BindEnv("sandbox.report_count", l.prefixedEnv("SANDBOX_REPORT_COUNT"))
	v.BindEnv("sandbox.redis.url", l.prefixedEnv("SANDBOX_REDIS_URL"), l.prefixedEnv("REDIS_URL"))
	v.BindEnv("sandbox.redis.key", l.prefixedEnv("SANDBOX_REDIS_KEY"))
	v.BindEnv("sandbox.redis.max_conns", l.prefixedEnv("SANDBOX_REDIS_MAX_CONNS"))
	v.BindEnv("sandbox.redis.operation_timeout", l.prefixedEnv("SANDBOX_REDIS_OPERATION_TIMEOUT"))
	v.BindEnv("sandbox.bolt.path", l.prefixedEnv("SANDBOX_BOLT_PATH"))
	v.BindEnv("sandbox.bolt.bucket", l.prefixedEnv("SANDBOX_BOLT_BUCKET"))
	v.BindEnv("sandbox.auth.jwt_secret", l.prefixedEnv("SANDBOX_JWT_SECRET"))
	v.BindEnv("sandbox.auth.issuer", l.prefixedEnv("SANDBOX_JWT_ISSUER"))
	v.BindEnv("sandbox.rate_limit.rps", l.prefixedEnv("SANDBOX_RATE_LIMIT_RPS"))
	v.BindEnv("sandbox.rate_limit.burst", l.prefixedEnv("SANDBOX_RATE_LIMIT_BURST"))

	// Observability
	v.BindEnv("observability.metrics_enabled", l.prefixedEnv("METRICS_ENABLED"))
	v.BindEnv("observability.tracing_enabled", l.prefixedEnv("TRACING_ENABLED"))
	v.BindEnv("observability.tracing_endpoint", l.prefixedEnv("TRACING_ENDPOINT"))
	v.BindEnv("observability.tracing_sample_rate", l.prefixedEnv("TRACING_SAMPLE_RATE"))
}

func (l *ViperLoader) bindFlags(v *viper.Viper) error {
	if l.flags == nil {
		return nil
	}
	for name, key := range flagKeys {
		flag := l.flags.Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

func (l *ViperLoader) prefixedEnv(suffix string) string {
	prefix := strings.TrimSpace(l.envPrefix)
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return fmt.Sprintf("%s_%s", strings.ToUpper(prefix), suffix)
}

// setDefaults sets default values in Viper from the default config
func (l *ViperLoader) setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("service.name", cfg.Service.Name)
	v.SetDefault("service.environment", cfg.Service.Environment)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)

	v.SetDefault("endpoints.transport", cfg.Endpoints.Transport)
	v.SetDefault("endpoints.url", cfg.Endpoints.URL)
	v.SetDefault("endpoints.resource", cfg.Endpoints.Resource)
	v.SetDefault("endpoints.id_property", cfg.Endpoints.IDProperty)
	v.SetDefault("endpoints.bearer_token", cfg.Endpoints.BearerToken)
	v.SetDefault("endpoints.timeout", cfg.Endpoints.Timeout)
	v.SetDefault("endpoints.grpc.target", cfg.Endpoints.GRPC.Target)
	v.SetDefault("endpoints.grpc.insecure", cfg.Endpoints.GRPC.Insecure)
	v.SetDefault("endpoints.circuit_breaker.max_failures", cfg.Endpoints.CircuitBreaker.MaxFailures)
	v.SetDefault("endpoints.circuit_breaker.reset_timeout", cfg.Endpoints.CircuitBreaker.ResetTimeout)

	v.SetDefault("sandbox.http_addr", cfg.Sandbox.HTTPAddr)
	v.SetDefault("sandbox.grpc_addr", cfg.Sandbox.GRPCAddr)
	v.SetDefault("sandbox.backend", cfg.Sandbox.Backend)
	v.SetDefault("sandbox.report_count", cfg.Sandbox.ReportCount)
	v.SetDefault("sandbox.redis.url", cfg.Sandbox.Redis.URL)
	v.SetDefault("sandbox.redis.key", cfg.Sandbox.Redis.Key)
	v.SetDefault("sandbox.redis.max_conns", cfg.Sandbox.Redis.MaxConns)
	v.SetDefault("sandbox.redis.operation_timeout", cfg.Sandbox.Redis.OperationTimeout)
	v.SetDefault("sandbox.bolt.path", cfg.Sandbox.Bolt.Path)
	v.SetDefault("sandbox.bolt.bucket", cfg.Sandbox.Bolt.Bucket)
	v.SetDefault("sandbox.auth.jwt_secret", cfg.Sandbox.Auth.JWTSecret)
	v.SetDefault("sandbox.auth.issuer", cfg.Sandbox.Auth.Issuer)
	v.SetDefault("sandbox.rate_limit.rps", cfg.Sandbox.RateLimit.RPS)
	v.SetDefault("sandbox.rate_limit.burst", cfg.Sandbox.RateLimit.Burst)

	v.SetDefault("observability.metrics_enabled", cfg.Observability.MetricsEnabled)
	v.SetDefault("observability.tracing_enabled", cfg.Observability.TracingEnabled)
	v.SetDefault("observability.tracing_endpoint", cfg.Observability.TracingEndpoint)
	v.SetDefault("observability.tracing_sample_rate", cfg.Observability.TracingSampleRate)
}

// Validate validates the configuration and returns every problem found
func (l *ViperLoader) Validate(cfg *Config) error {
	var errs []error

	cfg.Endpoints.Transport = strings.ToLower(strings.TrimSpace(cfg.Endpoints.Transport))
	cfg.Sandbox.Backend = strings.ToLower(strings.TrimSpace(cfg.Sandbox.Backend))

	if strings.TrimSpace(cfg.Service.Name) == "" {
		errs = append(errs, errors.New("service.name is required"))
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, strings.ToLower(cfg.Log.Level)) {
		errs = append(errs, fmt.Errorf("invalid log.level: %s (must be one of: %v)", cfg.Log.Level, validLevels))
	}
	validFormats := []string{"json", "text"}
	if !contains(validFormats, strings.ToLower(cfg.Log.Format)) {
		errs = append(errs, fmt.Errorf("invalid log.format: %s (must be one of: %v)", cfg.Log.Format, validFormats))
	}

	validTransports := []string{TransportMemory, TransportREST, TransportGRPC}
	switch cfg.Endpoints.Transport {
	case TransportMemory:
	case TransportREST:
		if cfg.Endpoints.URL == "" {
			errs = append(errs, errors.New("endpoints.url is required for the rest transport"))
		}
	case TransportGRPC:
		if cfg.Endpoints.GRPC.Target == "" {
			errs = append(errs, errors.New("endpoints.grpc.target is required for the grpc transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid endpoints.transport: %s (must be one of: %v)", cfg.Endpoints.Transport, validTransports))
	}
	if strings.TrimSpace(cfg.Endpoints.IDProperty) == "" {
		errs = append(errs, errors.New("endpoints.id_property is required"))
	}
	if cfg.Endpoints.Timeout < 0 {
		errs = append(errs, errors.New("endpoints.timeout must not be negative"))
	}
	if cb := cfg.Endpoints.CircuitBreaker; cb.MaxFailures < 0 || cb.ResetTimeout < 0 {
		errs = append(errs, errors.New("endpoints.circuit_breaker values must not be negative"))
	}

	validBackends := []string{BackendMemory, BackendRedis, BackendBolt}
	switch cfg.Sandbox.Backend {
	case BackendMemory:
	case BackendRedis:
		if cfg.Sandbox.Redis.URL == "" {
			errs = append(errs, errors.New("sandbox.redis.url is required for the redis backend"))
		}
	case BackendBolt:
		if cfg.Sandbox.Bolt.Path == "" {
			errs = append(errs, errors.New("sandbox.bolt.path is required for the bolt backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid sandbox.backend: %s (must be one of: %v)", cfg.Sandbox.Backend, validBackends))
	}
	if cfg.Sandbox.RateLimit.RPS < 0 {
		errs = append(errs, errors.New("sandbox.rate_limit.rps must not be negative"))
	}
	if cfg.Sandbox.RateLimit.RPS > 0 && cfg.Sandbox.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("sandbox.rate_limit.burst must be positive when rate limiting is enabled"))
	}

	if cfg.Observability.TracingEnabled && cfg.Observability.TracingEndpoint == "" {
		errs = append(errs, errors.New("observability.tracing_endpoint is required when tracing is enabled"))
	}
	if rate := cfg.Observability.TracingSampleRate; rate < 0 || rate > 1 {
		errs = append(errs, fmt.Errorf("observability.tracing_sample_rate must be between 0 and 1, got %v", rate))
	}

	return errors.Join(errs...)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// Package redisapi serves the endpoints API from Redis. Each resource is one
// hash whose fields are record identities and whose values are JSON records.
package redisapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nimburion/endpointstore/pkg/endpoints/kv"
	"github.com/nimburion/endpointstore/pkg/observability/logger"
)

// DefaultKey is the hash used when Config.Key is empty.
const DefaultKey = "endpointstore:records"

// Config holds Redis connection and layout settings.
type Config struct {
	URL              string
	Key              string
	MaxConns         int
	OperationTimeout time.Duration
	IDProperty       string
	ReportCount      bool
}

// Storage is a kv.Storage over one Redis hash.
type Storage struct {
	client *redis.Client
	key    string
	logger logger.Logger
}

var _ kv.Storage = (*Storage)(nil)

// New connects to Redis and returns an endpoints API backed by it.
func New(cfg Config, log logger.Logger) (*kv.API, error) {
	storage, err := NewStorage(cfg, log)
	if err != nil {
		return nil, err
	}
	return kv.New(storage, kv.Options{
		IDProperty:  cfg.IDProperty,
		ReportCount: cfg.ReportCount,
		Name:        "redis",
	}, log), nil
}

// NewStorage parses cfg.URL, configures the pool and verifies the connection.
func NewStorage(cfg Config, log logger.Logger) (*Storage, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis URL is required")
	}
	log = logger.OrNop(log)

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		opts.PoolSize = cfg.MaxConns
	}
	opts.DialTimeout = 5 * time.Second
	if cfg.OperationTimeout > 0 {
		opts.ReadTimeout = cfg.OperationTimeout
		opts.WriteTimeout = cfg.OperationTimeout
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	s := NewStorageFromClient(client, cfg.Key, log)
	log.Info("Redis connection established",
		"key", s.key,
		"max_conns", opts.PoolSize,
		"operation_timeout", cfg.OperationTimeout,
	)
	return s, nil
}

// NewStorageFromClient wraps an existing client.
func NewStorageFromClient(client *redis.Client, key string, log logger.Logger) *Storage {
	if key == "" {
		key = DefaultKey
	}
	return &Storage{client: client, key: key, logger: logger.OrNop(log)}
}

// Client returns the underlying client.
func (s *Storage) Client() *redis.Client { return s.client }

// Key returns the hash holding the records.
func (s *Storage) Key() string { return s.key }

// Load reads one record.
func (s *Storage) Load(ctx context.Context, field string) ([]byte, bool, error) {
	val, err := s.client.HGet(ctx, s.key, field).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get record %s: %w", field, err)
	}
	return val, true, nil
}

// Save writes one record, replacing any previous value.
func (s *Storage) Save(ctx context.Context, field string, value []byte) error {
	if err := s.client.HSet(ctx, s.key, field, value).Err(); err != nil {
		return fmt.Errorf("failed to set record %s: %w", field, err)
	}
	return nil
}

// Create writes one record only if its field is free.
func (s *Storage) Create(ctx context.Context, field string, value []byte) error {
	created, err := s.client.HSetNX(ctx, s.key, field, value).Result()
	if err != nil {
		return fmt.Errorf("failed to create record %s: %w", field, err)
	}
	if !created {
		return kv.ErrExists
	}
	return nil
}

// Delete removes one record.
func (s *Storage) Delete(ctx context.Context, field string) (bool, error) {
	n, err := s.client.HDel(ctx, s.key, field).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete record %s: %w", field, err)
	}
	return n > 0, nil
}

// Scan reads every record of the hash.
func (s *Storage) Scan(ctx context.Context) ([]kv.Entry, error) {
	all, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	entries := make([]kv.Entry, 0, len(all))
	for field, value := range all {
		entries = append(entries, kv.Entry{Key: field, Value: []byte(value)})
	}
	return entries, nil
}

// HealthCheck pings Redis with a short timeout.
func (s *Storage) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		s.logger.Error("Redis health check failed", "error", err)
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Storage) Close() error {
	s.logger.Info("closing Redis connection")
	if err := s.client.Close(); err != nil {
		s.logger.Error("failed to close Redis connection", "error", err)
		return fmt.Errorf("failed to close redis connection: %w", err)
	}
	return nil
}

// Package boltapi serves the endpoints API from a bbolt file. Records live in
// one bucket keyed by identity.
package boltapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.etcd.io/bbolt"

	"github.com/nimburion/endpointstore/pkg/endpoints/kv"
	"github.com/nimburion/endpointstore/pkg/observability/logger"
)

// DefaultBucket is the bucket used when Config.Bucket is empty.
const DefaultBucket = "records"

// Config locates the database file.
type Config struct {
	Path        string
	Bucket      string
	FileMode    os.FileMode
	IDProperty  string
	ReportCount bool
}

// Storage is a kv.Storage over one bbolt bucket.
type Storage struct {
	db     *bbolt.DB
	bucket []byte
	logger logger.Logger
}

var _ kv.Storage = (*Storage)(nil)

// New opens the database and returns an endpoints API backed by it.
func New(cfg Config, log logger.Logger) (*kv.API, error) {
	storage, err := NewStorage(cfg, log)
	if err != nil {
		return nil, err
	}
	return kv.New(storage, kv.Options{
		IDProperty:  cfg.IDProperty,
		ReportCount: cfg.ReportCount,
		Name:        "bolt",
	}, log), nil
}

// NewStorage opens cfg.Path and creates the bucket if needed.
func NewStorage(cfg Config, log logger.Logger) (*Storage, error) {
	if cfg.Path == "" {
		return nil, errors.New("bolt path is required")
	}
	mode := cfg.FileMode
	if mode == 0 {
		mode = 0o600
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = DefaultBucket
	}
	log = logger.OrNop(log)

	db, err := bbolt.Open(cfg.Path, mode, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}

	log.Info("bolt database opened", "path", cfg.Path, "bucket", bucket)
	return &Storage{db: db, bucket: []byte(bucket), logger: log}, nil
}

// Load reads one record.
func (s *Storage) Load(_ context.Context, key string) (value []byte, found bool, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		value = bytes.Clone(v)
		found = true
		return nil
	})
	return value, found, err
}

// Save writes one record.
func (s *Storage) Save(_ context.Context, key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), value)
	})
}

// Create writes one record only if its key is free.
func (s *Storage) Create(_ context.Context, key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b.Get([]byte(key)) != nil {
			return kv.ErrExists
		}
		return b.Put([]byte(key), value)
	})
}

// Delete removes one record.
func (s *Storage) Delete(_ context.Context, key string) (removed bool, err error) {
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b.Get([]byte(key)) == nil {
			return nil
		}
		removed = true
		return b.Delete([]byte(key))
	})
	return removed, err
}

// Scan reads every record in key order.
func (s *Storage) Scan(context.Context) (entries []kv.Entry, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, v []byte) error {
			entries = append(entries, kv.Entry{Key: string(k), Value: bytes.Clone(v)})
			return nil
		})
	})
	return entries, err
}

// HealthCheck verifies the bucket is readable.
func (s *Storage) HealthCheck(context.Context) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(s.bucket) == nil {
			return fmt.Errorf("bucket %s is missing", s.bucket)
		}
		return nil
	})
}

// Close closes the database file.
func (s *Storage) Close() error {
	s.logger.Info("closing bolt database", "path", s.db.Path())
	return s.db.Close()
}

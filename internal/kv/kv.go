// Package kv provides the key-value store abstraction for gpt-enduser.
//
// All derived state (rate-limit marker, duplicate guard entries, reply
// records, feed caches, the journal) lives in a store behind this interface.
// Backends: Redis, SQLite, PostgreSQL, and an in-memory store for tests.
package kv

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Store is the minimal key-value contract the rest of the system consumes.
// Values are strings; a zero TTL means the entry never expires.
type Store interface {
	// Get returns the value for key. The second return reports whether the
	// key was present (and unexpired).
	Get(ctx context.Context, key string) (string, bool, error)

	// Put writes key=value with the given TTL, overwriting any prior entry.
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// PutIfAbsent writes key=value only when no live entry exists. Returns
	// true when the write happened, false when an entry was already present.
	// This is the conditional primitive the duplicate guard relies on.
	PutIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}

// Opts holds configuration for store construction.
type Opts struct {
	DSN string
}

// Option configures store construction.
type Option func(*Opts)

// WithDSN sets the data source name for the backing store.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType returns the backend implied by a DSN: "redis", "postgres",
// "sqlite", or "memory" for an empty DSN.
func DetectDSNType(dsn string) string {
	switch {
	case dsn == "":
		return "memory"
	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		return "redis"
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "host="):
		return "postgres"
	default:
		return "sqlite"
	}
}

// Open constructs the store matching the DSN type.
func Open(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	switch kind := DetectDSNType(cfg.DSN); kind {
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(opts...)
	case "postgres":
		return NewPostgresStore(opts...)
	case "sqlite":
		return NewSQLiteStore(opts...)
	default:
		return nil, fmt.Errorf("unknown store type %q", kind)
	}
}

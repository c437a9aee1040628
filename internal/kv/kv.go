// Package kv provides the key-value collaborator behind every endpoint.
// Implementations offer get/put/delete/list-by-prefix semantics with
// optional per-key expiry. Last write wins; there are no transactions,
// so read-modify-write sequences against the same key can lose updates
// under concurrent access.
package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/Regdarim/arni-worker/internal/config"
)

// Entry describes a listed key. A zero Expiration means the key does not
// expire.
type Entry struct {
	Name       string    `json:"name"`
	Expiration time.Time `json:"expiration,omitzero"`
}

// Store is the persistence contract shared by all backends.
// Implementations must be safe for concurrent use. Expired keys behave as
// absent on Get and are excluded from List.
type Store interface {
	// Get returns the value for key, reporting whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Put stores value under key. A ttl of zero means no expiry.
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns up to limit entries whose keys start with prefix,
	// in lexicographic key order. limit <= 0 means no limit.
	List(ctx context.Context, prefix string, limit int) ([]Entry, error)

	// Close releases backend resources.
	Close() error
}

// Sweeper is implemented by backends that can physically remove expired
// keys. The maintenance loop calls it; backends without it rely on lazy
// expiry alone.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

const bootstrapTimeout = 30 * time.Second

// NewStore creates and initializes a store for the parsed DSN.
// A nil DSN yields a nil Store, meaning no collaborator is bound.
func NewStore(ctx context.Context, dsn *config.ParsedDSN) (Store, error) {
	if dsn == nil {
		return nil, nil
	}
	switch dsn.Backend {
	case "sqlite":
		return NewSQLiteStore(ctx, dsn.Path)
	case "postgres":
		return NewPostgresStore(ctx, dsn.URL)
	case "s3":
		return NewObjectStore(ctx, ObjectConfig{
			Endpoint:  dsn.Endpoint,
			Bucket:    dsn.Bucket,
			AccessKey: dsn.AccessKey,
			SecretKey: dsn.SecretKey,
			UseSSL:    dsn.UseSSL,
		})
	default:
		return nil, fmt.Errorf("kv: unknown backend type: %s", dsn.Backend)
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func expiryMillis(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return time.Now().Add(ttl).UnixMilli()
}

// Package cache stores computed layout responses between requests.
//
// Backends:
//
//   - [NullCache] ("none"): never stores anything
//   - [FileCache] ("file"): one JSON file per entry below a directory
//   - [RedisCache] ("redis"): keys with native expiration
//   - [MongoCache] ("mongo"): documents with a TTL index
//
// Keys come from a [Keyer]; [DefaultKeyer] hashes the canonical document
// together with the engine and layout options, so a hit is only possible
// for an identical request.
package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Cache stores opaque byte values under string keys.
//
// Implementations must be safe for concurrent use: the server shares one
// cache across all request goroutines. A cache holds serialized responses
// only, never graph state.
type Cache interface {
	// Get returns the value for key. A missing or expired entry is a miss
	// (nil, false, nil), not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend connections.
	Close() error
}

// TTLLayout is how long a computed layout response stays cached.
const TTLLayout = 7 * 24 * time.Hour

// Backend names accepted by [New].
const (
	BackendNone  = "none"
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMongo = "mongo"
)

// Backends lists the available backend names.
var Backends = []string{BackendNone, BackendFile, BackendRedis, BackendMongo}

// Options selects and configures a cache backend.
type Options struct {
	Backend string

	// Dir is the file cache directory. Empty uses [DefaultDir].
	Dir string

	// Redis connection.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Mongo connection and collection.
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
}

// New opens the cache backend described by opts. Network backends are
// pinged (with retries) before New returns.
func New(ctx context.Context, opts Options) (Cache, error) {
	switch strings.ToLower(opts.Backend) {
	case BackendNone, "":
		return NewNullCache(), nil
	case BackendFile:
		dir := opts.Dir
		if dir == "" {
			d, err := DefaultDir()
			if err != nil {
				return nil, err
			}
			dir = d
		}
		c, err := NewFileCache(dir)
		if err != nil {
			return nil, fmt.Errorf("open file cache: %w", err)
		}
		return c, nil
	case BackendRedis:
		c, err := NewRedisCache(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
		if err != nil {
			return nil, err
		}
		return c, nil
	case BackendMongo:
		c, err := NewMongoCache(ctx, opts.MongoURI, opts.MongoDatabase, opts.MongoCollection)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownBackend, opts.Backend, strings.Join(Backends, ", "))
}

// DefaultDir returns the default file cache directory (~/.cache/viewgraph
// or the platform equivalent).
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("get cache directory: %w", err)
	}
	return filepath.Join(base, "viewgraph"), nil
}

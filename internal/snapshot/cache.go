// Package snapshot persists in-progress tables between sessions so a closed
// terminal or a crash does not lose pasted inputs and finished results.
package snapshot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/redis/go-redis/v9"
)

// Cache stores opaque snapshot blobs by key. Get returns
// errors.ErrSnapshotNotFound for unknown keys.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// TokenKey holds the remembered API token
const TokenKey = "api-token"

// TableKey is the cache key of a project's table
func TableKey(projectID string) string {
	return "table:" + projectID
}

// Options selects and configures a cache provider
type Options struct {
	Provider      string // file, redis or none
	Dir           string
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// RedisKeyPrefix namespaces keys in a shared Redis
const RedisKeyPrefix = "go-batch-runner:"

// New builds the configured cache. It returns a nil Cache for provider none.
func New(opts Options) (Cache, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", "none":
		return nil, nil
	case "file":
		return NewFileCache(opts.Dir)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})
		return NewRedisCache(client, RedisKeyPrefix, opts.TTL), nil
	default:
		return nil, fmt.Errorf("%w: unknown snapshot provider %q", errors.ErrInvalidArgument, opts.Provider)
	}
}

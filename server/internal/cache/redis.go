package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stewardlens/stewardlens/pkg/finhealth"
)

// KeyPrefix namespaces every assessment key.
const KeyPrefix = "stewardlens:assessment:"

// Options configures a Redis cache.
type Options struct {
	Addr     string
	Password string
	DB       int
	// TTL is the expiry set on every entry; 0 keeps entries forever.
	TTL time.Duration
}

// Redis is a finhealth.Cache backed by Redis. Values are stored as JSON.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

var _ finhealth.Cache = (*Redis)(nil)

// NewRedis creates a Redis cache. No connection is made until first use.
func NewRedis(opts Options) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		ttl: opts.TTL,
	}
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache: ping redis: %w", err)
	}
	return nil
}

// Get implements finhealth.Cache. A missing key is (zero, false, nil).
func (r *Redis) Get(ctx context.Context, key string) (finhealth.Assessment, bool, error) {
	raw, err := r.client.Get(ctx, KeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return finhealth.Assessment{}, false, nil
	}
	if err != nil {
		return finhealth.Assessment{}, false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	var a finhealth.Assessment
	if err := json.Unmarshal(raw, &a); err != nil {
		return finhealth.Assessment{}, false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return a, true, nil
}

// Set implements finhealth.Cache.
func (r *Redis) Set(ctx context.Context, key string, a finhealth.Assessment) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, KeyPrefix+key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

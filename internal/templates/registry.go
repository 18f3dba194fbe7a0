package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/reislab/travel-platform/pkg/logging"
)

// Registry resolves templates through a Redis cache in front of the
// Postgres store. A cache miss or a Redis outage falls through to the
// database; lookups never fail because the cache is down.
type Registry struct {
	store  *Store
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

func NewRegistry(store *Store, redisClient *redis.Client, ttl time.Duration, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Registry{store: store, redis: redisClient, ttl: ttl, logger: logger}
}

func (r *Registry) key(name string, brandID uuid.UUID) string {
	return fmt.Sprintf("templates:%s:%s", brandID, name)
}

// Lookup returns the resolved template for a brand, or (nil, nil) when
// no active definition matches.
func (r *Registry) Lookup(ctx context.Context, name string, brandID uuid.UUID) (*Definition, error) {
	if r.redis != nil {
		data, err := r.redis.Get(ctx, r.key(name, brandID)).Bytes()
		if err == nil {
			var def Definition
			if jsonErr := json.Unmarshal(data, &def); jsonErr == nil {
				return &def, nil
			}
		} else if err != redis.Nil {
			r.logger.Warn("template cache read failed", "template", name, "error", err)
		}
	}

	def, err := r.store.Lookup(ctx, name, brandID)
	if err != nil || def == nil {
		return def, err
	}

	if r.redis != nil {
		data, jsonErr := json.Marshal(def)
		if jsonErr == nil {
			if err := r.redis.Set(ctx, r.key(name, brandID), data, r.ttl).Err(); err != nil {
				r.logger.Warn("template cache write failed", "template", name, "error", err)
			}
		}
	}
	return def, nil
}

// Invalidate drops the cached entries for a template after an upsert.
// Entries are keyed per requesting brand, so a global update (zero brand
// id) sweeps every brand's cached copy, not just the global key.
func (r *Registry) Invalidate(ctx context.Context, name string, brandID uuid.UUID) error {
	if r.redis == nil {
		return nil
	}
	if brandID != uuid.Nil {
		if err := r.redis.Del(ctx, r.key(name, brandID)).Err(); err != nil {
			return fmt.Errorf("templates: invalidate %q: %w", name, err)
		}
		return nil
	}

	iter := r.redis.Scan(ctx, 0, fmt.Sprintf("templates:*:%s", name), 0).Iterator()
	for iter.Next(ctx) {
		if err := r.redis.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("templates: invalidate %q: %w", name, err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("templates: invalidate %q: %w", name, err)
	}
	return nil
}

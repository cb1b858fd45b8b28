package redis

import (
	"context"
	"time"

	"github.com/turtacn/deadline-agent/internal/domain/deadline"
	"github.com/turtacn/deadline-agent/pkg/errors"
)

// ResultCache stores AI-inferred deadline results. Keys come from the
// adapter and are used as-is under the cache prefix.
type ResultCache struct {
	cache Cache
}

func NewResultCache(c Cache) *ResultCache {
	return &ResultCache{cache: c}
}

// Get reports a miss as (nil, false, nil).
func (r *ResultCache) Get(ctx context.Context, key string) (*deadline.Result, bool, error) {
	var res deadline.Result
	err := r.cache.Get(ctx, key, &res)
	switch {
	case err == nil:
	case errors.Is(err, ErrCacheMiss):
		return nil, false, nil
	default:
		return nil, false, err
	}
	if !res.Succeeded() {
		// only successes are cached
		return nil, false, nil
	}
	return &res, true, nil
}

// Set stores successful results only.
func (r *ResultCache) Set(ctx context.Context, key string, res *deadline.Result, ttl time.Duration) error {
	if !res.Succeeded() {
		return nil
	}
	return r.cache.Set(ctx, key, res, ttl)
}

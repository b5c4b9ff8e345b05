package search

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Option is the display form of a suggestion.
type Option struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// Options projects the current suggestions through format.
func (c *Controller[T]) Options(format func(T) Option) []Option {
	snap := c.Snapshot()
	out := make([]Option, 0, len(snap.Suggestions))
	for _, item := range snap.Suggestions {
		out = append(out, format(item))
	}
	return out
}

// CachedLookup wraps fn with an expiring LRU keyed by id. Errors are not
// cached.
func CachedLookup[T any](fn GetByIDFunc[T], size int, ttl time.Duration) GetByIDFunc[T] {
	if size <= 0 {
		size = 128
	}
	cache := expirable.NewLRU[string, T](size, nil, ttl)
	return func(ctx context.Context, id string) (T, error) {
		if item, ok := cache.Get(id); ok {
			return item, nil
		}
		item, err := fn(ctx, id)
		if err != nil {
			return item, err
		}
		cache.Add(id, item)
		return item, nil
	}
}

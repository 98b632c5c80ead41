package engine

import (
	"context"
	"sync"

	"clientdesk/src/models"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const defaultPrefetchLimit = 4

// fetchCache memoizes FetchAll per module for the length of one evaluation
// pass. Concurrent misses for the same module share one store call. Failed
// fetches are not cached.
type fetchCache struct {
	source  RecordFetcher
	flight  singleflight.Group
	mu      sync.RWMutex
	modules map[string][]models.Record
}

func newFetchCache(source RecordFetcher) *fetchCache {
	return &fetchCache{source: source, modules: make(map[string][]models.Record)}
}

func (c *fetchCache) FetchAll(ctx context.Context, moduleName string) ([]models.Record, error) {
	c.mu.RLock()
	records, ok := c.modules[moduleName]
	c.mu.RUnlock()
	if ok {
		return records, nil
	}

	v, err, _ := c.flight.Do(moduleName, func() (interface{}, error) {
		// A flight may have finished between the read above and Do.
		c.mu.RLock()
		recs, ok := c.modules[moduleName]
		c.mu.RUnlock()
		if ok {
			return recs, nil
		}
		recs, err := c.source.FetchAll(ctx, moduleName)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.modules[moduleName] = recs
		c.mu.Unlock()
		return recs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Record), nil
}

// prefetch loads modules concurrently, at most limit at a time. Every module
// is attempted; the failures are combined.
func (c *fetchCache) prefetch(ctx context.Context, modules []string, limit int) error {
	if limit <= 0 {
		limit = defaultPrefetchLimit
	}
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	g.SetLimit(limit)
	for _, m := range modules {
		g.Go(func() error {
			if _, err := fetchModule(ctx, c, m); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

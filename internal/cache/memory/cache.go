package memory

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/rights-monitor/backend/internal/metrics"
	"github.com/rights-monitor/backend/internal/ports"
	"github.com/rights-monitor/backend/pkg/logger"
)

// Cache keeps model output in process memory.
type Cache struct {
	store *gocache.Cache
}

var _ ports.ResponseCache = (*Cache)(nil)

func New(ttl time.Duration) *Cache {
	cleanup := ttl * 2
	if ttl <= 0 {
		cleanup = 10 * time.Minute
	}
	return &Cache{store: gocache.New(ttl, cleanup)}
}

func (c *Cache) Get(_ context.Context, key string) (string, bool) {
	v, ok := c.store.Get(key)
	if !ok {
		metrics.CacheMisses.WithLabelValues("memory").Inc()
		return "", false
	}
	metrics.CacheHits.WithLabelValues("memory").Inc()
	return v.(string), true
}

func (c *Cache) Set(_ context.Context, key, value string) {
	c.store.SetDefault(key, value)
}

// Invalidate drops every cached model output.
func (c *Cache) Invalidate(_ context.Context) error {
	n := c.store.ItemCount()
	c.store.Flush()
	logger.Info("Model cache invalidated", zap.Int("entries", n))
	return nil
}

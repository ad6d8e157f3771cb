package knowledge

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/benvon/health-chat/internal/cache"
	"go.uber.org/zap"
)

// Cached memoizes another Lookup in a cache.Store. Cache failures fall through to the
// underlying lookup; only that lookup's errors are returned.
type Cached struct {
	next   Lookup
	store  cache.Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewCached wraps next with a cache
func NewCached(next Lookup, store cache.Store, ttl time.Duration, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{next: next, store: store, ttl: ttl, logger: logger}
}

// Lookup implements Lookup
func (c *Cached) Lookup(ctx context.Context, entities []string, domain Domain) ([]Fact, error) {
	key := cacheKey(entities, domain)

	if b, ok, err := c.store.Get(ctx, key); err != nil {
		c.logger.Warn("knowledge_cache_get_failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		var facts []Fact
		if err := json.Unmarshal(b, &facts); err == nil {
			return facts, nil
		}
		c.logger.Warn("knowledge_cache_corrupt", zap.String("key", key))
	}

	facts, err := c.next.Lookup(ctx, entities, domain)
	if err != nil {
		return nil, err
	}
	if facts == nil {
		facts = []Fact{}
	}

	if b, err := json.Marshal(facts); err == nil {
		if err := c.store.Set(ctx, key, b, c.ttl); err != nil {
			c.logger.Warn("knowledge_cache_set_failed", zap.String("key", key), zap.Error(err))
		}
	}
	return facts, nil
}

func cacheKey(entities []string, domain Domain) string {
	normalized := Normalize(entities)
	sort.Strings(normalized)
	return "knowledge:" + string(domain) + ":" + strings.Join(normalized, "|")
}

package access

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mindflavor/gallerysrv/internal/access/cache"
)

// CachingEngine decorates an Engine with an optional DecisionCache. It never
// changes what IsAllowed decides (Testable Property 8): the cache only
// spares a repeat request the cost of re-running evaluate, keyed on the
// config generation so a reload invalidates every stale entry implicitly.
type CachingEngine struct {
	*Engine
	cache cache.DecisionCache
}

// NewCached wraps engine with cache. A nil cache makes every call fall
// through to engine directly.
func NewCached(engine *Engine, decisionCache cache.DecisionCache) *CachingEngine {
	return &CachingEngine{Engine: engine, cache: decisionCache}
}

// IsAllowed consults the cache before falling back to the wrapped Engine. It
// still audits exactly once per call, matching IsAllowed's own contract,
// whether the decision came from cache or from a fresh evaluation.
func (c *CachingEngine) IsAllowed(path, email string) bool {
	if c.cache == nil {
		return c.Engine.IsAllowed(path, email)
	}

	ctx := context.Background()
	key := cacheKey(c.Engine.cfg.Generation(), path, email)
	if entry, ok, err := c.cache.Lookup(ctx, key); err == nil && ok {
		c.auditCached(path, email, entry.Allowed)
		return entry.Allowed
	} else if err != nil && c.Engine.logger != nil {
		c.Engine.logger.Warn("access: decision cache lookup failed", slog.Any("error", err))
	}

	allowed := c.Engine.IsAllowed(path, email)
	if err := c.cache.Store(ctx, key, cache.Entry{Allowed: allowed}); err != nil && c.Engine.logger != nil {
		c.Engine.logger.Warn("access: decision cache store failed", slog.Any("error", err))
	}
	return allowed
}

// auditCached records the same audit shape IsAllowed would have produced,
// since a cache hit still represents one logical access decision.
func (c *CachingEngine) auditCached(path, email string, allowed bool) {
	objType := "file"
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		objType = "directory"
	}
	c.Engine.record(email, objType, path, "check", allowed)
}

func cacheKey(generation uint64, path, email string) string {
	return fmt.Sprintf("%d|%s|%s", generation, path, email)
}

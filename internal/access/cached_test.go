package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mindflavor/gallerysrv/internal/access/cache"
	"github.com/mindflavor/gallerysrv/internal/config"
	"github.com/mindflavor/gallerysrv/internal/identity"
)

func TestCachingEngineNilCacheFallsThroughToEngine(t *testing.T) {
	cfg := config.Config{Folders: []config.FolderRule{{Path: "/p", Inheritable: true, Allowed: []string{"u@x"}}}}
	cfg.Normalize(1)
	engine := New(&cfg, nil, nil)
	caching := NewCached(engine, nil)

	require.True(t, caching.IsAllowed("/p/f", "u@x"))
	require.False(t, caching.IsAllowed("/p/f", "v@x"))
}

// Testable Property 8: the cache changes only whether evaluate reruns, never
// the decision itself, while the config generation is stable.
func TestCachingEngineServesStaleDecisionUntilGenerationChanges(t *testing.T) {
	cfg := config.Config{Folders: []config.FolderRule{{Path: "/p", Inheritable: true, Allowed: []string{"u@x"}}}}
	cfg.Normalize(1)
	engine := New(&cfg, nil, nil)
	memCache := cache.NewMemory(time.Minute)
	caching := NewCached(engine, memCache)

	require.True(t, caching.IsAllowed("/p/f", "u@x"))

	// Mutate the live rule set in place: a fresh evaluate would now say
	// false, but the cache entry from the first call is keyed on the same
	// generation and must still be served.
	cfg.Folders[0].Allowed = nil
	require.True(t, caching.IsAllowed("/p/f", "u@x"))

	// A new Engine snapshot at a bumped generation must not see the stale
	// cache entry: its key differs, so it reruns evaluate and observes the
	// mutated rule set.
	cfg.Normalize(2)
	reloaded := New(&cfg, nil, nil)
	cachingReloaded := NewCached(reloaded, memCache)
	require.False(t, cachingReloaded.IsAllowed("/p/f", "u@x"))
}

func TestCachingEngineIdentityAllowedAndFirstLevelDelegateToEngine(t *testing.T) {
	cfg := config.Config{
		Groups:  []config.Group{{Name: "team", Members: []string{"a@x"}}},
		Folders: []config.FolderRule{{Path: "/p", Inheritable: true, Allowed: []string{"a@x"}}},
	}
	cfg.Normalize(1)
	engine := New(&cfg, nil, nil)
	caching := NewCached(engine, cache.NewMemory(time.Minute))

	require.True(t, caching.IdentityAllowed(identity.ForwardedIdentity{Email: "a@x"}))
	require.False(t, caching.IdentityAllowed(identity.ForwardedIdentity{Email: "stranger@x"}))
	require.Equal(t, []string{"/p"}, caching.FirstLevelAllowed("a@x"))
}

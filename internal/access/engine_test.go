package access

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mindflavor/gallerysrv/internal/config"
	"github.com/mindflavor/gallerysrv/internal/identity"
)

func newTestEngine(t *testing.T, cfg config.Config) *Engine {
	t.Helper()
	cfg.Normalize(1)
	return New(&cfg, nil, nil)
}

// Scenario A — inheritance allow.
func TestIsAllowedInheritanceAllow(t *testing.T) {
	e := newTestEngine(t, config.Config{
		Folders: []config.FolderRule{
			{Path: "/media", Inheritable: true, Allowed: []string{"u@x"}},
		},
	})
	require.True(t, e.IsAllowed("/media/2020", "u@x"))
	require.False(t, e.IsAllowed("/media/2020", "v@x"))
}

// Scenario B — inheritance breaking.
func TestIsAllowedInheritanceBreaking(t *testing.T) {
	e := newTestEngine(t, config.Config{
		Folders: []config.FolderRule{
			{Path: "/media", Inheritable: true, Allowed: []string{"u@x"}},
			{Path: "/media/private", BreaksInheritance: true, Inheritable: true, Allowed: []string{"v@x"}},
		},
	})
	require.False(t, e.IsAllowed("/media/private/a", "u@x"))
	require.True(t, e.IsAllowed("/media/private/a", "v@x"))
}

// Scenario C — non-inheritable leaf.
func TestIsAllowedNonInheritableLeaf(t *testing.T) {
	e := newTestEngine(t, config.Config{
		Folders: []config.FolderRule{
			{Path: "/m", Allowed: []string{"u@x"}, Inheritable: false},
		},
	})
	require.True(t, e.IsAllowed("/m", "u@x"))
	require.False(t, e.IsAllowed("/m/sub", "u@x"))
}

// Scenario D — group expansion.
func TestIsAllowedGroupExpansion(t *testing.T) {
	e := newTestEngine(t, config.Config{
		Groups: []config.Group{{Name: "team", Members: []string{"a@x", "b@x"}}},
		Folders: []config.FolderRule{
			{Path: "/t", Inheritable: true, Allowed: []string{"#team"}},
		},
	})
	require.True(t, e.IsAllowed("/t/f", "a@x"))
	require.True(t, e.IsAllowed("/t/f", "b@x"))
	require.False(t, e.IsAllowed("/t/f", "c@x"))
}

// Property 5 — group explosion is associative with an equivalent literal rule.
func TestIsAllowedGroupExplosionAssociative(t *testing.T) {
	grouped := newTestEngine(t, config.Config{
		Groups:  []config.Group{{Name: "team", Members: []string{"a@x", "b@x"}}},
		Folders: []config.FolderRule{{Path: "/t", Inheritable: true, Allowed: []string{"#team"}}},
	})
	literal := newTestEngine(t, config.Config{
		Folders: []config.FolderRule{{Path: "/t", Inheritable: true, Allowed: []string{"a@x", "b@x"}}},
	})
	for _, email := range []string{"a@x", "b@x", "c@x"} {
		require.Equal(t, literal.IsAllowed("/t/f", email), grouped.IsAllowed("/t/f", email), email)
	}
}

// Property 3 — deny dominance over allow at the same accumulation point.
func TestIsAllowedDenyDominance(t *testing.T) {
	e := newTestEngine(t, config.Config{
		Folders: []config.FolderRule{
			{Path: "/d", Inheritable: true, Allowed: []string{"u@x"}, Denied: []string{"u@x"}},
		},
	})
	require.False(t, e.IsAllowed("/d/f", "u@x"))
}

// Deny introduced by a descendant rule still wins even though an ancestor
// allowed the same principal.
func TestIsAllowedDenyDominanceAcrossAncestors(t *testing.T) {
	e := newTestEngine(t, config.Config{
		Folders: []config.FolderRule{
			{Path: "/d", Inheritable: true, Allowed: []string{"u@x"}},
			{Path: "/d/sub", Inheritable: true, Denied: []string{"u@x"}},
		},
	})
	require.False(t, e.IsAllowed("/d/sub/f", "u@x"))
	require.True(t, e.IsAllowed("/d/other", "u@x"))
}

// Property 4 — non-inheritable boundary: no exact match, no inheritable
// ancestor at the final accumulation step.
func TestIsAllowedNonInheritableBoundaryWithNoRuleAtAll(t *testing.T) {
	e := newTestEngine(t, config.Config{})
	require.False(t, e.IsAllowed("/anything", "u@x"))
}

// An unknown group reference is skipped (with a warning, unobservable here)
// rather than causing a panic or false-allow.
func TestIsAllowedUnknownGroupReferenceSkipped(t *testing.T) {
	e := newTestEngine(t, config.Config{
		Folders: []config.FolderRule{
			{Path: "/g", Inheritable: true, Allowed: []string{"#missing", "u@x"}},
		},
	})
	require.True(t, e.IsAllowed("/g/f", "u@x"))
	require.False(t, e.IsAllowed("/g/f", "nobody@x"))
}

// Property 2 — sorting folders before evaluation does not change the
// decision; Normalize always sorts, so two configs built with folders in
// different input order must agree.
func TestIsAllowedInputOrderIndependence(t *testing.T) {
	a := newTestEngine(t, config.Config{
		Folders: []config.FolderRule{
			{Path: "/z", Inheritable: true, Allowed: []string{"u@x"}},
			{Path: "/z/private", BreaksInheritance: true, Inheritable: true, Allowed: []string{"v@x"}},
		},
	})
	b := newTestEngine(t, config.Config{
		Folders: []config.FolderRule{
			{Path: "/z/private", BreaksInheritance: true, Inheritable: true, Allowed: []string{"v@x"}},
			{Path: "/z", Inheritable: true, Allowed: []string{"u@x"}},
		},
	})
	for _, email := range []string{"u@x", "v@x"} {
		require.Equal(t, a.IsAllowed("/z/private/a", email), b.IsAllowed("/z/private/a", email), email)
	}
}

// The documented "bug": prefix matching is string-based, not
// path-segment-based, so /a/bb matches a rule registered at /a/b.
func TestIsAllowedPreservesLiteralPrefixMatchBug(t *testing.T) {
	e := newTestEngine(t, config.Config{
		Folders: []config.FolderRule{
			{Path: "/a/b", Inheritable: true, Allowed: []string{"u@x"}},
		},
	})
	require.True(t, e.IsAllowed("/a/bb/file.jpg", "u@x"))
}

// Property 1 — purity: repeated calls with identical inputs give identical
// output, and the decision is independent of the target actually existing on
// disk (IsAllowed's os.Stat probe only affects audit classification).
func TestIsAllowedPureAndRepeatable(t *testing.T) {
	e := newTestEngine(t, config.Config{
		Folders: []config.FolderRule{{Path: "/p", Inheritable: true, Allowed: []string{"u@x"}}},
	})
	first := e.IsAllowed("/p/nonexistent-file.jpg", "u@x")
	for i := 0; i < 5; i++ {
		require.Equal(t, first, e.IsAllowed("/p/nonexistent-file.jpg", "u@x"))
	}
	require.True(t, first)
}

// Property 6 — identity_allowed is solely forced ∨ email ∈ all known emails.
func TestIdentityAllowed(t *testing.T) {
	e := newTestEngine(t, config.Config{
		Groups: []config.Group{{Name: "team", Members: []string{"a@x"}}},
	})
	require.True(t, e.IdentityAllowed(identity.ForwardedIdentity{Email: "a@x"}))
	require.False(t, e.IdentityAllowed(identity.ForwardedIdentity{Email: "stranger@x"}))
	require.True(t, e.IdentityAllowed(identity.ForwardedIdentity{Email: "stranger@x", Forced: true}))
}

func TestFirstLevelAllowedCollapsesInheritedDescendant(t *testing.T) {
	e := newTestEngine(t, config.Config{
		Folders: []config.FolderRule{
			{Path: "/a", Inheritable: true, Allowed: []string{"u@x"}},
			{Path: "/a/b", Inheritable: true, Allowed: []string{"u@x"}},
		},
	})
	require.Equal(t, []string{"/a"}, e.FirstLevelAllowed("u@x"))
}

func TestFirstLevelAllowedKeepsIsolatedNonInheritableRule(t *testing.T) {
	e := newTestEngine(t, config.Config{
		Folders: []config.FolderRule{
			{Path: "/c", Inheritable: false, Allowed: []string{"u@x"}},
		},
	})
	require.Equal(t, []string{"/c"}, e.FirstLevelAllowed("u@x"))
}

func TestFirstLevelAllowedOmitsRulesNotAllowedForCaller(t *testing.T) {
	e := newTestEngine(t, config.Config{
		Folders: []config.FolderRule{
			{Path: "/a", Inheritable: true, Allowed: []string{"u@x"}},
			{Path: "/x", Inheritable: true, Allowed: []string{"other@x"}},
		},
	})
	require.Equal(t, []string{"/a"}, e.FirstLevelAllowed("u@x"))
}

func TestFirstLevelAllowedRestartsAfterBrokenInheritance(t *testing.T) {
	e := newTestEngine(t, config.Config{
		Folders: []config.FolderRule{
			{Path: "/a", Inheritable: true, Allowed: []string{"u@x"}},
			{Path: "/a/private", BreaksInheritance: true, Inheritable: true, Allowed: []string{"v@x"}},
		},
	})
	require.Equal(t, []string{"/a"}, e.FirstLevelAllowed("u@x"))
	require.Equal(t, []string{"/a/private"}, e.FirstLevelAllowed("v@x"))
}

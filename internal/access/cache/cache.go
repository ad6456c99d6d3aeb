// Package cache layers an optional, purely-performance cache of recent
// AccessEngine decisions in front of repeated is_allowed evaluations. It is
// adapted from the teacher project's internal/runtime/cache package: the
// same Lookup/Store/Close shape, a memory backend and a Redis/Valkey
// backend, just holding a bool decision instead of a full HTTP response.
//
// A cache entry is keyed on (config generation, path, email); the
// generation is part of the key so a config reload invalidates every old
// entry implicitly, without an explicit sweep (see SPEC_FULL.md §4.2).
package cache

import "context"

// Entry is a cached allow/deny decision.
type Entry struct {
	Allowed bool
}

// DecisionCache is implemented by every decision-cache backend.
type DecisionCache interface {
	Lookup(ctx context.Context, key string) (Entry, bool, error)
	Store(ctx context.Context, key string, entry Entry) error
	Close(ctx context.Context) error
}

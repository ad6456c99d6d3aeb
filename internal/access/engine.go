// Package access implements the hierarchical path-based access-control
// engine described in spec §4.2: a pure function of (*config.Config, path,
// email) that resolves user-vs-group rights across an ordered chain of
// folder rules with inheritance and inheritance-breaking semantics.
package access

import (
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mindflavor/gallerysrv/internal/audit"
	"github.com/mindflavor/gallerysrv/internal/config"
	"github.com/mindflavor/gallerysrv/internal/identity"
)

// Decider is the surface request handlers need from an access decision
// source: the bare Engine, or an Engine wrapped with a DecisionCache
// (CachingEngine). Handlers depend on this interface rather than *Engine
// directly so the cache decorator is a transparent drop-in.
type Decider interface {
	IsAllowed(path, email string) bool
	IdentityAllowed(id identity.ForwardedIdentity) bool
	FirstLevelAllowed(email string) []string
}

// Engine evaluates access decisions against one immutable configuration
// snapshot. It holds no request-scoped state and is safe for concurrent use
// by every request goroutine (Testable Property 1: pure function of its
// Config snapshot).
type Engine struct {
	cfg    *config.Config
	audit  *audit.Sink
	logger *slog.Logger
}

// New constructs an Engine bound to cfg. auditSink may be nil (a nil Sink
// no-ops every call). The engine itself drives no metrics counter — every
// counter in spec §4.6 is attributed to the handler that made the request,
// not to the decision procedure it consulted — so it takes no recorder.
func New(cfg *config.Config, auditSink *audit.Sink, logger *slog.Logger) *Engine {
	return &Engine{cfg: cfg, audit: auditSink, logger: logger}
}

// Config returns the snapshot this engine evaluates against.
func (e *Engine) Config() *config.Config { return e.cfg }

// IsAllowed decides whether email may access path, per the algorithm in
// spec §4.2. Every invocation emits one audit record with operation "check"
// classified as "directory" or "file" depending on whether path resolves to
// an existing directory.
func (e *Engine) IsAllowed(path, email string) bool {
	allowed := e.evaluate(path, email)

	objType := "file"
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		objType = "directory"
	}
	e.record(email, objType, path, "check", allowed)
	return allowed
}

// evaluate runs the pure decision procedure without any auditing side
// effect, so FirstLevelAllowed can probe many paths without emitting one
// audit record per probe on the caller's behalf (IsAllowed does that when
// it is the entry point actually serving the request).
func (e *Engine) evaluate(path, email string) bool {
	var (
		allowed     = make(map[string]struct{})
		denied      = make(map[string]struct{})
		inheritable bool
		lastRulePath = "/"
	)

	for _, rule := range e.cfg.Folders {
		if !strings.HasPrefix(path, rule.Path) {
			continue
		}
		if rule.BreaksInheritance {
			allowed = make(map[string]struct{})
			denied = make(map[string]struct{})
			inheritable = false
		}
		inheritable = rule.Inheritable
		e.explodeInto(allowed, rule.Allowed)
		e.explodeInto(denied, rule.Denied)
		lastRulePath = rule.Path
	}

	if path != lastRulePath && !inheritable {
		return false
	}
	if _, isDenied := denied[email]; isDenied {
		return false
	}
	_, isAllowed := allowed[email]
	return isAllowed
}

// explodeInto maps each principal into dst: a raw email is kept as-is; a
// "#group" reference is replaced with its members, with a warning logged
// (and the reference otherwise skipped) if the group does not exist. Deny
// takes precedence over allow at the same accumulation level because both
// sets are checked independently by the caller, not because explosion order
// matters here.
func (e *Engine) explodeInto(dst map[string]struct{}, principals []string) {
	for _, p := range principals {
		if !strings.HasPrefix(p, "#") {
			dst[p] = struct{}{}
			continue
		}
		name := strings.TrimPrefix(p, "#")
		group, ok := e.cfg.GroupByName(name)
		if !ok {
			if e.logger != nil {
				e.logger.Warn("access: folder rule references unknown group", slog.String("group", name))
			}
			continue
		}
		for _, member := range group.Members {
			dst[member] = struct{}{}
		}
	}
}

// IdentityAllowed is the coarse gate for non-path endpoints: true iff the
// identity is forced, or its email is a member of some configured group.
func (e *Engine) IdentityAllowed(id identity.ForwardedIdentity) bool {
	return id.Forced || e.cfg.AllKnownEmails(id.Email)
}

// FirstLevelAllowed produces the minimal set of root-level entry points a
// UI needs to render email's navigable folder list without duplicating
// subtrees already covered by inheritance. For every folder rule, it walks
// from that rule's topmost ancestor rule down to the rule itself, emitting
// the first allowed rule along that chain and suppressing an allowed rule
// whose nearest preceding chain rule is allowed and inheritable (it is
// already reachable through that rule). The result aggregates this across
// every rule's chain.
func (e *Engine) FirstLevelAllowed(email string) []string {
	result := make(map[string]struct{})
	for _, rule := range e.cfg.Folders {
		ancestor := e.topmostAncestor(rule)
		for _, path := range e.simplifyChain(email, ancestor, rule) {
			result[path] = struct{}{}
		}
	}

	out := make([]string, 0, len(result))
	for p := range result {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// topmostAncestor finds the rule with the shortest path that is a prefix of
// rule.Path (rule itself if none is shorter).
func (e *Engine) topmostAncestor(rule config.FolderRule) config.FolderRule {
	best := rule
	for _, candidate := range e.cfg.Folders {
		if !strings.HasPrefix(rule.Path, candidate.Path) {
			continue
		}
		if len(candidate.Path) < len(best.Path) {
			best = candidate
		}
	}
	return best
}

// simplifyChain walks every folder rule on the path from `from` to `to`
// (inclusive), in ascending path order, and returns the minimal set of rule
// paths that are browsable entry points for email.
func (e *Engine) simplifyChain(email string, from, to config.FolderRule) []string {
	var chain []config.FolderRule
	for _, rule := range e.cfg.Folders {
		if strings.HasPrefix(rule.Path, from.Path) && strings.HasPrefix(to.Path, rule.Path) {
			chain = append(chain, rule)
		}
	}

	var (
		result    []string
		inherited bool
	)
	for _, rule := range chain {
		if e.evaluate(rule.Path, email) {
			if !inherited {
				result = append(result, rule.Path)
			}
			inherited = rule.Inheritable
		} else {
			inherited = false
		}
	}
	return result
}

func (e *Engine) record(email, objType, objName, operation string, allowed bool) {
	if e.audit == nil {
		return
	}
	e.audit.Submit(audit.Record{
		When:      time.Now(),
		Email:     email,
		ObjType:   objType,
		ObjName:   objName,
		Operation: operation,
		Allowed:   allowed,
	})
}

// Package hooks implements proactive checks: a fixed, priority-ordered set of
// named probes that may each produce one notification for a user. The set of
// definitions is closed at startup; only per-user cooldowns are dynamic.
package hooks

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Result is what one hook execution produced. Message is only consulted when
// ShouldNotify is true.
type Result struct {
	ShouldNotify bool
	Message      string
}

// Context carries per-pass data into a hook execution.
type Context struct {
	UserID    string
	Now       time.Time
	LastRunAt *time.Time // this hook's previous run for this user, nil on first run
}

// ExecuteFunc runs one hook check for one user.
type ExecuteFunc func(ctx context.Context, hctx Context) (Result, error)

// Definition is one proactive check. Lower priority runs first.
// DefaultCooldownMinutes applies when the user has no override; 0 would mean
// disabled by default, so definitions ship with a non-zero value.
type Definition struct {
	Name                   string
	Priority               int
	DefaultCooldownMinutes int
	Execute                ExecuteFunc
}

// Registry is the ordered, closed set of hook definitions.
type Registry struct {
	defs []Definition
}

// NewRegistry builds a registry from definitions, sorted ascending by
// priority. Duplicate names or missing execute functions are construction
// errors: the set is wired once at startup and must be sound.
func NewRegistry(defs []Definition) (*Registry, error) {
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("hooks: definition with empty name")
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("hooks: duplicate definition %q", d.Name)
		}
		if d.Execute == nil {
			return nil, fmt.Errorf("hooks: definition %q has no execute function", d.Name)
		}
		seen[d.Name] = true
	}
	sorted := make([]Definition, len(defs))
	copy(sorted, defs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })
	return &Registry{defs: sorted}, nil
}

// Definitions returns the definitions in priority order.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Lookup returns the definition with the given name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	for _, d := range r.defs {
		if d.Name == name {
			return d, true
		}
	}
	return Definition{}, false
}

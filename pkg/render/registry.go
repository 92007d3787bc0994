package render

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-domtpl/internal/ctxlog"
)

type registered struct {
	directive Directive
	seq       int
}

// Registry stores directives by name and keeps them sorted by execution
// order: phase, then rank, then registration order.
type Registry struct {
	mu      sync.RWMutex
	ordered []registered
	byName  map[string]Directive
	seq     int
}

// NewRegistry creates an empty registry instance.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Directive),
	}
}

// Register adds a directive by its Name(). Duplicate names and ranks outside
// [MinRank, MaxRank] return an error.
func (r *Registry) Register(directive Directive) error {
	if directive == nil {
		return fmt.Errorf("render: directive is required")
	}
	name := strings.TrimSpace(directive.Name())
	if name == "" {
		return fmt.Errorf("render: directive name is required")
	}
	if rank := directive.Rank(); rank < MinRank || rank > MaxRank {
		return fmt.Errorf("render: directive %q rank %d outside [%d, %d]", name, rank, MinRank, MaxRank)
	}
	if !directive.Phase().valid() {
		return fmt.Errorf("render: directive %q has unknown %s", name, directive.Phase())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("render: directive %q already registered", name)
	}

	r.byName[name] = directive
	r.seq++
	r.ordered = append(r.ordered, registered{directive: directive, seq: r.seq})
	sort.SliceStable(r.ordered, func(i, j int) bool {
		a, b := r.ordered[i], r.ordered[j]
		if a.directive.Phase() != b.directive.Phase() {
			return a.directive.Phase() < b.directive.Phase()
		}
		if a.directive.Rank() != b.directive.Rank() {
			return a.directive.Rank() < b.directive.Rank()
		}
		return a.seq < b.seq
	})
	return nil
}

// MustRegister panics on registration failure. Useful for init-time wiring.
func (r *Registry) MustRegister(directives ...Directive) {
	for _, directive := range directives {
		if err := r.Register(directive); err != nil {
			panic(err)
		}
	}
}

// Get retrieves a directive by name.
func (r *Registry) Get(name string) (Directive, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	directive, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("render: directive %q not found", name)
	}
	return directive, nil
}

// List returns directive names in execution order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.ordered))
	for _, entry := range r.ordered {
		names = append(names, entry.directive.Name())
	}
	return names
}

// Has reports whether a directive is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byName[name]
	return ok
}

// Directives returns a snapshot of the ordered pipeline.
func (r *Registry) Directives() []Directive {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Directive, len(r.ordered))
	for i, entry := range r.ordered {
		out[i] = entry.directive
	}
	return out
}

// Execute runs the pipeline over rc. A directive is skipped once rc has
// stopped or when rc ignores it by name. Failures are logged and collected;
// they never abort the remaining directives.
func (r *Registry) Execute(ctx context.Context, rc *Context) []*DirectiveError {
	var failures []*DirectiveError
	for _, directive := range r.Directives() {
		if rc.Stopped() {
			break
		}
		if rc.IsDirectiveIgnored(directive.Name()) {
			continue
		}
		if err := run(ctx, directive, rc); err != nil {
			failure := &DirectiveError{
				Directive: directive.Name(),
				Phase:     directive.Phase(),
				ContextID: rc.ID(),
				Err:       err,
			}
			ctxlog.FromContext(ctx).Error("directive failed",
				"directive", failure.Directive,
				"phase", failure.Phase.String(),
				"context", failure.ContextID,
				"error", err,
			)
			failures = append(failures, failure)
		}
	}
	return failures
}

func run(ctx context.Context, directive Directive, rc *Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic: %v", recovered)
		}
	}()
	return directive.Execute(ctx, rc)
}

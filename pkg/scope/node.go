package scope

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-domtpl/pkg/scope/expr"
)

// Well-known level names used by the renderer.
const (
	NameApplication = "application"
	NameRoot        = "root"
	NameNode        = "node"
	NameContainer   = "container"
)

// DefaultWarnThreshold is how long an evaluation may run before a warning is
// logged. Evaluations are never cancelled.
const DefaultWarnThreshold = time.Second

type shared struct {
	compiler  *expr.Compiler
	logger    *slog.Logger
	warnAfter time.Duration
	epoch     atomic.Uint64
}

type cacheEntry struct {
	owner *Node
	epoch uint64
}

// Node is one level of the scope chain.
type Node struct {
	name   string
	parent *Node
	shared *shared

	mu    sync.RWMutex
	data  map[string]any
	cache map[string]cacheEntry
}

// Option configures a root Node.
type Option func(*shared)

// WithCompiler shares an expression compiler (and its program cache).
func WithCompiler(c *expr.Compiler) Option {
	return func(s *shared) {
		if c != nil {
			s.compiler = c
		}
	}
}

// WithLogger sets the logger used for evaluation diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *shared) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithWarnThreshold overrides DefaultWarnThreshold.
func WithWarnThreshold(d time.Duration) Option {
	return func(s *shared) {
		if d > 0 {
			s.warnAfter = d
		}
	}
}

// NewRoot creates the top of a chain. Every node created below it shares the
// compiler, logger and cache epoch configured here.
func NewRoot(name string, data map[string]any, options ...Option) *Node {
	s := &shared{
		compiler:  expr.NewCompiler(),
		logger:    slog.Default().With("component", "scope"),
		warnAfter: DefaultWarnThreshold,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return &Node{name: name, data: data, shared: s}
}

// New creates a level below parent. A nil parent creates a root.
func New(name string, data map[string]any, parent *Node) *Node {
	if parent == nil {
		return NewRoot(name, data)
	}
	return &Node{name: name, data: data, parent: parent, shared: parent.shared}
}

// Child is shorthand for New(name, data, n).
func (n *Node) Child(name string, data map[string]any) *Node {
	return New(name, data, n)
}

// Name returns the level name; unnamed layers return "".
func (n *Node) Name() string { return n.name }

// Parent returns the enclosing level or nil at the root.
func (n *Node) Parent() *Node { return n.parent }

// Compiler exposes the shared expression compiler.
func (n *Node) Compiler() *expr.Compiler { return n.shared.compiler }

// Depth returns the number of ancestors.
func (n *Node) Depth() int {
	depth := 0
	for cur := n.parent; cur != nil; cur = cur.parent {
		depth++
	}
	return depth
}

// Find returns the nearest level (n included) with the given name.
func (n *Node) Find(name string) *Node {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.name == name {
			return cur
		}
	}
	return nil
}

func (n *Node) own(key string) (any, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.data == nil {
		return nil, false
	}
	value, ok := n.data[key]
	return value, ok
}

// Lookup resolves key against the chain, nearest definition first.
func (n *Node) Lookup(key string) (any, bool) {
	if value, ok := n.own(key); ok {
		return value, true
	}

	epoch := n.shared.epoch.Load()
	n.mu.RLock()
	entry, cached := n.cache[key]
	n.mu.RUnlock()
	if cached && entry.epoch == epoch {
		if value, ok := entry.owner.own(key); ok {
			return value, true
		}
	}

	for cur := n.parent; cur != nil; cur = cur.parent {
		if value, ok := cur.own(key); ok {
			n.mu.Lock()
			if n.cache == nil {
				n.cache = make(map[string]cacheEntry)
			}
			n.cache[key] = cacheEntry{owner: cur, epoch: epoch}
			n.mu.Unlock()
			return value, true
		}
	}
	return nil, false
}

func (n *Node) level(filter string) (*Node, error) {
	if filter == "" {
		return n, nil
	}
	if target := n.Find(filter); target != nil {
		return target, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrScopeNotFound, filter)
}

func (n *Node) invalidate() {
	n.shared.epoch.Add(1)
}

// GetData reads key from this level, or from the named ancestor when filter
// is not empty, without walking further up.
func (n *Node) GetData(key, filter string) (any, bool) {
	target, err := n.level(filter)
	if err != nil {
		return nil, false
	}
	return target.own(key)
}

// UpdateData writes key on this level (or the named ancestor), creating the
// backing map on first write.
func (n *Node) UpdateData(key string, value any, filter string) error {
	target, err := n.level(filter)
	if err != nil {
		return err
	}
	target.mu.Lock()
	if target.data == nil {
		target.data = make(map[string]any)
	}
	target.data[key] = value
	target.cache = nil
	target.mu.Unlock()
	n.invalidate()
	return nil
}

// MergeContext copies values into this level (or the named ancestor).
func (n *Node) MergeContext(values map[string]any, filter string) error {
	target, err := n.level(filter)
	if err != nil {
		return err
	}
	target.mu.Lock()
	if target.data == nil {
		target.data = make(map[string]any, len(values))
	}
	for key, value := range values {
		target.data[key] = value
	}
	target.cache = nil
	target.mu.Unlock()
	n.invalidate()
	return nil
}

// ReplaceData swaps the whole backing map of this level.
func (n *Node) ReplaceData(values map[string]any) {
	n.mu.Lock()
	n.data = values
	n.cache = nil
	n.mu.Unlock()
	n.invalidate()
}

// Data returns a copy of this level's own values.
func (n *Node) Data() map[string]any {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make(map[string]any, len(n.data))
	for key, value := range n.data {
		out[key] = value
	}
	return out
}

// Snapshot flattens the chain into a single map; nearer levels override.
func (n *Node) Snapshot() map[string]any {
	var chain []*Node
	for cur := n; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	out := make(map[string]any)
	for i := len(chain) - 1; i >= 0; i-- {
		for key, value := range chain[i].Data() {
			out[key] = value
		}
	}
	return out
}

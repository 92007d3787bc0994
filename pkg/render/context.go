package render

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/goliatone/go-domtpl/internal/ctxlog"
	"github.com/goliatone/go-domtpl/pkg/dom"
	"github.com/goliatone/go-domtpl/pkg/scope"
)

// FinishFunc runs once the whole render tree has completed.
type FinishFunc func(ctx context.Context)

// Context is the per-unit render state. It moves from open (directives
// running) through draining (waiting on children) to closed, exactly once.
type Context struct {
	id       string
	depth    int
	parent   *Context
	root     *Context
	created  time.Time
	renderer *Renderer

	scope       *scope.Node
	template    *html.Node
	producer    Producer
	children    []*html.Node
	hasChildren bool
	container   *html.Node
	target      *html.Node
	mode        Mode

	mu            sync.Mutex
	content       *html.Node
	stop          bool
	ignore        bool
	skipFinishers bool
	ignored       map[string]struct{}
	pending       map[*Context]struct{}
	childSeq      int
	finishers     []FinishFunc

	closeOnce sync.Once
	done      chan struct{}
	treeDone  chan struct{}
}

// ContextOption overrides a field when a context is created.
type ContextOption func(*Context)

// WithScope sets the scope the unit resolves expressions against.
func WithScope(node *scope.Node) ContextOption {
	return func(c *Context) { c.scope = node }
}

// WithTemplate sets the source unit.
func WithTemplate(node *html.Node) ContextOption {
	return func(c *Context) {
		c.template = node
		c.producer = nil
		c.children = nil
		c.hasChildren = false
	}
}

// WithProducer makes the context a terminal unit driven by p.
func WithProducer(p Producer) ContextOption {
	return func(c *Context) {
		c.producer = p
		c.template = nil
	}
}

// WithChildren overrides the child units rendered below the produced content.
func WithChildren(nodes []*html.Node) ContextOption {
	return func(c *Context) {
		c.children = nodes
		c.hasChildren = true
	}
}

// WithContainer sets the output container.
func WithContainer(node *html.Node) ContextOption {
	return func(c *Context) { c.container = node }
}

// WithTarget sets the anchor node inside the container.
func WithTarget(node *html.Node) ContextOption {
	return func(c *Context) { c.target = node }
}

// WithMode sets the placement mode.
func WithMode(mode Mode) ContextOption {
	return func(c *Context) { c.mode = mode }
}

// WithIgnoredDirectives seeds the directive deny-list. Children never inherit
// the list unless it is passed again through this option.
func WithIgnoredDirectives(names ...string) ContextOption {
	return func(c *Context) {
		for _, name := range names {
			c.ignored[name] = struct{}{}
		}
	}
}

// NewContext creates a root context bound to r.
func NewContext(r *Renderer, opts ...ContextOption) (*Context, error) {
	c := blank(r)
	c.id = uuid.NewString()
	c.root = c
	c.treeDone = make(chan struct{})
	return c.finish(opts)
}

func blank(r *Renderer) *Context {
	return &Context{
		renderer: r,
		mode:     ModeReplace,
		created:  time.Now(),
		ignored:  make(map[string]struct{}),
		pending:  make(map[*Context]struct{}),
		done:     make(chan struct{}),
	}
}

func (c *Context) finish(opts []ContextOption) (*Context, error) {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}
	if c.scope == nil {
		return nil, ErrConfiguration
	}
	if c.renderer == nil {
		return nil, ErrConfiguration
	}
	if c.mode == "" {
		c.mode = ModeReplace
	}
	c.renderer.tracker.Track(c)
	return c, nil
}

func (c *Context) inherit(target *Context) {
	target.scope = c.scope
	target.template = c.template
	target.producer = c.producer
	target.container = c.container
	target.target = c.target
	target.mode = c.mode
}

// Sub creates a child bound to c. The child is owned by c until it closes.
func (c *Context) Sub(opts ...ContextOption) (*Context, error) {
	child := blank(c.renderer)
	c.inherit(child)

	c.mu.Lock()
	c.childSeq++
	seq := c.childSeq
	c.mu.Unlock()

	child.id = c.id + "." + strconv.Itoa(seq)
	child.depth = c.depth + 1
	child.parent = c
	child.root = c.root
	if _, err := child.finish(opts); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.pending[child] = struct{}{}
	c.mu.Unlock()
	return child, nil
}

// Clone creates an independent root context carrying c's inputs.
func (c *Context) Clone(opts ...ContextOption) (*Context, error) {
	clone := blank(c.renderer)
	c.inherit(clone)
	clone.id = uuid.NewString()
	clone.root = clone
	clone.treeDone = make(chan struct{})
	return clone.finish(opts)
}

func (c *Context) ID() string { return c.id }
func (c *Context) Depth() int { return c.depth }
func (c *Context) Parent() *Context { return c.parent }
func (c *Context) Root() *Context { return c.root }
func (c *Context) Created() time.Time { return c.created }
func (c *Context) Renderer() *Renderer { return c.renderer }
func (c *Context) Template() *html.Node { return c.template }
func (c *Context) Producer() Producer { return c.producer }
func (c *Context) Container() *html.Node { return c.container }
func (c *Context) Target() *html.Node { return c.target }
func (c *Context) Mode() Mode { return c.mode }

// SetScope replaces the scope used by later directives and by the children
// of this unit.
func (c *Context) SetScope(node *scope.Node) {
	if node == nil {
		return
	}
	c.mu.Lock()
	c.scope = node
	c.mu.Unlock()
}

// Scope returns the scope the unit resolves against.
func (c *Context) Scope() *scope.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scope
}

// Children returns the units rendered below the produced content: the
// override list when one was set, the template's children otherwise.
func (c *Context) Children() []*html.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasChildren {
		out := make([]*html.Node, len(c.children))
		copy(out, c.children)
		return out
	}
	return dom.Children(c.template)
}

// SetChildren replaces the child units without touching the template.
func (c *Context) SetChildren(nodes []*html.Node) {
	c.mu.Lock()
	c.children = nodes
	c.hasChildren = true
	c.mu.Unlock()
}

// Content returns the produced output, nil when the unit produced nothing.
func (c *Context) Content() *html.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content
}

// SetContent sets the produced output.
func (c *Context) SetContent(n *html.Node) {
	c.mu.Lock()
	c.content = n
	c.mu.Unlock()
}

// Stop halts the directive pipeline and child rendering for this unit.
func (c *Context) Stop() {
	c.mu.Lock()
	c.stop = true
	c.mu.Unlock()
}

// Stopped reports whether Stop was called.
func (c *Context) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop
}

// Ignore keeps the produced content out of the output.
func (c *Context) Ignore() {
	c.mu.Lock()
	c.ignore = true
	c.mu.Unlock()
}

// Ignored reports whether Ignore was called.
func (c *Context) Ignored() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ignore
}

// SetSkipFinishers controls whether Ready runs the finish callbacks held by
// this context. It is independent of Ignore.
func (c *Context) SetSkipFinishers(skip bool) {
	c.mu.Lock()
	c.skipFinishers = skip
	c.mu.Unlock()
}

// SkipFinishers reports the flag set by SetSkipFinishers.
func (c *Context) SkipFinishers() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skipFinishers
}

// IgnoreDirective adds names to the deny-list.
func (c *Context) IgnoreDirective(names ...string) {
	c.mu.Lock()
	for _, name := range names {
		c.ignored[name] = struct{}{}
	}
	c.mu.Unlock()
}

// AcceptDirective removes names from the deny-list.
func (c *Context) AcceptDirective(names ...string) {
	c.mu.Lock()
	for _, name := range names {
		delete(c.ignored, name)
	}
	c.mu.Unlock()
}

// IsDirectiveIgnored reports whether name is on the deny-list.
func (c *Context) IsDirectiveIgnored(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.ignored[name]
	return ok
}

// IgnoredDirectives returns the sorted deny-list.
func (c *Context) IgnoredDirectives() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.ignored))
	for name := range c.ignored {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Finished registers fn on the root context. It runs after the root has
// awaited its whole subtree.
func (c *Context) Finished(fn FinishFunc) {
	if fn == nil {
		return
	}
	root := c.root
	root.mu.Lock()
	root.finishers = append(root.finishers, fn)
	root.mu.Unlock()
}

// Pending returns the number of live children.
func (c *Context) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Done is closed once the context and every child it spawned have completed.
func (c *Context) Done() <-chan struct{} { return c.done }

// TreeFinished is closed once the root of this context's tree has run its
// finish callbacks.
func (c *Context) TreeFinished() <-chan struct{} { return c.root.treeDone }

// Closed reports whether Ready has completed.
func (c *Context) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Ready waits for every live child to close, runs the finish callbacks held
// by this context (unless skipped), detaches from the parent and closes Done.
// Calling Ready on a closed context is a no-op. ctx only bounds the wait.
func (c *Context) Ready(ctx context.Context) error {
	if c.Closed() {
		return nil
	}
	for {
		child := c.nextPending()
		if child == nil {
			break
		}
		select {
		case <-child.done:
			c.removeChild(child)
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.closeOnce.Do(func() {
		c.mu.Lock()
		finishers := c.finishers
		c.finishers = nil
		skip := c.skipFinishers
		c.mu.Unlock()

		if !skip {
			for _, fn := range finishers {
				runFinisher(ctx, c, fn)
			}
		}
		if c.parent != nil {
			c.parent.removeChild(c)
		}
		c.renderer.tracker.Untrack(c)
		close(c.done)
		if c.root == c {
			close(c.treeDone)
		}
	})
	return nil
}

func runFinisher(ctx context.Context, c *Context, fn FinishFunc) {
	defer func() {
		if recovered := recover(); recovered != nil {
			ctxlog.FromContext(ctx).Error("finish callback panicked",
				"context", c.id,
				"panic", recovered,
			)
		}
	}()
	fn(ctx)
}

func (c *Context) nextPending() *Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	for child := range c.pending {
		return child
	}
	return nil
}

func (c *Context) removeChild(child *Context) {
	c.mu.Lock()
	delete(c.pending, child)
	c.mu.Unlock()
}

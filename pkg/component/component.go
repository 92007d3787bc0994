package component

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-domtpl/internal/debounce"
	"github.com/goliatone/go-domtpl/pkg/dom"
	"github.com/goliatone/go-domtpl/pkg/loader"
	"github.com/goliatone/go-domtpl/pkg/render"
	"github.com/goliatone/go-domtpl/pkg/scope"
	"github.com/goliatone/go-domtpl/pkg/scope/expr"
)

// Observed host attributes.
const (
	AttrTemplate      = "template"
	AttrData          = "data"
	AttrMode          = "mode"
	AttrCondition     = "condition"
	AttrListenEvent   = "listen-event"
	AttrListenElement = "listen-element"
	AttrTriggerEvent  = "trigger-event"
	AttrIncludeOnly   = "include-only"
	AttrShadowMode    = "shadow-mode"
)

// Render modes.
const (
	ModeAuto   = "auto"
	ModeManual = "manual"
)

// Shadow modes.
const (
	ShadowOpen   = "open"
	ShadowClosed = "closed"
)

// EventRendered is dispatched on the output container after every render.
const EventRendered = "rendered"

// EventVar names the triggering event in the template data.
const EventVar = "$event"

// DefaultDebounce delays re-renders after attribute changes.
const DefaultDebounce = 50 * time.Millisecond

var observed = map[string]bool{
	AttrTemplate:      true,
	AttrData:          true,
	AttrMode:          true,
	AttrCondition:     true,
	AttrListenEvent:   true,
	AttrListenElement: true,
	AttrTriggerEvent:  true,
	AttrIncludeOnly:   true,
	AttrShadowMode:    true,
}

// ErrDestroyed is returned by operations on a destroyed component.
var ErrDestroyed = errors.New("component: destroyed")

// Request overrides attribute configuration for one render.
type Request struct {
	Template loader.Source
	Data     map[string]any
	Event    *dom.Event
}

// Result describes a completed render. It is the detail of EventRendered.
type Result struct {
	Nodes  []*html.Node
	Target *html.Node
	Event  *dom.Event
}

type state int

const (
	stateCreated state = iota
	stateInitialized
	stateReady
	stateDestroyed
)

// Option configures a Component.
type Option func(*Component)

// WithLoader sets the loader used for template and data references.
func WithLoader(l *loader.Loader) Option {
	return func(c *Component) {
		if l != nil {
			c.loader = l
		}
	}
}

// WithLogger sets the component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Component) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(c *Component) {
		if d >= 0 {
			c.wait = d
		}
	}
}

// Component binds a renderer to a host element.
type Component struct {
	host     *html.Node
	renderer *render.Renderer
	loader   *loader.Loader
	logger   *slog.Logger
	wait     time.Duration
	debounce *debounce.Debouncer

	mu       sync.Mutex
	ctx      context.Context
	state    state
	own      []*html.Node
	unlisten func()

	renderMu sync.Mutex
}

// New creates a component on host.
func New(host *html.Node, renderer *render.Renderer, opts ...Option) (*Component, error) {
	if !dom.IsElement(host) {
		return nil, fmt.Errorf("%w: component host must be an element", render.ErrConfiguration)
	}
	if renderer == nil {
		return nil, fmt.Errorf("%w: component needs a renderer", render.ErrConfiguration)
	}
	c := &Component{
		host:     host,
		renderer: renderer,
		wait:     DefaultDebounce,
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.loader == nil {
		c.loader = loader.New()
	}
	if c.logger == nil {
		c.logger = renderer.Logger().With("component", "host")
	}
	c.debounce = debounce.New(c.wait)
	return c, nil
}

// Host returns the host element.
func (c *Component) Host() *html.Node { return c.host }

// Init captures the host's own children as the fallback template and binds
// the listen-event subscription. ctx is used for renders the component
// starts on its own.
func (c *Component) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case stateDestroyed:
		return ErrDestroyed
	case stateCreated:
	default:
		return nil
	}
	if ctx != nil {
		c.ctx = ctx
	}
	for _, child := range dom.Children(c.host) {
		c.own = append(c.own, dom.Clone(child))
	}
	c.state = stateInitialized
	c.listenLocked()
	return nil
}

// Ready marks the component live and renders it in auto mode.
func (c *Component) Ready(ctx context.Context) error {
	if err := c.Init(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	if c.state == stateDestroyed {
		c.mu.Unlock()
		return ErrDestroyed
	}
	c.state = stateReady
	c.mu.Unlock()

	if c.mode() != ModeAuto {
		return nil
	}
	_, err := c.Render(ctx, Request{})
	return err
}

// Destroy cancels pending renders and drops the event subscriptions.
func (c *Component) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateDestroyed {
		return
	}
	c.state = stateDestroyed
	c.debounce.Stop()
	if c.unlisten != nil {
		c.unlisten()
		c.unlisten = nil
	}
	c.renderer.Events().Forget(c.host)
}

// SetAttribute updates the host attribute and notifies AttributeChanged.
func (c *Component) SetAttribute(name, value string) {
	old := dom.AttrOr(c.host, name, "")
	dom.SetAttr(c.host, name, value)
	c.AttributeChanged(name, old, value)
}

// RemoveAttribute removes the host attribute and notifies AttributeChanged.
func (c *Component) RemoveAttribute(name string) {
	old := dom.AttrOr(c.host, name, "")
	dom.RemoveAttr(c.host, name)
	c.AttributeChanged(name, old, "")
}

// AttributeChanged reacts to a host attribute change. Listener attributes
// rebind immediately; in auto mode a re-render is debounced.
func (c *Component) AttributeChanged(name, oldValue, newValue string) {
	name = strings.ToLower(name)
	if oldValue == newValue || !observed[name] {
		return
	}
	c.mu.Lock()
	if c.state == stateDestroyed || c.state == stateCreated {
		c.mu.Unlock()
		return
	}
	if name == AttrListenEvent || name == AttrListenElement {
		c.listenLocked()
	}
	ready := c.state == stateReady
	ctx := c.ctx
	c.mu.Unlock()

	if !ready || c.mode() != ModeAuto {
		return
	}
	c.debounce.Trigger(func() {
		if _, err := c.Render(ctx, Request{}); err != nil {
			c.logger.Error("component re-render failed", "attribute", name, "error", err)
		}
	})
}

// Render renders the configured template into the host, or into its
// declarative shadow root. A falsy condition skips the render and returns a
// nil result.
func (c *Component) Render(ctx context.Context, req Request) (*Result, error) {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	return c.render(ctx, req)
}

func (c *Component) render(ctx context.Context, req Request) (*Result, error) {
	c.mu.Lock()
	destroyed := c.state == stateDestroyed
	c.mu.Unlock()
	if destroyed {
		return nil, ErrDestroyed
	}

	data, err := c.data(ctx, req)
	if err != nil {
		return nil, err
	}
	if req.Event != nil {
		data[EventVar] = req.Event
	}

	if raw, ok := dom.Attr(c.host, AttrCondition); ok && strings.TrimSpace(raw) != "" {
		if !c.condition(ctx, raw, data) {
			c.logger.Debug("component render skipped by condition", "condition", raw)
			return nil, nil
		}
	}

	nodes, err := c.template(ctx, req)
	if err != nil {
		return nil, err
	}

	target := c.target()
	var out []*html.Node
	if dom.HasAttr(c.host, AttrIncludeOnly) {
		dom.Clear(target)
		dom.Append(target, nodes...)
		out = nodes
	} else {
		out, err = c.renderer.Render(ctx, render.Options{
			Template:  nodes,
			Data:      data,
			Container: target,
			Mode:      render.ModeReplace,
		})
		if err != nil {
			return nil, err
		}
	}

	result := &Result{Nodes: out, Target: target, Event: req.Event}
	events := c.renderer.Events()
	events.Dispatch(target, EventRendered, result)
	if trigger := strings.TrimSpace(dom.AttrOr(c.host, AttrTriggerEvent, "")); trigger != "" {
		events.Dispatch(c.host, trigger, result)
	}
	return result, nil
}

func (c *Component) mode() string {
	if strings.EqualFold(strings.TrimSpace(dom.AttrOr(c.host, AttrMode, "")), ModeManual) {
		return ModeManual
	}
	return ModeAuto
}

func (c *Component) condition(ctx context.Context, raw string, data map[string]any) bool {
	node := c.renderer.Application().Child("", data)
	if scope.HasExpression(raw) {
		return expr.Truthy(node.ResolveDefault(ctx, raw, false))
	}
	value, err := node.Eval(ctx, raw)
	if err != nil {
		c.logger.Warn("component condition failed", "condition", raw, "error", err)
		return false
	}
	return expr.Truthy(value)
}

func (c *Component) template(ctx context.Context, req Request) ([]*html.Node, error) {
	if req.Template != nil {
		return c.loader.Load(ctx, req.Template)
	}
	ref := strings.TrimSpace(dom.AttrOr(c.host, AttrTemplate, ""))
	switch {
	case ref == "":
		c.mu.Lock()
		own := make([]*html.Node, 0, len(c.own))
		for _, n := range c.own {
			own = append(own, dom.Clone(n))
		}
		c.mu.Unlock()
		if len(own) == 0 {
			return nil, render.ErrTemplateRequired
		}
		return own, nil
	case strings.HasPrefix(ref, "#"), strings.HasPrefix(ref, "."):
		found := dom.Find(documentRoot(c.host), ref)
		if found == nil {
			return nil, fmt.Errorf("%w: no element matches %q", loader.ErrTemplateLoad, ref)
		}
		var nodes []*html.Node
		for _, child := range dom.Children(found) {
			nodes = append(nodes, dom.Clone(child))
		}
		return nodes, nil
	}
	return c.loader.LoadURL(ctx, ref)
}

func (c *Component) data(ctx context.Context, req Request) (map[string]any, error) {
	if req.Data != nil {
		out := make(map[string]any, len(req.Data)+1)
		for k, v := range req.Data {
			out[k] = v
		}
		return out, nil
	}
	raw := strings.TrimSpace(dom.AttrOr(c.host, AttrData, ""))
	switch {
	case raw == "":
		return map[string]any{}, nil
	case scope.HasExpression(raw):
		return asMap(c.renderer.Application().Resolve(ctx, raw)), nil
	case strings.HasPrefix(raw, "{"), strings.HasPrefix(raw, "["):
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("component: inline data: %w", err)
		}
		return asMap(value), nil
	}
	value, err := c.loader.FetchData(ctx, raw, loader.DataOptions{})
	if err != nil {
		return nil, fmt.Errorf("component: data %q: %w", raw, err)
	}
	return asMap(value), nil
}

// listenLocked rebinds the listen-event subscription. c.mu must be held.
func (c *Component) listenLocked() {
	if c.unlisten != nil {
		c.unlisten()
		c.unlisten = nil
	}
	name := strings.TrimSpace(dom.AttrOr(c.host, AttrListenEvent, ""))
	if name == "" {
		return
	}
	el := c.host
	if sel := strings.TrimSpace(dom.AttrOr(c.host, AttrListenElement, "")); sel != "" {
		if el = dom.Find(documentRoot(c.host), sel); el == nil {
			c.logger.Warn("component listen element not found", "selector", sel)
			return
		}
	}
	ctx := c.ctx
	c.unlisten = c.renderer.Events().On(el, name, func(evt *dom.Event) {
		if !c.renderMu.TryLock() {
			c.logger.Debug("component render in progress, event dropped", "event", evt.Name)
			return
		}
		defer c.renderMu.Unlock()
		if _, err := c.render(ctx, Request{Event: evt}); err != nil {
			c.logger.Error("component event render failed", "event", evt.Name, "error", err)
		}
	})
}

// target returns the host, or the host's declarative shadow root template
// when shadow-mode is set.
func (c *Component) target() *html.Node {
	shadow := strings.ToLower(strings.TrimSpace(dom.AttrOr(c.host, AttrShadowMode, "")))
	if shadow != ShadowOpen && shadow != ShadowClosed {
		return c.host
	}
	for _, child := range dom.ElementChildren(c.host) {
		if dom.Tag(child) == "template" && dom.HasAttr(child, "shadowrootmode") {
			dom.SetAttr(child, "shadowrootmode", shadow)
			return child
		}
	}
	root := dom.NewElement("template")
	dom.SetAttr(root, "shadowrootmode", shadow)
	dom.Prepend(c.host, root)
	return root
}

func documentRoot(n *html.Node) *html.Node {
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}

func asMap(value any) map[string]any {
	switch v := value.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		out := make(map[string]any, len(v)+1)
		for k, item := range v {
			out[k] = item
		}
		return out
	}
	return map[string]any{"data": value}
}

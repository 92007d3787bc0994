package render

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/goliatone/go-domtpl/internal/ctxlog"
	"github.com/goliatone/go-domtpl/pkg/dom"
	"github.com/goliatone/go-domtpl/pkg/scope"
)

// Renderer orchestrates the directive pipeline over a template and places
// the produced output.
type Renderer struct {
	registry    *Registry
	tracker     *Tracker
	logger      *slog.Logger
	recorder    Recorder
	events      *dom.EventBus
	application *scope.Node
	appData     []map[string]any

	// tree serializes node mutation between top-level renders and
	// deferred work.
	tree     sync.Mutex
	deferred sync.WaitGroup
}

// New constructs a renderer. Without WithRegistry the pipeline is empty and
// units produce no content.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		registry: NewRegistry(),
		logger:   slog.Default().With("component", "render"),
		recorder: nopRecorder{},
		events:   dom.NewEventBus(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(r)
	}
	if r.tracker == nil {
		r.tracker = DefaultTracker()
	}
	if r.application == nil {
		r.application = scope.NewRoot(scope.NameApplication, nil, scope.WithLogger(r.logger))
	}
	for _, values := range r.appData {
		_ = r.application.MergeContext(values, "")
	}
	r.appData = nil
	return r
}

func (r *Renderer) Registry() *Registry { return r.registry }
func (r *Renderer) Tracker() *Tracker { return r.tracker }
func (r *Renderer) Logger() *slog.Logger { return r.logger }
func (r *Renderer) Recorder() Recorder { return r.recorder }
func (r *Renderer) Events() *dom.EventBus { return r.events }
func (r *Renderer) Application() *scope.Node { return r.application }

// Render builds a root scope under the application level and a root
// context, renders every unit and places the output. It returns once the
// whole context tree has completed and the finish callbacks have run.
// Renders on the same Renderer never overlap with each other or with
// deferred work.
func (r *Renderer) Render(ctx context.Context, opts Options) (out []*html.Node, err error) {
	r.tree.Lock()
	defer r.tree.Unlock()

	started := time.Now()
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}
	defer func() {
		r.recorder.RenderCompleted(mode, time.Since(started), err)
	}()
	if len(opts.Template) == 0 && opts.Producer == nil {
		return nil, ErrTemplateRequired
	}

	container := opts.Container
	if container == nil {
		container = dom.NewFragment()
	}
	rootScope := r.application.Child(scope.NameRoot, opts.Data)

	unit := WithChildren(opts.Template)
	if opts.Producer != nil {
		unit = WithProducer(opts.Producer)
	}
	rc, err := NewContext(r,
		WithScope(rootScope),
		unit,
		WithContainer(container),
		WithTarget(opts.Target),
		WithMode(mode),
	)
	if err != nil {
		return nil, err
	}

	ctx = ctxlog.WithLogger(ctx, ctxlog.FromContextOr(ctx, r.logger).With("render", rc.ID()))
	out, err = r.RenderContext(ctx, rc)
	if err != nil {
		return out, err
	}
	select {
	case <-rc.TreeFinished():
	case <-ctx.Done():
		return out, ctx.Err()
	}
	return out, nil
}

// RenderContext renders the units of an open context, places the output
// according to its mode and closes it. Directives use it for sub-renders.
func (r *Renderer) RenderContext(ctx context.Context, rc *Context) ([]*html.Node, error) {
	if rc == nil {
		return nil, ErrConfiguration
	}
	if rc.Closed() {
		return nil, ErrContextClosed
	}

	out, err := r.renderSequence(ctx, rc)
	if err == nil {
		err = place(rc, out)
	}
	if readyErr := rc.Ready(ctx); err == nil {
		err = readyErr
	}
	return out, err
}

func (r *Renderer) renderSequence(ctx context.Context, rc *Context) ([]*html.Node, error) {
	var units []ContextOption
	if p := rc.Producer(); p != nil {
		units = append(units, WithProducer(p))
	} else {
		for _, unit := range rc.Children() {
			if unit != nil {
				units = append(units, WithTemplate(unit))
			}
		}
	}

	var out []*html.Node
	for _, unit := range units {
		slot := dom.NewFragment()
		child, err := rc.Sub(
			unit,
			WithScope(rc.Scope().Child(scope.NameNode, nil)),
			WithContainer(slot),
			WithTarget(nil),
			WithMode(ModeAppend),
			WithIgnoredDirectives(rc.IgnoredDirectives()...),
		)
		if err != nil {
			return out, err
		}

		err = r.renderUnit(ctx, child)
		if content := child.Content(); content != nil && !child.Ignored() {
			dom.Append(slot, content)
		}
		if readyErr := child.Ready(ctx); err == nil {
			err = readyErr
		}
		if err != nil {
			return out, err
		}
		out = append(out, dom.Flatten(dom.Children(slot)...)...)
	}
	return out, nil
}

func (r *Renderer) renderUnit(ctx context.Context, rc *Context) error {
	if p := rc.Producer(); p != nil {
		content, err := p.Produce(ctx, rc)
		if err != nil {
			r.fail(ctx, &DirectiveError{Directive: "producer", Phase: PhaseTemplate, ContextID: rc.ID(), Err: err})
			return nil
		}
		rc.SetContent(content)
		return nil
	}

	for _, failure := range r.registry.Execute(ctx, rc) {
		r.recorder.DirectiveFailed(failure.Directive, failure.Phase)
	}

	content := rc.Content()
	if rc.Stopped() || content == nil {
		return nil
	}
	children := rc.Children()
	if len(children) == 0 {
		return nil
	}
	sub, err := rc.Sub(
		WithScope(rc.Scope().Child(scope.NameContainer, nil)),
		WithTemplate(nil),
		WithChildren(children),
		WithContainer(content),
		WithTarget(nil),
		WithMode(ModeAppend),
	)
	if err != nil {
		return err
	}
	_, err = r.RenderContext(ctx, sub)
	return err
}

func (r *Renderer) fail(ctx context.Context, failure *DirectiveError) {
	ctxlog.FromContext(ctx).Error("directive failed",
		"directive", failure.Directive,
		"context", failure.ContextID,
		"error", failure.Err,
	)
	r.recorder.DirectiveFailed(failure.Directive, failure.Phase)
}

// Defer runs fn on its own goroutine once after is closed and delay has
// elapsed. fn holds the renderer's tree lock, so it never overlaps a
// top-level render or another deferred function. A nil after starts the
// delay immediately. When ctx ends before after closes, fn is dropped.
// Wait blocks until every deferred function has returned.
func (r *Renderer) Defer(ctx context.Context, after <-chan struct{}, delay time.Duration, fn func(ctx context.Context)) {
	logger := ctxlog.FromContextOr(ctx, r.logger)
	r.deferred.Add(1)
	go func() {
		defer r.deferred.Done()
		if after != nil {
			select {
			case <-after:
			case <-ctx.Done():
				logger.Debug("deferred render dropped", "error", ctx.Err())
				return
			}
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			<-timer.C
		}
		r.Exclusive(func() {
			fn(ctxlog.WithLogger(context.Background(), logger))
		})
	}()
}

// Exclusive runs fn while holding the tree lock. Use it to read or mutate
// rendered nodes while deferred renders may still be pending. fn must not
// call Render on the same Renderer.
func (r *Renderer) Exclusive(fn func()) {
	r.tree.Lock()
	defer r.tree.Unlock()
	fn()
}

// Wait blocks until deferred renders finish or ctx is done.
func (r *Renderer) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.deferred.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func place(rc *Context, nodes []*html.Node) error {
	container, target := rc.Container(), rc.Target()
	switch rc.Mode() {
	case ModeReplace:
		if target != nil {
			dom.Replace(target, nodes...)
			return nil
		}
		dom.Clear(container)
		dom.Append(container, nodes...)
	case ModeAppend:
		if target != nil {
			dom.InsertAfter(target, nodes...)
			return nil
		}
		dom.Append(container, nodes...)
	case ModePrepend:
		if target != nil {
			dom.InsertBefore(target, nodes...)
			return nil
		}
		dom.Prepend(container, nodes...)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedMode, rc.Mode())
	}
	return nil
}

package directives

import (
	"context"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/goliatone/go-domtpl/internal/ctxlog"
	"github.com/goliatone/go-domtpl/pkg/dom"
	"github.com/goliatone/go-domtpl/pkg/render"
	"github.com/goliatone/go-domtpl/pkg/scope/expr"
)

// Initial establishes the base output for a unit.
type Initial struct {
	asyncDelay time.Duration
}

func (*Initial) Name() string { return NameInitial }
func (*Initial) Rank() int { return render.MinRank }
func (*Initial) Phase() render.Phase { return render.PhaseInit }

// Execute implements render.Directive.
func (d *Initial) Execute(ctx context.Context, rc *render.Context) error {
	tpl := rc.Template()
	if tpl == nil {
		rc.Stop()
		return nil
	}

	switch tpl.Type {
	case html.ElementNode:
	case html.TextNode:
		rc.SetContent(dom.Clone(tpl))
		return nil
	default:
		rc.SetContent(dom.Clone(tpl))
		rc.Stop()
		return nil
	}

	switch {
	case dom.HasAttr(tpl, AttrAsync):
		d.deferUnit(ctx, rc, tpl)
	case dom.HasAttr(tpl, AttrIgnore):
		rc.SetContent(dom.Clone(tpl))
		rc.Stop()
	case dom.Tag(tpl) == "template":
		return d.templateUnit(ctx, rc, tpl)
	case dom.HasAttr(tpl, AttrTagName):
		raw := dom.AttrOr(tpl, AttrTagName, "")
		tag := strings.TrimSpace(expr.ToString(rc.Scope().ResolveDefault(ctx, raw, dom.Tag(tpl))))
		if tag == "" || tag == "null" {
			tag = dom.Tag(tpl)
		}
		rc.SetContent(dom.NewElement(tag))
	default:
		rc.SetContent(dom.EmptyLike(tpl))
	}
	return nil
}

// deferUnit leaves an empty placeholder and re-renders the unit, without its
// async marker, into the placeholder's position. The render starts once the
// owning tree has completed and the delay has elapsed.
func (d *Initial) deferUnit(ctx context.Context, rc *render.Context, tpl *html.Node) {
	delay := d.asyncDelay
	if raw := strings.TrimSpace(dom.AttrOr(tpl, AttrAsync, "")); raw != "" {
		if ms, err := strconv.Atoi(raw); err == nil && ms >= 0 {
			delay = time.Duration(ms) * time.Millisecond
		}
	}

	placeholder := dom.EmptyLike(tpl)
	unit := dom.Clone(tpl)
	dom.RemoveAttr(unit, AttrAsync)

	renderer := rc.Renderer()
	renderer.Defer(ctx, rc.Root().TreeFinished(), delay, func(ctx context.Context) {
		logger := ctxlog.FromContext(ctx)
		if placeholder.Parent == nil {
			logger.Debug("async placeholder detached before render", "context", rc.ID())
			return
		}
		clone, err := rc.Clone(
			render.WithChildren([]*html.Node{unit}),
			render.WithContainer(placeholder.Parent),
			render.WithTarget(placeholder),
			render.WithMode(render.ModeReplace),
		)
		if err != nil {
			logger.Error("async render setup failed", "context", rc.ID(), "error", err)
			return
		}
		if _, err := renderer.RenderContext(ctx, clone); err != nil {
			logger.Error("async render failed", "context", clone.ID(), "error", err)
		}
	})

	rc.SetContent(placeholder)
	rc.Stop()
}

func (d *Initial) templateUnit(ctx context.Context, rc *render.Context, tpl *html.Node) error {
	content := dom.EmptyLike(tpl)
	rc.SetContent(content)
	rc.Stop()

	sub, err := rc.Sub(
		render.WithScope(rc.Scope().Child("", nil)),
		render.WithTemplate(nil),
		render.WithChildren(rc.Children()),
		render.WithContainer(content),
		render.WithTarget(nil),
		render.WithMode(render.ModeAppend),
	)
	if err != nil {
		return err
	}
	_, err = rc.Renderer().RenderContext(ctx, sub)
	return err
}

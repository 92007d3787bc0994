package directives

import (
	"context"
	"strings"

	"github.com/goliatone/go-domtpl/internal/ctxlog"
	"github.com/goliatone/go-domtpl/pkg/dom"
	"github.com/goliatone/go-domtpl/pkg/render"
	"github.com/goliatone/go-domtpl/pkg/scope"
)

// Bindings exposed to tpl-on-finished expressions.
const (
	BindingElement  = "$element"
	BindingRoot     = "$root"
	BindingTemplate = "$template"
)

// OnFinished evaluates an expression once the whole render tree completes.
type OnFinished struct{}

func (OnFinished) Name() string { return NameOnFinished }
func (OnFinished) Rank() int { return render.MaxRank }
func (OnFinished) Phase() render.Phase { return render.PhaseFinish }

// Execute implements render.Directive.
func (OnFinished) Execute(_ context.Context, rc *render.Context) error {
	tpl := rc.Template()
	raw, ok := dom.Attr(tpl, AttrOnFinished)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	async := dom.HasAttr(tpl, AttrOnFinishedAsync)
	bindings := rc.Scope().Child("", map[string]any{
		BindingElement:  rc.Content(),
		BindingRoot:     rc.Root().Container(),
		BindingTemplate: tpl,
	})

	renderer := rc.Renderer()
	rc.Finished(func(ctx context.Context) {
		if !async {
			evaluate(ctx, bindings, raw)
			return
		}
		renderer.Defer(ctx, nil, 0, func(ctx context.Context) {
			evaluate(ctx, bindings, raw)
		})
	})
	return nil
}

func evaluate(ctx context.Context, node *scope.Node, raw string) {
	if scope.HasExpression(raw) {
		node.Resolve(ctx, raw)
		return
	}
	if _, err := node.Eval(ctx, raw); err != nil {
		ctxlog.FromContext(ctx).Warn("on-finished expression failed", "expression", raw, "error", err)
	}
}

package directives

import (
	"context"

	"golang.org/x/net/html"

	"github.com/goliatone/go-domtpl/pkg/dom"
	"github.com/goliatone/go-domtpl/pkg/render"
	"github.com/goliatone/go-domtpl/pkg/scope"
	"github.com/goliatone/go-domtpl/pkg/scope/expr"
)

// If drops the unit and its subtree when tpl-if is falsy.
type If struct{}

func (If) Name() string { return NameIf }
func (If) Rank() int { return render.MinRank + 1000 }
func (If) Phase() render.Phase { return render.PhaseInit }

// Execute implements render.Directive.
func (If) Execute(ctx context.Context, rc *render.Context) error {
	raw, ok := dom.Attr(rc.Template(), AttrIf)
	if !ok {
		return nil
	}
	if !condition(ctx, rc.Scope(), raw) {
		rc.SetContent(nil)
		rc.Stop()
		rc.Ignore()
	}
	return nil
}

// condition evaluates raw as a boolean. Raw text without ${} is evaluated
// as a bare expression, so tpl-if="user.admin" works too.
func condition(ctx context.Context, node *scope.Node, raw string) bool {
	if scope.HasExpression(raw) {
		return expr.Truthy(node.ResolveDefault(ctx, raw, false))
	}
	value, err := node.Eval(ctx, raw)
	if err != nil {
		return false
	}
	return expr.Truthy(value)
}

// Choose keeps the first truthy tpl-when child of a tpl-choose unit and the
// tpl-otherwise children only when no branch matched.
type Choose struct{}

func (Choose) Name() string { return NameChoose }
func (Choose) Rank() int { return render.MinRank + 1 }
func (Choose) Phase() render.Phase { return render.PhaseTemplate }

// Execute implements render.Directive.
func (Choose) Execute(ctx context.Context, rc *render.Context) error {
	if !dom.HasAttr(rc.Template(), AttrChoose) {
		return nil
	}

	children := rc.Children()
	var matched *html.Node
	for _, child := range children {
		raw, ok := dom.Attr(child, AttrWhen)
		if !ok || !dom.IsElement(child) {
			continue
		}
		if condition(ctx, rc.Scope(), raw) {
			matched = child
			break
		}
	}

	kept := make([]*html.Node, 0, len(children))
	for _, child := range children {
		switch {
		case dom.IsElement(child) && dom.HasAttr(child, AttrWhen):
			if child != matched {
				continue
			}
		case dom.IsElement(child) && dom.HasAttr(child, AttrOtherwise):
			if matched != nil {
				continue
			}
		}
		kept = append(kept, child)
	}
	rc.SetChildren(kept)
	return nil
}

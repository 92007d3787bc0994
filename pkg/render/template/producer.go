package template

import (
	"context"

	"golang.org/x/net/html"

	"github.com/goliatone/go-domtpl/internal/ctxlog"
	"github.com/goliatone/go-domtpl/pkg/dom"
	"github.com/goliatone/go-domtpl/pkg/render"
)

// Producer renders one template as a terminal unit.
type Producer struct {
	engine *Engine
	name   string
	source string
}

var _ render.Producer = (*Producer)(nil)

// Named returns a producer for a template loaded by name.
func (e *Engine) Named(name string) *Producer {
	return &Producer{engine: e, name: name}
}

// Inline returns a producer for an inline template source.
func (e *Engine) Inline(source string) *Producer {
	return &Producer{engine: e, source: source}
}

// Produce executes the template against the flattened scope chain and parses
// the result in the container's tag context.
func (p *Producer) Produce(ctx context.Context, rc *render.Context) (*html.Node, error) {
	data := rc.Scope().Snapshot()

	var (
		out string
		err error
	)
	if p.name != "" {
		out, err = p.engine.RenderTemplate(p.name, data)
	} else {
		out, err = p.engine.RenderString(p.source, data)
	}
	if err != nil {
		return nil, err
	}

	contextTag := "body"
	if c := rc.Container(); dom.IsElement(c) && !dom.IsFragment(c) {
		contextTag = dom.Tag(c)
	}
	nodes, err := dom.ParseIn(out, contextTag)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("template unit produced", "template", p.label(), "nodes", len(nodes))

	wrapper := dom.NewFragment()
	dom.Append(wrapper, nodes...)
	return wrapper, nil
}

func (p *Producer) label() string {
	if p.name != "" {
		return p.name
	}
	return "inline"
}

package render

import (
	"context"

	"golang.org/x/net/html"
)

// Directive is one named transformation step applied to a render unit.
// Directives signal "no further processing" through the context flags and
// report failures by returning an error; the pipeline logs the error and
// moves on to the next directive.
type Directive interface {
	Name() string
	Rank() int
	Phase() Phase
	Execute(ctx context.Context, rc *Context) error
}

// Producer is a terminal template unit. It runs instead of the directive
// pipeline and returns the content for its context.
type Producer interface {
	Produce(ctx context.Context, rc *Context) (*html.Node, error)
}

// ProducerFunc adapts a function into a Producer.
type ProducerFunc func(ctx context.Context, rc *Context) (*html.Node, error)

// Produce implements Producer.
func (f ProducerFunc) Produce(ctx context.Context, rc *Context) (*html.Node, error) {
	return f(ctx, rc)
}

// Func builds a Directive from its parts. Handy for tests and one-off steps.
type Func struct {
	DirectiveName  string
	DirectiveRank  int
	DirectivePhase Phase
	Fn             func(ctx context.Context, rc *Context) error
}

func (d Func) Name() string { return d.DirectiveName }
func (d Func) Rank() int { return d.DirectiveRank }
func (d Func) Phase() Phase { return d.DirectivePhase }

// Execute implements Directive.
func (d Func) Execute(ctx context.Context, rc *Context) error {
	if d.Fn == nil {
		return nil
	}
	return d.Fn(ctx, rc)
}

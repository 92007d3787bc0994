package directives_test

import (
	"context"
	"fmt"
	"testing"

	"golang.org/x/net/html"

	"github.com/goliatone/go-domtpl/pkg/directives"
	"github.com/goliatone/go-domtpl/pkg/dom"
	"github.com/goliatone/go-domtpl/pkg/loader"
	"github.com/goliatone/go-domtpl/pkg/render"
)

type stubLoader struct {
	templates map[string]string
	data      map[string]any
}

func (s stubLoader) LoadURL(_ context.Context, ref string) ([]*html.Node, error) {
	markup, ok := s.templates[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s unreachable", loader.ErrTemplateLoad, ref)
	}
	return dom.Parse(markup)
}

func (s stubLoader) FetchData(_ context.Context, ref string, _ loader.DataOptions) (any, error) {
	value, ok := s.data[ref]
	if !ok {
		return nil, fmt.Errorf("no data at %s", ref)
	}
	return value, nil
}

type harness struct {
	renderer  *render.Renderer
	container *html.Node
}

func newHarness(opts ...directives.Option) *harness {
	reg := directives.NewRegistry(opts...)
	return &harness{
		renderer:  render.New(render.WithRegistry(reg), render.WithTracker(render.NewTracker())),
		container: dom.NewElement("div"),
	}
}

func (h *harness) render(t *testing.T, ctx context.Context, markup string, data map[string]any) string {
	t.Helper()
	nodes, err := dom.Parse(markup)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := h.renderer.Render(ctx, render.Options{
		Template:  nodes,
		Data:      data,
		Container: h.container,
		Mode:      render.ModeReplace,
	}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return h.inner(t)
}

func (h *harness) inner(t *testing.T) string {
	t.Helper()
	out, err := dom.InnerHTML(h.container)
	if err != nil {
		t.Fatalf("InnerHTML: %v", err)
	}
	return out
}

func renderMarkup(t *testing.T, markup string, data map[string]any, opts ...directives.Option) string {
	t.Helper()
	return newHarness(opts...).render(t, context.Background(), markup, data)
}

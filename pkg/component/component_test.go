package component_test

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"golang.org/x/net/html"

	"github.com/goliatone/go-domtpl/pkg/component"
	"github.com/goliatone/go-domtpl/pkg/directives"
	"github.com/goliatone/go-domtpl/pkg/dom"
	"github.com/goliatone/go-domtpl/pkg/loader"
	"github.com/goliatone/go-domtpl/pkg/render"
)

func newRenderer(opts ...render.Option) *render.Renderer {
	base := []render.Option{
		render.WithRegistry(directives.NewRegistry()),
		render.WithTracker(render.NewTracker()),
	}
	return render.New(append(base, opts...)...)
}

// document parses markup under a detached body and returns the body and the
// first element matching hostSelector.
func document(t *testing.T, markup, hostSelector string) (*html.Node, *html.Node) {
	t.Helper()
	nodes, err := dom.Parse(markup)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	body := dom.NewElement("body")
	dom.Append(body, nodes...)
	host := dom.Find(body, hostSelector)
	if host == nil {
		t.Fatalf("host %q not found", hostSelector)
	}
	return body, host
}

func inner(t *testing.T, n *html.Node) string {
	t.Helper()
	out, err := dom.InnerHTML(n)
	if err != nil {
		t.Fatalf("InnerHTML: %v", err)
	}
	return out
}

func TestReadyRendersOwnChildren(t *testing.T) {
	t.Parallel()

	_, host := document(t, `<x-card data='{"name": "Ada"}'><p>${name}</p></x-card>`, "x-card")
	r := newRenderer()
	c, err := component.New(host, r)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var results []*component.Result
	r.Events().On(host, component.EventRendered, func(evt *dom.Event) {
		results = append(results, evt.Detail.(*component.Result))
	})

	if err := c.Ready(context.Background()); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if got := inner(t, host); got != "<p>Ada</p>" {
		t.Fatalf("unexpected output %q", got)
	}
	if len(results) != 1 || results[0].Target != host || len(results[0].Nodes) != 1 {
		t.Fatalf("expected one rendered event targeting the host, got %+v", results)
	}

	if _, err := c.Render(context.Background(), component.Request{Data: map[string]any{"name": "Grace"}}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := inner(t, host); got != "<p>Grace</p>" {
		t.Fatalf("re-render must use the captured template, got %q", got)
	}
}

func TestManualModeAndCondition(t *testing.T) {
	t.Parallel()

	_, host := document(t, `<x-card mode="manual" condition="${show}"><p>${name}</p></x-card>`, "x-card")
	c, err := component.New(host, newRenderer())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Ready(context.Background()); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if got := inner(t, host); got != "<p>${name}</p>" {
		t.Fatalf("manual mode must not render on ready, got %q", got)
	}

	res, err := c.Render(context.Background(), component.Request{Data: map[string]any{"show": false, "name": "Ada"}})
	if err != nil || res != nil {
		t.Fatalf("falsy condition should skip, got %+v, %v", res, err)
	}
	if _, err := c.Render(context.Background(), component.Request{Data: map[string]any{"show": true, "name": "Ada"}}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := inner(t, host); got != "<p>Ada</p>" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestTemplateAndDataSources(t *testing.T) {
	t.Parallel()

	markup := `<template id="card"><b>${name}</b></template><x-a template="#card" data="${user}"></x-a><x-b template="#card" include-only></x-b><x-c template="card.html" data="user.json"></x-c>`
	files := fstest.MapFS{
		"card.html": {Data: []byte(`<i>${name}</i>`)},
		"user.json": {Data: []byte(`{"name": "Linus"}`)},
	}
	r := newRenderer(render.WithApplicationData(map[string]any{"user": map[string]any{"name": "Grace"}}))
	l := loader.New(loader.WithFileSystem(files))

	cases := []struct {
		host string
		want string
	}{
		{host: "x-a", want: "<b>Grace</b>"},
		{host: "x-b", want: "<b>${name}</b>"},
		{host: "x-c", want: "<i>Linus</i>"},
	}
	for _, tc := range cases {
		_, host := document(t, markup, tc.host)
		c, err := component.New(host, r, component.WithLoader(l))
		if err != nil {
			t.Fatalf("%s: New: %v", tc.host, err)
		}
		if err := c.Ready(context.Background()); err != nil {
			t.Fatalf("%s: Ready: %v", tc.host, err)
		}
		if got := inner(t, host); got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.host, got, tc.want)
		}
	}

	_, host := document(t, `<x-d template="#missing"></x-d>`, "x-d")
	c, _ := component.New(host, r)
	if err := c.Ready(context.Background()); !errors.Is(err, loader.ErrTemplateLoad) {
		t.Fatalf("expected ErrTemplateLoad, got %v", err)
	}
}

func TestListenAndTriggerEvents(t *testing.T) {
	t.Parallel()

	body, host := document(t, `<button id="go">go</button><x-card mode="manual" listen-event="click" listen-element="#go" trigger-event="card-done"><p>${$event ? 'clicked' : 'idle'}</p></x-card>`, "x-card")
	r := newRenderer()
	c, err := component.New(host, r)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Ready(context.Background()); err != nil {
		t.Fatalf("Ready: %v", err)
	}

	done := 0
	r.Events().On(body, "card-done", func(*dom.Event) { done++ })
	r.Events().Dispatch(dom.Find(body, "#go"), "click", nil)

	if got := inner(t, host); got != "<p>clicked</p>" {
		t.Fatalf("unexpected output %q", got)
	}
	if done != 1 {
		t.Fatalf("expected trigger event to bubble once, got %d", done)
	}

	c.Destroy()
	r.Events().Dispatch(dom.Find(body, "#go"), "click", nil)
	if done != 1 {
		t.Fatalf("destroyed component must not react to events")
	}
	if _, err := c.Render(context.Background(), component.Request{}); !errors.Is(err, component.ErrDestroyed) {
		t.Fatalf("expected ErrDestroyed, got %v", err)
	}
}

func TestAttributeChangeDebouncesRender(t *testing.T) {
	t.Parallel()

	_, host := document(t, `<x-card data='{"name": "A"}'><p>${name}</p></x-card>`, "x-card")
	r := newRenderer()
	c, err := component.New(host, r, component.WithDebounce(5*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Ready(context.Background()); err != nil {
		t.Fatalf("Ready: %v", err)
	}

	rendered := make(chan string, 4)
	r.Events().On(host, component.EventRendered, func(evt *dom.Event) {
		out, _ := dom.InnerHTML(evt.Detail.(*component.Result).Target)
		rendered <- out
	})

	c.SetAttribute(component.AttrData, `{"name": "B"}`)
	c.SetAttribute(component.AttrData, `{"name": "C"}`)
	c.SetAttribute("unobserved", "x")

	select {
	case got := <-rendered:
		if got != "<p>C</p>" {
			t.Fatalf("expected the last change to win, got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for debounced render")
	}
	select {
	case got := <-rendered:
		t.Fatalf("expected a single debounced render, got another %q", got)
	case <-time.After(30 * time.Millisecond):
	}
	c.Destroy()
}

func TestShadowMode(t *testing.T) {
	t.Parallel()

	_, host := document(t, `<x-card shadow-mode="open" data='{"name": "Ada"}'><p>${name}</p></x-card>`, "x-card")
	c, err := component.New(host, newRenderer())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Ready(context.Background()); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	want := `<template shadowrootmode="open"><p>Ada</p></template><p>${name}</p>`
	if got := inner(t, host); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	if _, err := c.Render(context.Background(), component.Request{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := inner(t, host); got != want {
		t.Fatalf("re-render must reuse the shadow root, got %q", got)
	}
}

func TestNewValidatesHost(t *testing.T) {
	t.Parallel()

	if _, err := component.New(dom.NewText("x"), newRenderer()); !errors.Is(err, render.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for a text host, got %v", err)
	}
	if _, err := component.New(dom.NewElement("div"), nil); !errors.Is(err, render.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration without renderer, got %v", err)
	}
}

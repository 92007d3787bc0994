package domtpl_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/net/html"

	domtpl "github.com/goliatone/go-domtpl"
	"github.com/goliatone/go-domtpl/pkg/config"
	"github.com/goliatone/go-domtpl/pkg/dom"
	"github.com/goliatone/go-domtpl/pkg/loader"
	"github.com/goliatone/go-domtpl/pkg/render"
	pongo "github.com/goliatone/go-domtpl/pkg/render/template"
	theme "github.com/goliatone/go-theme"
)

func TestRenderString(t *testing.T) {
	t.Parallel()

	engine, err := domtpl.New()
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	tests := []struct {
		name   string
		markup string
		data   map[string]any
		want   string
	}{
		{
			name:   "substitution",
			markup: `<p>Hello ${name}</p>`,
			data:   map[string]any{"name": "Ada"},
			want:   `<p>Hello Ada</p>`,
		},
		{
			name:   "loop",
			markup: `<ul tpl-foreach="${items}"><li>${item}</li></ul>`,
			data:   map[string]any{"items": []any{"a", "b"}},
			want:   `<li>a</li><li>b</li>`,
		},
		{
			name:   "nil data",
			markup: `<p>${missing ?? 'none'}</p>`,
			want:   `<p>none</p>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := engine.RenderString(context.Background(), tt.markup, tt.data)
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRenderFromFileSystem(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"page.html":    {Data: []byte(`<main><h1>${title}</h1><div tpl-include="partial.html"></div></main>`)},
		"partial.html": {Data: []byte(`<p>${title} body</p>`)},
	}
	engine, err := domtpl.New(domtpl.WithFileSystem(fsys))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	container := dom.NewFragment()
	if _, err := engine.Render(context.Background(), domtpl.Request{
		Source:    loader.FromFS("page.html"),
		Data:      map[string]any{"title": "Docs"},
		Container: container,
	}); err != nil {
		t.Fatalf("render: %v", err)
	}

	want := `<main><h1>Docs</h1><div><p>Docs body</p></div></main>`
	if got := serialise(t, container); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRenderRequiresSource(t *testing.T) {
	t.Parallel()

	engine, err := domtpl.New()
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	_, err = engine.Render(context.Background(), domtpl.Request{})
	if !errors.Is(err, render.ErrTemplateRequired) {
		t.Fatalf("expected ErrTemplateRequired, got %v", err)
	}

	_, err = engine.Render(context.Background(), domtpl.Request{Source: loader.FromFS("missing.html")})
	if !errors.Is(err, loader.ErrTemplateLoad) {
		t.Fatalf("expected ErrTemplateLoad, got %v", err)
	}
}

func TestRenderPongoTemplate(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"card.html": {Data: []byte(`<div class="card">{{ name|upper }} {{ name|facade_reverse }}</div>`)},
	}
	reverse := func(input any, _ any) (any, error) {
		runes := []rune(fmt.Sprint(input))
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return string(runes), nil
	}
	engine, err := domtpl.New(
		domtpl.WithFileSystem(fsys),
		domtpl.WithPongoFilters(map[string]pongo.FilterFunc{"facade_reverse": reverse}),
	)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	container := dom.NewFragment()
	if _, err := engine.Render(context.Background(), domtpl.Request{
		Template:  "card",
		Data:      map[string]any{"name": "Ada"},
		Container: container,
	}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if got, want := serialise(t, container), `<div class="card">ADA adA</div>`; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	_, err = engine.Render(context.Background(), domtpl.Request{Template: "missing"})
	if !errors.Is(err, loader.ErrTemplateLoad) || !errors.Is(err, pongo.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateLoad wrapping ErrTemplateNotFound, got %v", err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Log.Level = "loud"
	if _, err := domtpl.New(domtpl.WithConfig(cfg)); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestApplicationDataAndCustomDirective(t *testing.T) {
	t.Parallel()

	shout := render.Func{
		DirectiveName:  "shout",
		DirectiveRank:  render.MinRank + 20,
		DirectivePhase: render.PhaseContent,
		Fn: func(ctx context.Context, rc *render.Context) error {
			if content := rc.Content(); content != nil && dom.HasAttr(content, "shout") {
				dom.RemoveAttr(content, "shout")
				site := fmt.Sprint(rc.Scope().Resolve(ctx, "${site}"))
				dom.SetAttr(content, "data-site", strings.ToUpper(site))
			}
			return nil
		},
	}
	engine, err := domtpl.New(
		domtpl.WithApplicationData(map[string]any{"site": "docs"}),
		domtpl.WithDirectives(shout),
	)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	got, err := engine.RenderString(context.Background(), `<b shout="">${site}</b>`, nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != `<b data-site="DOCS">docs</b>` {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestDuplicateDirectiveIsRejected(t *testing.T) {
	t.Parallel()

	dup := render.Func{DirectiveName: "text", DirectiveRank: render.MinRank + 30, DirectivePhase: render.PhaseContent}
	if _, err := domtpl.New(domtpl.WithDirectives(dup)); err == nil {
		t.Fatalf("expected duplicate directive error")
	}
}

func TestThemeSelection(t *testing.T) {
	t.Parallel()

	selector := &stubThemeSelector{selection: &theme.Selection{
		Theme:   "acme",
		Variant: "dark",
		Manifest: &theme.Manifest{
			Name:    "acme",
			Version: "1.0.0",
			Tokens:  map[string]string{"brand": "#123456", "surface": "#fff"},
			Variants: map[string]theme.Variant{
				"dark": {Tokens: map[string]string{"surface": "#000"}},
			},
		},
	}}

	cfg := config.Default()
	cfg.Theme = config.ThemeConfig{Name: "acme", Variant: "dark"}
	engine, err := domtpl.New(domtpl.WithConfig(cfg), domtpl.WithThemeSelector(selector))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	got, err := engine.RenderString(context.Background(),
		`<div style="${theme.cssVarsStyle}">${theme.name}/${theme.variant} ${theme.tokens.surface}</div>`, nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := `<div style="--brand: #123456;--surface: #000;">acme/dark #000</div>`
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	wantCalls := []selectorCall{{name: "acme", variant: "dark"}}
	if diff := cmp.Diff(wantCalls, selector.calls, cmp.AllowUnexported(selectorCall{})); diff != "" {
		t.Fatalf("selector calls mismatch (-want +got):\n%s", diff)
	}
}

func TestThemeSelectionFailure(t *testing.T) {
	t.Parallel()

	selector := &stubThemeSelector{err: errors.New("unknown theme")}
	if _, err := domtpl.New(domtpl.WithThemeSelector(selector)); err == nil {
		t.Fatalf("expected selector error")
	}
}

func TestMetricsAreRecorded(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Metrics.Enabled = true
	reg := prometheus.NewRegistry()
	engine, err := domtpl.New(
		domtpl.WithConfig(cfg),
		domtpl.WithPrometheusRegistry(reg),
		domtpl.WithFileSystem(fstest.MapFS{"a.html": {Data: []byte(`<i>a</i>`)}}),
	)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := engine.Render(context.Background(), domtpl.Request{Source: loader.FromFS("a.html")}); err != nil {
			t.Fatalf("render: %v", err)
		}
	}
	if got := testutil.CollectAndCount(reg, "domtpl_render_renders_total"); got != 1 {
		t.Fatalf("expected one renders_total series, got %d", got)
	}
	if engine.Metrics().Registry() != reg {
		t.Fatalf("expected the supplied registry to be used")
	}
}

func TestStartAndClose(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cfg := config.Default()
	cfg.Tracker.SweepSchedule = "@every 10ms"
	engine, err := domtpl.New(domtpl.WithConfig(cfg), domtpl.WithLogger(logger))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := engine.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !engine.Tracker().Running() {
		t.Fatalf("expected tracker to run")
	}
	engine.Close()
	if engine.Tracker().Running() {
		t.Fatalf("expected tracker to stop")
	}
}

func TestComponentUsesEngine(t *testing.T) {
	t.Parallel()

	engine, err := domtpl.New(domtpl.WithFileSystem(fstest.MapFS{
		"card.html": {Data: []byte(`<p>${name}</p>`)},
	}))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	nodes, err := dom.Parse(`<x-card template="card.html" data='{"name": "Ada"}'></x-card>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	host := nodes[0]
	c, err := engine.Component(host)
	if err != nil {
		t.Fatalf("component: %v", err)
	}
	ctx := context.Background()
	if err := c.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := c.Ready(ctx); err != nil {
		t.Fatalf("ready: %v", err)
	}
	defer c.Destroy()

	if got := serialise(t, host); got != `<p>Ada</p>` {
		t.Fatalf("unexpected host content %q", got)
	}
}

func TestTranslator(t *testing.T) {
	t.Parallel()

	messages := map[string]string{"es:greeting": "Hola"}
	engine, err := domtpl.New(domtpl.WithTranslator(render.TranslatorFunc(func(locale, key string, _ ...any) (string, error) {
		return messages[locale+":"+key], nil
	}), render.I18nConfig{}))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	got, err := engine.RenderString(context.Background(),
		`<p lang="${current_locale(page)}">${translate(page, 'greeting')} ${translate(page, 'farewell')}</p>`,
		map[string]any{"page": map[string]any{"locale": "es"}})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if want := `<p lang="es">Hola farewell</p>`; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

type selectorCall struct {
	name    string
	variant string
}

type stubThemeSelector struct {
	selection *theme.Selection
	err       error
	calls     []selectorCall
}

func (s *stubThemeSelector) Select(name, variant string, _ ...theme.QueryOption) (*theme.Selection, error) {
	s.calls = append(s.calls, selectorCall{name: name, variant: variant})
	return s.selection, s.err
}

func serialise(t *testing.T, parent *html.Node) string {
	t.Helper()
	var buf bytes.Buffer
	for _, n := range dom.Children(parent) {
		if err := html.Render(&buf, n); err != nil {
			t.Fatalf("render html: %v", err)
		}
	}
	return buf.String()
}

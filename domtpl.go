// Package domtpl is the entry point for the declarative template engine. New
// wires the standard directive set, the template loader, metrics and the leak
// detector from a config.Config; Render and RenderString drive it.
//
// Packages underneath can be used on their own: pkg/render holds the
// directive framework and renderer, pkg/directives the standard directives,
// pkg/scope the expression resolver and pkg/component the host component.
package domtpl

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/net/html"

	"github.com/goliatone/go-domtpl/pkg/component"
	"github.com/goliatone/go-domtpl/pkg/config"
	"github.com/goliatone/go-domtpl/pkg/directives"
	"github.com/goliatone/go-domtpl/pkg/dom"
	"github.com/goliatone/go-domtpl/pkg/loader"
	"github.com/goliatone/go-domtpl/pkg/metrics"
	"github.com/goliatone/go-domtpl/pkg/render"
	pongo "github.com/goliatone/go-domtpl/pkg/render/template"
	theme "github.com/goliatone/go-theme"
)

// Mode aliases render.Mode so callers need not import pkg/render.
type Mode = render.Mode

// Placement modes.
const (
	ModeReplace = render.ModeReplace
	ModeAppend  = render.ModeAppend
	ModePrepend = render.ModePrepend
)

// Option configures an Engine.
type Option func(*options)

type options struct {
	config     *config.Config
	logger     *slog.Logger
	fsys       fs.FS
	httpClient *http.Client
	registry   *prometheus.Registry
	selector   theme.ThemeSelector
	directives []render.Directive
	appData    []map[string]any
	translator render.Translator
	i18n       *render.I18nConfig
	filters    map[string]pongo.FilterFunc
}

// WithConfig replaces config.Default.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		if cfg != nil {
			o.config = cfg
		}
	}
}

// WithLogger overrides the logger built from the log config section.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithFileSystem resolves relative template and data references against fsys.
func WithFileSystem(fsys fs.FS) Option {
	return func(o *options) {
		o.fsys = fsys
	}
}

// WithHTTPClient sets the client used for remote templates and data.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithPrometheusRegistry registers the engine metrics with reg.
func WithPrometheusRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithThemeSelector resolves the configured theme and exposes it as `theme`
// in the application scope.
func WithThemeSelector(selector theme.ThemeSelector) Option {
	return func(o *options) {
		o.selector = selector
	}
}

// WithDirectives registers extra directives next to the standard set.
func WithDirectives(list ...render.Directive) Option {
	return func(o *options) {
		o.directives = append(o.directives, list...)
	}
}

// WithApplicationData seeds values visible to every render.
func WithApplicationData(values map[string]any) Option {
	return func(o *options) {
		o.appData = append(o.appData, values)
	}
}

// WithTranslator exposes translate and current_locale to expressions.
func WithTranslator(t render.Translator, cfg render.I18nConfig) Option {
	return func(o *options) {
		o.translator = t
		o.i18n = &cfg
	}
}

// WithPongoFilters registers filters for templates rendered through
// Request.Template.
func WithPongoFilters(filters map[string]pongo.FilterFunc) Option {
	return func(o *options) {
		if o.filters == nil {
			o.filters = make(map[string]pongo.FilterFunc, len(filters))
		}
		for name, fn := range filters {
			o.filters[name] = fn
		}
	}
}

// Engine bundles a configured renderer with its loader and telemetry.
type Engine struct {
	config   *config.Config
	logger   *slog.Logger
	renderer *render.Renderer
	loader   *loader.Loader
	tracker  *render.Tracker
	metrics  *metrics.Collector
	pongo    *pongo.Engine
}

// New builds an engine.
func New(opts ...Option) (*Engine, error) {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	cfg := o.config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("domtpl: %w", err)
	}
	logger := o.logger
	if logger == nil {
		logger = cfg.Log.Logger(os.Stderr)
	}
	logger = logger.With("component", "domtpl")

	collector := metrics.NewCollector(cfg.Metrics, o.registry)
	tracker := render.NewTracker(
		render.WithLeakThresholds(cfg.Tracker.WarnAfter, cfg.Tracker.ErrorAfter),
		render.WithSweepSchedule(cfg.Tracker.SweepSchedule),
		render.WithTrackerLogger(logger),
		render.WithTrackerRecorder(collector),
	)

	loaderOpts := []loader.Option{
		loader.WithHTTP(cfg.Loader.HTTP),
		loader.WithTimeout(cfg.Loader.HTTPTimeout),
		loader.WithCacheRecorder(collector),
		loader.WithLogger(logger),
	}
	switch {
	case o.fsys != nil:
		loaderOpts = append(loaderOpts, loader.WithFileSystem(o.fsys))
	case cfg.Loader.BaseDir != "":
		loaderOpts = append(loaderOpts, loader.WithFileSystem(os.DirFS(cfg.Loader.BaseDir)))
	}
	if o.httpClient != nil {
		loaderOpts = append(loaderOpts, loader.WithHTTPClient(o.httpClient))
	}
	if !cfg.Loader.Cache {
		loaderOpts = append(loaderOpts, loader.WithoutCache())
	}
	l := loader.New(loaderOpts...)

	directiveOpts := []directives.Option{
		directives.WithLoader(l),
		directives.WithAsyncDelay(cfg.Render.AsyncDelay),
	}
	if !cfg.Render.Sanitize {
		directiveOpts = append(directiveOpts, directives.WithoutSanitizer())
	}
	registry := directives.NewRegistry(directiveOpts...)
	for _, d := range o.directives {
		if err := registry.Register(d); err != nil {
			return nil, fmt.Errorf("domtpl: %w", err)
		}
	}

	renderOpts := []render.Option{
		render.WithRegistry(registry),
		render.WithTracker(tracker),
		render.WithLogger(logger),
		render.WithRecorder(collector),
	}
	for _, values := range o.appData {
		renderOpts = append(renderOpts, render.WithApplicationData(values))
	}
	if o.selector != nil {
		themeData, err := selectTheme(o.selector, cfg.Theme)
		if err != nil {
			return nil, fmt.Errorf("domtpl: %w", err)
		}
		renderOpts = append(renderOpts, render.WithApplicationData(map[string]any{ThemeVar: themeData}))
	}

	renderer := render.New(renderOpts...)
	if o.i18n != nil {
		render.RegisterI18n(renderer, o.translator, *o.i18n)
	}

	pongoOpts := []pongo.Option{
		pongo.WithExtension(cfg.Pongo.Extension),
		pongo.WithFilters(o.filters),
	}
	switch {
	case cfg.Pongo.Dir != "":
		pongoOpts = append(pongoOpts, pongo.WithBaseDir(cfg.Pongo.Dir))
	case o.fsys != nil:
		pongoOpts = append(pongoOpts, pongo.WithFS(o.fsys))
	case cfg.Loader.BaseDir != "":
		pongoOpts = append(pongoOpts, pongo.WithBaseDir(cfg.Loader.BaseDir))
	}
	templates, err := pongo.New(pongoOpts...)
	if err != nil {
		return nil, fmt.Errorf("domtpl: %w", err)
	}

	return &Engine{
		config:   cfg,
		logger:   logger,
		renderer: renderer,
		loader:   l,
		tracker:  tracker,
		metrics:  collector,
		pongo:    templates,
	}, nil
}

func (e *Engine) Config() *config.Config { return e.config }
func (e *Engine) Renderer() *render.Renderer { return e.renderer }
func (e *Engine) Loader() *loader.Loader { return e.loader }
func (e *Engine) Metrics() *metrics.Collector { return e.metrics }
func (e *Engine) Tracker() *render.Tracker { return e.tracker }
func (e *Engine) Pongo() *pongo.Engine { return e.pongo }

// Start schedules the leak detector until ctx is cancelled or Close is called.
func (e *Engine) Start(ctx context.Context) error {
	return e.tracker.Start(ctx)
}

// Close stops the leak detector.
func (e *Engine) Close() {
	e.tracker.Stop()
}

// Request describes one render. Template, when set, names a pongo2
// template rendered as a single terminal unit and Source is ignored.
type Request struct {
	Source    loader.Source
	Template  string
	Data      map[string]any
	Container *html.Node
	Target    *html.Node
	Mode      Mode
}

// Render loads the source and renders it into the container.
func (e *Engine) Render(ctx context.Context, req Request) ([]*html.Node, error) {
	opts := render.Options{
		Data:      data(req.Data),
		Container: req.Container,
		Target:    req.Target,
		Mode:      req.Mode,
	}
	switch {
	case req.Template != "":
		if err := e.pongo.Lookup(req.Template); err != nil {
			return nil, fmt.Errorf("%w: %w", loader.ErrTemplateLoad, err)
		}
		opts.Producer = e.pongo.Named(req.Template)
	case req.Source != nil:
		nodes, err := e.loader.Load(ctx, req.Source)
		if err != nil {
			return nil, err
		}
		opts.Template = nodes
	default:
		return nil, render.ErrTemplateRequired
	}
	return e.renderer.Render(ctx, opts)
}

// RenderString renders markup into a detached container, waits for deferred
// units and returns the serialised result.
func (e *Engine) RenderString(ctx context.Context, markup string, values map[string]any) (string, error) {
	container := dom.NewFragment()
	if _, err := e.Render(ctx, Request{
		Source:    loader.FromMarkup(markup),
		Data:      values,
		Container: container,
	}); err != nil {
		return "", err
	}
	if err := e.renderer.Wait(ctx); err != nil {
		return "", err
	}
	out, err := dom.InnerHTML(container)
	if err != nil {
		return "", fmt.Errorf("domtpl: serialise: %w", err)
	}
	return out, nil
}

// Component creates a host component bound to the engine's renderer and
// loader.
func (e *Engine) Component(host *html.Node, opts ...component.Option) (*component.Component, error) {
	base := []component.Option{component.WithLoader(e.loader), component.WithLogger(e.logger)}
	return component.New(host, e.renderer, append(base, opts...)...)
}

func data(values map[string]any) map[string]any {
	if values == nil {
		return map[string]any{}
	}
	return values
}

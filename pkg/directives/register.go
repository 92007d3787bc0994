package directives

import (
	"context"
	"time"

	"golang.org/x/net/html"

	"github.com/goliatone/go-domtpl/pkg/loader"
	"github.com/goliatone/go-domtpl/pkg/render"
	"github.com/goliatone/go-domtpl/pkg/sanitize"
)

// TemplateLoader loads markup referenced by the include directive.
type TemplateLoader interface {
	LoadURL(ctx context.Context, ref string) ([]*html.Node, error)
}

// DataFetcher loads remote data for the data directive.
type DataFetcher interface {
	FetchData(ctx context.Context, ref string, opts loader.DataOptions) (any, error)
}

// Sanitizer cleans markup injected through the html text mode. Clean
// receives the parsed top-level nodes and returns the ones to keep.
type Sanitizer interface {
	Clean(nodes []*html.Node) []*html.Node
}

// DefaultAsyncDelay applies to tpl-async units without an explicit delay.
const DefaultAsyncDelay = 10 * time.Millisecond

type config struct {
	templates  TemplateLoader
	fetcher    DataFetcher
	sanitizer  Sanitizer
	asyncDelay time.Duration
}

// Option configures the standard directive set.
type Option func(*config)

// WithTemplateLoader sets the loader used by the include directive.
func WithTemplateLoader(l TemplateLoader) Option {
	return func(c *config) { c.templates = l }
}

// WithDataFetcher sets the fetcher used by remote data.
func WithDataFetcher(f DataFetcher) Option {
	return func(c *config) { c.fetcher = f }
}

// WithLoader uses l for both includes and remote data.
func WithLoader(l *loader.Loader) Option {
	return func(c *config) {
		if l != nil {
			c.templates = l
			c.fetcher = l
		}
	}
}

// WithSanitizer replaces the default sanitizer.
func WithSanitizer(s Sanitizer) Option {
	return func(c *config) {
		if s != nil {
			c.sanitizer = s
		}
	}
}

// WithoutSanitizer injects html text units unmodified.
func WithoutSanitizer() Option {
	return func(c *config) {
		c.sanitizer = nil
	}
}

// WithAsyncDelay sets the default tpl-async delay.
func WithAsyncDelay(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.asyncDelay = d
		}
	}
}

// Standard returns the ten standard directives.
func Standard(opts ...Option) []render.Directive {
	cfg := config{
		sanitizer:  sanitize.Default(),
		asyncDelay: DefaultAsyncDelay,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	return []render.Directive{
		&Initial{asyncDelay: cfg.asyncDelay},
		If{},
		&Data{fetcher: cfg.fetcher},
		Choose{},
		Foreach{},
		Repeat{},
		Attribute{},
		&Text{sanitizer: cfg.sanitizer},
		&Include{templates: cfg.templates},
		OnFinished{},
	}
}

// Register adds the standard directives to reg.
func Register(reg *render.Registry, opts ...Option) error {
	for _, d := range Standard(opts...) {
		if err := reg.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding the standard directives.
func NewRegistry(opts ...Option) *render.Registry {
	reg := render.NewRegistry()
	reg.MustRegister(Standard(opts...)...)
	return reg
}

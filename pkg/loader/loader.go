// Package loader resolves template sources into parsed markup and fetches
// remote data for the data directive.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/net/html"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-domtpl/internal/fetch"
	"github.com/goliatone/go-domtpl/pkg/dom"
)

// ErrTemplateLoad reports an unsupported source or a failed fetch.
var ErrTemplateLoad = errors.New("loader: template load failed")

// CacheRecorder observes template cache lookups.
type CacheRecorder interface {
	CacheLookup(hit bool)
}

// Loader turns sources into parsed nodes, caching results by a hash of the
// alias or location. Inline markup is only cached when it carries an alias.
type Loader struct {
	fetcher *fetch.Fetcher
	fsys    fs.FS
	client  *http.Client
	http    bool
	timeout time.Duration

	cacheEnabled bool
	mu           sync.RWMutex
	cache        map[uint64][]*html.Node
	group        singleflight.Group

	recorder CacheRecorder
	logger   *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithFileSystem enables FromFS sources and relative references.
func WithFileSystem(fsys fs.FS) Option {
	return func(l *Loader) { l.fsys = fsys }
}

// WithHTTPClient supplies the client used for URL sources.
func WithHTTPClient(client *http.Client) Option {
	return func(l *Loader) {
		l.client = client
		l.http = client != nil || l.http
	}
}

// WithHTTP toggles URL support.
func WithHTTP(enabled bool) Option {
	return func(l *Loader) { l.http = enabled }
}

// WithTimeout bounds each HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) { l.timeout = d }
}

// WithoutCache disables the template cache.
func WithoutCache() Option {
	return func(l *Loader) { l.cacheEnabled = false }
}

// WithCacheRecorder reports cache hits and misses.
func WithCacheRecorder(rec CacheRecorder) Option {
	return func(l *Loader) { l.recorder = rec }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New constructs a Loader. HTTP support and caching are on by default.
func New(opts ...Option) *Loader {
	l := &Loader{
		http:         true,
		cacheEnabled: true,
		cache:        make(map[uint64][]*html.Node),
		logger:       slog.Default().With("component", "loader"),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(l)
	}
	l.fetcher = fetch.New(fetch.Options{
		FileSystem: l.fsys,
		HTTPClient: l.client,
		AllowHTTP:  l.http,
		Timeout:    l.timeout,
	})
	return l
}

// Load resolves src and returns a private copy of its top-level nodes.
func (l *Loader) Load(ctx context.Context, src Source) ([]*html.Node, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: source is nil", ErrTemplateLoad)
	}
	if nodes, ok := src.(nodesSource); ok {
		return cloneAll(nodes.nodes), nil
	}

	if _, inline := src.(markupSource); inline || !l.cacheEnabled {
		nodes, err := l.load(ctx, src)
		if err != nil {
			return nil, err
		}
		return cloneAll(nodes), nil
	}

	key := cacheKey(src)
	l.mu.RLock()
	cached, hit := l.cache[key]
	l.mu.RUnlock()
	l.observe(hit)
	if hit {
		return cloneAll(cached), nil
	}

	value, err, _ := l.group.Do(fmt.Sprint(key), func() (any, error) {
		nodes, err := l.load(ctx, src)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.cache[key] = nodes
		l.mu.Unlock()
		return nodes, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneAll(value.([]*html.Node)), nil
}

// LoadURL resolves a reference found in markup. Absolute http(s) URLs are
// fetched remotely; other references read from the fs.FS when one is
// configured and from disk otherwise.
func (l *Loader) LoadURL(ctx context.Context, ref string) ([]*html.Node, error) {
	return l.Load(ctx, l.Reference(ref))
}

// Reference classifies ref into a Source.
func (l *Loader) Reference(ref string) Source {
	ref = strings.TrimSpace(ref)
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return FromURL(ref)
	case strings.HasPrefix(ref, "file://"):
		return FromFile(strings.TrimPrefix(ref, "file://"))
	case l.fsys != nil:
		return FromFS(ref)
	}
	return FromFile(ref)
}

// Purge drops every cached template.
func (l *Loader) Purge() {
	l.mu.Lock()
	l.cache = make(map[uint64][]*html.Node)
	l.mu.Unlock()
}

func (l *Loader) observe(hit bool) {
	if l.recorder != nil {
		l.recorder.CacheLookup(hit)
	}
}

func (l *Loader) load(ctx context.Context, src Source) ([]*html.Node, error) {
	if a, ok := src.(aliased); ok {
		src = a.Source
	}

	var (
		data []byte
		err  error
	)
	switch s := src.(type) {
	case markupSource:
		return parse(src, s.markup)
	case selectorSource:
		return l.selectFrom(ctx, s)
	case nodesSource:
		return s.nodes, nil
	}

	switch src.Kind() {
	case KindFile:
		data, err = l.fetcher.File(ctx, src.Location())
	case KindFS:
		data, err = l.fetcher.FS(ctx, src.Location())
	case KindURL:
		if _, perr := url.ParseRequestURI(src.Location()); perr != nil {
			return nil, fmt.Errorf("%w: invalid url %q: %w", ErrTemplateLoad, src.Location(), perr)
		}
		var resp fetch.Response
		resp, err = l.fetcher.HTTP(ctx, src.Location(), fetch.Request{})
		data = resp.Body
	default:
		return nil, fmt.Errorf("%w: unsupported source kind %q", ErrTemplateLoad, src.Kind())
	}
	if err != nil {
		l.logger.Debug("template fetch failed", "kind", src.Kind(), "location", src.Location(), "error", err)
		return nil, fmt.Errorf("%w: %s %q: %w", ErrTemplateLoad, src.Kind(), src.Location(), err)
	}
	return parse(src, string(data))
}

func (l *Loader) selectFrom(ctx context.Context, s selectorSource) ([]*html.Node, error) {
	nodes, err := l.load(ctx, s.document)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if match := dom.Find(n, s.selector); match != nil {
			children := dom.Children(dom.Clone(match))
			for _, child := range children {
				dom.Detach(child)
			}
			return children, nil
		}
	}
	return nil, fmt.Errorf("%w: selector %q matched nothing in %s", ErrTemplateLoad, s.selector, s.document.Location())
}

func parse(src Source, markup string) ([]*html.Node, error) {
	nodes, err := dom.Parse(markup)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTemplateLoad, src.Kind(), err)
	}
	return nodes, nil
}

func cacheKey(src Source) uint64 {
	if a, ok := src.(aliased); ok && a.alias != "" {
		return xxhash.Sum64String("alias:" + a.alias)
	}
	return xxhash.Sum64String(string(src.Kind()) + ":" + src.Location())
}

func cloneAll(nodes []*html.Node) []*html.Node {
	out := make([]*html.Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, dom.Clone(n))
	}
	return out
}

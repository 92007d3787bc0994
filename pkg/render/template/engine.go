package template

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
)

// ErrTemplateNotFound is returned when a named template cannot be loaded.
var ErrTemplateNotFound = errors.New("template: not found")

// Option configures an Engine.
type Option func(*config)

type config struct {
	baseDir    string
	templates  fs.FS
	extension  string
	filters    map[string]FilterFunc
	globalData map[string]any
}

// FilterFunc is a plain Go filter: it receives the piped value and the
// optional parameter.
type FilterFunc func(input any, param any) (any, error)

// WithBaseDir loads named templates from a directory on disk.
func WithBaseDir(dir string) Option {
	return func(cfg *config) {
		cfg.baseDir = strings.TrimSpace(dir)
	}
}

// WithFS loads named templates from files.
func WithFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.templates = files
	}
}

// WithExtension overrides the ".html" extension appended to bare names.
func WithExtension(ext string) Option {
	return func(cfg *config) {
		trimmed := strings.TrimSpace(ext)
		if trimmed == "" {
			return
		}
		if !strings.HasPrefix(trimmed, ".") {
			trimmed = "." + trimmed
		}
		cfg.extension = trimmed
	}
}

// WithFilters registers filters when the engine is built.
func WithFilters(filters map[string]FilterFunc) Option {
	return func(cfg *config) {
		if cfg.filters == nil {
			cfg.filters = make(map[string]FilterFunc, len(filters))
		}
		for name, fn := range filters {
			cfg.filters[strings.TrimSpace(name)] = fn
		}
	}
}

// WithGlobalData seeds values visible to every template.
func WithGlobalData(data map[string]any) Option {
	return func(cfg *config) {
		if cfg.globalData == nil {
			cfg.globalData = make(map[string]any, len(data))
		}
		for key, value := range data {
			cfg.globalData[strings.TrimSpace(key)] = value
		}
	}
}

// Engine is a pongo2 template set with a compiled template cache.
type Engine struct {
	mu sync.RWMutex

	set       *pongo2.TemplateSet
	templates map[string]*pongo2.Template
	inline    map[string]*pongo2.Template
	ext       string
}

// New builds an engine. Without a base dir or fs.FS only inline sources
// render.
func New(options ...Option) (*Engine, error) {
	cfg := &config{extension: ".html"}
	for _, opt := range options {
		if opt != nil {
			opt(cfg)
		}
	}

	var loaders []pongo2.TemplateLoader
	if cfg.baseDir != "" {
		local, err := pongo2.NewLocalFileSystemLoader(cfg.baseDir)
		if err != nil {
			return nil, fmt.Errorf("template: local loader: %w", err)
		}
		loaders = append(loaders, local)
	}
	if cfg.templates != nil {
		loaders = append(loaders, pongo2.NewFSLoader(cfg.templates))
	}

	e := &Engine{
		set:       pongo2.NewSet("domtpl", loaders...),
		templates: make(map[string]*pongo2.Template),
		inline:    make(map[string]*pongo2.Template),
		ext:       cfg.extension,
	}
	registerDefaultFilters()
	e.GlobalContext(cfg.globalData)
	for name, fn := range cfg.filters {
		if err := RegisterFilter(name, fn); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// RenderTemplate executes the named template.
func (e *Engine) RenderTemplate(name string, data map[string]any, out ...io.Writer) (string, error) {
	file := e.file(name)
	tmpl, err := e.named(file)
	if err != nil {
		return "", err
	}
	return e.execute(tmpl, file, data, out)
}

// Lookup compiles the named template without executing it. It returns
// ErrTemplateNotFound when the template cannot be loaded.
func (e *Engine) Lookup(name string) error {
	_, err := e.named(e.file(name))
	return err
}

func (e *Engine) file(name string) string {
	if path.Ext(name) == "" {
		return name + e.ext
	}
	return name
}

// RenderString executes an inline template source. Compiled sources are
// cached by their text.
func (e *Engine) RenderString(source string, data map[string]any, out ...io.Writer) (string, error) {
	e.mu.RLock()
	tmpl, ok := e.inline[source]
	e.mu.RUnlock()
	if !ok {
		compiled, err := e.set.FromString(source)
		if err != nil {
			return "", fmt.Errorf("template: parse inline source: %w", err)
		}
		e.mu.Lock()
		e.inline[source] = compiled
		e.mu.Unlock()
		tmpl = compiled
	}
	return e.execute(tmpl, "inline", data, out)
}

// GlobalContext merges data into the values every template sees.
func (e *Engine) GlobalContext(data map[string]any) {
	if len(data) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.set.Globals == nil {
		e.set.Globals = make(pongo2.Context)
	}
	e.set.Globals.Update(toContext(data))
}

// RegisterFilter adds a process-wide pongo2 filter. Registering an existing
// name is an error.
func RegisterFilter(name string, fn FilterFunc) error {
	name = strings.TrimSpace(name)
	if name == "" || fn == nil {
		return errors.New("template: filter name and function required")
	}
	if pongo2.FilterExists(name) {
		return fmt.Errorf("template: filter %q already exists", name)
	}
	return pongo2.RegisterFilter(name, func(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		var p any
		if param != nil {
			p = param.Interface()
		}
		result, err := fn(in.Interface(), p)
		if err != nil {
			return nil, &pongo2.Error{Sender: "filter:" + name, OrigError: err}
		}
		return pongo2.AsValue(result), nil
	})
}

func (e *Engine) execute(tmpl *pongo2.Template, label string, data map[string]any, out []io.Writer) (string, error) {
	var buf bytes.Buffer
	e.mu.RLock()
	err := tmpl.ExecuteWriter(toContext(data), &buf)
	e.mu.RUnlock()
	if err != nil {
		return "", fmt.Errorf("template: execute %q: %w", label, err)
	}
	rendered := buf.String()
	for _, w := range out {
		if _, err := io.WriteString(w, rendered); err != nil {
			return "", err
		}
	}
	return rendered, nil
}

func (e *Engine) named(file string) (*pongo2.Template, error) {
	e.mu.RLock()
	if tmpl, ok := e.templates[file]; ok {
		e.mu.RUnlock()
		return tmpl, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if tmpl, ok := e.templates[file]; ok {
		return tmpl, nil
	}
	tmpl, err := e.set.FromFile(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrTemplateNotFound, file, err)
	}
	e.templates[file] = tmpl
	return tmpl, nil
}

func toContext(data map[string]any) pongo2.Context {
	out := make(pongo2.Context, len(data))
	for key, value := range data {
		if key = strings.TrimSpace(key); key != "" {
			out[key] = value
		}
	}
	return out
}

func registerDefaultFilters() {
	if !pongo2.FilterExists("trim") {
		_ = pongo2.RegisterFilter("trim", filterTrim)
	}
}

func filterTrim(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	if in.Len() <= 0 {
		return pongo2.AsValue(""), nil
	}
	return pongo2.AsValue(strings.TrimSpace(in.String())), nil
}

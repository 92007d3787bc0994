package loader

import (
	"path/filepath"

	"golang.org/x/net/html"
)

// Source identifies where a template originated.
type Source interface {
	Kind() Kind
	Location() string
}

// Kind enumerates the loader modalities.
type Kind string

const (
	KindMarkup   Kind = "markup"
	KindURL      Kind = "url"
	KindFile     Kind = "file"
	KindFS       Kind = "fs"
	KindNodes    Kind = "nodes"
	KindSelector Kind = "selector"
)

type markupSource struct{ markup string }

func (s markupSource) Kind() Kind { return KindMarkup }
func (s markupSource) Location() string { return s.markup }

// FromMarkup wraps an inline markup string.
func FromMarkup(markup string) Source { return markupSource{markup: markup} }

type urlSource struct{ raw string }

func (s urlSource) Kind() Kind { return KindURL }
func (s urlSource) Location() string { return s.raw }

// FromURL references an HTTP(S) endpoint. The URL is validated on load.
func FromURL(raw string) Source { return urlSource{raw: raw} }

type fileSource struct{ path string }

func (s fileSource) Kind() Kind { return KindFile }
func (s fileSource) Location() string { return s.path }

// FromFile references a file on disk.
func FromFile(path string) Source { return fileSource{path: filepath.Clean(path)} }

type fsSource struct{ name string }

func (s fsSource) Kind() Kind { return KindFS }
func (s fsSource) Location() string { return s.name }

// FromFS references an entry of the loader's fs.FS.
func FromFS(name string) Source { return fsSource{name: name} }

type nodesSource struct{ nodes []*html.Node }

func (s nodesSource) Kind() Kind { return KindNodes }
func (s nodesSource) Location() string { return "" }

// FromNodes wraps an already parsed fragment. It is never cached.
func FromNodes(nodes ...*html.Node) Source { return nodesSource{nodes: nodes} }

type selectorSource struct {
	document Source
	selector string
}

func (s selectorSource) Kind() Kind { return KindSelector }
func (s selectorSource) Location() string {
	return string(s.document.Kind()) + ":" + s.document.Location() + "#" + s.selector
}

// FromSelector picks the first element matching selector inside document
// and uses its children as the template.
func FromSelector(document Source, selector string) Source {
	return selectorSource{document: document, selector: selector}
}

type aliased struct {
	Source
	alias string
}

// WithAlias names src for caching; two sources sharing an alias share a
// cache entry.
func WithAlias(src Source, alias string) Source {
	return aliased{Source: src, alias: alias}
}

// Package sanitize cleans markup injected through the html text mode.
// Elements on the denylist are dropped together with their content, inline
// event handlers and script URLs are removed, and every other element and
// attribute is kept as written.
package sanitize

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/goliatone/go-domtpl/pkg/dom"
)

// Denylist names the elements removed with their content.
var Denylist = []string{
	"script", "style", "iframe", "frame", "frameset", "object", "embed",
	"applet", "base", "link", "meta", "noscript", "template",
}

// urlAttrs may carry a javascript: URL.
var urlAttrs = map[string]bool{
	"href": true, "src": true, "action": true, "formaction": true,
	"xlink:href": true, "poster": true, "background": true,
}

// Sanitizer prunes denylisted elements from parsed markup.
type Sanitizer struct {
	deny map[string]struct{}
}

// New builds a sanitizer for Denylist plus any extra tag names.
func New(extra ...string) *Sanitizer {
	s := &Sanitizer{deny: make(map[string]struct{}, len(Denylist)+len(extra))}
	for _, tag := range append(append([]string(nil), Denylist...), extra...) {
		s.deny[strings.ToLower(strings.TrimSpace(tag))] = struct{}{}
	}
	return s
}

var (
	defaultOnce sync.Once
	defaultSan  *Sanitizer
	strictOnce  sync.Once
	strict      *bluemonday.Policy
)

// Default returns a shared sanitizer.
func Default() *Sanitizer {
	defaultOnce.Do(func() {
		defaultSan = New()
	})
	return defaultSan
}

// Clean removes denylisted nodes from the list and from every subtree, and
// strips unsafe attributes in place. The returned slice holds the kept
// top-level nodes.
func (s *Sanitizer) Clean(nodes []*html.Node) []*html.Node {
	out := nodes[:0:0]
	for _, n := range nodes {
		if s.denied(n) {
			dom.Detach(n)
			continue
		}
		s.clean(n)
		out = append(out, n)
	}
	return out
}

func (s *Sanitizer) clean(n *html.Node) {
	if n.Type == html.ElementNode {
		n.Attr = safeAttrs(n.Attr)
	}
	for child := n.FirstChild; child != nil; {
		next := child.NextSibling
		if s.denied(child) {
			n.RemoveChild(child)
		} else {
			s.clean(child)
		}
		child = next
	}
}

func (s *Sanitizer) denied(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	_, ok := s.deny[strings.ToLower(n.Data)]
	return ok
}

func safeAttrs(attrs []html.Attribute) []html.Attribute {
	out := attrs[:0]
	for _, a := range attrs {
		key := strings.ToLower(a.Key)
		if strings.HasPrefix(key, "on") {
			continue
		}
		if urlAttrs[key] && scriptURL(a.Val) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func scriptURL(value string) bool {
	v := strings.Map(func(r rune) rune {
		if r <= ' ' {
			return -1
		}
		return r
	}, strings.ToLower(value))
	return strings.HasPrefix(v, "javascript:") || strings.HasPrefix(v, "vbscript:")
}

// Sanitize parses markup in a body context, cleans it and renders it back.
func (s *Sanitizer) Sanitize(markup string) string {
	if strings.TrimSpace(markup) == "" {
		return ""
	}
	nodes, err := dom.ParseIn(markup, "body")
	if err != nil {
		return StripTags(markup)
	}
	out, err := dom.Render(s.Clean(nodes)...)
	if err != nil {
		return StripTags(markup)
	}
	return out
}

// StripTags removes every tag from text and returns the plain text content.
// It guards untrusted values that should never carry markup, such as
// request query parameters.
func StripTags(text string) string {
	strictOnce.Do(func() {
		strict = bluemonday.StrictPolicy()
	})
	return html.UnescapeString(strict.Sanitize(text))
}

package dom

import (
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Selector is a compiled CSS selector list.
type Selector struct {
	raw   string
	group cascadia.SelectorGroup
}

var compiled sync.Map // string -> Selector

// CompileSelector parses a comma separated selector list. Invalid syntax
// yields a selector that matches nothing.
func CompileSelector(raw string) Selector {
	if cached, ok := compiled.Load(raw); ok {
		return cached.(Selector)
	}
	sel := Selector{raw: raw}
	if group, err := cascadia.ParseGroup(raw); err == nil {
		sel.group = group
	}
	compiled.Store(raw, sel)
	return sel
}

func (s Selector) String() string { return s.raw }

// Valid reports whether the selector parsed.
func (s Selector) Valid() bool { return s.group != nil }

// Match reports whether the element matches any selector in the list.
func (s Selector) Match(n *html.Node) bool {
	if !IsElement(n) || s.group == nil {
		return false
	}
	return s.group.Match(n)
}

// Match is a convenience wrapper around CompileSelector(sel).Match(n).
func Match(n *html.Node, sel string) bool {
	return CompileSelector(sel).Match(n)
}

// Closest walks from n (inclusive) up through its ancestors and returns the
// first element matching sel.
func Closest(n *html.Node, sel string) *html.Node {
	s := CompileSelector(sel)
	for cur := n; cur != nil; cur = cur.Parent {
		if s.Match(cur) {
			return cur
		}
	}
	return nil
}

// Find returns the first descendant of root (inclusive) matching sel in
// document order.
func Find(root *html.Node, sel string) *html.Node {
	s := CompileSelector(sel)
	if root == nil || s.group == nil {
		return nil
	}
	if s.Match(root) {
		return root
	}
	return cascadia.Query(root, s.group)
}

// FindAll returns every descendant of root (inclusive) matching sel.
func FindAll(root *html.Node, sel string) []*html.Node {
	s := CompileSelector(sel)
	if root == nil || s.group == nil {
		return nil
	}
	var out []*html.Node
	if s.Match(root) {
		out = append(out, root)
	}
	return append(out, cascadia.QueryAll(root, s.group)...)
}

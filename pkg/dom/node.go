package dom

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// FragmentTag names the compatibility wrapper element. When a render unit
// produces a single wrapper, the renderer splices its children in its place.
const FragmentTag = "tpl-fragment"

// Parse parses markup as a body-level fragment and returns the top-level nodes
// detached from any parent.
func Parse(markup string) ([]*html.Node, error) {
	return ParseIn(markup, "body")
}

// ParseIn parses markup using the supplied element tag as parsing context, so
// fragments such as table rows survive the HTML insertion rules.
func ParseIn(markup, contextTag string) ([]*html.Node, error) {
	tag := strings.ToLower(strings.TrimSpace(contextTag))
	if tag == "" {
		tag = "body"
	}
	ctxNode := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctxNode)
	if err != nil {
		return nil, fmt.Errorf("dom: parse fragment: %w", err)
	}
	for _, n := range nodes {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
	return nodes, nil
}

// Render serialises nodes in order.
func Render(nodes ...*html.Node) (string, error) {
	var buf bytes.Buffer
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if err := html.Render(&buf, n); err != nil {
			return "", fmt.Errorf("dom: render: %w", err)
		}
	}
	return buf.String(), nil
}

// InnerHTML serialises the children of n.
func InnerHTML(n *html.Node) (string, error) {
	if n == nil {
		return "", nil
	}
	return Render(Children(n)...)
}

// NewElement creates a detached element.
func NewElement(tag string) *html.Node {
	tag = strings.ToLower(strings.TrimSpace(tag))
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

// NewText creates a detached text node.
func NewText(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}

// NewFragment creates an empty compatibility wrapper.
func NewFragment() *html.Node {
	return NewElement(FragmentTag)
}

// IsFragment reports whether n is the compatibility wrapper.
func IsFragment(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && n.Data == FragmentTag
}

// IsElement reports whether n is an element node.
func IsElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

// IsText reports whether n is a text node.
func IsText(n *html.Node) bool {
	return n != nil && n.Type == html.TextNode
}

// Tag returns the lower-case tag name of an element, or "" for other nodes.
func Tag(n *html.Node) string {
	if !IsElement(n) {
		return ""
	}
	return strings.ToLower(n.Data)
}

// ShallowClone copies the node identity (type, tag, namespace) and its
// attributes but no children.
func ShallowClone(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	out := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		out.Attr = make([]html.Attribute, len(n.Attr))
		copy(out.Attr, n.Attr)
	}
	return out
}

// Clone deep-copies n and its descendants.
func Clone(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	out := ShallowClone(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out.AppendChild(Clone(c))
	}
	return out
}

// EmptyLike creates an element with the same tag and namespace as n but no
// attributes and no children.
func EmptyLike(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	return &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
}

// Children returns a snapshot of the direct children of n.
func Children(n *html.Node) []*html.Node {
	if n == nil {
		return nil
	}
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// ElementChildren returns the direct element children of n.
func ElementChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for _, c := range Children(n) {
		if IsElement(c) {
			out = append(out, c)
		}
	}
	return out
}

// HasChildren reports whether n has at least one child.
func HasChildren(n *html.Node) bool {
	return n != nil && n.FirstChild != nil
}

// TextContent concatenates the text of n and its descendants.
func TextContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(TextContent(c))
	}
	return sb.String()
}

// Detach removes n from its parent, if any.
func Detach(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// Clear removes every child of n.
func Clear(n *html.Node) {
	if n == nil {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

// Append adds nodes to the end of parent, detaching them first.
func Append(parent *html.Node, nodes ...*html.Node) {
	if parent == nil {
		return
	}
	for _, n := range nodes {
		if n == nil {
			continue
		}
		Detach(n)
		parent.AppendChild(n)
	}
}

// Prepend inserts nodes before the first child of parent, preserving order.
func Prepend(parent *html.Node, nodes ...*html.Node) {
	if parent == nil {
		return
	}
	if parent.FirstChild == nil {
		Append(parent, nodes...)
		return
	}
	InsertBefore(parent.FirstChild, nodes...)
}

// InsertBefore inserts nodes before ref, preserving order.
func InsertBefore(ref *html.Node, nodes ...*html.Node) {
	if ref == nil || ref.Parent == nil {
		return
	}
	parent := ref.Parent
	for _, n := range nodes {
		if n == nil || n == ref {
			continue
		}
		Detach(n)
		parent.InsertBefore(n, ref)
	}
}

// InsertAfter inserts nodes after ref, preserving order.
func InsertAfter(ref *html.Node, nodes ...*html.Node) {
	if ref == nil || ref.Parent == nil {
		return
	}
	parent := ref.Parent
	anchor := ref.NextSibling
	for _, n := range nodes {
		if n == nil || n == ref {
			continue
		}
		Detach(n)
		parent.InsertBefore(n, anchor)
	}
}

// Replace swaps old for nodes. An empty nodes list simply removes old.
func Replace(old *html.Node, nodes ...*html.Node) {
	if old == nil || old.Parent == nil {
		return
	}
	InsertBefore(old, nodes...)
	Detach(old)
}

// Flatten replaces compatibility wrappers with their children.
func Flatten(nodes ...*html.Node) []*html.Node {
	var out []*html.Node
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if IsFragment(n) {
			out = append(out, Flatten(Children(n)...)...)
			continue
		}
		out = append(out, n)
	}
	return out
}

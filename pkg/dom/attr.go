package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Attr returns the value of the named attribute.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

// AttrOr returns the attribute value or fallback when absent.
func AttrOr(n *html.Node, key, fallback string) string {
	if v, ok := Attr(n, key); ok {
		return v
	}
	return fallback
}

// HasAttr reports whether the attribute is present.
func HasAttr(n *html.Node, key string) bool {
	_, ok := Attr(n, key)
	return ok
}

// SetAttr sets or replaces an attribute.
func SetAttr(n *html.Node, key, value string) {
	if n == nil {
		return
	}
	for i, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: value})
}

// RemoveAttr deletes the attribute if present.
func RemoveAttr(n *html.Node, key string) {
	if n == nil {
		return
	}
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

// ToggleAttr removes the attribute when present, otherwise sets it to value.
// It reports whether the attribute is present afterwards.
func ToggleAttr(n *html.Node, key, value string) bool {
	if HasAttr(n, key) {
		RemoveAttr(n, key)
		return false
	}
	SetAttr(n, key, value)
	return true
}

// Classes returns the class list of n.
func Classes(n *html.Node) []string {
	v, _ := Attr(n, "class")
	return strings.Fields(v)
}

// HasClass reports whether n carries the class.
func HasClass(n *html.Node, class string) bool {
	for _, c := range Classes(n) {
		if c == class {
			return true
		}
	}
	return false
}

// ToggleClass flips a class and reports whether it is present afterwards.
func ToggleClass(n *html.Node, class string) bool {
	class = strings.TrimSpace(class)
	if n == nil || class == "" {
		return false
	}
	classes := Classes(n)
	out := classes[:0]
	found := false
	for _, c := range classes {
		if c == class {
			found = true
			continue
		}
		out = append(out, c)
	}
	if !found {
		out = append(out, class)
	}
	if len(out) == 0 {
		RemoveAttr(n, "class")
	} else {
		SetAttr(n, "class", strings.Join(out, " "))
	}
	return !found
}

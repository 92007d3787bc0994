// Package dom is the narrow markup layer the renderer consumes: fragment
// parsing and serialisation over golang.org/x/net/html, cloning, attribute
// access, node insertion, a small selector matcher and an event bus that
// directives attach handlers to.
package dom

// Package directives provides the standard directive set: initial unit
// creation, conditionals, data binding, choose/when/otherwise, foreach and
// repeat loops, attribute and event binding, text substitution, template
// inclusion and tree-finished callbacks.
//
// Every directive reads its configuration from attributes carrying the
// "tpl-" prefix on the source unit. Register wires the whole set into a
// render.Registry.
package directives

// Package template renders terminal units with pongo2. A Producer turns a
// named template or an inline source into markup using the unit's scope
// snapshot as template context, so data bound by outer directives is visible
// to the template.
package template

// Package component hosts a template on an element. The host's attributes
// configure where the template and data come from, when rendering happens and
// where the output goes; the Init/Ready/Destroy lifecycle and
// AttributeChanged mirror a custom element.
//
// Observed attributes:
//
//	template        reference, "#id"/".class" selector into the document, or empty for the host's own children
//	data            ${expression}, inline JSON/YAML, or a reference fetched through the loader
//	mode            auto (render on ready and on attribute change) or manual
//	condition       expression; a falsy result skips the render
//	listen-event    event that triggers a render
//	listen-element  selector of the element listened on (default: the host)
//	trigger-event   event dispatched from the host after each render
//	include-only    insert the template without running directives
//	shadow-mode     open or closed; output goes into a declarative shadow root
//
// Each render fires EventRendered on the output container.
package component

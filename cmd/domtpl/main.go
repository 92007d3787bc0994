// Command domtpl renders declarative markup templates from the command line.
//
// Usage:
//
//	# Render a template with JSON or YAML data to stdout
//	domtpl render --template page.html --data page.json
//
//	# Re-render whenever the template or data changes
//	domtpl render --template page.html --data page.json --output page.out.html --watch
//
//	# Prompt for values before rendering
//	domtpl render --template card.html --ask title --ask user.name
//
//	# Serve a template directory over HTTP with Prometheus metrics
//	domtpl serve --dir ./templates --listen :8080
package main

func main() {
	Execute()
}

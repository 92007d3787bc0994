package render

import (
	"log/slog"

	"golang.org/x/net/html"

	"github.com/goliatone/go-domtpl/pkg/dom"
	"github.com/goliatone/go-domtpl/pkg/scope"
)

// Options describe one top-level render request.
type Options struct {
	// Template holds the sibling units to render. Ignored when Producer is set.
	Template []*html.Node
	// Producer renders a terminal unit instead of running the pipeline.
	Producer Producer
	// Data seeds the root scope level.
	Data map[string]any
	// Container receives the output. A detached wrapper is used when nil.
	Container *html.Node
	// Target is the anchor inside Container for the placement mode.
	Target *html.Node
	// Mode defaults to ModeReplace.
	Mode Mode
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithRegistry sets the directive pipeline.
func WithRegistry(reg *Registry) Option {
	return func(r *Renderer) {
		if reg != nil {
			r.registry = reg
		}
	}
}

// WithTracker sets the leak detector. DefaultTracker is used otherwise.
func WithTracker(t *Tracker) Option {
	return func(r *Renderer) {
		if t != nil {
			r.tracker = t
		}
	}
}

// WithLogger sets the base logger; per-render attributes are added on top.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRecorder reports render telemetry to rec.
func WithRecorder(rec Recorder) Option {
	return func(r *Renderer) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithEventBus shares an event bus with the host.
func WithEventBus(bus *dom.EventBus) Option {
	return func(r *Renderer) {
		if bus != nil {
			r.events = bus
		}
	}
}

// WithApplicationScope replaces the shared application level.
func WithApplicationScope(node *scope.Node) Option {
	return func(r *Renderer) {
		if node != nil {
			r.application = node
		}
	}
}

// WithApplicationData merges values into the application level.
func WithApplicationData(values map[string]any) Option {
	return func(r *Renderer) {
		r.appData = append(r.appData, values)
	}
}

package directives

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/goliatone/go-domtpl/internal/ctxlog"
	"github.com/goliatone/go-domtpl/pkg/dom"
	"github.com/goliatone/go-domtpl/pkg/render"
	"github.com/goliatone/go-domtpl/pkg/scope/expr"
)

// Event handler kinds.
const (
	EventForward         = "forward"
	EventToggleClass     = "toggle-class"
	EventToggleAttribute = "toggle-attribute"
)

const (
	eventMarker = "@"
	gateMarker  = "?"
)

// Attribute copies literal attributes onto the produced element, resolving
// expressions, and binds @event attributes to the renderer's event bus.
type Attribute struct{}

func (Attribute) Name() string { return NameAttribute }
func (Attribute) Rank() int { return render.MinRank }
func (Attribute) Phase() render.Phase { return render.PhaseContent }

// Execute implements render.Directive.
func (Attribute) Execute(ctx context.Context, rc *render.Context) error {
	tpl, content := rc.Template(), rc.Content()
	if !dom.IsElement(tpl) || !dom.IsElement(content) {
		return nil
	}
	node := rc.Scope()

	var failures []string
	for _, attr := range tpl.Attr {
		name := attr.Key
		if attr.Namespace != "" || strings.HasPrefix(strings.ToLower(name), Prefix) {
			continue
		}
		gated := strings.HasPrefix(name, gateMarker)
		name = strings.TrimPrefix(name, gateMarker)

		if strings.HasPrefix(name, eventMarker) {
			if err := bindEvent(ctx, rc, content, strings.TrimPrefix(name, eventMarker), attr.Val, gated); err != nil {
				failures = append(failures, err.Error())
			}
			continue
		}

		if gated {
			if condition(ctx, node, attr.Val) {
				dom.SetAttr(content, name, "")
			} else {
				dom.RemoveAttr(content, name)
			}
			continue
		}

		value := node.Resolve(ctx, attr.Val)
		switch v := value.(type) {
		case nil:
			dom.RemoveAttr(content, name)
		case bool:
			if v {
				dom.SetAttr(content, name, "")
			} else {
				dom.RemoveAttr(content, name)
			}
		default:
			dom.SetAttr(content, name, expr.ToString(v))
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("directives: event binding: %s", strings.Join(failures, "; "))
	}
	return nil
}

// handlerSpec is the structured form of an event handler.
type handlerSpec struct {
	kind      string
	event     string
	selector  string
	class     string
	attribute string
	value     string
	fn        func(*dom.Event)
}

func bindEvent(ctx context.Context, rc *render.Context, el *html.Node, binding, raw string, gated bool) error {
	eventName, kind, _ := strings.Cut(binding, ":")
	eventName = strings.TrimSpace(eventName)
	if eventName == "" {
		return fmt.Errorf("empty event name in %q", binding)
	}

	resolved := rc.Scope().Resolve(ctx, raw)
	if resolved == nil || resolved == false {
		if gated {
			return nil
		}
		return fmt.Errorf("%s: handler %q resolved to nothing", eventName, raw)
	}

	spec, err := handlerFrom(resolved, strings.TrimSpace(kind))
	if err != nil {
		return fmt.Errorf("%s: %w", eventName, err)
	}
	handler, err := spec.handler(ctx, rc.Renderer().Events())
	if err != nil {
		return fmt.Errorf("%s: %w", eventName, err)
	}
	rc.Renderer().Events().On(el, eventName, handler)
	return nil
}

func handlerFrom(value any, kind string) (handlerSpec, error) {
	spec := handlerSpec{kind: kind}
	switch v := value.(type) {
	case func(*dom.Event):
		spec.fn = v
	case dom.Handler:
		spec.fn = v
	case expr.Func:
		spec.fn = func(evt *dom.Event) { _, _ = v(evt) }
	case func(args ...any) (any, error):
		spec.fn = func(evt *dom.Event) { _, _ = v(evt) }
	case string:
		switch spec.kind {
		case "", EventForward:
			spec.event = v
		case EventToggleClass:
			spec.class = v
		case EventToggleAttribute:
			spec.attribute = v
		}
	case map[string]any:
		if k, ok := v["kind"].(string); ok && k != "" {
			spec.kind = k
		}
		spec.event = stringOf(v["event"])
		spec.selector = stringOf(v["selector"])
		spec.class = stringOf(v["class"])
		spec.attribute = stringOf(v["attribute"])
		spec.value = stringOf(v["value"])
	default:
		return spec, fmt.Errorf("unsupported handler type %T", value)
	}
	return spec, nil
}

func stringOf(v any) string {
	if v == nil {
		return ""
	}
	return expr.ToString(v)
}

func (s handlerSpec) handler(ctx context.Context, bus *dom.EventBus) (dom.Handler, error) {
	if s.fn != nil {
		return s.fn, nil
	}
	logger := ctxlog.FromContext(ctx)
	switch s.kind {
	case "", EventForward:
		if s.event == "" {
			return nil, fmt.Errorf("forward handler needs an event name")
		}
		return func(evt *dom.Event) {
			bus.Dispatch(evt.CurrentTarget, s.event, evt)
		}, nil
	case EventToggleClass:
		if s.class == "" {
			return nil, fmt.Errorf("toggle-class handler needs a class")
		}
		return func(evt *dom.Event) {
			if target := closest(evt.CurrentTarget, s.selector); target != nil {
				dom.ToggleClass(target, s.class)
				return
			}
			logger.Debug("toggle-class target not found", "selector", s.selector)
		}, nil
	case EventToggleAttribute:
		if s.attribute == "" {
			return nil, fmt.Errorf("toggle-attribute handler needs an attribute")
		}
		return func(evt *dom.Event) {
			if target := closest(evt.CurrentTarget, s.selector); target != nil {
				dom.ToggleAttr(target, s.attribute, s.value)
				return
			}
			logger.Debug("toggle-attribute target not found", "selector", s.selector)
		}, nil
	}
	return nil, fmt.Errorf("unknown handler kind %q", s.kind)
}

func closest(n *html.Node, selector string) *html.Node {
	if strings.TrimSpace(selector) == "" {
		return n
	}
	return dom.Closest(n, selector)
}

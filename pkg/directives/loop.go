package directives

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/goliatone/go-domtpl/pkg/dom"
	"github.com/goliatone/go-domtpl/pkg/render"
	"github.com/goliatone/go-domtpl/pkg/scope"
	"github.com/goliatone/go-domtpl/pkg/scope/expr"
)

// Default loop variable names.
const (
	DefaultLoopVar   = "item"
	DefaultStatusVar = "status"
)

// Foreach renders the unit's children once per iteration, in place of the
// unit itself.
type Foreach struct{}

func (Foreach) Name() string { return NameForeach }
func (Foreach) Rank() int { return render.MinRank + 2 }
func (Foreach) Phase() render.Phase { return render.PhaseTemplate }

// Execute implements render.Directive.
func (Foreach) Execute(ctx context.Context, rc *render.Context) error {
	if !dom.HasAttr(rc.Template(), AttrForeach) {
		return nil
	}
	children := rc.Children()
	return iterate(ctx, rc, AttrForeach, func(iteration *scope.Node) []render.ContextOption {
		return []render.ContextOption{
			render.WithScope(iteration),
			render.WithChildren(children),
		}
	})
}

// Repeat renders the unit itself once per iteration. Iterations ignore the
// repeat directive so they do not loop again.
type Repeat struct{}

func (Repeat) Name() string { return NameRepeat }
func (Repeat) Rank() int { return render.MinRank + 3 }
func (Repeat) Phase() render.Phase { return render.PhaseTemplate }

// Execute implements render.Directive.
func (Repeat) Execute(ctx context.Context, rc *render.Context) error {
	tpl := rc.Template()
	if !dom.HasAttr(tpl, AttrRepeat) {
		return nil
	}
	ignored := append(rc.IgnoredDirectives(), NameRepeat)
	return iterate(ctx, rc, AttrRepeat, func(iteration *scope.Node) []render.ContextOption {
		return []render.ContextOption{
			render.WithScope(iteration),
			render.WithChildren([]*html.Node{tpl}),
			render.WithIgnoredDirectives(ignored...),
		}
	})
}

type loopSpec struct {
	varName    string
	statusName string
	source     any
	entries    []expr.Entry
	condition  string
}

// iterate suppresses the unit and appends one sub-render per entry to the
// unit's container. The break condition is checked before each iteration.
func iterate(ctx context.Context, rc *render.Context, attr string, options func(*scope.Node) []render.ContextOption) error {
	rc.SetContent(nil)
	rc.Stop()
	rc.Ignore()

	spec, err := readLoop(ctx, rc, attr)
	if err != nil {
		return err
	}

	count := len(spec.entries)
	for i, entry := range spec.entries {
		status := map[string]any{
			"index":  i,
			"number": i + 1,
			"count":  count,
			"source": spec.source,
			"key":    entry.Key,
			"first":  i == 0,
			"last":   i == count-1,
		}
		iteration := rc.Scope().Child("", map[string]any{
			spec.varName:    entry.Value,
			spec.statusName: status,
		})
		if spec.condition != "" && condition(ctx, iteration, spec.condition) {
			break
		}

		opts := append([]render.ContextOption{
			render.WithTemplate(nil),
			render.WithContainer(rc.Container()),
			render.WithTarget(nil),
			render.WithMode(render.ModeAppend),
		}, options(iteration)...)
		sub, err := rc.Sub(opts...)
		if err != nil {
			return err
		}
		if _, err := rc.Renderer().RenderContext(ctx, sub); err != nil {
			return err
		}
	}
	return nil
}

func readLoop(ctx context.Context, rc *render.Context, attr string) (loopSpec, error) {
	tpl := rc.Template()
	node := rc.Scope()
	spec := loopSpec{
		varName:    strings.TrimSpace(dom.AttrOr(tpl, attr+qualifierVar, DefaultLoopVar)),
		statusName: strings.TrimSpace(dom.AttrOr(tpl, attr+qualifierStatus, DefaultStatusVar)),
		condition:  dom.AttrOr(tpl, attr+qualifierCondition, ""),
	}
	if spec.varName == "" {
		spec.varName = DefaultLoopVar
	}
	if spec.statusName == "" {
		spec.statusName = DefaultStatusVar
	}

	start, err := intQualifier(ctx, node, tpl, attr+qualifierStart, 0)
	if err != nil {
		return spec, err
	}
	step, err := intQualifier(ctx, node, tpl, attr+qualifierStep, 1)
	if err != nil {
		return spec, err
	}
	if step <= 0 {
		return spec, fmt.Errorf("directives: %s must be positive, got %d", attr+qualifierStep, step)
	}
	count, err := intQualifier(ctx, node, tpl, attr+qualifierCount, -1)
	if err != nil {
		return spec, err
	}

	raw := strings.TrimSpace(dom.AttrOr(tpl, attr, ""))
	if raw == "" {
		if count < 0 {
			return spec, fmt.Errorf("directives: %s needs a collection or a count", attr)
		}
		for i := 0; i < count; i++ {
			spec.entries = append(spec.entries, expr.Entry{Key: i, Value: start + i*step})
		}
		spec.source = count
		return spec, nil
	}

	if scope.HasExpression(raw) {
		spec.source = node.Resolve(ctx, raw)
	} else {
		spec.source, err = node.Eval(ctx, raw)
		if err != nil {
			return spec, fmt.Errorf("directives: %s: %w", attr, err)
		}
	}
	entries, ok := expr.Entries(spec.source)
	if !ok {
		return spec, fmt.Errorf("directives: %s must resolve to a collection, got %T", attr, spec.source)
	}
	if start < 0 {
		start = 0
	}
	for i := start; i < len(entries); i += step {
		if count >= 0 && len(spec.entries) >= count {
			break
		}
		spec.entries = append(spec.entries, entries[i])
	}
	return spec, nil
}

func intQualifier(ctx context.Context, node *scope.Node, tpl *html.Node, name string, fallback int) (int, error) {
	raw, ok := dom.Attr(tpl, name)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	value := node.Resolve(ctx, strings.TrimSpace(raw))
	if s, isString := value.(string); isString {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, fmt.Errorf("directives: %s: %w", name, err)
		}
		return n, nil
	}
	n, ok := expr.ToNumber(value)
	if !ok {
		return 0, fmt.Errorf("directives: %s must be a number, got %T", name, value)
	}
	return int(n), nil
}

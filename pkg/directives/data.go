package directives

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-domtpl/pkg/dom"
	"github.com/goliatone/go-domtpl/pkg/loader"
	"github.com/goliatone/go-domtpl/pkg/render"
	"github.com/goliatone/go-domtpl/pkg/scope"
)

// Data modes accepted by tpl-data-mode.
const (
	DataModeRemote = "remote"
	DataModeDirect = "direct"
	DataModeText   = "text"
)

// Data produces a value and binds it into the scope chain.
type Data struct {
	fetcher DataFetcher
}

func (*Data) Name() string { return NameData }
func (*Data) Rank() int { return 1000 }
func (*Data) Phase() render.Phase { return render.PhaseData }

// Execute implements render.Directive. A failure leaves the unit without
// content.
func (d *Data) Execute(ctx context.Context, rc *render.Context) error {
	tpl := rc.Template()
	raw, ok := dom.Attr(tpl, AttrData)
	if !ok {
		return nil
	}
	if err := d.bind(ctx, rc, raw); err != nil {
		rc.SetContent(nil)
		rc.Stop()
		rc.Ignore()
		return err
	}
	return nil
}

func (d *Data) bind(ctx context.Context, rc *render.Context, raw string) error {
	tpl := rc.Template()
	node := rc.Scope()

	value, err := d.produce(ctx, node, raw, strings.ToLower(strings.TrimSpace(dom.AttrOr(tpl, AttrDataMode, DataModeDirect))), dom.AttrOr(tpl, AttrDataOptions, ""))
	if err != nil {
		return err
	}

	if name := strings.TrimSpace(dom.AttrOr(tpl, AttrDataVar, "")); name != "" {
		return node.UpdateData(name, value, "")
	}

	values, isMap := value.(map[string]any)
	if target := strings.TrimSpace(dom.AttrOr(tpl, AttrDataScope, "")); target != "" {
		if !isMap {
			return fmt.Errorf("directives: data for scope %q must be an object, got %T", target, value)
		}
		return node.MergeContext(values, target)
	}

	if !isMap {
		return fmt.Errorf("directives: data without %s must be an object, got %T", AttrDataVar, value)
	}
	rc.SetScope(node.Child("", values))
	return nil
}

func (d *Data) produce(ctx context.Context, node *scope.Node, raw, mode, rawOptions string) (any, error) {
	switch mode {
	case "", DataModeDirect:
		if scope.HasExpression(raw) {
			return node.Resolve(ctx, raw), nil
		}
		return node.Eval(ctx, raw)
	case DataModeText:
		return node.ResolveText(ctx, raw), nil
	case DataModeRemote:
		if d.fetcher == nil {
			return nil, errors.New("directives: remote data requires a fetcher")
		}
		var opts loader.DataOptions
		if strings.TrimSpace(rawOptions) != "" {
			resolved, ok := node.Resolve(ctx, rawOptions).(map[string]any)
			if !ok {
				return nil, fmt.Errorf("directives: %s must resolve to an object", AttrDataOptions)
			}
			opts = loader.DataOptionsFrom(resolved)
		}
		return d.fetcher.FetchData(ctx, node.ResolveText(ctx, raw), opts)
	}
	return nil, fmt.Errorf("%w: data mode %q", render.ErrUnsupportedMode, mode)
}

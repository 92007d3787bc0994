package directives

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-domtpl/pkg/dom"
	"github.com/goliatone/go-domtpl/pkg/render"
)

// Include loads an external fragment and renders it into the unit's content.
type Include struct {
	templates TemplateLoader
}

func (*Include) Name() string { return NameInclude }
func (*Include) Rank() int { return render.MinRank }
func (*Include) Phase() render.Phase { return render.PhaseTemplate }

// Execute implements render.Directive. In replace mode the included fragment
// takes the place of the unit's own children.
func (d *Include) Execute(ctx context.Context, rc *render.Context) error {
	tpl := rc.Template()
	raw, ok := dom.Attr(tpl, AttrInclude)
	if !ok {
		return nil
	}
	if d.templates == nil {
		return errors.New("directives: include requires a template loader")
	}
	content := rc.Content()
	if content == nil {
		return nil
	}

	mode, err := render.ParseMode(dom.AttrOr(tpl, AttrIncludeMode, ""))
	if err != nil {
		return err
	}
	ref := strings.TrimSpace(rc.Scope().ResolveText(ctx, raw))
	nodes, err := d.templates.LoadURL(ctx, ref)
	if err != nil {
		return fmt.Errorf("directives: include %q: %w", ref, err)
	}

	if mode == render.ModeReplace {
		rc.SetChildren(nil)
	}
	sub, err := rc.Sub(
		render.WithTemplate(nil),
		render.WithChildren(nodes),
		render.WithContainer(content),
		render.WithTarget(nil),
		render.WithMode(mode),
	)
	if err != nil {
		return err
	}
	_, err = rc.Renderer().RenderContext(ctx, sub)
	return err
}

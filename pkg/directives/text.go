package directives

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/goliatone/go-domtpl/pkg/dom"
	"github.com/goliatone/go-domtpl/pkg/render"
	"github.com/goliatone/go-domtpl/pkg/scope"
)

// ContentTypeHTML switches the text directive to markup injection.
const ContentTypeHTML = "html"

// Ellipsis is appended to trimmed text.
const Ellipsis = "..."

// Text resolves expressions inside text units.
type Text struct {
	sanitizer Sanitizer
}

func (*Text) Name() string { return NameText }
func (*Text) Rank() int { return render.MinRank + 1 }
func (*Text) Phase() render.Phase { return render.PhaseContent }

// Execute implements render.Directive.
func (d *Text) Execute(ctx context.Context, rc *render.Context) error {
	tpl := rc.Template()
	if !dom.IsText(tpl) || !dom.IsText(rc.Content()) {
		return nil
	}
	parent := tpl.Parent
	node := rc.Scope()

	if strings.EqualFold(strings.TrimSpace(dom.AttrOr(parent, AttrTextContentType, "")), ContentTypeHTML) {
		return d.injectHTML(ctx, rc, node, tpl.Data, dom.HasAttr(parent, AttrTextUnsecure), dom.Tag(parent))
	}

	text := tpl.Data
	if scope.HasExpression(text) {
		resolved := node.ResolveText(ctx, text)
		text = resolved
		if nodes, err := dom.ParseIn(resolved, dom.Tag(parent)); err == nil {
			var sb strings.Builder
			for _, n := range nodes {
				sb.WriteString(dom.TextContent(n))
			}
			text = sb.String()
		}
	}
	if limit, err := strconv.Atoi(strings.TrimSpace(dom.AttrOr(parent, AttrTextTrimLength, ""))); err == nil && limit > 0 {
		text = trim(text, limit)
	}
	if text != tpl.Data {
		rc.SetContent(dom.NewText(text))
	}
	return nil
}

func (d *Text) injectHTML(ctx context.Context, rc *render.Context, node *scope.Node, raw string, unsecure bool, parentTag string) error {
	markup := node.ResolveText(ctx, raw)
	nodes, err := dom.ParseIn(markup, parentTag)
	if err != nil {
		return err
	}
	if !unsecure && d.sanitizer != nil {
		nodes = d.sanitizer.Clean(nodes)
	}
	wrapper := dom.NewFragment()
	dom.Append(wrapper, nodes...)
	rc.SetContent(wrapper)
	return nil
}

func trim(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + Ellipsis
}

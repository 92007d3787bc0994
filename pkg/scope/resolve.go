package scope

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/goliatone/go-domtpl/internal/ctxlog"
	"github.com/goliatone/go-domtpl/pkg/scope/expr"
)

type sentinel struct{}

// noDefault marks "no default supplied" so a nil default stays distinguishable.
var noDefault any = &sentinel{}

var scopedStatement = regexp.MustCompile(`^\s*([A-Za-z_$][\w$-]*)::([\s\S]*)$`)

// token locates one ${...} occurrence inside a text.
type token struct {
	start, end int // text[start:end] is the full token, backslash included
	body       string
	escaped    bool
}

// HasExpression reports whether text contains at least one unescaped or
// escaped ${...} token.
func HasExpression(text string) bool {
	_, ok := nextToken(text, 0)
	return ok
}

func nextToken(text string, from int) (token, bool) {
	if from >= len(text) {
		return token{}, false
	}
	idx := strings.Index(text[from:], "${")
	if idx < 0 {
		return token{}, false
	}
	open := from + idx
	end, ok := closingBrace(text, open+2)
	if !ok {
		return token{}, false
	}
	tok := token{start: open, end: end + 1, body: text[open+2 : end]}
	if open > 0 && text[open-1] == '\\' {
		tok.start = open - 1
		tok.escaped = true
	}
	return tok, true
}

func closingBrace(text string, from int) (int, bool) {
	depth := 0
	var quote byte
	for i := from; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '{':
			depth++
		case '}':
			if depth == 0 {
				return i, true
			}
			depth--
		}
	}
	return 0, false
}

// Resolve evaluates text. A text that is exactly one ${...} token yields the
// raw value; text with embedded tokens yields the substituted string; plain
// text is returned unchanged. Failures return the original text.
func (n *Node) Resolve(ctx context.Context, text string) any {
	return n.resolve(ctx, text, noDefault)
}

// ResolveDefault is Resolve with a fallback used when evaluation fails, the
// named scope is missing, or the result is nil. A nil def is honoured.
func (n *Node) ResolveDefault(ctx context.Context, text string, def any) any {
	return n.resolve(ctx, text, def)
}

func (n *Node) resolve(ctx context.Context, text string, def any) any {
	trimmed := strings.TrimSpace(text)
	tok, ok := nextToken(trimmed, 0)
	if !ok {
		return text
	}
	if tok.start != 0 || tok.end != len(trimmed) {
		return n.ResolveText(ctx, text)
	}
	if tok.escaped {
		return trimmed[1:]
	}
	return n.evaluate(ctx, tok.body, def, text)
}

// ResolveText substitutes every ${...} token in text. Substituted values are
// never re-scanned, so values containing literal ${...} are kept as-is.
func (n *Node) ResolveText(ctx context.Context, text string) string {
	if !strings.Contains(text, "${") {
		return text
	}
	var sb strings.Builder
	pos := 0
	for {
		tok, ok := nextToken(text, pos)
		if !ok {
			sb.WriteString(text[pos:])
			break
		}
		sb.WriteString(text[pos:tok.start])
		if tok.escaped {
			sb.WriteString(text[tok.start+1 : tok.end])
		} else {
			raw := text[tok.start:tok.end]
			sb.WriteString(expr.ToString(n.evaluate(ctx, tok.body, noDefault, raw)))
		}
		pos = tok.end
	}
	return sb.String()
}

// Eval evaluates a bare statement (no ${} wrapper) and returns its error.
func (n *Node) Eval(ctx context.Context, statement string) (any, error) {
	target, stmt, found := n.target(statement)
	if !found {
		return nil, nil
	}
	return target.run(ctx, stmt)
}

func (n *Node) target(statement string) (*Node, string, bool) {
	if m := scopedStatement.FindStringSubmatch(statement); m != nil {
		target := n.Find(m[1])
		if target == nil {
			return nil, "", false
		}
		return target, m[2], true
	}
	return n, statement, true
}

func (n *Node) evaluate(ctx context.Context, statement string, def any, original string) any {
	hasDefault := def != noDefault
	fallback := func() any {
		if hasDefault {
			return def
		}
		return nil
	}

	target, stmt, found := n.target(statement)
	if !found {
		return fallback()
	}

	value, err := target.run(ctx, stmt)
	if err != nil {
		ctxlog.FromContextOr(ctx, target.shared.logger).Warn("expression evaluation failed",
			"error", &EvalError{Expression: statement, Scope: target.name, Err: err},
		)
		if hasDefault {
			return def
		}
		return original
	}
	if value == nil {
		return fallback()
	}
	return value
}

func (n *Node) run(ctx context.Context, stmt string) (any, error) {
	started := time.Now()
	timer := time.AfterFunc(n.shared.warnAfter, func() {
		ctxlog.FromContextOr(ctx, n.shared.logger).Warn("expression evaluation is slow",
			"expression", stmt,
			"scope", n.name,
			"elapsed", time.Since(started).String(),
		)
	})
	defer timer.Stop()
	return n.shared.compiler.Eval(stmt, n)
}

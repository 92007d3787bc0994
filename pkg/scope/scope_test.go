package scope

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func chain() (*Node, *Node, *Node) {
	app := NewRoot(NameApplication, map[string]any{"title": "app", "shared": 1})
	root := app.Child(NameRoot, map[string]any{"name": "Ada", "items": []any{"a", "b"}})
	node := root.Child(NameNode, map[string]any{"index": 2})
	return app, root, node
}

func TestLookupWalksAncestors(t *testing.T) {
	t.Parallel()

	_, _, node := chain()
	for key, want := range map[string]any{"title": "app", "name": "Ada", "index": 2} {
		got, ok := node.Lookup(key)
		if !ok || got != want {
			t.Fatalf("Lookup(%q) = %v, %v; want %v", key, got, ok, want)
		}
	}
	if _, ok := node.Lookup("missing"); ok {
		t.Fatalf("expected missing key to be absent")
	}
}

func TestLookupSeesShadowingAfterCache(t *testing.T) {
	t.Parallel()

	app, root, node := chain()
	if got, _ := node.Lookup("shared"); got != 1 {
		t.Fatalf("expected application value, got %v", got)
	}
	if err := root.UpdateData("shared", 2, ""); err != nil {
		t.Fatalf("UpdateData: %v", err)
	}
	if got, _ := node.Lookup("shared"); got != 2 {
		t.Fatalf("expected shadowing value 2, got %v", got)
	}
	if err := node.UpdateData("shared", 9, NameApplication); err != nil {
		t.Fatalf("UpdateData: %v", err)
	}
	if got, _ := app.GetData("shared", ""); got != 9 {
		t.Fatalf("expected application write, got %v", got)
	}
	if got, _ := node.Lookup("shared"); got != 2 {
		t.Fatalf("expected nearer definition to win, got %v", got)
	}
}

func TestUpdateDataUnknownScope(t *testing.T) {
	t.Parallel()

	_, _, node := chain()
	err := node.UpdateData("x", 1, "nope")
	if !errors.Is(err, ErrScopeNotFound) {
		t.Fatalf("expected ErrScopeNotFound, got %v", err)
	}
}

func TestMergeContextAndSnapshot(t *testing.T) {
	t.Parallel()

	_, root, node := chain()
	if err := node.MergeContext(map[string]any{"name": "Grace", "extra": true}, NameRoot); err != nil {
		t.Fatalf("MergeContext: %v", err)
	}
	if got, _ := root.GetData("name", ""); got != "Grace" {
		t.Fatalf("expected merged value on root, got %v", got)
	}
	want := map[string]any{
		"title":  "app",
		"shared": 1,
		"name":   "Grace",
		"items":  []any{"a", "b"},
		"extra":  true,
		"index":  2,
	}
	if diff := cmp.Diff(want, node.Snapshot()); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, _, node := chain()

	cases := []struct {
		name string
		text string
		want any
	}{
		{name: "plain text", text: "hello", want: "hello"},
		{name: "whole token keeps type", text: "${index}", want: 2},
		{name: "whole token slice", text: "${items}", want: []any{"a", "b"}},
		{name: "embedded token", text: "Hi ${name}!", want: "Hi Ada!"},
		{name: "unknown is nil", text: "${missing}", want: nil},
		{name: "escaped token", text: `\${name}`, want: "${name}"},
		{name: "syntax error keeps text", text: "${name +}", want: "${name +}"},
		{name: "scoped prefix", text: "${application::title}", want: "app"},
		{name: "unknown scoped prefix", text: "${other::title}", want: nil},
		{name: "braces in string", text: "${'}' + name}", want: "}Ada"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := node.Resolve(ctx, tc.text)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("Resolve(%q) mismatch (-want +got):\n%s", tc.text, diff)
			}
		})
	}
}

func TestResolveDefault(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, _, node := chain()

	if got := node.ResolveDefault(ctx, "${missing}", "fallback"); got != "fallback" {
		t.Fatalf("expected default for nil result, got %v", got)
	}
	if got := node.ResolveDefault(ctx, "${name +}", false); got != false {
		t.Fatalf("expected default for failed evaluation, got %v", got)
	}
	if got := node.ResolveDefault(ctx, "${name}", "fallback"); got != "Ada" {
		t.Fatalf("expected resolved value, got %v", got)
	}
	if got := node.ResolveDefault(ctx, "${name +}", nil); got != nil {
		t.Fatalf("expected explicit nil default, got %v", got)
	}
}

func TestResolveTextIsSinglePass(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	root := NewRoot(NameRoot, map[string]any{"a": "${b}", "b": "nope", "n": 3})

	if got := root.ResolveText(ctx, "x=${a}"); got != "x=${b}" {
		t.Fatalf("substituted values must not be re-scanned, got %q", got)
	}
	if got := root.ResolveText(ctx, "${n} of ${missing}"); got != "3 of null" {
		t.Fatalf("unexpected substitution %q", got)
	}
	if got := root.ResolveText(ctx, "no tokens"); got != "no tokens" {
		t.Fatalf("expected unchanged text, got %q", got)
	}
	if got := root.ResolveText(ctx, "open ${n"); got != "open ${n" {
		t.Fatalf("unterminated token should be literal, got %q", got)
	}
}

func TestResolveCallsScopeFunctions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	calls := 0
	root := NewRoot(NameRoot, map[string]any{
		"shout": func(args ...any) (any, error) {
			calls++
			return strings.ToUpper(args[0].(string)) + "!", nil
		},
	})
	if got := root.Resolve(ctx, "${shout('hi')}"); got != "HI!" {
		t.Fatalf("unexpected result %v", got)
	}
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
}

func TestEvalReportsErrors(t *testing.T) {
	t.Parallel()

	root := NewRoot(NameRoot, nil)
	if _, err := root.Eval(context.Background(), "1 +"); err == nil {
		t.Fatalf("expected syntax error")
	}
	got, err := root.Eval(context.Background(), "1 + 2")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if got != float64(3) {
		t.Fatalf("expected 3, got %v (%T)", got, got)
	}
}

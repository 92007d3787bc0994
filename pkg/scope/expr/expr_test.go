package expr

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCompilerEvaluatesOperators(t *testing.T) {
	t.Parallel()

	c := NewCompiler()
	env := MapEnv{
		"name":  "value",
		"count": 3,
		"flag":  false,
		"user": map[string]any{
			"email": "a@b.c",
			"tags":  []any{"x", "y"},
		},
	}

	tests := []struct {
		src  string
		want any
	}{
		{`name`, "value"},
		{`count + 2`, float64(5)},
		{`count * 2 - 1`, float64(5)},
		{`"n=" + count`, "n=3"},
		{`count > 2 && !flag`, true},
		{`flag || "fallback"`, "fallback"},
		{`missing ?? "dflt"`, "dflt"},
		{`count == "3"`, true},
		{`count === "3"`, false},
		{`user.email`, "a@b.c"},
		{`user["email"]`, "a@b.c"},
		{`user.tags[1]`, "y"},
		{`user.tags.length`, float64(2)},
		{`count >= 3 ? "big" : "small"`, "big"},
		{`upper(name)`, "VALUE"},
		{`join(user.tags, "-")`, "x-y"},
		{`contains(user.tags, "x")`, true},
		{`[1, "a"]`, []any{float64(1), "a"}},
		{`{kind: "toggle-class", value: name}`, map[string]any{"kind": "toggle-class", "value": "value"}},
		{`missing.deep.path`, nil},
		{`10 % 4`, float64(2)},
	}

	for _, tc := range tests {
		got, err := c.Eval(tc.src, env)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.src, err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("%s mismatch (-want +got):\n%s", tc.src, diff)
		}
	}
}

func TestCompilerCachesPrograms(t *testing.T) {
	t.Parallel()

	c := NewCompiler()
	first, err := c.Compile("a + 1")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	second, err := c.Compile("  a + 1 ")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if first != second {
		t.Fatalf("expected cached program to be reused")
	}
}

func TestCompilerRejectsInvalidSyntax(t *testing.T) {
	t.Parallel()

	c := NewCompiler()
	for _, src := range []string{"", "a +", "(a", `"open`, "a b", "a.b()", "#"} {
		if _, err := c.Compile(src); err == nil {
			t.Fatalf("expected compile error for %q", src)
		}
	}
}

func TestCompilerRestrictsCalls(t *testing.T) {
	t.Parallel()

	c := NewCompiler()
	if _, err := c.Eval(`exec("rm")`, MapEnv{}); err == nil {
		t.Fatalf("expected unknown function error")
	}

	called := false
	env := MapEnv{
		"notify": Func(func(args ...any) (any, error) {
			called = true
			return len(args), nil
		}),
		"plain": func() string { return "nope" },
	}
	got, err := c.Eval(`notify(1, 2)`, env)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !called || got != 2 {
		t.Fatalf("expected granted func to run, got %v", got)
	}
	if _, err := c.Eval(`plain()`, env); err == nil {
		t.Fatalf("expected plain go funcs to be rejected")
	}
}

func TestCompilerPropagatesFunctionErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	c := NewCompiler(WithFunction("fail", func(...any) (any, error) { return nil, boom }))
	_, err := c.Eval("fail()", MapEnv{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}

func TestToStringFormatsValues(t *testing.T) {
	t.Parallel()

	tests := map[string]any{
		"null":      nil,
		"3":         float64(3),
		"2.5":       2.5,
		"true":      true,
		`["a",1]`:   []any{"a", 1},
		`{"k":"v"}`: map[string]any{"k": "v"},
		"plain":     "plain",
		"42":        int64(42),
	}
	for want, in := range tests {
		if got := ToString(in); got != want {
			t.Fatalf("ToString(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestEntriesSortsMapKeys(t *testing.T) {
	t.Parallel()

	entries, ok := Entries(map[string]int{"b": 2, "a": 1})
	if !ok {
		t.Fatalf("expected map to be iterable")
	}
	want := []Entry{{Key: "a", Value: 1}, {Key: "b", Value: 2}}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

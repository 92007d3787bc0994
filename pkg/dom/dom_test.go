package dom

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"
)

func mustParse(t *testing.T, markup string) []*html.Node {
	t.Helper()
	nodes, err := Parse(markup)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return nodes
}

func mustRender(t *testing.T, nodes ...*html.Node) string {
	t.Helper()
	out, err := Render(nodes...)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	return out
}

func TestParseDetachesTopLevelNodes(t *testing.T) {
	t.Parallel()

	nodes := mustParse(t, `<p>a</p>text<!-- c --><span>b</span>`)
	if len(nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(nodes))
	}
	for _, n := range nodes {
		if n.Parent != nil {
			t.Fatalf("expected detached node, got parent %q", n.Parent.Data)
		}
	}
	if got := mustRender(t, nodes...); got != `<p>a</p>text<!-- c --><span>b</span>` {
		t.Fatalf("unexpected round trip %q", got)
	}
}

func TestParseInKeepsTableRows(t *testing.T) {
	t.Parallel()

	nodes, err := ParseIn(`<tr><td>1</td></tr>`, "tbody")
	if err != nil {
		t.Fatalf("ParseIn: %v", err)
	}
	if len(nodes) != 1 || Tag(nodes[0]) != "tr" {
		t.Fatalf("expected a tr node, got %q", mustRender(t, nodes...))
	}
}

func TestCloneHelpers(t *testing.T) {
	t.Parallel()

	src := mustParse(t, `<a href="/x" class="btn"><b>bold</b></a>`)[0]

	deep := Clone(src)
	SetAttr(deep, "href", "/y")
	if v, _ := Attr(src, "href"); v != "/x" {
		t.Fatalf("clone must not share attributes, source href=%q", v)
	}
	if got := mustRender(t, deep); got != `<a href="/y" class="btn"><b>bold</b></a>` {
		t.Fatalf("unexpected deep clone %q", got)
	}
	if got := mustRender(t, ShallowClone(src)); got != `<a href="/x" class="btn"></a>` {
		t.Fatalf("unexpected shallow clone %q", got)
	}
	if got := mustRender(t, EmptyLike(src)); got != `<a></a>` {
		t.Fatalf("unexpected empty clone %q", got)
	}
}

func TestInsertion(t *testing.T) {
	t.Parallel()

	parent := NewElement("div")
	b := NewElement("b")
	Append(parent, b)
	Prepend(parent, NewText("1"), NewText("2"))
	InsertAfter(b, NewElement("i"), NewElement("u"))
	if got := mustRender(t, parent); got != `<div>12<b></b><i></i><u></u></div>` {
		t.Fatalf("unexpected insertion result %q", got)
	}

	Replace(b, NewElement("em"), NewElement("s"))
	if b.Parent != nil {
		t.Fatalf("replaced node must be detached")
	}
	if got := mustRender(t, parent); got != `<div>12<em></em><s></s><i></i><u></u></div>` {
		t.Fatalf("unexpected replace result %q", got)
	}

	other := NewElement("p")
	Append(other, parent.FirstChild)
	if got := mustRender(t, parent); got != `<div>2<em></em><s></s><i></i><u></u></div>` {
		t.Fatalf("append must move the node, got %q", got)
	}

	Clear(parent)
	if HasChildren(parent) {
		t.Fatalf("expected empty parent after Clear")
	}
}

func TestFlatten(t *testing.T) {
	t.Parallel()

	outer := NewFragment()
	inner := NewFragment()
	Append(inner, NewElement("i"))
	Append(outer, NewElement("b"), inner)

	got := Flatten(NewText("x"), outer, nil, NewElement("u"))
	var tags []string
	for _, n := range got {
		if IsText(n) {
			tags = append(tags, "#"+n.Data)
			continue
		}
		tags = append(tags, Tag(n))
	}
	if diff := cmp.Diff([]string{"#x", "b", "i", "u"}, tags); diff != "" {
		t.Fatalf("flatten mismatch (-want +got):\n%s", diff)
	}
}

func TestAttributes(t *testing.T) {
	t.Parallel()

	n := NewElement("button")
	SetAttr(n, "class", "btn")
	if !ToggleClass(n, "active") || !HasClass(n, "active") {
		t.Fatalf("expected active class to be added")
	}
	if ToggleClass(n, "btn") {
		t.Fatalf("expected btn class to be removed")
	}
	if diff := cmp.Diff([]string{"active"}, Classes(n)); diff != "" {
		t.Fatalf("classes mismatch (-want +got):\n%s", diff)
	}
	ToggleClass(n, "active")
	if HasAttr(n, "class") {
		t.Fatalf("empty class list must drop the attribute")
	}

	if !ToggleAttr(n, "aria-pressed", "true") || AttrOr(n, "ARIA-PRESSED", "") != "true" {
		t.Fatalf("expected aria-pressed to be set")
	}
	if ToggleAttr(n, "aria-pressed", "true") || HasAttr(n, "aria-pressed") {
		t.Fatalf("expected aria-pressed to be removed")
	}
	if AttrOr(n, "missing", "fallback") != "fallback" {
		t.Fatalf("expected fallback for missing attribute")
	}
}

func TestSelectors(t *testing.T) {
	t.Parallel()

	root := NewElement("div")
	Append(root, mustParse(t, `<section id="main" class="panel open"><p data-role="lead">a</p><p class="x">b</p><input type="checkbox" checked></section>`)...)

	cases := []struct {
		sel  string
		want int
	}{
		{sel: "p", want: 2},
		{sel: "#main", want: 1},
		{sel: ".panel.open", want: 1},
		{sel: "section.closed", want: 0},
		{sel: "[data-role]", want: 1},
		{sel: `[data-role="lead"]`, want: 1},
		{sel: "[type=checkbox][checked]", want: 1},
		{sel: "p.x, #main", want: 2},
		{sel: "*", want: 5},
		{sel: "section p", want: 2},
		{sel: "section > p:first-child", want: 1},
		{sel: "p + p", want: 1},
		{sel: "div :not(p)", want: 2},
		{sel: "[broken", want: 0},
	}
	for _, tc := range cases {
		if got := len(FindAll(root, tc.sel)); got != tc.want {
			t.Fatalf("FindAll(%q) = %d, want %d", tc.sel, got, tc.want)
		}
	}

	lead := Find(root, "[data-role=lead]")
	if lead == nil {
		t.Fatalf("expected lead paragraph")
	}
	if got := Closest(lead, ".panel"); got == nil || Tag(got) != "section" {
		t.Fatalf("expected closest panel section, got %v", got)
	}
	if Closest(lead, "p") != lead {
		t.Fatalf("closest must include the starting node")
	}
	if Closest(lead, "table") != nil {
		t.Fatalf("expected no match")
	}
	if got := Closest(lead, "div > .panel"); got == nil || Tag(got) != "section" {
		t.Fatalf("expected combinator to match the panel, got %v", got)
	}
	if CompileSelector("[broken").Valid() {
		t.Fatalf("expected invalid selector")
	}
}

func TestEventBus(t *testing.T) {
	t.Parallel()

	root := NewElement("div")
	child := NewElement("span")
	Append(root, child)

	bus := NewEventBus()
	var trail []string
	bus.On(child, "ping", func(evt *Event) {
		trail = append(trail, "child")
	})
	offRoot := bus.On(root, "ping", func(evt *Event) {
		if evt.Target != child || evt.CurrentTarget != root {
			t.Errorf("unexpected targets %v %v", evt.Target, evt.CurrentTarget)
		}
		trail = append(trail, "root:"+evt.Detail.(string))
	})

	bus.Dispatch(child, "ping", "d")
	if diff := cmp.Diff([]string{"child", "root:d"}, trail); diff != "" {
		t.Fatalf("bubbling mismatch (-want +got):\n%s", diff)
	}

	trail = nil
	stop := bus.On(child, "ping", func(evt *Event) { evt.StopPropagation() })
	bus.Dispatch(child, "ping", "d")
	if diff := cmp.Diff([]string{"child"}, trail); diff != "" {
		t.Fatalf("stop propagation mismatch (-want +got):\n%s", diff)
	}
	stop()
	offRoot()
	if bus.Listeners(root, "ping") != 0 || bus.Listeners(child, "ping") != 1 {
		t.Fatalf("unexpected listener counts %d/%d", bus.Listeners(root, "ping"), bus.Listeners(child, "ping"))
	}

	bus.Forget(child)
	if bus.Listeners(child, "ping") != 0 {
		t.Fatalf("expected Forget to drop listeners")
	}
	var nilBus *EventBus
	if evt := nilBus.Dispatch(child, "ping", nil); evt.Name != "ping" {
		t.Fatalf("nil bus should still return the event")
	}
}

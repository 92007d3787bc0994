package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	domtpl "github.com/goliatone/go-domtpl"
	"github.com/goliatone/go-domtpl/pkg/loader"
	"github.com/goliatone/go-domtpl/pkg/render"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	file := filepath.Join(dir, name)
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return file
}

func newTestEngine(t *testing.T, dir string) *domtpl.Engine {
	t.Helper()
	engine, err := domtpl.New(domtpl.WithFileSystem(os.DirFS(dir)))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func TestReadData(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	yamlFile := writeFile(t, dir, "data.yaml", "title: Docs\ntags:\n  - a\n  - b\n")
	listFile := writeFile(t, dir, "list.json", `[1, 2]`)
	engine := newTestEngine(t, dir)

	tests := []struct {
		name    string
		ref     string
		want    map[string]any
		wantErr bool
	}{
		{name: "empty", ref: "", want: map[string]any{}},
		{name: "inline json", ref: `{"name": "Ada"}`, want: map[string]any{"name": "Ada"}},
		{name: "yaml file", ref: yamlFile, want: map[string]any{"title": "Docs", "tags": []any{"a", "b"}}},
		{name: "not an object", ref: listFile, wantErr: true},
		{name: "missing file", ref: filepath.Join(dir, "missing.json"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := readData(context.Background(), engine, tt.ref)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("read data: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRenderJobWritesStdout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "page.html", `<h1>${title}</h1><div tpl-include="part.html"></div>`)
	writeFile(t, dir, "part.html", `<p>${user.name}</p>`)
	engine := newTestEngine(t, dir)

	var stdout bytes.Buffer
	job := renderJob{
		engine: engine,
		source: loader.FromFS("page.html"),
		mode:   render.ModeReplace,
		data:   `{"title": "Docs"}`,
		stdout: &stdout,
		prompt: func(_ context.Context, data map[string]any) error {
			data["user"] = map[string]any{"name": "Ada"}
			return nil
		},
	}
	if err := job.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := "<h1>Docs</h1><div><p>Ada</p></div>\n"
	if got := stdout.String(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRenderJobPongoTemplate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "legacy.html", `<ul>{% for tag in tags %}<li>{{ tag }}</li>{% endfor %}</ul>`)
	engine := newTestEngine(t, dir)

	var stdout bytes.Buffer
	job := renderJob{
		engine: engine,
		source: loader.FromFS("legacy.html"),
		pongo:  "legacy.html",
		mode:   render.ModeReplace,
		data:   `{"tags": ["a", "b"]}`,
		stdout: &stdout,
	}
	if err := job.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if want := "<ul><li>a</li><li>b</li></ul>\n"; stdout.String() != want {
		t.Fatalf("expected %q, got %q", want, stdout.String())
	}
}

func TestRenderJobAppendsToOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "row.html", `<p>${n}</p>`)
	output := writeFile(t, dir, "out.html", `<p>first</p>`)
	engine := newTestEngine(t, dir)

	job := renderJob{
		engine: engine,
		source: loader.FromFS("row.html"),
		mode:   render.ModeAppend,
		data:   `{"n": 2}`,
		output: output,
	}
	if err := job.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	got, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if want := `<p>first</p><p>2</p>`; string(got) != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestRenderJobReportsMissingTemplate(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, t.TempDir())
	job := renderJob{engine: engine, source: loader.FromFS("nope.html"), stdout: &bytes.Buffer{}}
	if err := job.run(context.Background()); err == nil {
		t.Fatalf("expected error for missing template")
	}
}

func TestFileRef(t *testing.T) {
	t.Parallel()

	file := writeFile(t, t.TempDir(), "d.json", `{}`)
	cases := map[string]bool{
		"":                false,
		`{"a": 1}`:        false,
		file:              true,
		file + ".missing": false,
	}
	for ref, want := range cases {
		if got := fileRef(ref); got != want {
			t.Fatalf("fileRef(%q) = %v, want %v", ref, got, want)
		}
	}
}

func TestCommandsAreRegistered(t *testing.T) {
	t.Parallel()

	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"render", "serve", "version"} {
		found := false
		for _, name := range names {
			if name == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected %q command, have %s", want, strings.Join(names, ", "))
		}
	}
	if flag := renderCmd.Flags().Lookup("ask"); flag == nil {
		t.Fatalf("expected --ask flag on render")
	}
}

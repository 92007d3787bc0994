// Package testsupport holds fixture and golden-file helpers shared by the
// package tests.
package testsupport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

// Case is one golden fixture: a template, its optional data file and the
// expected output.
type Case struct {
	Name     string
	Template string
	Data     map[string]any
	Golden   string
}

// LoadCases discovers <name>.html templates in dir. Each may carry a
// <name>.yaml data file and must have a <name>.golden expectation, unless
// UPDATE_GOLDENS is set.
func LoadCases(t *testing.T, dir string) []Case {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(dir, "*.html"))
	if err != nil {
		t.Fatalf("glob fixtures: %v", err)
	}
	sort.Strings(matches)
	if len(matches) == 0 {
		t.Fatalf("no fixtures in %s", dir)
	}

	cases := make([]Case, 0, len(matches))
	for _, file := range matches {
		base := strings.TrimSuffix(file, filepath.Ext(file))
		c := Case{
			Name:     filepath.Base(base),
			Template: MustReadGoldenString(t, file),
			Data:     map[string]any{},
			Golden:   base + ".golden",
		}
		if _, err := os.Stat(base + ".yaml"); err == nil {
			c.Data = MustLoadData(t, base+".yaml")
		}
		cases = append(cases, c)
	}
	return cases
}

// MustLoadData reads a YAML or JSON data fixture.
func MustLoadData(t *testing.T, path string) map[string]any {
	t.Helper()

	data, err := LoadData(path)
	if err != nil {
		t.Fatalf("load data: %v", err)
	}
	return data
}

// LoadData reads a YAML or JSON object, returning an error for callers
// managing setup outside of *testing.T.
func LoadData(path string) (map[string]any, error) {
	if path == "" {
		return nil, errors.New("testsupport: data path is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("testsupport: read data: %w", err)
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("testsupport: decode data: %w", err)
	}
	return out, nil
}

// AssertGolden compares got with the golden file, ignoring surrounding
// whitespace. With UPDATE_GOLDENS set the file is rewritten instead.
func AssertGolden(t *testing.T, path, got string) {
	t.Helper()

	if WriteMaybeGolden(t, path, []byte(strings.TrimSpace(got)+"\n")) {
		return
	}
	want := strings.TrimSpace(MustReadGoldenString(t, path))
	if diff := cmp.Diff(want, strings.TrimSpace(got)); diff != "" {
		t.Fatalf("golden mismatch for %s (-want +got):\n%s", filepath.Base(path), diff)
	}
}

// MustReadGolden reads a golden file and returns its raw bytes.
func MustReadGolden(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read golden: %v", err)
	}
	return data
}

// MustReadGoldenString reads a golden file and returns its string content.
func MustReadGoldenString(t *testing.T, path string) string {
	t.Helper()
	return string(MustReadGolden(t, path))
}

// WriteMaybeGolden updates a golden file when UPDATE_GOLDENS is set. Returns
// true if the golden was written (test should exit early).
func WriteMaybeGolden(t *testing.T, path string, data []byte) bool {
	t.Helper()
	if os.Getenv("UPDATE_GOLDENS") == "" {
		return false
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir golden dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write golden: %v", err)
	}
	return true
}

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}

// CaptureTemplateOutput executes a render function that writes to an io.Writer,
// returning both the string result and the writer contents.
func CaptureTemplateOutput(t *testing.T, render func(io.Writer) (string, error)) (string, string) {
	t.Helper()

	var buf bytes.Buffer
	out, err := render(&buf)
	if err != nil {
		t.Fatalf("render template: %v", err)
	}

	return out, buf.String()
}

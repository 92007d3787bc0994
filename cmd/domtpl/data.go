package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	domtpl "github.com/goliatone/go-domtpl"
	"github.com/goliatone/go-domtpl/pkg/loader"
)

// readData resolves the --data flag: inline JSON/YAML, an http(s) URL fetched
// through the engine loader, or a local file. YAML decoding covers JSON.
func readData(ctx context.Context, engine *domtpl.Engine, ref string) (map[string]any, error) {
	ref = strings.TrimSpace(ref)
	var (
		value any
		err   error
	)
	switch {
	case ref == "":
		return map[string]any{}, nil
	case strings.HasPrefix(ref, "{"):
		err = yaml.Unmarshal([]byte(ref), &value)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		value, err = engine.Loader().FetchData(ctx, ref, loader.DataOptions{})
	default:
		var raw []byte
		raw, err = os.ReadFile(ref)
		if err == nil {
			err = yaml.Unmarshal(raw, &value)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("read data %q: %w", ref, err)
	}
	if value == nil {
		return map[string]any{}, nil
	}
	data, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("read data %q: expected an object, got %T", ref, value)
	}
	return data, nil
}

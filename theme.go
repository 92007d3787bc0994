package domtpl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-domtpl/pkg/config"
	theme "github.com/goliatone/go-theme"
)

// ThemeVar names the application scope entry holding the selected theme.
const ThemeVar = "theme"

// selectTheme resolves name/variant and flattens the selection into
// template-friendly values: name, variant, tokens, cssVars and cssVarsStyle.
// Variant tokens override the manifest's base tokens.
func selectTheme(selector theme.ThemeSelector, cfg config.ThemeConfig) (map[string]any, error) {
	selection, err := selector.Select(cfg.Name, cfg.Variant)
	if err != nil {
		return nil, fmt.Errorf("select theme %q/%q: %w", cfg.Name, cfg.Variant, err)
	}
	if selection == nil {
		return nil, fmt.Errorf("select theme %q/%q: empty selection", cfg.Name, cfg.Variant)
	}

	tokens := map[string]string{}
	if m := selection.Manifest; m != nil {
		for key, value := range m.Tokens {
			tokens[key] = value
		}
		if variant, ok := m.Variants[selection.Variant]; ok {
			for key, value := range variant.Tokens {
				tokens[key] = value
			}
		}
	}

	tokenValues := make(map[string]any, len(tokens))
	cssVars := make(map[string]any, len(tokens))
	keys := make([]string, 0, len(tokens))
	for key, value := range tokens {
		tokenValues[key] = value
		cssVars["--"+key] = value
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var style strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&style, "--%s: %s;", key, tokens[key])
	}

	return map[string]any{
		"name":         selection.Theme,
		"variant":      selection.Variant,
		"tokens":       tokenValues,
		"cssVars":      cssVars,
		"cssVarsStyle": style.String(),
	}, nil
}

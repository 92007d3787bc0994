// Package prompt asks for template data on the terminal.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// ErrAborted signals the user aborted input (e.g., Ctrl+C).
var ErrAborted = errors.New("prompt: aborted")

// InputConfig configures a text prompt.
type InputConfig struct {
	Message   string
	Default   string
	Help      string
	Validator func(string) error
}

// ConfirmConfig configures a yes/no prompt.
type ConfirmConfig struct {
	Message string
	Default bool
	Help    string
}

// Driver abstracts the terminal so callers can be tested without one.
type Driver interface {
	Input(ctx context.Context, cfg InputConfig) (string, error)
	Confirm(ctx context.Context, cfg ConfirmConfig) (bool, error)
}

// Survey returns a Driver backed by github.com/AlecAivazis/survey.
func Survey() Driver {
	return surveyDriver{}
}

type surveyDriver struct{}

func (surveyDriver) Input(ctx context.Context, cfg InputConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var out string
	prompt := &survey.Input{
		Message: cfg.Message,
		Help:    cfg.Help,
		Default: cfg.Default,
	}
	var opts []survey.AskOpt
	if cfg.Validator != nil {
		opts = append(opts, survey.WithValidator(func(ans any) error {
			s, _ := ans.(string)
			return cfg.Validator(s)
		}))
	}
	if err := survey.AskOne(prompt, &out, opts...); err != nil {
		return "", translate(err)
	}
	return out, nil
}

func (surveyDriver) Confirm(ctx context.Context, cfg ConfirmConfig) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var out bool
	prompt := &survey.Confirm{
		Message: cfg.Message,
		Help:    cfg.Help,
		Default: cfg.Default,
	}
	if err := survey.AskOne(prompt, &out); err != nil {
		return false, translate(err)
	}
	return out, nil
}

func translate(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return ErrAborted
	}
	return err
}

// Fill asks for each key and stores the answer in data. Keys are dotted paths
// ("user.name"); existing values become prompt defaults. A trailing "?" marks
// a boolean key asked with a confirm prompt. Numeric answers are stored as
// numbers.
func Fill(ctx context.Context, driver Driver, keys []string, data map[string]any) error {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	for _, raw := range sorted {
		key := strings.TrimSpace(raw)
		if key == "" {
			continue
		}
		if strings.HasSuffix(key, "?") {
			key = strings.TrimSuffix(key, "?")
			current, _ := lookup(data, key).(bool)
			answer, err := driver.Confirm(ctx, ConfirmConfig{Message: key, Default: current})
			if err != nil {
				return fmt.Errorf("prompt %q: %w", key, err)
			}
			if err := store(data, key, answer); err != nil {
				return err
			}
			continue
		}
		current := ""
		if v := lookup(data, key); v != nil {
			current = fmt.Sprint(v)
		}
		answer, err := driver.Input(ctx, InputConfig{Message: key, Default: current})
		if err != nil {
			return fmt.Errorf("prompt %q: %w", key, err)
		}
		if err := store(data, key, coerce(answer)); err != nil {
			return err
		}
	}
	return nil
}

func lookup(data map[string]any, key string) any {
	parts := strings.Split(key, ".")
	var cur any = data
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

func store(data map[string]any, key string, value any) error {
	parts := strings.Split(key, ".")
	m := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := m[part]
		if !ok || next == nil {
			child := map[string]any{}
			m[part] = child
			m = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("prompt %q: %q is not an object", key, part)
		}
		m = child
	}
	m[parts[len(parts)-1]] = value
	return nil
}

func coerce(answer string) any {
	if n, err := strconv.Atoi(answer); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(answer, 64); err == nil {
		return f
	}
	return answer
}

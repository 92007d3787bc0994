package expr

import (
	"encoding/json"
	"fmt"
	"strings"
)

func builtins() map[string]Func {
	return map[string]Func{
		"len":      fnLen,
		"upper":    stringFunc(strings.ToUpper),
		"lower":    stringFunc(strings.ToLower),
		"trim":     stringFunc(strings.TrimSpace),
		"string":   fnString,
		"number":   fnNumber,
		"json":     fnJSON,
		"join":     fnJoin,
		"contains": fnContains,
		"keys":     fnKeys,
		"default":  fnDefault,
		"format":   fnFormat,
	}
}

func arity(name string, args []any, want int) error {
	if len(args) < want {
		return fmt.Errorf("%s expects %d argument(s), got %d", name, want, len(args))
	}
	return nil
}

func stringFunc(fn func(string) string) Func {
	return func(args ...any) (any, error) {
		if len(args) == 0 || args[0] == nil {
			return "", nil
		}
		return fn(ToString(args[0])), nil
	}
}

func fnLen(args ...any) (any, error) {
	if err := arity("len", args, 1); err != nil {
		return nil, err
	}
	n, ok := Length(args[0])
	if !ok {
		return nil, fmt.Errorf("len: unsupported type %T", args[0])
	}
	return float64(n), nil
}

func fnString(args ...any) (any, error) {
	if err := arity("string", args, 1); err != nil {
		return nil, err
	}
	return ToString(args[0]), nil
}

func fnNumber(args ...any) (any, error) {
	if err := arity("number", args, 1); err != nil {
		return nil, err
	}
	n, ok := ToNumber(args[0])
	if !ok {
		return nil, fmt.Errorf("number: cannot convert %T", args[0])
	}
	return n, nil
}

func fnJSON(args ...any) (any, error) {
	if err := arity("json", args, 1); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(args[0])
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func fnJoin(args ...any) (any, error) {
	if err := arity("join", args, 1); err != nil {
		return nil, err
	}
	sep := ","
	if len(args) > 1 {
		sep = ToString(args[1])
	}
	entries, ok := Entries(args[0])
	if !ok {
		return ToString(args[0]), nil
	}
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = ToString(e.Value)
	}
	return strings.Join(parts, sep), nil
}

func fnContains(args ...any) (any, error) {
	if err := arity("contains", args, 2); err != nil {
		return nil, err
	}
	if s, ok := args[0].(string); ok {
		return strings.Contains(s, ToString(args[1])), nil
	}
	entries, ok := Entries(args[0])
	if !ok {
		return false, nil
	}
	for _, e := range entries {
		if LooseEqual(e.Value, args[1]) {
			return true, nil
		}
	}
	return false, nil
}

func fnKeys(args ...any) (any, error) {
	if err := arity("keys", args, 1); err != nil {
		return nil, err
	}
	entries, ok := Entries(args[0])
	if !ok {
		return []any{}, nil
	}
	out := make([]any, len(entries))
	for i, e := range entries {
		out[i] = e.Key
	}
	return out, nil
}

func fnDefault(args ...any) (any, error) {
	if err := arity("default", args, 2); err != nil {
		return nil, err
	}
	if Truthy(args[0]) {
		return args[0], nil
	}
	return args[1], nil
}

func fnFormat(args ...any) (any, error) {
	if err := arity("format", args, 1); err != nil {
		return nil, err
	}
	return fmt.Sprintf(ToString(args[0]), args[1:]...), nil
}

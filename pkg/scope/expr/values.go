package expr

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Truthy reports whether value counts as true in a boolean position. Empty
// strings, zero numbers, NaN, nil and empty collections are false.
func Truthy(value any) bool {
	if value == nil {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0 && !math.IsNaN(v)
	case int:
		return v != 0
	case int64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32:
		return rv.Float() != 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// ToNumber coerces numeric kinds, numeric strings and booleans to float64.
func ToNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, true
	case float64:
		return v, true
	case int:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		return f, err == nil
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func isNumeric(value any) bool {
	if value == nil {
		return false
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isString(value any) bool {
	_, ok := value.(string)
	return ok
}

// ToString renders a value for text output. nil becomes "null", whole floats
// drop their fraction and collections are JSON encoded.
func ToString(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return formatFloat(v)
	case float32:
		return formatFloat(float64(v))
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	}
	if isNumeric(value) {
		return fmt.Sprint(value)
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		raw, err := json.Marshal(value)
		if err == nil {
			return string(raw)
		}
	}
	return fmt.Sprint(value)
}

func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// LooseEqual compares with numeric and string coercion between scalars.
func LooseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isNumeric(a) || isNumeric(b) {
		x, okA := ToNumber(a)
		y, okB := ToNumber(b)
		if okA && okB {
			return x == y
		}
		return false
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return ab == bb
		}
		return ToString(a) == ToString(b)
	}
	if as, ok := a.(string); ok {
		return as == ToString(b)
	}
	if bs, ok := b.(string); ok {
		return bs == ToString(a)
	}
	return reflect.DeepEqual(a, b)
}

// StrictEqual compares without coercion; numeric kinds are still normalised.
func StrictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isNumeric(a) && isNumeric(b) {
		x, _ := ToNumber(a)
		y, _ := ToNumber(b)
		return x == y
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// Member reads a named property: map keys, exported struct fields (or their
// json tag name) and the pseudo property "length" on collections and strings.
func Member(obj any, name string) (any, bool) {
	if obj == nil {
		return nil, false
	}
	switch v := obj.(type) {
	case map[string]any:
		value, ok := v[name]
		if !ok && name == "length" {
			return float64(len(v)), true
		}
		return value, ok
	case map[string]string:
		value, ok := v[name]
		return value, ok
	case string:
		if name == "length" {
			return float64(len([]rune(v))), true
		}
		return nil, false
	}

	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		value := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !value.IsValid() {
			if name == "length" {
				return float64(rv.Len()), true
			}
			return nil, false
		}
		return value.Interface(), true
	case reflect.Slice, reflect.Array:
		if name == "length" {
			return float64(rv.Len()), true
		}
	case reflect.Struct:
		return structField(rv, name)
	}
	return nil, false
}

func structField(rv reflect.Value, name string) (any, bool) {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := strings.Split(field.Tag.Get("json"), ",")[0]
		if field.Name == name || (tag != "" && tag == name) {
			return rv.Field(i).Interface(), true
		}
	}
	return nil, false
}

// Index reads obj[idx]: numeric positions on slices, arrays and strings,
// otherwise the stringified key as a member name.
func Index(obj any, idx any) (any, bool) {
	if obj == nil {
		return nil, false
	}
	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.String:
		if pos, ok := ToNumber(idx); ok && isNumeric(idx) || isNumericString(idx) {
			i := int(pos)
			if rv.Kind() == reflect.String {
				runes := []rune(rv.String())
				if i < 0 || i >= len(runes) {
					return nil, false
				}
				return string(runes[i]), true
			}
			if i < 0 || i >= rv.Len() {
				return nil, false
			}
			return rv.Index(i).Interface(), true
		}
	}
	return Member(obj, ToString(idx))
}

func isNumericString(value any) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	_, err := strconv.Atoi(strings.TrimSpace(s))
	return err == nil
}

// Length returns the size of strings, collections and maps.
func Length(value any) (int, bool) {
	if value == nil {
		return 0, true
	}
	if s, ok := value.(string); ok {
		return len([]rune(s)), true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), true
	}
	return 0, false
}

// Entry is one key/value pair of an iterated collection.
type Entry struct {
	Key   any
	Value any
}

// Entries flattens slices, arrays and maps into ordered entries. Map keys are
// sorted by their string form so iteration is deterministic.
func Entries(value any) ([]Entry, bool) {
	if value == nil {
		return nil, true
	}
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, true
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]Entry, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = Entry{Key: i, Value: rv.Index(i).Interface()}
		}
		return out, true
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return ToString(keys[i].Interface()) < ToString(keys[j].Interface())
		})
		out := make([]Entry, len(keys))
		for i, key := range keys {
			out[i] = Entry{Key: key.Interface(), Value: rv.MapIndex(key).Interface()}
		}
		return out, true
	}
	return nil, false
}

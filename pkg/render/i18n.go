package render

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/goliatone/go-domtpl/pkg/scope/expr"
)

// ErrMissingTranslator reports a translate call without a Translator.
var ErrMissingTranslator = errors.New("render: translator is not configured")

// Translator resolves message keys for a locale.
type Translator interface {
	Translate(locale, key string, args ...any) (string, error)
}

// TranslatorFunc adapts a function into a Translator.
type TranslatorFunc func(locale, key string, args ...any) (string, error)

// Translate implements Translator.
func (f TranslatorFunc) Translate(locale, key string, args ...any) (string, error) {
	return f(locale, key, args...)
}

// MissingTranslationHandler returns the text used when a key cannot be
// translated. err is nil when the translator returned an empty message.
type MissingTranslationHandler func(locale, key string, args []any, err error) string

// I18nConfig configures the translation helpers exposed to expressions.
type I18nConfig struct {
	// LocaleKey selects the entry holding the locale when the first argument
	// is a map or struct instead of a locale string. Defaults to "locale".
	LocaleKey string
	// FuncName names the translate helper. Defaults to "translate".
	FuncName string
	// OnMissing defaults to returning the key.
	OnMissing MissingTranslationHandler
}

// I18nFunctions returns expression functions for templates:
//
//	${translate(page, 'greeting', user.name)}
//	${current_locale(page)}
//
// The first argument is a locale string or a value carrying one under
// cfg.LocaleKey.
func I18nFunctions(t Translator, cfg I18nConfig) map[string]expr.Func {
	localeKey := strings.TrimSpace(cfg.LocaleKey)
	if localeKey == "" {
		localeKey = "locale"
	}
	name := strings.TrimSpace(cfg.FuncName)
	if name == "" {
		name = "translate"
	}
	onMissing := cfg.OnMissing
	if onMissing == nil {
		onMissing = missingTranslationDefault
	}

	return map[string]expr.Func{
		name: func(args ...any) (any, error) {
			if len(args) < 2 {
				return nil, fmt.Errorf("%s expects a locale and a key, got %d argument(s)", name, len(args))
			}
			key := strings.TrimSpace(expr.ToString(args[1]))
			if key == "" {
				return "", nil
			}
			locale := resolveLocale(args[0], localeKey)
			params := args[2:]
			if t == nil {
				return onMissing(locale, key, params, ErrMissingTranslator), nil
			}
			msg, err := t.Translate(locale, key, params...)
			if err != nil || strings.TrimSpace(msg) == "" {
				return onMissing(locale, key, params, err), nil
			}
			return msg, nil
		},
		"current_locale": func(args ...any) (any, error) {
			if len(args) == 0 {
				return "", nil
			}
			return resolveLocale(args[0], localeKey), nil
		},
	}
}

// RegisterI18n installs the translation helpers on the renderer's expression
// compiler.
func RegisterI18n(r *Renderer, t Translator, cfg I18nConfig) {
	compiler := r.Application().Compiler()
	for name, fn := range I18nFunctions(t, cfg) {
		compiler.Register(name, fn)
	}
}

func missingTranslationDefault(_ string, key string, _ []any, _ error) string {
	return key
}

func resolveLocale(src any, key string) string {
	switch data := src.(type) {
	case nil:
		return ""
	case string:
		return data
	case map[string]any:
		if v, ok := data[key]; ok && v != nil {
			return strings.TrimSpace(fmt.Sprint(v))
		}
		return ""
	case map[string]string:
		return data[key]
	}

	value := reflect.ValueOf(src)
	for value.IsValid() && value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return ""
		}
		value = value.Elem()
	}
	if value.Kind() == reflect.Struct {
		field := value.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, key)
		})
		if field.IsValid() && field.Kind() == reflect.String {
			return field.String()
		}
	}
	return ""
}

// Package expr implements the sandboxed expression language used inside
// ${...} placeholders.
//
// Supported syntax:
//   - literals: numbers, 'single' or "double" quoted strings, true, false,
//     null/undefined, arrays [a, b] and objects {key: value}
//   - paths: name, a.b.c, a[0], a["key"], items.length
//   - operators: ! - + * / % < <= > >= == != === !== && || ?? and c ? a : b
//   - calls to registered functions (len, upper, lower, trim, string, number,
//     json, join, contains, keys, default, format) or to scope values typed
//     as Func
//
// Programs are compiled once per distinct source text and cached by the
// Compiler. Unknown identifiers evaluate to nil; unknown functions fail.
package expr

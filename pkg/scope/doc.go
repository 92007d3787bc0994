// Package scope implements the hierarchical data levels templates resolve
// ${...} expressions against. A Node holds one level of data and a back
// reference to its parent; lookups walk outward and the nearest definition
// wins. Positive matches are cached at the node where the search started and
// dropped whenever any level in the tree is written to.
//
// Expressions use the form ${[scopeName::]statement}. A scopeName prefix
// evaluates the statement against the first ancestor carrying that name. A
// leading backslash (\${...}) keeps the token as literal text.
package scope

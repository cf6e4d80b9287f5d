// Package config implements the hierarchical configuration tree that build
// steps and template rendering read from.
//
// A Tree is authored through two operations: Group opens (or re-enters) a
// named group and Set stores a scalar in the innermost open group. Files are
// layered onto the same tree with Load; a later file overwrites individual
// keys and re-enters existing groups without discarding their siblings.
//
// Values are read back with Resolve, which walks a dotted attribute path and,
// on failure, reports how far it got, the segment it could not find, and the
// keys that do exist at that level.
//
// The package is format-agnostic. Concrete authoring languages implement the
// Interpreter interface and are registered per file extension; see the
// hclconfig package.
package config

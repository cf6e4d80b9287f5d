// Package registry maps the step kinds named in a build manifest to the Go
// factories that implement them.
//
// Each step package exposes a Module whose Register method adds its kinds.
// At startup the application registers every module, then Assemble turns
// the manifest's step declarations into hook tables and registers them with
// the dispatcher in declaration order.
package registry

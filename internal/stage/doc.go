// Package stage drives a build through its lifecycle phases.
//
// The build phase wraps dependencies, compile, package, test and publish, in
// that order. Every phase X has three hook points: before_X, the work hook X
// itself, and after_X. A dedicated on_failure hook is fired when any hook
// fails.
//
// Executors do not implement a common interface. Each one is registered with
// a HookTable, an explicit map from hook name to function; the Dispatcher
// looks a hook up in every table in registration order and silently skips
// tables that do not define it. Hooks run one at a time, never concurrently.
package stage

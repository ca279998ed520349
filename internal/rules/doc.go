// Package rules evaluates a declarative rule set against the public state
// snapshot and returns the actions of the rules that matched.
//
// A rule is a name, a predicate and an action. Predicates are data: Compare,
// Exists, All, Any and Not cover the common cases, and Custom calls a named
// function from an explicit Functions table for anything else.
//
// Field paths are dot separated and resolve into the snapshot, for example
// "devices.AA:BB:CC:DD:EE:FF.metrics.soc". Paths starting with "env." resolve
// into the environment passed to Evaluate instead.
//
// The engine holds no state between calls. A predicate that fails or panics
// is logged and skipped; the remaining rules are still evaluated, and the
// result keeps declaration order.
package rules

// Package credstore persists bearer credentials across two tiers.
//
// # Design
//
// A [Tiered] store composes a durable [Backend] (redis, survives restarts)
// with a session-scoped one (in-process memory, cleared with the process).
// Reads prefer the durable tier and report where the value was found, which
// is how the controller decides whether a prior "remember me" choice exists.
// Removes always clear both tiers.
//
// # Architecture boundaries
//
// This package owns key layout and tier composition. It knows nothing about
// tokens; values are opaque strings.
//
// # What this package must NOT do
//
//   - Decode or inspect stored values.
//   - Import tokenkeep or any sibling package.
package credstore

// Package tokenkeep keeps a pair of bearer credentials (a short-lived access
// token and an optional refresh token) valid on behalf of a client
// application. It persists tokens across a durable and a session-scoped
// storage tier, decodes their claims, runs a periodic expiration checker, and
// transparently exchanges an expiring access token for a new one through a
// remote renewal endpoint.
//
// The package is designed for long-lived client processes: after construction
// through [Builder.Build], a [Session] owns its token state exclusively and
// all mutation flows through [Session.Init], the renewal protocol, or
// [Session.SignOut]. Lifecycle transitions (renewed, expired, renewal failed)
// are delivered through the [AuditSink] event interface rather than ad-hoc
// callbacks.
//
// # Architecture boundaries
//
// tokenkeep is the public surface. It exposes [Session], [Builder], [Config],
// and value types (TokenPair, Snapshot, MetricsSnapshot). Event modeling
// lives under internal/audit; the credential store tiers live in credstore
// and the claims decoder in claims, both reusable on their own.
//
// # What this package must NOT do
//
//   - Issue tokens. Login and credential issuance belong to the server side;
//     tokenkeep only renews what it was handed.
//   - Verify token signatures. Claims are decoded, never validated
//     cryptographically; the renewal endpoint is the authority.
//   - Perform I/O outside of Session methods (construction via Builder is
//     allocation-only until Build).
package tokenkeep

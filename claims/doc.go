// Package claims decodes bearer token payloads for the session controller.
//
// # Design
//
// Tokens are parsed as compact JWTs with [jwt.Parser.ParseUnverified]; the
// signature is never checked. A [Claims] map plus typed accessors for the
// registered timestamps is all the controller consumes.
//
// # What this package must NOT do
//
//   - Verify signatures or enforce registered-claim validity.
//   - Import tokenkeep or any sibling package.
package claims

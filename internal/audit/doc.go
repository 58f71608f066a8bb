// Package audit models the session lifecycle event stream.
//
// # Design
//
// Events form a closed set (init, renewed, renew failed, decode failed,
// check failed, expired, signout) delivered through the [Sink] interface.
// ChannelSink serves channel consumers; JSONWriterSink serves log pipelines.
// Dispatch buffering and backpressure live in the root package.
//
// # What this package must NOT do
//
//   - Block an emitter beyond its context.
//   - Import tokenkeep or any sibling package.
package audit

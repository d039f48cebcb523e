// Package tenancy orchestrates tenant context switching over an ordered
// chain of bootstrappers.
//
// # Context
//
// The Context is a small state machine: central (no tenant), activating,
// active for one tenant, deactivating. Initialize runs every bootstrapper's
// Activate strictly in configured order, recording each success in the
// activated subsequence — the undo log. When an activation fails, the undo
// log is replayed in strict reverse order (each Deactivate attempted exactly
// once, failures logged and swallowed), the context returns to central, and
// the original activation error is returned to the caller.
//
// Convenience operations build on Initialize/End:
//
//   - Run(t, fn): run fn in t's context, then always restore the previous
//     context, even when fn fails
//   - Central(fn): run fn with no tenant active, then restore
//   - RunForMultiple(tenants, fn): fn per tenant in input order, restore after
//
// The Context is not safe for concurrently overlapping calls; callers must
// serialize Initialize/End/Run on one instance.
//
// # Resolvers
//
// The resolver chain maps inbound request metadata (headers, hostname,
// claims) to a tenant id. Resolvers are tried in configured order; the first
// non-empty id wins.
package tenancy

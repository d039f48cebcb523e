// Package provision maps tenants onto agent entries in the shared OpenClaw
// configuration document.
//
// # Mutator
//
// The Mutator implements the read-modify-write cycle over the document:
//
//  1. fetch the current snapshot (document + version hash)
//  2. inspect the agent list
//  3. submit a patch conditioned on the fetched hash
//
// AddAgent fails with ErrDuplicateAgent (no mutation issued) when the id is
// already present. RemoveAgent is idempotent: an absent id succeeds without
// issuing a mutating call. A stale base hash is rejected remotely and
// surfaces as ErrConflict; the mutator never retries on conflict — retry
// policy belongs to the caller.
//
// # Provisioner
//
// The Provisioner derives an agent id (tenant-<slug>) and workspace path
// from a tenant, writes the workspace bootstrap files (SOUL.md persona,
// AGENTS.md marker), and drives the Mutator. Deprovisioning archives the
// workspace by renaming rather than deleting it.
package provision

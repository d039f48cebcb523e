// ABOUTME: Package documentation for the tenant registry.
// ABOUTME: Describes the Registry interface and the in-memory backend.

// Package registry stores tenant records and the API keys issued to them.
//
// The Registry interface abstracts storage so callers never depend on a
// concrete backend. Memory is the supplied implementation: a mutex-guarded
// map suitable for a single control-plane process.
//
// API keys are minted by IssueAPIKey and returned to the caller exactly
// once; the registry keeps only a key-to-tenant lookup. Deleting a tenant
// revokes every key issued to it.
package registry

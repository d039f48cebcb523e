// Package tenant defines the core domain types for the claw-desk control plane.
//
// A Tenant is a logical customer mapped onto one externally-managed OpenClaw
// agent. The package holds the tenant record, its configuration payload
// (model routing rules, confidence threshold, knowledge base, system prompt),
// the derived agent mapping, and the smart model routing logic.
//
// Types here are plain values with no behavior beyond PickModel; ownership of
// tenant records belongs to the registry, and orchestration code receives
// tenants by value.
package tenant

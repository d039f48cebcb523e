// Package notify delivers tenant lifecycle events to an external webhook.
//
// Events are posted as JSON with automatic retries (3 attempts with
// exponential backoff). A notifier configured with an empty URL discards
// events silently, so wiring is unconditional.
//
// Delivery is best-effort: provisioning and deprovisioning never fail
// because a webhook was unreachable. Callers log the returned error.
package notify

// Package conversation persists customer conversations and per-tenant
// usage counters in SQLite.
//
// # Overview
//
// Each conversation belongs to one tenant and one customer and carries a
// session key mapping it onto the agent gateway's chat session:
//
//	agent:<agent-id>:customer-<customer-id>
//
// # Lifecycle
//
// A conversation moves through lifecycle states:
//
//   - active: the agent is handling the customer
//   - waiting_approval: a draft reply awaits human review
//   - escalated: handed to a human operator
//   - resolved: closed
//
// UpdateState records the transition and, for escalations, who the
// conversation is assigned to.
//
// # Usage counters
//
// Usage accumulates per tenant in a single row: the conversation counter
// is bumped inside the CreateConversation transaction, token and
// knowledge-base counters via RecordUsage. TenantUsage reads the totals
// and returns zeroed metrics for tenants with no recorded usage.
package conversation

// ABOUTME: Conversation records tracked per tenant and their lifecycle states.
// ABOUTME: A conversation maps one customer session onto one agent session key.

package conversation

import "time"

// State is the lifecycle state of a conversation.
type State string

const (
	StateActive          State = "active"
	StateWaitingApproval State = "waiting_approval"
	StateEscalated       State = "escalated"
	StateResolved        State = "resolved"
)

// Conversation is one customer's exchange with a tenant's agent.
type Conversation struct {
	ID         string
	TenantID   string
	CustomerID string
	SessionKey string
	State      State
	AssignedTo string
	Confidence float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SessionKey derives the gateway session key for a customer conversation.
func SessionKey(agentID, customerID string) string {
	return "agent:" + agentID + ":customer-" + customerID
}

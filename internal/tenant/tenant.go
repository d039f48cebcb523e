// ABOUTME: Core tenant domain types for the claw-desk control plane.
// ABOUTME: Each tenant maps to one agent entry in the remote OpenClaw config.

package tenant

import "time"

// Status represents the lifecycle state of a tenant.
type Status string

// Tenant lifecycle states.
const (
	StatusProvisioning Status = "provisioning"
	StatusActive       Status = "active"
	StatusPaused       Status = "paused"
	StatusSuspended    Status = "suspended"
	StatusDeleting     Status = "deleting"
)

// ModelRouting holds per-tenant model routing rules.
type ModelRouting struct {
	Primary             string   `json:"primary" yaml:"primary"`
	Fallbacks           []string `json:"fallbacks,omitempty" yaml:"fallbacks"`
	EscalationSentiment float64  `json:"escalation_sentiment" yaml:"escalation_sentiment"`

	// Smart routing overrides
	VisionModel          string `json:"vision_model,omitempty" yaml:"vision_model"`
	LongContextModel     string `json:"long_context_model,omitempty" yaml:"long_context_model"`
	LongContextThreshold int    `json:"long_context_threshold" yaml:"long_context_threshold"`
}

// DefaultLongContextThreshold is the token count that triggers the
// long-context model when none is configured explicitly.
const DefaultLongContextThreshold = 100_000

// Config holds the tenant-level configuration payload.
type Config struct {
	ModelRouting        ModelRouting `json:"model_routing"`
	ConfidenceThreshold float64      `json:"confidence_threshold"`
	KnowledgeBaseID     string       `json:"knowledge_base_id,omitempty"`
	SystemPrompt        string       `json:"system_prompt,omitempty"`
	AfterHoursThreshold float64      `json:"after_hours_threshold,omitempty"`
}

// UsageMetrics accumulates per-tenant consumption counters.
type UsageMetrics struct {
	Conversations        int `json:"conversations"`
	InputTokens          int `json:"input_tokens"`
	OutputTokens         int `json:"output_tokens"`
	KnowledgeBaseQueries int `json:"knowledge_base_queries"`
}

// Tenant is a logical customer whose requests are served by one
// externally-managed agent. The control plane treats it as immutable:
// values are passed into orchestration calls, never mutated there.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Status    Status    `json:"status"`
	Config    Config    `json:"config"`
	AgentID   string    `json:"agent_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RequestContext carries the request metadata a resolver chain inspects
// to determine which tenant an inbound request belongs to.
type RequestContext struct {
	Headers  map[string]string
	Hostname string
	Path     string
	Query    map[string]string
	Claims   map[string]any
}

// Header returns a header value by case-insensitive-ish convention:
// callers are expected to populate Headers with lowercase keys.
func (rc RequestContext) Header(name string) string {
	return rc.Headers[name]
}

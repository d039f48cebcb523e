// ABOUTME: Derived mapping between a tenant and its OpenClaw agent entry.
// ABOUTME: AgentConfig mirrors one agents.list[] entry in the remote config document.

package tenant

// AgentConfig mirrors an OpenClaw agents.list[] entry.
// Model is either a plain model id string or a {primary, fallbacks} object.
type AgentConfig struct {
	ID        string            `json:"id"`
	Name      string            `json:"name,omitempty"`
	Workspace string            `json:"workspace,omitempty"`
	Model     any               `json:"model,omitempty"`
	Skills    []string          `json:"skills,omitempty"`
	Sandbox   map[string]any    `json:"sandbox,omitempty"`
	Identity  map[string]string `json:"identity,omitempty"`
}

// AgentMapping is the full derived mapping for one tenant. It is computed
// deterministically from the tenant and never stored.
type AgentMapping struct {
	TenantID      string      `json:"tenant_id"`
	AgentID       string      `json:"agent_id"`
	WorkspacePath string      `json:"workspace_path"`
	AgentConfig   AgentConfig `json:"agent_config"`
}

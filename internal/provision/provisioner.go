// ABOUTME: Maps tenants onto OpenClaw agent entries and their workspaces.
// ABOUTME: Provision creates workspace + agent entry; deprovision removes and archives.

package provision

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BlueBirdBack/claw-desk/internal/tenant"
)

// Result statuses for provisioning outcomes.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ProvisionResult records the outcome of provisioning one tenant.
type ProvisionResult struct {
	TenantID      string `json:"tenant_id"`
	AgentID       string `json:"agent_id"`
	WorkspacePath string `json:"workspace_path"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
}

// DeprovisionResult records the outcome of deprovisioning one tenant.
type DeprovisionResult struct {
	TenantID string `json:"tenant_id"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// Provisioner maps tenants to OpenClaw agents: it derives the agent id and
// workspace path from the tenant, writes the workspace bootstrap files, and
// drives the Mutator to add or remove the agent entry.
type Provisioner struct {
	workspaceBaseDir string
	mutator          *Mutator
	logger           *slog.Logger
}

// NewProvisioner creates a Provisioner writing workspaces under baseDir.
func NewProvisioner(baseDir string, mutator *Mutator, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		workspaceBaseDir: baseDir,
		mutator:          mutator,
		logger:           logger.With("component", "provisioner"),
	}
}

// AgentID converts a tenant slug to its OpenClaw agent id.
func AgentID(slug string) string {
	return "tenant-" + slug
}

// BuildAgentConfig builds the agent entry for a tenant. When fallbacks are
// configured the model becomes a {primary, fallbacks} object, otherwise a
// plain model id.
func (p *Provisioner) BuildAgentConfig(t tenant.Tenant, workspacePath string) tenant.AgentConfig {
	routing := t.Config.ModelRouting

	var model any = routing.Primary
	if len(routing.Fallbacks) > 0 {
		model = map[string]any{
			"primary":   routing.Primary,
			"fallbacks": routing.Fallbacks,
		}
	}

	return tenant.AgentConfig{
		ID:        AgentID(t.Slug),
		Name:      t.Name,
		Workspace: workspacePath,
		Model:     model,
		Sandbox:   map[string]any{"mode": "all", "workspaceAccess": "rw"},
	}
}

// Mapping computes the full derived mapping between a tenant and its agent.
func (p *Provisioner) Mapping(t tenant.Tenant) tenant.AgentMapping {
	agentID := AgentID(t.Slug)
	workspacePath := filepath.Join(p.workspaceBaseDir, agentID)

	return tenant.AgentMapping{
		TenantID:      t.ID,
		AgentID:       agentID,
		WorkspacePath: workspacePath,
		AgentConfig:   p.BuildAgentConfig(t, workspacePath),
	}
}

// Provision sets a new tenant up:
//  1. derive the agent id from the tenant slug
//  2. create the workspace directory with bootstrap files
//  3. add the agent entry to the gateway config
//
// The workspace is cleaned up if the config mutation fails. The returned
// error is the underlying cause: duplicate and conflict errors from the
// mutator propagate unmodified so the caller can decide whether to retry.
func (p *Provisioner) Provision(ctx context.Context, t tenant.Tenant) (ProvisionResult, error) {
	mapping := p.Mapping(t)

	result := ProvisionResult{
		TenantID:      t.ID,
		AgentID:       mapping.AgentID,
		WorkspacePath: mapping.WorkspacePath,
		Status:        StatusSuccess,
	}

	if err := p.createWorkspace(mapping.WorkspacePath, t); err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		return result, err
	}

	if err := p.mutator.AddAgent(ctx, mapping.AgentConfig); err != nil {
		os.RemoveAll(mapping.WorkspacePath)
		p.logger.Error("provisioning failed", "tenant_id", t.ID, "agent_id", mapping.AgentID, "error", err)
		result.Status = StatusFailed
		result.Error = err.Error()
		return result, err
	}

	p.logger.Info("tenant provisioned", "tenant_id", t.ID, "agent_id", mapping.AgentID)
	return result, nil
}

// Deprovision tears a tenant down: the agent entry is removed from the
// gateway config and the workspace is archived (renamed, not deleted).
func (p *Provisioner) Deprovision(ctx context.Context, t tenant.Tenant) (DeprovisionResult, error) {
	agentID := AgentID(t.Slug)

	if err := p.mutator.RemoveAgent(ctx, agentID); err != nil {
		p.logger.Error("deprovisioning failed", "tenant_id", t.ID, "agent_id", agentID, "error", err)
		return DeprovisionResult{TenantID: t.ID, Status: StatusFailed, Error: err.Error()}, err
	}

	workspacePath := filepath.Join(p.workspaceBaseDir, agentID)
	if _, err := os.Stat(workspacePath); err == nil {
		archivePath := fmt.Sprintf("%s.archived.%d", workspacePath, time.Now().Unix())
		if err := os.Rename(workspacePath, archivePath); err != nil {
			p.logger.Warn("workspace archive failed", "tenant_id", t.ID, "path", workspacePath, "error", err)
		}
	}

	p.logger.Info("tenant deprovisioned", "tenant_id", t.ID, "agent_id", agentID)
	return DeprovisionResult{TenantID: t.ID, Status: StatusSuccess}, nil
}

// createWorkspace writes the tenant workspace with its bootstrap files.
func (p *Provisioner) createWorkspace(workspacePath string, t tenant.Tenant) error {
	if err := os.MkdirAll(workspacePath, 0o755); err != nil {
		return fmt.Errorf("creating workspace: %w", err)
	}

	soul := t.Config.SystemPrompt
	if soul == "" {
		soul = fmt.Sprintf("# %s Support Agent\n\n"+
			"You are a helpful customer support agent for %s.\n"+
			"Be friendly, professional, and concise.\n"+
			"If you're unsure about something, say so honestly.\n", t.Name, t.Name)
	}
	if err := os.WriteFile(filepath.Join(workspacePath, "SOUL.md"), []byte(soul), 0o644); err != nil {
		return fmt.Errorf("writing SOUL.md: %w", err)
	}

	marker := fmt.Sprintf("# %s — ClawDesk Agent\n\n"+
		"This workspace is managed by ClawDesk.\n"+
		"Tenant ID: %s\n", t.Name, t.ID)
	if err := os.WriteFile(filepath.Join(workspacePath, "AGENTS.md"), []byte(marker), 0o644); err != nil {
		return fmt.Errorf("writing AGENTS.md: %w", err)
	}

	return nil
}

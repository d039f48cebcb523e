// ABOUTME: Concrete bootstrappers wired into the tenancy chain.
// ABOUTME: Agent entry, model routing table, knowledge base, and metering scope.

package tenancy

import (
	"context"
	"errors"
	"sync"

	"github.com/BlueBirdBack/claw-desk/internal/provision"
	"github.com/BlueBirdBack/claw-desk/internal/tenant"
)

// AgentEnsurer adds an agent entry to the remote gateway config.
type AgentEnsurer interface {
	AddAgent(ctx context.Context, cfg tenant.AgentConfig) error
}

// AgentMapper derives a tenant's agent mapping.
type AgentMapper interface {
	Mapping(t tenant.Tenant) tenant.AgentMapping
}

// AgentBootstrapper makes sure the active tenant's agent entry exists in the
// gateway config. An entry that is already present is fine — provisioning
// may have created it earlier. Deactivation leaves the entry in place:
// removal belongs to deprovisioning, not to a context switch.
type AgentBootstrapper struct {
	Mapper AgentMapper
	Agents AgentEnsurer
}

func (b *AgentBootstrapper) Name() string { return "agent" }

func (b *AgentBootstrapper) Activate(ctx context.Context, t tenant.Tenant) error {
	mapping := b.Mapper.Mapping(t)
	err := b.Agents.AddAgent(ctx, mapping.AgentConfig)
	if errors.Is(err, provision.ErrDuplicateAgent) {
		return nil
	}
	return err
}

func (b *AgentBootstrapper) Deactivate(ctx context.Context) error { return nil }

// RouteTable is the shared model-routing state the message path consults.
// Exactly one tenant's routing rules are installed at a time.
type RouteTable struct {
	mu       sync.RWMutex
	tenantID string
	routing  tenant.ModelRouting
	active   bool
}

// Install makes a tenant's routing rules current.
func (rt *RouteTable) Install(tenantID string, routing tenant.ModelRouting) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.tenantID = tenantID
	rt.routing = routing
	rt.active = true
}

// Clear removes the installed rules.
func (rt *RouteTable) Clear() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.tenantID = ""
	rt.routing = tenant.ModelRouting{}
	rt.active = false
}

// Pick routes a message with the installed rules. The second return is false
// when no tenant's rules are installed.
func (rt *RouteTable) Pick(analysis tenant.MessageAnalysis) (tenant.RouteDecision, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	if !rt.active {
		return tenant.RouteDecision{}, false
	}
	return tenant.PickModel(rt.routing, analysis), true
}

// TenantID returns the tenant whose rules are installed, or "".
func (rt *RouteTable) TenantID() string {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.tenantID
}

// RoutingBootstrapper installs the active tenant's model routing rules into
// a shared RouteTable and clears them on deactivation.
type RoutingBootstrapper struct {
	Table *RouteTable
}

func (b *RoutingBootstrapper) Name() string { return "routing" }

func (b *RoutingBootstrapper) Activate(ctx context.Context, t tenant.Tenant) error {
	b.Table.Install(t.ID, t.Config.ModelRouting)
	return nil
}

func (b *RoutingBootstrapper) Deactivate(ctx context.Context) error {
	b.Table.Clear()
	return nil
}

// KnowledgeBaseBinder attaches a knowledge base to the active context.
type KnowledgeBaseBinder interface {
	Bind(ctx context.Context, tenantID, knowledgeBaseID string) error
	Unbind(ctx context.Context) error
}

// KnowledgeBaseBootstrapper binds the tenant's knowledge base, if one is
// configured. Tenants without a knowledge base activate as a no-op.
type KnowledgeBaseBootstrapper struct {
	Binder KnowledgeBaseBinder

	bound bool
}

func (b *KnowledgeBaseBootstrapper) Name() string { return "knowledge-base" }

func (b *KnowledgeBaseBootstrapper) Activate(ctx context.Context, t tenant.Tenant) error {
	if t.Config.KnowledgeBaseID == "" {
		b.bound = false
		return nil
	}
	if err := b.Binder.Bind(ctx, t.ID, t.Config.KnowledgeBaseID); err != nil {
		return err
	}
	b.bound = true
	return nil
}

func (b *KnowledgeBaseBootstrapper) Deactivate(ctx context.Context) error {
	if !b.bound {
		return nil
	}
	b.bound = false
	return b.Binder.Unbind(ctx)
}

// MeteringScope tracks which tenant usage should currently be attributed to.
type MeteringScope struct {
	mu       sync.RWMutex
	tenantID string
}

// Bind scopes subsequent usage to the tenant.
func (s *MeteringScope) Bind(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenantID = tenantID
}

// Unbind clears the scope.
func (s *MeteringScope) Unbind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenantID = ""
}

// TenantID returns the scoped tenant, or "" in central context.
func (s *MeteringScope) TenantID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tenantID
}

// MeteringBootstrapper scopes usage attribution to the active tenant.
type MeteringBootstrapper struct {
	Scope *MeteringScope
}

func (b *MeteringBootstrapper) Name() string { return "metering" }

func (b *MeteringBootstrapper) Activate(ctx context.Context, t tenant.Tenant) error {
	b.Scope.Bind(t.ID)
	return nil
}

func (b *MeteringBootstrapper) Deactivate(ctx context.Context) error {
	b.Scope.Unbind()
	return nil
}

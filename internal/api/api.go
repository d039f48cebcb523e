// ABOUTME: HTTP control surface for the clawdesk control plane.
// ABOUTME: Exposes health, tenant CRUD, message routing, and the chat ingress.

package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/BlueBirdBack/claw-desk/internal/conversation"
	"github.com/BlueBirdBack/claw-desk/internal/dedupe"
	"github.com/BlueBirdBack/claw-desk/internal/gateway"
	"github.com/BlueBirdBack/claw-desk/internal/provision"
	"github.com/BlueBirdBack/claw-desk/internal/registry"
	"github.com/BlueBirdBack/claw-desk/internal/tenancy"
	"github.com/BlueBirdBack/claw-desk/internal/tenant"
)

// TenantProvisioner defines what the API needs from the provisioning layer.
type TenantProvisioner interface {
	Provision(ctx context.Context, t tenant.Tenant) (provision.ProvisionResult, error)
	Deprovision(ctx context.Context, t tenant.Tenant) (provision.DeprovisionResult, error)
}

// ChatGateway defines what the API needs from the gateway client.
type ChatGateway interface {
	Connected() bool
	ChatSend(ctx context.Context, params gateway.ChatSendParams) (*gateway.ChatSendResult, error)
	ChatHistory(ctx context.Context, sessionKey string, limit int) ([]gateway.ChatMessage, error)
	ListSessions(ctx context.Context, filter gateway.SessionFilter) ([]gateway.SessionEntry, error)
}

// ConversationStore defines what the API needs from conversation storage.
type ConversationStore interface {
	CreateConversation(ctx context.Context, c *conversation.Conversation) error
	GetBySessionKey(ctx context.Context, tenantID, sessionKey string) (*conversation.Conversation, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*conversation.Conversation, error)
	RecordUsage(ctx context.Context, tenantID string, inputTokens, outputTokens, kbQueries int) error
	TenantUsage(ctx context.Context, tenantID string) (tenant.UsageMetrics, error)
	DeleteByTenant(ctx context.Context, tenantID string) error
}

// Notifier defines what the API needs from the lifecycle webhook.
type Notifier interface {
	TenantProvisioned(ctx context.Context, t tenant.Tenant) error
	TenantDeprovisioned(ctx context.Context, t tenant.Tenant) error
	TenantStatusChanged(ctx context.Context, t tenant.Tenant, previous tenant.Status) error
}

// TenantResolver resolves an inbound request to a tenant id, or "".
type TenantResolver interface {
	Resolve(ctx context.Context, rc tenant.RequestContext) (string, error)
}

// API holds the handler dependencies.
type API struct {
	registry    registry.Registry
	provisioner TenantProvisioner
	tenancy     *tenancy.Context
	tenancyMu   sync.Mutex // the tenancy context requires serialized Run calls
	routes      *tenancy.RouteTable
	metering    *tenancy.MeteringScope
	store       ConversationStore
	gateway     ChatGateway
	notifier    Notifier
	resolver    TenantResolver
	deliveries  *dedupe.Window
	logger      *slog.Logger
}

// Options bundles the API dependencies.
type Options struct {
	Registry    registry.Registry
	Provisioner TenantProvisioner
	Tenancy     *tenancy.Context
	Routes      *tenancy.RouteTable
	Metering    *tenancy.MeteringScope // optional; nil attributes usage to the request tenant
	Store       ConversationStore
	Gateway     ChatGateway
	Notifier    Notifier
	Resolver    TenantResolver
	Deliveries  *dedupe.Window // optional; nil disables ingress dedupe
	Logger      *slog.Logger
}

// New creates the API from its dependencies.
func New(opts Options) *API {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		registry:    opts.Registry,
		provisioner: opts.Provisioner,
		tenancy:     opts.Tenancy,
		routes:      opts.Routes,
		metering:    opts.Metering,
		store:       opts.Store,
		gateway:     opts.Gateway,
		notifier:    opts.Notifier,
		resolver:    opts.Resolver,
		deliveries:  opts.Deliveries,
		logger:      logger.With("component", "api"),
	}
}

// RegisterRoutes attaches all handlers to the router.
func (a *API) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", a.health)

	router.POST("/api/tenants", a.createTenant)
	router.GET("/api/tenants", a.listTenants)
	router.GET("/api/tenants/:id", a.getTenant)
	router.PATCH("/api/tenants/:id", a.updateTenant)
	router.DELETE("/api/tenants/:id", a.deleteTenant)

	router.GET("/api/tenants/:id/conversations", a.listConversations)
	router.POST("/api/tenants/:id/messages", a.sendMessage)
	router.GET("/api/tenants/:id/history", a.chatHistory)
	router.GET("/api/tenants/:id/sessions", a.listSessions)
	router.POST("/api/broadcast", a.broadcast)

	router.POST("/chat", a.chat)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *API) health(c *gin.Context) {
	tenants, err := a.registry.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"gateway_connected": a.gateway.Connected(),
		"tenant_count":      len(tenants),
	})
}

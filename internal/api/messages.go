// ABOUTME: Message handlers: tenant-scoped send and the customer chat ingress.
// ABOUTME: Messages run inside the tenancy context; routing comes from the route table.

package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/BlueBirdBack/claw-desk/internal/conversation"
	"github.com/BlueBirdBack/claw-desk/internal/dedupe"
	"github.com/BlueBirdBack/claw-desk/internal/gateway"
	"github.com/BlueBirdBack/claw-desk/internal/registry"
	"github.com/BlueBirdBack/claw-desk/internal/tenant"
)

type sendMessageRequest struct {
	CustomerID string  `json:"customer_id" binding:"required"`
	Message    string  `json:"message" binding:"required"`
	HasImages  bool    `json:"has_images"`
	Sentiment  float64 `json:"sentiment"`
}

type sendMessageResponse struct {
	ConversationID string `json:"conversation_id"`
	SessionKey     string `json:"session_key"`
	Model          string `json:"model"`
	Reason         string `json:"reason"`
	Response       string `json:"response,omitempty"`
}

func (a *API) sendMessage(c *gin.Context) {
	ctx := c.Request.Context()

	t, err := a.registry.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	a.handleMessage(c, t, req)
}

type chatRequest struct {
	CustomerID string  `json:"customer_id" binding:"required"`
	Message    string  `json:"message" binding:"required"`
	HasImages  bool    `json:"has_images"`
	Sentiment  float64 `json:"sentiment"`
}

// chat is the customer-facing ingress: the tenant is resolved from the
// request itself (header, subdomain, or token claim) rather than the path.
func (a *API) chat(c *gin.Context) {
	ctx := c.Request.Context()

	tenantID, err := a.resolver.Resolve(ctx, requestContext(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if tenantID == "" {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "no tenant resolved from request"})
		return
	}

	t, err := a.registry.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	// Ingress retries deliver the same message again; process it once.
	if a.deliveries != nil {
		key := dedupe.DeliveryKey(t.ID, req.CustomerID, req.Message)
		if a.deliveries.Duplicate(key) {
			a.logger.Debug("duplicate delivery suppressed", "tenant_id", t.ID, "customer_id", req.CustomerID)
			c.JSON(http.StatusOK, gin.H{"duplicate": true})
			return
		}
	}

	a.handleMessage(c, t, sendMessageRequest(req))
}

// chatHistory proxies a session's transcript from the gateway. The session
// is addressed by customer id; the tenant comes from the path.
func (a *API) chatHistory(c *gin.Context) {
	ctx := c.Request.Context()

	t, err := a.registry.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	customerID := c.Query("customer_id")
	if customerID == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "customer_id is required"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	sessionKey := conversation.SessionKey(t.AgentID, customerID)
	messages, err := a.gateway.ChatHistory(ctx, sessionKey, limit)
	if err != nil {
		c.JSON(gatewayStatus(err), errorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_key": sessionKey,
		"messages":    messages,
	})
}

// listSessions lists the tenant's live sessions on the gateway.
func (a *API) listSessions(c *gin.Context) {
	ctx := c.Request.Context()

	t, err := a.registry.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	activeMinutes, _ := strconv.Atoi(c.Query("active_minutes"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	sessions, err := a.gateway.ListSessions(ctx, gateway.SessionFilter{
		AgentID:       t.AgentID,
		ActiveMinutes: activeMinutes,
		Limit:         limit,
	})
	if err != nil {
		c.JSON(gatewayStatus(err), errorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

type broadcastRequest struct {
	Message string `json:"message" binding:"required"`
}

type broadcastResponse struct {
	Delivered []string `json:"delivered"`
	Failed    string   `json:"failed,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// broadcast delivers an operator announcement to every active tenant's
// agent, each inside its own tenant context. Delivery stops at the first
// failing tenant; tenants already reached stay delivered.
func (a *API) broadcast(c *gin.Context) {
	ctx := c.Request.Context()

	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	all, err := a.registry.List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	var active []tenant.Tenant
	for _, t := range all {
		if t.Status == tenant.StatusActive {
			active = append(active, t)
		}
	}

	a.tenancyMu.Lock()
	defer a.tenancyMu.Unlock()

	var resp broadcastResponse
	err = a.tenancy.RunForMultiple(ctx, active, func(ctx context.Context, t tenant.Tenant) error {
		_, err := a.gateway.ChatSend(ctx, gateway.ChatSendParams{
			SessionKey: conversation.SessionKey(t.AgentID, "broadcast"),
			Message:    req.Message,
			AgentID:    t.AgentID,
		})
		if err != nil {
			resp.Failed = t.ID
			return err
		}
		resp.Delivered = append(resp.Delivered, t.ID)
		return nil
	})
	if err != nil {
		resp.Error = err.Error()
		c.JSON(http.StatusBadGateway, resp)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// handleMessage runs the shared message path inside the tenant's context.
func (a *API) handleMessage(c *gin.Context, t tenant.Tenant, req sendMessageRequest) {
	ctx := c.Request.Context()

	if t.Status != tenant.StatusActive {
		c.JSON(http.StatusConflict, errorResponse{
			Error: "tenant is " + string(t.Status) + ", not accepting messages",
		})
		return
	}

	a.tenancyMu.Lock()
	defer a.tenancyMu.Unlock()

	var resp sendMessageResponse
	err := a.tenancy.Run(ctx, t, func(ctx context.Context, t tenant.Tenant) error {
		analysis := tenant.MessageAnalysis{
			HasImages:       req.HasImages,
			EstimatedTokens: estimateTokens(req.Message),
			SentimentScore:  req.Sentiment,
		}
		decision, ok := a.routes.Pick(analysis)
		if !ok {
			return errors.New("no routing rules installed")
		}

		sessionKey := conversation.SessionKey(t.AgentID, req.CustomerID)
		conv, err := a.ensureConversation(ctx, t, req.CustomerID, sessionKey)
		if err != nil {
			return err
		}

		result, err := a.gateway.ChatSend(ctx, gateway.ChatSendParams{
			SessionKey: sessionKey,
			Message:    req.Message,
			AgentID:    t.AgentID,
		})
		if err != nil {
			return err
		}

		// Usage is billed to the tenant the metering scope is bound to,
		// the same way routing decisions come from the route table.
		meteredID := t.ID
		if a.metering != nil {
			meteredID = a.metering.TenantID()
		}
		if err := a.store.RecordUsage(ctx, meteredID, analysis.EstimatedTokens, estimateTokens(result.Response), 0); err != nil {
			a.logger.Warn("recording usage", "tenant_id", meteredID, "error", err)
		}

		resp = sendMessageResponse{
			ConversationID: conv.ID,
			SessionKey:     sessionKey,
			Model:          decision.Model,
			Reason:         decision.Reason,
			Response:       result.Response,
		}
		return nil
	})
	if err != nil {
		c.JSON(gatewayStatus(err), errorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// gatewayStatus maps a gateway-side failure to an upstream HTTP status.
func gatewayStatus(err error) int {
	if errors.Is(err, gateway.ErrCallTimeout) || errors.Is(err, gateway.ErrConnClosed) || errors.Is(err, gateway.ErrConnectTimeout) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

// ensureConversation finds the customer's conversation or starts one.
func (a *API) ensureConversation(ctx context.Context, t tenant.Tenant, customerID, sessionKey string) (*conversation.Conversation, error) {
	conv, err := a.store.GetBySessionKey(ctx, t.ID, sessionKey)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, conversation.ErrConversationNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	conv = &conversation.Conversation{
		ID:         uuid.New().String(),
		TenantID:   t.ID,
		CustomerID: customerID,
		SessionKey: sessionKey,
		State:      conversation.StateActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := a.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// requestContext flattens a gin request into the resolver input. Header
// keys are lowercased; claims are left for the token resolver to extract.
func requestContext(c *gin.Context) tenant.RequestContext {
	headers := make(map[string]string, len(c.Request.Header))
	for name, values := range c.Request.Header {
		if len(values) > 0 {
			headers[strings.ToLower(name)] = values[0]
		}
	}

	query := make(map[string]string)
	for name, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			query[name] = values[0]
		}
	}

	// The Host header carries a port when clients hit the listener
	// directly; the subdomain resolver matches on the bare hostname.
	hostname := c.Request.Host
	if host, _, err := net.SplitHostPort(hostname); err == nil {
		hostname = host
	}

	return tenant.RequestContext{
		Headers:  headers,
		Hostname: hostname,
		Path:     c.Request.URL.Path,
		Query:    query,
	}
}

// estimateTokens approximates the token count of a text: about one token
// per four characters.
func estimateTokens(text string) int {
	return len(text) / 4
}

// ABOUTME: Tenant CRUD handlers: create provisions, delete deprovisions.
// ABOUTME: Status transitions go through the lifecycle rules and fire webhooks.

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/BlueBirdBack/claw-desk/internal/provision"
	"github.com/BlueBirdBack/claw-desk/internal/registry"
	"github.com/BlueBirdBack/claw-desk/internal/tenant"
)

type createTenantRequest struct {
	Name   string        `json:"name" binding:"required"`
	Slug   string        `json:"slug" binding:"required"`
	Config tenant.Config `json:"config"`
}

type tenantResponse struct {
	Tenant tenant.Tenant `json:"tenant"`
	APIKey string        `json:"api_key,omitempty"`
}

type updateTenantRequest struct {
	Status tenant.Status  `json:"status,omitempty"`
	Config *tenant.Config `json:"config,omitempty"`
}

func (a *API) createTenant(c *gin.Context) {
	ctx := c.Request.Context()

	var req createTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	now := time.Now().UTC()
	t := tenant.Tenant{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Slug:      req.Slug,
		Status:    tenant.StatusProvisioning,
		Config:    req.Config,
		AgentID:   provision.AgentID(req.Slug),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := a.registry.Create(ctx, t); err != nil {
		if errors.Is(err, registry.ErrDuplicateSlug) {
			c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	if _, err := a.provisioner.Provision(ctx, t); err != nil {
		// Keep the record with failed status so the operator can retry.
		t.Status = tenant.StatusSuspended
		t.UpdatedAt = time.Now().UTC()
		if uerr := a.registry.Update(ctx, t); uerr != nil {
			a.logger.Error("recording failed provision", "tenant_id", t.ID, "error", uerr)
		}

		if errors.Is(err, provision.ErrConflict) {
			c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	t.Status = tenant.StatusActive
	t.UpdatedAt = time.Now().UTC()
	if err := a.registry.Update(ctx, t); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	apiKey, err := a.registry.IssueAPIKey(ctx, t.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	if err := a.notifier.TenantProvisioned(ctx, t); err != nil {
		a.logger.Warn("provision webhook failed", "tenant_id", t.ID, "error", err)
	}

	a.logger.Info("tenant created", "tenant_id", t.ID, "slug", t.Slug, "agent_id", t.AgentID)
	c.JSON(http.StatusCreated, tenantResponse{Tenant: t, APIKey: apiKey})
}

func (a *API) listTenants(c *gin.Context) {
	tenants, err := a.registry.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenants": tenants})
}

func (a *API) getTenant(c *gin.Context) {
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

	usage, err := a.store.TenantUsage(ctx, t.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tenant": t, "usage": usage})
}

func (a *API) updateTenant(c *gin.Context) {
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

	var req updateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	previous := t.Status
	if req.Status != "" {
		if !validTransition(previous, req.Status) {
			c.JSON(http.StatusConflict, errorResponse{
				Error: "cannot move tenant from " + string(previous) + " to " + string(req.Status),
			})
			return
		}
		t.Status = req.Status
	}
	if req.Config != nil {
		t.Config = *req.Config
	}
	t.UpdatedAt = time.Now().UTC()

	if err := a.registry.Update(ctx, t); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	if req.Status != "" && req.Status != previous {
		if err := a.notifier.TenantStatusChanged(ctx, t, previous); err != nil {
			a.logger.Warn("status webhook failed", "tenant_id", t.ID, "error", err)
		}
	}

	c.JSON(http.StatusOK, tenantResponse{Tenant: t})
}

func (a *API) deleteTenant(c *gin.Context) {
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

	result, err := a.provisioner.Deprovision(ctx, t)
	if err != nil {
		c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	if err := a.store.DeleteByTenant(ctx, t.ID); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if err := a.registry.Delete(ctx, t.ID); err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	if err := a.notifier.TenantDeprovisioned(ctx, t); err != nil {
		a.logger.Warn("deprovision webhook failed", "tenant_id", t.ID, "error", err)
	}

	a.logger.Info("tenant deleted", "tenant_id", t.ID, "slug", t.Slug)
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (a *API) listConversations(c *gin.Context) {
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

	conversations, err := a.store.ListByTenant(ctx, t.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// validTransition enforces the tenant lifecycle: provisioning activates,
// active pauses or suspends, paused and suspended resume, anything can
// move to deleting.
func validTransition(from, to tenant.Status) bool {
	if to == tenant.StatusDeleting {
		return true
	}
	switch from {
	case tenant.StatusProvisioning:
		return to == tenant.StatusActive
	case tenant.StatusActive:
		return to == tenant.StatusPaused || to == tenant.StatusSuspended
	case tenant.StatusPaused, tenant.StatusSuspended:
		return to == tenant.StatusActive
	default:
		return false
	}
}

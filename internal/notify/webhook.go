// ABOUTME: Webhook notifier for tenant lifecycle events.
// ABOUTME: Posts JSON events with retries via hashicorp/go-retryablehttp.

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/BlueBirdBack/claw-desk/internal/tenant"
)

// Event names posted to the webhook.
const (
	EventProvisioned   = "tenant.provisioned"
	EventDeprovisioned = "tenant.deprovisioned"
	EventStatusChanged = "tenant.status_changed"
	EventEscalated     = "conversation.escalated"
)

// Event is the webhook payload for one lifecycle event.
type Event struct {
	Event      string    `json:"event"`
	TenantID   string    `json:"tenant_id"`
	TenantSlug string    `json:"tenant_slug,omitempty"`
	AgentID    string    `json:"agent_id,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Webhook posts lifecycle events to a configured URL. A Webhook with an
// empty URL discards events, so callers never need a nil check.
type Webhook struct {
	url    string
	http   *http.Client
	logger *slog.Logger
}

// NewWebhook creates a webhook notifier for the given URL. Pass an empty
// URL to disable delivery.
func NewWebhook(url string, logger *slog.Logger) *Webhook {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = nil // suppress default logging

	return &Webhook{
		url:    url,
		http:   retryClient.StandardClient(),
		logger: logger.With("component", "notify"),
	}
}

// Send delivers one event. Delivery failures are returned after retries
// are exhausted; callers typically log and move on, lifecycle operations
// never fail on a webhook error.
func (w *Webhook) Send(ctx context.Context, event Event) error {
	if w.url == "" {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	w.logger.Debug("lifecycle event delivered",
		"event", event.Event,
		"tenant_id", event.TenantID,
	)
	return nil
}

// TenantProvisioned reports a completed provisioning run.
func (w *Webhook) TenantProvisioned(ctx context.Context, t tenant.Tenant) error {
	return w.Send(ctx, Event{
		Event:      EventProvisioned,
		TenantID:   t.ID,
		TenantSlug: t.Slug,
		AgentID:    t.AgentID,
	})
}

// TenantDeprovisioned reports a completed deprovisioning run.
func (w *Webhook) TenantDeprovisioned(ctx context.Context, t tenant.Tenant) error {
	return w.Send(ctx, Event{
		Event:      EventDeprovisioned,
		TenantID:   t.ID,
		TenantSlug: t.Slug,
		AgentID:    t.AgentID,
	})
}

// TenantStatusChanged reports a tenant lifecycle transition.
func (w *Webhook) TenantStatusChanged(ctx context.Context, t tenant.Tenant, previous tenant.Status) error {
	return w.Send(ctx, Event{
		Event:      EventStatusChanged,
		TenantID:   t.ID,
		TenantSlug: t.Slug,
		Detail:     fmt.Sprintf("%s -> %s", previous, t.Status),
	})
}

// ConversationEscalated reports a conversation handed to a human operator.
func (w *Webhook) ConversationEscalated(ctx context.Context, tenantID, conversationID, assignedTo string) error {
	return w.Send(ctx, Event{
		Event:    EventEscalated,
		TenantID: tenantID,
		Detail:   fmt.Sprintf("conversation %s assigned to %s", conversationID, assignedTo),
	})
}

// ABOUTME: Typed OpenClaw gateway API methods layered on the correlated Call primitive.
// ABOUTME: Covers config snapshot/patch, chat send/history, and session listing.

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
)

// ConfigSnapshot is the remote configuration document plus its opaque
// version hash. A snapshot is read fresh before every mutation attempt and
// never cached across mutations.
type ConfigSnapshot struct {
	Config map[string]any `json:"config"`
	Hash   string         `json:"hash"`
}

// ChatSendParams are the inputs for sending a message into a session.
type ChatSendParams struct {
	SessionKey string
	Message    string
	AgentID    string
}

// ChatSendResult is the gateway's acknowledgement of a sent message.
type ChatSendResult struct {
	OK        bool   `json:"ok"`
	MessageID string `json:"message_id,omitempty"`
	Response  string `json:"response,omitempty"`
}

// ChatMessage is one message in a session's history.
type ChatMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp string         `json:"timestamp,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SessionEntry describes one live session on the gateway.
type SessionEntry struct {
	Key          string `json:"key"`
	AgentID      string `json:"agent_id"`
	LastActivity string `json:"last_activity,omitempty"`
	MessageCount int    `json:"message_count,omitempty"`
}

// SessionFilter narrows a ListSessions call. Zero values are omitted.
type SessionFilter struct {
	AgentID       string
	ActiveMinutes int
	Limit         int
}

// GetConfig fetches the current remote configuration document and its hash.
func (c *Client) GetConfig(ctx context.Context) (*ConfigSnapshot, error) {
	raw, err := c.Call(ctx, "config.get", nil)
	if err != nil {
		return nil, err
	}

	var snap ConfigSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decoding config snapshot: %w", err)
	}
	return &snap, nil
}

// PatchConfig submits a patch conditioned on the base hash the caller read.
// The remote side rejects the patch if the document has moved on.
func (c *Client) PatchConfig(ctx context.Context, patch map[string]any, baseHash string) error {
	_, err := c.Call(ctx, "config.patch", map[string]any{
		"patch":    patch,
		"baseHash": baseHash,
	})
	return err
}

// ChatSend delivers a message into a session.
func (c *Client) ChatSend(ctx context.Context, params ChatSendParams) (*ChatSendResult, error) {
	args := map[string]any{
		"key":     params.SessionKey,
		"message": params.Message,
	}
	if params.AgentID != "" {
		args["agentId"] = params.AgentID
	}

	raw, err := c.Call(ctx, "chat.send", args)
	if err != nil {
		return nil, err
	}

	var result ChatSendResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding chat.send result: %w", err)
	}
	return &result, nil
}

// ChatHistory returns up to limit messages from a session.
func (c *Client) ChatHistory(ctx context.Context, sessionKey string, limit int) ([]ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	raw, err := c.Call(ctx, "chat.history", map[string]any{
		"key":   sessionKey,
		"limit": limit,
	})
	if err != nil {
		return nil, err
	}

	var result struct {
		Messages []ChatMessage `json:"messages"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding chat.history result: %w", err)
	}
	return result.Messages, nil
}

// ListSessions returns live sessions, optionally filtered.
func (c *Client) ListSessions(ctx context.Context, filter SessionFilter) ([]SessionEntry, error) {
	args := map[string]any{}
	if filter.AgentID != "" {
		args["agentId"] = filter.AgentID
	}
	if filter.ActiveMinutes > 0 {
		args["activeMinutes"] = filter.ActiveMinutes
	}
	if filter.Limit > 0 {
		args["limit"] = filter.Limit
	}

	raw, err := c.Call(ctx, "sessions.list", args)
	if err != nil {
		return nil, err
	}

	var result struct {
		Sessions []SessionEntry `json:"sessions"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding sessions.list result: %w", err)
	}
	return result.Sessions, nil
}

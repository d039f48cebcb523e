// ABOUTME: Tests for the typed OpenClaw API methods.
// ABOUTME: Verifies wire methods, parameter shapes, and result decoding.

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// respond waits for the next sent frame and injects a result for it.
func respond(t *testing.T, dialer *fakeDialer, conn *fakeConn, frameIndex int, result string) request {
	t.Helper()
	frames := waitForFrames(t, conn, frameIndex+1)
	var req request
	require.NoError(t, json.Unmarshal(frames[frameIndex], &req))
	dialer.inject(fmt.Sprintf(`{"id": %d, "result": %s}`, req.ID, result))
	return req
}

func TestGetConfig(t *testing.T) {
	dialer := &fakeDialer{}
	client := newTestClient(t, Options{}, dialer)

	type out struct {
		snap *ConfigSnapshot
		err  error
	}
	done := make(chan out, 1)
	go func() {
		snap, err := client.GetConfig(context.Background())
		done <- out{snap, err}
	}()

	req := respond(t, dialer, waitForConn(t, dialer), 0,
		`{"config": {"agents": {"list": [{"id": "tenant-acme"}]}}, "hash": "abc123"}`)
	assert.Equal(t, "config.get", req.Method)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "abc123", res.snap.Hash)
	agents, ok := res.snap.Config["agents"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, agents["list"], 1)
}

func TestPatchConfigSendsBaseHash(t *testing.T) {
	dialer := &fakeDialer{}
	client := newTestClient(t, Options{}, dialer)

	done := make(chan error, 1)
	go func() {
		done <- client.PatchConfig(context.Background(), map[string]any{"agents": map[string]any{}}, "base-1")
	}()

	conn := waitForConn(t, dialer)
	frames := waitForFrames(t, conn, 1)

	var sent struct {
		ID     uint64 `json:"id"`
		Method string `json:"method"`
		Params struct {
			Patch    map[string]any `json:"patch"`
			BaseHash string         `json:"baseHash"`
		} `json:"params"`
	}
	require.NoError(t, json.Unmarshal(frames[0], &sent))
	assert.Equal(t, "config.patch", sent.Method)
	assert.Equal(t, "base-1", sent.Params.BaseHash)
	require.Contains(t, sent.Params.Patch, "agents")

	dialer.inject(fmt.Sprintf(`{"id": %d, "result": null}`, sent.ID))
	require.NoError(t, <-done)
}

func TestChatSend(t *testing.T) {
	dialer := &fakeDialer{}
	client := newTestClient(t, Options{}, dialer)

	type out struct {
		res *ChatSendResult
		err error
	}
	done := make(chan out, 1)
	go func() {
		res, err := client.ChatSend(context.Background(), ChatSendParams{
			SessionKey: "agent:tenant-acme:customer-42",
			Message:    "hello",
			AgentID:    "tenant-acme",
		})
		done <- out{res, err}
	}()

	req := respond(t, dialer, waitForConn(t, dialer), 0, `{"ok": true, "message_id": "m-1"}`)
	assert.Equal(t, "chat.send", req.Method)

	res := <-done
	require.NoError(t, res.err)
	assert.True(t, res.res.OK)
	assert.Equal(t, "m-1", res.res.MessageID)
}

func TestChatHistory(t *testing.T) {
	dialer := &fakeDialer{}
	client := newTestClient(t, Options{}, dialer)

	type out struct {
		msgs []ChatMessage
		err  error
	}
	done := make(chan out, 1)
	go func() {
		msgs, err := client.ChatHistory(context.Background(), "agent:tenant-acme:customer-42", 10)
		done <- out{msgs, err}
	}()

	req := respond(t, dialer, waitForConn(t, dialer), 0,
		`{"messages": [{"role": "user", "content": "hi"}, {"role": "assistant", "content": "hello"}]}`)
	assert.Equal(t, "chat.history", req.Method)

	res := <-done
	require.NoError(t, res.err)
	require.Len(t, res.msgs, 2)
	assert.Equal(t, "assistant", res.msgs[1].Role)
}

func TestListSessionsOmitsZeroFilters(t *testing.T) {
	dialer := &fakeDialer{}
	client := newTestClient(t, Options{}, dialer)

	done := make(chan error, 1)
	go func() {
		_, err := client.ListSessions(context.Background(), SessionFilter{AgentID: "tenant-acme"})
		done <- err
	}()

	conn := waitForConn(t, dialer)
	frames := waitForFrames(t, conn, 1)

	var sent struct {
		ID     uint64         `json:"id"`
		Method string         `json:"method"`
		Params map[string]any `json:"params"`
	}
	require.NoError(t, json.Unmarshal(frames[0], &sent))
	assert.Equal(t, "sessions.list", sent.Method)
	assert.Contains(t, sent.Params, "agentId")
	assert.NotContains(t, sent.Params, "limit")
	assert.NotContains(t, sent.Params, "activeMinutes")

	dialer.inject(fmt.Sprintf(`{"id": %d, "result": {"sessions": []}}`, sent.ID))
	require.NoError(t, <-done)
}

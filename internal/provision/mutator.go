// ABOUTME: Optimistic-concurrency mutation of the shared OpenClaw config document.
// ABOUTME: Read snapshot + hash, patch the agent list conditioned on that hash.

package provision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BlueBirdBack/claw-desk/internal/gateway"
	"github.com/BlueBirdBack/claw-desk/internal/tenant"
)

// Mutation errors.
var (
	// ErrDuplicateAgent means an add was requested for an agent id that is
	// already present in the remote document. No mutation is performed.
	ErrDuplicateAgent = errors.New("agent already exists in gateway config")

	// ErrConflict means the remote side rejected a patch because the
	// supplied base hash no longer matches the current document version.
	ErrConflict = errors.New("gateway config changed concurrently")
)

// conflictCode is the error code the gateway uses for stale-hash rejections.
const conflictCode = 409

// ConfigAPI is the slice of the gateway client the mutator needs.
type ConfigAPI interface {
	GetConfig(ctx context.Context) (*gateway.ConfigSnapshot, error)
	PatchConfig(ctx context.Context, patch map[string]any, baseHash string) error
}

// Mutator adds and removes agent entries in the shared remote configuration
// document using a compare-and-swap discipline keyed by the document's
// version hash. No client-side lock is taken: a concurrent writer is
// detected remotely via hash mismatch and surfaces as ErrConflict.
//
// There is no retry loop here. Conflict resolution belongs to the caller,
// which knows whether a retry is safe.
type Mutator struct {
	api    ConfigAPI
	logger *slog.Logger
}

// NewMutator creates a Mutator over the given config API.
func NewMutator(api ConfigAPI, logger *slog.Logger) *Mutator {
	return &Mutator{
		api:    api,
		logger: logger.With("component", "mutator"),
	}
}

// AddAgent appends an agent entry to the remote agent list. If an entry with
// the same id already exists, it fails with ErrDuplicateAgent and performs
// no mutation.
func (m *Mutator) AddAgent(ctx context.Context, cfg tenant.AgentConfig) error {
	snap, err := m.api.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("fetching config snapshot: %w", err)
	}

	agents, list := agentList(snap.Config)
	for _, entry := range list {
		if entryID(entry) == cfg.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateAgent, cfg.ID)
		}
	}

	entry, err := agentEntry(cfg)
	if err != nil {
		return err
	}

	agents["list"] = append(list, entry)
	if err := m.api.PatchConfig(ctx, map[string]any{"agents": agents}, snap.Hash); err != nil {
		return m.mapConflict(err)
	}

	m.logger.Info("agent added to gateway config", "agent_id", cfg.ID)
	return nil
}

// RemoveAgent filters an agent entry out of the remote agent list. Removing
// an id that is not present succeeds without issuing a mutating call.
func (m *Mutator) RemoveAgent(ctx context.Context, agentID string) error {
	snap, err := m.api.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("fetching config snapshot: %w", err)
	}

	agents, list := agentList(snap.Config)
	filtered := make([]any, 0, len(list))
	for _, entry := range list {
		if entryID(entry) != agentID {
			filtered = append(filtered, entry)
		}
	}

	if len(filtered) == len(list) {
		// Agent wasn't there. Idempotent.
		return nil
	}

	agents["list"] = filtered
	if err := m.api.PatchConfig(ctx, map[string]any{"agents": agents}, snap.Hash); err != nil {
		return m.mapConflict(err)
	}

	m.logger.Info("agent removed from gateway config", "agent_id", agentID)
	return nil
}

// mapConflict translates a remote stale-hash rejection into ErrConflict.
// Other errors pass through unmodified.
func (m *Mutator) mapConflict(err error) error {
	var remoteErr *gateway.RemoteError
	if errors.As(err, &remoteErr) && remoteErr.Code == conflictCode {
		return fmt.Errorf("%w: %s", ErrConflict, remoteErr.Message)
	}
	return err
}

// agentList extracts the agents section and its entry list from the config
// document, tolerating absent or malformed sections.
func agentList(config map[string]any) (map[string]any, []any) {
	agents, ok := config["agents"].(map[string]any)
	if !ok {
		agents = map[string]any{}
	}
	list, ok := agents["list"].([]any)
	if !ok {
		list = nil
	}
	return agents, list
}

// entryID reads the id of one agent list entry.
func entryID(entry any) string {
	obj, ok := entry.(map[string]any)
	if !ok {
		return ""
	}
	id, _ := obj["id"].(string)
	return id
}

// agentEntry converts an AgentConfig to its document representation,
// dropping empty optional fields.
func agentEntry(cfg tenant.AgentConfig) (map[string]any, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding agent config: %w", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decoding agent config: %w", err)
	}
	return entry, nil
}

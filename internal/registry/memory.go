// ABOUTME: Thread-safe in-memory tenant registry.
// ABOUTME: Keeps tenants, slug index, and API key index under one lock.

package registry

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/BlueBirdBack/claw-desk/internal/tenant"
)

// Memory is an in-memory Registry. All maps are guarded by one RWMutex;
// reads take the shared lock.
type Memory struct {
	mu      sync.RWMutex
	tenants map[string]tenant.Tenant // by id
	slugs   map[string]string        // slug -> id
	apiKeys map[string]string        // key -> tenant id
	logger  *slog.Logger
}

// NewMemory creates an empty in-memory registry.
func NewMemory(logger *slog.Logger) *Memory {
	return &Memory{
		tenants: make(map[string]tenant.Tenant),
		slugs:   make(map[string]string),
		apiKeys: make(map[string]string),
		logger:  logger.With("component", "registry"),
	}
}

func (m *Memory) Create(ctx context.Context, t tenant.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.slugs[t.Slug]; taken {
		return fmt.Errorf("%w: %s", ErrDuplicateSlug, t.Slug)
	}
	if _, exists := m.tenants[t.ID]; exists {
		return fmt.Errorf("tenant %s already exists", t.ID)
	}

	m.tenants[t.ID] = t
	m.slugs[t.Slug] = t.ID

	m.logger.Info("tenant registered", "tenant_id", t.ID, "slug", t.Slug)
	return nil
}

func (m *Memory) GetByID(ctx context.Context, id string) (tenant.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tenants[id]
	if !ok {
		return tenant.Tenant{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t, nil
}

func (m *Memory) GetBySlug(ctx context.Context, slug string) (tenant.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.slugs[slug]
	if !ok {
		return tenant.Tenant{}, fmt.Errorf("%w: slug %s", ErrNotFound, slug)
	}
	return m.tenants[id], nil
}

func (m *Memory) List(ctx context.Context) ([]tenant.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]tenant.Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) Update(ctx context.Context, t tenant.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.tenants[t.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, t.ID)
	}
	if prev.Slug != t.Slug {
		if _, taken := m.slugs[t.Slug]; taken {
			return fmt.Errorf("%w: %s", ErrDuplicateSlug, t.Slug)
		}
		delete(m.slugs, prev.Slug)
		m.slugs[t.Slug] = t.ID
	}
	m.tenants[t.ID] = t
	return nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tenants[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.tenants, id)
	delete(m.slugs, t.Slug)
	for key, owner := range m.apiKeys {
		if owner == id {
			delete(m.apiKeys, key)
		}
	}

	m.logger.Info("tenant removed", "tenant_id", id, "slug", t.Slug)
	return nil
}

func (m *Memory) IssueAPIKey(ctx context.Context, tenantID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tenants[tenantID]; !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, tenantID)
	}

	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	key := "sk-" + hex.EncodeToString(buf)
	m.apiKeys[key] = tenantID
	return key, nil
}

func (m *Memory) ResolveAPIKey(ctx context.Context, key string) (tenant.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.apiKeys[key]
	if !ok {
		return tenant.Tenant{}, ErrUnknownAPIKey
	}
	return m.tenants[id], nil
}

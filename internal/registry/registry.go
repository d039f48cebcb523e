// ABOUTME: Tenant registry interface and its sentinel errors.
// ABOUTME: Backends keep tenant records and their issued API keys.

package registry

import (
	"context"
	"errors"

	"github.com/BlueBirdBack/claw-desk/internal/tenant"
)

// Registry errors
var (
	ErrNotFound      = errors.New("tenant not found")
	ErrDuplicateSlug = errors.New("tenant slug already registered")
	ErrUnknownAPIKey = errors.New("unknown api key")
)

// Registry stores tenant records and resolves the API keys issued to them.
type Registry interface {
	// Create stores a new tenant. The slug must be unique.
	Create(ctx context.Context, t tenant.Tenant) error

	// GetByID returns the tenant with the given id.
	GetByID(ctx context.Context, id string) (tenant.Tenant, error)

	// GetBySlug returns the tenant with the given slug.
	GetBySlug(ctx context.Context, slug string) (tenant.Tenant, error)

	// List returns all tenants ordered by creation time.
	List(ctx context.Context) ([]tenant.Tenant, error)

	// Update replaces a stored tenant record.
	Update(ctx context.Context, t tenant.Tenant) error

	// Delete removes a tenant and revokes its API keys.
	Delete(ctx context.Context, id string) error

	// IssueAPIKey mints a new API key for the tenant and returns it.
	// The key is returned exactly once; only a lookup is kept.
	IssueAPIKey(ctx context.Context, tenantID string) (string, error)

	// ResolveAPIKey returns the tenant an API key belongs to.
	ResolveAPIKey(ctx context.Context, key string) (tenant.Tenant, error)
}

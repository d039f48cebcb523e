// ABOUTME: Tests for the in-memory tenant registry.
// ABOUTME: Covers slug uniqueness, list ordering, and API key lifecycle.

package registry

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BlueBirdBack/claw-desk/internal/tenant"
)

func newTestRegistry() *Memory {
	return NewMemory(slog.Default())
}

func sampleTenant(id, slug string, created time.Time) tenant.Tenant {
	return tenant.Tenant{
		ID:        id,
		Name:      strings.ToUpper(slug),
		Slug:      slug,
		Status:    tenant.StatusActive,
		CreatedAt: created,
	}
}

func TestCreateAndGet(t *testing.T) {
	reg := newTestRegistry()
	ctx := context.Background()

	tn := sampleTenant("t1", "acme", time.Now())
	require.NoError(t, reg.Create(ctx, tn))

	byID, err := reg.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "acme", byID.Slug)

	bySlug, err := reg.GetBySlug(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "t1", bySlug.ID)
}

func TestCreateRejectsDuplicateSlug(t *testing.T) {
	reg := newTestRegistry()
	ctx := context.Background()

	require.NoError(t, reg.Create(ctx, sampleTenant("t1", "acme", time.Now())))
	err := reg.Create(ctx, sampleTenant("t2", "acme", time.Now()))
	require.ErrorIs(t, err, ErrDuplicateSlug)

	// The failed create left nothing behind.
	_, err = reg.GetByID(ctx, "t2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetMissing(t *testing.T) {
	reg := newTestRegistry()
	ctx := context.Background()

	_, err := reg.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = reg.GetBySlug(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListOrdersByCreation(t *testing.T) {
	reg := newTestRegistry()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, reg.Create(ctx, sampleTenant("t2", "beta", base.Add(time.Hour))))
	require.NoError(t, reg.Create(ctx, sampleTenant("t1", "alpha", base)))
	require.NoError(t, reg.Create(ctx, sampleTenant("t3", "gamma", base.Add(2*time.Hour))))

	list, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "t1", list[0].ID)
	assert.Equal(t, "t2", list[1].ID)
	assert.Equal(t, "t3", list[2].ID)
}

func TestUpdateReindexesSlug(t *testing.T) {
	reg := newTestRegistry()
	ctx := context.Background()

	tn := sampleTenant("t1", "acme", time.Now())
	require.NoError(t, reg.Create(ctx, tn))

	tn.Slug = "acme-corp"
	tn.Status = tenant.StatusPaused
	require.NoError(t, reg.Update(ctx, tn))

	_, err := reg.GetBySlug(ctx, "acme")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := reg.GetBySlug(ctx, "acme-corp")
	require.NoError(t, err)
	assert.Equal(t, tenant.StatusPaused, got.Status)
}

func TestUpdateRejectsSlugCollision(t *testing.T) {
	reg := newTestRegistry()
	ctx := context.Background()

	require.NoError(t, reg.Create(ctx, sampleTenant("t1", "acme", time.Now())))
	require.NoError(t, reg.Create(ctx, sampleTenant("t2", "globex", time.Now())))

	moved := sampleTenant("t2", "acme", time.Now())
	require.ErrorIs(t, reg.Update(ctx, moved), ErrDuplicateSlug)
}

func TestUpdateMissing(t *testing.T) {
	reg := newTestRegistry()
	err := reg.Update(context.Background(), sampleTenant("ghost", "ghost", time.Now()))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRevokesAPIKeys(t *testing.T) {
	reg := newTestRegistry()
	ctx := context.Background()

	require.NoError(t, reg.Create(ctx, sampleTenant("t1", "acme", time.Now())))
	key, err := reg.IssueAPIKey(ctx, "t1")
	require.NoError(t, err)

	require.NoError(t, reg.Delete(ctx, "t1"))

	_, err = reg.GetByID(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = reg.ResolveAPIKey(ctx, key)
	assert.ErrorIs(t, err, ErrUnknownAPIKey)

	// The slug is free again.
	require.NoError(t, reg.Create(ctx, sampleTenant("t2", "acme", time.Now())))
}

func TestAPIKeyLifecycle(t *testing.T) {
	reg := newTestRegistry()
	ctx := context.Background()

	require.NoError(t, reg.Create(ctx, sampleTenant("t1", "acme", time.Now())))

	key, err := reg.IssueAPIKey(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "sk-"))

	other, err := reg.IssueAPIKey(ctx, "t1")
	require.NoError(t, err)
	assert.NotEqual(t, key, other, "keys must be unique")

	got, err := reg.ResolveAPIKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID)

	_, err = reg.ResolveAPIKey(ctx, "sk-bogus")
	assert.ErrorIs(t, err, ErrUnknownAPIKey)
}

func TestIssueAPIKeyForUnknownTenant(t *testing.T) {
	reg := newTestRegistry()
	_, err := reg.IssueAPIKey(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

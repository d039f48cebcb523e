// ABOUTME: Tenancy context orchestrating the bootstrapper chain transactionally.
// ABOUTME: Ordered activation with exactly-once reverse-order rollback on partial failure.

package tenancy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BlueBirdBack/claw-desk/internal/tenant"
)

// Bootstrapper is a capability unit that configures one subsystem for the
// active tenant and unconfigures it when the context ends.
type Bootstrapper interface {
	Name() string
	Activate(ctx context.Context, t tenant.Tenant) error
	Deactivate(ctx context.Context) error
}

// ActivationError reports which bootstrapper aborted an Initialize. The
// underlying cause is preserved for errors.Is/As.
type ActivationError struct {
	Bootstrapper string
	Err          error
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("activating bootstrapper %q: %v", e.Bootstrapper, e.Err)
}

func (e *ActivationError) Unwrap() error { return e.Err }

// Context manages the current tenant context. At most one tenant is active
// at a time; the activated subsequence of bootstrappers is the undo log for
// rollback.
//
// A Context is not safe for concurrently overlapping Initialize/End/Run
// calls on the same instance: the undo log is mutated across multiple
// blocking operations. Callers must serialize these.
type Context struct {
	bootstrappers []Bootstrapper
	logger        *slog.Logger

	current     *tenant.Tenant
	initialized bool
	activated   []Bootstrapper
}

// NewContext creates a tenancy context over the given bootstrapper chain.
// The chain's order is the activation order; the Context owns the slice for
// its lifetime.
func NewContext(bootstrappers []Bootstrapper, logger *slog.Logger) *Context {
	return &Context{
		bootstrappers: bootstrappers,
		logger:        logger.With("component", "tenancy"),
	}
}

// Tenant returns the currently active tenant, or nil in central context.
func (c *Context) Tenant() *tenant.Tenant {
	return c.current
}

// Initialized reports whether a tenant context is currently active.
func (c *Context) Initialized() bool {
	return c.initialized
}

// Initialize activates the bootstrapper chain for the given tenant, strictly
// in configured order.
//
// Initializing the tenant that is already active is a no-op. Initializing
// while a different tenant is active first ends that context. If any
// Activate fails, every bootstrapper that succeeded is deactivated in
// reverse order (failures logged, never escalated), the context returns to
// central, and the original activation error is returned.
func (c *Context) Initialize(ctx context.Context, t tenant.Tenant) error {
	if c.initialized && c.current != nil && c.current.ID == t.ID {
		return nil
	}

	if c.initialized {
		c.End(ctx)
	}

	c.current = &t
	c.activated = c.activated[:0]

	for _, b := range c.bootstrappers {
		if err := b.Activate(ctx, t); err != nil {
			c.revertActivated(ctx)
			c.current = nil
			c.initialized = false
			c.activated = nil
			return &ActivationError{Bootstrapper: b.Name(), Err: err}
		}
		c.activated = append(c.activated, b)
	}

	c.initialized = true
	c.logger.Debug("tenant context initialized", "tenant_id", t.ID, "slug", t.Slug)
	return nil
}

// End reverts to central context, deactivating the activated subsequence in
// reverse order. Each deactivation is attempted exactly once; failures are
// logged and do not abort the loop. Ending an uninitialized context is a
// no-op.
func (c *Context) End(ctx context.Context) {
	if !c.initialized {
		return
	}

	c.revertActivated(ctx)

	c.logger.Debug("tenant context ended", "tenant_id", c.current.ID)
	c.current = nil
	c.initialized = false
	c.activated = nil
}

// Run executes fn in the given tenant's context, then restores the previous
// context — the previously active tenant, or central if there was none —
// even when fn fails. The error of fn (or of the initial activation) is
// reported after restoration completes; a restoration failure surfaces only
// when there is no primary error.
func (c *Context) Run(ctx context.Context, t tenant.Tenant, fn func(context.Context, tenant.Tenant) error) (err error) {
	previous := c.current

	defer func() {
		rerr := c.restore(ctx, previous)
		if err == nil {
			err = rerr
		} else if rerr != nil {
			c.logger.Error("restoring previous context failed", "error", rerr)
		}
	}()

	if err = c.Initialize(ctx, t); err != nil {
		return err
	}
	return fn(ctx, t)
}

// Central executes fn with no tenant active: the current context is ended
// first, and fn receives the previously active tenant (or nil). The previous
// tenant context is re-initialized afterward.
func (c *Context) Central(ctx context.Context, fn func(context.Context, *tenant.Tenant) error) error {
	previous := c.current
	c.End(ctx)

	err := fn(ctx, previous)

	if previous != nil {
		if ierr := c.Initialize(ctx, *previous); ierr != nil {
			if err == nil {
				return ierr
			}
			c.logger.Error("restoring previous context failed", "error", ierr)
		}
	}
	return err
}

// RunForMultiple executes fn once per tenant, in input order, initializing
// each tenant's context before its invocation. The original context is
// restored afterward. The first failure stops the iteration; restoration
// still runs.
func (c *Context) RunForMultiple(ctx context.Context, tenants []tenant.Tenant, fn func(context.Context, tenant.Tenant) error) (err error) {
	original := c.current

	defer func() {
		rerr := c.restore(ctx, original)
		if err == nil {
			err = rerr
		} else if rerr != nil {
			c.logger.Error("restoring original context failed", "error", rerr)
		}
	}()

	for _, t := range tenants {
		if err = c.Initialize(ctx, t); err != nil {
			return err
		}
		if err = fn(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// restore brings the context back to a remembered tenant, or to central.
func (c *Context) restore(ctx context.Context, previous *tenant.Tenant) error {
	if previous != nil {
		return c.Initialize(ctx, *previous)
	}
	c.End(ctx)
	return nil
}

// revertActivated deactivates the activated subsequence in strict reverse
// order. Bootstrappers whose activation never ran are not touched.
func (c *Context) revertActivated(ctx context.Context) {
	for i := len(c.activated) - 1; i >= 0; i-- {
		b := c.activated[i]
		if err := b.Deactivate(ctx); err != nil {
			c.logger.Error("bootstrapper deactivation failed", "bootstrapper", b.Name(), "error", err)
		}
	}
}

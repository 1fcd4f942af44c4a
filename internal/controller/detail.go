package controller

import (
	"context"
	"fmt"
	"sync"

	"mesa/internal/backend"
	"mesa/internal/modules/order"
	"mesa/internal/poll"
	"mesa/internal/types"
)

// DetailAPI is the slice of the backend client the tracking view needs.
type DetailAPI interface {
	FetchOrderByID(ctx context.Context, id types.ID) (*order.Order, error)
	UpdateOrderState(ctx context.Context, id types.ID, state order.Status) (*order.Order, error)
}

// DetailController tracks one order by identifier under the same polling
// contract as the list: loud initial load, quiet background refreshes.
type DetailController struct {
	api   DetailAPI
	roles backend.RoleSource
	id    types.ID
	opts  options

	mu      sync.Mutex
	poller  *poll.Poller
	order   *order.Order
	role    order.Role
	loading bool
	lastErr error
}

func NewDetail(api DetailAPI, roles backend.RoleSource, id types.ID, opts ...Option) *DetailController {
	return &DetailController{api: api, roles: roles, id: id, opts: applyOptions(opts)}
}

func (c *DetailController) Start(ctx context.Context) error {
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()

	roleNames, err := c.roles.Roles(ctx)
	if err != nil {
		c.opts.logger.Warn("role resolution failed, acting unprivileged", "err", err)
		roleNames = nil
	}
	role := order.StrongestRole(roleNames)

	o, err := c.api.FetchOrderByID(ctx, c.id)

	c.mu.Lock()
	c.loading = false
	c.role = role
	if err != nil {
		c.lastErr = err
		c.mu.Unlock()
		return fmt.Errorf("initial load: %w", err)
	}
	c.order = o
	c.lastErr = nil

	pollOpts := []poll.Option{poll.WithInterval(c.opts.interval), poll.WithImmediate(false)}
	if c.opts.clock != nil {
		pollOpts = append(pollOpts, poll.WithClock(c.opts.clock))
	}
	c.poller = poll.Start(c.refresh, pollOpts...)
	c.mu.Unlock()
	return nil
}

func (c *DetailController) Stop() {
	c.mu.Lock()
	p := c.poller
	c.mu.Unlock()
	if p != nil {
		p.Stop()
	}
}

func (c *DetailController) refresh(ctx context.Context) error {
	if c.opts.metrics != nil {
		c.opts.metrics.Refreshes.WithLabelValues("order_detail").Inc()
	}
	o, err := c.api.FetchOrderByID(ctx, c.id)
	if err != nil {
		if c.opts.metrics != nil {
			c.opts.metrics.Failures.WithLabelValues("order_detail").Inc()
		}
		c.opts.logger.Debug("background refresh failed", "order_id", c.id, "err", err)
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.mu.Lock()
	c.order = o
	c.mu.Unlock()
	return nil
}

// Order returns a copy of the tracked order, or nil before the first load.
func (c *DetailController) Order() *order.Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.order == nil {
		return nil
	}
	cp := *c.order
	cp.LineItems = append([]order.LineItem(nil), c.order.LineItems...)
	return &cp
}

func (c *DetailController) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *DetailController) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *DetailController) Role() order.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// Actions lists the transitions the actor may request for the tracked order.
func (c *DetailController) Actions() []order.Status {
	c.mu.Lock()
	o := c.order
	role := c.role
	c.mu.Unlock()
	if o == nil {
		return nil
	}
	return order.AllowedNextStates(o.Status, role)
}

func (c *DetailController) UpdateState(ctx context.Context, next order.Status) error {
	c.mu.Lock()
	o := c.order
	role := c.role
	c.mu.Unlock()
	if o == nil {
		return backend.ErrNotFound
	}
	if !order.RoleAllows(o.Status, role, next) {
		return ErrNotAllowed
	}
	if _, err := c.api.UpdateOrderState(ctx, c.id, next); err != nil {
		c.setErr(err)
		return err
	}
	c.setErr(nil)
	c.refreshNow()
	return nil
}

func (c *DetailController) refreshNow() {
	c.mu.Lock()
	p := c.poller
	c.mu.Unlock()
	if p == nil || p.Context().Err() != nil {
		return
	}
	_ = c.refresh(p.Context())
}

func (c *DetailController) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// Controllers bind the poller, the transition policy, and the backend
// client into a usable unit per view.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mesa/internal/backend"
	"mesa/internal/metrics"
	"mesa/internal/modules/order"
	"mesa/internal/poll"
	"mesa/internal/types"
)

// OrderAPI is the slice of the backend client the list view needs.
type OrderAPI interface {
	FetchOrders(ctx context.Context) ([]order.Order, error)
	UpdateOrderState(ctx context.Context, id types.ID, state order.Status) (*order.Order, error)
	DeleteOrder(ctx context.Context, id types.ID) (bool, error)
}

var ErrNotAllowed = errors.New("transition not allowed for this role")

type options struct {
	interval time.Duration
	clock    poll.Clock
	logger   *slog.Logger
	metrics  *metrics.PollMetrics
}

type Option func(*options)

func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

func WithClock(c poll.Clock) Option {
	return func(o *options) { o.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(m *metrics.PollMetrics) Option {
	return func(o *options) { o.metrics = m }
}

func applyOptions(opts []Option) options {
	o := options{interval: 5 * time.Second, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ListController keeps a fresh local copy of the order list and issues
// policy-gated mutations against the backend.
type ListController struct {
	api   OrderAPI
	roles backend.RoleSource
	opts  options

	mu      sync.Mutex
	poller  *poll.Poller
	orders  []order.Order
	role    order.Role
	loading bool
	lastErr error
}

func NewList(api OrderAPI, roles backend.RoleSource, opts ...Option) *ListController {
	return &ListController{api: api, roles: roles, opts: applyOptions(opts)}
}

// Start performs one loud initial load, resolves the actor's roles once,
// then polls quietly in the background. The initial load's failure is the
// only fetch failure surfaced to the caller.
func (c *ListController) Start(ctx context.Context) error {
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()

	roleNames, err := c.roles.Roles(ctx)
	if err != nil {
		c.opts.logger.Warn("role resolution failed, acting unprivileged", "err", err)
		roleNames = nil
	}
	role := order.StrongestRole(roleNames)

	orders, err := c.api.FetchOrders(ctx)

	c.mu.Lock()
	c.loading = false
	c.role = role
	if err != nil {
		c.lastErr = err
		c.mu.Unlock()
		return fmt.Errorf("initial load: %w", err)
	}
	c.orders = orders
	c.lastErr = nil

	// Background refreshes wait one interval first; the view already has
	// fresh data and must not flicker.
	pollOpts := []poll.Option{poll.WithInterval(c.opts.interval), poll.WithImmediate(false)}
	if c.opts.clock != nil {
		pollOpts = append(pollOpts, poll.WithClock(c.opts.clock))
	}
	c.poller = poll.Start(c.refresh, pollOpts...)
	c.mu.Unlock()
	return nil
}

// Stop is the only cleanup a view owes the controller. Forgetting it leaks
// a timer.
func (c *ListController) Stop() {
	c.mu.Lock()
	p := c.poller
	c.mu.Unlock()
	if p != nil {
		p.Stop()
	}
}

// refresh is the poll tick. Its errors are swallowed by design so the
// background refresh survives transient backend trouble; the poller context
// is the guard against publishing after Stop.
func (c *ListController) refresh(ctx context.Context) error {
	if c.opts.metrics != nil {
		c.opts.metrics.Refreshes.WithLabelValues("orders_list").Inc()
	}
	orders, err := c.api.FetchOrders(ctx)
	if err != nil {
		if c.opts.metrics != nil {
			c.opts.metrics.Failures.WithLabelValues("orders_list").Inc()
		}
		c.opts.logger.Debug("background refresh failed", "err", err)
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.mu.Lock()
	c.orders = orders
	c.mu.Unlock()
	return nil
}

// Orders returns a copy of the latest snapshot.
func (c *ListController) Orders() []order.Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]order.Order(nil), c.orders...)
}

func (c *ListController) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Err returns the last surfaced error: a failed initial load or a rejected
// mutation. Background refresh failures never land here.
func (c *ListController) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *ListController) Role() order.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// Actions lists the transitions the current actor may request for an order;
// this is what the view renders as buttons, so illegal options are never
// offered in the first place.
func (c *ListController) Actions(o order.Order) []order.Status {
	return order.AllowedNextStates(o.Status, c.Role())
}

// UpdateState requests a transition from the backend. No optimistic local
// mutation: on success one extra background refresh reconciles the local
// copy with the system of record.
func (c *ListController) UpdateState(ctx context.Context, id types.ID, next order.Status) error {
	current, ok := c.find(id)
	if !ok {
		return backend.ErrNotFound
	}
	if !order.RoleAllows(current.Status, c.Role(), next) {
		return ErrNotAllowed
	}
	if _, err := c.api.UpdateOrderState(ctx, id, next); err != nil {
		// Authority drift: the backend refused what the policy offered.
		// Surface the message and leave the local view for the next tick.
		c.setErr(err)
		return err
	}
	c.setErr(nil)
	c.refreshNow()
	return nil
}

func (c *ListController) Delete(ctx context.Context, id types.ID) error {
	if _, err := c.api.DeleteOrder(ctx, id); err != nil {
		c.setErr(err)
		return err
	}
	c.setErr(nil)
	c.refreshNow()
	return nil
}

// refreshNow runs one extra background refresh against the poller's
// context, so a controller stopped mid-mutation publishes nothing.
func (c *ListController) refreshNow() {
	c.mu.Lock()
	p := c.poller
	c.mu.Unlock()
	if p == nil || p.Context().Err() != nil {
		return
	}
	_ = c.refresh(p.Context())
}

func (c *ListController) find(id types.ID) (order.Order, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range c.orders {
		if o.ID == id {
			return o, true
		}
	}
	return order.Order{}, false
}

func (c *ListController) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mesa/internal/backend"
	"mesa/internal/modules/order"
	"mesa/internal/poll"
	"mesa/internal/types"
)

// fakeClock mirrors the poll package's virtual clock for controller tests.
type fakeClock struct {
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	when    time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := t.stopped
	t.stopped = true
	return !was
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) poll.Timer {
	t := &fakeTimer{when: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	target := c.now + d
	for {
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.when > target {
				continue
			}
			if next == nil || t.when < next.when {
				next = t
			}
		}
		if next == nil {
			break
		}
		next.stopped = true
		if next.when > c.now {
			c.now = next.when
		}
		next.f()
	}
	if target > c.now {
		c.now = target
	}
}

type fakeAPI struct {
	mu        sync.Mutex
	orders    []order.Order
	fetches   int
	fetchErr  error
	updateErr error
	updates   []order.Status
	deletes   []types.ID
}

func (f *fakeAPI) FetchOrders(context.Context) ([]order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]order.Order(nil), f.orders...), nil
}

func (f *fakeAPI) FetchOrderByID(_ context.Context, id types.ID) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	for _, o := range f.orders {
		if o.ID == id {
			cp := o
			return &cp, nil
		}
	}
	return nil, backend.ErrNotFound
}

func (f *fakeAPI) UpdateOrderState(_ context.Context, id types.ID, state order.Status) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.updates = append(f.updates, state)
	for i := range f.orders {
		if f.orders[i].ID == id {
			f.orders[i].Status = state
			cp := f.orders[i]
			return &cp, nil
		}
	}
	return nil, backend.ErrNotFound
}

func (f *fakeAPI) DeleteOrder(_ context.Context, id types.ID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	for i := range f.orders {
		if f.orders[i].ID == id {
			f.orders = append(f.orders[:i], f.orders[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAPI) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func startList(t *testing.T, api *fakeAPI, roles backend.RoleSource, clock *fakeClock) *ListController {
	t.Helper()
	c := NewList(api, roles, WithClock(clock), WithInterval(50*time.Millisecond))
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(c.Stop)
	return c
}

func TestListInitialLoadThenQuietPolling(t *testing.T) {
	clock := &fakeClock{}
	api := &fakeAPI{orders: []order.Order{{ID: 1, Status: order.StatusPending}}}
	c := startList(t, api, backend.StaticRoles{"manager"}, clock)

	if got := c.Orders(); len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("expected initial snapshot, got %+v", got)
	}
	if c.Loading() {
		t.Fatal("loading must be done after Start returns")
	}
	if api.fetchCount() != 1 {
		t.Fatalf("expected exactly the initial fetch, got %d", api.fetchCount())
	}

	// Background tick picks up backend changes without a loading phase.
	api.mu.Lock()
	api.orders[0].Status = order.StatusInPreparation
	api.mu.Unlock()
	clock.Advance(50 * time.Millisecond)

	if got := c.Orders(); got[0].Status != order.StatusInPreparation {
		t.Fatalf("expected refreshed snapshot, got %+v", got)
	}
}

func TestListInitialLoadFailureIsLoud(t *testing.T) {
	clock := &fakeClock{}
	api := &fakeAPI{fetchErr: errors.New("backend down")}
	c := NewList(api, backend.StaticRoles{"manager"}, WithClock(clock), WithInterval(50*time.Millisecond))

	if err := c.Start(context.Background()); err == nil {
		t.Fatal("expected initial load error")
	}
	if c.Err() == nil {
		t.Fatal("expected surfaced error after failed initial load")
	}
}

func TestListBackgroundFailureIsQuiet(t *testing.T) {
	clock := &fakeClock{}
	api := &fakeAPI{orders: []order.Order{{ID: 1, Status: order.StatusPending}}}
	c := startList(t, api, backend.StaticRoles{"manager"}, clock)

	api.mu.Lock()
	api.fetchErr = errors.New("blip")
	api.mu.Unlock()
	clock.Advance(50 * time.Millisecond)

	if c.Err() != nil {
		t.Fatalf("background failures must not surface, got %v", c.Err())
	}
	if got := c.Orders(); len(got) != 1 {
		t.Fatalf("stale snapshot should survive a failed refresh, got %+v", got)
	}

	// Polling survives the failure and reconciles on the next tick.
	api.mu.Lock()
	api.fetchErr = nil
	api.orders[0].Status = order.StatusDone
	api.mu.Unlock()
	clock.Advance(50 * time.Millisecond)

	if got := c.Orders(); got[0].Status != order.StatusDone {
		t.Fatalf("expected recovery on next tick, got %+v", got)
	}
}

func TestListActionsFollowRole(t *testing.T) {
	clock := &fakeClock{}
	api := &fakeAPI{orders: []order.Order{{ID: 1, Status: order.StatusInPreparation}}}

	kitchen := startList(t, api, backend.StaticRoles{"kitchen"}, clock)
	got := kitchen.Actions(kitchen.Orders()[0])
	if len(got) != 1 || got[0] != order.StatusDone {
		t.Fatalf("kitchen actions: expected [done], got %v", got)
	}

	manager := startList(t, api, backend.StaticRoles{"manager"}, clock)
	if got := manager.Actions(manager.Orders()[0]); len(got) != 2 {
		t.Fatalf("manager actions from in_preparation: expected 2, got %v", got)
	}
}

func TestListUpdateStateGatedByPolicy(t *testing.T) {
	clock := &fakeClock{}
	api := &fakeAPI{orders: []order.Order{{ID: 1, Status: order.StatusPending}}}
	c := startList(t, api, backend.StaticRoles{"kitchen"}, clock)

	err := c.UpdateState(context.Background(), 1, order.StatusCancelled)
	if !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("expected ErrNotAllowed, got %v", err)
	}
	if len(api.updates) != 0 {
		t.Fatal("an illegal transition must never reach the backend")
	}
}

func TestListUpdateStateRefreshesAfterSuccess(t *testing.T) {
	clock := &fakeClock{}
	api := &fakeAPI{orders: []order.Order{{ID: 1, Status: order.StatusPending}}}
	c := startList(t, api, backend.StaticRoles{"manager"}, clock)

	before := api.fetchCount()
	if err := c.UpdateState(context.Background(), 1, order.StatusInPreparation); err != nil {
		t.Fatalf("update: %v", err)
	}
	if api.fetchCount() != before+1 {
		t.Fatalf("expected one reconciling refresh after the mutation, got %d extra", api.fetchCount()-before)
	}
	if got := c.Orders(); got[0].Status != order.StatusInPreparation {
		t.Fatalf("expected reconciled snapshot, got %+v", got)
	}
}

func TestListBackendRejectionSurfacesAndKeepsLocalView(t *testing.T) {
	clock := &fakeClock{}
	api := &fakeAPI{orders: []order.Order{{ID: 1, Status: order.StatusPending}}}
	c := startList(t, api, backend.StaticRoles{"manager"}, clock)

	api.mu.Lock()
	api.updateErr = errors.New("backend: invalid state transition")
	api.mu.Unlock()

	if err := c.UpdateState(context.Background(), 1, order.StatusInPreparation); err == nil {
		t.Fatal("expected rejection to propagate")
	}
	if c.Err() == nil {
		t.Fatal("expected rejection to be surfaced")
	}
	if got := c.Orders(); got[0].Status != order.StatusPending {
		t.Fatalf("local view must stay unchanged pending reconciliation, got %+v", got)
	}
}

func TestListDeleteTriggersRefresh(t *testing.T) {
	clock := &fakeClock{}
	api := &fakeAPI{orders: []order.Order{{ID: 1, Status: order.StatusPending}, {ID: 2, Status: order.StatusDone}}}
	c := startList(t, api, backend.StaticRoles{"manager"}, clock)

	if err := c.Delete(context.Background(), 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := c.Orders(); len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("expected reconciled snapshot after delete, got %+v", got)
	}
}

func TestListStopEndsPolling(t *testing.T) {
	clock := &fakeClock{}
	api := &fakeAPI{orders: []order.Order{{ID: 1, Status: order.StatusPending}}}
	c := startList(t, api, backend.StaticRoles{"manager"}, clock)

	c.Stop()
	before := api.fetchCount()
	clock.Advance(time.Second)
	if api.fetchCount() != before {
		t.Fatalf("expected no fetches after stop, got %d extra", api.fetchCount()-before)
	}
}

func TestDetailTracksSingleOrder(t *testing.T) {
	clock := &fakeClock{}
	api := &fakeAPI{orders: []order.Order{{ID: 7, Status: order.StatusInPreparation}}}
	c := NewDetail(api, backend.StaticRoles{"kitchen"}, 7, WithClock(clock), WithInterval(50*time.Millisecond))
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer c.Stop()

	if o := c.Order(); o == nil || o.ID != 7 {
		t.Fatalf("expected tracked order, got %+v", o)
	}
	if got := c.Actions(); len(got) != 1 || got[0] != order.StatusDone {
		t.Fatalf("kitchen detail actions: expected [done], got %v", got)
	}

	if err := c.UpdateState(context.Background(), order.StatusDone); err != nil {
		t.Fatalf("update: %v", err)
	}
	if o := c.Order(); o.Status != order.StatusDone {
		t.Fatalf("expected reconciled order, got %+v", o)
	}

	// Once done, the kitchen has nothing further to offer.
	if got := c.Actions(); len(got) != 0 {
		t.Fatalf("expected no further kitchen actions, got %v", got)
	}
}

func TestDetailInitialLoadMissingOrder(t *testing.T) {
	clock := &fakeClock{}
	api := &fakeAPI{}
	c := NewDetail(api, backend.StaticRoles{"manager"}, 404, WithClock(clock), WithInterval(50*time.Millisecond))
	if err := c.Start(context.Background()); !errors.Is(err, backend.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from initial load, got %v", err)
	}
}

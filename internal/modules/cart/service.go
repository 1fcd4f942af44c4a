package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"mesa/internal/types"
)

// Item is what a screen hands over when the user picks something.
type Item struct {
	Kind      Kind
	ID        types.ID
	Title     string
	UnitPrice types.Money
	ImageRef  string
}

// Service owns the draft for one client session. Every mutation is a
// whole-state action: it produces the next draft from the previous one and
// persists the result, so handlers firing in any order cannot leave totals
// out of sync with the lines.
type Service struct {
	mu      sync.Mutex
	storage Storage
	key     string
	draft   Draft
}

// NewService rehydrates the session's draft from storage. Restore fails
// open: whatever cannot be read or parsed becomes an empty draft.
func NewService(ctx context.Context, storage Storage, session string) *Service {
	s := &Service{storage: storage, key: draftKey(session)}
	raw, err := storage.Get(ctx, s.key)
	if err != nil {
		raw = nil
	}
	s.draft = decodeDraftOrEmpty(raw)
	return s
}

// AddItem merges quantity into an existing (kind, id) line or appends a new
// one. Adding for a different branch than the current non-empty draft
// silently discards the old draft first: one branch at a time, no merge.
// A non-positive quantity makes the call a no-op.
func (s *Service) AddItem(ctx context.Context, branchID types.ID, item Item, quantity int64) error {
	if quantity <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.draft.clone()
	if len(next.Lines) > 0 && next.BranchID != branchID {
		next = Draft{}
	}
	next.BranchID = branchID

	if i := next.indexOf(item.Kind, item.ID); i >= 0 {
		next.Lines[i].Quantity += quantity
	} else {
		next.Lines = append(next.Lines, Line{
			Kind:      item.Kind,
			ID:        item.ID,
			Title:     item.Title,
			UnitPrice: item.UnitPrice,
			ImageRef:  item.ImageRef,
			Quantity:  quantity,
		})
	}
	return s.commit(ctx, next)
}

// SetItemQuantity replaces a line's quantity; zero or less removes the line
// instead of storing a non-positive value. Unknown lines are a no-op.
func (s *Service) SetItemQuantity(ctx context.Context, kind Kind, id types.ID, quantity int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.draft.indexOf(kind, id)
	if i < 0 {
		return nil
	}
	next := s.draft.clone()
	if quantity <= 0 {
		next.Lines = append(next.Lines[:i], next.Lines[i+1:]...)
	} else {
		next.Lines[i].Quantity = quantity
	}
	return s.commit(ctx, next)
}

func (s *Service) RemoveItem(ctx context.Context, kind Kind, id types.ID) error {
	return s.SetItemQuantity(ctx, kind, id, 0)
}

// Clear empties the lines but keeps the branch scope, so adding to the same
// branch right after does not need the branch re-resolved.
func (s *Service) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, Draft{BranchID: s.draft.BranchID})
}

// Snapshot returns a copy of the current draft.
func (s *Service) Snapshot() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.clone()
}

func (s *Service) TotalQuantity() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.TotalQuantity()
}

func (s *Service) TotalAmount() types.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.TotalAmount()
}

// commit persists the next draft and only then publishes it locally.
// Callers hold s.mu.
func (s *Service) commit(ctx context.Context, next Draft) error {
	raw, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("cart: encode draft: %w", err)
	}
	if err := s.storage.Set(ctx, s.key, raw); err != nil {
		return fmt.Errorf("cart: persist draft: %w", err)
	}
	s.draft = next
	return nil
}

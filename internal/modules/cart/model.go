// Draft order (cart) model: the pre-checkout item collection for one branch.
package cart

import (
	"mesa/internal/types"
)

type Kind string

const (
	KindProduct   Kind = "product"
	KindPromotion Kind = "promotion"
)

// Line is unique by (Kind, ID) within a draft.
type Line struct {
	Kind      Kind        `json:"kind"`
	ID        types.ID    `json:"id"`
	Title     string      `json:"title"`
	UnitPrice types.Money `json:"unit_price"`
	ImageRef  string      `json:"image_ref,omitempty"`
	Quantity  int64       `json:"quantity"`
}

// Draft holds items for exactly one branch at a time. BranchID stays set
// after Clear so re-adding to the same branch needs no re-resolution; it is
// zero only before the first add.
type Draft struct {
	BranchID types.ID `json:"branch_id"`
	Lines    []Line   `json:"lines"`
}

// TotalQuantity is recomputed from the lines on every call; it is never
// stored where it could drift.
func (d Draft) TotalQuantity() int64 {
	var n int64
	for _, l := range d.Lines {
		n += l.Quantity
	}
	return n
}

func (d Draft) TotalAmount() types.Money {
	var total types.Money
	for _, l := range d.Lines {
		total = total.Add(l.UnitPrice.Mul(l.Quantity))
	}
	return total
}

func (d Draft) indexOf(kind Kind, id types.ID) int {
	for i, l := range d.Lines {
		if l.Kind == kind && l.ID == id {
			return i
		}
	}
	return -1
}

func (d Draft) clone() Draft {
	out := Draft{BranchID: d.BranchID}
	if len(d.Lines) > 0 {
		out.Lines = append([]Line(nil), d.Lines...)
	}
	return out
}

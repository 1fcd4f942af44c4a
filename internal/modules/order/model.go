// Order aggregate and status definitions.
package order

import (
	"time"

	"mesa/internal/types"
)

type Status string

const (
	StatusPending       Status = "pending"
	StatusInPreparation Status = "in_preparation"
	StatusDone          Status = "done"
	StatusDelivery      Status = "delivery"
	StatusDelivered     Status = "delivered"
	StatusInvoiced      Status = "invoiced"
	StatusCancelled     Status = "cancelled"
	StatusRejected      Status = "rejected"
)

// Order is fetched from the backend; this core never writes it directly.
type Order struct {
	ID            types.ID    `json:"id"`
	BranchID      types.ID    `json:"branch_id"`
	Status        Status      `json:"status"`
	Date          string      `json:"date"`           // service date, YYYY-MM-DD
	EstimatedTime string      `json:"estimated_time"` // time of day, HH:MM
	LineItems     []LineItem  `json:"line_items"`
	Total         types.Money `json:"total"`
	CostTotal     types.Money `json:"cost_total"`
}

// LineItem references either a catalog product or a promotion, never both.
type LineItem struct {
	Quantity  int64       `json:"quantity"`
	Product   *UnitRef    `json:"product,omitempty"`
	Promotion *UnitRef    `json:"promotion,omitempty"`
	Subtotal  types.Money `json:"subtotal"`
}

type UnitRef struct {
	ID    types.ID `json:"id"`
	Title string   `json:"title"`
}

// AllowedTransitions is the canonical adjacency, independent of actor.
// Delivery is entered by the backend's dispatch process, never via a
// user-initiated transition, so no state lists it as a target here.
var AllowedTransitions = map[Status][]Status{
	StatusPending:       {StatusInPreparation, StatusCancelled, StatusRejected},
	StatusInPreparation: {StatusDone, StatusCancelled},
	StatusDone:          {StatusDelivered, StatusInvoiced},
	StatusDelivered:     {StatusInvoiced},
	StatusDelivery:      {StatusDelivered, StatusInvoiced},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a status has no outgoing transitions.
func Terminal(s Status) bool {
	return len(AllowedTransitions[s]) == 0
}

// EstimatedAt combines the service date and estimated time of day into one
// timestamp. ok is false when either field is missing or unparsable.
func (o *Order) EstimatedAt(loc *time.Location) (time.Time, bool) {
	if o.Date == "" || o.EstimatedTime == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", o.Date+" "+o.EstimatedTime, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Late reports whether the order has overrun its estimate. Delivered and
// invoiced orders are never late; unparsable estimates count as on time.
func (o *Order) Late(now time.Time) bool {
	if o.Status == StatusDelivered || o.Status == StatusInvoiced {
		return false
	}
	est, ok := o.EstimatedAt(now.Location())
	if !ok {
		return false
	}
	return now.After(est)
}

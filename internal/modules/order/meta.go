package order

import (
	"errors"
	"fmt"
)

// Tone is the visual category a status renders with.
type Tone string

const (
	ToneNeutral Tone = "neutral"
	ToneActive  Tone = "active"
	ToneSuccess Tone = "success"
	ToneDanger  Tone = "danger"
)

type Meta struct {
	Label string
	Tone  Tone
}

var ErrUnknownStatus = errors.New("unknown order status")

// statusMeta is total over the closed status set; MetaFor guards the rest.
var statusMeta = map[Status]Meta{
	StatusPending:       {Label: "Pending", Tone: ToneNeutral},
	StatusInPreparation: {Label: "In preparation", Tone: ToneActive},
	StatusDone:          {Label: "Ready", Tone: ToneActive},
	StatusDelivery:      {Label: "Out for delivery", Tone: ToneActive},
	StatusDelivered:     {Label: "Delivered", Tone: ToneSuccess},
	StatusInvoiced:      {Label: "Invoiced", Tone: ToneSuccess},
	StatusCancelled:     {Label: "Cancelled", Tone: ToneDanger},
	StatusRejected:      {Label: "Rejected", Tone: ToneDanger},
}

// MetaFor returns the rendering metadata for a status. An unrecognized
// status is a data defect and comes back as ErrUnknownStatus rather than a
// silent fallback.
func MetaFor(s Status) (Meta, error) {
	m, ok := statusMeta[s]
	if !ok {
		return Meta{}, fmt.Errorf("%w: %q", ErrUnknownStatus, string(s))
	}
	return m, nil
}

// Statuses lists the closed status set in lifecycle order.
func Statuses() []Status {
	return []Status{
		StatusPending,
		StatusInPreparation,
		StatusDone,
		StatusDelivery,
		StatusDelivered,
		StatusInvoiced,
		StatusCancelled,
		StatusRejected,
	}
}

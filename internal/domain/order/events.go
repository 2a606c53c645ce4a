package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// EventType names an order lifecycle event.
type EventType string

const (
	EventCreated        EventType = "order.created"
	EventStatusChanged  EventType = "order.status_changed"
	EventPaymentChanged EventType = "order.payment_changed"
)

// Event describes a committed order change.
type Event struct {
	Type          EventType
	OrderID       string
	OrderNumber   string
	UserID        int64
	Status        Status
	PaymentStatus PaymentStatus
	Total         decimal.Decimal
	OccurredAt    time.Time
}

// Notifier delivers order events to interested parties. Delivery is best
// effort: a failed notification never undoes the change it describes.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) error { return nil }

func newEvent(t EventType, o *Order, at time.Time) Event {
	return Event{
		Type:          t,
		OrderID:       o.ID,
		OrderNumber:   o.Number,
		UserID:        o.UserID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Total:         o.Total,
		OccurredAt:    at,
	}
}

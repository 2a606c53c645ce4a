package order

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/xenking/foodorder/internal/domain/order"

type metrics struct {
	created     metric.Int64Counter
	transitions metric.Int64Counter
	totals      metric.Float64Histogram
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	meter := mp.Meter(instrumentationName)

	created, err := meter.Int64Counter("orders.created",
		metric.WithDescription("Orders placed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders.created")
	}
	transitions, err := meter.Int64Counter("orders.transitions",
		metric.WithDescription("Order status and payment status changes"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders.transitions")
	}
	totals, err := meter.Float64Histogram("orders.total",
		metric.WithDescription("Grand total of placed orders"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders.total")
	}

	return &metrics{
		created:     created,
		transitions: transitions,
		totals:      totals,
	}, nil
}

func (m *metrics) orderCreated(ctx context.Context, o *Order) {
	attrs := metric.WithAttributes(attribute.String("payment_method", string(o.PaymentMethod)))
	m.created.Add(ctx, 1, attrs)
	m.totals.Record(ctx, o.Total.InexactFloat64(), attrs)
}

func (m *metrics) orderChanged(ctx context.Context, t EventType, o *Order) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", string(t)),
		attribute.String("status", string(o.Status)),
		attribute.String("payment_status", string(o.PaymentStatus)),
	))
}

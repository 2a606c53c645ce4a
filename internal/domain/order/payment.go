package order

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ConfirmCashPayment records a cash payment. The order must be paid in
// cash and its payment still pending. A pending order becomes ready.
func (s *Service) ConfirmCashPayment(ctx context.Context, id string) (*Order, error) {
	return s.confirmPayment(ctx, id, PaymentCash)
}

// ConfirmCardPayment records a card payment confirmed by the payment
// provider. A pending order becomes ready.
func (s *Service) ConfirmCardPayment(ctx context.Context, id string) (*Order, error) {
	return s.confirmPayment(ctx, id, PaymentCard)
}

func (s *Service) confirmPayment(ctx context.Context, id string, method PaymentMethod) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.ConfirmPayment", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.payment_method", string(method)),
	))
	defer func() { endSpan(span, rerr) }()

	current, err := s.find(ctx, id)
	if err != nil || current == nil {
		return nil, err
	}
	if current.PaymentMethod != method {
		return nil, ErrPaymentMethodMismatch
	}
	if !CanTransitionPayment(current.PaymentStatus, PaymentCompleted) {
		return nil, &IllegalTransitionError{
			From: string(current.PaymentStatus),
			To:   string(PaymentCompleted),
		}
	}

	ch := Change{
		FromStatuses: []Status{current.Status},
		FromPayment:  PaymentPending,
		ToPayment:    PaymentCompleted,
	}
	switch current.Status {
	case StatusPending:
		ch.ToStatus = StatusReady
	case StatusCancelled:
		return nil, &IllegalTransitionError{
			From: string(current.Status),
			To:   string(StatusReady),
		}
	}

	return s.change(ctx, id, ch, EventPaymentChanged)
}

// Refund refunds a completed payment and cancels the order. The order must
// still be cancellable unless it is already cancelled.
func (s *Service) Refund(ctx context.Context, id string) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Refund", trace.WithAttributes(
		attribute.String("order.id", id),
	))
	defer func() { endSpan(span, rerr) }()

	current, err := s.find(ctx, id)
	if err != nil || current == nil {
		return nil, err
	}
	if !CanTransitionPayment(current.PaymentStatus, PaymentRefunded) {
		return nil, &IllegalTransitionError{
			From: string(current.PaymentStatus),
			To:   string(PaymentRefunded),
		}
	}

	ch := Change{
		FromStatuses: []Status{current.Status},
		FromPayment:  PaymentCompleted,
		ToPayment:    PaymentRefunded,
	}
	if current.Status != StatusCancelled {
		if !Cancellable(current.Status) {
			return nil, &IllegalTransitionError{
				From: string(current.Status),
				To:   string(StatusCancelled),
			}
		}
		ch.ToStatus = StatusCancelled
	}

	return s.change(ctx, id, ch, EventPaymentChanged)
}

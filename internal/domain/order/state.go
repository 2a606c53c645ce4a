package order

import (
	"slices"
	"time"
)

var statusTransitions = map[Status][]Status{
	StatusPending:  {StatusReady, StatusCancelled},
	StatusReady:    {StatusOnTheWay, StatusCancelled},
	StatusOnTheWay: {StatusDelivered},
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentCompleted},
	PaymentCompleted: {PaymentRefunded},
}

// CanTransition reports whether an order may move from one status to
// another. Staying in the same status is not a transition.
func CanTransition(from, to Status) bool {
	return slices.Contains(statusTransitions[from], to)
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s Status) bool {
	return s.Valid() && len(statusTransitions[s]) == 0
}

// Cancellable reports whether an order in s may still be cancelled.
func Cancellable(s Status) bool {
	return CanTransition(s, StatusCancelled)
}

// CanTransitionPayment reports whether the payment workflows may move a
// payment from one status to another. Refunds require a completed payment.
func CanTransitionPayment(from, to PaymentStatus) bool {
	return slices.Contains(paymentTransitions[from], to)
}

// Apply returns a copy of o moved to status to, or an
// *IllegalTransitionError when the move is not allowed.
func Apply(o Order, to Status, now time.Time) (Order, error) {
	if !CanTransition(o.Status, to) {
		return o, &IllegalTransitionError{From: string(o.Status), To: string(to)}
	}
	o.Status = to
	o.UpdatedAt = now
	return o, nil
}

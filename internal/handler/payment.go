package handler

import (
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/foodorder/internal/domain/order"
)

// confirmCash records a cash payment for one of the caller's orders.
func (h *Handler) confirmCash(w http.ResponseWriter, r *http.Request) {
	var req cashPaymentRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	current, err := h.queries.FindByID(r.Context(), req.OrderID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if current == nil {
		writeError(w, http.StatusNotFound, order.ErrNotFound.Error())
		return
	}
	if !principal(r).CanAccess(current.UserID) {
		writeError(w, http.StatusForbidden, "order belongs to another user")
		return
	}

	o, err := h.orders.ConfirmCashPayment(r.Context(), req.OrderID)
	h.writeOrder(w, r, o, err)
}

// paymentWebhook handles card payment provider callbacks.
func (h *Handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	zctx.From(r.Context()).Info("Payment webhook",
		zap.String("order_id", req.OrderID),
		zap.String("event", req.Event),
	)

	var (
		o   *order.Order
		err error
	)
	switch req.Event {
	case eventPaymentSucceeded:
		o, err = h.orders.ConfirmCardPayment(r.Context(), req.OrderID)
	case eventRefundSucceeded:
		o, err = h.orders.Refund(r.Context(), req.OrderID)
	}
	h.writeOrder(w, r, o, err)
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/foodorder/internal/domain/order"
)

// listAllOrders returns every order. Query parameters: status (or "all")
// and search.
func (h *Handler) listAllOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, err := order.ParseStatusFilter(q.Get("status"))
	if err != nil {
		handleError(w, r, err)
		return
	}

	orders, err := h.queries.FindAll(r.Context(), order.AdminFilter{
		Status: status,
		Search: q.Get("search"),
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeOrders(e, orders) })
}

func (h *Handler) orderStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queries.Stats(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeStats(e, stats) })
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), order.Status(req.Status))
	h.writeOrder(w, r, o, err)
}

func (h *Handler) updatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req paymentStatusRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	o, err := h.orders.UpdatePaymentStatus(r.Context(), chi.URLParam(r, "id"), order.PaymentStatus(req.PaymentStatus))
	h.writeOrder(w, r, o, err)
}

func (h *Handler) refundOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Refund(r.Context(), chi.URLParam(r, "id"))
	h.writeOrder(w, r, o, err)
}

// writeOrder writes the result of an order mutation. Services report a
// missing order as nil without error.
func (h *Handler) writeOrder(w http.ResponseWriter, r *http.Request, o *order.Order, err error) {
	if err != nil {
		handleError(w, r, err)
		return
	}
	if o == nil {
		writeError(w, http.StatusNotFound, order.ErrNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeOrder(e, o) })
}

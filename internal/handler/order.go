package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/foodorder/internal/domain/order"
)

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	items := make([]order.ItemRequest, len(req.Items))
	for i, l := range req.Items {
		items[i] = order.ItemRequest{
			MenuItemID: l.MenuItemID,
			Quantity:   l.Quantity,
			UnitPrice:  l.Price,
		}
	}

	o, err := h.orders.Create(r.Context(), principal(r).UserID, order.CreateRequest{
		Delivery: order.Delivery{
			Address: req.DeliveryAddress,
			City:    req.DeliveryCity,
			Zip:     req.DeliveryZip,
		},
		PaymentMethod: order.PaymentMethod(req.PaymentMethod),
		Items:         items,
		Notes:         req.Notes,
		CouponCode:    req.CouponCode,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { h.encodeOrder(e, o) })
}

// listMyOrders returns the caller's orders. Query parameters: status
// (or "all"), from and to as YYYY-MM-DD; to is inclusive.
func (h *Handler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, err := order.ParseStatusFilter(q.Get("status"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	f := order.UserFilter{Status: status}
	if f.From, err = queryDate(q.Get("from"), time.Local, false); err != nil {
		handleError(w, r, err)
		return
	}
	if f.To, err = queryDate(q.Get("to"), time.Local, true); err != nil {
		handleError(w, r, err)
		return
	}

	orders, err := h.queries.FindByUser(r.Context(), principal(r).UserID, f)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeOrders(e, orders) })
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := h.ownedOrder(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeOrder(e, o) })
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	current, ok := h.ownedOrder(w, r)
	if !ok {
		return
	}

	o, err := h.orders.Cancel(r.Context(), current.ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if o == nil {
		writeError(w, http.StatusUnprocessableEntity,
			"order cannot be cancelled in status "+string(current.Status))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeOrder(e, o) })
}

// ownedOrder loads the {id} order and checks the caller may access it. It
// writes the error response and returns false otherwise.
func (h *Handler) ownedOrder(w http.ResponseWriter, r *http.Request) (*order.Order, bool) {
	o, err := h.queries.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return nil, false
	}
	if o == nil {
		writeError(w, http.StatusNotFound, order.ErrNotFound.Error())
		return nil, false
	}
	if !principal(r).CanAccess(o.UserID) {
		writeError(w, http.StatusForbidden, "order belongs to another user")
		return nil, false
	}
	return o, true
}

// queryDate parses a YYYY-MM-DD bound in loc. With endOfDay the result is
// the last instant of that calendar day, which is not always 24h later.
func queryDate(raw string, loc *time.Location, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return nil, badRequest("invalid date " + raw + ", expected YYYY-MM-DD")
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &t, nil
}

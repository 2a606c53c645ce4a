package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/foodorder/internal/domain/cart"
)

// addCartItem resolves a dish at its current price. The client keeps the
// cart and submits the returned line with the order.
func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	line, err := h.cart.ResolveLine(r.Context(), req.MenuItemID, req.Quantity)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeCartLine(e, line) })
}

// cartTotals prices the submitted cart without creating an order.
func (h *Handler) cartTotals(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	b, err := h.cart.Quote(req.snapshot())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeBreakdown(e, b) })
}

// updateCartItem sets the quantity of one dish in the submitted cart and
// returns the edited cart with its totals.
func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(chi.URLParam(r, "menuItemId"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req cartQuantityRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	snap, err := h.cart.SetQuantity(r.Context(), req.snapshot(), id, req.Quantity)
	if err != nil {
		handleError(w, r, err)
		return
	}
	h.writeCart(w, r, snap)
}

// removeCartItem drops one dish from the submitted cart.
func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(chi.URLParam(r, "menuItemId"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req cartRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	h.writeCart(w, r, req.snapshot().Without(id))
}

// writeCart encodes snap with its totals. An empty cart has null totals.
func (h *Handler) writeCart(w http.ResponseWriter, r *http.Request, snap cart.Snapshot) {
	var quote func(e *jx.Encoder)
	if len(snap.Lines) > 0 {
		b, err := h.cart.Quote(snap)
		if err != nil {
			handleError(w, r, err)
			return
		}
		quote = func(e *jx.Encoder) { encodeBreakdown(e, b) }
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("items", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, l := range snap.Lines {
						h.encodeCartLine(e, l)
					}
				})
			})
			if snap.CouponCode != "" {
				e.Field("couponCode", func(e *jx.Encoder) { e.Str(snap.CouponCode) })
			}
			e.Field("totals", func(e *jx.Encoder) {
				if quote == nil {
					e.Null()
					return
				}
				quote(e)
			})
		})
	})
}

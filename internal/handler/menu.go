package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodorder/internal/domain/menu"
)

// listMenu returns available dishes. Query parameters: category, search,
// minPrice, maxPrice.
func (h *Handler) listMenu(w http.ResponseWriter, r *http.Request) {
	h.writeMenu(w, r, false)
}

// listAdminMenu is listMenu including dishes that are not available.
func (h *Handler) listAdminMenu(w http.ResponseWriter, r *http.Request) {
	h.writeMenu(w, r, true)
}

func (h *Handler) writeMenu(w http.ResponseWriter, r *http.Request, includeUnavailable bool) {
	q := r.URL.Query()
	f := menu.Filter{
		Category:           q.Get("category"),
		Search:             q.Get("search"),
		IncludeUnavailable: includeUnavailable,
	}
	var err error
	if f.MinPrice, err = queryMoney(q.Get("minPrice")); err != nil {
		handleError(w, r, err)
		return
	}
	if f.MaxPrice, err = queryMoney(q.Get("maxPrice")); err != nil {
		handleError(w, r, err)
		return
	}

	items, err := h.menu.List(r.Context(), f)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, m := range items {
				h.encodeMenuItem(e, m)
			}
		})
	})
}

func (h *Handler) getMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	m, err := h.menu.GetByID(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeMenuItem(e, *m) })
}

func (h *Handler) createMenuItem(w http.ResponseWriter, r *http.Request) {
	var req menuItemRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	if err := checkPrice(req.Price); err != nil {
		handleError(w, r, err)
		return
	}

	m := menu.MenuItem{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Image:       req.Image,
		Category:    req.Category,
		Available:   true,
	}
	if req.Available != nil {
		m.Available = *req.Available
	}
	if err := h.menu.Create(r.Context(), &m); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { h.encodeMenuItem(e, m) })
}

func (h *Handler) updateMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req menuItemRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	if err := checkPrice(req.Price); err != nil {
		handleError(w, r, err)
		return
	}

	current, err := h.menu.GetByID(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	m := *current
	m.Name = req.Name
	m.Description = req.Description
	m.Price = req.Price
	m.Image = req.Image
	m.Category = req.Category
	if req.Available != nil {
		m.Available = *req.Available
	}
	if err := h.menu.Update(r.Context(), &m); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeMenuItem(e, m) })
}

func (h *Handler) toggleAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	m, err := h.menu.ToggleAvailability(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeMenuItem(e, *m) })
}

func checkPrice(p decimal.Decimal) error {
	if !p.IsPositive() {
		return badRequest("price must be greater than zero")
	}
	if p.Exponent() < -2 && !p.Equal(p.Round(2)) {
		return badRequest("price must have at most two decimals")
	}
	return nil
}

func queryMoney(raw string) (decimal.NullDecimal, error) {
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil || v.IsNegative() {
		return decimal.NullDecimal{}, badRequest("invalid price filter " + raw)
	}
	return decimal.NewNullDecimal(v), nil
}

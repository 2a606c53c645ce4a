package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/foodorder/internal/domain/cart"
	"github.com/xenking/foodorder/internal/domain/menu"
	"github.com/xenking/foodorder/internal/domain/order"
	"github.com/xenking/foodorder/internal/domain/pricing"
)

// badRequestError is an input error detected by the handler itself.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(msg string) error { return &badRequestError{msg: msg} }

// writeJSON writes the value produced by enc with the given status.
func writeJSON(w http.ResponseWriter, status int, enc func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	enc(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the {"code","message"} error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}

// handleError maps domain errors to HTTP responses. Unknown errors are
// logged and reported as 500 without details.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

func errorStatus(err error) int {
	var (
		badReq    *badRequestError
		lineErr   *pricing.InvalidLineItemError
		qtyErr    *cart.InvalidQuantityError
		transErr  *order.IllegalTransitionError
		mismatch  *order.PriceMismatchError
		unavail   *order.ItemUnavailableError
		notInMenu *order.MenuItemNotFoundError
	)
	switch {
	case errors.As(err, &badReq),
		errors.As(err, &lineErr),
		errors.As(err, &qtyErr),
		errors.Is(err, pricing.ErrInvalidCart),
		errors.Is(err, order.ErrInvalidPaymentMethod),
		errors.Is(err, order.ErrDeliveryRequired),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, order.ErrInvalidPaymentStatus):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrConflict),
		errors.Is(err, menu.ErrDuplicateName):
		return http.StatusConflict
	case errors.As(err, &transErr),
		errors.As(err, &mismatch),
		errors.As(err, &unavail),
		errors.As(err, &notInMenu),
		errors.Is(err, cart.ErrItemUnavailable),
		errors.Is(err, order.ErrPaymentMethodMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, menu.ErrNotFound),
		errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// pathID parses a positive integer path parameter.
func pathID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid id " + strconv.Quote(raw))
	}
	return id, nil
}

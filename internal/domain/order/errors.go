package order

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for order operations.
var (
	ErrNotFound              = errors.New("order not found")
	ErrConflict              = errors.New("order was modified concurrently")
	ErrInvalidPaymentMethod  = errors.New("payment method must be card or cash")
	ErrInvalidStatus         = errors.New("invalid order status")
	ErrInvalidPaymentStatus  = errors.New("invalid payment status")
	ErrPaymentMethodMismatch = errors.New("order uses a different payment method")
)

// IllegalTransitionError is returned when a status change is not allowed
// from the current status.
type IllegalTransitionError struct {
	From string
	To   string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot change status from %s to %s", e.From, e.To)
}

// OrderCreationError wraps the failure that aborted order creation. Nothing
// was persisted.
type OrderCreationError struct {
	Err error
}

func (e *OrderCreationError) Error() string {
	return fmt.Sprintf("create order: %v", e.Err)
}

func (e *OrderCreationError) Unwrap() error { return e.Err }

// StorageError wraps a failure of the backing store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// MenuItemNotFoundError indicates an order line references a missing dish.
type MenuItemNotFoundError struct {
	MenuItemID int64
}

func (e *MenuItemNotFoundError) Error() string {
	return fmt.Sprintf("menu item %d not found", e.MenuItemID)
}

// ItemUnavailableError indicates an order line references a dish that
// cannot currently be ordered.
type ItemUnavailableError struct {
	MenuItemID int64
	Name       string
}

func (e *ItemUnavailableError) Error() string {
	return fmt.Sprintf("menu item %d (%s) is not available", e.MenuItemID, e.Name)
}

// PriceMismatchError indicates the submitted unit price differs from the
// current menu price.
type PriceMismatchError struct {
	MenuItemID int64
	Requested  decimal.Decimal
	Current    decimal.Decimal
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("price of menu item %d changed: submitted %s, current %s",
		e.MenuItemID, e.Requested.StringFixed(2), e.Current.StringFixed(2))
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

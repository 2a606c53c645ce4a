package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusReady     Status = "ready"
	StatusOnTheWay  Status = "on_the_way"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusReady, StatusOnTheWay, StatusDelivered, StatusCancelled}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusReady, StatusOnTheWay, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// PaymentStatus is the payment state of an order, independent of Status.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Valid reports whether p is a known payment status.
func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentCompleted, PaymentRefunded:
		return true
	}
	return false
}

// PaymentMethod is how the customer pays.
type PaymentMethod string

const (
	PaymentCard PaymentMethod = "card"
	PaymentCash PaymentMethod = "cash"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCard || m == PaymentCash
}

// Delivery is where an order goes.
type Delivery struct {
	Address string
	City    string
	Zip     string
}

// Customer holds display fields of the ordering user, filled on reads.
type Customer struct {
	Name  string
	Email string
	Phone string
}

// Order is a placed order. Money amounts are stored rounded to cents.
type Order struct {
	ID            string
	Number        string
	UserID        int64
	Customer      Customer
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	DeliveryFee   decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
	CouponCode    string
	Status        Status
	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus
	Delivery      Delivery
	Notes         string
	Items         []Item
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Item is one line of an order. UnitPrice is the price at order time and
// never changes; Name and Image reflect the menu item at read time.
type Item struct {
	MenuItemID int64
	Quantity   int
	UnitPrice  decimal.Decimal
	Name       string
	Image      string
}

// Subtotal returns UnitPrice × Quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// UserFilter narrows a customer's order history. Empty Status or nil bounds
// disable the corresponding condition.
type UserFilter struct {
	Status Status
	From   *time.Time
	To     *time.Time
}

// AdminFilter narrows the all-orders listing.
type AdminFilter struct {
	Status Status
	// Search matches order id, order number or customer name fragments,
	// case-insensitively.
	Search string
}

// Stats summarizes all orders.
type Stats struct {
	Total        int
	ByStatus     map[Status]int
	Revenue      decimal.Decimal
	AverageTotal decimal.Decimal
	PlacedToday  int
}

// Change is a guarded update applied as one statement. Empty From fields
// match any current value; empty To fields leave the column unchanged.
type Change struct {
	// FromStatuses lists the statuses the order may currently be in.
	FromStatuses []Status
	ToStatus     Status
	FromPayment  PaymentStatus
	ToPayment    PaymentStatus
}

// Repository is the order storage.
type Repository interface {
	// Create inserts the order and all of its items atomically.
	Create(ctx context.Context, o *Order) error
	// GetByID returns the order with customer fields and items, or
	// ErrNotFound.
	GetByID(ctx context.Context, id string) (*Order, error)
	// Apply performs the change if the guards match. It returns ErrNotFound
	// when id does not exist and ErrConflict when a guard does not match.
	// updated_at is advanced on success.
	Apply(ctx context.Context, id string, ch Change) error
	ListByUser(ctx context.Context, userID int64, f UserFilter) ([]Order, error)
	List(ctx context.Context, f AdminFilter) ([]Order, error)
	// Stats aggregates all orders; PlacedToday counts orders created at or
	// after since.
	Stats(ctx context.Context, since time.Time) (*Stats, error)
}

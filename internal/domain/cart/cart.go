// Package cart validates cart lines against the menu and prices cart
// snapshots. A Snapshot is an immutable value: every edit returns a new one.
package cart

import (
	"context"
	"fmt"
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodorder/internal/domain/menu"
	"github.com/xenking/foodorder/internal/domain/pricing"
)

// ErrItemUnavailable is returned when a dish cannot currently be ordered.
var ErrItemUnavailable = errors.New("menu item is not available")

// InvalidQuantityError indicates a quantity outside 1..pricing.MaxQuantity.
type InvalidQuantityError struct {
	MenuItemID int64
	Quantity   int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity %d for menu item %d must be between 1 and %d",
		e.Quantity, e.MenuItemID, pricing.MaxQuantity)
}

// Line is one dish in a cart with the price it was added at.
type Line struct {
	MenuItemID int64
	Name       string
	Image      string
	UnitPrice  decimal.Decimal
	Quantity   int
}

// Subtotal returns UnitPrice × Quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Snapshot is the content of a cart at one point in time.
type Snapshot struct {
	Lines      []Line
	CouponCode string
}

// Contains reports whether the dish is in the cart.
func (s Snapshot) Contains(menuItemID int64) bool {
	return slices.ContainsFunc(s.Lines, func(l Line) bool { return l.MenuItemID == menuItemID })
}

// With returns a snapshot with l added. Adding a dish already in the cart
// increases its quantity and keeps the original price.
func (s Snapshot) With(l Line) Snapshot {
	lines := slices.Clone(s.Lines)
	for i := range lines {
		if lines[i].MenuItemID == l.MenuItemID {
			lines[i].Quantity += l.Quantity
			return Snapshot{Lines: lines, CouponCode: s.CouponCode}
		}
	}
	return Snapshot{Lines: append(lines, l), CouponCode: s.CouponCode}
}

// Without returns a snapshot without the given dish.
func (s Snapshot) Without(menuItemID int64) Snapshot {
	lines := slices.DeleteFunc(slices.Clone(s.Lines), func(l Line) bool {
		return l.MenuItemID == menuItemID
	})
	return Snapshot{Lines: lines, CouponCode: s.CouponCode}
}

// WithQuantity returns a snapshot with the dish's quantity replaced. A
// quantity below one removes the dish.
func (s Snapshot) WithQuantity(menuItemID int64, qty int) Snapshot {
	if qty < 1 {
		return s.Without(menuItemID)
	}
	lines := slices.Clone(s.Lines)
	for i := range lines {
		if lines[i].MenuItemID == menuItemID {
			lines[i].Quantity = qty
		}
	}
	return Snapshot{Lines: lines, CouponCode: s.CouponCode}
}

// LineItems converts the snapshot to pricing input.
func (s Snapshot) LineItems() []pricing.LineItem {
	items := make([]pricing.LineItem, len(s.Lines))
	for i, l := range s.Lines {
		items[i] = pricing.LineItem{UnitPrice: l.UnitPrice, Quantity: l.Quantity}
	}
	return items
}

// Catalog looks up single menu items.
type Catalog interface {
	GetByID(ctx context.Context, id int64) (*menu.MenuItem, error)
}

// Service checks cart edits against the menu and prices carts.
type Service struct {
	catalog Catalog
	calc    *pricing.Calculator
}

// NewService creates a cart Service.
func NewService(catalog Catalog, calc *pricing.Calculator) *Service {
	return &Service{catalog: catalog, calc: calc}
}

// ResolveLine returns a cart line for qty of the given dish at its current
// price. It fails with menu.ErrNotFound for unknown dishes and
// ErrItemUnavailable for dishes that cannot be ordered.
func (s *Service) ResolveLine(ctx context.Context, menuItemID int64, qty int) (Line, error) {
	if qty < 1 || qty > pricing.MaxQuantity {
		return Line{}, &InvalidQuantityError{MenuItemID: menuItemID, Quantity: qty}
	}

	item, err := s.catalog.GetByID(ctx, menuItemID)
	if err != nil {
		if errors.Is(err, menu.ErrNotFound) {
			return Line{}, menu.ErrNotFound
		}
		return Line{}, errors.Wrap(err, "get menu item")
	}
	if !item.Available {
		return Line{}, ErrItemUnavailable
	}

	return Line{
		MenuItemID: item.ID,
		Name:       item.Name,
		Image:      item.Image,
		UnitPrice:  item.Price,
		Quantity:   qty,
	}, nil
}

// SetQuantity checks the dish against the menu and sets its quantity in
// snap. A dish not yet in the cart is added at its current price; a dish
// already in the cart keeps the price it was added at.
func (s *Service) SetQuantity(ctx context.Context, snap Snapshot, menuItemID int64, qty int) (Snapshot, error) {
	line, err := s.ResolveLine(ctx, menuItemID, qty)
	if err != nil {
		return Snapshot{}, err
	}
	if !snap.Contains(menuItemID) {
		return snap.With(line), nil
	}
	return snap.WithQuantity(menuItemID, qty), nil
}

// Quote prices a snapshot. An empty snapshot fails with
// pricing.ErrInvalidCart.
func (s *Service) Quote(snap Snapshot) (pricing.Breakdown, error) {
	return s.calc.Calculate(snap.LineItems(), snap.CouponCode)
}

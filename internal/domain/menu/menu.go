package menu

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for menu operations.
var (
	ErrNotFound      = errors.New("menu item not found")
	ErrDuplicateName = errors.New("menu item with this name already exists")
)

// MenuItem is a dish that can be ordered.
type MenuItem struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	Image       string
	Category    string
	Available   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Filter narrows menu listings. Zero values disable the corresponding
// condition.
type Filter struct {
	Category string
	// Search matches name or description fragments, case-insensitively.
	Search   string
	MinPrice decimal.NullDecimal
	MaxPrice decimal.NullDecimal
	// IncludeUnavailable also returns dishes that cannot currently be ordered.
	IncludeUnavailable bool
}

// Repository defines access to the menu catalog.
type Repository interface {
	List(ctx context.Context, f Filter) ([]MenuItem, error)
	GetByID(ctx context.Context, id int64) (*MenuItem, error)
	GetByIDs(ctx context.Context, ids []int64) ([]MenuItem, error)
	Create(ctx context.Context, item *MenuItem) error
	Update(ctx context.Context, item *MenuItem) error
	// ToggleAvailability flips the availability of a dish and returns it.
	ToggleAvailability(ctx context.Context, id int64) (*MenuItem, error)
}

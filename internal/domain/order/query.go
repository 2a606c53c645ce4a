package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// StatusAll is the filter value that disables status filtering.
const StatusAll = "all"

// ParseStatusFilter parses a status filter. Empty and "all" mean no filter.
func ParseStatusFilter(v string) (Status, error) {
	if v == "" || v == StatusAll {
		return "", nil
	}
	s := Status(v)
	if !s.Valid() {
		return "", errors.Wrapf(ErrInvalidStatus, "%q", v)
	}
	return s, nil
}

// QueryService answers read-only questions about orders.
type QueryService struct {
	orders Repository
	now    func() time.Time
}

// NewQueryService creates a QueryService.
func NewQueryService(orders Repository) *QueryService {
	return &QueryService{orders: orders, now: time.Now}
}

// FindByID returns the order with customer fields and items enriched with
// the current menu name and image, or nil when it does not exist.
func (q *QueryService) FindByID(ctx context.Context, id string) (*Order, error) {
	o, err := q.orders.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get order", err)
	}
	return o, nil
}

// FindByUser returns a customer's orders, newest first.
func (q *QueryService) FindByUser(ctx context.Context, userID int64, f UserFilter) ([]Order, error) {
	orders, err := q.orders.ListByUser(ctx, userID, f)
	if err != nil {
		return nil, storageErr("list user orders", err)
	}
	return orders, nil
}

// FindAll returns all orders matching f, newest first.
func (q *QueryService) FindAll(ctx context.Context, f AdminFilter) ([]Order, error) {
	orders, err := q.orders.List(ctx, f)
	if err != nil {
		return nil, storageErr("list orders", err)
	}
	return orders, nil
}

// Stats returns order statistics. "Today" starts at local midnight of the
// server clock.
func (q *QueryService) Stats(ctx context.Context) (*Stats, error) {
	stats, err := q.orders.Stats(ctx, startOfDay(q.now()))
	if err != nil {
		return nil, storageErr("order stats", err)
	}
	return stats, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

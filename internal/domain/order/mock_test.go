package order

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodorder/internal/domain/menu"
)

// --- Mock implementations ---

// memRepo is an in-memory Repository that honours Change guards.
type memRepo struct {
	mu     sync.Mutex
	orders map[string]*Order
	now    func() time.Time

	createErr error
	getErr    error
	applyErr  error

	// beforeApply runs inside Apply before guards are checked, to simulate
	// a concurrent writer.
	beforeApply func(o *Order)

	since time.Time
	stats *Stats
}

func newMemRepo() *memRepo {
	return &memRepo{
		orders: make(map[string]*Order),
		now:    func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) },
	}
}

func (m *memRepo) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	stored := *o
	stored.Items = slices.Clone(o.Items)
	stored.CreatedAt = m.now()
	stored.UpdatedAt = stored.CreatedAt
	stored.Customer = Customer{Name: "Test User", Email: "test@example.com"}
	for i := range stored.Items {
		stored.Items[i].Name = "Dish"
	}
	m.orders[o.ID] = &stored
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	cp.Items = slices.Clone(o.Items)
	return &cp, nil
}

func (m *memRepo) Apply(_ context.Context, id string, ch Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return m.applyErr
	}
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	if m.beforeApply != nil {
		m.beforeApply(o)
	}
	if len(ch.FromStatuses) > 0 && !slices.Contains(ch.FromStatuses, o.Status) {
		return ErrConflict
	}
	if ch.FromPayment != "" && o.PaymentStatus != ch.FromPayment {
		return ErrConflict
	}
	if ch.ToStatus != "" {
		o.Status = ch.ToStatus
	}
	if ch.ToPayment != "" {
		o.PaymentStatus = ch.ToPayment
	}
	o.UpdatedAt = m.now().Add(time.Minute)
	return nil
}

func (m *memRepo) ListByUser(_ context.Context, userID int64, f UserFilter) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if o.UserID == userID && (f.Status == "" || o.Status == f.Status) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memRepo) List(_ context.Context, f AdminFilter) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if f.Status == "" || o.Status == f.Status {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memRepo) Stats(_ context.Context, since time.Time) (*Stats, error) {
	m.since = since
	if m.stats == nil {
		return &Stats{ByStatus: map[Status]int{}}, nil
	}
	return m.stats, nil
}

// insert stores an order directly, bypassing Create.
func (m *memRepo) insert(o Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = &o
}

type mockCatalog struct {
	items []menu.MenuItem
	err   error
}

func (m *mockCatalog) GetByIDs(_ context.Context, ids []int64) ([]menu.MenuItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []menu.MenuItem
	for _, it := range m.items {
		if slices.Contains(ids, it.ID) {
			out = append(out, it)
		}
	}
	return out, nil
}

type recordingNotifier struct {
	events []Event
	err    error
}

func (r *recordingNotifier) Notify(_ context.Context, e Event) error {
	r.events = append(r.events, e)
	return r.err
}

// --- Helpers ---

var errBoom = errors.New("boom")

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

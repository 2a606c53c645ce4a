package handler

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/foodorder/internal/domain/auth"
	"github.com/xenking/foodorder/internal/domain/menu"
	"github.com/xenking/foodorder/internal/domain/order"
)

// --- Mock implementations ---

type memMenu struct {
	mu    sync.Mutex
	items map[int64]*menu.MenuItem
	next  int64
	err   error
}

func newMemMenu(items ...menu.MenuItem) *memMenu {
	m := &memMenu{items: make(map[int64]*menu.MenuItem)}
	for _, it := range items {
		m.items[it.ID] = &it
		m.next = max(m.next, it.ID)
	}
	return m
}

func (m *memMenu) List(_ context.Context, f menu.Filter) ([]menu.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []menu.MenuItem
	for _, it := range m.items {
		if !f.IncludeUnavailable && !it.Available {
			continue
		}
		if f.Category != "" && it.Category != f.Category {
			continue
		}
		if f.MaxPrice.Valid && it.Price.GreaterThan(f.MaxPrice.Decimal) {
			continue
		}
		out = append(out, *it)
	}
	slices.SortFunc(out, func(a, b menu.MenuItem) int { return int(a.ID - b.ID) })
	return out, nil
}

func (m *memMenu) GetByID(_ context.Context, id int64) (*menu.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	it, ok := m.items[id]
	if !ok {
		return nil, menu.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *memMenu) GetByIDs(_ context.Context, ids []int64) ([]menu.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []menu.MenuItem
	for _, id := range ids {
		if it, ok := m.items[id]; ok {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (m *memMenu) Create(_ context.Context, item *menu.MenuItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.Name == item.Name {
			return menu.ErrDuplicateName
		}
	}
	m.next++
	item.ID = m.next
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *memMenu) Update(_ context.Context, item *menu.MenuItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; !ok {
		return menu.ErrNotFound
	}
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *memMenu) ToggleAvailability(_ context.Context, id int64) (*menu.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, menu.ErrNotFound
	}
	it.Available = !it.Available
	cp := *it
	return &cp, nil
}

// memOrders is an in-memory order.Repository that honours Change guards.
type memOrders struct {
	mu     sync.Mutex
	orders map[string]*order.Order
	err    error
}

func newMemOrders() *memOrders {
	return &memOrders{orders: make(map[string]*order.Order)}
}

func (m *memOrders) Create(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	stored := *o
	stored.Items = slices.Clone(o.Items)
	stored.CreatedAt = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	stored.UpdatedAt = stored.CreatedAt
	m.orders[o.ID] = &stored
	return nil
}

func (m *memOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	cp.Items = slices.Clone(o.Items)
	return &cp, nil
}

func (m *memOrders) Apply(_ context.Context, id string, ch order.Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	if len(ch.FromStatuses) > 0 && !slices.Contains(ch.FromStatuses, o.Status) {
		return order.ErrConflict
	}
	if ch.FromPayment != "" && o.PaymentStatus != ch.FromPayment {
		return order.ErrConflict
	}
	if ch.ToStatus != "" {
		o.Status = ch.ToStatus
	}
	if ch.ToPayment != "" {
		o.PaymentStatus = ch.ToPayment
	}
	return nil
}

func (m *memOrders) ListByUser(_ context.Context, userID int64, f order.UserFilter) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []order.Order
	for _, o := range m.orders {
		if o.UserID == userID && (f.Status == "" || o.Status == f.Status) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memOrders) List(_ context.Context, f order.AdminFilter) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []order.Order
	for _, o := range m.orders {
		if f.Status == "" || o.Status == f.Status {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memOrders) Stats(_ context.Context, _ time.Time) (*order.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &order.Stats{ByStatus: map[order.Status]int{}}
	for _, o := range m.orders {
		s.Total++
		s.ByStatus[o.Status]++
		s.Revenue = s.Revenue.Add(o.Total)
	}
	return s, nil
}

func (m *memOrders) insert(o order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = &o
}

type mockAPIKeys struct {
	byHash map[string]*auth.APIKeyInfo
}

func (m *mockAPIKeys) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	info, ok := m.byHash[hash]
	if !ok {
		return nil, auth.ErrKeyNotFound
	}
	return info, nil
}

// staticTokens maps literal bearer tokens to principals.
type staticTokens map[string]auth.Principal

func (s staticTokens) Verify(token string) (auth.Principal, error) {
	p, ok := s[token]
	if !ok {
		return auth.Principal{}, errors.New("unknown token")
	}
	return p, nil
}

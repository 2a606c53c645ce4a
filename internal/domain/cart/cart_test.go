package cart

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/foodorder/internal/domain/coupon"
	"github.com/xenking/foodorder/internal/domain/menu"
	"github.com/xenking/foodorder/internal/domain/pricing"
)

// --- Mock implementations ---

type mockCatalog struct {
	byID map[int64]*menu.MenuItem
	err  error
}

func (m *mockCatalog) GetByID(_ context.Context, id int64) (*menu.MenuItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	item, ok := m.byID[id]
	if !ok {
		return nil, menu.ErrNotFound
	}
	return item, nil
}

// --- Helpers ---

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newTestService(t *testing.T, items ...menu.MenuItem) (*Service, *mockCatalog) {
	t.Helper()
	catalog := &mockCatalog{byID: make(map[int64]*menu.MenuItem)}
	for i := range items {
		catalog.byID[items[i].ID] = &items[i]
	}
	table, err := coupon.NewTable(coupon.DefaultRules()...)
	require.NoError(t, err)
	return NewService(catalog, pricing.NewCalculator(pricing.DefaultConfig(), table)), catalog
}

// --- Tests ---

func TestResolveLine(t *testing.T) {
	svc, _ := newTestService(t,
		menu.MenuItem{ID: 1, Name: "Margherita", Price: d("12.99"), Image: "m.jpg", Available: true},
		menu.MenuItem{ID: 2, Name: "Soup of the day", Price: d("4.50"), Available: false},
	)

	tests := []struct {
		name    string
		id      int64
		qty     int
		wantErr error
	}{
		{name: "available dish", id: 1, qty: 2},
		{name: "unavailable dish", id: 2, qty: 1, wantErr: ErrItemUnavailable},
		{name: "unknown dish", id: 99, qty: 1, wantErr: menu.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := svc.ResolveLine(context.Background(), tt.id, tt.qty)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Margherita", line.Name)
			assert.True(t, d("12.99").Equal(line.UnitPrice))
			assert.True(t, d("25.98").Equal(line.Subtotal()))
		})
	}
}

func TestResolveLine_InvalidQuantity(t *testing.T) {
	svc, _ := newTestService(t)

	for _, qty := range []int{0, -1, pricing.MaxQuantity + 1} {
		_, err := svc.ResolveLine(context.Background(), 1, qty)
		var qtyErr *InvalidQuantityError
		require.ErrorAs(t, err, &qtyErr)
		assert.Equal(t, qty, qtyErr.Quantity)
	}
}

func TestResolveLine_CatalogFailure(t *testing.T) {
	svc, catalog := newTestService(t)
	catalog.err = errors.New("connection reset")

	_, err := svc.ResolveLine(context.Background(), 1, 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, menu.ErrNotFound)
}

func TestSnapshot_Edits(t *testing.T) {
	pizza := Line{MenuItemID: 1, UnitPrice: d("12.99"), Quantity: 1}
	pasta := Line{MenuItemID: 2, UnitPrice: d("14.99"), Quantity: 1}

	empty := Snapshot{}
	one := empty.With(pizza)
	two := one.With(pasta).With(pizza)

	assert.Empty(t, empty.Lines, "edits must not change the receiver")
	require.Len(t, one.Lines, 1)
	assert.Equal(t, 1, one.Lines[0].Quantity)

	require.Len(t, two.Lines, 2)
	assert.Equal(t, 2, two.Lines[0].Quantity, "re-adding merges quantities")

	updated := two.WithQuantity(2, 3)
	assert.Equal(t, 3, updated.Lines[1].Quantity)
	assert.Equal(t, 1, two.Lines[1].Quantity)

	removed := updated.WithQuantity(1, 0)
	require.Len(t, removed.Lines, 1)
	assert.Equal(t, int64(2), removed.Lines[0].MenuItemID)

	assert.Len(t, two.Without(1).Lines, 1)
	assert.Len(t, two.Lines, 2)

	assert.True(t, two.Contains(2))
	assert.False(t, removed.Contains(1))

	kept := Snapshot{CouponCode: "FOOD10"}.With(pizza).Without(1)
	assert.Equal(t, "FOOD10", kept.CouponCode, "edits keep the coupon")
}

func TestQuote(t *testing.T) {
	svc, _ := newTestService(t)

	snap := Snapshot{}.
		With(Line{MenuItemID: 1, UnitPrice: d("12.99"), Quantity: 2}).
		With(Line{MenuItemID: 2, UnitPrice: d("14.99"), Quantity: 1})

	b, err := svc.Quote(snap)
	require.NoError(t, err)
	assert.True(t, d("50.24").Equal(b.Total))
	assert.Equal(t, 3, b.ItemCount)

	_, err = svc.Quote(Snapshot{})
	require.ErrorIs(t, err, pricing.ErrInvalidCart)
}

func TestSetQuantity(t *testing.T) {
	svc, catalog := newTestService(t,
		menu.MenuItem{ID: 1, Name: "Margherita", Price: d("12.99"), Available: true},
		menu.MenuItem{ID: 2, Name: "Carbonara", Price: d("14.99"), Available: true},
		menu.MenuItem{ID: 3, Name: "Soup of the day", Price: d("4.50"), Available: false},
	)
	snap := Snapshot{CouponCode: "FOOD10"}.
		With(Line{MenuItemID: 1, UnitPrice: d("11.99"), Quantity: 1})

	t.Run("updates a dish in the cart at its snapshot price", func(t *testing.T) {
		got, err := svc.SetQuantity(t.Context(), snap, 1, 4)
		require.NoError(t, err)
		require.Len(t, got.Lines, 1)
		assert.Equal(t, 4, got.Lines[0].Quantity)
		assert.True(t, d("11.99").Equal(got.Lines[0].UnitPrice))
		assert.Equal(t, "FOOD10", got.CouponCode)
		assert.Equal(t, 1, snap.Lines[0].Quantity)
	})

	t.Run("adds a missing dish at the menu price", func(t *testing.T) {
		got, err := svc.SetQuantity(t.Context(), snap, 2, 2)
		require.NoError(t, err)
		require.Len(t, got.Lines, 2)
		assert.Equal(t, "Carbonara", got.Lines[1].Name)
		assert.True(t, d("14.99").Equal(got.Lines[1].UnitPrice))
	})

	tests := []struct {
		name   string
		itemID int64
		qty    int
		check  func(t *testing.T, err error)
	}{
		{"unavailable", 3, 1, func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrItemUnavailable) }},
		{"unknown", 42, 1, func(t *testing.T, err error) { assert.ErrorIs(t, err, menu.ErrNotFound) }},
		{"over the cap", 1, pricing.MaxQuantity + 1, func(t *testing.T, err error) {
			var qtyErr *InvalidQuantityError
			assert.ErrorAs(t, err, &qtyErr)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SetQuantity(t.Context(), snap, tt.itemID, tt.qty)
			require.Error(t, err)
			tt.check(t, err)
		})
	}

	catalog.byID[1].Available = false
	_, err := svc.SetQuantity(t.Context(), snap, 1, 2)
	assert.ErrorIs(t, err, ErrItemUnavailable, "dishes already in the cart are re-checked")
}

package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/foodorder/internal/domain/coupon"
	"github.com/xenking/foodorder/internal/domain/menu"
	"github.com/xenking/foodorder/internal/domain/pricing"
)

func newCalculator(t *testing.T) *pricing.Calculator {
	t.Helper()
	table, err := coupon.NewTable(coupon.DefaultRules()...)
	require.NoError(t, err)
	return pricing.NewCalculator(pricing.DefaultConfig(), table)
}

func newTestService(t *testing.T, repo *memRepo, opts ...Option) *Service {
	t.Helper()
	svc, err := NewService(repo, newCalculator(t), opts...)
	require.NoError(t, err)
	return svc
}

func validRequest() CreateRequest {
	return CreateRequest{
		Delivery: Delivery{
			Address: "12 Baker Street",
			City:    "London",
			Zip:     "NW16XE",
		},
		PaymentMethod: PaymentCash,
		Items: []ItemRequest{
			{MenuItemID: 1, Quantity: 2, UnitPrice: d("12.99")},
			{MenuItemID: 2, Quantity: 1, UnitPrice: d("14.99")},
		},
	}
}

func catalogFor(items ...menu.MenuItem) *mockCatalog {
	return &mockCatalog{items: items}
}

func TestCreate_PricesAndPersists(t *testing.T) {
	repo := newMemRepo()
	notifier := &recordingNotifier{}
	svc := newTestService(t, repo, WithNotifier(notifier))

	o, err := svc.Create(context.Background(), 7, validRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, o.ID)
	assert.Regexp(t, `^ORD-\d{6}-[0-9A-Z]{6}$`, o.Number)
	assert.Equal(t, int64(7), o.UserID)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	assert.True(t, d("40.97").Equal(o.Subtotal))
	assert.True(t, d("0").Equal(o.Discount))
	assert.True(t, d("5.99").Equal(o.DeliveryFee))
	assert.True(t, d("3.28").Equal(o.Tax))
	assert.True(t, d("50.24").Equal(o.Total))
	require.Len(t, o.Items, 2)
	assert.True(t, d("12.99").Equal(o.Items[0].UnitPrice))

	// The returned order is the materialised copy from storage.
	assert.Equal(t, "Test User", o.Customer.Name)
	assert.False(t, o.CreatedAt.IsZero())

	require.Len(t, notifier.events, 1)
	assert.Equal(t, EventCreated, notifier.events[0].Type)
	assert.Equal(t, o.ID, notifier.events[0].OrderID)
}

func TestCreate_WithCoupon(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo)

	req := validRequest()
	req.Items = []ItemRequest{{MenuItemID: 1, Quantity: 2, UnitPrice: d("12.99")}}
	req.CouponCode = "food10"

	o, err := svc.Create(context.Background(), 1, req)
	require.NoError(t, err)
	assert.True(t, d("2.60").Equal(o.Discount))
	assert.True(t, d("31.24").Equal(o.Total))
	assert.Equal(t, "FOOD10", o.CouponCode)
}

func TestCreate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *CreateRequest)
		check  func(t *testing.T, err error)
	}{
		{
			name:   "empty items",
			mutate: func(r *CreateRequest) { r.Items = nil },
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, pricing.ErrInvalidCart)
			},
		},
		{
			name:   "zero quantity",
			mutate: func(r *CreateRequest) { r.Items[1].Quantity = 0 },
			check: func(t *testing.T, err error) {
				var lineErr *pricing.InvalidLineItemError
				require.ErrorAs(t, err, &lineErr)
				assert.Equal(t, 1, lineErr.Index)
			},
		},
		{
			name:   "negative price",
			mutate: func(r *CreateRequest) { r.Items[0].UnitPrice = d("-1") },
			check: func(t *testing.T, err error) {
				var lineErr *pricing.InvalidLineItemError
				require.ErrorAs(t, err, &lineErr)
			},
		},
		{
			name:   "unknown payment method",
			mutate: func(r *CreateRequest) { r.PaymentMethod = "crypto" },
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrInvalidPaymentMethod)
			},
		},
		{
			name:   "missing city",
			mutate: func(r *CreateRequest) { r.Delivery.City = "" },
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrDeliveryRequired)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo()
			svc := newTestService(t, repo)

			req := validRequest()
			tt.mutate(&req)

			o, err := svc.Create(context.Background(), 1, req)
			assert.Nil(t, o)
			tt.check(t, err)
			assert.Empty(t, repo.orders, "nothing must be written")
		})
	}
}

func TestCreate_PriceVerification(t *testing.T) {
	pizza := menu.MenuItem{ID: 1, Name: "Pizza", Price: d("12.99"), Available: true}
	pasta := menu.MenuItem{ID: 2, Name: "Pasta", Price: d("14.99"), Available: true}

	tests := []struct {
		name    string
		catalog *mockCatalog
		check   func(t *testing.T, err error)
	}{
		{
			name:    "prices match",
			catalog: catalogFor(pizza, pasta),
			check: func(t *testing.T, err error) {
				require.NoError(t, err)
			},
		},
		{
			name: "price changed",
			catalog: catalogFor(pizza, menu.MenuItem{
				ID: 2, Name: "Pasta", Price: d("15.49"), Available: true,
			}),
			check: func(t *testing.T, err error) {
				var mismatch *PriceMismatchError
				require.ErrorAs(t, err, &mismatch)
				assert.Equal(t, int64(2), mismatch.MenuItemID)
				assert.True(t, d("14.99").Equal(mismatch.Requested))
				assert.True(t, d("15.49").Equal(mismatch.Current))
			},
		},
		{
			name: "item unavailable",
			catalog: catalogFor(pizza, menu.MenuItem{
				ID: 2, Name: "Pasta", Price: d("14.99"), Available: false,
			}),
			check: func(t *testing.T, err error) {
				var unavailable *ItemUnavailableError
				require.ErrorAs(t, err, &unavailable)
				assert.Equal(t, int64(2), unavailable.MenuItemID)
			},
		},
		{
			name:    "item missing",
			catalog: catalogFor(pizza),
			check: func(t *testing.T, err error) {
				var missing *MenuItemNotFoundError
				require.ErrorAs(t, err, &missing)
				assert.Equal(t, int64(2), missing.MenuItemID)
			},
		},
		{
			name:    "catalog failure",
			catalog: &mockCatalog{err: errBoom},
			check: func(t *testing.T, err error) {
				var storage *StorageError
				require.ErrorAs(t, err, &storage)
				require.ErrorIs(t, err, errBoom)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo()
			svc := newTestService(t, repo, WithCatalog(tt.catalog))

			_, err := svc.Create(context.Background(), 1, validRequest())
			tt.check(t, err)
		})
	}
}

func TestCreate_StorageFailure(t *testing.T) {
	repo := newMemRepo()
	repo.createErr = errBoom
	notifier := &recordingNotifier{}
	svc := newTestService(t, repo, WithNotifier(notifier))

	o, err := svc.Create(context.Background(), 1, validRequest())
	assert.Nil(t, o)

	var creation *OrderCreationError
	require.ErrorAs(t, err, &creation)
	require.ErrorIs(t, err, errBoom)
	assert.Empty(t, notifier.events)
}

func TestCreate_NotifierFailureDoesNotFail(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo, WithNotifier(&recordingNotifier{err: errBoom}))

	o, err := svc.Create(context.Background(), 1, validRequest())
	require.NoError(t, err)
	assert.NotNil(t, o)
}

func seedOrder(repo *memRepo, id string, status Status, pay PaymentStatus, method PaymentMethod) {
	repo.insert(Order{
		ID:            id,
		Number:        "ORD-000001-AAAAAA",
		UserID:        1,
		Status:        status,
		PaymentStatus: pay,
		PaymentMethod: method,
		Total:         d("10.00"),
	})
}

func TestUpdateStatus(t *testing.T) {
	tests := []struct {
		name      string
		from      Status
		to        Status
		wantErr   bool
		wantFinal Status
	}{
		{name: "pending to ready", from: StatusPending, to: StatusReady, wantFinal: StatusReady},
		{name: "ready to on the way", from: StatusReady, to: StatusOnTheWay, wantFinal: StatusOnTheWay},
		{name: "on the way to delivered", from: StatusOnTheWay, to: StatusDelivered, wantFinal: StatusDelivered},
		{name: "pending to delivered is illegal", from: StatusPending, to: StatusDelivered, wantErr: true, wantFinal: StatusPending},
		{name: "delivered is terminal", from: StatusDelivered, to: StatusCancelled, wantErr: true, wantFinal: StatusDelivered},
		{name: "cancelled is terminal", from: StatusCancelled, to: StatusPending, wantErr: true, wantFinal: StatusCancelled},
		{name: "on the way cannot be cancelled", from: StatusOnTheWay, to: StatusCancelled, wantErr: true, wantFinal: StatusOnTheWay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo()
			seedOrder(repo, "o1", tt.from, PaymentPending, PaymentCash)
			svc := newTestService(t, repo)

			o, err := svc.UpdateStatus(context.Background(), "o1", tt.to)
			if tt.wantErr {
				var illegal *IllegalTransitionError
				require.ErrorAs(t, err, &illegal)
				assert.Nil(t, o)
			} else {
				require.NoError(t, err)
				require.NotNil(t, o)
				assert.Equal(t, tt.wantFinal, o.Status)
				assert.True(t, o.UpdatedAt.After(o.CreatedAt))
			}
			assert.Equal(t, tt.wantFinal, repo.orders["o1"].Status)
		})
	}
}

func TestUpdateStatus_Missing(t *testing.T) {
	svc := newTestService(t, newMemRepo())

	o, err := svc.UpdateStatus(context.Background(), "nope", StatusReady)
	require.NoError(t, err)
	assert.Nil(t, o)
}

func TestUpdateStatus_InvalidValue(t *testing.T) {
	svc := newTestService(t, newMemRepo())

	_, err := svc.UpdateStatus(context.Background(), "o1", Status("shipped"))
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateStatus_ConcurrentChange(t *testing.T) {
	repo := newMemRepo()
	seedOrder(repo, "o1", StatusReady, PaymentPending, PaymentCash)
	// Another writer cancels the order between the read and the write.
	repo.beforeApply = func(o *Order) { o.Status = StatusCancelled }
	svc := newTestService(t, repo)

	_, err := svc.UpdateStatus(context.Background(), "o1", StatusOnTheWay)
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, StatusCancelled, repo.orders["o1"].Status)
}

func TestUpdateStatus_StorageError(t *testing.T) {
	repo := newMemRepo()
	seedOrder(repo, "o1", StatusPending, PaymentPending, PaymentCash)
	repo.applyErr = errBoom
	svc := newTestService(t, repo)

	_, err := svc.UpdateStatus(context.Background(), "o1", StatusReady)
	var storage *StorageError
	require.ErrorAs(t, err, &storage)
	require.ErrorIs(t, err, errBoom)
}

func TestUpdatePaymentStatus(t *testing.T) {
	repo := newMemRepo()
	seedOrder(repo, "o1", StatusPending, PaymentPending, PaymentCard)
	notifier := &recordingNotifier{}
	svc := newTestService(t, repo, WithNotifier(notifier))

	o, err := svc.UpdatePaymentStatus(context.Background(), "o1", PaymentRefunded)
	require.NoError(t, err)
	assert.Equal(t, PaymentRefunded, o.PaymentStatus)
	assert.Equal(t, StatusPending, o.Status)
	require.Len(t, notifier.events, 1)
	assert.Equal(t, EventPaymentChanged, notifier.events[0].Type)

	o, err = svc.UpdatePaymentStatus(context.Background(), "missing", PaymentCompleted)
	require.NoError(t, err)
	assert.Nil(t, o)

	_, err = svc.UpdatePaymentStatus(context.Background(), "o1", PaymentStatus("paid"))
	require.ErrorIs(t, err, ErrInvalidPaymentStatus)
}

func TestCancel(t *testing.T) {
	tests := []struct {
		name      string
		from      Status
		wantNil   bool
		wantFinal Status
	}{
		{name: "pending", from: StatusPending, wantFinal: StatusCancelled},
		{name: "ready", from: StatusReady, wantFinal: StatusCancelled},
		{name: "on the way is a no-op", from: StatusOnTheWay, wantNil: true, wantFinal: StatusOnTheWay},
		{name: "delivered is a no-op", from: StatusDelivered, wantNil: true, wantFinal: StatusDelivered},
		{name: "already cancelled is a no-op", from: StatusCancelled, wantNil: true, wantFinal: StatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo()
			seedOrder(repo, "o1", tt.from, PaymentPending, PaymentCash)
			svc := newTestService(t, repo)

			o, err := svc.Cancel(context.Background(), "o1")
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, o)
			} else {
				require.NotNil(t, o)
				assert.Equal(t, StatusCancelled, o.Status)
			}
			assert.Equal(t, tt.wantFinal, repo.orders["o1"].Status)
		})
	}
}

func TestCancel_Missing(t *testing.T) {
	svc := newTestService(t, newMemRepo())

	o, err := svc.Cancel(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, o)
}

func TestCreate_UsesClock(t *testing.T) {
	repo := newMemRepo()
	fixed := time.UnixMilli(1718450999999)
	svc := newTestService(t, repo, WithClock(func() time.Time { return fixed }))

	o, err := svc.Create(context.Background(), 1, validRequest())
	require.NoError(t, err)
	assert.Regexp(t, `^ORD-999999-`, o.Number)
}

package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/foodorder/internal/domain/menu"
	"github.com/xenking/foodorder/internal/domain/pricing"
)

// ErrDeliveryRequired is returned when the delivery address is incomplete.
var ErrDeliveryRequired = errors.New("delivery address, city and zip are required")

// Catalog resolves menu items for price re-validation.
type Catalog interface {
	GetByIDs(ctx context.Context, ids []int64) ([]menu.MenuItem, error)
}

// CreateRequest holds the input for placing an order.
type CreateRequest struct {
	Delivery      Delivery
	PaymentMethod PaymentMethod
	Items         []ItemRequest
	Notes         string
	CouponCode    string
}

// ItemRequest is one submitted cart line.
type ItemRequest struct {
	MenuItemID int64
	Quantity   int
	UnitPrice  decimal.Decimal
}

// Option configures a Service.
type Option func(*Service)

// WithCatalog enables re-validation of submitted prices and availability
// against the menu before an order is written.
func WithCatalog(c Catalog) Option {
	return func(s *Service) { s.catalog = c }
}

// WithNotifier sets the receiver of order events.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithTelemetry sets the tracer and meter providers.
func WithTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) Option {
	return func(s *Service) {
		s.tp = tp
		s.mp = mp
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service owns every order write: placement, status changes, payment status
// changes and cancellation.
type Service struct {
	orders   Repository
	calc     *pricing.Calculator
	catalog  Catalog
	notifier Notifier
	now      func() time.Time

	tp      trace.TracerProvider
	mp      metric.MeterProvider
	tracer  trace.Tracer
	metrics *metrics
}

// NewService creates an order Service.
func NewService(orders Repository, calc *pricing.Calculator, opts ...Option) (*Service, error) {
	s := &Service{
		orders:   orders,
		calc:     calc,
		notifier: nopNotifier{},
		now:      time.Now,
		tp:       tracenoop.NewTracerProvider(),
		mp:       metricnoop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(s)
	}

	m, err := newMetrics(s.mp)
	if err != nil {
		return nil, errors.Wrap(err, "create metrics")
	}
	s.metrics = m
	s.tracer = s.tp.Tracer(instrumentationName)

	return s, nil
}

// Create validates and prices the request, then writes the order and all of
// its items in one transaction. The returned order is re-read from storage.
func (s *Service) Create(ctx context.Context, userID int64, req CreateRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Create",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer func() { endSpan(span, rerr) }()

	if !req.PaymentMethod.Valid() {
		return nil, ErrInvalidPaymentMethod
	}
	if req.Delivery.Address == "" || req.Delivery.City == "" || req.Delivery.Zip == "" {
		return nil, ErrDeliveryRequired
	}

	lines := make([]pricing.LineItem, len(req.Items))
	for i, item := range req.Items {
		lines[i] = pricing.LineItem{UnitPrice: item.UnitPrice, Quantity: item.Quantity}
	}
	if err := pricing.Validate(lines); err != nil {
		return nil, err
	}

	if s.catalog != nil {
		if err := s.verifyPrices(ctx, req.Items); err != nil {
			return nil, err
		}
	}

	b, err := s.calc.Calculate(lines, req.CouponCode)
	if err != nil {
		return nil, err
	}

	now := s.now()
	items := make([]Item, len(req.Items))
	for i, item := range req.Items {
		items[i] = Item{
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
		}
	}
	o := &Order{
		ID:            uuid.New().String(),
		Number:        newOrderNumber(now),
		UserID:        userID,
		Subtotal:      b.Subtotal,
		Discount:      b.Discount,
		DeliveryFee:   b.DeliveryFee,
		Tax:           b.Tax,
		Total:         b.Total,
		CouponCode:    b.CouponCode,
		Status:        StatusPending,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: PaymentPending,
		Delivery:      req.Delivery,
		Notes:         req.Notes,
		Items:         items,
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, &OrderCreationError{Err: err}
	}
	span.SetAttributes(attribute.String("order.id", o.ID))

	created, err := s.orders.GetByID(ctx, o.ID)
	if err != nil {
		return nil, storageErr("read created order", err)
	}

	s.metrics.orderCreated(ctx, created)
	s.notify(ctx, EventCreated, created)

	return created, nil
}

// verifyPrices fetches all referenced menu items in one batch and checks
// that each exists, is available and still costs the submitted price.
func (s *Service) verifyPrices(ctx context.Context, items []ItemRequest) error {
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.MenuItemID
	}

	fetched, err := s.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return storageErr("get menu items", err)
	}
	byID := make(map[int64]menu.MenuItem, len(fetched))
	for _, m := range fetched {
		byID[m.ID] = m
	}

	for _, item := range items {
		m, ok := byID[item.MenuItemID]
		if !ok {
			return &MenuItemNotFoundError{MenuItemID: item.MenuItemID}
		}
		if !m.Available {
			return &ItemUnavailableError{MenuItemID: m.ID, Name: m.Name}
		}
		if !m.Price.Equal(item.UnitPrice) {
			return &PriceMismatchError{
				MenuItemID: m.ID,
				Requested:  item.UnitPrice,
				Current:    m.Price,
			}
		}
	}
	return nil
}

// UpdateStatus moves an order to a new status. It returns nil without error
// when the order does not exist and an *IllegalTransitionError when the
// move is not allowed from the current status.
func (s *Service) UpdateStatus(ctx context.Context, id string, to Status) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdateStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.status", string(to)),
	))
	defer func() { endSpan(span, rerr) }()

	if !to.Valid() {
		return nil, ErrInvalidStatus
	}

	current, err := s.find(ctx, id)
	if err != nil || current == nil {
		return nil, err
	}
	if _, err := Apply(*current, to, s.now()); err != nil {
		return nil, err
	}

	return s.change(ctx, id, Change{
		FromStatuses: []Status{current.Status},
		ToStatus:     to,
	}, EventStatusChanged)
}

// UpdatePaymentStatus sets the payment status of an order. Only the value
// is checked; the payment workflows enforce ordering. It returns nil
// without error when the order does not exist.
func (s *Service) UpdatePaymentStatus(ctx context.Context, id string, to PaymentStatus) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdatePaymentStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.payment_status", string(to)),
	))
	defer func() { endSpan(span, rerr) }()

	if !to.Valid() {
		return nil, ErrInvalidPaymentStatus
	}

	o, err := s.change(ctx, id, Change{ToPayment: to}, EventPaymentChanged)
	if errors.Is(err, ErrConflict) {
		// Unguarded, so a miss can only mean the order vanished.
		return nil, nil
	}
	return o, err
}

// Cancel cancels an order that is pending or ready. It returns nil without
// error when the order does not exist or can no longer be cancelled;
// callers tell the two apart with a prior read.
func (s *Service) Cancel(ctx context.Context, id string) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Cancel", trace.WithAttributes(
		attribute.String("order.id", id),
	))
	defer func() { endSpan(span, rerr) }()

	o, err := s.change(ctx, id, Change{
		FromStatuses: []Status{StatusPending, StatusReady},
		ToStatus:     StatusCancelled,
	}, EventStatusChanged)
	if errors.Is(err, ErrConflict) {
		return nil, nil
	}
	return o, err
}

// find returns the order or nil when it does not exist.
func (s *Service) find(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get order", err)
	}
	return o, nil
}

// change applies ch and returns the re-read order. A missing order yields
// nil without error; a guard mismatch yields ErrConflict.
func (s *Service) change(ctx context.Context, id string, ch Change, event EventType) (*Order, error) {
	if err := s.orders.Apply(ctx, id, ch); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, nil
		case errors.Is(err, ErrConflict):
			return nil, ErrConflict
		default:
			return nil, storageErr("update order", err)
		}
	}

	updated, err := s.find(ctx, id)
	if err != nil || updated == nil {
		return nil, err
	}

	s.metrics.orderChanged(ctx, event, updated)
	s.notify(ctx, event, updated)

	return updated, nil
}

func (s *Service) notify(ctx context.Context, t EventType, o *Order) {
	if err := s.notifier.Notify(ctx, newEvent(t, o, s.now())); err != nil {
		zctx.From(ctx).Warn("Order notification failed",
			zap.String("event", string(t)),
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

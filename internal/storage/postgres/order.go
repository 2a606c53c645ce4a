package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodorder/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (
			id, order_number, user_id, subtotal, discount, delivery_fee, tax, total_amount,
			coupon_code, status, payment_method, payment_status,
			delivery_address, delivery_city, delivery_zip, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, menu_item_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)`

	orderColumns = `o.id, o.order_number, o.user_id,
		COALESCE(u.name, ''), COALESCE(u.email, ''), COALESCE(u.phone, ''),
		o.subtotal, o.discount, o.delivery_fee, o.tax, o.total_amount, o.coupon_code,
		o.status, o.payment_method, o.payment_status,
		o.delivery_address, o.delivery_city, o.delivery_zip, o.notes,
		o.created_at, o.updated_at`

	orderFrom = ` FROM orders o LEFT JOIN users u ON u.id = o.user_id`

	getOrderByIDSQL = `SELECT ` + orderColumns + orderFrom + ` WHERE o.id = $1`

	getOrderItemsSQL = `SELECT oi.menu_item_id, oi.quantity, oi.unit_price,
			COALESCE(mi.name, ''), COALESCE(mi.image, '')
		FROM order_items oi LEFT JOIN menu_items mi ON mi.id = oi.menu_item_id
		WHERE oi.order_id = $1
		ORDER BY oi.id`

	// applyChangeSQL moves an order in one statement so concurrent writers
	// cannot interleave between the guard and the write.
	applyChangeSQL = `UPDATE orders SET
			status = CASE WHEN $2 = '' THEN status ELSE $2 END,
			payment_status = CASE WHEN $3 = '' THEN payment_status ELSE $3 END,
			updated_at = now()
		WHERE id = $1
			AND (cardinality($4::text[]) = 0 OR status = ANY($4::text[]))
			AND ($5 = '' OR payment_status = $5)`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`

	orderStatsSQL = `SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'ready'),
			COUNT(*) FILTER (WHERE status = 'on_the_way'),
			COUNT(*) FILTER (WHERE status = 'delivered'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COALESCE(SUM(total_amount), 0),
			COALESCE(AVG(total_amount), 0),
			COUNT(*) FILTER (WHERE created_at >= $1)
		FROM orders`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts the order row and its item rows in one transaction. Any
// failure rolls the transaction back before the error is returned, so no
// partial order is ever visible.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) (rerr error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning order transaction: %w", err)
	}
	defer func() {
		if rerr != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID, o.Number, o.UserID,
		o.Subtotal, o.Discount, o.DeliveryFee, o.Tax, o.Total,
		o.CouponCode, string(o.Status), string(o.PaymentMethod), string(o.PaymentStatus),
		o.Delivery.Address, o.Delivery.City, o.Delivery.Zip, o.Notes,
	)
	if err != nil {
		return fmt.Errorf("inserting order %q: %w", o.ID, err)
	}

	batch := &pgx.Batch{}
	for _, item := range o.Items {
		batch.Queue(insertOrderItemSQL, o.ID, item.MenuItemID, item.Quantity, item.UnitPrice)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting items of order %q: %w", o.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns the order with customer fields and items. Item names and
// images come from the current menu.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	rows, err = r.pool.Query(ctx, getOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting items of order %q: %w", id, err)
	}
	o.Items, err = pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return nil, fmt.Errorf("getting items of order %q: %w", id, err)
	}

	return &o, nil
}

// Apply performs a guarded status and payment status change.
func (r *OrderRepository) Apply(ctx context.Context, id string, ch order.Change) error {
	from := make([]string, len(ch.FromStatuses))
	for i, s := range ch.FromStatuses {
		from[i] = string(s)
	}

	tag, err := r.pool.Exec(ctx, applyChangeSQL,
		id, string(ch.ToStatus), string(ch.ToPayment), from, string(ch.FromPayment),
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking order %q: %w", id, err)
	}
	if !exists {
		return order.ErrNotFound
	}
	return order.ErrConflict
}

// ListByUser returns a customer's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID int64, f order.UserFilter) ([]order.Order, error) {
	q := newQuery(`SELECT ` + orderColumns + orderFrom)
	q.where("o.user_id = " + q.arg(userID))
	if f.Status != "" {
		q.where("o.status = " + q.arg(string(f.Status)))
	}
	if f.From != nil {
		q.where("o.created_at >= " + q.arg(*f.From))
	}
	if f.To != nil {
		q.where("o.created_at <= " + q.arg(*f.To))
	}

	rows, err := r.pool.Query(ctx, q.String(" ORDER BY o.created_at DESC"), q.args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders of user %d: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// List returns all orders matching f, newest first.
func (r *OrderRepository) List(ctx context.Context, f order.AdminFilter) ([]order.Order, error) {
	q := newQuery(`SELECT ` + orderColumns + orderFrom)
	if f.Status != "" {
		q.where("o.status = " + q.arg(string(f.Status)))
	}
	if f.Search != "" {
		p := q.arg(containsPattern(f.Search))
		q.where("(o.id ILIKE " + p + likeEscape + " OR o.order_number ILIKE " + p + likeEscape +
			" OR u.name ILIKE " + p + likeEscape + ")")
	}

	rows, err := r.pool.Query(ctx, q.String(" ORDER BY o.created_at DESC"), q.args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// Stats aggregates all orders.
func (r *OrderRepository) Stats(ctx context.Context, since time.Time) (*order.Stats, error) {
	var (
		s                                              order.Stats
		pending, ready, onTheWay, delivered, cancelled int
		revenue, average                               decimal.Decimal
	)
	err := r.pool.QueryRow(ctx, orderStatsSQL, since).Scan(
		&s.Total, &pending, &ready, &onTheWay, &delivered, &cancelled,
		&revenue, &average, &s.PlacedToday,
	)
	if err != nil {
		return nil, fmt.Errorf("computing order stats: %w", err)
	}

	s.ByStatus = map[order.Status]int{
		order.StatusPending:   pending,
		order.StatusReady:     ready,
		order.StatusOnTheWay:  onTheWay,
		order.StatusDelivered: delivered,
		order.StatusCancelled: cancelled,
	}
	s.Revenue = revenue.Round(2)
	s.AverageTotal = average.Round(2)
	return &s, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                     order.Order
		status, method, paySt string
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.UserID,
		&o.Customer.Name, &o.Customer.Email, &o.Customer.Phone,
		&o.Subtotal, &o.Discount, &o.DeliveryFee, &o.Tax, &o.Total, &o.CouponCode,
		&status, &method, &paySt,
		&o.Delivery.Address, &o.Delivery.City, &o.Delivery.Zip, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = order.Status(status)
	o.PaymentMethod = order.PaymentMethod(method)
	o.PaymentStatus = order.PaymentStatus(paySt)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var it order.Item
	err := row.Scan(&it.MenuItemID, &it.Quantity, &it.UnitPrice, &it.Name, &it.Image)
	return it, err
}

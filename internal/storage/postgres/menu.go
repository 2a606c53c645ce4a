package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/foodorder/internal/domain/menu"
)

const (
	menuColumns = `mi.id, mi.name, mi.description, mi.price, mi.image,
		COALESCE(c.name, ''), mi.is_available, mi.created_at, mi.updated_at`

	menuFrom = ` FROM menu_items mi LEFT JOIN categories c ON c.id = mi.category_id`

	getMenuItemByIDSQL = `SELECT ` + menuColumns + menuFrom + ` WHERE mi.id = $1`

	getMenuItemsByIDsSQL = `SELECT ` + menuColumns + menuFrom + ` WHERE mi.id = ANY($1)`

	upsertCategorySQL = `INSERT INTO categories (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`

	insertMenuItemSQL = `INSERT INTO menu_items (name, description, price, image, category_id, is_available)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	updateMenuItemSQL = `UPDATE menu_items
		SET name = $2, description = $3, price = $4, image = $5, category_id = $6,
			is_available = $7, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`

	toggleMenuItemSQL = `WITH mi AS (
			UPDATE menu_items SET is_available = NOT is_available, updated_at = now()
			WHERE id = $1
			RETURNING *
		)
		SELECT ` + menuColumns + ` FROM mi LEFT JOIN categories c ON c.id = mi.category_id`

	upsertMenuItemByNameSQL = `INSERT INTO menu_items (name, description, price, image, category_id, is_available)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description,
			price = EXCLUDED.price, image = EXCLUDED.image,
			category_id = EXCLUDED.category_id, is_available = EXCLUDED.is_available,
			updated_at = now()
		RETURNING id`
)

var _ menu.Repository = (*MenuRepository)(nil)

// MenuRepository implements menu.Repository backed by PostgreSQL.
type MenuRepository struct {
	pool *pgxpool.Pool
}

// NewMenuRepository returns a MenuRepository that uses the given pool.
func NewMenuRepository(pool *pgxpool.Pool) *MenuRepository {
	return &MenuRepository{pool: pool}
}

// List returns menu items matching f ordered by category and name.
func (r *MenuRepository) List(ctx context.Context, f menu.Filter) ([]menu.MenuItem, error) {
	q := newQuery(`SELECT ` + menuColumns + menuFrom)
	if !f.IncludeUnavailable {
		q.where("mi.is_available")
	}
	if f.Category != "" {
		q.where("c.name ILIKE " + q.arg(f.Category))
	}
	if f.Search != "" {
		p := q.arg(containsPattern(f.Search))
		q.where("(mi.name ILIKE " + p + likeEscape + " OR mi.description ILIKE " + p + likeEscape + ")")
	}
	if f.MinPrice.Valid {
		q.where("mi.price >= " + q.arg(f.MinPrice.Decimal))
	}
	if f.MaxPrice.Valid {
		q.where("mi.price <= " + q.arg(f.MaxPrice.Decimal))
	}

	rows, err := r.pool.Query(ctx, q.String(" ORDER BY c.name NULLS LAST, mi.name"), q.args...)
	if err != nil {
		return nil, fmt.Errorf("listing menu items: %w", err)
	}
	return pgx.CollectRows(rows, scanMenuItem)
}

// GetByID returns a single menu item by its identifier.
func (r *MenuRepository) GetByID(ctx context.Context, id int64) (*menu.MenuItem, error) {
	rows, err := r.pool.Query(ctx, getMenuItemByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting menu item %d: %w", id, err)
	}

	item, err := pgx.CollectExactlyOneRow(rows, scanMenuItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, menu.ErrNotFound
		}
		return nil, fmt.Errorf("getting menu item %d: %w", id, err)
	}
	return &item, nil
}

// GetByIDs returns menu items matching any of the given IDs.
func (r *MenuRepository) GetByIDs(ctx context.Context, ids []int64) ([]menu.MenuItem, error) {
	rows, err := r.pool.Query(ctx, getMenuItemsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting menu items by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanMenuItem)
}

// Create inserts a menu item, creating its category if needed, and fills
// in the generated id and timestamps.
func (r *MenuRepository) Create(ctx context.Context, item *menu.MenuItem) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		categoryID, err := upsertCategory(ctx, tx, item.Category)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, insertMenuItemSQL,
			item.Name, item.Description, item.Price, item.Image, categoryID, item.Available,
		).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return menu.ErrDuplicateName
			}
			return fmt.Errorf("creating menu item %q: %w", item.Name, err)
		}
		return nil
	})
}

// Update overwrites a menu item. It returns menu.ErrNotFound when the id
// does not exist.
func (r *MenuRepository) Update(ctx context.Context, item *menu.MenuItem) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		categoryID, err := upsertCategory(ctx, tx, item.Category)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, updateMenuItemSQL,
			item.ID, item.Name, item.Description, item.Price, item.Image, categoryID, item.Available,
		).Scan(&item.CreatedAt, &item.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return menu.ErrNotFound
			}
			if isUniqueViolation(err) {
				return menu.ErrDuplicateName
			}
			return fmt.Errorf("updating menu item %d: %w", item.ID, err)
		}
		return nil
	})
}

// ToggleAvailability flips is_available of a menu item and returns the
// updated row.
func (r *MenuRepository) ToggleAvailability(ctx context.Context, id int64) (*menu.MenuItem, error) {
	rows, err := r.pool.Query(ctx, toggleMenuItemSQL, id)
	if err != nil {
		return nil, fmt.Errorf("toggling menu item %d: %w", id, err)
	}

	item, err := pgx.CollectExactlyOneRow(rows, scanMenuItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, menu.ErrNotFound
		}
		return nil, fmt.Errorf("toggling menu item %d: %w", id, err)
	}
	return &item, nil
}

// UpsertByName inserts a menu item or overwrites the one with the same name.
func (r *MenuRepository) UpsertByName(ctx context.Context, item *menu.MenuItem) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		categoryID, err := upsertCategory(ctx, tx, item.Category)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, upsertMenuItemByNameSQL,
			item.Name, item.Description, item.Price, item.Image, categoryID, item.Available,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("upserting menu item %q: %w", item.Name, err)
		}
		return nil
	})
}

// upsertCategory returns the id of the named category, or nil for an empty
// name.
func upsertCategory(ctx context.Context, tx pgx.Tx, name string) (*int64, error) {
	if name == "" {
		return nil, nil
	}
	var id int64
	if err := tx.QueryRow(ctx, upsertCategorySQL, name).Scan(&id); err != nil {
		return nil, fmt.Errorf("upserting category %q: %w", name, err)
	}
	return &id, nil
}

func scanMenuItem(row pgx.CollectableRow) (menu.MenuItem, error) {
	var m menu.MenuItem
	err := row.Scan(
		&m.ID, &m.Name, &m.Description, &m.Price, &m.Image,
		&m.Category, &m.Available, &m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

// uniqueViolation is the SQLSTATE of unique_violation.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/foodorder/internal/domain/auth"
)

const upsertUserSQL = `INSERT INTO users (name, email, phone, role)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name,
		phone = EXCLUDED.phone, role = EXCLUDED.role
	RETURNING id`

// User is an account row. Accounts are managed elsewhere; this service only
// seeds them and reads display fields.
type User struct {
	Name  string
	Email string
	Phone string
	Role  auth.Role
}

// UserRepository writes user rows.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Upsert inserts or updates a user by email and returns its id.
func (r *UserRepository) Upsert(ctx context.Context, u User) (int64, error) {
	var id int64
	if err := r.pool.QueryRow(ctx, upsertUserSQL, u.Name, u.Email, u.Phone, string(u.Role)).Scan(&id); err != nil {
		return 0, fmt.Errorf("upserting user %q: %w", u.Email, err)
	}
	return id, nil
}

package postgres

import (
	"fmt"
	"testing"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestContainsPattern(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"pizza", "%pizza%"},
		{"100%", `%100\%%`},
		{"ORD_1", `%ORD\_1%`},
		{`a\b`, `%a\\b%`},
		{"", "%%"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, containsPattern(tt.in))
		})
	}
}

func TestQuery(t *testing.T) {
	q := newQuery("SELECT * FROM menu_items mi")
	assert.Equal(t, "SELECT * FROM menu_items mi ORDER BY mi.name", q.String(" ORDER BY mi.name"))

	q.where("mi.is_available")
	q.where("mi.name ILIKE " + q.arg(containsPattern("50%")) + likeEscape)
	q.where("mi.price <= " + q.arg(10))

	assert.Equal(t,
		`SELECT * FROM menu_items mi WHERE mi.is_available AND mi.name ILIKE $1 ESCAPE '\' AND mi.price <= $2`,
		q.String(""))
	assert.Equal(t, []any{`%50\%%`, 10}, q.args)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

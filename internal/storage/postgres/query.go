package postgres

import (
	"fmt"
	"strings"
)

// likeEscape follows every ILIKE built from containsPattern.
const likeEscape = ` ESCAPE '\'`

var likeReplacer = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern returns an ILIKE pattern matching s literally anywhere in
// the value.
func containsPattern(s string) string {
	return "%" + likeReplacer.Replace(s) + "%"
}

// query builds a SELECT with positional arguments.
type query struct {
	base       string
	conditions []string
	args       []any
}

func newQuery(base string) *query {
	return &query{base: base}
}

func (q *query) arg(v any) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

func (q *query) where(cond string) {
	q.conditions = append(q.conditions, cond)
}

func (q *query) String(suffix string) string {
	var b strings.Builder
	b.WriteString(q.base)
	if len(q.conditions) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(q.conditions, " AND "))
	}
	b.WriteString(suffix)
	return b.String()
}

package coupon

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ErrInvalidRule is returned when a coupon rule cannot be added to a table.
var ErrInvalidRule = errors.New("invalid coupon rule")

// Rule is a percentage-off coupon.
type Rule struct {
	Code    string
	Percent decimal.Decimal
}

// Discount returns subtotal × percent / 100 without rounding.
func (r Rule) Discount(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(r.Percent).Div(hundred)
}

// DefaultRules returns the built-in coupon codes.
func DefaultRules() []Rule {
	return []Rule{
		{Code: "FOOD10", Percent: decimal.NewFromInt(10)},
		{Code: "WELCOME15", Percent: decimal.NewFromInt(15)},
		{Code: "SAVE20", Percent: decimal.NewFromInt(20)},
	}
}

// Table is an immutable lookup of coupon codes. Codes are matched
// case-insensitively after trimming surrounding whitespace.
type Table struct {
	rules map[string]Rule
}

// NewTable builds a Table from rules. Percentages must be in (0, 100].
func NewTable(rules ...Rule) (*Table, error) {
	t := &Table{rules: make(map[string]Rule, len(rules))}
	for _, r := range rules {
		code := normalize(r.Code)
		if code == "" {
			return nil, errors.Wrap(ErrInvalidRule, "empty code")
		}
		if !r.Percent.IsPositive() || r.Percent.GreaterThan(hundred) {
			return nil, errors.Wrapf(ErrInvalidRule, "%s: percent %s out of range", code, r.Percent)
		}
		if _, dup := t.rules[code]; dup {
			return nil, errors.Wrapf(ErrInvalidRule, "duplicate code %s", code)
		}
		r.Code = code
		t.rules[code] = r
	}
	return t, nil
}

// Lookup returns the rule for code. A nil table matches nothing.
func (t *Table) Lookup(code string) (Rule, bool) {
	if t == nil {
		return Rule{}, false
	}
	r, ok := t.rules[normalize(code)]
	return r, ok
}

// Len reports the number of codes in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}

// ParseRules parses "CODE:PERCENT" entries, as found in configuration.
func ParseRules(entries []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		code, pct, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, errors.Wrapf(ErrInvalidRule, "%q: expected CODE:PERCENT", entry)
		}
		percent, err := decimal.NewFromString(strings.TrimSpace(pct))
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidRule, "%q: %v", entry, err)
		}
		rules = append(rules, Rule{Code: code, Percent: percent})
	}
	return rules, nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

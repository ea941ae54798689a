package db

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Check is a parsed external check: Table.Field[Col=v;Col2=v2][OrderBy=c DESC]=Expected
type Check struct {
	Table    string
	Field    string
	Filters  []Filter
	OrderBy  string
	Expected string
}

type Filter struct {
	Column string
	Value  string
}

var (
	checkPattern      = regexp.MustCompile(`^(\w+)\.(\w+)\s*\[([^\]]*)\](?:\s*\[([^\]]*)\])?\s*=\s*(.*)$`)
	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	orderTermPattern  = regexp.MustCompile(`^(?i)([A-Za-z_][A-Za-z0-9_]*)(?:\s+(ASC|DESC))?$`)
)

// ParseCheck parses the query part of a DB.* expectation.
func ParseCheck(query string) (*Check, error) {
	m := checkPattern.FindStringSubmatch(strings.TrimSpace(query))
	if m == nil {
		return nil, fmt.Errorf("invalid database check %q: want Table.Field[Col=value]=expected", query)
	}

	c := &Check{Table: m[1], Field: m[2], Expected: strings.TrimSpace(m[5])}

	for _, cond := range strings.Split(m[3], ";") {
		cond = strings.TrimSpace(cond)
		if cond == "" {
			continue
		}
		col, val, ok := strings.Cut(cond, "=")
		if !ok {
			return nil, fmt.Errorf("invalid filter condition %q", cond)
		}
		col = strings.TrimSpace(col)
		if !identifierPattern.MatchString(col) {
			return nil, fmt.Errorf("invalid filter column %q", col)
		}
		c.Filters = append(c.Filters, Filter{Column: col, Value: unquote(strings.TrimSpace(val))})
	}

	if order := strings.TrimSpace(m[4]); order != "" {
		order = strings.TrimSpace(strings.TrimPrefix(order, "OrderBy="))
		terms := strings.Split(order, ",")
		for i, term := range terms {
			term = strings.TrimSpace(term)
			if !orderTermPattern.MatchString(term) {
				return nil, fmt.Errorf("invalid order term %q", term)
			}
			terms[i] = term
		}
		c.OrderBy = strings.Join(terms, ", ")
	}

	return c, nil
}

// SQL renders the check as a parameterised single-row SELECT.
func (c *Check) SQL() (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", quoteIdent(c.Field), quoteIdent(c.Table))

	args := make([]any, 0, len(c.Filters))
	for i, f := range c.Filters {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		fmt.Fprintf(&b, "%s = ?", quoteIdent(f.Column))
		args = append(args, f.Value)
	}

	if c.OrderBy != "" {
		b.WriteString(" ORDER BY " + c.OrderBy)
	}
	b.WriteString(" LIMIT 1")
	return b.String(), args
}

func quoteIdent(s string) string {
	return `"` + s + `"`
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// Validator answers DB.* expectations against one database.
type Validator struct {
	client *Client
}

func NewValidator(client *Client) *Validator {
	return &Validator{client: client}
}

// Check runs the query and compares the first row's field with the expected
// value. The store name is only used in messages.
func (v *Validator) Check(ctx context.Context, store, query string) (bool, string, error) {
	c, err := ParseCheck(query)
	if err != nil {
		return false, "", err
	}
	if !identifierPattern.MatchString(c.Table) || !identifierPattern.MatchString(c.Field) {
		return false, "", fmt.Errorf("invalid table or field in %q", query)
	}

	stmt, args := c.SQL()
	result, err := v.client.Query(ctx, stmt, args...)
	if err != nil {
		return false, "", fmt.Errorf("%s: %w", store, err)
	}
	if len(result.Rows) == 0 {
		return false, "<no rows>", nil
	}

	actual := formatValue(result.Rows[0][c.Field])
	return valuesEqual(actual, c.Expected), actual, nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}

func valuesEqual(actual, expected string) bool {
	if actual == expected {
		return true
	}
	a, aErr := strconv.ParseFloat(actual, 64)
	e, eErr := strconv.ParseFloat(expected, 64)
	return aErr == nil && eErr == nil && a == e
}

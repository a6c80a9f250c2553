package store

import (
	"fmt"
	"strings"
)

// Update builds a parameterised UPDATE from a whitelist of column names.
// Values are always bound as arguments; only whitelisted identifiers reach the SQL text.
type Update struct {
	table   string
	allowed map[string]struct{}
	columns []string
	args    []any
	err     error
}

// NewUpdate starts an update on table that may only touch the allowed columns.
func NewUpdate(table string, allowed ...string) *Update {
	set := make(map[string]struct{}, len(allowed))
	for _, col := range allowed {
		set[col] = struct{}{}
	}
	return &Update{table: table, allowed: set}
}

// Set assigns value to column. A column outside the whitelist poisons the builder.
func (u *Update) Set(column string, value any) *Update {
	if u.err != nil {
		return u
	}
	if _, ok := u.allowed[column]; !ok {
		u.err = fmt.Errorf("store: column %q is not updatable on %s", column, u.table)
		return u
	}
	for i, existing := range u.columns {
		if existing == column {
			u.args[i] = value
			return u
		}
	}
	u.columns = append(u.columns, column)
	u.args = append(u.args, value)
	return u
}

// Empty reports whether no column has been set.
func (u *Update) Empty() bool {
	return len(u.columns) == 0
}

// Build renders the statement, keyed on idColumn = id, returning the given columns.
func (u *Update) Build(idColumn string, id any, returning string) (string, []any, error) {
	if u.err != nil {
		return "", nil, u.err
	}
	if u.Empty() {
		return "", nil, fmt.Errorf("store: empty update on %s", u.table)
	}
	assignments := make([]string, len(u.columns))
	for i, col := range u.columns {
		assignments[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}
	args := append(append([]any(nil), u.args...), id)

	var b strings.Builder
	fmt.Fprintf(&b, "UPDATE %s SET %s WHERE %s = $%d", u.table, strings.Join(assignments, ", "), idColumn, len(args))
	if returning != "" {
		b.WriteString(" RETURNING ")
		b.WriteString(returning)
	}
	return b.String(), args, nil
}

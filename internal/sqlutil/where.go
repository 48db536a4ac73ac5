package sqlutil

import "strings"

// Where accumulates conditions joined with AND, together with their
// positional arguments.
type Where struct {
	clauses []string
	args    []interface{}
}

// Eq adds column = value, or column IS NULL for a nil value.
func (w *Where) Eq(column string, value interface{}) {
	if value == nil {
		w.clauses = append(w.clauses, QuoteIdentifier(column)+" IS NULL")
		return
	}
	w.clauses = append(w.clauses, QuoteIdentifier(column)+" = ?")
	w.args = append(w.args, value)
}

// In adds column IN (...). An empty list matches nothing.
func (w *Where) In(column string, values []interface{}) {
	switch len(values) {
	case 0:
		w.clauses = append(w.clauses, "1 = 0")
	case 1:
		w.Eq(column, values[0])
	default:
		w.clauses = append(w.clauses, QuoteIdentifier(column)+" IN ("+Placeholders(len(values))+")")
		w.args = append(w.args, values...)
	}
}

// Overlaps restricts rows whose [begin, end] interval intersects [min, max].
// A NULL bound is open.
func (w *Where) Overlaps(begin, end string, min, max interface{}) {
	b, e := QuoteIdentifier(begin), QuoteIdentifier(end)
	w.clauses = append(w.clauses, "("+b+" IS NULL OR "+b+" <= ?) AND ("+e+" IS NULL OR "+e+" >= ?)")
	w.args = append(w.args, max, min)
}

// Len returns the number of conditions.
func (w *Where) Len() int {
	return len(w.clauses)
}

// String renders " WHERE ..." or an empty string.
func (w *Where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// Args returns the positional arguments in clause order.
func (w *Where) Args() []interface{} {
	return w.args
}

// Clone returns an independent copy.
func (w *Where) Clone() *Where {
	return &Where{
		clauses: append([]string(nil), w.clauses...),
		args:    append([]interface{}(nil), w.args...),
	}
}

// Placeholders returns n comma-separated question marks.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

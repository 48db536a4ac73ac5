// Package sqlutil builds the MySQL statements of the SQL transport.
package sqlutil

import (
	"regexp"
	"strings"
)

// QuoteIdentifier wraps a MySQL identifier in backticks, doubling any
// backtick inside it.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// Table and column names from configuration are restricted to these.
var identifierRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// IsValidIdentifier reports whether name is a plain MySQL identifier.
func IsValidIdentifier(name string) bool {
	return identifierRe.MatchString(name)
}

// QuoteIdentifierSafe validates and quotes name.
func QuoteIdentifierSafe(name string) (string, error) {
	if !IsValidIdentifier(name) {
		return "", &InvalidIdentifierError{Name: name}
	}
	return QuoteIdentifier(name), nil
}

// InvalidIdentifierError is returned for names that are not plain identifiers.
type InvalidIdentifierError struct {
	Name string
}

func (e *InvalidIdentifierError) Error() string {
	return "invalid identifier: " + e.Name + " (must contain only alphanumeric characters and underscores)"
}

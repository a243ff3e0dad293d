package main

import "regexp"

// identifierPattern is the full-string allow-list for every database, table,
// and column name that may be interpolated into generated SQL. Values never
// go through here; values are always bound parameters.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validateIdentifier checks raw against the identifier allow-list. label names
// the offending field in the error so the caller can fix its arguments.
func validateIdentifier(raw, label string) (string, error) {
	if raw == "" {
		return "", validationErr("%s must be a non-empty identifier", label)
	}
	if !identifierPattern.MatchString(raw) {
		return "", validationErr("%s %q is not a valid identifier (expected ^[A-Za-z_][A-Za-z0-9_]*$)", label, raw)
	}
	return raw, nil
}

// quoteIdentifier validates raw and wraps it in backticks for interpolation.
// This is the single choke point between untrusted names and SQL text; no
// identifier reaches a statement without passing through it.
func quoteIdentifier(raw, label string) (string, error) {
	ident, err := validateIdentifier(raw, label)
	if err != nil {
		return "", err
	}
	return "`" + ident + "`", nil
}

package main

import "strings"

// buildWhere renders an exact-match filter as a parameterized WHERE clause.
// Keys are validated as identifiers; values become bound parameters except
// null, which renders as IS NULL and binds nothing. An empty or absent filter
// yields no SQL and no bound values; callers that require narrowing must
// check emptiness themselves before building.
func buildWhere(filter *columnValues) (string, []any, error) {
	if filter == nil || filter.Len() == 0 {
		return "", nil, nil
	}
	var sb strings.Builder
	var bound []any
	sb.WriteString(" WHERE ")
	for i, key := range filter.keys {
		quoted, err := quoteIdentifier(key, "where column")
		if err != nil {
			return "", nil, err
		}
		if i > 0 {
			sb.WriteString(" AND ")
		}
		if filter.values[key] == nil {
			sb.WriteString(quoted + " IS NULL")
			continue
		}
		sb.WriteString(quoted + " = ?")
		bound = append(bound, filter.values[key])
	}
	return sb.String(), bound, nil
}

// buildOrderBy accepts "column" or "column ASC|DESC" (direction
// case-insensitive) and renders the ORDER BY fragment.
func buildOrderBy(expr string) (string, error) {
	tokens := strings.Fields(expr)
	switch len(tokens) {
	case 0:
		return "", validationErr("orderBy must name a column")
	case 1, 2:
	default:
		return "", validationErr("orderBy %q has too many tokens (expected \"column\" or \"column ASC|DESC\")", expr)
	}
	quoted, err := quoteIdentifier(tokens[0], "orderBy column")
	if err != nil {
		return "", err
	}
	if len(tokens) == 1 {
		return " ORDER BY " + quoted, nil
	}
	direction := strings.ToUpper(tokens[1])
	if direction != "ASC" && direction != "DESC" {
		return "", validationErr("orderBy direction %q must be ASC or DESC", tokens[1])
	}
	return " ORDER BY " + quoted + " " + direction, nil
}

// buildInsert renders INSERT INTO target (cols...) VALUES (?...). The caller
// guarantees data is non-empty.
func buildInsert(target string, data *columnValues) (string, []any, error) {
	cols := make([]string, 0, data.Len())
	placeholders := make([]string, 0, data.Len())
	bound := make([]any, 0, data.Len())
	for _, key := range data.keys {
		quoted, err := quoteIdentifier(key, "data column")
		if err != nil {
			return "", nil, err
		}
		cols = append(cols, quoted)
		placeholders = append(placeholders, "?")
		bound = append(bound, data.values[key])
	}
	sql := "INSERT INTO " + target + " (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(placeholders, ", ") + ")"
	return sql, bound, nil
}

// buildUpdate renders UPDATE target SET ... WHERE .... The caller guarantees
// data and filter are non-empty; an unfiltered UPDATE must never reach here.
func buildUpdate(target string, data, filter *columnValues) (string, []any, error) {
	assignments := make([]string, 0, data.Len())
	bound := make([]any, 0, data.Len())
	for _, key := range data.keys {
		quoted, err := quoteIdentifier(key, "data column")
		if err != nil {
			return "", nil, err
		}
		assignments = append(assignments, quoted+" = ?")
		bound = append(bound, data.values[key])
	}
	whereSQL, whereBound, err := buildWhere(filter)
	if err != nil {
		return "", nil, err
	}
	sql := "UPDATE " + target + " SET " + strings.Join(assignments, ", ") + whereSQL
	return sql, append(bound, whereBound...), nil
}

// buildSelect composes projection, filter, ordering, and pagination. Limit
// and offset travel as bound parameters, never as interpolated literals.
func buildSelect(target string, columns []string, filter *columnValues, orderBy string, limit, offset *int) (string, []any, error) {
	projection := "*"
	if len(columns) > 0 {
		quoted := make([]string, 0, len(columns))
		for _, col := range columns {
			q, err := quoteIdentifier(col, "column")
			if err != nil {
				return "", nil, err
			}
			quoted = append(quoted, q)
		}
		projection = strings.Join(quoted, ", ")
	}

	sql := "SELECT " + projection + " FROM " + target
	whereSQL, bound, err := buildWhere(filter)
	if err != nil {
		return "", nil, err
	}
	sql += whereSQL

	if orderBy != "" {
		orderSQL, err := buildOrderBy(orderBy)
		if err != nil {
			return "", nil, err
		}
		sql += orderSQL
	}

	if offset != nil && limit == nil {
		return "", nil, validationErr("offset requires limit")
	}
	if limit != nil {
		sql += " LIMIT ?"
		bound = append(bound, *limit)
		if offset != nil {
			sql += " OFFSET ?"
			bound = append(bound, *offset)
		}
	}
	return sql, bound, nil
}

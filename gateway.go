package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Gateway translates validated operation arguments into parameterized SQL,
// executes it through the session's pool, and shapes typed results.
type Gateway struct {
	sessions *SessionManager
	logger   *slog.Logger
	readOnly bool
}

func NewGateway(sessions *SessionManager, logger *slog.Logger, readOnly bool) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{sessions: sessions, logger: logger, readOnly: readOnly}
}

// targetRef is a resolved (database, table) pair. qualified is the
// backtick-quoted `db`.`table` form, safe to interpolate because both
// components passed identifier validation during resolution.
type targetRef struct {
	Database  string
	Table     string
	qualified string
}

// resolveTarget picks the effective database: explicit argument first, then
// the session's active database, otherwise the call fails.
func (g *Gateway) resolveTarget(table, database string) (targetRef, error) {
	db, err := g.resolveDatabase(database)
	if err != nil {
		return targetRef{}, err
	}
	quotedDB, err := quoteIdentifier(db, "database")
	if err != nil {
		return targetRef{}, err
	}
	quotedTable, err := quoteIdentifier(table, "table")
	if err != nil {
		return targetRef{}, err
	}
	return targetRef{Database: db, Table: table, qualified: quotedDB + "." + quotedTable}, nil
}

func (g *Gateway) resolveDatabase(database string) (string, error) {
	if database != "" {
		return database, nil
	}
	if active := g.sessions.ActiveDatabase(); active != "" {
		return active, nil
	}
	return "", validationErr("no database selected: pass a database argument or call use_database")
}

// Result shapes.

type DatabaseInfo struct {
	Name string `json:"name"`
}

type TableInfo struct {
	Database string `json:"database"`
	Name     string `json:"name"`
	Type     string `json:"type"`
}

type ColumnInfo struct {
	Name         string  `json:"name"`
	DataType     string  `json:"dataType"`
	IsNullable   string  `json:"isNullable"`
	Key          string  `json:"key"`
	DefaultValue *string `json:"defaultValue"`
	Extra        string  `json:"extra"`
}

type SelectResult struct {
	Items []map[string]any `json:"items"`
	Count int              `json:"count"`
}

type InsertResult struct {
	InsertedID   int64 `json:"insertedId"`
	AffectedRows int64 `json:"affectedRows"`
}

type AffectedResult struct {
	AffectedRows int64 `json:"affectedRows"`
}

type QueryModeResult struct {
	Mode  string           `json:"mode"`
	Items []map[string]any `json:"items"`
	Count int              `json:"count"`
}

type MutationModeResult struct {
	Mode         string `json:"mode"`
	AffectedRows int64  `json:"affectedRows"`
	ChangedRows  int64  `json:"changedRows"`
	InsertID     int64  `json:"insertId"`
}

// ListDatabases returns every schema visible to the session's credentials.
func (g *Gateway) ListDatabases(ctx context.Context) ([]DatabaseInfo, error) {
	pool, err := g.sessions.Pool()
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()
	rows, err := pool.QueryContext(queryCtx,
		"SELECT SCHEMA_NAME FROM information_schema.SCHEMATA ORDER BY SCHEMA_NAME")
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	databases := []DatabaseInfo{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, dbErr(err)
		}
		databases = append(databases, DatabaseInfo{Name: name})
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	return databases, nil
}

// ListTables lists tables in the resolved database. The database name is a
// bound parameter; catalog queries never interpolate it.
func (g *Gateway) ListTables(ctx context.Context, database string) ([]TableInfo, error) {
	pool, err := g.sessions.Pool()
	if err != nil {
		return nil, err
	}
	db, err := g.resolveDatabase(database)
	if err != nil {
		return nil, err
	}
	if _, err := validateIdentifier(db, "database"); err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()
	rows, err := pool.QueryContext(queryCtx,
		"SELECT TABLE_NAME, TABLE_TYPE FROM information_schema.TABLES WHERE TABLE_SCHEMA = ? ORDER BY TABLE_NAME", db)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	tables := []TableInfo{}
	for rows.Next() {
		var name, tableType string
		if err := rows.Scan(&name, &tableType); err != nil {
			return nil, dbErr(err)
		}
		tables = append(tables, TableInfo{Database: db, Name: name, Type: tableType})
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	return tables, nil
}

// DescribeTable returns column metadata in ordinal order. A table with no
// catalog columns does not exist.
func (g *Gateway) DescribeTable(ctx context.Context, table, database string) ([]ColumnInfo, error) {
	pool, err := g.sessions.Pool()
	if err != nil {
		return nil, err
	}
	target, err := g.resolveTarget(table, database)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()
	rows, err := pool.QueryContext(queryCtx, `
		SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE, COLUMN_KEY, COLUMN_DEFAULT, EXTRA
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`, target.Database, target.Table)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var col ColumnInfo
		var def sql.NullString
		if err := rows.Scan(&col.Name, &col.DataType, &col.IsNullable, &col.Key, &def, &col.Extra); err != nil {
			return nil, dbErr(err)
		}
		if def.Valid {
			col.DefaultValue = &def.String
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	if len(columns) == 0 {
		return nil, apiErr("table %s.%s not found", target.Database, target.Table)
	}
	return columns, nil
}

// SelectRows runs a filtered, optionally ordered and paginated SELECT.
func (g *Gateway) SelectRows(ctx context.Context, args *selectRowsArgs) (*SelectResult, error) {
	pool, err := g.sessions.Pool()
	if err != nil {
		return nil, err
	}
	target, err := g.resolveTarget(args.Table, args.Database)
	if err != nil {
		return nil, err
	}
	query, bound, err := buildSelect(target.qualified, args.Columns, args.Where, args.OrderBy, args.Limit, args.Offset)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()
	rows, err := pool.QueryContext(queryCtx, query, bound...)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	items, err := scanRows(rows)
	if err != nil {
		return nil, dbErr(err)
	}
	return &SelectResult{Items: items, Count: len(items)}, nil
}

// InsertRow inserts a single row and reports the auto-increment id.
func (g *Gateway) InsertRow(ctx context.Context, args *insertRowArgs) (*InsertResult, error) {
	pool, err := g.sessions.Pool()
	if err != nil {
		return nil, err
	}
	if g.readOnly {
		return nil, validationErr("insert_row is disabled: server is in read-only mode")
	}
	target, err := g.resolveTarget(args.Table, args.Database)
	if err != nil {
		return nil, err
	}
	query, bound, err := buildInsert(target.qualified, args.Data)
	if err != nil {
		return nil, err
	}
	result, err := g.exec(ctx, pool, query, bound)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, dbErr(err)
	}
	insertedID, err := result.LastInsertId()
	if err != nil {
		return nil, dbErr(err)
	}
	return &InsertResult{InsertedID: insertedID, AffectedRows: affected}, nil
}

// UpdateRows applies a mutation scoped by a mandatory filter.
func (g *Gateway) UpdateRows(ctx context.Context, args *updateRowsArgs) (*AffectedResult, error) {
	pool, err := g.sessions.Pool()
	if err != nil {
		return nil, err
	}
	if g.readOnly {
		return nil, validationErr("update_rows is disabled: server is in read-only mode")
	}
	target, err := g.resolveTarget(args.Table, args.Database)
	if err != nil {
		return nil, err
	}
	query, bound, err := buildUpdate(target.qualified, args.Data, args.Where)
	if err != nil {
		return nil, err
	}
	result, err := g.exec(ctx, pool, query, bound)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, dbErr(err)
	}
	return &AffectedResult{AffectedRows: affected}, nil
}

// DeleteRows deletes rows scoped by a mandatory filter.
func (g *Gateway) DeleteRows(ctx context.Context, args *deleteRowsArgs) (*AffectedResult, error) {
	pool, err := g.sessions.Pool()
	if err != nil {
		return nil, err
	}
	if g.readOnly {
		return nil, validationErr("delete_rows is disabled: server is in read-only mode")
	}
	target, err := g.resolveTarget(args.Table, args.Database)
	if err != nil {
		return nil, err
	}
	whereSQL, bound, err := buildWhere(args.Where)
	if err != nil {
		return nil, err
	}
	query := "DELETE FROM " + target.qualified + whereSQL
	result, err := g.exec(ctx, pool, query, bound)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, dbErr(err)
	}
	return &AffectedResult{AffectedRows: affected}, nil
}

func (g *Gateway) exec(ctx context.Context, pool *sql.DB, query string, bound []any) (sql.Result, error) {
	execCtx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()
	result, err := pool.ExecContext(execCtx, query, bound...)
	if err != nil {
		return nil, dbErr(err)
	}
	return result, nil
}

// rowReturningVerbs classifies a statement's leading keyword. database/sql
// needs the Query/Exec choice made before execution, so the shape of the
// result is decided here rather than from the driver's response.
var rowReturningVerbs = map[string]bool{
	"SELECT":   true,
	"SHOW":     true,
	"DESCRIBE": true,
	"DESC":     true,
	"EXPLAIN":  true,
	"WITH":     true,
}

func isRowReturning(stmt string) bool {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return false
	}
	return rowReturningVerbs[strings.ToUpper(fields[0])]
}

// ExecuteSQL runs a caller-supplied statement verbatim on a single dedicated
// connection. When a database is given, a scoped USE is issued on that
// connection only; the session's active database is untouched. The caller is
// responsible for the statement's safety — values must still arrive as
// params, never spliced into the text. The connection is returned to the pool
// on every exit path.
func (g *Gateway) ExecuteSQL(ctx context.Context, args *executeSQLArgs) (any, error) {
	pool, err := g.sessions.Pool()
	if err != nil {
		return nil, err
	}
	if g.readOnly {
		if err := validateReadOnlyQuery(args.SQL); err != nil {
			return nil, validationErr("read-only mode: %v", err)
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	conn, err := pool.Conn(execCtx)
	if err != nil {
		return nil, dbErr(err)
	}
	defer conn.Close()

	if args.Database != "" {
		quoted, err := quoteIdentifier(args.Database, "database")
		if err != nil {
			return nil, err
		}
		if _, err := conn.ExecContext(execCtx, "USE "+quoted); err != nil {
			return nil, dbErr(err)
		}
	}

	if isRowReturning(args.SQL) {
		rows, err := conn.QueryContext(execCtx, args.SQL, args.Params...)
		if err != nil {
			return nil, dbErr(err)
		}
		defer rows.Close()
		items, err := scanRows(rows)
		if err != nil {
			return nil, dbErr(err)
		}
		return &QueryModeResult{Mode: "query", Items: items, Count: len(items)}, nil
	}

	result, err := conn.ExecContext(execCtx, args.SQL, args.Params...)
	if err != nil {
		return nil, dbErr(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, dbErr(err)
	}
	insertID, err := result.LastInsertId()
	if err != nil {
		return nil, dbErr(err)
	}
	// The protocol reports changed rows as the affected count under the
	// driver's default flags.
	return &MutationModeResult{Mode: "mutation", AffectedRows: affected, ChangedRows: affected, InsertID: insertID}, nil
}

// scanRows materializes a result set into JSON-friendly maps, truncating at
// MaxResultRows with a warning pseudo-row.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	items := []map[string]any{}
	rowCount := 0
	for rows.Next() {
		if rowCount >= MaxResultRows {
			items = append(items, map[string]any{
				"_warning": fmt.Sprintf("Result truncated at %d rows", MaxResultRows),
			})
			break
		}

		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			val := values[i]
			if b, ok := val.([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = val
			}
		}
		items = append(items, row)
		rowCount++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// describeTableJSON serializes a table's schema for the resource surface.
func (g *Gateway) describeTableJSON(ctx context.Context, table, database string) (string, error) {
	columns, err := g.DescribeTable(ctx, table, database)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(columns, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

package main

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMCPImpl = &mcp.Implementation{Name: "mysql-mcp-test", Version: "0.1.0"}

func mcpSession(t *testing.T, sessions *SessionManager) (*mcp.ClientSession, sqlmock.Sqlmock) {
	t.Helper()
	var mock sqlmock.Sqlmock
	if sessions == nil {
		sessions, mock = authedManager(t)
	}
	gateway := NewGateway(sessions, newTestLogger(), false)
	dispatcher := NewDispatcher(gateway)
	srv := newMCPServer(dispatcher, gateway, newTestLogger())

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session, mock
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err, "CallTool(%s)", name)
	require.False(t, result.IsError, "CallTool(%s) tool error", name)
	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "CallTool(%s): expected TextContent", name)
	return tc.Text
}

func callToolExpectError(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err, "CallTool(%s)", name)
	require.True(t, result.IsError, "CallTool(%s): expected a tool error", name)
	require.NotEmpty(t, result.Content, "CallTool(%s): expected error content", name)
	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "CallTool(%s): expected TextContent", name)
	return tc.Text
}

func TestMCP_ToolsAreListed(t *testing.T) {
	session, _ := mcpSession(t, NewSessionManager(newTestLogger()))

	tools, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{
		"authenticate", "status", "logout", "list_databases", "use_database",
		"list_tables", "describe_table", "select_rows", "insert_row",
		"update_rows", "delete_rows", "execute_sql",
	} {
		assert.True(t, names[want], "missing tool %s", want)
	}
}

func TestMCP_StatusBeforeAuthenticate(t *testing.T) {
	session, _ := mcpSession(t, NewSessionManager(newTestLogger()))

	text := callTool(t, session, "status", map[string]any{})

	var status StatusResult
	require.NoError(t, json.Unmarshal([]byte(text), &status))
	assert.False(t, status.Authenticated)
	assert.Nil(t, status.Session)
}

func TestMCP_OperationsRequireAuthentication(t *testing.T) {
	session, _ := mcpSession(t, NewSessionManager(newTestLogger()))

	msg := callToolExpectError(t, session, "select_rows", map[string]any{
		"table": "orders", "database": "shop",
	})
	assert.Contains(t, msg, "auth")
	assert.Contains(t, msg, "not authenticated")
}

func TestMCP_ValidationErrorEnvelope(t *testing.T) {
	session, _ := mcpSession(t, nil)

	msg := callToolExpectError(t, session, "update_rows", map[string]any{
		"table": "orders", "data": map[string]any{"x": 1}, "where": map[string]any{},
	})
	assert.Contains(t, msg, "validation")

	msg = callToolExpectError(t, session, "select_rows", map[string]any{
		"table": "orders", "offset": 5,
	})
	assert.Contains(t, msg, "offset requires limit")
}

func TestMCP_EndToEndInsertAndSelect(t *testing.T) {
	session, mock := mcpSession(t, nil)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT SCHEMA_NAME FROM information_schema.SCHEMATA WHERE SCHEMA_NAME = ?")).
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"SCHEMA_NAME"}).AddRow("shop"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `shop`.`orders` (`customer_id`) VALUES (?)")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `shop`.`orders` WHERE `customer_id` = ?")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id"}).AddRow(42, 1))

	text := callTool(t, session, "use_database", map[string]any{"database": "shop"})
	var used UseDatabaseResult
	require.NoError(t, json.Unmarshal([]byte(text), &used))
	assert.Equal(t, "shop", used.Database)
	assert.True(t, used.Authenticated)

	text = callTool(t, session, "insert_row", map[string]any{
		"table": "orders",
		"data":  map[string]any{"customer_id": 1},
	})
	var inserted InsertResult
	require.NoError(t, json.Unmarshal([]byte(text), &inserted))
	assert.Equal(t, int64(42), inserted.InsertedID)

	text = callTool(t, session, "select_rows", map[string]any{
		"table": "orders",
		"where": map[string]any{"customer_id": 1},
	})
	var selected SelectResult
	require.NoError(t, json.Unmarshal([]byte(text), &selected))
	assert.GreaterOrEqual(t, selected.Count, 1)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMCP_ExecuteSQLModes(t *testing.T) {
	session, mock := mcpSession(t, nil)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM orders")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	text := callTool(t, session, "execute_sql", map[string]any{"sql": "SELECT id FROM orders"})
	var query QueryModeResult
	require.NoError(t, json.Unmarshal([]byte(text), &query))
	assert.Equal(t, "query", query.Mode)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM orders WHERE id = ?")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	text = callTool(t, session, "execute_sql", map[string]any{
		"sql": "DELETE FROM orders WHERE id = ?", "params": []any{1},
	})
	var mutation MutationModeResult
	require.NoError(t, json.Unmarshal([]byte(text), &mutation))
	assert.Equal(t, "mutation", mutation.Mode)
	assert.Equal(t, int64(1), mutation.AffectedRows)
}

func TestMCP_TableSchemaResource(t *testing.T) {
	session, mock := mcpSession(t, nil)

	mock.ExpectQuery("SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE, COLUMN_KEY, COLUMN_DEFAULT, EXTRA").
		WithArgs("shop", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "IS_NULLABLE", "COLUMN_KEY", "COLUMN_DEFAULT", "EXTRA"}).
			AddRow("id", "bigint", "NO", "PRI", nil, "auto_increment"))

	result, err := session.ReadResource(context.Background(), &mcp.ReadResourceParams{
		URI: "mysql://table/shop/orders",
	})
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "application/json", result.Contents[0].MIMEType)

	var columns []ColumnInfo
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &columns))
	require.Len(t, columns, 1)
	assert.Equal(t, "id", columns[0].Name)
	assert.Equal(t, "auto_increment", columns[0].Extra)
}

func TestParseTableSchemaURI(t *testing.T) {
	db, table, err := parseTableSchemaURI("mysql://table/shop/orders")
	require.NoError(t, err)
	assert.Equal(t, "shop", db)
	assert.Equal(t, "orders", table)

	for _, bad := range []string{
		"mysql://shop/orders/schema",
		"mysql://table/shop",
		"mysql://table//orders",
		"postgres://table/shop/orders",
	} {
		_, _, err := parseTableSchemaURI(bad)
		assert.Error(t, err, "uri %s", bad)
	}
}

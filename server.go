package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	ServerName    = "mysql-mcp-server"
	ServerVersion = "1.0.0"
)

const tableSchemaURITemplate = "mysql://table/{database}/{table}"

// newMCPServer wires the dispatcher and gateway onto an MCP server: one tool
// per operation plus the table-schema resource template.
func newMCPServer(dispatcher *Dispatcher, gateway *Gateway, logger *slog.Logger) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: ServerVersion}, nil)

	for _, def := range toolDefs() {
		registerTool(srv, dispatcher, logger, def)
	}

	srv.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "table-schema",
		Description: "Column metadata for a table, as returned by describe_table.",
		URITemplate: tableSchemaURITemplate,
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := req.Params.URI
		database, table, err := parseTableSchemaURI(uri)
		if err != nil {
			return nil, mcp.ResourceNotFoundError(uri)
		}
		text, err := gateway.describeTableJSON(ctx, table, database)
		if err != nil {
			return nil, asEnvelope(err)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{URI: uri, MIMEType: "application/json", Text: text},
			},
		}, nil
	})

	return srv
}

// parseTableSchemaURI splits mysql://table/<database>/<table>.
func parseTableSchemaURI(uri string) (database, table string, err error) {
	const prefix = "mysql://table/"
	if !strings.HasPrefix(uri, prefix) {
		return "", "", fmt.Errorf("invalid resource URI %q: expected %s", uri, tableSchemaURITemplate)
	}
	parts := strings.Split(strings.TrimPrefix(uri, prefix), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid resource URI %q: expected %s", uri, tableSchemaURITemplate)
	}
	return parts[0], parts[1], nil
}

type toolDef struct {
	tool *mcp.Tool
	op   string
}

func registerTool(srv *mcp.Server, dispatcher *Dispatcher, logger *slog.Logger, def toolDef) {
	op := def.op
	srv.AddTool(def.tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, opErr := dispatcher.Dispatch(ctx, op, req.Params.Arguments)
		if opErr != nil {
			logger.Debug("operation failed", "op", op, "kind", opErr.Kind, "error", opErr.Message)
			var res mcp.CallToolResult
			res.SetError(opErr)
			return &res, nil
		}
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal result: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

func toolDefs() []toolDef {
	databaseProp := prop("string", "Database name (defaults to the session's active database)")
	tableProp := prop("string", "Table name")
	whereProp := map[string]any{
		"type":        "object",
		"description": "Exact-match filter: column to value, null matches IS NULL",
	}

	return []toolDef{
		{
			op: "authenticate",
			tool: &mcp.Tool{
				Name:        "authenticate",
				Description: "Open a MySQL session. Replaces any existing session; its pool is closed first.",
				InputSchema: inputSchema(map[string]any{
					"host":     prop("string", "Server host (default 127.0.0.1)"),
					"port":     prop("integer", "Server port (default 3306)"),
					"user":     prop("string", "MySQL user"),
					"password": prop("string", "MySQL password"),
					"database": prop("string", "Initial active database"),
					"tls":      prop("boolean", "Require TLS for the connection"),
				}, []string{"user", "password"}),
			},
		},
		{
			op: "status",
			tool: &mcp.Tool{
				Name:        "status",
				Description: "Report whether a session is active and its connection details.",
				InputSchema: inputSchema(map[string]any{}, nil),
			},
		},
		{
			op: "logout",
			tool: &mcp.Tool{
				Name:        "logout",
				Description: "Close the session and its connection pool. A no-op when not authenticated.",
				InputSchema: inputSchema(map[string]any{}, nil),
			},
		},
		{
			op: "list_databases",
			tool: &mcp.Tool{
				Name:        "list_databases",
				Description: "List all databases visible to the session's credentials.",
				InputSchema: inputSchema(map[string]any{}, nil),
			},
		},
		{
			op: "use_database",
			tool: &mcp.Tool{
				Name:        "use_database",
				Description: "Set the session's active database. The database must exist.",
				InputSchema: inputSchema(map[string]any{
					"database": prop("string", "Database to make active"),
				}, []string{"database"}),
			},
		},
		{
			op: "list_tables",
			tool: &mcp.Tool{
				Name:        "list_tables",
				Description: "List tables in a database.",
				InputSchema: inputSchema(map[string]any{
					"database": databaseProp,
				}, nil),
			},
		},
		{
			op: "describe_table",
			tool: &mcp.Tool{
				Name:        "describe_table",
				Description: "Describe a table's columns: name, type, nullability, key, default, extra.",
				InputSchema: inputSchema(map[string]any{
					"table":    tableProp,
					"database": databaseProp,
				}, []string{"table"}),
			},
		},
		{
			op: "select_rows",
			tool: &mcp.Tool{
				Name:        "select_rows",
				Description: "Select rows with an optional filter, projection, ordering, and pagination.",
				InputSchema: inputSchema(map[string]any{
					"table":    tableProp,
					"database": databaseProp,
					"columns": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Columns to return (default all)",
					},
					"where":   whereProp,
					"orderBy": prop("string", "\"column\" or \"column ASC|DESC\""),
					"limit":   prop("integer", "Maximum rows to return (> 0)"),
					"offset":  prop("integer", "Rows to skip (requires limit)"),
				}, []string{"table"}),
			},
		},
		{
			op: "insert_row",
			tool: &mcp.Tool{
				Name:        "insert_row",
				Description: "Insert one row. Returns the inserted id and affected row count.",
				InputSchema: inputSchema(map[string]any{
					"table":    tableProp,
					"database": databaseProp,
					"data": map[string]any{
						"type":        "object",
						"description": "Column to value mapping (non-empty)",
					},
				}, []string{"table", "data"}),
			},
		},
		{
			op: "update_rows",
			tool: &mcp.Tool{
				Name:        "update_rows",
				Description: "Update rows matching a mandatory filter. Unfiltered updates are rejected.",
				InputSchema: inputSchema(map[string]any{
					"table":    tableProp,
					"database": databaseProp,
					"data": map[string]any{
						"type":        "object",
						"description": "Column to value mapping (non-empty)",
					},
					"where": whereProp,
				}, []string{"table", "data", "where"}),
			},
		},
		{
			op: "delete_rows",
			tool: &mcp.Tool{
				Name:        "delete_rows",
				Description: "Delete rows matching a mandatory filter. Unfiltered deletes are rejected.",
				InputSchema: inputSchema(map[string]any{
					"table":    tableProp,
					"database": databaseProp,
					"where":    whereProp,
				}, []string{"table", "where"}),
			},
		},
		{
			op: "execute_sql",
			tool: &mcp.Tool{
				Name:        "execute_sql",
				Description: "Execute a raw SQL statement with bound params. The caller is responsible for the statement's safety; values must be passed as params, never spliced into the SQL text.",
				InputSchema: inputSchema(map[string]any{
					"sql": prop("string", "SQL statement to execute"),
					"params": map[string]any{
						"type":        "array",
						"description": "Values bound to ? placeholders",
					},
					"database": prop("string", "Database to USE for this statement only"),
				}, []string{"sql"}),
			},
		},
	}
}

package main

import (
	"context"
	"encoding/json"
)

// StatusResult reports whether a session is live.
type StatusResult struct {
	Authenticated bool            `json:"authenticated"`
	Session       *SessionSummary `json:"session,omitempty"`
}

// LogoutResult confirms the session is gone.
type LogoutResult struct {
	Authenticated bool `json:"authenticated"`
}

// UseDatabaseResult confirms the active database switch.
type UseDatabaseResult struct {
	Database      string `json:"database"`
	Authenticated bool   `json:"authenticated"`
}

type handlerFunc func(ctx context.Context, raw json.RawMessage) (any, error)

// Dispatcher maps operation names onto validator+gateway pairs and shapes
// every failure into the OpError envelope before it leaves.
type Dispatcher struct {
	ops map[string]handlerFunc
}

func NewDispatcher(gw *Gateway) *Dispatcher {
	sessions := gw.sessions
	return &Dispatcher{ops: map[string]handlerFunc{
		"authenticate": func(ctx context.Context, raw json.RawMessage) (any, error) {
			args, err := parseAuthenticateArgs(raw)
			if err != nil {
				return nil, err
			}
			return sessions.Authenticate(ctx, args)
		},
		"status": func(_ context.Context, _ json.RawMessage) (any, error) {
			authenticated, summary := sessions.Status()
			return &StatusResult{Authenticated: authenticated, Session: summary}, nil
		},
		"logout": func(_ context.Context, _ json.RawMessage) (any, error) {
			sessions.Logout()
			return &LogoutResult{Authenticated: false}, nil
		},
		"list_databases": func(ctx context.Context, _ json.RawMessage) (any, error) {
			return gw.ListDatabases(ctx)
		},
		"use_database": func(ctx context.Context, raw json.RawMessage) (any, error) {
			args, err := parseUseDatabaseArgs(raw)
			if err != nil {
				return nil, err
			}
			if err := sessions.SetActiveDatabase(ctx, args.Database); err != nil {
				return nil, err
			}
			return &UseDatabaseResult{Database: args.Database, Authenticated: true}, nil
		},
		"list_tables": func(ctx context.Context, raw json.RawMessage) (any, error) {
			args, err := parseListTablesArgs(raw)
			if err != nil {
				return nil, err
			}
			return gw.ListTables(ctx, args.Database)
		},
		"describe_table": func(ctx context.Context, raw json.RawMessage) (any, error) {
			args, err := parseDescribeTableArgs(raw)
			if err != nil {
				return nil, err
			}
			return gw.DescribeTable(ctx, args.Table, args.Database)
		},
		"select_rows": func(ctx context.Context, raw json.RawMessage) (any, error) {
			args, err := parseSelectRowsArgs(raw)
			if err != nil {
				return nil, err
			}
			return gw.SelectRows(ctx, args)
		},
		"insert_row": func(ctx context.Context, raw json.RawMessage) (any, error) {
			args, err := parseInsertRowArgs(raw)
			if err != nil {
				return nil, err
			}
			return gw.InsertRow(ctx, args)
		},
		"update_rows": func(ctx context.Context, raw json.RawMessage) (any, error) {
			args, err := parseUpdateRowsArgs(raw)
			if err != nil {
				return nil, err
			}
			return gw.UpdateRows(ctx, args)
		},
		"delete_rows": func(ctx context.Context, raw json.RawMessage) (any, error) {
			args, err := parseDeleteRowsArgs(raw)
			if err != nil {
				return nil, err
			}
			return gw.DeleteRows(ctx, args)
		},
		"execute_sql": func(ctx context.Context, raw json.RawMessage) (any, error) {
			args, err := parseExecuteSQLArgs(raw)
			if err != nil {
				return nil, err
			}
			return gw.ExecuteSQL(ctx, args)
		},
	}}
}

// Dispatch runs the named operation. Unknown names and every downstream
// failure come back as an OpError, never a raw error.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, raw json.RawMessage) (any, *OpError) {
	handler, ok := d.ops[name]
	if !ok {
		return nil, validationErr("unknown operation: %s", name)
	}
	result, err := handler(ctx, raw)
	if err != nil {
		return nil, asEnvelope(err)
	}
	return result, nil
}

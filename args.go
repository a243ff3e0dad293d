package main

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// columnValues is a column→value mapping that remembers JSON key order, so
// generated SQL lists columns in the order the caller wrote them. Plain Go
// maps would randomize clause order between calls.
type columnValues struct {
	keys   []string
	values map[string]any
}

func (cv *columnValues) Len() int {
	if cv == nil {
		return 0
	}
	return len(cv.keys)
}

func (cv *columnValues) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected a JSON object, got %v", tok)
	}

	cv.keys = nil
	cv.values = make(map[string]any)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)
		var val any
		if err := dec.Decode(&val); err != nil {
			return err
		}
		cv.keys = append(cv.keys, key)
		cv.values[key] = normalizeValue(val)
	}
	_, err = dec.Token() // closing brace
	return err
}

// normalizeValue converts json.Number into int64 (or float64 when the value
// has a fractional part) so the driver binds real numerics, not strings.
func normalizeValue(v any) any {
	num, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := num.Int64(); err == nil {
		return i
	}
	if f, err := num.Float64(); err == nil {
		return f
	}
	return num.String()
}

// requireScalars rejects nested containers in a filter or mutation payload;
// every value must be something the driver can bind directly.
func requireScalars(cv *columnValues, label string) error {
	if cv == nil {
		return nil
	}
	for _, key := range cv.keys {
		switch cv.values[key].(type) {
		case nil, bool, string, int64, float64:
		default:
			return validationErr("%s.%s must be a scalar value or null", label, key)
		}
	}
	return nil
}

func decodeArgs(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return validationErr("invalid arguments: %v", err)
	}
	return nil
}

// --- authenticate ---

type authenticateArgs struct {
	Host     string  `json:"host"`
	Port     *int    `json:"port"`
	User     *string `json:"user"`
	Password *string `json:"password"`
	Database string  `json:"database"`
	TLS      bool    `json:"tls"`
}

func parseAuthenticateArgs(raw json.RawMessage) (*authenticateArgs, error) {
	var a authenticateArgs
	if err := decodeArgs(raw, &a); err != nil {
		return nil, err
	}
	if a.User == nil || *a.User == "" {
		return nil, validationErr("user is required")
	}
	if a.Password == nil {
		return nil, validationErr("password is required")
	}
	if a.Host == "" {
		a.Host = DefaultHost
	}
	if a.Port == nil {
		port := DefaultPort
		a.Port = &port
	}
	if *a.Port < 1 || *a.Port > 65535 {
		return nil, validationErr("port %d is out of range (1-65535)", *a.Port)
	}
	return &a, nil
}

// --- use_database ---

type useDatabaseArgs struct {
	Database string `json:"database"`
}

func parseUseDatabaseArgs(raw json.RawMessage) (*useDatabaseArgs, error) {
	var a useDatabaseArgs
	if err := decodeArgs(raw, &a); err != nil {
		return nil, err
	}
	if a.Database == "" {
		return nil, validationErr("database is required")
	}
	return &a, nil
}

// --- list_tables ---

type listTablesArgs struct {
	Database string `json:"database"`
}

func parseListTablesArgs(raw json.RawMessage) (*listTablesArgs, error) {
	var a listTablesArgs
	if err := decodeArgs(raw, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// --- describe_table ---

type describeTableArgs struct {
	Table    string `json:"table"`
	Database string `json:"database"`
}

func parseDescribeTableArgs(raw json.RawMessage) (*describeTableArgs, error) {
	var a describeTableArgs
	if err := decodeArgs(raw, &a); err != nil {
		return nil, err
	}
	if a.Table == "" {
		return nil, validationErr("table is required")
	}
	return &a, nil
}

// --- select_rows ---

type selectRowsArgs struct {
	Table    string        `json:"table"`
	Database string        `json:"database"`
	Columns  []string      `json:"columns"`
	Where    *columnValues `json:"where"`
	OrderBy  string        `json:"orderBy"`
	Limit    *int          `json:"limit"`
	Offset   *int          `json:"offset"`
}

func parseSelectRowsArgs(raw json.RawMessage) (*selectRowsArgs, error) {
	var a selectRowsArgs
	if err := decodeArgs(raw, &a); err != nil {
		return nil, err
	}
	if a.Table == "" {
		return nil, validationErr("table is required")
	}
	if err := requireScalars(a.Where, "where"); err != nil {
		return nil, err
	}
	if a.Limit != nil && *a.Limit <= 0 {
		return nil, validationErr("limit must be a positive integer")
	}
	if a.Offset != nil && *a.Offset < 0 {
		return nil, validationErr("offset must be a non-negative integer")
	}
	if a.Offset != nil && a.Limit == nil {
		return nil, validationErr("offset requires limit")
	}
	return &a, nil
}

// --- insert_row ---

type insertRowArgs struct {
	Table    string        `json:"table"`
	Database string        `json:"database"`
	Data     *columnValues `json:"data"`
}

func parseInsertRowArgs(raw json.RawMessage) (*insertRowArgs, error) {
	var a insertRowArgs
	if err := decodeArgs(raw, &a); err != nil {
		return nil, err
	}
	if a.Table == "" {
		return nil, validationErr("table is required")
	}
	if a.Data.Len() == 0 {
		return nil, validationErr("data must be a non-empty object")
	}
	if err := requireScalars(a.Data, "data"); err != nil {
		return nil, err
	}
	return &a, nil
}

// --- update_rows ---

type updateRowsArgs struct {
	Table    string        `json:"table"`
	Database string        `json:"database"`
	Data     *columnValues `json:"data"`
	Where    *columnValues `json:"where"`
}

func parseUpdateRowsArgs(raw json.RawMessage) (*updateRowsArgs, error) {
	var a updateRowsArgs
	if err := decodeArgs(raw, &a); err != nil {
		return nil, err
	}
	if a.Table == "" {
		return nil, validationErr("table is required")
	}
	if a.Data.Len() == 0 {
		return nil, validationErr("data must be a non-empty object")
	}
	if a.Where.Len() == 0 {
		return nil, validationErr("where must be a non-empty object (unfiltered updates are not allowed)")
	}
	if err := requireScalars(a.Data, "data"); err != nil {
		return nil, err
	}
	if err := requireScalars(a.Where, "where"); err != nil {
		return nil, err
	}
	return &a, nil
}

// --- delete_rows ---

type deleteRowsArgs struct {
	Table    string        `json:"table"`
	Database string        `json:"database"`
	Where    *columnValues `json:"where"`
}

func parseDeleteRowsArgs(raw json.RawMessage) (*deleteRowsArgs, error) {
	var a deleteRowsArgs
	if err := decodeArgs(raw, &a); err != nil {
		return nil, err
	}
	if a.Table == "" {
		return nil, validationErr("table is required")
	}
	if a.Where.Len() == 0 {
		return nil, validationErr("where must be a non-empty object (unfiltered deletes are not allowed)")
	}
	if err := requireScalars(a.Where, "where"); err != nil {
		return nil, err
	}
	return &a, nil
}

// --- execute_sql ---

type executeSQLArgs struct {
	SQL      string `json:"sql"`
	Params   []any  `json:"params"`
	Database string `json:"database"`
}

func parseExecuteSQLArgs(raw json.RawMessage) (*executeSQLArgs, error) {
	var a executeSQLArgs
	if err := decodeArgs(raw, &a); err != nil {
		return nil, err
	}
	if a.SQL == "" {
		return nil, validationErr("sql is required")
	}
	for i, p := range a.Params {
		a.Params[i] = normalizeParam(p)
	}
	return &a, nil
}

// normalizeParam mirrors normalizeValue for plain-decoded params: JSON
// numbers arrive as float64; integral ones bind better as int64.
func normalizeParam(v any) any {
	f, ok := v.(float64)
	if !ok {
		return v
	}
	if f == float64(int64(f)) {
		return int64(f)
	}
	return f
}

package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustColumnValues(t *testing.T, jsonText string) *columnValues {
	t.Helper()
	var cv columnValues
	require.NoError(t, json.Unmarshal([]byte(jsonText), &cv))
	return &cv
}

func TestBuildWhere_Empty(t *testing.T) {
	sql, bound, err := buildWhere(nil)
	require.NoError(t, err)
	assert.Empty(t, sql)
	assert.Empty(t, bound)

	sql, bound, err = buildWhere(mustColumnValues(t, `{}`))
	require.NoError(t, err)
	assert.Empty(t, sql)
	assert.Empty(t, bound)
}

func TestBuildWhere_ValuesAndNulls(t *testing.T) {
	filter := mustColumnValues(t, `{"a": 1, "b": null}`)

	sql, bound, err := buildWhere(filter)
	require.NoError(t, err)
	assert.Equal(t, " WHERE `a` = ? AND `b` IS NULL", sql)
	assert.Equal(t, []any{int64(1)}, bound)
}

func TestBuildWhere_PreservesKeyOrder(t *testing.T) {
	filter := mustColumnValues(t, `{"zeta": 1, "alpha": 2, "mid": 3}`)

	sql, bound, err := buildWhere(filter)
	require.NoError(t, err)
	assert.Equal(t, " WHERE `zeta` = ? AND `alpha` = ? AND `mid` = ?", sql)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, bound)
}

func TestBuildWhere_RejectsBadColumn(t *testing.T) {
	filter := mustColumnValues(t, `{"a; DROP TABLE users": 1}`)

	_, _, err := buildWhere(filter)
	require.Error(t, err)
	assert.Equal(t, KindValidation, asEnvelope(err).Kind)
}

func TestBuildOrderBy(t *testing.T) {
	tests := []struct {
		expr    string
		want    string
		wantErr bool
	}{
		{expr: "col", want: " ORDER BY `col`"},
		{expr: "col ASC", want: " ORDER BY `col` ASC"},
		{expr: "col DESC", want: " ORDER BY `col` DESC"},
		{expr: "col desc", want: " ORDER BY `col` DESC"},
		{expr: "col Asc", want: " ORDER BY `col` ASC"},
		{expr: "col DOWN", wantErr: true},
		{expr: "col ASC extra", wantErr: true},
		{expr: "", wantErr: true},
		{expr: "bad-col DESC", wantErr: true},
		{expr: "col; DROP TABLE users", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := buildOrderBy(tc.expr)
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, KindValidation, asEnvelope(err).Kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBuildInsert(t *testing.T) {
	data := mustColumnValues(t, `{"name": "Ada", "age": 36}`)

	sql, bound, err := buildInsert("`shop`.`users`", data)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `shop`.`users` (`name`, `age`) VALUES (?, ?)", sql)
	assert.Equal(t, []any{"Ada", int64(36)}, bound)
}

func TestBuildUpdate(t *testing.T) {
	data := mustColumnValues(t, `{"name": "Ada"}`)
	filter := mustColumnValues(t, `{"id": 7, "deleted_at": null}`)

	sql, bound, err := buildUpdate("`shop`.`users`", data, filter)
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `shop`.`users` SET `name` = ? WHERE `id` = ? AND `deleted_at` IS NULL", sql)
	assert.Equal(t, []any{"Ada", int64(7)}, bound)
}

func TestBuildSelect_Minimal(t *testing.T) {
	sql, bound, err := buildSelect("`shop`.`users`", nil, nil, "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `shop`.`users`", sql)
	assert.Empty(t, bound)
}

func TestBuildSelect_Full(t *testing.T) {
	filter := mustColumnValues(t, `{"active": true}`)
	limit, offset := 10, 20

	sql, bound, err := buildSelect("`shop`.`users`", []string{"id", "name"}, filter, "id DESC", &limit, &offset)
	require.NoError(t, err)
	assert.Equal(t, "SELECT `id`, `name` FROM `shop`.`users` WHERE `active` = ? ORDER BY `id` DESC LIMIT ? OFFSET ?", sql)
	assert.Equal(t, []any{true, 10, 20}, bound)
}

func TestBuildSelect_OffsetRequiresLimit(t *testing.T) {
	offset := 5
	_, _, err := buildSelect("`shop`.`users`", nil, nil, "", nil, &offset)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offset requires limit")
}

func TestBuildSelect_RejectsBadColumn(t *testing.T) {
	_, _, err := buildSelect("`shop`.`users`", []string{"id", "na me"}, nil, "", nil, nil)
	require.Error(t, err)
	assert.Equal(t, KindValidation, asEnvelope(err).Kind)
}

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateIdentifier_Valid(t *testing.T) {
	valid := []string{
		"users",
		"Users",
		"_private",
		"table_2",
		"a",
		"_",
		"order_items",
		"CamelCase_99",
	}

	for _, name := range valid {
		t.Run(name, func(t *testing.T) {
			got, err := validateIdentifier(name, "table")
			require.NoError(t, err)
			assert.Equal(t, name, got)
		})
	}
}

func TestValidateIdentifier_Invalid(t *testing.T) {
	invalid := []string{
		"",
		"1table",
		"user-name",
		"users; DROP TABLE users",
		"users`",
		"`users`",
		"db.table",
		"user name",
		" users",
		"users ",
		"naïve",
		"таблица",
	}

	for _, name := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := validateIdentifier(name, "table")
			require.Error(t, err)
			assert.Equal(t, KindValidation, asEnvelope(err).Kind)
		})
	}
}

func TestValidateIdentifier_ErrorNamesField(t *testing.T) {
	_, err := validateIdentifier("bad name", "orderBy column")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orderBy column")
}

func TestQuoteIdentifier(t *testing.T) {
	quoted, err := quoteIdentifier("users", "table")
	require.NoError(t, err)
	assert.Equal(t, "`users`", quoted)

	_, err = quoteIdentifier("us`ers", "table")
	require.Error(t, err)
}

package main

import (
	"fmt"
	"regexp"
	"strings"
)

// Read-only guard for execute_sql when the server runs with --read-only.
// Keyword checks run against text with string literals and comments stripped,
// so "WHERE name = 'DROP TABLE'" does not false-positive.

var allowedReadOnlyPrefixes = []string{"SELECT ", "SHOW ", "DESCRIBE ", "DESC ", "EXPLAIN "}

var forbiddenKeywords = []struct {
	pattern *regexp.Regexp
	desc    string
}{
	{regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])INSERT(?:[^a-zA-Z_]|$)`), "INSERT"},
	{regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])UPDATE(?:[^a-zA-Z_]|$)`), "UPDATE"},
	{regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])DELETE(?:[^a-zA-Z_]|$)`), "DELETE"},
	{regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])DROP(?:[^a-zA-Z_]|$)`), "DROP"},
	{regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])CREATE(?:[^a-zA-Z_]|$)`), "CREATE"},
	{regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])ALTER(?:[^a-zA-Z_]|$)`), "ALTER"},
	{regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])TRUNCATE(?:[^a-zA-Z_]|$)`), "TRUNCATE"},
	{regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])GRANT(?:[^a-zA-Z_]|$)`), "GRANT"},
	{regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])REVOKE(?:[^a-zA-Z_]|$)`), "REVOKE"},
	{regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])CALL(?:[^a-zA-Z_]|$)`), "CALL"},
	{regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])EXEC(?:[^a-zA-Z_]|$)`), "EXEC"},
	{regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])EXECUTE(?:[^a-zA-Z_]|$)`), "EXECUTE"},
	{regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])REPLACE(?:[^a-zA-Z_]|$)`), "REPLACE"},
	{regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])LOAD(?:[^a-zA-Z_]|$)`), "LOAD"},
	{regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])HANDLER(?:[^a-zA-Z_]|$)`), "HANDLER"},
	{regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])RENAME(?:[^a-zA-Z_]|$)`), "RENAME"},
}

// forbiddenPatterns match against the original text: file access and
// variable writes hide inside otherwise-valid SELECTs.
var forbiddenPatterns = []struct {
	pattern *regexp.Regexp
	desc    string
}{
	{regexp.MustCompile(`(?i)\bINTO\s+OUTFILE\b`), "INTO OUTFILE"},
	{regexp.MustCompile(`(?i)\bINTO\s+DUMPFILE\b`), "INTO DUMPFILE"},
	{regexp.MustCompile(`(?i)\bLOAD_FILE\s*\(`), "LOAD_FILE()"},
	{regexp.MustCompile(`(?i)\bINTO\s+@`), "INTO @variable"},
	{regexp.MustCompile(`(?i)\bSLEEP\s*\(`), "SLEEP()"},
	{regexp.MustCompile(`(?i)\bBENCHMARK\s*\(`), "BENCHMARK()"},
	{regexp.MustCompile(`(?i)\bGET_LOCK\s*\(`), "GET_LOCK()"},
	{regexp.MustCompile(`(?i)\bRELEASE_LOCK\s*\(`), "RELEASE_LOCK()"},
	{regexp.MustCompile(`(?i)\bIS_FREE_LOCK\s*\(`), "IS_FREE_LOCK()"},
	{regexp.MustCompile(`(?i)\bIS_USED_LOCK\s*\(`), "IS_USED_LOCK()"},
	{regexp.MustCompile(`(?i)\bMASTER_POS_WAIT\s*\(`), "MASTER_POS_WAIT()"},
	{regexp.MustCompile(`(?i)\bSOURCE_POS_WAIT\s*\(`), "SOURCE_POS_WAIT()"},
}

var setStatementPattern = regexp.MustCompile(`(?i)(?:^|;)\s*SET\b`)

// validateReadOnlyQuery rejects any statement that could modify data, schema,
// privileges, or server state.
func validateReadOnlyQuery(sqlQuery string) error {
	trimmed := strings.TrimSpace(sqlQuery)
	if trimmed == "" {
		return fmt.Errorf("empty query")
	}

	upper := strings.ToUpper(trimmed)
	hasAllowedPrefix := false
	for _, prefix := range allowedReadOnlyPrefixes {
		if strings.HasPrefix(upper, prefix) || upper == strings.TrimSpace(prefix) {
			hasAllowedPrefix = true
			break
		}
	}
	if !hasAllowedPrefix {
		return fmt.Errorf("only SELECT, SHOW, DESCRIBE, and EXPLAIN queries are allowed")
	}

	cleaned := removeStringsAndComments(sqlQuery)

	if strings.Contains(cleaned, ";") {
		parts := strings.SplitN(cleaned, ";", 2)
		if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
			return fmt.Errorf("multiple statements are not allowed")
		}
	}

	for _, fk := range forbiddenKeywords {
		if fk.pattern.MatchString(cleaned) {
			return fmt.Errorf("query contains forbidden keyword: %s", fk.desc)
		}
	}
	for _, fp := range forbiddenPatterns {
		if fp.pattern.MatchString(sqlQuery) {
			return fmt.Errorf("query contains forbidden pattern: %s", fp.desc)
		}
	}
	if setStatementPattern.MatchString(cleaned) {
		return fmt.Errorf("SET statements are not allowed")
	}

	return nil
}

// removeStringsAndComments strips string literals and comments from SQL so
// keyword detection cannot be fooled by quoted text. Handles MySQL's #
// comments, backtick identifiers, and backslash escapes.
func removeStringsAndComments(sql string) string {
	var result strings.Builder
	i := 0
	n := len(sql)

	for i < n {
		// -- comment to end of line
		if i+1 < n && sql[i] == '-' && sql[i+1] == '-' {
			for i < n && sql[i] != '\n' {
				i++
			}
			result.WriteByte(' ')
			continue
		}

		// # comment to end of line
		if sql[i] == '#' {
			for i < n && sql[i] != '\n' {
				i++
			}
			result.WriteByte(' ')
			continue
		}

		// /* ... */ comment
		if i+1 < n && sql[i] == '/' && sql[i+1] == '*' {
			i += 2
			for i+1 < n && !(sql[i] == '*' && sql[i+1] == '/') {
				i++
			}
			i += 2
			result.WriteByte(' ')
			continue
		}

		// single-quoted string
		if sql[i] == '\'' {
			i++
			for i < n {
				if sql[i] == '\'' {
					if i+1 < n && sql[i+1] == '\'' {
						i += 2
						continue
					}
					i++
					break
				}
				if sql[i] == '\\' && i+1 < n {
					i += 2
					continue
				}
				i++
			}
			result.WriteString("''")
			continue
		}

		// double-quoted string
		if sql[i] == '"' {
			i++
			for i < n {
				if sql[i] == '"' {
					if i+1 < n && sql[i+1] == '"' {
						i += 2
						continue
					}
					i++
					break
				}
				if sql[i] == '\\' && i+1 < n {
					i += 2
					continue
				}
				i++
			}
			result.WriteString(`""`)
			continue
		}

		// backtick identifier: kept, content is a name not a value
		if sql[i] == '`' {
			result.WriteByte('`')
			i++
			for i < n && sql[i] != '`' {
				result.WriteByte(sql[i])
				i++
			}
			if i < n {
				result.WriteByte('`')
				i++
			}
			continue
		}

		result.WriteByte(sql[i])
		i++
	}

	return result.String()
}

package snowflake

import (
	"fmt"
	"regexp"
	"strings"
)

// SplitStatements splits a script on semicolons that are outside string
// literals, quoted identifiers, and $$ blocks. Line and block comments are
// dropped, and blank statements are skipped.
func SplitStatements(script string) []string {
	var (
		statements []string
		current    strings.Builder
	)

	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	n := len(script)
	for i := 0; i < n; i++ {
		c := script[i]
		switch {
		case c == '-' && i+1 < n && script[i+1] == '-':
			for i < n && script[i] != '\n' {
				i++
			}
			if i < n {
				current.WriteByte('\n')
			}
		case c == '/' && i+1 < n && script[i+1] == '*':
			end := strings.Index(script[i+2:], "*/")
			if end < 0 {
				i = n
			} else {
				i += end + 3
			}
			current.WriteByte(' ')
		case c == '$' && i+1 < n && script[i+1] == '$':
			end := strings.Index(script[i+2:], "$$")
			if end < 0 {
				current.WriteString(script[i:])
				i = n
			} else {
				current.WriteString(script[i : i+end+4])
				i += end + 3
			}
		case c == '\'' || c == '"':
			j := i + 1
			for j < n {
				if script[j] == '\\' && c == '\'' {
					j += 2
					continue
				}
				if script[j] == c {
					// A doubled quote is an escaped quote.
					if j+1 < n && script[j+1] == c {
						j += 2
						continue
					}
					break
				}
				j++
			}
			if j >= n {
				j = n - 1
			}
			current.WriteString(script[i : j+1])
			i = j
		case c == ';':
			flush()
		default:
			current.WriteByte(c)
		}
	}
	flush()

	return statements
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// ValidateIdentifier reports whether name is a plain unquoted identifier,
// optionally qualified with dots (DB.SCHEMA.TABLE).
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("identifier is empty")
	}
	if len(name) > 255 {
		return fmt.Errorf("identifier %q is too long", name)
	}
	for _, part := range strings.Split(name, ".") {
		if !identifierPattern.MatchString(part) {
			return fmt.Errorf("invalid identifier %q", name)
		}
	}
	return nil
}

// QuoteIdent returns name as a double-quoted identifier. Embedded quotes are
// doubled.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

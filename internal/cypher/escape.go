package cypher

import (
	"regexp"
	"strings"
)

var plainName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// QuoteIdentifier quotes a Cypher identifier (label, relationship type,
// property or variable) with backticks, escaping embedded backticks.
func QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, "`", "``")
	return "`" + escaped + "`"
}

// QuoteString quotes a Cypher string literal with double quotes.
func QuoteString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// escapeName returns name unchanged when it is a plain identifier and the
// backtick-quoted form otherwise.
func escapeName(name string) string {
	if plainName.MatchString(name) {
		return name
	}
	return QuoteIdentifier(name)
}

func renderLabels(labels []string) string {
	var b strings.Builder
	for _, label := range labels {
		b.WriteByte(':')
		b.WriteString(escapeName(label))
	}
	return b.String()
}

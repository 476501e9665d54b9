package render

import (
	"strconv"
	"strings"
)

// Rebind rewrites neutral ? placeholders into the dialect's bind style.
// Compilation always emits ?; numbering happens here, in one left-to-right
// pass over the final statement, so clause assembly order never has to agree
// with clause computation order. Identifiers are schema-validated and quoted
// values never appear inline, so every ? in the input is a placeholder.
func Rebind(style BindStyle, sql string) string {
	if style == BindQuestion {
		return sql
	}

	var out strings.Builder
	out.Grow(len(sql) + 10)

	n := 0
	for _, ch := range sql {
		if ch != '?' {
			out.WriteRune(ch)
			continue
		}
		n++
		switch style {
		case BindDollar:
			out.WriteByte('$')
		case BindAt:
			out.WriteString("@p")
		case BindColon:
			out.WriteByte(':')
		}
		out.WriteString(strconv.Itoa(n))
	}

	return out.String()
}

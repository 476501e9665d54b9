package types

import "strings"

// Kind classifies the output type of an expression. Kinds drive arithmetic
// dispatch (date - date yields a duration, date + duration yields a date)
// and let dialects pick storage-specific renderings.
type Kind int

const (
	KindUnknown Kind = iota
	KindBool
	KindInt
	KindFloat
	KindDecimal
	KindText
	KindDate
	KindDateTime
	KindTime
	KindDuration
	KindBytes
	KindJSON
)

var kindNames = map[Kind]string{
	KindUnknown:  "unknown",
	KindBool:     "bool",
	KindInt:      "int",
	KindFloat:    "float",
	KindDecimal:  "decimal",
	KindText:     "text",
	KindDate:     "date",
	KindDateTime: "datetime",
	KindTime:     "time",
	KindDuration: "duration",
	KindBytes:    "bytes",
	KindJSON:     "json",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// IsNumeric reports whether the kind supports plain arithmetic.
func (k Kind) IsNumeric() bool {
	return k == KindInt || k == KindFloat || k == KindDecimal
}

// IsTemporal reports whether the kind represents a point in time.
func (k Kind) IsTemporal() bool {
	return k == KindDate || k == KindDateTime || k == KindTime
}

// KindOfType maps a declared column type (as written in a schema, e.g.
// "bigint", "varchar(80)", "timestamp with time zone") to a Kind.
func KindOfType(dbType string) Kind {
	t := strings.ToLower(strings.TrimSpace(dbType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	t = strings.TrimSpace(t)

	switch {
	case t == "date":
		return KindDate
	case strings.HasPrefix(t, "timestamp"), strings.HasPrefix(t, "datetime"):
		return KindDateTime
	case strings.HasPrefix(t, "time"):
		return KindTime
	case strings.HasPrefix(t, "interval"):
		return KindDuration
	case strings.HasPrefix(t, "bool"), t == "bit":
		return KindBool
	case strings.HasPrefix(t, "int"), strings.HasPrefix(t, "bigint"),
		strings.HasPrefix(t, "smallint"), strings.HasPrefix(t, "serial"),
		strings.HasPrefix(t, "bigserial"), t == "integer":
		return KindInt
	case strings.HasPrefix(t, "float"), strings.HasPrefix(t, "real"),
		strings.HasPrefix(t, "double"):
		return KindFloat
	case strings.HasPrefix(t, "decimal"), strings.HasPrefix(t, "numeric"):
		return KindDecimal
	case strings.HasPrefix(t, "json"):
		return KindJSON
	case strings.HasPrefix(t, "bytea"), strings.HasPrefix(t, "blob"),
		strings.HasPrefix(t, "binary"), strings.HasPrefix(t, "varbinary"),
		t == "long raw", t == "raw":
		return KindBytes
	case strings.HasPrefix(t, "char"), strings.HasPrefix(t, "varchar"),
		strings.HasPrefix(t, "text"), strings.HasPrefix(t, "clob"),
		strings.HasPrefix(t, "nclob"), strings.HasPrefix(t, "nvarchar"), t == "long":
		return KindText
	default:
		return KindUnknown
	}
}

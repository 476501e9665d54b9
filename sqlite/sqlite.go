// Package sqlite provides the SQLite dialect definition.
package sqlite

import (
	"strconv"
	"strings"

	"github.com/zoobzio/thibaud/checks"
	"github.com/zoobzio/thibaud/internal/render"
	"github.com/zoobzio/thibaud/internal/types"
	"github.com/zoobzio/thibaud/schema"
)

// maxExactDigits is the precision beyond which SQLite's float storage loses
// digits; there is no native fixed-point type.
const maxExactDigits = 15

// Dialect is the SQLite dialect.
type Dialect struct{}

// New returns the dialect.
func New() *Dialect {
	return &Dialect{}
}

func (d *Dialect) Name() string { return "sqlite" }

func (d *Dialect) QuoteName(name string) string {
	escaped := strings.ReplaceAll(name, `"`, `""`)
	return `"` + escaped + `"`
}

func (d *Dialect) Capabilities() render.Capabilities {
	return render.Capabilities{
		BulkInsert:       true,
		UpdateSelfSelect: true,
		// Rows become invalid once the connection commits, so result
		// sets are materialized before handing them out.
		ChunkedReads:        false,
		RowLocking:          render.RowLockingNone,
		ExpressionIndexes:   true,
		PartialIndexes:      true,
		BindStyle:           render.BindQuestion,
		LimitStyle:          render.LimitOffset,
		MaxDecimalPrecision: maxExactDigits,
		MaxDecimalScale:     maxExactDigits,
	}
}

// Check warns for decimal columns whose declared precision exceeds what the
// engine's floating-point storage can represent exactly.
func (d *Dialect) Check(meta types.Meta, table string, indexes []*schema.Index) *checks.Diagnostics {
	diags := &checks.Diagnostics{}
	for _, col := range meta.Columns(table) {
		p, _, ok := decimalSpec(col.Type)
		if !ok {
			continue
		}
		if p > maxExactDigits {
			diags.PushWarning("schema.W003", table+"."+col.Name,
				"decimal stored as floating point beyond "+strconv.Itoa(maxExactDigits)+" digits",
				"values may silently lose precision")
		}
	}
	return diags
}

func decimalSpec(dbType string) (precision, scale int, ok bool) {
	t := strings.ToLower(strings.TrimSpace(dbType))
	if !strings.HasPrefix(t, "decimal") && !strings.HasPrefix(t, "numeric") {
		return 0, 0, false
	}
	open := strings.IndexByte(t, '(')
	closing := strings.IndexByte(t, ')')
	if open < 0 || closing < open {
		return 0, 0, false
	}
	parts := strings.Split(t[open+1:closing], ",")
	precision, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	if len(parts) > 1 {
		scale, err = strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return 0, 0, false
		}
	}
	return precision, scale, true
}

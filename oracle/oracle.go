// Package oracle provides the Oracle dialect definition. No driver ships
// with this module; the dialect exists for SQL generation and schema checks.
package oracle

import (
	"strings"

	"github.com/zoobzio/thibaud/checks"
	"github.com/zoobzio/thibaud/internal/render"
	"github.com/zoobzio/thibaud/internal/types"
	"github.com/zoobzio/thibaud/schema"
)

// Dialect is the Oracle dialect.
type Dialect struct{}

// New returns the dialect.
func New() *Dialect {
	return &Dialect{}
}

func (d *Dialect) Name() string { return "oracle" }

func (d *Dialect) QuoteName(name string) string {
	escaped := strings.ReplaceAll(name, `"`, `""`)
	return `"` + strings.ToUpper(escaped) + `"`
}

func (d *Dialect) Capabilities() render.Capabilities {
	return render.Capabilities{
		// Generated keys come back through out-binds, which plain
		// placeholder statements cannot express; inserts fall back to
		// one statement per row with a separate key fetch.
		ReturningOnInsert: false,
		BulkInsert:        false,
		UpdateSelfSelect:  true,
		ChunkedReads:      true,
		RowLocking:        render.RowLockingBasic,
		LockNowait:        true,
		ExpressionIndexes: true,
		// Legacy identifier limit; newer servers allow 128 but
		// generated names stay portable at 30.
		MaxIdentifierLength: 30,
		BindStyle:           render.BindColon,
		LimitStyle:          render.OffsetFetch,
		MaxDecimalPrecision: 38,
		MaxDecimalScale:     38,
	}
}

// Check warns when an index touches a LOB-typed column, which Oracle
// rejects at DDL time.
func (d *Dialect) Check(meta types.Meta, table string, indexes []*schema.Index) *checks.Diagnostics {
	diags := &checks.Diagnostics{}
	indexed := map[string]bool{}
	for _, idx := range indexes {
		for _, f := range idx.Fields {
			if f.Column != "" {
				indexed[f.Column] = true
			}
		}
	}
	for _, col := range meta.Columns(table) {
		if !indexed[col.Name] {
			continue
		}
		t := strings.ToLower(col.Type)
		if strings.HasPrefix(t, "clob") || strings.HasPrefix(t, "nclob") || strings.HasPrefix(t, "blob") ||
			col.Kind == types.KindBytes || strings.HasPrefix(t, "text") {
			diags.PushWarning("schema.W030", table+"."+col.Name,
				"LOB columns cannot be indexed",
				"drop the index or store a hashed shadow column")
		}
	}
	return diags
}

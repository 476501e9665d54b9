// Package mssql provides the SQL Server dialect definition.
package mssql

import (
	"strings"

	"github.com/zoobzio/thibaud/checks"
	"github.com/zoobzio/thibaud/internal/render"
	"github.com/zoobzio/thibaud/internal/types"
	"github.com/zoobzio/thibaud/schema"
)

// Dialect is the SQL Server dialect.
type Dialect struct{}

// New returns the dialect.
func New() *Dialect {
	return &Dialect{}
}

func (d *Dialect) Name() string { return "mssql" }

func (d *Dialect) QuoteName(name string) string {
	escaped := strings.ReplaceAll(name, "]", "]]")
	return "[" + escaped + "]"
}

func (d *Dialect) Capabilities() render.Capabilities {
	return render.Capabilities{
		BulkInsert:       true,
		UpdateSelfSelect: true,
		ChunkedReads:     true,
		// Row locking is expressed through table hints, not FOR UPDATE.
		RowLocking:      render.RowLockingNone,
		CoveringIndexes: true,
		PartialIndexes:  true,
		BindStyle:       render.BindAt,
		LimitStyle:      render.OffsetFetch,
		// T-SQL rejects OFFSET/FETCH without ORDER BY.
		PaginationRequiresOrder: true,
		MaxIdentifierLength:     128,
		MaxDecimalPrecision:     38,
		MaxDecimalScale:         38,
	}
}

// Check warns about indexed unbounded text columns, which SQL Server
// rejects as index keys.
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
		t := strings.ToLower(col.Type)
		if indexed[col.Name] && (strings.HasPrefix(t, "text") || strings.Contains(t, "(max)")) {
			diags.PushWarning("schema.W020", table+"."+col.Name,
				"unbounded text columns cannot be index keys",
				"use a sized nvarchar or move the column to INCLUDE")
		}
	}
	return diags
}

// Package mysql provides the MySQL/MariaDB dialect definition.
package mysql

import (
	"strings"

	"github.com/zoobzio/thibaud/checks"
	"github.com/zoobzio/thibaud/internal/render"
	"github.com/zoobzio/thibaud/internal/types"
	"github.com/zoobzio/thibaud/schema"
)

const (
	maxDecimalPrecision = 65
	maxDecimalScale     = 30
	maxKeyTextLength    = 255
)

// Dialect is the MySQL dialect. MariaDB is wire-compatible for everything
// this package gates on.
type Dialect struct {
	mariadb bool
}

// New returns the MySQL dialect.
func New() *Dialect {
	return &Dialect{}
}

// NewMariaDB returns the dialect reporting the mariadb vendor name, so
// vendor-specific expression renderings can diverge where the engines do.
func NewMariaDB() *Dialect {
	return &Dialect{mariadb: true}
}

func (d *Dialect) Name() string {
	if d.mariadb {
		return "mariadb"
	}
	return "mysql"
}

func (d *Dialect) QuoteName(name string) string {
	escaped := strings.ReplaceAll(name, "`", "``")
	return "`" + escaped + "`"
}

func (d *Dialect) Capabilities() render.Capabilities {
	return render.Capabilities{
		// Grouping by the key functionally determines the row under
		// ONLY_FULL_GROUP_BY, so inferred lists collapse.
		GroupByPrimaryKey: true,
		BulkInsert:        true,
		// UPDATE cannot select from its own target table.
		UpdateSelfSelect:    false,
		ChunkedReads:        true,
		RowLocking:          render.RowLockingBasic,
		LockNowait:          true,
		ExpressionIndexes:   true,
		BindStyle:           render.BindQuestion,
		LimitStyle:          render.LimitOffset,
		MaxIdentifierLength: 64,
		MaxDecimalPrecision: maxDecimalPrecision,
		MaxDecimalScale:     maxDecimalScale,
	}
}

// Check warns about indexed text columns without a key prefix length and
// decimal declarations above the engine caps.
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
		obj := table + "." + col.Name
		if indexed[col.Name] && col.Kind == types.KindText && !hasLength(col.Type) {
			diags.PushWarning("schema.W010", obj,
				"indexed text column has no key length",
				"declare a sized type such as varchar(255)")
		}
	}
	return diags
}

func hasLength(dbType string) bool {
	return strings.Contains(dbType, "(")
}

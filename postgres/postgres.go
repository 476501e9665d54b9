// Package postgres provides the PostgreSQL dialect definition: identifier
// quoting, feature capabilities gated on server version, and schema checks.
package postgres

import (
	"strconv"
	"strings"

	goversion "github.com/hashicorp/go-version"

	"github.com/zoobzio/thibaud/checks"
	"github.com/zoobzio/thibaud/internal/render"
	"github.com/zoobzio/thibaud/internal/types"
	"github.com/zoobzio/thibaud/schema"
)

// Range operators for exclusion constraints.
const (
	OverlapsOp         = "&&"
	EqualOp            = "="
	ContainsOp         = "@>"
	ContainedByOp      = "<@"
	LeftOfOp           = "<<"
	RightOfOp          = ">>"
	NotExtendRightOfOp = "&<"
	NotExtendLeftOfOp  = "&>"
	AdjacentOp         = "-|-"
)

// maxDecimalDigits is the precision/scale cap before numeric storage
// degrades.
const maxDecimalDigits = 1000

// Dialect is the PostgreSQL dialect.
type Dialect struct {
	version *goversion.Version
}

// New returns the dialect assuming a current server. Use NewWithVersion to
// gate capabilities on an older server.
func New() *Dialect {
	d, _ := NewWithVersion("16.0")
	return d
}

// NewWithVersion parses a server version string ("11.4", "14.2") and gates
// version-dependent capabilities on it.
func NewWithVersion(ver string) (*Dialect, error) {
	v, err := goversion.NewVersion(ver)
	if err != nil {
		return nil, err
	}
	return &Dialect{version: v}, nil
}

func (d *Dialect) Name() string { return "postgres" }

func (d *Dialect) QuoteName(name string) string {
	escaped := strings.ReplaceAll(name, `"`, `""`)
	return `"` + escaped + `"`
}

func (d *Dialect) atLeast(ver string) bool {
	v := goversion.Must(goversion.NewVersion(ver))
	return d.version.GreaterThanOrEqual(v)
}

func (d *Dialect) Capabilities() render.Capabilities {
	return render.Capabilities{
		GroupByPrimaryKey:            true,
		ReturningOnInsert:            true,
		ReturningFormat:              "RETURNING %s",
		BulkInsert:                   true,
		UpdateSelfSelect:             true,
		ChunkedReads:                 true,
		RowLocking:                   render.RowLockingFull,
		LockNowait:                   true,
		DistinctOnFields:             true,
		ExpressionIndexes:            true,
		CoveringIndexes:              d.atLeast("11"),
		DeferrableConstraints:        true,
		ExclusionConstraints:         true,
		CoveringExclusionConstraints: d.atLeast("14"),
		PartialIndexes:               true,
		NativeDuration:               true,
		BindStyle:                    render.BindDollar,
		LimitStyle:                   render.LimitOffset,
		MaxIdentifierLength:          63,
		MaxDecimalPrecision:          maxDecimalDigits,
		MaxDecimalScale:              maxDecimalDigits,
	}
}

// Check runs static schema validation for one table.
func (d *Dialect) Check(meta types.Meta, table string, indexes []*schema.Index) *checks.Diagnostics {
	diags := &checks.Diagnostics{}
	for _, col := range meta.Columns(table) {
		p, s, ok := decimalSpec(col.Type)
		if !ok {
			continue
		}
		obj := table + "." + col.Name
		if p > maxDecimalDigits {
			diags.PushWarning("schema.W001", obj,
				"decimal precision exceeds the supported maximum",
				"values beyond "+strconv.Itoa(maxDecimalDigits)+" digits lose precision")
		}
		if s > maxDecimalDigits {
			diags.PushWarning("schema.W002", obj,
				"decimal scale exceeds the supported maximum", "")
		}
	}
	return diags
}

// decimalSpec parses "decimal(p, s)" / "numeric(p, s)" declarations.
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

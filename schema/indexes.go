// Package schema declares table constraints and indexes and compiles them
// to dialect DDL through the query compiler's expression renderer.
package schema

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zoobzio/thibaud/compiler"
	"github.com/zoobzio/thibaud/ddl"
	"github.com/zoobzio/thibaud/internal/render"
	"github.com/zoobzio/thibaud/internal/types"
)

// DefaultMaxNameLength caps generated identifier names when the dialect
// declares no limit of its own. The value is the legacy Oracle maximum.
const DefaultMaxNameLength = 30

// IndexField is one indexed member: a plain column or an arbitrary
// expression, optionally descending.
type IndexField struct {
	Column     string
	Expr       types.Expression
	Descending bool
}

// Index describes a secondary index over one table's columns or
// expressions.
type Index struct {
	Name       string
	Fields     []IndexField
	Condition  types.Expression
	Include    []string
	OpClasses  []string
	Tablespace string

	suffix string
}

const indexSuffix = "idx"

// NewIndex validates option combinations up front, so misdeclared indexes
// fail where they are written rather than at DDL-generation time.
func NewIndex(name string, fields ...IndexField) (*Index, error) {
	if len(fields) == 0 {
		return nil, render.NewValueError("index requires at least one field")
	}
	hasExpr := false
	for _, f := range fields {
		if (f.Column == "") == (f.Expr == nil) {
			return nil, render.NewValueError("index field must set exactly one of column or expression")
		}
		if f.Expr != nil {
			hasExpr = true
		}
	}
	if hasExpr && name == "" {
		return nil, render.NewValueError("expression indexes require an explicit name")
	}
	return &Index{Name: name, Fields: fields, suffix: indexSuffix}, nil
}

// columnsWithOrder renders the field list the way the name hash consumes
// it: a - prefix marks descending members.
func (idx *Index) columnsWithOrder() []string {
	out := make([]string, len(idx.Fields))
	for i, f := range idx.Fields {
		col := f.Column
		if f.Descending {
			col = "-" + col
		}
		out[i] = col
	}
	return out
}

// SetNameWithTable derives a deterministic name from the table and field
// list: 11 chars of the table, 7 of the first column, a 6-hex digest and
// the suffix. Repeated introspection of the same definition must produce
// the same name. A leading digit or underscore is repaired to keep the
// name portable. Panics when the result cannot fit maxLength, since that
// means the suffix leaves no room for the parts and is a programming error.
func (idx *Index) SetNameWithTable(table string, maxLength int) {
	if idx.Name != "" {
		return
	}
	if idx.suffix == "" {
		idx.suffix = indexSuffix
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxNameLength
	}
	cols := idx.columnsWithOrder()
	digestParts := append([]string{table}, cols...)
	hashPart := namesDigest(append(digestParts, idx.suffix), 6) + "_" + idx.suffix

	first := strings.TrimPrefix(cols[0], "-")
	name := fmt.Sprintf("%s_%s_%s", truncate(table, 11), truncate(first, 7), hashPart)
	if len(name) > maxLength {
		panic(fmt.Sprintf("index name %q exceeds maximum length %d; suffix %q leaves no room", name, maxLength, idx.suffix))
	}
	if name[0] == '_' || (name[0] >= '0' && name[0] <= '9') {
		name = "D" + name[1:]
	}
	idx.Name = name
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// namesDigest hashes the parts into a short stable hex fragment.
func namesDigest(parts []string, length int) string {
	h := md5.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))[:length]
}

// Deconstruction is the serializable form of an index; reconstructing from
// it yields an equal index.
type Deconstruction struct {
	Name    string
	Fields  []IndexField
	Options map[string]any
}

// Deconstruct captures the index's full definition.
func (idx *Index) Deconstruct() Deconstruction {
	d := Deconstruction{
		Name:    idx.Name,
		Fields:  append([]IndexField(nil), idx.Fields...),
		Options: map[string]any{},
	}
	if idx.Condition != nil {
		d.Options["condition"] = idx.Condition
	}
	if len(idx.Include) > 0 {
		d.Options["include"] = append([]string(nil), idx.Include...)
	}
	if len(idx.OpClasses) > 0 {
		d.Options["opclasses"] = append([]string(nil), idx.OpClasses...)
	}
	if idx.Tablespace != "" {
		d.Options["tablespace"] = idx.Tablespace
	}
	return d
}

// Reconstruct rebuilds an index from its deconstructed form.
func Reconstruct(d Deconstruction) *Index {
	idx := &Index{
		Name:   d.Name,
		Fields: append([]IndexField(nil), d.Fields...),
		suffix: indexSuffix,
	}
	if c, ok := d.Options["condition"].(types.Expression); ok {
		idx.Condition = c
	}
	if inc, ok := d.Options["include"].([]string); ok {
		idx.Include = append([]string(nil), inc...)
	}
	if op, ok := d.Options["opclasses"].([]string); ok {
		idx.OpClasses = append([]string(nil), op...)
	}
	if ts, ok := d.Options["tablespace"].(string); ok {
		idx.Tablespace = ts
	}
	return idx
}

// CreateSQL compiles the index into a deferred DDL statement.
func (idx *Index) CreateSQL(c *compiler.Compiler, meta types.Meta, table string, unique bool) (*ddl.Statement, error) {
	caps := c.Capabilities()
	if idx.Name == "" {
		idx.SetNameWithTable(table, caps.MaxIdentifierLength)
	}
	if idx.Condition != nil && !caps.PartialIndexes {
		return nil, render.NewUnsupportedFeatureError(c.Dialect().Name(), "partial indexes")
	}
	if len(idx.Include) > 0 && !caps.CoveringIndexes {
		return nil, render.NewUnsupportedFeatureError(c.Dialect().Name(), "covering indexes")
	}

	var plainCols, suffixes []string
	var exprCols []string
	var exprParts []string
	hasExpr := false
	for i, f := range idx.Fields {
		if f.Expr != nil {
			hasExpr = true
			sql, cols, err := renderDDLExpr(c, meta, table, f.Expr)
			if err != nil {
				return nil, err
			}
			if f.Descending {
				sql = "(" + sql + ") DESC"
			} else {
				sql = "(" + sql + ")"
			}
			exprParts = append(exprParts, sql)
			exprCols = append(exprCols, cols...)
			continue
		}
		plainCols = append(plainCols, f.Column)
		sfx := ""
		if f.Descending {
			sfx = "DESC"
		}
		if i < len(idx.OpClasses) && idx.OpClasses[i] != "" {
			if sfx != "" {
				sfx = idx.OpClasses[i] + " " + sfx
			} else {
				sfx = idx.OpClasses[i]
			}
		}
		suffixes = append(suffixes, sfx)
	}
	if hasExpr && !caps.ExpressionIndexes {
		return nil, render.NewUnsupportedFeatureError(c.Dialect().Name(), "expression indexes")
	}

	quote := c.Quote
	parts := map[string]ddl.Reference{
		"name":  &ddl.IndexName{Table: table, Columns: plainCols, Suffix: idx.suffix, Create: fixedName(quote(idx.Name))},
		"table": &ddl.Table{Name: table, Quote: quote},
	}
	if hasExpr {
		combined := append([]string(nil), exprParts...)
		for i, col := range plainCols {
			part := quote(col)
			if suffixes[i] != "" {
				part += " " + suffixes[i]
			}
			combined = append(combined, part)
		}
		joined := strings.Join(combined, ", ")
		parts["columns"] = &ddl.Expressions{Table: table, Columns: append(plainCols, exprCols...), Render: func() string { return joined }}
	} else {
		parts["columns"] = &ddl.Columns{Table: table, Names: plainCols, Suffixes: suffixes, Quote: quote}
	}

	template := "CREATE INDEX %(name)s ON %(table)s (%(columns)s)"
	if unique {
		template = "CREATE UNIQUE INDEX %(name)s ON %(table)s (%(columns)s)"
	}
	if len(idx.Include) > 0 {
		parts["include"] = &ddl.Columns{Table: table, Names: append([]string(nil), idx.Include...), Quote: quote}
		template += " INCLUDE (%(include)s)"
	}
	if idx.Tablespace != "" {
		template += " TABLESPACE " + idx.Tablespace
	}
	if idx.Condition != nil {
		sql, cols, err := renderDDLExpr(c, meta, table, idx.Condition)
		if err != nil {
			return nil, err
		}
		parts["condition"] = &ddl.Expressions{Table: table, Columns: cols, Render: func() string { return sql }}
		template += " WHERE %(condition)s"
	}

	return &ddl.Statement{Template: template, Parts: parts}, nil
}

// RemoveSQL compiles the drop statement.
func (idx *Index) RemoveSQL(c *compiler.Compiler, table string) *ddl.Statement {
	return &ddl.Statement{
		Template: "DROP INDEX %(name)s",
		Parts: map[string]ddl.Reference{
			"name": &ddl.IndexName{Table: table, Columns: nil, Suffix: idx.suffix, Create: fixedName(c.Quote(idx.Name))},
		},
	}
}

func fixedName(name string) func(string, []string, string) string {
	return func(string, []string, string) string { return name }
}

// renderDDLExpr compiles an expression for DDL text: columns unqualified,
// parameters inlined as literals, joins forbidden. It also reports the
// columns the text mentions, for rename tracking.
func renderDDLExpr(c *compiler.Compiler, meta types.Meta, table string, e types.Expression) (string, []string, error) {
	q, err := types.NewQuery(meta, table)
	if err != nil {
		return "", nil, err
	}
	res, err := e.Resolve(q, types.ResolveOptions{})
	if err != nil {
		return "", nil, err
	}
	var cols []string
	seen := map[string]bool{}
	bare := types.ReplaceColumns(res, func(col *types.Col) types.Expression {
		if !seen[col.Name] {
			seen[col.Name] = true
			cols = append(cols, col.Name)
		}
		return &types.Col{Name: col.Name, Kind: col.Kind}
	})
	sql, params, err := c.Compile(bare)
	if err != nil {
		return "", nil, err
	}
	inlined, err := inlineParams(sql, params)
	if err != nil {
		return "", nil, err
	}
	return inlined, cols, nil
}

// Package compiler lowers a query description into dialect-specific SQL text
// and a parameter list. A Compiler is created fresh per statement and
// discarded once the SQL is produced; it is not safe for concurrent use.
package compiler

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/zoobzio/thibaud/internal/render"
	"github.com/zoobzio/thibaud/internal/types"
)

const maxSubqueryDepth = 10

// Statement is one executable SQL statement with its bound parameters in
// placeholder order.
type Statement struct {
	SQL    string
	Params []any
}

// Options carries per-execution state the compiler cannot derive from the
// query itself.
type Options struct {
	// InTransaction must be true for SELECT FOR UPDATE.
	InTransaction bool
}

// Compiler lowers queries for a single dialect.
type Compiler struct {
	dialect render.Dialect
	caps    render.Capabilities
	log     *slog.Logger

	depth      int
	quoteCache map[string]string
}

// New returns a compiler for the dialect. A nil logger disables logging.
func New(d render.Dialect, log *slog.Logger) *Compiler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Compiler{
		dialect:    d,
		caps:       d.Capabilities(),
		log:        log,
		quoteCache: map[string]string{},
	}
}

// Capabilities exposes the dialect's feature set for callers that gate DDL
// shapes on it.
func (c *Compiler) Capabilities() render.Capabilities { return c.caps }

// Dialect returns the dialect this compiler lowers for.
func (c *Compiler) Dialect() render.Dialect { return c.dialect }

// Quote quotes an identifier, caching per-compiler since the same names
// recur many times in one statement.
func (c *Compiler) Quote(name string) string {
	if q, ok := c.quoteCache[name]; ok {
		return q
	}
	q := c.dialect.QuoteName(name)
	c.quoteCache[name] = q
	return q
}

// Vendor reports the dialect name for vendor-specific expression renderings.
func (c *Compiler) Vendor() string { return c.dialect.Name() }

// Compile renders an expression, preferring its vendor override when the
// node carries one for this dialect.
func (c *Compiler) Compile(e types.Expression) (string, []any, error) {
	if v, ok := e.(types.VendorExpression); ok {
		s, p, handled, err := v.VendorSQL(c.dialect.Name(), c)
		if err != nil {
			return "", nil, err
		}
		if handled {
			return s, p, nil
		}
	}
	return e.SQL(c)
}

// CompileQuery lowers a subquery with neutral placeholders; the enclosing
// statement's rebind pass numbers them.
func (c *Compiler) CompileQuery(q *types.Query) (string, []any, error) {
	if c.depth >= maxSubqueryDepth {
		return "", nil, render.NewValueError("subquery nesting exceeds depth %d", maxSubqueryDepth)
	}
	sub := New(c.dialect, c.log)
	sub.depth = c.depth + 1
	w := q.Clone()
	w.Subquery = true
	stmt, err := sub.selectSQL(w, Options{})
	if err != nil {
		return "", nil, err
	}
	return stmt.SQL, stmt.Params, nil
}

// selectEntry is one resolved SELECT-list item.
type selectEntry struct {
	expr  types.Expression
	alias string
}

// orderEntry is one rendered ORDER BY item. key is the rendered expression
// with the direction stripped, used for de-duplication.
type orderEntry struct {
	sql    string
	params []any
	key    string
	expr   types.Expression // inner expression, nil for alias references
	isRef  bool
}

// Select compiles a SELECT statement and rebinds placeholders to the
// dialect's parameter style.
func (c *Compiler) Select(q *types.Query, opts Options) (Statement, error) {
	stmt, err := c.selectSQL(q.Clone(), opts)
	if err != nil {
		return Statement{}, err
	}
	stmt.SQL = render.Rebind(c.caps.BindStyle, stmt.SQL)
	c.log.Debug("compiled select", "table", q.Table, "sql", stmt.SQL)
	return stmt, nil
}

// SelectWithInfo compiles a SELECT and also returns the select-list column
// layout for row decoding of eager-loaded relations.
func (c *Compiler) SelectWithInfo(q *types.Query, opts Options) (Statement, []KlassInfo, error) {
	w := q.Clone()
	stmt, infos, err := c.selectSQLInfo(w, opts)
	if err != nil {
		return Statement{}, nil, err
	}
	stmt.SQL = render.Rebind(c.caps.BindStyle, stmt.SQL)
	return stmt, infos, nil
}

func (c *Compiler) selectSQL(w *types.Query, opts Options) (Statement, error) {
	stmt, _, err := c.selectSQLInfo(w, opts)
	return stmt, err
}

// selectSQLInfo runs the SELECT pipeline. Step order matters: each step can
// add joins, and the FROM clause is rendered from the final join set.
func (c *Compiler) selectSQLInfo(w *types.Query, opts Options) (Statement, []KlassInfo, error) {
	// Resolve the filter trees first so their joins exist before the
	// select list is built.
	var whereRes, havingRes types.Expression
	var err error
	if w.Where != nil {
		whereRes, err = w.Where.Resolve(w, types.ResolveOptions{AllowJoins: true})
		if err != nil {
			return Statement{}, nil, err
		}
	}
	if w.Having != nil {
		havingRes, err = w.Having.Resolve(w, types.ResolveOptions{AllowJoins: true})
		if err != nil {
			return Statement{}, nil, err
		}
	}

	entries, infos, err := c.buildSelect(w)
	if err != nil {
		return Statement{}, nil, err
	}

	orderEntries, err := c.buildOrderBy(w, entries)
	if err != nil {
		return Statement{}, nil, err
	}

	// DISTINCT requires every ORDER BY expression to appear in the select
	// list; missing ones are appended unaliased.
	if w.Distinct && len(w.DistinctFields) == 0 {
		entries, err = c.injectOrderedSelects(entries, orderEntries)
		if err != nil {
			return Statement{}, nil, err
		}
	}

	groupExprs, err := c.buildGroupBy(w, entries, havingRes, orderEntries)
	if err != nil {
		return Statement{}, nil, err
	}

	// Assembly. Parameters are appended strictly in clause output order so
	// the final rebind pass numbers them correctly.
	var sb strings.Builder
	var params []any

	sb.WriteString("SELECT ")
	if w.Distinct {
		if len(w.DistinctFields) > 0 {
			if !c.caps.DistinctOnFields {
				return Statement{}, nil, render.NewUnsupportedFeatureError(c.dialect.Name(), "DISTINCT ON (fields)")
			}
			sb.WriteString("DISTINCT ON (")
			for i, f := range w.DistinctFields {
				if i > 0 {
					sb.WriteString(", ")
				}
				alias, col, _, err := w.ResolvePath(f, true)
				if err != nil {
					return Statement{}, nil, err
				}
				sb.WriteString(c.Quote(alias) + "." + c.Quote(col))
			}
			sb.WriteString(") ")
		} else {
			sb.WriteString("DISTINCT ")
		}
	}
	for i, e := range entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		s, p, err := c.Compile(e.expr)
		if err != nil {
			return Statement{}, nil, err
		}
		sb.WriteString(s)
		if e.alias != "" {
			sb.WriteString(" AS ")
			sb.WriteString(c.Quote(e.alias))
		}
		params = append(params, p...)
	}

	sb.WriteString(" FROM ")
	sb.WriteString(c.Quote(w.Table))
	for _, j := range w.ActiveJoins() {
		sb.WriteString(" ")
		sb.WriteString(j.JoinType())
		sb.WriteString(" ")
		sb.WriteString(c.Quote(j.Table))
		sb.WriteString(" ")
		sb.WriteString(c.Quote(j.Alias))
		sb.WriteString(" ON (")
		sb.WriteString(c.Quote(j.ParentAlias) + "." + c.Quote(j.ParentColumn))
		sb.WriteString(" = ")
		sb.WriteString(c.Quote(j.Alias) + "." + c.Quote(j.Column))
		sb.WriteString(")")
	}

	if whereRes != nil {
		s, p, err := c.Compile(whereRes)
		if err != nil {
			// A provably empty filter empties the whole statement.
			return Statement{}, nil, err
		}
		if s != "" {
			sb.WriteString(" WHERE ")
			sb.WriteString(s)
			params = append(params, p...)
		}
	}

	if len(groupExprs) > 0 {
		sb.WriteString(" GROUP BY ")
		for i, g := range groupExprs {
			if i > 0 {
				sb.WriteString(", ")
			}
			s, p, err := c.Compile(g)
			if err != nil {
				return Statement{}, nil, err
			}
			sb.WriteString(s)
			params = append(params, p...)
		}
	}

	if havingRes != nil {
		s, p, err := c.Compile(havingRes)
		if err != nil {
			return Statement{}, nil, err
		}
		if s != "" {
			sb.WriteString(" HAVING ")
			sb.WriteString(s)
			params = append(params, p...)
		}
	}

	hasOrder := len(orderEntries) > 0
	if hasOrder {
		sb.WriteString(" ORDER BY ")
		for i, o := range orderEntries {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(o.sql)
			params = append(params, o.params...)
		}
	}

	if w.Limit != nil || w.Offset != nil {
		switch c.caps.LimitStyle {
		case render.OffsetFetch:
			if !hasOrder && c.caps.PaginationRequiresOrder {
				sb.WriteString(" ORDER BY (SELECT NULL)")
			}
			off := 0
			if w.Offset != nil {
				off = *w.Offset
			}
			fmt.Fprintf(&sb, " OFFSET %d ROWS", off)
			if w.Limit != nil {
				fmt.Fprintf(&sb, " FETCH FIRST %d ROWS ONLY", *w.Limit)
			}
		default:
			if w.Limit != nil {
				fmt.Fprintf(&sb, " LIMIT %d", *w.Limit)
			}
			if w.Offset != nil {
				fmt.Fprintf(&sb, " OFFSET %d", *w.Offset)
			}
		}
	}

	if w.ForUpdate && !w.Subquery {
		if c.caps.RowLocking == render.RowLockingNone {
			return Statement{}, nil, render.NewUnsupportedFeatureError(c.dialect.Name(), "SELECT FOR UPDATE")
		}
		if !opts.InTransaction {
			return Statement{}, nil, render.TransactionRequiredError{Op: "select_for_update"}
		}
		sb.WriteString(" FOR UPDATE")
		if w.NoWait {
			if !c.caps.LockNowait {
				return Statement{}, nil, render.NewUnsupportedFeatureError(c.dialect.Name(), "SELECT FOR UPDATE NOWAIT")
			}
			sb.WriteString(" NOWAIT")
		}
	}

	return Statement{SQL: sb.String(), Params: params}, infos, nil
}

// buildSelect assembles the select list in its required order: extra raw
// columns, base model columns (or the explicit values selection), eagerly
// loaded related columns, then annotations.
func (c *Compiler) buildSelect(w *types.Query) ([]selectEntry, []KlassInfo, error) {
	var entries []selectEntry

	for _, e := range w.Extra {
		entries = append(entries, selectEntry{
			expr:  &types.Raw{SQLText: e.SQL, Params: append([]any(nil), e.Params...)},
			alias: e.Alias,
		})
	}

	var infos []KlassInfo
	if len(w.ValuesSelect) > 0 {
		for _, path := range w.ValuesSelect {
			alias, col, kind, err := w.ResolvePath(path, true)
			if err != nil {
				return nil, nil, err
			}
			w.NoteAlias(alias)
			entries = append(entries, selectEntry{expr: &types.Col{Table: alias, Name: col, Kind: kind}})
		}
	} else {
		base := KlassInfo{Table: w.Table, Alias: w.Table, Parent: -1, Offset: len(entries)}
		for _, col := range w.Meta.Columns(w.Table) {
			w.NoteAlias(w.Table)
			entries = append(entries, selectEntry{expr: &types.Col{Table: w.Table, Name: col.Name, Kind: col.Kind}})
			base.Columns = append(base.Columns, col)
		}
		infos = append(infos, base)

		related, relInfos, err := relatedSelections(w, len(entries), len(infos))
		if err != nil {
			return nil, nil, err
		}
		entries = append(entries, related...)
		infos = append(infos, relInfos...)
	}

	for _, a := range w.Annotations {
		res, err := a.Expr.Resolve(w, types.ResolveOptions{AllowJoins: true})
		if err != nil {
			return nil, nil, err
		}
		entries = append(entries, selectEntry{expr: res, alias: a.Alias})
	}

	return entries, infos, nil
}

// buildOrderBy resolves ordering terms and de-duplicates them by rendered
// SQL with the direction stripped, keeping the first-seen direction.
func (c *Compiler) buildOrderBy(w *types.Query, entries []selectEntry) ([]orderEntry, error) {
	var out []orderEntry
	seen := map[string]bool{}

	for _, term := range w.Order {
		var ord *types.Ordering
		isRef := false

		switch {
		case term.Expr != nil:
			if o, ok := term.Expr.(*types.Ordering); ok {
				ord = o
			} else {
				ord = &types.Ordering{Expr: term.Expr}
			}
		case term.Field == "?":
			ord = &types.Ordering{Expr: types.Random{}}
		default:
			field := term.Field
			desc := false
			if strings.HasPrefix(field, "-") {
				desc = true
				field = field[1:]
			}
			if ann, ok := w.Annotation(field); ok {
				ord = &types.Ordering{Expr: &types.Ref{Alias: field, Expr: ann.Expr}, Descending: desc}
				isRef = true
			} else if extraAlias(w, field) {
				ord = &types.Ordering{Expr: &types.Ref{Alias: field}, Descending: desc}
				isRef = true
			} else {
				ord = &types.Ordering{Expr: &types.Col{Name: field}, Descending: desc}
			}
		}

		res, err := ord.Resolve(w, types.ResolveOptions{AllowJoins: true})
		if err != nil {
			return nil, err
		}
		resolved := res.(*types.Ordering)

		key, keyParams, err := c.Compile(resolved.Expr)
		if err != nil {
			return nil, err
		}
		dedupe := key + fmt.Sprint(keyParams)
		if seen[dedupe] {
			continue
		}
		seen[dedupe] = true

		sql, params, err := c.Compile(resolved)
		if err != nil {
			return nil, err
		}
		out = append(out, orderEntry{sql: sql, params: params, key: key, expr: resolved.Expr, isRef: isRef})
	}
	return out, nil
}

func extraAlias(w *types.Query, name string) bool {
	for _, e := range w.Extra {
		if e.Alias == name {
			return true
		}
	}
	return false
}

// injectOrderedSelects appends ORDER BY expressions missing from a DISTINCT
// select list.
func (c *Compiler) injectOrderedSelects(entries []selectEntry, order []orderEntry) ([]selectEntry, error) {
	present := map[string]bool{}
	for _, e := range entries {
		s, _, err := c.Compile(e.expr)
		if err != nil {
			return nil, err
		}
		present[s] = true
	}
	for _, o := range order {
		if o.isRef || o.expr == nil {
			continue
		}
		if _, random := o.expr.(types.Random); random {
			continue
		}
		if present[o.key] {
			continue
		}
		present[o.key] = true
		entries = append(entries, selectEntry{expr: o.expr})
	}
	return entries, nil
}

// buildGroupBy derives the GROUP BY expression list per the query's mode,
// then collapses it to the base table's primary key when the dialect
// guarantees functional dependency on the key.
func (c *Compiler) buildGroupBy(w *types.Query, entries []selectEntry, having types.Expression, order []orderEntry) ([]types.Expression, error) {
	switch w.GroupBy {
	case types.GroupByNone:
		return nil, nil
	case types.GroupByExact:
		var out []types.Expression
		for _, g := range w.GroupByExprs {
			res, err := g.Resolve(w, types.ResolveOptions{AllowJoins: true})
			if err != nil {
				return nil, err
			}
			out = append(out, res)
		}
		return out, nil
	}

	var cols []types.Expression
	seen := map[string]bool{}
	add := func(exprs []types.Expression) error {
		for _, e := range exprs {
			s, p, err := c.Compile(e)
			if err != nil {
				return err
			}
			key := s + fmt.Sprint(p)
			if seen[key] {
				continue
			}
			seen[key] = true
			cols = append(cols, e)
		}
		return nil
	}

	for _, e := range entries {
		if err := add(e.expr.GroupByCols()); err != nil {
			return nil, err
		}
	}
	for _, o := range order {
		if o.isRef || o.expr == nil || o.expr.ContainsAggregate() {
			continue
		}
		if err := add(o.expr.GroupByCols()); err != nil {
			return nil, err
		}
	}
	havingKeys := map[string]bool{}
	if having != nil {
		hcols := groupByColsOf(having)
		for _, e := range hcols {
			s, p, err := c.Compile(e)
			if err != nil {
				return nil, err
			}
			havingKeys[s+fmt.Sprint(p)] = true
		}
		if err := add(hcols); err != nil {
			return nil, err
		}
	}

	if c.caps.GroupByPrimaryKey {
		cols = c.collapseGroupBy(w, cols, havingKeys)
	}
	return cols, nil
}

// groupByColsOf collects grouping columns from a predicate tree. Predicates
// report no grouping columns themselves, so their scalar operands are walked
// directly.
func groupByColsOf(e types.Expression) []types.Expression {
	switch n := e.(type) {
	case *types.Cmp:
		return append(groupByColsOf(n.Lhs), groupByColsOf(n.Rhs)...)
	case *types.Group:
		var out []types.Expression
		for _, child := range n.Children {
			out = append(out, groupByColsOf(child)...)
		}
		return out
	case *types.Not:
		return groupByColsOf(n.Inner)
	case *types.IsNull:
		return groupByColsOf(n.Expr)
	case *types.InValues:
		return groupByColsOf(n.Expr)
	case *types.ExistsExpr:
		return nil
	default:
		return e.GroupByCols()
	}
}

// collapseGroupBy reduces the grouping list to the base table's primary key
// plus anything the HAVING clause depends on. Collapse only applies when the
// key is present and every grouped expression is a plain base-table column;
// computed expressions or other tables' columns keep the full list, since
// the key does not functionally determine them.
func (c *Compiler) collapseGroupBy(w *types.Query, cols []types.Expression, havingKeys map[string]bool) []types.Expression {
	pk := w.Meta.PrimaryKey(w.Table)
	pkPresent := false
	for _, e := range cols {
		col, ok := e.(*types.Col)
		if !ok || col.Table != w.Table {
			return cols
		}
		if col.Name == pk {
			pkPresent = true
		}
	}
	if !pkPresent {
		return cols
	}
	var out []types.Expression
	for _, e := range cols {
		col := e.(*types.Col)
		if col.Name == pk {
			out = append(out, e)
			continue
		}
		s, p, err := c.Compile(e)
		if err == nil && havingKeys[s+fmt.Sprint(p)] {
			out = append(out, e)
		}
	}
	return out
}

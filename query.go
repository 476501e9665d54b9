package thibaud

import (
	"github.com/zoobzio/thibaud/compiler"
	"github.com/zoobzio/thibaud/internal/types"
)

// Annotation names a computed select column.
type Annotation = types.Annotation

// Builder provides a fluent API for constructing SELECT queries.
type Builder struct {
	s   *Schema
	q   *types.Query
	err error
}

// Query starts a SELECT builder against a table.
func (s *Schema) Query(table string) *Builder {
	q, err := types.NewQuery(s, table)
	return &Builder{s: s, q: q, err: err}
}

// Q returns the underlying query description.
func (b *Builder) Q() (*Query, error) {
	return b.q, b.err
}

// Where adds filter predicates, ANDed with any existing filter.
func (b *Builder) Where(preds ...Expression) *Builder {
	if len(preds) == 0 || b.err != nil {
		return b
	}
	pred := And(preds...)
	if len(preds) == 1 {
		pred = preds[0]
	}
	if b.q.Where == nil {
		b.q.Where = pred
	} else {
		b.q.Where = And(b.q.Where, pred)
	}
	return b
}

// Having adds grouped-filter predicates.
func (b *Builder) Having(preds ...Expression) *Builder {
	if len(preds) == 0 || b.err != nil {
		return b
	}
	pred := And(preds...)
	if len(preds) == 1 {
		pred = preds[0]
	}
	if b.q.Having == nil {
		b.q.Having = pred
	} else {
		b.q.Having = And(b.q.Having, pred)
	}
	if b.q.GroupBy == types.GroupByNone {
		b.q.GroupBy = types.GroupByAll
	}
	return b
}

// Annotate adds a named computed column. An aggregate annotation switches
// the query into grouped-select mode.
func (b *Builder) Annotate(alias string, e Expression) *Builder {
	if b.err != nil {
		return b
	}
	b.q.Annotations = append(b.q.Annotations, types.Annotation{Alias: alias, Expr: e})
	if e.ContainsAggregate() && b.q.GroupBy == types.GroupByNone {
		b.q.GroupBy = types.GroupByAll
	}
	return b
}

// Values restricts the select list to the named column paths.
func (b *Builder) Values(paths ...string) *Builder {
	b.q.ValuesSelect = append(b.q.ValuesSelect, paths...)
	return b
}

// Extra prepends a raw SQL select fragment under an alias. The fragment is
// trusted input.
func (b *Builder) Extra(alias, sql string, params ...any) *Builder {
	b.q.Extra = append(b.q.Extra, types.ExtraCol{Alias: alias, SQL: sql, Params: params})
	return b
}

// OrderBy adds field-path ordering terms: "name", "-name" for descending,
// "?" for random order. Annotation and extra aliases are recognized.
func (b *Builder) OrderBy(fields ...string) *Builder {
	for _, f := range fields {
		b.q.Order = append(b.q.Order, types.OrderTerm{Field: f})
	}
	return b
}

// OrderByExpr adds expression ordering terms; wrap with Asc/Desc for an
// explicit direction.
func (b *Builder) OrderByExpr(exprs ...Expression) *Builder {
	for _, e := range exprs {
		b.q.Order = append(b.q.Order, types.OrderTerm{Expr: e})
	}
	return b
}

// GroupBy sets an explicit grouping list.
func (b *Builder) GroupBy(exprs ...Expression) *Builder {
	b.q.GroupBy = types.GroupByExact
	b.q.GroupByExprs = append(b.q.GroupByExprs, exprs...)
	return b
}

// Distinct requests DISTINCT rows.
func (b *Builder) Distinct() *Builder {
	b.q.Distinct = true
	return b
}

// DistinctOn requests DISTINCT ON the named fields; capability-gated.
func (b *Builder) DistinctOn(fields ...string) *Builder {
	b.q.Distinct = true
	b.q.DistinctFields = append(b.q.DistinctFields, fields...)
	return b
}

// Limit caps the row count.
func (b *Builder) Limit(n int) *Builder {
	b.q.Limit = &n
	return b
}

// Offset skips leading rows.
func (b *Builder) Offset(n int) *Builder {
	b.q.Offset = &n
	return b
}

// ForUpdate requests row locks; compilation fails outside a transaction.
func (b *Builder) ForUpdate() *Builder {
	b.q.ForUpdate = true
	return b
}

// NoWait makes the lock request fail immediately instead of blocking.
func (b *Builder) NoWait() *Builder {
	b.q.NoWait = true
	return b
}

// SelectRelated eagerly loads the named relation paths alongside the base
// row.
func (b *Builder) SelectRelated(paths ...string) *Builder {
	b.q.SelectRelated = append(b.q.SelectRelated, paths...)
	return b
}

// SelectRelatedAll eagerly loads every reachable relation to a bounded
// depth.
func (b *Builder) SelectRelatedAll() *Builder {
	b.q.SelectRelatedAll = true
	return b
}

// SQL compiles the SELECT for a dialect.
func (b *Builder) SQL(d Dialect) (Statement, error) {
	return b.Compile(d, compiler.Options{})
}

// Compile compiles the SELECT with explicit execution options.
func (b *Builder) Compile(d Dialect, opts compiler.Options) (Statement, error) {
	if b.err != nil {
		return Statement{}, b.err
	}
	return compiler.New(d, nil).Select(b.q, opts)
}

// Aggregate compiles SELECT <aggregates> over the query as a subquery.
func (b *Builder) Aggregate(d Dialect, aggs ...Annotation) (Statement, error) {
	if b.err != nil {
		return Statement{}, b.err
	}
	return compiler.New(d, nil).Aggregate(b.q, aggs)
}

// Count compiles a COUNT(*) aggregate over the query.
func (b *Builder) Count(d Dialect) (Statement, error) {
	if b.err != nil {
		return Statement{}, b.err
	}
	return compiler.New(d, nil).Count(b.q)
}

// ---------------------------------------------------------------------------
// INSERT

// InsertBuilder accumulates rows for an INSERT.
type InsertBuilder struct {
	q   *types.Query
	err error
}

// Insert starts an INSERT builder against a table.
func (s *Schema) Insert(table string) *InsertBuilder {
	q, err := types.NewQuery(s, table)
	return &InsertBuilder{q: q, err: err}
}

// Columns declares the inserted columns; every row must match its length.
func (ib *InsertBuilder) Columns(cols ...string) *InsertBuilder {
	ib.q.InsertColumns = cols
	return ib
}

// Row appends one row of values; plain values become parameters,
// expressions are compiled in place.
func (ib *InsertBuilder) Row(values ...any) *InsertBuilder {
	row := make([]Expression, len(values))
	for i, v := range values {
		row[i] = asExpr(v)
	}
	ib.q.InsertRows = append(ib.q.InsertRows, row)
	return ib
}

// ReturnID requests the generated key back from the insert, forcing one
// statement per row.
func (ib *InsertBuilder) ReturnID() *InsertBuilder {
	ib.q.ReturnID = true
	return ib
}

// SQL compiles the insert into one or more statements.
func (ib *InsertBuilder) SQL(d Dialect) ([]Statement, error) {
	if ib.err != nil {
		return nil, ib.err
	}
	return compiler.New(d, nil).Insert(ib.q)
}

// ---------------------------------------------------------------------------
// UPDATE

// UpdateBuilder accumulates assignments for an UPDATE.
type UpdateBuilder struct {
	q   *types.Query
	err error
}

// Update starts an UPDATE builder against a table.
func (s *Schema) Update(table string) *UpdateBuilder {
	q, err := types.NewQuery(s, table)
	return &UpdateBuilder{q: q, err: err}
}

// Set assigns a column. A dotted column path ("author.name") queues a
// related-table update, which forces the keyed execution plan.
func (ub *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	ub.q.Updates = append(ub.q.Updates, types.UpdateEntry{Column: column, Value: asExpr(v)})
	return ub
}

// Where adds filter predicates.
func (ub *UpdateBuilder) Where(preds ...Expression) *UpdateBuilder {
	if len(preds) == 0 || ub.err != nil {
		return ub
	}
	pred := And(preds...)
	if len(preds) == 1 {
		pred = preds[0]
	}
	if ub.q.Where == nil {
		ub.q.Where = pred
	} else {
		ub.q.Where = And(ub.q.Where, pred)
	}
	return ub
}

// Plan compiles the update into its execution plan.
func (ub *UpdateBuilder) Plan(d Dialect) (compiler.UpdatePlan, error) {
	if ub.err != nil {
		return compiler.UpdatePlan{}, ub.err
	}
	return compiler.New(d, nil).Update(ub.q)
}

// ---------------------------------------------------------------------------
// DELETE

// DeleteBuilder accumulates the filter for a DELETE.
type DeleteBuilder struct {
	q   *types.Query
	err error
}

// Delete starts a DELETE builder against a table.
func (s *Schema) Delete(table string) *DeleteBuilder {
	q, err := types.NewQuery(s, table)
	return &DeleteBuilder{q: q, err: err}
}

// Where adds filter predicates. Predicates must stay on the target table;
// a filter that joins another table panics at compile time.
func (db *DeleteBuilder) Where(preds ...Expression) *DeleteBuilder {
	if len(preds) == 0 || db.err != nil {
		return db
	}
	pred := And(preds...)
	if len(preds) == 1 {
		pred = preds[0]
	}
	if db.q.Where == nil {
		db.q.Where = pred
	} else {
		db.q.Where = And(db.q.Where, pred)
	}
	return db
}

// SQL compiles the delete.
func (db *DeleteBuilder) SQL(d Dialect) (Statement, error) {
	if db.err != nil {
		return Statement{}, db.err
	}
	return compiler.New(d, nil).Delete(db.q)
}

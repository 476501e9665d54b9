package types

import (
	"fmt"
	"strings"

	"github.com/zoobzio/thibaud/internal/render"
)

// GroupByMode states how the GROUP BY clause is derived.
type GroupByMode int

const (
	// GroupByNone emits no GROUP BY clause.
	GroupByNone GroupByMode = iota
	// GroupByAll infers the clause from the non-aggregate select columns.
	GroupByAll
	// GroupByExact emits exactly the expressions in GroupByExprs.
	GroupByExact
)

// Join records one table joined into the query. Nullable joins render as
// LEFT OUTER JOIN so missing related rows do not drop base rows.
type Join struct {
	Alias        string
	Table        string
	ParentAlias  string
	ParentColumn string
	Column       string
	Nullable     bool
}

// JoinType is the SQL join keyword for this join.
func (j Join) JoinType() string {
	if j.Nullable {
		return "LEFT OUTER JOIN"
	}
	return "INNER JOIN"
}

// OrderTerm is one ORDER BY entry: either a field path string, possibly
// prefixed with - for descending or the literal "?" for random order, or a
// full expression.
type OrderTerm struct {
	Field string
	Expr  Expression
}

// Annotation is a named computed select column. Order is preserved so the
// select list is deterministic.
type Annotation struct {
	Alias string
	Expr  Expression
}

// ExtraCol is a caller-supplied raw select fragment with its own alias.
type ExtraCol struct {
	Alias  string
	SQL    string
	Params []any
}

// UpdateEntry assigns one column in an UPDATE statement.
type UpdateEntry struct {
	Column string
	Value  Expression
}

// Query is the mutable description of one statement against one base table.
// The compiler consumes it read-mostly: resolution passes note alias usage
// through the refcount map, which trial passes snapshot and restore.
type Query struct {
	Meta  Meta
	Table string

	joins    []Join
	aliasMap map[string]string
	aliasRef map[string]int

	Where  Expression
	Having Expression

	GroupBy      GroupByMode
	GroupByExprs []Expression

	Order        []OrderTerm
	Annotations  []Annotation
	ValuesSelect []string
	Extra        []ExtraCol

	Distinct       bool
	DistinctFields []string

	Limit  *int
	Offset *int

	ForUpdate bool
	NoWait    bool

	SelectRelated    []string
	SelectRelatedAll bool

	InsertColumns []string
	InsertRows    [][]Expression
	ReturnID      bool

	Updates []UpdateEntry

	// Subquery suppresses statement-level clauses that are illegal inside
	// a parenthesized subselect on some dialects.
	Subquery bool
}

// NewQuery starts a query against a base table. The base table is its own
// alias; joined tables get T2, T3, ... in join order.
func NewQuery(meta Meta, table string) (*Query, error) {
	if !meta.HasTable(table) {
		return nil, render.FieldError{Name: table, Hint: "unknown table"}
	}
	return &Query{
		Meta:     meta,
		Table:    table,
		aliasMap: map[string]string{table: table},
		aliasRef: map[string]int{},
	}, nil
}

// Joins returns the join list in creation order.
func (q *Query) Joins() []Join { return q.joins }

// TableForAlias maps an alias back to the table it addresses.
func (q *Query) TableForAlias(alias string) string {
	if t, ok := q.aliasMap[alias]; ok {
		return t
	}
	return alias
}

// NoteAlias records one use of an alias by a resolved expression. Unused
// join aliases are pruned from the FROM clause at render time.
func (q *Query) NoteAlias(alias string) {
	q.aliasRef[alias]++
}

// AliasRefs snapshots the refcount map so a trial resolution pass can be
// rolled back by restoring the snapshot.
func (q *Query) AliasRefs() map[string]int {
	cp := make(map[string]int, len(q.aliasRef))
	for k, v := range q.aliasRef {
		cp[k] = v
	}
	return cp
}

// SetAliasRefs replaces the refcount map, committing or rolling back a
// snapshot taken with AliasRefs.
func (q *Query) SetAliasRefs(refs map[string]int) {
	q.aliasRef = refs
}

// RefCount reports how many resolved expressions use an alias.
func (q *Query) RefCount(alias string) int { return q.aliasRef[alias] }

// ActiveJoins returns the joins whose alias is referenced at least once,
// preserving creation order. A join is also kept alive transitively when a
// later active join hangs off it.
func (q *Query) ActiveJoins() []Join {
	needed := make(map[string]bool, len(q.aliasRef))
	for a, n := range q.aliasRef {
		if n > 0 {
			needed[a] = true
		}
	}
	// Walk joins in reverse so child requirements propagate to parents.
	for i := len(q.joins) - 1; i >= 0; i-- {
		j := q.joins[i]
		if needed[j.Alias] {
			needed[j.ParentAlias] = true
		}
	}
	var active []Join
	for _, j := range q.joins {
		if needed[j.Alias] {
			active = append(active, j)
		}
	}
	return active
}

// UsesMultipleTables reports whether any join alias is referenced, which
// rules out single-table statements such as DELETE.
func (q *Query) UsesMultipleTables() bool {
	for _, j := range q.joins {
		if q.aliasRef[j.Alias] > 0 {
			return true
		}
	}
	return false
}

// JoinFor ensures joins exist for a dotted relation path from the base
// table and returns the final alias. Existing joins for the same edge are
// reused.
func (q *Query) JoinFor(path string) (string, error) {
	alias := q.Table
	for _, seg := range strings.Split(path, ".") {
		a, err := q.joinFrom(alias, seg)
		if err != nil {
			return "", err
		}
		alias = a
	}
	return alias, nil
}

func (q *Query) joinFrom(parentAlias, relation string) (string, error) {
	parentTable := q.TableForAlias(parentAlias)
	rel, ok := q.Meta.Relation(parentTable, relation)
	if !ok {
		return "", render.FieldError{
			Name: relation,
			Hint: fmt.Sprintf("table %q has no relation by that name", parentTable),
		}
	}
	for _, j := range q.joins {
		if j.ParentAlias == parentAlias && j.ParentColumn == rel.Column && j.Table == rel.Table {
			return j.Alias, nil
		}
	}
	alias := fmt.Sprintf("T%d", len(q.joins)+2)
	j := Join{
		Alias:        alias,
		Table:        rel.Table,
		ParentAlias:  parentAlias,
		ParentColumn: rel.Column,
		Column:       q.Meta.PrimaryKey(rel.Table),
		Nullable:     rel.Nullable,
	}
	q.joins = append(q.joins, j)
	q.aliasMap[alias] = rel.Table
	return alias, nil
}

// ResolvePath walks a dotted field path from the base table, creating joins
// for each relation hop, and returns the final alias, column and kind. A
// trailing relation name resolves to its foreign-key column.
func (q *Query) ResolvePath(path string, allowJoins bool) (alias, column string, kind Kind, err error) {
	segments := strings.Split(path, ".")
	alias = q.Table
	for _, seg := range segments[:len(segments)-1] {
		if !allowJoins {
			return "", "", KindUnknown, render.FieldError{Name: path, Hint: "joins are not permitted in this context"}
		}
		alias, err = q.joinFrom(alias, seg)
		if err != nil {
			return "", "", KindUnknown, err
		}
	}

	last := segments[len(segments)-1]
	table := q.TableForAlias(alias)
	if c, ok := q.Meta.Column(table, last); ok {
		return alias, c.Name, c.Kind, nil
	}
	if rel, ok := q.Meta.Relation(table, last); ok {
		// e.g. "author" alone addresses the foreign-key column.
		if c, ok := q.Meta.Column(table, rel.Column); ok {
			return alias, c.Name, c.Kind, nil
		}
	}
	return "", "", KindUnknown, render.FieldError{
		Name: path,
		Hint: fmt.Sprintf("no column %q on table %q", last, table),
	}
}

// Annotation returns the named annotation, if present.
func (q *Query) Annotation(alias string) (Annotation, bool) {
	for _, a := range q.Annotations {
		if a.Alias == alias {
			return a, true
		}
	}
	return Annotation{}, false
}

// HasAggregateAnnotations reports whether any annotation aggregates, which
// forces grouped-select treatment.
func (q *Query) HasAggregateAnnotations() bool {
	for _, a := range q.Annotations {
		if a.Expr.ContainsAggregate() {
			return true
		}
	}
	return false
}

// Clone deep-copies the query, including joins, refcounts and expression
// trees, so speculative compilation never disturbs the original.
func (q *Query) Clone() *Query {
	cp := &Query{
		Meta:             q.Meta,
		Table:            q.Table,
		GroupBy:          q.GroupBy,
		Distinct:         q.Distinct,
		ForUpdate:        q.ForUpdate,
		NoWait:           q.NoWait,
		ReturnID:         q.ReturnID,
		Subquery:         q.Subquery,
		SelectRelatedAll: q.SelectRelatedAll,
	}
	cp.joins = append([]Join(nil), q.joins...)
	cp.aliasMap = make(map[string]string, len(q.aliasMap))
	for k, v := range q.aliasMap {
		cp.aliasMap[k] = v
	}
	cp.aliasRef = make(map[string]int, len(q.aliasRef))
	for k, v := range q.aliasRef {
		cp.aliasRef[k] = v
	}
	if q.Where != nil {
		cp.Where = q.Where.Clone()
	}
	if q.Having != nil {
		cp.Having = q.Having.Clone()
	}
	cp.GroupByExprs = cloneExprs(q.GroupByExprs)
	cp.Order = make([]OrderTerm, len(q.Order))
	for i, t := range q.Order {
		cp.Order[i] = OrderTerm{Field: t.Field}
		if t.Expr != nil {
			cp.Order[i].Expr = t.Expr.Clone()
		}
	}
	cp.Annotations = make([]Annotation, len(q.Annotations))
	for i, a := range q.Annotations {
		cp.Annotations[i] = Annotation{Alias: a.Alias, Expr: a.Expr.Clone()}
	}
	cp.ValuesSelect = append([]string(nil), q.ValuesSelect...)
	cp.Extra = make([]ExtraCol, len(q.Extra))
	for i, e := range q.Extra {
		cp.Extra[i] = ExtraCol{Alias: e.Alias, SQL: e.SQL, Params: append([]any(nil), e.Params...)}
	}
	cp.DistinctFields = append([]string(nil), q.DistinctFields...)
	if q.Limit != nil {
		n := *q.Limit
		cp.Limit = &n
	}
	if q.Offset != nil {
		n := *q.Offset
		cp.Offset = &n
	}
	cp.SelectRelated = append([]string(nil), q.SelectRelated...)
	cp.InsertColumns = append([]string(nil), q.InsertColumns...)
	cp.InsertRows = make([][]Expression, len(q.InsertRows))
	for i, row := range q.InsertRows {
		cp.InsertRows[i] = cloneExprs(row)
	}
	cp.Updates = make([]UpdateEntry, len(q.Updates))
	for i, u := range q.Updates {
		cp.Updates[i] = UpdateEntry{Column: u.Column, Value: u.Value.Clone()}
	}
	return cp
}

func cloneExprs(in []Expression) []Expression {
	if in == nil {
		return nil
	}
	out := make([]Expression, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}

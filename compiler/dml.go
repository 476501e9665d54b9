package compiler

import (
	"fmt"
	"strings"

	"github.com/zoobzio/thibaud/internal/render"
	"github.com/zoobzio/thibaud/internal/types"
)

// Insert compiles the query's insert request. Three shapes are possible:
// a single statement carrying the dialect's returning fragment when the
// generated key is wanted, one bulk statement when the dialect can take
// multiple VALUES tuples, or one statement per row otherwise.
func (c *Compiler) Insert(q *types.Query) ([]Statement, error) {
	w := q.Clone()
	if len(w.InsertColumns) == 0 || len(w.InsertRows) == 0 {
		return nil, render.NewValueError("insert requires columns and at least one row")
	}
	for _, row := range w.InsertRows {
		if len(row) != len(w.InsertColumns) {
			return nil, render.NewValueError("insert row has %d values for %d columns", len(row), len(w.InsertColumns))
		}
	}

	var head strings.Builder
	head.WriteString("INSERT INTO ")
	head.WriteString(c.Quote(w.Table))
	head.WriteString(" (")
	for i, col := range w.InsertColumns {
		if i > 0 {
			head.WriteString(", ")
		}
		head.WriteString(c.Quote(col))
	}
	head.WriteString(") VALUES ")

	renderRow := func(row []types.Expression) (string, []any, error) {
		var sb strings.Builder
		var params []any
		sb.WriteByte('(')
		for i, v := range row {
			if i > 0 {
				sb.WriteString(", ")
			}
			res, err := v.Resolve(w, types.ResolveOptions{ForSave: true})
			if err != nil {
				return "", nil, err
			}
			if res.ContainsAggregate() {
				return "", nil, render.NewValueError("aggregate functions are not allowed in insert values")
			}
			s, p, err := c.Compile(res)
			if err != nil {
				return "", nil, err
			}
			sb.WriteString(s)
			params = append(params, p...)
		}
		sb.WriteByte(')')
		return sb.String(), params, nil
	}

	returning := ""
	if w.ReturnID && c.caps.ReturningOnInsert {
		returning = " " + fmt.Sprintf(c.caps.ReturningFormat, c.Quote(w.Meta.PrimaryKey(w.Table)))
	}

	// Key return forces one statement per row; drivers hand back exactly
	// one generated key per execution.
	if returning != "" || !c.caps.BulkInsert {
		stmts := make([]Statement, 0, len(w.InsertRows))
		for _, row := range w.InsertRows {
			tuple, params, err := renderRow(row)
			if err != nil {
				return nil, err
			}
			sql := render.Rebind(c.caps.BindStyle, head.String()+tuple+returning)
			stmts = append(stmts, Statement{SQL: sql, Params: params})
		}
		c.log.Debug("compiled insert", "table", w.Table, "statements", len(stmts))
		return stmts, nil
	}

	var sb strings.Builder
	sb.WriteString(head.String())
	var params []any
	for i, row := range w.InsertRows {
		if i > 0 {
			sb.WriteString(", ")
		}
		tuple, p, err := renderRow(row)
		if err != nil {
			return nil, err
		}
		sb.WriteString(tuple)
		params = append(params, p...)
	}
	c.log.Debug("compiled insert", "table", w.Table, "rows", len(w.InsertRows))
	return []Statement{{SQL: render.Rebind(c.caps.BindStyle, sb.String()), Params: params}}, nil
}

// UpdatePlan is the execution recipe for an UPDATE. When the filter spans
// joined tables, or related-table assignments are queued, the affected key
// set must be pinned by PreSelect before mutating; WithKeys then builds the
// statements over those keys. A plan without PreSelect runs Statements
// directly.
type UpdatePlan struct {
	PreSelect  *Statement
	Statements []Statement
	WithKeys   func(keys []any) []Statement
}

// Update compiles the query's update request.
func (c *Compiler) Update(q *types.Query) (UpdatePlan, error) {
	w := q.Clone()
	if len(w.Updates) == 0 {
		return UpdatePlan{}, render.NewValueError("update requires at least one assignment")
	}

	// Assignments addressed through a relation mutate the related table
	// and are compiled as separate keyed statements.
	var base []types.UpdateEntry
	related := map[string][]types.UpdateEntry{}
	var relOrder []string
	for _, u := range w.Updates {
		if i := strings.IndexByte(u.Column, '.'); i >= 0 {
			rel := u.Column[:i]
			if _, seen := related[rel]; !seen {
				relOrder = append(relOrder, rel)
			}
			related[rel] = append(related[rel], types.UpdateEntry{Column: u.Column[i+1:], Value: u.Value})
			continue
		}
		base = append(base, u)
	}

	setClause := func(target string, updates []types.UpdateEntry, meta types.Meta) (string, []any, error) {
		var sb strings.Builder
		var params []any
		for i, u := range updates {
			if i > 0 {
				sb.WriteString(", ")
			}
			if _, ok := meta.Column(target, u.Column); !ok {
				return "", nil, render.FieldError{Name: u.Column, Hint: fmt.Sprintf("no column %q on table %q", u.Column, target)}
			}
			res, err := u.Value.Resolve(w, types.ResolveOptions{ForSave: true})
			if err != nil {
				return "", nil, err
			}
			if res.ContainsAggregate() {
				return "", nil, render.NewValueError("aggregate functions are not allowed in update values")
			}
			// Self-referencing columns render unqualified; UPDATE has
			// no alias for its target table.
			s, p, err := c.Compile(unqualify(res))
			if err != nil {
				return "", nil, err
			}
			sb.WriteString(c.Quote(u.Column))
			sb.WriteString(" = ")
			sb.WriteString(s)
			params = append(params, p...)
		}
		return sb.String(), params, nil
	}

	var whereRes types.Expression
	var err error
	if w.Where != nil {
		whereRes, err = w.Where.Resolve(w, types.ResolveOptions{AllowJoins: true})
		if err != nil {
			return UpdatePlan{}, err
		}
	}

	pk := w.Meta.PrimaryKey(w.Table)
	multiTable := w.UsesMultipleTables()

	// Fast path: single-table filter, no related assignments.
	if !multiTable && len(related) == 0 {
		set, setParams, err := setClause(w.Table, base, w.Meta)
		if err != nil {
			return UpdatePlan{}, err
		}
		var sb strings.Builder
		params := setParams
		sb.WriteString("UPDATE ")
		sb.WriteString(c.Quote(w.Table))
		sb.WriteString(" SET ")
		sb.WriteString(set)
		if whereRes != nil {
			s, p, err := c.Compile(unqualify(whereRes))
			if err != nil {
				return UpdatePlan{}, err
			}
			if s != "" {
				sb.WriteString(" WHERE ")
				sb.WriteString(s)
				params = append(params, p...)
			}
		}
		stmt := Statement{SQL: render.Rebind(c.caps.BindStyle, sb.String()), Params: params}
		c.log.Debug("compiled update", "table", w.Table)
		return UpdatePlan{Statements: []Statement{stmt}}, nil
	}

	// Multi-table filter with self-select support and no related
	// assignments can inline the key subquery.
	if len(related) == 0 && c.caps.UpdateSelfSelect {
		sub := q.Clone()
		sub.Updates = nil
		sub.ValuesSelect = []string{pk}
		sub.Order = nil
		sub.Subquery = true
		subSQL, subParams, err := c.CompileQuery(sub)
		if err != nil {
			return UpdatePlan{}, err
		}
		set, setParams, err := setClause(w.Table, base, w.Meta)
		if err != nil {
			return UpdatePlan{}, err
		}
		sql := "UPDATE " + c.Quote(w.Table) + " SET " + set +
			" WHERE " + c.Quote(pk) + " IN (" + subSQL + ")"
		stmt := Statement{SQL: render.Rebind(c.caps.BindStyle, sql), Params: append(setParams, subParams...)}
		return UpdatePlan{Statements: []Statement{stmt}}, nil
	}

	// Slow path: pin the affected primary keys first.
	pre := q.Clone()
	pre.Updates = nil
	pre.ValuesSelect = []string{pk}
	pre.Order = nil
	preStmt, err := c.Select(pre, Options{})
	if err != nil {
		return UpdatePlan{}, err
	}

	type keyedUpdate struct {
		table  string
		keyCol string
		set    string
		params []any
		viaFK  string // base fk column feeding the key subselect, "" for the base table
	}
	var keyed []keyedUpdate

	if len(base) > 0 {
		set, setParams, err := setClause(w.Table, base, w.Meta)
		if err != nil {
			return UpdatePlan{}, err
		}
		keyed = append(keyed, keyedUpdate{table: w.Table, keyCol: pk, set: set, params: setParams})
	}
	for _, relName := range relOrder {
		rel, ok := w.Meta.Relation(w.Table, relName)
		if !ok {
			return UpdatePlan{}, render.FieldError{Name: relName, Hint: fmt.Sprintf("table %q has no relation by that name", w.Table)}
		}
		set, setParams, err := setClause(rel.Table, related[relName], w.Meta)
		if err != nil {
			return UpdatePlan{}, err
		}
		keyed = append(keyed, keyedUpdate{
			table:  rel.Table,
			keyCol: w.Meta.PrimaryKey(rel.Table),
			set:    set,
			params: setParams,
			viaFK:  rel.Column,
		})
	}

	table := w.Table
	plan := UpdatePlan{PreSelect: &preStmt}
	plan.WithKeys = func(keys []any) []Statement {
		if len(keys) == 0 {
			return nil
		}
		holes := strings.Repeat("?, ", len(keys)-1) + "?"
		stmts := make([]Statement, 0, len(keyed))
		for _, ku := range keyed {
			var sb strings.Builder
			sb.WriteString("UPDATE ")
			sb.WriteString(c.Quote(ku.table))
			sb.WriteString(" SET ")
			sb.WriteString(ku.set)
			sb.WriteString(" WHERE ")
			sb.WriteString(c.Quote(ku.keyCol))
			sb.WriteString(" IN (")
			if ku.viaFK != "" {
				sb.WriteString("SELECT ")
				sb.WriteString(c.Quote(ku.viaFK))
				sb.WriteString(" FROM ")
				sb.WriteString(c.Quote(table))
				sb.WriteString(" WHERE ")
				sb.WriteString(c.Quote(pk))
				sb.WriteString(" IN (")
				sb.WriteString(holes)
				sb.WriteString(")")
			} else {
				sb.WriteString(holes)
			}
			sb.WriteString(")")
			stmts = append(stmts, Statement{
				SQL:    render.Rebind(c.caps.BindStyle, sb.String()),
				Params: append(append([]any(nil), ku.params...), keys...),
			})
		}
		return stmts
	}
	return plan, nil
}

// Delete compiles a single-table DELETE. Filters that pull in joined tables
// are a programming error here; multi-table deletes are issued as one call
// per table by the cascade machinery.
func (c *Compiler) Delete(q *types.Query) (Statement, error) {
	w := q.Clone()
	var whereRes types.Expression
	var err error
	if w.Where != nil {
		whereRes, err = w.Where.Resolve(w, types.ResolveOptions{AllowJoins: true})
		if err != nil {
			return Statement{}, err
		}
	}
	if w.UsesMultipleTables() {
		panic("delete: query references more than one table")
	}

	var sb strings.Builder
	var params []any
	sb.WriteString("DELETE FROM ")
	sb.WriteString(c.Quote(w.Table))
	if whereRes != nil {
		s, p, err := c.Compile(unqualify(whereRes))
		if err != nil {
			return Statement{}, err
		}
		if s != "" {
			sb.WriteString(" WHERE ")
			sb.WriteString(s)
			params = append(params, p...)
		}
	}
	c.log.Debug("compiled delete", "table", w.Table)
	return Statement{SQL: render.Rebind(c.caps.BindStyle, sb.String()), Params: params}, nil
}

// unqualify strips table qualifiers from column references, for statements
// whose target table carries no alias.
func unqualify(e types.Expression) types.Expression {
	return types.ReplaceColumns(e, func(c *types.Col) types.Expression {
		return &types.Col{Name: c.Name, Kind: c.Kind}
	})
}

package compiler

import (
	"fmt"
	"strings"

	"github.com/zoobzio/thibaud/internal/render"
	"github.com/zoobzio/thibaud/internal/types"
)

// Aggregate compiles SELECT <aggregates> FROM (<inner>) subquery. Column
// references inside the aggregates are exposed as __colN selections of the
// inner query and cited by alias outside, since the inner aliases are not
// visible through the subquery boundary.
func (c *Compiler) Aggregate(q *types.Query, aggs []types.Annotation) (Statement, error) {
	if len(aggs) == 0 {
		return Statement{}, render.NewValueError("aggregate requires at least one expression")
	}
	// A zero-row slice can never aggregate to anything; skip the round trip.
	if q.Limit != nil && *q.Limit == 0 {
		return Statement{}, render.ErrEmptyResultSet
	}

	inner := q.Clone()
	if inner.Limit == nil && inner.Offset == nil {
		// Ordering inside the wrapped subquery cannot affect the
		// aggregate result.
		inner.Order = nil
	}

	exposed := map[string]string{}
	n := 0
	outer := make([]types.Annotation, 0, len(aggs))
	for _, a := range aggs {
		res, err := a.Expr.Resolve(inner, types.ResolveOptions{AllowJoins: true, Summarize: true})
		if err != nil {
			return Statement{}, err
		}
		if !res.ContainsAggregate() {
			return Statement{}, render.NewValueError("%s is not an aggregate expression", a.Alias)
		}
		rewritten := types.ReplaceColumns(res, func(col *types.Col) types.Expression {
			key := col.Table + "." + col.Name
			alias, ok := exposed[key]
			if !ok {
				n++
				alias = fmt.Sprintf("__col%d", n)
				exposed[key] = alias
				inner.Annotations = append(inner.Annotations, types.Annotation{Alias: alias, Expr: col.Clone()})
			}
			return &types.Ref{Alias: alias, Expr: col.Clone()}
		})
		outer = append(outer, types.Annotation{Alias: a.Alias, Expr: rewritten})
	}

	innerSQL, innerParams, err := c.CompileQuery(inner)
	if err != nil {
		return Statement{}, err
	}

	var sb strings.Builder
	var params []any
	sb.WriteString("SELECT ")
	for i, a := range outer {
		if i > 0 {
			sb.WriteString(", ")
		}
		s, p, err := c.Compile(a.Expr)
		if err != nil {
			return Statement{}, err
		}
		sb.WriteString(s)
		sb.WriteString(" AS ")
		sb.WriteString(c.Quote(a.Alias))
		params = append(params, p...)
	}
	sb.WriteString(" FROM (")
	sb.WriteString(innerSQL)
	sb.WriteString(") ")
	sb.WriteString(c.Quote("subquery"))
	params = append(params, innerParams...)

	c.log.Debug("compiled aggregate", "table", q.Table, "aggregates", len(outer))
	return Statement{SQL: render.Rebind(c.caps.BindStyle, sb.String()), Params: params}, nil
}

// Count is shorthand for aggregating COUNT(*) over the query.
func (c *Compiler) Count(q *types.Query) (Statement, error) {
	return c.Aggregate(q, []types.Annotation{{
		Alias: "__count",
		Expr:  &types.Func{Name: "COUNT", Aggregate: true, Kind: types.KindInt},
	}})
}

package types

import (
	"errors"
	"reflect"
	"strings"

	"github.com/zoobzio/thibaud/internal/render"
)

// Predicate nodes are boolean-valued expressions. They share the Expression
// interface so WHERE and HAVING trees compose with scalar arithmetic, and
// the ones backing check constraints also implement Evaluable.

// Cmp compares two scalar expressions with a binary operator.
type Cmp struct {
	Lhs Expression
	Op  Operator
	Rhs Expression
}

func (c *Cmp) SQL(ctx Context) (string, []any, error) {
	ls, lp, err := ctx.Compile(c.Lhs)
	if err != nil {
		return "", nil, err
	}
	rs, rp, err := ctx.Compile(c.Rhs)
	if err != nil {
		return "", nil, err
	}
	return ls + " " + string(c.Op) + " " + rs, append(lp, rp...), nil
}

func (c *Cmp) Resolve(q *Query, opts ResolveOptions) (Expression, error) {
	lhs, err := c.Lhs.Resolve(q, opts)
	if err != nil {
		return nil, err
	}
	rhs, err := c.Rhs.Resolve(q, opts)
	if err != nil {
		return nil, err
	}
	return &Cmp{Lhs: lhs, Op: c.Op, Rhs: rhs}, nil
}

func (c *Cmp) Output() Kind              { return KindBool }
func (c *Cmp) GroupByCols() []Expression { return nil }
func (c *Cmp) ContainsAggregate() bool {
	return c.Lhs.ContainsAggregate() || c.Rhs.ContainsAggregate()
}
func (c *Cmp) Clone() Expression {
	return &Cmp{Lhs: c.Lhs.Clone(), Op: c.Op, Rhs: c.Rhs.Clone()}
}

func (c *Cmp) Eval(row map[string]any) (bool, error) {
	lv, err := evalScalar(c.Lhs, row)
	if err != nil {
		return false, err
	}
	rv, err := evalScalar(c.Rhs, row)
	if err != nil {
		return false, err
	}
	return compareValues(c.Op, lv, rv)
}

// Group combines child predicates with AND or OR. An empty AND group is
// vacuously true and renders nothing; callers drop it.
type Group struct {
	Op       LogicOperator
	Children []Expression
}

func (g *Group) SQL(ctx Context) (string, []any, error) {
	var parts []string
	var params []any
	empties := 0
	for _, child := range g.Children {
		s, p, err := ctx.Compile(child)
		if err != nil {
			if errors.Is(err, render.ErrEmptyResultSet) {
				if g.Op == AND {
					// One impossible conjunct empties the whole group.
					return "", nil, render.ErrEmptyResultSet
				}
				empties++
				continue
			}
			return "", nil, err
		}
		parts = append(parts, s)
		params = append(params, p...)
	}
	if len(parts) == 0 {
		if empties > 0 {
			return "", nil, render.ErrEmptyResultSet
		}
		return "", nil, nil
	}
	if len(parts) == 1 {
		return parts[0], params, nil
	}
	return "(" + strings.Join(parts, " "+string(g.Op)+" ") + ")", params, nil
}

func (g *Group) Resolve(q *Query, opts ResolveOptions) (Expression, error) {
	cp := &Group{Op: g.Op, Children: make([]Expression, len(g.Children))}
	for i, child := range g.Children {
		r, err := child.Resolve(q, opts)
		if err != nil {
			return nil, err
		}
		cp.Children[i] = r
	}
	return cp, nil
}

func (g *Group) Output() Kind              { return KindBool }
func (g *Group) GroupByCols() []Expression { return nil }
func (g *Group) ContainsAggregate() bool {
	for _, child := range g.Children {
		if child.ContainsAggregate() {
			return true
		}
	}
	return false
}
func (g *Group) Clone() Expression {
	cp := &Group{Op: g.Op, Children: make([]Expression, len(g.Children))}
	for i, child := range g.Children {
		cp.Children[i] = child.Clone()
	}
	return cp
}

func (g *Group) Eval(row map[string]any) (bool, error) {
	for _, child := range g.Children {
		ev, ok := child.(Evaluable)
		if !ok {
			return false, render.NewValueError("predicate %T cannot be checked in memory", child)
		}
		v, err := ev.Eval(row)
		if err != nil {
			return false, err
		}
		if g.Op == AND && !v {
			return false, nil
		}
		if g.Op == OR && v {
			return true, nil
		}
	}
	return g.Op == AND, nil
}

// Not negates a predicate. Negating an impossible condition is vacuously
// true and renders as the constant true predicate.
type Not struct {
	Inner Expression
}

func (n *Not) SQL(ctx Context) (string, []any, error) {
	s, p, err := ctx.Compile(n.Inner)
	if err != nil {
		if errors.Is(err, render.ErrEmptyResultSet) {
			return "1 = 1", nil, nil
		}
		return "", nil, err
	}
	return "NOT (" + s + ")", p, nil
}

func (n *Not) Resolve(q *Query, opts ResolveOptions) (Expression, error) {
	inner, err := n.Inner.Resolve(q, opts)
	if err != nil {
		return nil, err
	}
	return &Not{Inner: inner}, nil
}

func (n *Not) Output() Kind              { return KindBool }
func (n *Not) GroupByCols() []Expression { return nil }
func (n *Not) ContainsAggregate() bool   { return n.Inner.ContainsAggregate() }
func (n *Not) Clone() Expression         { return &Not{Inner: n.Inner.Clone()} }

func (n *Not) Eval(row map[string]any) (bool, error) {
	ev, ok := n.Inner.(Evaluable)
	if !ok {
		return false, render.NewValueError("predicate %T cannot be checked in memory", n.Inner)
	}
	v, err := ev.Eval(row)
	if err != nil {
		return false, err
	}
	return !v, nil
}

// IsNull tests an expression against NULL.
type IsNull struct {
	Expr    Expression
	Negated bool
}

func (i *IsNull) SQL(ctx Context) (string, []any, error) {
	s, p, err := ctx.Compile(i.Expr)
	if err != nil {
		return "", nil, err
	}
	if i.Negated {
		return s + " IS NOT NULL", p, nil
	}
	return s + " IS NULL", p, nil
}

func (i *IsNull) Resolve(q *Query, opts ResolveOptions) (Expression, error) {
	e, err := i.Expr.Resolve(q, opts)
	if err != nil {
		return nil, err
	}
	return &IsNull{Expr: e, Negated: i.Negated}, nil
}

func (i *IsNull) Output() Kind              { return KindBool }
func (i *IsNull) GroupByCols() []Expression { return nil }
func (i *IsNull) ContainsAggregate() bool   { return i.Expr.ContainsAggregate() }
func (i *IsNull) Clone() Expression         { return &IsNull{Expr: i.Expr.Clone(), Negated: i.Negated} }

func (i *IsNull) Eval(row map[string]any) (bool, error) {
	v, err := evalScalar(i.Expr, row)
	if err != nil {
		return false, err
	}
	return (v == nil) != i.Negated, nil
}

// InValues tests membership against a literal list. An empty list can never
// match, which surfaces as the empty-result sentinel so enclosing groups can
// collapse.
type InValues struct {
	Expr   Expression
	Values []Expression
}

func (in *InValues) SQL(ctx Context) (string, []any, error) {
	if len(in.Values) == 0 {
		return "", nil, render.ErrEmptyResultSet
	}
	s, p, err := ctx.Compile(in.Expr)
	if err != nil {
		return "", nil, err
	}
	var sb strings.Builder
	sb.WriteString(s)
	sb.WriteString(" IN (")
	params := p
	for i, v := range in.Values {
		if i > 0 {
			sb.WriteString(", ")
		}
		vs, vp, err := ctx.Compile(v)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(vs)
		params = append(params, vp...)
	}
	sb.WriteByte(')')
	return sb.String(), params, nil
}

func (in *InValues) Resolve(q *Query, opts ResolveOptions) (Expression, error) {
	e, err := in.Expr.Resolve(q, opts)
	if err != nil {
		return nil, err
	}
	cp := &InValues{Expr: e, Values: make([]Expression, len(in.Values))}
	for i, v := range in.Values {
		r, err := v.Resolve(q, opts)
		if err != nil {
			return nil, err
		}
		cp.Values[i] = r
	}
	return cp, nil
}

func (in *InValues) Output() Kind              { return KindBool }
func (in *InValues) GroupByCols() []Expression { return nil }
func (in *InValues) ContainsAggregate() bool   { return in.Expr.ContainsAggregate() }
func (in *InValues) Clone() Expression {
	cp := &InValues{Expr: in.Expr.Clone(), Values: make([]Expression, len(in.Values))}
	for i, v := range in.Values {
		cp.Values[i] = v.Clone()
	}
	return cp
}

func (in *InValues) Eval(row map[string]any) (bool, error) {
	lv, err := evalScalar(in.Expr, row)
	if err != nil {
		return false, err
	}
	for _, v := range in.Values {
		rv, err := evalScalar(v, row)
		if err != nil {
			return false, err
		}
		eq, err := compareValues(EQ, lv, rv)
		if err != nil {
			return false, err
		}
		if eq {
			return true, nil
		}
	}
	return false, nil
}

// ExistsExpr wraps a subquery in EXISTS. A provably empty subquery renders
// as the constant false predicate rather than failing the whole statement.
type ExistsExpr struct {
	Sub     *Query
	Negated bool
}

func (e *ExistsExpr) SQL(ctx Context) (string, []any, error) {
	sub, params, err := ctx.CompileQuery(e.Sub)
	if err != nil {
		if errors.Is(err, render.ErrEmptyResultSet) {
			if e.Negated {
				return "1 = 1", nil, nil
			}
			return "1 = 0", nil, nil
		}
		return "", nil, err
	}
	if e.Negated {
		return "NOT EXISTS (" + sub + ")", params, nil
	}
	return "EXISTS (" + sub + ")", params, nil
}

func (e *ExistsExpr) Resolve(_ *Query, _ ResolveOptions) (Expression, error) {
	return e.Clone(), nil
}

func (e *ExistsExpr) Output() Kind              { return KindBool }
func (e *ExistsExpr) GroupByCols() []Expression { return nil }
func (e *ExistsExpr) ContainsAggregate() bool   { return false }
func (e *ExistsExpr) Clone() Expression {
	return &ExistsExpr{Sub: e.Sub.Clone(), Negated: e.Negated}
}

// ---------------------------------------------------------------------------
// In-memory evaluation helpers

func evalScalar(e Expression, row map[string]any) (any, error) {
	switch n := e.(type) {
	case *Col:
		v, ok := row[n.Name]
		if !ok {
			return nil, render.FieldError{Name: n.Name, Hint: "value not supplied for check"}
		}
		return v, nil
	case *Value:
		return n.V, nil
	default:
		return nil, render.NewValueError("expression %T cannot be checked in memory", e)
	}
}

func compareValues(op Operator, lv, rv any) (bool, error) {
	if lv == nil || rv == nil {
		// SQL three-valued logic: comparisons against NULL are never true.
		return false, nil
	}

	if ls, lok := lv.(string); lok {
		rs, rok := rv.(string)
		if !rok {
			return false, render.NewValueError("cannot compare string with %T", rv)
		}
		return compareOrdered(op, strings.Compare(ls, rs))
	}

	lf, lok := toFloat(lv)
	rf, rok := toFloat(rv)
	if lok && rok {
		switch {
		case lf < rf:
			return compareOrdered(op, -1)
		case lf > rf:
			return compareOrdered(op, 1)
		default:
			return compareOrdered(op, 0)
		}
	}

	switch op {
	case EQ:
		return reflect.DeepEqual(lv, rv), nil
	case NE:
		return !reflect.DeepEqual(lv, rv), nil
	}
	return false, render.NewValueError("cannot order %T against %T", lv, rv)
}

func compareOrdered(op Operator, c int) (bool, error) {
	switch op {
	case EQ:
		return c == 0, nil
	case NE:
		return c != 0, nil
	case GT:
		return c > 0, nil
	case GE:
		return c >= 0, nil
	case LT:
		return c < 0, nil
	case LE:
		return c <= 0, nil
	}
	return false, render.NewValueError("operator %q has no in-memory form", op)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

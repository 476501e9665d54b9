package types

import (
	"reflect"
	"strings"

	"github.com/zoobzio/thibaud/internal/render"
)

// Context is the surface an expression needs to render itself. The compiler
// implements it; expressions stay ignorant of clause assembly and parameter
// numbering (placeholders are always the neutral ?, rebound later).
type Context interface {
	// Quote quotes an identifier for the target dialect.
	Quote(name string) string

	// Vendor identifies the target dialect for vendor-specific renderings.
	Vendor() string

	// Compile renders a child expression, honoring vendor overrides.
	Compile(e Expression) (string, []any, error)

	// CompileQuery lowers a full subquery with the same dialect.
	CompileQuery(q *Query) (string, []any, error)
}

// ResolveOptions tunes an expression-resolution pass.
type ResolveOptions struct {
	// AllowJoins permits column paths that traverse relations, creating
	// joins on the query as a side effect.
	AllowJoins bool

	// Summarize marks resolution inside an aggregate-over-subquery pass,
	// where references to aggregates are legal.
	Summarize bool

	// ForSave marks value preparation for INSERT/UPDATE, where aggregates
	// are rejected outright.
	ForSave bool
}

// Expression is a node in the scalar expression tree. Nodes are frozen once
// handed to a compiler; Resolve returns a bound copy instead of mutating.
type Expression interface {
	// SQL renders the node using neutral ? placeholders.
	SQL(ctx Context) (string, []any, error)

	// Resolve binds the node to a query: column references get table
	// aliases (creating joins when allowed), output kinds are assigned,
	// and illegal aggregate nesting is rejected.
	Resolve(q *Query, opts ResolveOptions) (Expression, error)

	// Output is the node's resolved output kind.
	Output() Kind

	// GroupByCols reports the expressions this node contributes to an
	// inferred GROUP BY. Aggregate-bearing nodes contribute nothing.
	GroupByCols() []Expression

	ContainsAggregate() bool

	// Clone produces a structurally independent deep copy.
	Clone() Expression
}

// VendorExpression is an optional override hook: a node that renders
// differently on a specific dialect implements it and reports ok=false for
// vendors it has no override for, falling back to the default SQL method.
type VendorExpression interface {
	VendorSQL(vendor string, ctx Context) (sql string, params []any, ok bool, err error)
}

// Evaluable is implemented by predicate nodes that can be checked against an
// in-memory row, which is how check constraints validate instances without a
// round trip.
type Evaluable interface {
	Eval(row map[string]any) (bool, error)
}

// Equal reports structural equality of two expression trees.
func Equal(a, b Expression) bool {
	return reflect.DeepEqual(a, b)
}

// ---------------------------------------------------------------------------
// Column reference

// Col is a column reference. Before resolution Name may be a relation path
// ("author.name"); after resolution Table holds the join alias and Kind the
// column's kind.
type Col struct {
	Table string
	Name  string
	Kind  Kind
}

func (c *Col) SQL(ctx Context) (string, []any, error) {
	if c.Table != "" {
		return ctx.Quote(c.Table) + "." + ctx.Quote(c.Name), nil, nil
	}
	return ctx.Quote(c.Name), nil, nil
}

func (c *Col) Resolve(q *Query, opts ResolveOptions) (Expression, error) {
	if c.Table != "" {
		// Already bound; note the alias use and hand back a copy.
		q.NoteAlias(c.Table)
		cp := *c
		return &cp, nil
	}

	// Annotation aliases shadow column names.
	if ann, ok := q.Annotation(c.Name); ok {
		return &Ref{Alias: c.Name, Expr: ann.Expr.Clone()}, nil
	}

	alias, name, kind, err := q.ResolvePath(c.Name, opts.AllowJoins)
	if err != nil {
		return nil, err
	}
	q.NoteAlias(alias)
	return &Col{Table: alias, Name: name, Kind: kind}, nil
}

func (c *Col) Output() Kind               { return c.Kind }
func (c *Col) GroupByCols() []Expression  { return []Expression{c} }
func (c *Col) ContainsAggregate() bool    { return false }
func (c *Col) Clone() Expression          { cp := *c; return &cp }

// ---------------------------------------------------------------------------
// Literal value

// Value is a literal scalar, always passed as a parameter.
type Value struct {
	V    any
	Kind Kind
}

func (v *Value) SQL(_ Context) (string, []any, error) {
	return "?", []any{v.V}, nil
}

func (v *Value) Resolve(_ *Query, _ ResolveOptions) (Expression, error) {
	cp := *v
	if cp.Kind == KindUnknown {
		cp.Kind = kindOfValue(v.V)
	}
	return &cp, nil
}

func (v *Value) Output() Kind              { return v.Kind }
func (v *Value) GroupByCols() []Expression { return nil }
func (v *Value) ContainsAggregate() bool   { return false }
func (v *Value) Clone() Expression         { cp := *v; return &cp }

func kindOfValue(v any) Kind {
	switch v.(type) {
	case bool:
		return KindBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindInt
	case float32, float64:
		return KindFloat
	case string:
		return KindText
	case []byte:
		return KindBytes
	default:
		if _, ok := v.(interface{ Unix() int64 }); ok {
			return KindDateTime
		}
		return KindUnknown
	}
}

// ---------------------------------------------------------------------------
// Function call

// Func is a function call: NAME(arg, arg, ...). Aggregate marks nodes that
// must never contribute to GROUP BY and may not nest inside one another.
type Func struct {
	Name      string
	Args      []Expression
	Kind      Kind // explicit output kind; derived from args when unset
	Aggregate bool
	Distinct  bool
}

func (f *Func) SQL(ctx Context) (string, []any, error) {
	var sb strings.Builder
	var params []any

	sb.WriteString(f.Name)
	sb.WriteByte('(')
	if f.Distinct {
		sb.WriteString("DISTINCT ")
	}
	// Only aggregates take the * shorthand; COUNT() renders COUNT(*),
	// a zero-argument scalar call renders empty parens.
	if len(f.Args) == 0 && f.Aggregate {
		sb.WriteByte('*')
	}
	for i, arg := range f.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		s, p, err := ctx.Compile(arg)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(s)
		params = append(params, p...)
	}
	sb.WriteByte(')')
	return sb.String(), params, nil
}

func (f *Func) Resolve(q *Query, opts ResolveOptions) (Expression, error) {
	cp := &Func{Name: f.Name, Kind: f.Kind, Aggregate: f.Aggregate, Distinct: f.Distinct}
	cp.Args = make([]Expression, len(f.Args))
	for i, arg := range f.Args {
		r, err := arg.Resolve(q, opts)
		if err != nil {
			return nil, err
		}
		if f.Aggregate && !opts.Summarize && r.ContainsAggregate() {
			return nil, render.NewValueError("aggregate functions cannot be nested: %s", f.Name)
		}
		cp.Args[i] = r
	}
	if cp.Kind == KindUnknown {
		cp.Kind = derivedFuncKind(cp)
	}
	return cp, nil
}

func derivedFuncKind(f *Func) Kind {
	switch f.Name {
	case "COUNT":
		return KindInt
	case "AVG":
		return KindFloat
	}
	if len(f.Args) > 0 {
		return f.Args[0].Output()
	}
	return KindUnknown
}

func (f *Func) Output() Kind { return f.Kind }

func (f *Func) GroupByCols() []Expression {
	if f.ContainsAggregate() {
		return nil
	}
	var cols []Expression
	for _, arg := range f.Args {
		cols = append(cols, arg.GroupByCols()...)
	}
	return cols
}

func (f *Func) ContainsAggregate() bool {
	if f.Aggregate {
		return true
	}
	for _, arg := range f.Args {
		if arg.ContainsAggregate() {
			return true
		}
	}
	return false
}

func (f *Func) Clone() Expression {
	cp := &Func{Name: f.Name, Kind: f.Kind, Aggregate: f.Aggregate, Distinct: f.Distinct}
	cp.Args = make([]Expression, len(f.Args))
	for i, arg := range f.Args {
		cp.Args[i] = arg.Clone()
	}
	return cp
}

// ---------------------------------------------------------------------------
// Combined arithmetic

// Combined is a binary arithmetic expression. Resolution consults the
// operand-kind dispatch table, which may replace the node with a specialized
// form (temporal subtraction, duration shift, text concatenation).
type Combined struct {
	Lhs  Expression
	Op   Arith
	Rhs  Expression
	Kind Kind
}

func (c *Combined) SQL(ctx Context) (string, []any, error) {
	ls, lp, err := ctx.Compile(c.Lhs)
	if err != nil {
		return "", nil, err
	}
	rs, rp, err := ctx.Compile(c.Rhs)
	if err != nil {
		return "", nil, err
	}
	return "(" + ls + " " + string(c.Op) + " " + rs + ")", append(lp, rp...), nil
}

func (c *Combined) Resolve(q *Query, opts ResolveOptions) (Expression, error) {
	lhs, err := c.Lhs.Resolve(q, opts)
	if err != nil {
		return nil, err
	}
	rhs, err := c.Rhs.Resolve(q, opts)
	if err != nil {
		return nil, err
	}

	// Literal-first combinations of commutative operators normalize to
	// column-first form so dispatch only needs one kind ordering.
	if _, lhsIsValue := lhs.(*Value); lhsIsValue && c.Op.Commutative() {
		if _, rhsIsValue := rhs.(*Value); !rhsIsValue {
			lhs, rhs = rhs, lhs
		}
	}

	return dispatchCombined(c.Op, lhs, rhs, c.Kind)
}

func (c *Combined) Output() Kind { return c.Kind }

func (c *Combined) GroupByCols() []Expression {
	if c.ContainsAggregate() {
		return nil
	}
	return append(c.Lhs.GroupByCols(), c.Rhs.GroupByCols()...)
}

func (c *Combined) ContainsAggregate() bool {
	return c.Lhs.ContainsAggregate() || c.Rhs.ContainsAggregate()
}

func (c *Combined) Clone() Expression {
	return &Combined{Lhs: c.Lhs.Clone(), Op: c.Op, Rhs: c.Rhs.Clone(), Kind: c.Kind}
}

// ---------------------------------------------------------------------------
// Ordering wrapper

// Ordering wraps an expression with a direction and NULL placement for use
// in ORDER BY and in index definitions.
type Ordering struct {
	Expr       Expression
	Descending bool
	Nulls      NullsPolicy
}

func (o *Ordering) SQL(ctx Context) (string, []any, error) {
	s, p, err := ctx.Compile(o.Expr)
	if err != nil {
		return "", nil, err
	}
	if o.Descending {
		s += " DESC"
	} else {
		s += " ASC"
	}
	if o.Nulls != NullsDefault {
		s += " " + string(o.Nulls)
	}
	return s, p, nil
}

func (o *Ordering) Resolve(q *Query, opts ResolveOptions) (Expression, error) {
	e, err := o.Expr.Resolve(q, opts)
	if err != nil {
		return nil, err
	}
	return &Ordering{Expr: e, Descending: o.Descending, Nulls: o.Nulls}, nil
}

func (o *Ordering) Output() Kind              { return o.Expr.Output() }
func (o *Ordering) GroupByCols() []Expression { return o.Expr.GroupByCols() }
func (o *Ordering) ContainsAggregate() bool   { return o.Expr.ContainsAggregate() }
func (o *Ordering) Clone() Expression {
	return &Ordering{Expr: o.Expr.Clone(), Descending: o.Descending, Nulls: o.Nulls}
}

// ---------------------------------------------------------------------------
// Reference to a select alias

// Ref refers to an expression already present in the SELECT list by its
// alias, so ORDER BY and GROUP BY can cite it without re-emitting it.
type Ref struct {
	Alias string
	Expr  Expression // underlying expression, when known
}

func (r *Ref) SQL(ctx Context) (string, []any, error) {
	return ctx.Quote(r.Alias), nil, nil
}

func (r *Ref) Resolve(_ *Query, _ ResolveOptions) (Expression, error) {
	cp := *r
	return &cp, nil
}

func (r *Ref) Output() Kind {
	if r.Expr != nil {
		return r.Expr.Output()
	}
	return KindUnknown
}

func (r *Ref) GroupByCols() []Expression { return []Expression{r} }

func (r *Ref) ContainsAggregate() bool {
	return r.Expr != nil && r.Expr.ContainsAggregate()
}

func (r *Ref) Clone() Expression {
	cp := &Ref{Alias: r.Alias}
	if r.Expr != nil {
		cp.Expr = r.Expr.Clone()
	}
	return cp
}

// ---------------------------------------------------------------------------
// Random ordering

// Random renders the dialect's random-value function, used for order_by("?").
type Random struct{}

func (Random) SQL(_ Context) (string, []any, error) { return "RANDOM()", nil, nil }

func (r Random) VendorSQL(vendor string, _ Context) (string, []any, bool, error) {
	switch vendor {
	case "mysql", "mariadb":
		return "RAND()", nil, true, nil
	case "oracle":
		return "DBMS_RANDOM.VALUE", nil, true, nil
	case "mssql":
		return "NEWID()", nil, true, nil
	}
	return "", nil, false, nil
}

func (r Random) Resolve(_ *Query, _ ResolveOptions) (Expression, error) { return r, nil }
func (Random) Output() Kind                                             { return KindFloat }
func (Random) GroupByCols() []Expression                                { return nil }
func (Random) ContainsAggregate() bool                                  { return false }
func (r Random) Clone() Expression                                      { return r }

// ---------------------------------------------------------------------------
// Raw SQL fragment

// Raw is a caller-supplied SQL fragment with ? placeholders, used for extra
// select columns. It is trusted input.
type Raw struct {
	SQLText string
	Params  []any
	Kind    Kind
}

func (r *Raw) SQL(_ Context) (string, []any, error) {
	return r.SQLText, r.Params, nil
}

func (r *Raw) Resolve(_ *Query, _ ResolveOptions) (Expression, error) {
	return r.Clone(), nil
}

func (r *Raw) Output() Kind              { return r.Kind }
func (r *Raw) GroupByCols() []Expression { return []Expression{r} }
func (r *Raw) ContainsAggregate() bool   { return false }
func (r *Raw) Clone() Expression {
	cp := &Raw{SQLText: r.SQLText, Kind: r.Kind}
	cp.Params = append([]any(nil), r.Params...)
	return cp
}

// ---------------------------------------------------------------------------
// Star

// Star is the bare * select target.
type Star struct{}

func (Star) SQL(_ Context) (string, []any, error)              { return "*", nil, nil }
func (s Star) Resolve(_ *Query, _ ResolveOptions) (Expression, error) { return s, nil }
func (Star) Output() Kind                                      { return KindUnknown }
func (Star) GroupByCols() []Expression                         { return nil }
func (Star) ContainsAggregate() bool                           { return false }
func (s Star) Clone() Expression                               { return s }

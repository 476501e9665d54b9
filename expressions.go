package thibaud

import (
	"github.com/zoobzio/thibaud/internal/types"
)

// Helper functions for building expression trees.

// F references a column by name or dotted relation path ("author.name").
func F(name string) Expression {
	return &types.Col{Name: name}
}

// V wraps a literal value as a parameter.
func V(value any) Expression {
	return &types.Value{V: value}
}

// TypedV wraps a literal with an explicit output kind.
func TypedV(value any, kind Kind) Expression {
	return &types.Value{V: value, Kind: kind}
}

// Fn builds a function-call expression.
func Fn(name string, args ...Expression) Expression {
	return &types.Func{Name: name, Args: args}
}

// TypedFn builds a function call with an explicit output kind.
func TypedFn(name string, kind Kind, args ...Expression) Expression {
	return &types.Func{Name: name, Args: args, Kind: kind}
}

// Sum creates a SUM aggregate expression.
func Sum(e Expression) Expression {
	return &types.Func{Name: "SUM", Args: []Expression{e}, Aggregate: true}
}

// Avg creates an AVG aggregate expression.
func Avg(e Expression) Expression {
	return &types.Func{Name: "AVG", Args: []Expression{e}, Aggregate: true}
}

// Min creates a MIN aggregate expression.
func Min(e Expression) Expression {
	return &types.Func{Name: "MIN", Args: []Expression{e}, Aggregate: true}
}

// Max creates a MAX aggregate expression.
func Max(e Expression) Expression {
	return &types.Func{Name: "MAX", Args: []Expression{e}, Aggregate: true}
}

// Count creates a COUNT(*) aggregate expression.
func Count() Expression {
	return &types.Func{Name: "COUNT", Aggregate: true, Kind: types.KindInt}
}

// CountField creates a COUNT(expr) aggregate expression.
func CountField(e Expression) Expression {
	return &types.Func{Name: "COUNT", Args: []Expression{e}, Aggregate: true, Kind: types.KindInt}
}

// CountDistinct creates a COUNT(DISTINCT expr) aggregate expression.
func CountDistinct(e Expression) Expression {
	return &types.Func{Name: "COUNT", Args: []Expression{e}, Aggregate: true, Distinct: true, Kind: types.KindInt}
}

// Arithmetic combinators. Operand kinds are checked at resolution time;
// temporal pairs dispatch to specialized forms.

func Add(lhs, rhs Expression) Expression { return combine(lhs, types.OpAdd, rhs) }
func Sub(lhs, rhs Expression) Expression { return combine(lhs, types.OpSub, rhs) }
func Mul(lhs, rhs Expression) Expression { return combine(lhs, types.OpMul, rhs) }
func Div(lhs, rhs Expression) Expression { return combine(lhs, types.OpDiv, rhs) }
func Mod(lhs, rhs Expression) Expression { return combine(lhs, types.OpMod, rhs) }

// BitAnd combines with the bitwise AND operator.
func BitAnd(lhs, rhs Expression) Expression { return combine(lhs, types.OpBitAnd, rhs) }

// BitOr combines with the bitwise OR operator.
func BitOr(lhs, rhs Expression) Expression { return combine(lhs, types.OpBitOr, rhs) }

// ConcatText combines two text expressions with the SQL concat operator.
func ConcatText(lhs, rhs Expression) Expression { return combine(lhs, types.OpConcat, rhs) }

func combine(lhs Expression, op types.Arith, rhs Expression) Expression {
	return &types.Combined{Lhs: lhs, Op: op, Rhs: rhs}
}

// Asc wraps an expression for ascending order.
func Asc(e Expression) Expression {
	return &types.Ordering{Expr: e}
}

// Desc wraps an expression for descending order.
func Desc(e Expression) Expression {
	return &types.Ordering{Expr: e, Descending: true}
}

// AscNullsLast orders ascending with NULLs at the end.
func AscNullsLast(e Expression) Expression {
	return &types.Ordering{Expr: e, Nulls: types.NullsLast}
}

// DescNullsFirst orders descending with NULLs at the front.
func DescNullsFirst(e Expression) Expression {
	return &types.Ordering{Expr: e, Descending: true, Nulls: types.NullsFirst}
}

// Random renders the dialect's random-value function.
func Random() Expression {
	return types.Random{}
}

// Predicate constructors.

func Eq(lhs, rhs Expression) Expression  { return cmp(lhs, types.EQ, rhs) }
func Ne(lhs, rhs Expression) Expression  { return cmp(lhs, types.NE, rhs) }
func Gt(lhs, rhs Expression) Expression  { return cmp(lhs, types.GT, rhs) }
func Gte(lhs, rhs Expression) Expression { return cmp(lhs, types.GE, rhs) }
func Lt(lhs, rhs Expression) Expression  { return cmp(lhs, types.LT, rhs) }
func Lte(lhs, rhs Expression) Expression { return cmp(lhs, types.LE, rhs) }

// Like matches against a SQL LIKE pattern.
func Like(lhs, rhs Expression) Expression { return cmp(lhs, types.LIKE, rhs) }

// NotLike negates a LIKE pattern match.
func NotLike(lhs, rhs Expression) Expression { return cmp(lhs, types.NotLike, rhs) }

func cmp(lhs Expression, op types.Operator, rhs Expression) Expression {
	return &types.Cmp{Lhs: lhs, Op: op, Rhs: rhs}
}

// And groups predicates conjunctively.
func And(preds ...Expression) Expression {
	return &types.Group{Op: types.AND, Children: preds}
}

// Or groups predicates disjunctively.
func Or(preds ...Expression) Expression {
	return &types.Group{Op: types.OR, Children: preds}
}

// Not negates a predicate.
func Not(pred Expression) Expression {
	return &types.Not{Inner: pred}
}

// IsNull tests for NULL.
func IsNull(e Expression) Expression {
	return &types.IsNull{Expr: e}
}

// IsNotNull tests for NOT NULL.
func IsNotNull(e Expression) Expression {
	return &types.IsNull{Expr: e, Negated: true}
}

// In tests membership in a literal list. An empty list compiles to the
// empty-result signal, collapsing enclosing OR branches.
func In(e Expression, values ...any) Expression {
	vs := make([]Expression, len(values))
	for i, v := range values {
		vs[i] = asExpr(v)
	}
	return &types.InValues{Expr: e, Values: vs}
}

// Exists wraps a subquery in an EXISTS predicate.
func Exists(sub *Query) Expression {
	return &types.ExistsExpr{Sub: sub}
}

// NotExists wraps a subquery in NOT EXISTS.
func NotExists(sub *Query) Expression {
	return &types.ExistsExpr{Sub: sub, Negated: true}
}

// asExpr lifts plain values into literals, passing expressions through.
func asExpr(v any) Expression {
	if e, ok := v.(Expression); ok {
		return e
	}
	return &types.Value{V: v}
}

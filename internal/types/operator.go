package types

// Operator represents query comparison operators.
type Operator string

const (
	// Basic comparison operators.
	EQ Operator = "="
	NE Operator = "!="
	GT Operator = ">"
	GE Operator = ">="
	LT Operator = "<"
	LE Operator = "<="

	// Extended operators.
	LIKE    Operator = "LIKE"
	NotLike Operator = "NOT LIKE"
)

// Arith represents a combined-expression arithmetic operator.
type Arith string

const (
	OpAdd    Arith = "+"
	OpSub    Arith = "-"
	OpMul    Arith = "*"
	OpDiv    Arith = "/"
	OpMod    Arith = "%"
	OpBitAnd Arith = "&"
	OpBitOr  Arith = "|"
	OpConcat Arith = "||"
)

// Commutative reports whether operand order is interchangeable, which lets
// resolution normalize literal-first combinations into column-first form.
func (op Arith) Commutative() bool {
	return op == OpAdd || op == OpMul || op == OpBitAnd || op == OpBitOr
}

// LogicOperator represents how predicate groups are combined.
type LogicOperator string

const (
	AND LogicOperator = "AND"
	OR  LogicOperator = "OR"
)

// NullsPolicy controls NULL placement in an ordering term.
type NullsPolicy string

const (
	NullsDefault NullsPolicy = ""
	NullsFirst   NullsPolicy = "NULLS FIRST"
	NullsLast    NullsPolicy = "NULLS LAST"
)

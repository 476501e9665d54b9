package types

// ReplaceColumns rebuilds an expression tree with every column reference
// replaced by the mapping function's result. Nodes without column children
// are deep-copied unchanged.
func ReplaceColumns(e Expression, f func(*Col) Expression) Expression {
	switch n := e.(type) {
	case *Col:
		return f(n)
	case *Func:
		cp := &Func{Name: n.Name, Kind: n.Kind, Aggregate: n.Aggregate, Distinct: n.Distinct}
		cp.Args = make([]Expression, len(n.Args))
		for i, a := range n.Args {
			cp.Args[i] = ReplaceColumns(a, f)
		}
		return cp
	case *Combined:
		return &Combined{Lhs: ReplaceColumns(n.Lhs, f), Op: n.Op, Rhs: ReplaceColumns(n.Rhs, f), Kind: n.Kind}
	case *TemporalSubtract:
		return &TemporalSubtract{Lhs: ReplaceColumns(n.Lhs, f), Rhs: ReplaceColumns(n.Rhs, f), Operand: n.Operand}
	case *DurationShift:
		return &DurationShift{Base: ReplaceColumns(n.Base, f), Delta: ReplaceColumns(n.Delta, f), Op: n.Op, Kind: n.Kind}
	case *Concat:
		return &Concat{Lhs: ReplaceColumns(n.Lhs, f), Rhs: ReplaceColumns(n.Rhs, f)}
	case *Ordering:
		return &Ordering{Expr: ReplaceColumns(n.Expr, f), Descending: n.Descending, Nulls: n.Nulls}
	case *Cmp:
		return &Cmp{Lhs: ReplaceColumns(n.Lhs, f), Op: n.Op, Rhs: ReplaceColumns(n.Rhs, f)}
	case *Group:
		cp := &Group{Op: n.Op, Children: make([]Expression, len(n.Children))}
		for i, child := range n.Children {
			cp.Children[i] = ReplaceColumns(child, f)
		}
		return cp
	case *Not:
		return &Not{Inner: ReplaceColumns(n.Inner, f)}
	case *IsNull:
		return &IsNull{Expr: ReplaceColumns(n.Expr, f), Negated: n.Negated}
	case *InValues:
		cp := &InValues{Expr: ReplaceColumns(n.Expr, f), Values: make([]Expression, len(n.Values))}
		for i, v := range n.Values {
			cp.Values[i] = ReplaceColumns(v, f)
		}
		return cp
	default:
		return e.Clone()
	}
}

package schema

import (
	"context"
	"errors"
	"fmt"

	"github.com/zoobzio/thibaud/compiler"
	"github.com/zoobzio/thibaud/internal/render"
	"github.com/zoobzio/thibaud/internal/types"
)

// ValidationError reports a constraint an instance would violate if saved.
type ValidationError struct {
	Constraint string
	Message    string
	Code       string
}

func (e ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("constraint %q is violated", e.Constraint)
}

// Validate checks an in-memory row against the predicate without touching
// the database. Values for every referenced column must be present in row.
func (cc *CheckConstraint) Validate(row map[string]any) error {
	ev, ok := cc.Check.(types.Evaluable)
	if !ok {
		return render.NewValueError("check constraint %q cannot be evaluated in memory", cc.Name)
	}
	passed, err := ev.Eval(row)
	if err != nil {
		return err
	}
	if !passed {
		return ValidationError{Constraint: cc.Name, Message: cc.Message, Code: cc.Code}
	}
	return nil
}

// Validate re-expresses the constraint as a filter against the live table
// and reports a validation error when a conflicting row exists. A NULL in
// any guarded column short-circuits to success per SQL NULL-disequality
// semantics. excludePK, when non-nil, excludes the instance's own row on
// update.
func (u *UniqueConstraint) Validate(ctx context.Context, db compiler.Queryer, c *compiler.Compiler, meta types.Meta, table string, row map[string]any, excludePK any) error {
	var preds []types.Expression

	if len(u.Fields) > 0 {
		for _, f := range u.Fields {
			v, ok := row[f]
			if !ok {
				return render.FieldError{Name: f, Hint: "value not supplied for unique check"}
			}
			if v == nil {
				return nil
			}
			preds = append(preds, &types.Cmp{Lhs: &types.Col{Name: f}, Op: types.EQ, Rhs: &types.Value{V: v}})
		}
	} else {
		for _, expr := range u.Expressions {
			rhs, null, err := bindRowValues(expr, row)
			if err != nil {
				return err
			}
			if null {
				return nil
			}
			preds = append(preds, &types.Cmp{Lhs: expr.Clone(), Op: types.EQ, Rhs: rhs})
		}
	}

	if u.Condition != nil {
		preds = append(preds, u.Condition.Clone())
	}
	violated, err := probeConflict(ctx, db, c, meta, table, preds, excludePK)
	if err != nil {
		return err
	}
	if violated {
		return ValidationError{Constraint: u.Name, Message: u.Message, Code: u.Code}
	}
	return nil
}

// Validate probes for an existing row every member operator matches against
// the instance's values.
func (e *ExclusionConstraint) Validate(ctx context.Context, db compiler.Queryer, c *compiler.Compiler, meta types.Meta, table string, row map[string]any, excludePK any) error {
	var preds []types.Expression
	for _, m := range e.Members {
		rhs, null, err := bindRowValues(m.Expr, row)
		if err != nil {
			return err
		}
		if null {
			return nil
		}
		preds = append(preds, &types.Cmp{Lhs: m.Expr.Clone(), Op: types.Operator(m.Operator), Rhs: rhs})
	}
	if e.Condition != nil {
		preds = append(preds, e.Condition.Clone())
		// The instance itself must satisfy the condition for the
		// constraint to apply.
		if ev, ok := e.Condition.(types.Evaluable); ok {
			applies, err := ev.Eval(row)
			if err == nil && !applies {
				return nil
			}
		}
	}
	violated, err := probeConflict(ctx, db, c, meta, table, preds, excludePK)
	if err != nil {
		return err
	}
	if violated {
		return ValidationError{Constraint: e.Name, Message: e.Message, Code: e.Code}
	}
	return nil
}

// bindRowValues rewrites an expression's column references into the
// instance's values, producing the comparison operand. null reports whether
// any referenced value was NULL.
func bindRowValues(e types.Expression, row map[string]any) (types.Expression, bool, error) {
	var missing error
	null := false
	bound := types.ReplaceColumns(e, func(col *types.Col) types.Expression {
		v, ok := row[col.Name]
		if !ok && missing == nil {
			missing = render.FieldError{Name: col.Name, Hint: "value not supplied for constraint check"}
		}
		if v == nil {
			null = true
		}
		return &types.Value{V: v, Kind: col.Kind}
	})
	if missing != nil {
		return nil, false, missing
	}
	return bound, null, nil
}

// probeConflict runs a LIMIT 1 existence probe for rows matching all preds,
// excluding the given primary key.
func probeConflict(ctx context.Context, db compiler.Queryer, c *compiler.Compiler, meta types.Meta, table string, preds []types.Expression, excludePK any) (bool, error) {
	q, err := types.NewQuery(meta, table)
	if err != nil {
		return false, err
	}
	pk := meta.PrimaryKey(table)
	if excludePK != nil {
		preds = append(preds, &types.Not{Inner: &types.Cmp{Lhs: &types.Col{Name: pk}, Op: types.EQ, Rhs: &types.Value{V: excludePK}}})
	}
	q.Where = &types.Group{Op: types.AND, Children: preds}
	q.ValuesSelect = []string{pk}
	one := 1
	q.Limit = &one

	stmt, err := c.Select(q, compiler.Options{})
	if err != nil {
		if errors.Is(err, render.ErrEmptyResultSet) {
			return false, nil
		}
		return false, err
	}
	rows, err := db.QueryContext(ctx, stmt.SQL, stmt.Params...)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	if rows.Next() {
		return true, nil
	}
	return false, rows.Err()
}

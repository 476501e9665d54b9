package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/zoobzio/thibaud/compiler"
	"github.com/zoobzio/thibaud/ddl"
	"github.com/zoobzio/thibaud/internal/render"
	"github.com/zoobzio/thibaud/internal/types"
)

// Deferrable controls when a constraint is enforced within a transaction.
type Deferrable int

const (
	NotDeferrable Deferrable = iota
	DeferredConstraint
	ImmediateConstraint
)

func (d Deferrable) ddl() string {
	switch d {
	case DeferredConstraint:
		return " DEFERRABLE INITIALLY DEFERRED"
	case ImmediateConstraint:
		return " DEFERRABLE INITIALLY IMMEDIATE"
	}
	return ""
}

// Constraint is the common surface of table constraints.
type Constraint interface {
	ConstraintName() string
	ConstraintSQL(c *compiler.Compiler, meta types.Meta, table string) (*ddl.Statement, error)
	CreateSQL(c *compiler.Compiler, meta types.Meta, table string) (*ddl.Statement, error)
	RemoveSQL(c *compiler.Compiler, table string) *ddl.Statement
}

// ---------------------------------------------------------------------------
// CHECK

// CheckConstraint guards rows with a boolean predicate.
type CheckConstraint struct {
	Name  string
	Check types.Expression

	// Message and Code customize the validation error raised by Validate.
	Message string
	Code    string
}

// NewCheckConstraint rejects non-boolean predicates at declaration time.
func NewCheckConstraint(name string, check types.Expression) (*CheckConstraint, error) {
	if name == "" {
		return nil, render.NewValueError("check constraint requires a name")
	}
	if check == nil || check.Output() != types.KindBool {
		return nil, render.NewValueError("check constraint %q requires a boolean predicate", name)
	}
	return &CheckConstraint{Name: name, Check: check}, nil
}

func (cc *CheckConstraint) ConstraintName() string { return cc.Name }

func (cc *CheckConstraint) ConstraintSQL(c *compiler.Compiler, meta types.Meta, table string) (*ddl.Statement, error) {
	sql, cols, err := renderDDLExpr(c, meta, table, cc.Check)
	if err != nil {
		return nil, err
	}
	return &ddl.Statement{
		Template: "CONSTRAINT %(name)s CHECK (%(check)s)",
		Parts: map[string]ddl.Reference{
			"name":  ddl.Literal(c.Quote(cc.Name)),
			"check": &ddl.Expressions{Table: table, Columns: cols, Render: func() string { return sql }},
		},
	}, nil
}

func (cc *CheckConstraint) CreateSQL(c *compiler.Compiler, meta types.Meta, table string) (*ddl.Statement, error) {
	inner, err := cc.ConstraintSQL(c, meta, table)
	if err != nil {
		return nil, err
	}
	inner.Template = "ALTER TABLE %(table)s ADD " + inner.Template
	inner.Parts["table"] = &ddl.Table{Name: table, Quote: c.Quote}
	return inner, nil
}

func (cc *CheckConstraint) RemoveSQL(c *compiler.Compiler, table string) *ddl.Statement {
	return dropConstraint(c, table, cc.Name)
}

// ---------------------------------------------------------------------------
// UNIQUE

// UniqueConstraint enforces uniqueness over columns or expressions.
// Conditional and expression forms compile to unique indexes; the plain
// form compiles to a table constraint.
type UniqueConstraint struct {
	Name        string
	Fields      []string
	Expressions []types.Expression
	Condition   types.Expression
	Deferrable  Deferrable
	Include     []string
	OpClasses   []string

	Message string
	Code    string
}

// NewUniqueConstraint validates the mutual-exclusion rules at declaration
// time.
func NewUniqueConstraint(u UniqueConstraint) (*UniqueConstraint, error) {
	if u.Name == "" {
		return nil, render.NewValueError("unique constraint requires a name")
	}
	if len(u.Fields) == 0 && len(u.Expressions) == 0 {
		return nil, render.NewValueError("unique constraint %q requires at least one field or expression", u.Name)
	}
	if len(u.Fields) > 0 && len(u.Expressions) > 0 {
		return nil, render.NewValueError("unique constraint %q cannot combine fields with expressions", u.Name)
	}
	if u.Condition != nil && u.Deferrable != NotDeferrable {
		return nil, render.NewValueError("unique constraint %q cannot be both conditional and deferrable", u.Name)
	}
	if len(u.OpClasses) > 0 && len(u.OpClasses) != len(u.Fields) {
		return nil, render.NewValueError("unique constraint %q needs one opclass per field", u.Name)
	}
	cp := u
	return &cp, nil
}

func (u *UniqueConstraint) ConstraintName() string { return u.Name }

// indexBacked reports whether the constraint must be a unique index rather
// than a table constraint.
func (u *UniqueConstraint) indexBacked() bool {
	return u.Condition != nil || len(u.Expressions) > 0
}

func (u *UniqueConstraint) ConstraintSQL(c *compiler.Compiler, meta types.Meta, table string) (*ddl.Statement, error) {
	if u.indexBacked() {
		return nil, render.NewValueError("unique constraint %q is index-backed; use CreateSQL", u.Name)
	}
	caps := c.Capabilities()
	if u.Deferrable != NotDeferrable && !caps.DeferrableConstraints {
		return nil, render.NewUnsupportedFeatureError(c.Dialect().Name(), "deferrable constraints")
	}
	if len(u.Include) > 0 && !caps.CoveringIndexes {
		return nil, render.NewUnsupportedFeatureError(c.Dialect().Name(), "covering unique constraints")
	}

	template := "CONSTRAINT %(name)s UNIQUE (%(columns)s)"
	parts := map[string]ddl.Reference{
		"name":    ddl.Literal(c.Quote(u.Name)),
		"columns": &ddl.Columns{Table: table, Names: append([]string(nil), u.Fields...), Quote: c.Quote},
	}
	if len(u.Include) > 0 {
		template += " INCLUDE (%(include)s)"
		parts["include"] = &ddl.Columns{Table: table, Names: append([]string(nil), u.Include...), Quote: c.Quote}
	}
	template += u.Deferrable.ddl()
	return &ddl.Statement{Template: template, Parts: parts}, nil
}

func (u *UniqueConstraint) CreateSQL(c *compiler.Compiler, meta types.Meta, table string) (*ddl.Statement, error) {
	if !u.indexBacked() {
		inner, err := u.ConstraintSQL(c, meta, table)
		if err != nil {
			return nil, err
		}
		inner.Template = "ALTER TABLE %(table)s ADD " + inner.Template
		inner.Parts["table"] = &ddl.Table{Name: table, Quote: c.Quote}
		return inner, nil
	}

	fields := make([]IndexField, 0, len(u.Fields)+len(u.Expressions))
	for _, f := range u.Fields {
		fields = append(fields, IndexField{Column: f})
	}
	for _, e := range u.Expressions {
		fields = append(fields, IndexField{Expr: e})
	}
	idx := &Index{
		Name:      u.Name,
		Fields:    fields,
		Condition: u.Condition,
		Include:   append([]string(nil), u.Include...),
		OpClasses: append([]string(nil), u.OpClasses...),
		suffix:    indexSuffix,
	}
	return idx.CreateSQL(c, meta, table, true)
}

func (u *UniqueConstraint) RemoveSQL(c *compiler.Compiler, table string) *ddl.Statement {
	if u.indexBacked() {
		return &ddl.Statement{
			Template: "DROP INDEX %(name)s",
			Parts: map[string]ddl.Reference{
				"name": &ddl.IndexName{Table: table, Suffix: indexSuffix, Create: fixedName(c.Quote(u.Name))},
			},
		}
	}
	return dropConstraint(c, table, u.Name)
}

// ---------------------------------------------------------------------------
// EXCLUSION

// ExclusionMember pairs one indexed expression with the SQL operator rows
// are compared with.
type ExclusionMember struct {
	Expr     types.Expression
	Operator string
}

// ExclusionConstraint forbids two rows whose members all compare true under
// their operators. PostgreSQL-only in practice; compilation is gated on the
// dialect capability.
type ExclusionConstraint struct {
	Name       string
	Members    []ExclusionMember
	IndexType  string
	Condition  types.Expression
	Deferrable Deferrable
	Include    []string

	Message string
	Code    string
}

// NewExclusionConstraint validates shape at declaration time.
func NewExclusionConstraint(e ExclusionConstraint) (*ExclusionConstraint, error) {
	if e.Name == "" {
		return nil, render.NewValueError("exclusion constraint requires a name")
	}
	if len(e.Members) == 0 {
		return nil, render.NewValueError("exclusion constraint %q requires at least one member", e.Name)
	}
	for _, m := range e.Members {
		if m.Expr == nil || m.Operator == "" {
			return nil, render.NewValueError("exclusion constraint %q members need both an expression and an operator", e.Name)
		}
	}
	if e.Condition != nil && e.Deferrable != NotDeferrable {
		return nil, render.NewValueError("exclusion constraint %q cannot be both conditional and deferrable", e.Name)
	}
	cp := e
	if cp.IndexType == "" {
		cp.IndexType = "GIST"
	}
	return &cp, nil
}

func (e *ExclusionConstraint) ConstraintName() string { return e.Name }

func (e *ExclusionConstraint) ConstraintSQL(c *compiler.Compiler, meta types.Meta, table string) (*ddl.Statement, error) {
	caps := c.Capabilities()
	if !caps.ExclusionConstraints {
		return nil, render.NewUnsupportedFeatureError(c.Dialect().Name(), "exclusion constraints")
	}
	if len(e.Include) > 0 && !caps.CoveringExclusionConstraints {
		return nil, render.NewUnsupportedFeatureError(c.Dialect().Name(), "covering exclusion constraints")
	}
	if e.Deferrable != NotDeferrable && !caps.DeferrableConstraints {
		return nil, render.NewUnsupportedFeatureError(c.Dialect().Name(), "deferrable constraints")
	}

	var memberParts []string
	var allCols []string
	for _, m := range e.Members {
		sql, cols, err := renderDDLExpr(c, meta, table, m.Expr)
		if err != nil {
			return nil, err
		}
		memberParts = append(memberParts, sql+" WITH "+m.Operator)
		allCols = append(allCols, cols...)
	}
	members := strings.Join(memberParts, ", ")

	template := "CONSTRAINT %(name)s EXCLUDE USING " + e.IndexType + " (%(members)s)"
	parts := map[string]ddl.Reference{
		"name":    ddl.Literal(c.Quote(e.Name)),
		"members": &ddl.Expressions{Table: table, Columns: allCols, Render: func() string { return members }},
	}
	if len(e.Include) > 0 {
		template += " INCLUDE (%(include)s)"
		parts["include"] = &ddl.Columns{Table: table, Names: append([]string(nil), e.Include...), Quote: c.Quote}
	}
	if e.Condition != nil {
		sql, cols, err := renderDDLExpr(c, meta, table, e.Condition)
		if err != nil {
			return nil, err
		}
		template += " WHERE (%(condition)s)"
		parts["condition"] = &ddl.Expressions{Table: table, Columns: cols, Render: func() string { return sql }}
	}
	template += e.Deferrable.ddl()
	return &ddl.Statement{Template: template, Parts: parts}, nil
}

func (e *ExclusionConstraint) CreateSQL(c *compiler.Compiler, meta types.Meta, table string) (*ddl.Statement, error) {
	inner, err := e.ConstraintSQL(c, meta, table)
	if err != nil {
		return nil, err
	}
	inner.Template = "ALTER TABLE %(table)s ADD " + inner.Template
	inner.Parts["table"] = &ddl.Table{Name: table, Quote: c.Quote}
	return inner, nil
}

func (e *ExclusionConstraint) RemoveSQL(c *compiler.Compiler, table string) *ddl.Statement {
	return dropConstraint(c, table, e.Name)
}

func dropConstraint(c *compiler.Compiler, table, name string) *ddl.Statement {
	return &ddl.Statement{
		Template: "ALTER TABLE %(table)s DROP CONSTRAINT %(name)s",
		Parts: map[string]ddl.Reference{
			"table": &ddl.Table{Name: table, Quote: c.Quote},
			"name":  ddl.Literal(c.Quote(name)),
		},
	}
}

// inlineParams substitutes literal values for neutral placeholders. DDL
// statements carry no parameter list, so values are embedded in the text.
func inlineParams(sql string, params []any) (string, error) {
	if len(params) == 0 {
		return sql, nil
	}
	var sb strings.Builder
	pi := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] != '?' {
			sb.WriteByte(sql[i])
			continue
		}
		if pi >= len(params) {
			return "", render.NewValueError("placeholder count exceeds %d parameters", len(params))
		}
		lit, err := literalValue(params[pi])
		if err != nil {
			return "", err
		}
		sb.WriteString(lit)
		pi++
	}
	if pi != len(params) {
		return "", render.NewValueError("%d parameters left uninterpolated", len(params)-pi)
	}
	return sb.String(), nil
}

func literalValue(v any) (string, error) {
	switch n := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if n {
			return "TRUE", nil
		}
		return "FALSE", nil
	case string:
		return "'" + strings.ReplaceAll(n, "'", "''") + "'", nil
	case time.Time:
		return "'" + n.UTC().Format("2006-01-02 15:04:05") + "'", nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", n), nil
	case float32, float64:
		return fmt.Sprintf("%v", n), nil
	default:
		return "", render.NewValueError("cannot inline %T into DDL", v)
	}
}

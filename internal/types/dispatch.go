package types

import (
	"github.com/zoobzio/thibaud/internal/render"
)

// combinedKey identifies a binary-arithmetic combination by operator and the
// two resolved operand kinds.
type combinedKey struct {
	op   Arith
	lhs  Kind
	rhs  Kind
}

type combinedCtor func(lhs, rhs Expression) (Expression, error)

// combinedRegistry maps operand combinations to specialized constructors.
// Anything not listed falls through to the numeric default.
var combinedRegistry = map[combinedKey]combinedCtor{}

func registerCombined(op Arith, lhs, rhs Kind, ctor combinedCtor) {
	combinedRegistry[combinedKey{op, lhs, rhs}] = ctor
}

func init() {
	for _, temporal := range []Kind{KindDate, KindDateTime, KindTime} {
		t := temporal
		// date - date yields a duration.
		registerCombined(OpSub, t, t, func(lhs, rhs Expression) (Expression, error) {
			return &TemporalSubtract{Lhs: lhs, Rhs: rhs, Operand: t}, nil
		})
		// date +/- duration shifts the date.
		registerCombined(OpAdd, t, KindDuration, func(lhs, rhs Expression) (Expression, error) {
			return &DurationShift{Base: lhs, Delta: rhs, Op: OpAdd, Kind: t}, nil
		})
		registerCombined(OpSub, t, KindDuration, func(lhs, rhs Expression) (Expression, error) {
			return &DurationShift{Base: lhs, Delta: rhs, Op: OpSub, Kind: t}, nil
		})
		registerCombined(OpAdd, KindDuration, t, func(lhs, rhs Expression) (Expression, error) {
			return &DurationShift{Base: rhs, Delta: lhs, Op: OpAdd, Kind: t}, nil
		})
	}

	registerCombined(OpAdd, KindDuration, KindDuration, func(lhs, rhs Expression) (Expression, error) {
		return &Combined{Lhs: lhs, Op: OpAdd, Rhs: rhs, Kind: KindDuration}, nil
	})
	registerCombined(OpSub, KindDuration, KindDuration, func(lhs, rhs Expression) (Expression, error) {
		return &Combined{Lhs: lhs, Op: OpSub, Rhs: rhs, Kind: KindDuration}, nil
	})

	registerCombined(OpConcat, KindText, KindText, func(lhs, rhs Expression) (Expression, error) {
		return &Concat{Lhs: lhs, Rhs: rhs}, nil
	})
}

// dispatchCombined builds the resolved form of lhs op rhs. Specialized pairs
// come from the registry; numeric pairs promote int -> float -> decimal;
// anything else is a construction error.
func dispatchCombined(op Arith, lhs, rhs Expression, hint Kind) (Expression, error) {
	lk, rk := lhs.Output(), rhs.Output()

	if ctor, ok := combinedRegistry[combinedKey{op, lk, rk}]; ok {
		return ctor(lhs, rhs)
	}

	// Unknown kinds (raw fragments, untyped params) are taken on faith.
	if lk == KindUnknown || rk == KindUnknown {
		kind := hint
		if kind == KindUnknown {
			if lk != KindUnknown {
				kind = lk
			} else {
				kind = rk
			}
		}
		return &Combined{Lhs: lhs, Op: op, Rhs: rhs, Kind: kind}, nil
	}

	if lk.IsNumeric() && rk.IsNumeric() {
		kind := promoteNumeric(lk, rk)
		if hint != KindUnknown {
			kind = hint
		}
		return &Combined{Lhs: lhs, Op: op, Rhs: rhs, Kind: kind}, nil
	}

	if lk.IsTemporal() || rk.IsTemporal() || lk == KindDuration || rk == KindDuration {
		return nil, render.NewValueError("unsupported temporal arithmetic: %s %s %s", lk, op, rk)
	}
	return nil, render.NewValueError("cannot combine %s and %s with %q", lk, rk, op)
}

func promoteNumeric(a, b Kind) Kind {
	if a == KindDecimal || b == KindDecimal {
		return KindDecimal
	}
	if a == KindFloat || b == KindFloat {
		return KindFloat
	}
	return KindInt
}

// ---------------------------------------------------------------------------
// Specialized combinations

// TemporalSubtract is date - date, producing a duration in microseconds on
// backends without a native interval type.
type TemporalSubtract struct {
	Lhs     Expression
	Rhs     Expression
	Operand Kind
}

func (t *TemporalSubtract) SQL(ctx Context) (string, []any, error) {
	ls, lp, err := ctx.Compile(t.Lhs)
	if err != nil {
		return "", nil, err
	}
	rs, rp, err := ctx.Compile(t.Rhs)
	if err != nil {
		return "", nil, err
	}
	return "(" + ls + " - " + rs + ")", append(lp, rp...), nil
}

func (t *TemporalSubtract) VendorSQL(vendor string, ctx Context) (string, []any, bool, error) {
	switch vendor {
	case "sqlite":
		ls, lp, err := ctx.Compile(t.Lhs)
		if err != nil {
			return "", nil, false, err
		}
		rs, rp, err := ctx.Compile(t.Rhs)
		if err != nil {
			return "", nil, false, err
		}
		sql := "CAST((JULIANDAY(" + ls + ") - JULIANDAY(" + rs + ")) * 86400000000 AS INTEGER)"
		return sql, append(lp, rp...), true, nil
	case "mysql", "mariadb":
		ls, lp, err := ctx.Compile(t.Lhs)
		if err != nil {
			return "", nil, false, err
		}
		rs, rp, err := ctx.Compile(t.Rhs)
		if err != nil {
			return "", nil, false, err
		}
		sql := "TIMESTAMPDIFF(MICROSECOND, " + rs + ", " + ls + ")"
		return sql, append(rp, lp...), true, nil
	}
	return "", nil, false, nil
}

func (t *TemporalSubtract) Resolve(q *Query, opts ResolveOptions) (Expression, error) {
	lhs, err := t.Lhs.Resolve(q, opts)
	if err != nil {
		return nil, err
	}
	rhs, err := t.Rhs.Resolve(q, opts)
	if err != nil {
		return nil, err
	}
	return &TemporalSubtract{Lhs: lhs, Rhs: rhs, Operand: t.Operand}, nil
}

func (t *TemporalSubtract) Output() Kind { return KindDuration }

func (t *TemporalSubtract) GroupByCols() []Expression {
	if t.ContainsAggregate() {
		return nil
	}
	return append(t.Lhs.GroupByCols(), t.Rhs.GroupByCols()...)
}

func (t *TemporalSubtract) ContainsAggregate() bool {
	return t.Lhs.ContainsAggregate() || t.Rhs.ContainsAggregate()
}

func (t *TemporalSubtract) Clone() Expression {
	return &TemporalSubtract{Lhs: t.Lhs.Clone(), Rhs: t.Rhs.Clone(), Operand: t.Operand}
}

// DurationShift is date +/- duration, yielding the date kind of the base.
type DurationShift struct {
	Base  Expression
	Delta Expression
	Op    Arith
	Kind  Kind
}

func (d *DurationShift) SQL(ctx Context) (string, []any, error) {
	bs, bp, err := ctx.Compile(d.Base)
	if err != nil {
		return "", nil, err
	}
	ds, dp, err := ctx.Compile(d.Delta)
	if err != nil {
		return "", nil, err
	}
	return "(" + bs + " " + string(d.Op) + " " + ds + ")", append(bp, dp...), nil
}

func (d *DurationShift) VendorSQL(vendor string, ctx Context) (string, []any, bool, error) {
	switch vendor {
	case "sqlite":
		bs, bp, err := ctx.Compile(d.Base)
		if err != nil {
			return "", nil, false, err
		}
		ds, dp, err := ctx.Compile(d.Delta)
		if err != nil {
			return "", nil, false, err
		}
		// Durations are stored as microseconds; shift via julian days.
		sql := "DATETIME(JULIANDAY(" + bs + ") " + string(d.Op) + " (" + ds + ") / 86400000000.0)"
		return sql, append(bp, dp...), true, nil
	case "mysql", "mariadb":
		bs, bp, err := ctx.Compile(d.Base)
		if err != nil {
			return "", nil, false, err
		}
		ds, dp, err := ctx.Compile(d.Delta)
		if err != nil {
			return "", nil, false, err
		}
		fn := "DATE_ADD"
		if d.Op == OpSub {
			fn = "DATE_SUB"
		}
		sql := fn + "(" + bs + ", INTERVAL (" + ds + ") MICROSECOND)"
		return sql, append(bp, dp...), true, nil
	}
	return "", nil, false, nil
}

func (d *DurationShift) Resolve(q *Query, opts ResolveOptions) (Expression, error) {
	base, err := d.Base.Resolve(q, opts)
	if err != nil {
		return nil, err
	}
	delta, err := d.Delta.Resolve(q, opts)
	if err != nil {
		return nil, err
	}
	return &DurationShift{Base: base, Delta: delta, Op: d.Op, Kind: d.Kind}, nil
}

func (d *DurationShift) Output() Kind { return d.Kind }

func (d *DurationShift) GroupByCols() []Expression {
	if d.ContainsAggregate() {
		return nil
	}
	return append(d.Base.GroupByCols(), d.Delta.GroupByCols()...)
}

func (d *DurationShift) ContainsAggregate() bool {
	return d.Base.ContainsAggregate() || d.Delta.ContainsAggregate()
}

func (d *DurationShift) Clone() Expression {
	return &DurationShift{Base: d.Base.Clone(), Delta: d.Delta.Clone(), Op: d.Op, Kind: d.Kind}
}

// Concat is text || text, spelled CONCAT(...) on backends without the
// standard operator.
type Concat struct {
	Lhs Expression
	Rhs Expression
}

func (c *Concat) SQL(ctx Context) (string, []any, error) {
	ls, lp, err := ctx.Compile(c.Lhs)
	if err != nil {
		return "", nil, err
	}
	rs, rp, err := ctx.Compile(c.Rhs)
	if err != nil {
		return "", nil, err
	}
	return "(" + ls + " || " + rs + ")", append(lp, rp...), nil
}

func (c *Concat) VendorSQL(vendor string, ctx Context) (string, []any, bool, error) {
	switch vendor {
	case "mysql", "mariadb":
		ls, lp, err := ctx.Compile(c.Lhs)
		if err != nil {
			return "", nil, false, err
		}
		rs, rp, err := ctx.Compile(c.Rhs)
		if err != nil {
			return "", nil, false, err
		}
		return "CONCAT(" + ls + ", " + rs + ")", append(lp, rp...), true, nil
	case "mssql":
		ls, lp, err := ctx.Compile(c.Lhs)
		if err != nil {
			return "", nil, false, err
		}
		rs, rp, err := ctx.Compile(c.Rhs)
		if err != nil {
			return "", nil, false, err
		}
		return "(" + ls + " + " + rs + ")", append(lp, rp...), true, nil
	}
	return "", nil, false, nil
}

func (c *Concat) Resolve(q *Query, opts ResolveOptions) (Expression, error) {
	lhs, err := c.Lhs.Resolve(q, opts)
	if err != nil {
		return nil, err
	}
	rhs, err := c.Rhs.Resolve(q, opts)
	if err != nil {
		return nil, err
	}
	return &Concat{Lhs: lhs, Rhs: rhs}, nil
}

func (c *Concat) Output() Kind { return KindText }

func (c *Concat) GroupByCols() []Expression {
	if c.ContainsAggregate() {
		return nil
	}
	return append(c.Lhs.GroupByCols(), c.Rhs.GroupByCols()...)
}

func (c *Concat) ContainsAggregate() bool {
	return c.Lhs.ContainsAggregate() || c.Rhs.ContainsAggregate()
}

func (c *Concat) Clone() Expression {
	return &Concat{Lhs: c.Lhs.Clone(), Rhs: c.Rhs.Clone()}
}

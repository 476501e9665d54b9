// Package ddl provides deferred-interpolation handles over DDL statement
// parts. A schema-alteration pass holds rendered-later statements; when a
// table or column is renamed before a pending statement runs, the handles
// are patched in place instead of re-deriving the statement.
package ddl

import (
	"strings"
)

// Quoter quotes a single identifier for the target dialect.
type Quoter func(name string) string

// Reference is a DDL statement part. ReferencesTable and ReferencesColumn
// must answer true for exactly the identifiers the rendered text mentions.
type Reference interface {
	ReferencesTable(table string) bool
	ReferencesColumn(table, column string) bool
	RenameTable(old, new string)
	RenameColumn(table, old, new string)
	String() string
}

// Table is a quoted table name.
type Table struct {
	Name  string
	Quote Quoter
}

func (t *Table) ReferencesTable(table string) bool           { return t.Name == table }
func (t *Table) ReferencesColumn(string, string) bool        { return false }
func (t *Table) RenameTable(old, new string) {
	if t.Name == old {
		t.Name = new
	}
}
func (t *Table) RenameColumn(string, string, string) {}
func (t *Table) String() string                      { return t.Quote(t.Name) }

// Columns is an ordered, quoted column list of one table. Suffixes carries
// per-column trailers such as DESC, aligned by index.
type Columns struct {
	Table    string
	Names    []string
	Suffixes []string
	Quote    Quoter
}

func (c *Columns) ReferencesTable(table string) bool { return c.Table == table }

func (c *Columns) ReferencesColumn(table, column string) bool {
	if c.Table != table {
		return false
	}
	for _, n := range c.Names {
		if n == column {
			return true
		}
	}
	return false
}

func (c *Columns) RenameTable(old, new string) {
	if c.Table == old {
		c.Table = new
	}
}

func (c *Columns) RenameColumn(table, old, new string) {
	if c.Table != table {
		return
	}
	for i, n := range c.Names {
		if n == old {
			c.Names[i] = new
		}
	}
}

func (c *Columns) String() string {
	parts := make([]string, len(c.Names))
	for i, n := range c.Names {
		parts[i] = c.Quote(n)
		if i < len(c.Suffixes) && c.Suffixes[i] != "" {
			parts[i] += " " + c.Suffixes[i]
		}
	}
	return strings.Join(parts, ", ")
}

// IndexName derives an index name lazily, so a table rename before the DDL
// runs yields the name for the new table.
type IndexName struct {
	Table   string
	Columns []string
	Suffix  string
	Create  func(table string, columns []string, suffix string) string
}

func (n *IndexName) ReferencesTable(table string) bool { return n.Table == table }

func (n *IndexName) ReferencesColumn(table, column string) bool {
	if n.Table != table {
		return false
	}
	for _, c := range n.Columns {
		if c == column {
			return true
		}
	}
	return false
}

func (n *IndexName) RenameTable(old, new string) {
	if n.Table == old {
		n.Table = new
	}
}

func (n *IndexName) RenameColumn(table, old, new string) {
	if n.Table != table {
		return
	}
	for i, c := range n.Columns {
		if c == old {
			n.Columns[i] = new
		}
	}
}

func (n *IndexName) String() string { return n.Create(n.Table, n.Columns, n.Suffix) }

// ForeignKeyName derives a foreign-key constraint name lazily. It references
// both ends of the key.
type ForeignKeyName struct {
	FromTable   string
	FromColumns []string
	ToTable     string
	ToColumns   []string
	Suffix      string
	Create      func(fromTable string, fromColumns []string, suffix string) string
}

func (n *ForeignKeyName) ReferencesTable(table string) bool {
	return n.FromTable == table || n.ToTable == table
}

func (n *ForeignKeyName) ReferencesColumn(table, column string) bool {
	cols := n.FromColumns
	if table == n.ToTable {
		cols = n.ToColumns
	} else if table != n.FromTable {
		return false
	}
	for _, c := range cols {
		if c == column {
			return true
		}
	}
	return false
}

func (n *ForeignKeyName) RenameTable(old, new string) {
	if n.FromTable == old {
		n.FromTable = new
	}
	if n.ToTable == old {
		n.ToTable = new
	}
}

func (n *ForeignKeyName) RenameColumn(table, old, new string) {
	if table == n.FromTable {
		for i, c := range n.FromColumns {
			if c == old {
				n.FromColumns[i] = new
			}
		}
	}
	if table == n.ToTable {
		for i, c := range n.ToColumns {
			if c == old {
				n.ToColumns[i] = new
			}
		}
	}
}

func (n *ForeignKeyName) String() string {
	suffix := strings.ReplaceAll(n.Suffix, "%(to_table)s", n.ToTable)
	if len(n.ToColumns) > 0 {
		suffix = strings.ReplaceAll(suffix, "%(to_column)s", n.ToColumns[0])
	}
	return n.Create(n.FromTable, n.FromColumns, suffix)
}

// Expressions wraps pre-rendered expression SQL together with the columns
// it mentions, for expression indexes and constraints. Renames invalidate
// nothing because the SQL is re-rendered through the supplied function.
type Expressions struct {
	Table   string
	Columns []string
	Render  func() string
}

func (e *Expressions) ReferencesTable(table string) bool { return e.Table == table }

func (e *Expressions) ReferencesColumn(table, column string) bool {
	if e.Table != table {
		return false
	}
	for _, c := range e.Columns {
		if c == column {
			return true
		}
	}
	return false
}

func (e *Expressions) RenameTable(old, new string) {
	if e.Table == old {
		e.Table = new
	}
}

func (e *Expressions) RenameColumn(table, old, new string) {
	if e.Table != table {
		return
	}
	for i, c := range e.Columns {
		if c == old {
			e.Columns[i] = new
		}
	}
}

func (e *Expressions) String() string { return e.Render() }

// literal is a plain string part.
type literal string

func (literal) ReferencesTable(string) bool          { return false }
func (literal) ReferencesColumn(string, string) bool { return false }
func (literal) RenameTable(string, string)           {}
func (literal) RenameColumn(string, string, string)  {}
func (l literal) String() string                     { return string(l) }

// Literal wraps a fixed string as a statement part.
func Literal(s string) Reference { return literal(s) }

// Statement is a DDL template with named parts, interpolated only when the
// statement is finally rendered. Template placeholders use %(name)s.
type Statement struct {
	Template string
	Parts    map[string]Reference
}

func (s *Statement) ReferencesTable(table string) bool {
	for _, p := range s.Parts {
		if p.ReferencesTable(table) {
			return true
		}
	}
	return false
}

func (s *Statement) ReferencesColumn(table, column string) bool {
	for _, p := range s.Parts {
		if p.ReferencesColumn(table, column) {
			return true
		}
	}
	return false
}

func (s *Statement) RenameTable(old, new string) {
	for _, p := range s.Parts {
		p.RenameTable(old, new)
	}
}

func (s *Statement) RenameColumn(table, old, new string) {
	for _, p := range s.Parts {
		p.RenameColumn(table, old, new)
	}
}

func (s *Statement) String() string {
	out := s.Template
	for name, p := range s.Parts {
		out = strings.ReplaceAll(out, "%("+name+")s", p.String())
	}
	return out
}

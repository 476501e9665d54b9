package types

// Column describes one column of a table as known to the schema.
type Column struct {
	Name string
	Type string // declared type, e.g. "bigint", "varchar(80)"
	Kind Kind
}

// Relation describes a named forward relation from one table to another,
// implemented as a foreign-key column on the owning table.
type Relation struct {
	Name     string // relation name used in paths, e.g. "author"
	Column   string // foreign-key column on the owning table
	Table    string // related table
	Nullable bool   // nullable relations join with LEFT OUTER JOIN
}

// Meta supplies table/column/relation metadata to expression resolution and
// to constraint/index compilation. The root package's Schema implements it
// on top of a DBML project.
type Meta interface {
	HasTable(name string) bool
	Columns(table string) []Column
	Column(table, name string) (Column, bool)
	PrimaryKey(table string) string
	Relation(table, name string) (Relation, bool)
	Relations(table string) []Relation
}

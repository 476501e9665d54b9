package thibaud

import (
	"fmt"

	"github.com/zoobzio/dbml"

	"github.com/zoobzio/thibaud/internal/types"
)

// defaultPrimaryKey is assumed when a table declares no key explicitly.
const defaultPrimaryKey = "id"

// Schema binds the query builder to a DBML project. It supplies table,
// column and relation metadata to expression resolution and constraint
// compilation.
type Schema struct {
	project *dbml.Project

	tables    map[string]*dbml.Table
	columns   map[string]map[string]types.Column
	order     map[string][]types.Column
	pks       map[string]string
	relations map[string]map[string]types.Relation
	relOrder  map[string][]string
}

// SchemaOption customizes schema construction.
type SchemaOption func(*Schema)

// WithPrimaryKey declares a table's primary-key column. Tables without one
// default to "id".
func WithPrimaryKey(table, column string) SchemaOption {
	return func(s *Schema) {
		s.pks[table] = column
	}
}

// NewSchema indexes a DBML project for metadata lookups.
func NewSchema(project *dbml.Project, opts ...SchemaOption) (*Schema, error) {
	if project == nil {
		return nil, fmt.Errorf("project cannot be nil")
	}
	s := &Schema{
		project:   project,
		tables:    make(map[string]*dbml.Table),
		columns:   make(map[string]map[string]types.Column),
		order:     make(map[string][]types.Column),
		pks:       make(map[string]string),
		relations: make(map[string]map[string]types.Relation),
		relOrder:  make(map[string][]string),
	}
	for _, table := range project.Tables {
		s.tables[table.Name] = table
		s.columns[table.Name] = make(map[string]types.Column)
		for _, col := range table.Columns {
			c := types.Column{Name: col.Name, Type: col.Type, Kind: types.KindOfType(col.Type)}
			s.columns[table.Name][col.Name] = c
			s.order[table.Name] = append(s.order[table.Name], c)
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	for table, pk := range s.pks {
		if _, ok := s.tables[table]; !ok {
			return nil, fmt.Errorf("primary key declared for unknown table %q", table)
		}
		if _, ok := s.columns[table][pk]; !ok {
			return nil, fmt.Errorf("primary key %q not found on table %q", pk, table)
		}
	}
	return s, nil
}

// Relate declares a named forward relation: fkColumn on table from points
// at table to's primary key. Nullable relations join with LEFT OUTER JOIN.
func (s *Schema) Relate(from, name, fkColumn, to string, nullable bool) error {
	if _, ok := s.tables[from]; !ok {
		return fmt.Errorf("table %q not found in schema", from)
	}
	if _, ok := s.tables[to]; !ok {
		return fmt.Errorf("table %q not found in schema", to)
	}
	if _, ok := s.columns[from][fkColumn]; !ok {
		return fmt.Errorf("column %q not found on table %q", fkColumn, from)
	}
	if s.relations[from] == nil {
		s.relations[from] = make(map[string]types.Relation)
	}
	if _, dup := s.relations[from][name]; dup {
		return fmt.Errorf("relation %q already declared on table %q", name, from)
	}
	s.relations[from][name] = types.Relation{Name: name, Column: fkColumn, Table: to, Nullable: nullable}
	s.relOrder[from] = append(s.relOrder[from], name)
	return nil
}

// HasTable implements types.Meta.
func (s *Schema) HasTable(name string) bool {
	_, ok := s.tables[name]
	return ok
}

// Columns implements types.Meta, preserving declaration order.
func (s *Schema) Columns(table string) []types.Column {
	return s.order[table]
}

// Column implements types.Meta.
func (s *Schema) Column(table, name string) (types.Column, bool) {
	c, ok := s.columns[table][name]
	return c, ok
}

// PrimaryKey implements types.Meta.
func (s *Schema) PrimaryKey(table string) string {
	if pk, ok := s.pks[table]; ok {
		return pk
	}
	return defaultPrimaryKey
}

// Relation implements types.Meta.
func (s *Schema) Relation(table, name string) (types.Relation, bool) {
	r, ok := s.relations[table][name]
	return r, ok
}

// Relations implements types.Meta, preserving declaration order.
func (s *Schema) Relations(table string) []types.Relation {
	names := s.relOrder[table]
	out := make([]types.Relation, 0, len(names))
	for _, n := range names {
		out = append(out, s.relations[table][n])
	}
	return out
}

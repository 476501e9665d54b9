package thibaud_test

import (
	"testing"

	"github.com/zoobzio/dbml"

	"github.com/zoobzio/thibaud"
)

func TestNewSchema_NilProject(t *testing.T) {
	if _, err := thibaud.NewSchema(nil); err == nil {
		t.Fatal("Expected an error for a nil project")
	}
}

func TestNewSchema_ColumnKinds(t *testing.T) {
	s := testSchema(t)

	cases := []struct {
		column string
		kind   thibaud.Kind
	}{
		{"id", thibaud.KindInt},
		{"title", thibaud.KindText},
		{"price", thibaud.KindDecimal},
		{"pages", thibaud.KindInt},
		{"published_at", thibaud.KindDateTime},
	}
	for _, tc := range cases {
		c, ok := s.Column("book", tc.column)
		if !ok {
			t.Errorf("Column %q not found", tc.column)
			continue
		}
		if c.Kind != tc.kind {
			t.Errorf("Column %q: expected kind %v, got %v", tc.column, tc.kind, c.Kind)
		}
	}

	if c, _ := s.Column("author", "active"); c.Kind != thibaud.KindBool {
		t.Errorf("Expected boolean kind for author.active, got %v", c.Kind)
	}
}

func TestNewSchema_PrimaryKeyDefaultsToID(t *testing.T) {
	s := testSchema(t)
	if pk := s.PrimaryKey("book"); pk != "id" {
		t.Errorf("Expected default primary key %q, got %q", "id", pk)
	}
}

func TestNewSchema_WithPrimaryKey(t *testing.T) {
	project := dbml.NewProject("custom")
	table := dbml.NewTable("account")
	table.AddColumn(dbml.NewColumn("account_id", "bigint"))
	table.AddColumn(dbml.NewColumn("email", "varchar"))
	project.AddTable(table)

	s, err := thibaud.NewSchema(project, thibaud.WithPrimaryKey("account", "account_id"))
	if err != nil {
		t.Fatalf("NewSchema failed: %v", err)
	}
	if pk := s.PrimaryKey("account"); pk != "account_id" {
		t.Errorf("Expected primary key %q, got %q", "account_id", pk)
	}
}

func TestNewSchema_RejectsBadPrimaryKey(t *testing.T) {
	project := dbml.NewProject("custom")
	table := dbml.NewTable("account")
	table.AddColumn(dbml.NewColumn("id", "bigint"))
	project.AddTable(table)

	if _, err := thibaud.NewSchema(project, thibaud.WithPrimaryKey("account", "uuid")); err == nil {
		t.Error("Expected an error for a missing key column")
	}
	if _, err := thibaud.NewSchema(project, thibaud.WithPrimaryKey("ghost", "id")); err == nil {
		t.Error("Expected an error for an unknown table")
	}
}

func TestRelate_Validation(t *testing.T) {
	s := testSchema(t)

	if err := s.Relate("ghost", "author", "author_id", "author", false); err == nil {
		t.Error("Expected an error for an unknown source table")
	}
	if err := s.Relate("book", "ghost", "author_id", "ghost", false); err == nil {
		t.Error("Expected an error for an unknown target table")
	}
	if err := s.Relate("book", "again", "ghost_id", "author", false); err == nil {
		t.Error("Expected an error for an unknown foreign-key column")
	}
	if err := s.Relate("book", "author", "author_id", "author", false); err == nil {
		t.Error("Expected an error for a duplicate relation name")
	}
}

func TestRelations_DeclarationOrder(t *testing.T) {
	s := testSchema(t)

	rels := s.Relations("book")
	if len(rels) != 2 {
		t.Fatalf("Expected 2 relations, got %d", len(rels))
	}
	if rels[0].Name != "author" || rels[1].Name != "editor" {
		t.Errorf("Unexpected relation order: %v", rels)
	}
	if rels[0].Nullable || !rels[1].Nullable {
		t.Errorf("Unexpected nullability: %v", rels)
	}
}

func TestColumns_DeclarationOrder(t *testing.T) {
	s := testSchema(t)

	cols := s.Columns("book")
	if len(cols) != 7 {
		t.Fatalf("Expected 7 columns, got %d", len(cols))
	}
	if cols[0].Name != "id" || cols[6].Name != "published_at" {
		t.Errorf("Unexpected column order: %v", cols)
	}
}

func TestQuery_UnknownTable(t *testing.T) {
	s := testSchema(t)

	_, err := s.Query("ghost").Q()
	if err == nil {
		t.Fatal("Expected an error for an unknown table")
	}
}

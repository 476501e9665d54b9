package thibaud_test

import (
	"testing"

	"github.com/zoobzio/dbml"

	"github.com/zoobzio/thibaud"
)

// testSchema declares a small library layout: books point at authors (and
// optionally at an editor, also an author); authors point at a publisher.
func testSchema(t *testing.T) *thibaud.Schema {
	t.Helper()

	project := dbml.NewProject("library")

	authors := dbml.NewTable("author")
	authors.AddColumn(dbml.NewColumn("id", "bigint"))
	authors.AddColumn(dbml.NewColumn("name", "varchar"))
	authors.AddColumn(dbml.NewColumn("age", "int"))
	authors.AddColumn(dbml.NewColumn("active", "boolean"))
	authors.AddColumn(dbml.NewColumn("publisher_id", "bigint"))
	project.AddTable(authors)

	books := dbml.NewTable("book")
	books.AddColumn(dbml.NewColumn("id", "bigint"))
	books.AddColumn(dbml.NewColumn("title", "varchar"))
	books.AddColumn(dbml.NewColumn("price", "numeric"))
	books.AddColumn(dbml.NewColumn("pages", "int"))
	books.AddColumn(dbml.NewColumn("author_id", "bigint"))
	books.AddColumn(dbml.NewColumn("editor_id", "bigint"))
	books.AddColumn(dbml.NewColumn("published_at", "timestamp"))
	project.AddTable(books)

	publishers := dbml.NewTable("publisher")
	publishers.AddColumn(dbml.NewColumn("id", "bigint"))
	publishers.AddColumn(dbml.NewColumn("name", "varchar"))
	project.AddTable(publishers)

	s, err := thibaud.NewSchema(project)
	if err != nil {
		t.Fatalf("NewSchema failed: %v", err)
	}
	if err := s.Relate("book", "author", "author_id", "author", false); err != nil {
		t.Fatalf("Relate failed: %v", err)
	}
	if err := s.Relate("book", "editor", "editor_id", "author", true); err != nil {
		t.Fatalf("Relate failed: %v", err)
	}
	if err := s.Relate("author", "publisher", "publisher_id", "publisher", true); err != nil {
		t.Fatalf("Relate failed: %v", err)
	}
	return s
}

// bookColumns is the select list the base table expands to, in declaration
// order, quoted for postgres.
const bookColumns = `"book"."id", "book"."title", "book"."price", "book"."pages", "book"."author_id", "book"."editor_id", "book"."published_at"`

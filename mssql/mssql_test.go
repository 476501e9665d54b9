package mssql_test

import (
	"testing"

	"github.com/zoobzio/dbml"

	"github.com/zoobzio/thibaud"
	"github.com/zoobzio/thibaud/internal/render"
	"github.com/zoobzio/thibaud/mssql"
	"github.com/zoobzio/thibaud/schema"
)

func TestQuoteName(t *testing.T) {
	d := mssql.New()
	if q := d.QuoteName("book"); q != "[book]" {
		t.Errorf("Unexpected quoting: %s", q)
	}
	if q := d.QuoteName("we]ird"); q != "[we]]ird]" {
		t.Errorf("Embedded brackets must double, got %s", q)
	}
}

func TestCapabilities(t *testing.T) {
	caps := mssql.New().Capabilities()
	if caps.BindStyle != render.BindAt {
		t.Error("Unexpected bind style")
	}
	if caps.LimitStyle != render.OffsetFetch {
		t.Error("Slicing must use OFFSET ... FETCH")
	}
	if caps.MaxIdentifierLength != 128 {
		t.Error("Unexpected identifier limit")
	}
	if !caps.PaginationRequiresOrder {
		t.Error("OFFSET ... FETCH needs an ORDER BY clause")
	}
}

func TestCheck_UnboundedTextIndex(t *testing.T) {
	project := dbml.NewProject("cms")
	table := dbml.NewTable("article")
	table.AddColumn(dbml.NewColumn("id", "bigint"))
	table.AddColumn(dbml.NewColumn("slug", "nvarchar(400)"))
	table.AddColumn(dbml.NewColumn("body", "nvarchar(max)"))
	project.AddTable(table)
	s, err := thibaud.NewSchema(project)
	if err != nil {
		t.Fatalf("NewSchema failed: %v", err)
	}

	bodyIdx, err := schema.NewIndex("body_idx", schema.IndexField{Column: "body"})
	if err != nil {
		t.Fatalf("NewIndex failed: %v", err)
	}
	slugIdx, err := schema.NewIndex("slug_idx", schema.IndexField{Column: "slug"})
	if err != nil {
		t.Fatalf("NewIndex failed: %v", err)
	}

	diags := mssql.New().Check(s, "article", []*schema.Index{slugIdx, bodyIdx})
	msgs := diags.Messages()
	if len(msgs) != 1 {
		t.Fatalf("Expected 1 finding, got %d: %v", len(msgs), msgs)
	}
	if msgs[0].ID != "schema.W020" || msgs[0].Obj != "article.body" {
		t.Errorf("Unexpected finding: %+v", msgs[0])
	}
}

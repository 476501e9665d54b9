package postgres_test

import (
	"testing"

	"github.com/zoobzio/dbml"

	"github.com/zoobzio/thibaud"
	"github.com/zoobzio/thibaud/postgres"
)

func TestQuoteName(t *testing.T) {
	d := postgres.New()
	if q := d.QuoteName("book"); q != `"book"` {
		t.Errorf("Unexpected quoting: %s", q)
	}
	if q := d.QuoteName(`we"ird`); q != `"we""ird"` {
		t.Errorf("Embedded quotes must double, got %s", q)
	}
}

func TestNewWithVersion(t *testing.T) {
	if _, err := postgres.NewWithVersion("nonsense"); err == nil {
		t.Error("Expected an error for an unparseable version")
	}

	pg10, err := postgres.NewWithVersion("10.4")
	if err != nil {
		t.Fatalf("NewWithVersion failed: %v", err)
	}
	if pg10.Capabilities().CoveringIndexes {
		t.Error("Covering indexes arrived in 11")
	}

	pg11, err := postgres.NewWithVersion("11.0")
	if err != nil {
		t.Fatalf("NewWithVersion failed: %v", err)
	}
	if !pg11.Capabilities().CoveringIndexes {
		t.Error("11 supports covering indexes")
	}

	pg13, err := postgres.NewWithVersion("13.2")
	if err != nil {
		t.Fatalf("NewWithVersion failed: %v", err)
	}
	if pg13.Capabilities().CoveringExclusionConstraints {
		t.Error("Covering exclusion constraints arrived in 14")
	}

	if !postgres.New().Capabilities().CoveringExclusionConstraints {
		t.Error("The default version supports covering exclusion constraints")
	}
}

func TestCheck_DecimalLimits(t *testing.T) {
	project := dbml.NewProject("ledger")
	table := dbml.NewTable("entry")
	table.AddColumn(dbml.NewColumn("id", "bigint"))
	table.AddColumn(dbml.NewColumn("amount", "numeric(10, 2)"))
	table.AddColumn(dbml.NewColumn("huge", "numeric(1200, 800)"))
	table.AddColumn(dbml.NewColumn("fine_scale", "numeric(900, 1100)"))
	project.AddTable(table)
	s, err := thibaud.NewSchema(project)
	if err != nil {
		t.Fatalf("NewSchema failed: %v", err)
	}

	diags := postgres.New().Check(s, "entry", nil)
	msgs := diags.Messages()
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 findings, got %d: %v", len(msgs), msgs)
	}
	if msgs[0].ID != "schema.W001" || msgs[0].Obj != "entry.huge" {
		t.Errorf("Unexpected first finding: %+v", msgs[0])
	}
	if msgs[1].ID != "schema.W002" || msgs[1].Obj != "entry.fine_scale" {
		t.Errorf("Unexpected second finding: %+v", msgs[1])
	}
}

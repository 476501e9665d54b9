package checks

import (
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestDiagnostics_Levels(t *testing.T) {
	d := &Diagnostics{}
	if d.HasErrors() || d.HasWarnings() {
		t.Error("Fresh collection should be clean")
	}

	d.PushWarning("schema.W001", "book.price", "precision too high", "")
	if !d.HasWarnings() || d.HasErrors() {
		t.Error("Expected a warning and no errors")
	}

	d.PushError("schema.E001", "book", "table has no columns", "")
	if !d.HasErrors() {
		t.Error("Expected an error")
	}
	if len(d.Messages()) != 2 {
		t.Errorf("Expected 2 messages, got %d", len(d.Messages()))
	}
}

func TestDiagnostics_Merge(t *testing.T) {
	a := &Diagnostics{}
	a.PushWarning("schema.W001", "book.price", "precision too high", "")

	b := &Diagnostics{}
	b.PushError("schema.E001", "author", "bad table", "")

	a.Merge(b)
	a.Merge(nil)
	if len(a.Messages()) != 2 {
		t.Errorf("Expected 2 messages after merge, got %d", len(a.Messages()))
	}
	if !a.HasErrors() {
		t.Error("Merged errors lost")
	}
}

func TestDiagnostics_ToResult(t *testing.T) {
	d := &Diagnostics{}
	d.PushWarning("schema.W001", "book.price", "precision too high", "")
	if err := d.ToResult(); err != nil {
		t.Errorf("Warnings alone should not be an error, got %v", err)
	}

	d.PushError("schema.E001", "book", "broken", "")
	err := d.ToResult()
	if err == nil || err.Error() != "schema.E001: broken (book)" {
		t.Errorf("Unexpected error: %v", err)
	}

	d.PushError("schema.E002", "author", "also broken", "")
	err = d.ToResult()
	if err == nil || err.Error() != "schema.E001: broken (book) and 1 more errors" {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestDiagnostics_Pretty(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	d := &Diagnostics{}
	d.PushWarning("schema.W010", "article.body", "indexed text column has no key length", "set a prefix length")
	d.PushError("schema.E001", "article", "broken", "")

	var sb strings.Builder
	d.Pretty(&sb)

	out := sb.String()
	expected := "WARN  schema.W010 article.body: indexed text column has no key length\n" +
		"      hint: set a prefix length\n" +
		"ERROR schema.E001 article: broken\n"
	if out != expected {
		t.Errorf("Expected output:\n%q\nGot:\n%q", expected, out)
	}
}

func TestLevel_String(t *testing.T) {
	if Warning.String() != "warning" || Error.String() != "error" {
		t.Error("Unexpected level names")
	}
}

// Package integration runs compiled statements against real databases.
package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/zoobzio/dbml"

	"github.com/zoobzio/thibaud"
	sldialect "github.com/zoobzio/thibaud/sqlite"

	slprovider "github.com/zoobzio/thibaud/providers/sqlite"
)

// openSQLite opens an in-memory database through the provider so compiled
// statements and driver errors take the same path as production code.
func openSQLite(t *testing.T) *slprovider.Provider {
	t.Helper()
	p, err := slprovider.Open(":memory:", nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func setupSQLiteLibrary(ctx context.Context, t *testing.T, p *slprovider.Provider) {
	t.Helper()

	exec := func(sql string) {
		if _, err := p.DB().ExecContext(ctx, sql); err != nil {
			t.Fatalf("Failed to execute SQL: %v\nSQL: %s", err, sql)
		}
	}

	exec(`
		CREATE TABLE author (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			active INTEGER DEFAULT 1
		)
	`)
	exec(`
		CREATE TABLE book (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL,
			price REAL NOT NULL,
			pages INTEGER DEFAULT 0,
			author_id INTEGER NOT NULL REFERENCES author(id)
		)
	`)
	exec(`
		INSERT INTO author (id, name, active) VALUES
		(1, 'ann', 1),
		(2, 'ben', 1),
		(3, 'cleo', 0)
	`)
	exec(`
		INSERT INTO book (id, title, price, pages, author_id) VALUES
		(1, 'Dune', 25.00, 412, 1),
		(2, 'Emma', 12.50, 300, 1),
		(3, 'Flux', 30.00, 200, 2),
		(4, 'Gale', 8.00, 150, 3)
	`)
}

// eventSchema models a table with two datetime columns for temporal
// arithmetic.
func eventSchema(t *testing.T) *thibaud.Schema {
	t.Helper()

	project := dbml.NewProject("calendar")
	event := dbml.NewTable("event")
	event.AddColumn(dbml.NewColumn("id", "bigint"))
	event.AddColumn(dbml.NewColumn("name", "varchar"))
	event.AddColumn(dbml.NewColumn("started_at", "timestamp"))
	event.AddColumn(dbml.NewColumn("finished_at", "timestamp"))
	project.AddTable(event)

	s, err := thibaud.NewSchema(project)
	if err != nil {
		t.Fatalf("NewSchema failed: %v", err)
	}
	return s
}

func TestIntegrationSQLite_SelectWhere(t *testing.T) {
	ctx := context.Background()
	p := openSQLite(t)
	setupSQLiteLibrary(ctx, t, p)
	s := librarySchema(t)

	// sqlite keeps the neutral ? placeholders.
	stmt, err := s.Query("book").
		Values("title").
		Where(thibaud.Lt(thibaud.F("price"), thibaud.V(15.0))).
		OrderBy("price").
		SQL(sldialect.New())
	if err != nil {
		t.Fatalf("SQL failed: %v", err)
	}

	rows, err := p.Query(ctx, stmt)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		titles = append(titles, title)
	}

	if len(titles) != 2 || titles[0] != "Gale" || titles[1] != "Emma" {
		t.Errorf("Expected [Gale Emma], got %v", titles)
	}
}

func TestIntegrationSQLite_MaterializedReads(t *testing.T) {
	ctx := context.Background()
	p := openSQLite(t)
	setupSQLiteLibrary(ctx, t, p)
	s := librarySchema(t)

	stmt, err := s.Query("book").OrderBy("id").SQL(sldialect.New())
	if err != nil {
		t.Fatalf("SQL failed: %v", err)
	}

	// sqlite cannot stream past cursor close, so the iterator consumes the
	// whole result set up front and hands out batches from memory.
	it, err := p.Compiler().Query(ctx, p.DB(), stmt, nil)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	total := 0
	for {
		batch, err := it.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if batch == nil {
			break
		}
		for _, row := range batch {
			if len(row) != 5 {
				t.Fatalf("Expected 5 columns per row, got %d", len(row))
			}
			total++
		}
	}
	if total != 4 {
		t.Errorf("Expected 4 rows, got %d", total)
	}
}

func TestIntegrationSQLite_TemporalSubtract(t *testing.T) {
	ctx := context.Background()
	p := openSQLite(t)
	s := eventSchema(t)

	if _, err := p.DB().ExecContext(ctx, `
		CREATE TABLE event (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL
		)
	`); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	if _, err := p.DB().ExecContext(ctx, `
		INSERT INTO event (id, name, started_at, finished_at) VALUES
		(1, 'sprint', '2026-03-01 09:00:00', '2026-03-02 09:00:00')
	`); err != nil {
		t.Fatalf("Failed to seed: %v", err)
	}

	// Datetime subtraction lowers to JULIANDAY arithmetic yielding
	// microseconds.
	stmt, err := s.Query("event").
		Values("name").
		Annotate("took", thibaud.Sub(thibaud.F("finished_at"), thibaud.F("started_at"))).
		SQL(sldialect.New())
	if err != nil {
		t.Fatalf("SQL failed: %v", err)
	}

	rows, err := p.Query(ctx, stmt)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	defer rows.Close()

	if !rows.Next() {
		t.Fatal("Expected one event row")
	}
	var name string
	var took int64
	if err := rows.Scan(&name, &took); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if took != 86400000000 {
		t.Errorf("Expected a one-day span of 86400000000 microseconds, got %d", took)
	}
}

func TestIntegrationSQLite_AggregateCount(t *testing.T) {
	ctx := context.Background()
	p := openSQLite(t)
	setupSQLiteLibrary(ctx, t, p)
	s := librarySchema(t)

	stmt, err := s.Query("book").
		Where(thibaud.Eq(thibaud.F("author.active"), thibaud.V(true))).
		Count(sldialect.New())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}

	rows, err := p.Query(ctx, stmt)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	defer rows.Close()

	if !rows.Next() {
		t.Fatal("Expected a count row")
	}
	var n int64
	if err := rows.Scan(&n); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 books by active authors, got %d", n)
	}
}

func TestIntegrationSQLite_IntegrityError(t *testing.T) {
	ctx := context.Background()
	p := openSQLite(t)
	setupSQLiteLibrary(ctx, t, p)
	s := librarySchema(t)

	stmts, err := s.Insert("author").
		Columns("id", "name", "active").
		Row(4, "ann", true).
		SQL(sldialect.New())
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	_, err = p.Exec(ctx, stmts[0])
	var ie thibaud.IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("Expected IntegrityError for a duplicate author name, got %v", err)
	}
}

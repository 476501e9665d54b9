// Package integration runs compiled statements against real databases.
package integration

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/testcontainers/testcontainers-go/modules/mariadb"

	"github.com/zoobzio/thibaud"
	mydialect "github.com/zoobzio/thibaud/mysql"
	myprovider "github.com/zoobzio/thibaud/providers/mysql"
)

// MariaDBContainer wraps a testcontainers MariaDB instance.
type MariaDBContainer struct {
	container *mariadb.MariaDBContainer
	db        *sql.DB
	connStr   string
}

// Exec executes a SQL statement.
func (mc *MariaDBContainer) Exec(ctx context.Context, t *testing.T, sql string, args ...any) {
	t.Helper()
	_, err := mc.db.ExecContext(ctx, sql, args...)
	if err != nil {
		t.Fatalf("Failed to execute SQL: %v\nSQL: %s", err, sql)
	}
}

// Query executes a query and returns rows.
func (mc *MariaDBContainer) Query(ctx context.Context, t *testing.T, sql string, args ...any) *sql.Rows {
	t.Helper()
	rows, err := mc.db.QueryContext(ctx, sql, args...)
	if err != nil {
		t.Fatalf("Failed to execute query: %v\nSQL: %s", err, sql)
	}
	return rows
}

// setupMariaDBSchema creates the test tables.
func setupMariaDBSchema(ctx context.Context, t *testing.T, mc *MariaDBContainer) {
	t.Helper()

	mc.Exec(ctx, t, `
		CREATE TABLE IF NOT EXISTS author (
			id BIGINT PRIMARY KEY AUTO_INCREMENT,
			name VARCHAR(255) NOT NULL UNIQUE,
			active BOOLEAN DEFAULT true
		)
	`)

	mc.Exec(ctx, t, `
		CREATE TABLE IF NOT EXISTS book (
			id BIGINT PRIMARY KEY AUTO_INCREMENT,
			title VARCHAR(255) NOT NULL,
			price DECIMAL(10,2) NOT NULL,
			pages INT DEFAULT 0,
			author_id BIGINT NOT NULL,
			FOREIGN KEY (author_id) REFERENCES author(id) ON DELETE CASCADE
		)
	`)
}

// seedMariaDBData inserts test data.
func seedMariaDBData(ctx context.Context, t *testing.T, mc *MariaDBContainer) {
	t.Helper()

	mc.Exec(ctx, t, `
		INSERT INTO author (id, name, active) VALUES
		(1, 'ann', true),
		(2, 'ben', true),
		(3, 'cleo', false)
	`)

	mc.Exec(ctx, t, `
		INSERT INTO book (id, title, price, pages, author_id) VALUES
		(1, 'Dune', 25.00, 412, 1),
		(2, 'Emma', 12.50, 300, 1),
		(3, 'Flux', 30.00, 200, 2),
		(4, 'Gale', 8.00, 150, 3)
	`)
}

// cleanupMariaDBData removes all test data to ensure test isolation.
func cleanupMariaDBData(ctx context.Context, t *testing.T, mc *MariaDBContainer) {
	t.Helper()
	mc.Exec(ctx, t, `DELETE FROM book`)
	mc.Exec(ctx, t, `DELETE FROM author`)
}

func mariadbSuite(t *testing.T) (context.Context, *MariaDBContainer, *thibaud.Schema) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	mc := getMariaDBContainer(t)
	setupMariaDBSchema(ctx, t, mc)
	seedMariaDBData(ctx, t, mc)
	t.Cleanup(func() { cleanupMariaDBData(ctx, t, mc) })
	return ctx, mc, librarySchema(t)
}

func TestIntegrationMariaDB_SelectWhere(t *testing.T) {
	ctx, mc, s := mariadbSuite(t)

	stmt, err := s.Query("book").
		Values("title").
		Where(thibaud.Gte(thibaud.F("price"), thibaud.V(12.50))).
		OrderBy("title").
		SQL(mydialect.NewMariaDB())
	if err != nil {
		t.Fatalf("SQL failed: %v", err)
	}

	rows := mc.Query(ctx, t, stmt.SQL, stmt.Params...)
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		titles = append(titles, title)
	}

	if len(titles) != 3 || titles[0] != "Dune" || titles[1] != "Emma" || titles[2] != "Flux" {
		t.Errorf("Expected [Dune Emma Flux], got %v", titles)
	}
}

func TestIntegrationMariaDB_GroupByPrimaryKeyCollapse(t *testing.T) {
	ctx, mc, s := mariadbSuite(t)

	// Annotating forces a GROUP BY; on mysql it collapses to the primary
	// key, so every book stays its own group.
	stmt, err := s.Query("book").
		Values("title").
		Annotate("copies", thibaud.Count()).
		OrderBy("title").
		SQL(mydialect.NewMariaDB())
	if err != nil {
		t.Fatalf("SQL failed: %v", err)
	}

	rows := mc.Query(ctx, t, stmt.SQL, stmt.Params...)
	defer rows.Close()

	groups := 0
	for rows.Next() {
		var title string
		var copies int64
		if err := rows.Scan(&title, &copies); err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		if copies != 1 {
			t.Errorf("Expected 1 row per group for %q, got %d", title, copies)
		}
		groups++
	}
	if groups != 4 {
		t.Errorf("Expected 4 groups, got %d", groups)
	}
}

func TestIntegrationMariaDB_AggregateSum(t *testing.T) {
	ctx, mc, s := mariadbSuite(t)

	stmt, err := s.Query("book").
		Where(thibaud.Eq(thibaud.F("author.name"), thibaud.V("ann"))).
		Aggregate(mydialect.NewMariaDB(), thibaud.Annotation{Alias: "total", Expr: thibaud.Sum(thibaud.F("price"))})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	var total float64
	if err := mc.db.QueryRowContext(ctx, stmt.SQL, stmt.Params...).Scan(&total); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if total != 37.50 {
		t.Errorf("Expected ann's total 37.50, got %v", total)
	}
}

func TestIntegrationMariaDB_UpdateTwoPass(t *testing.T) {
	ctx, mc, s := mariadbSuite(t)

	// mysql cannot self-select the target table inside an UPDATE, so a
	// joined filter needs the affected keys pinned up front.
	plan, err := s.Update("book").
		Set("price", thibaud.V(1.00)).
		Where(thibaud.Eq(thibaud.F("author.name"), thibaud.V("ann"))).
		Plan(mydialect.NewMariaDB())
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if plan.PreSelect == nil {
		t.Fatal("Expected a two-pass plan on mariadb")
	}

	rows := mc.Query(ctx, t, plan.PreSelect.SQL, plan.PreSelect.Params...)
	var keys []any
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			t.Fatalf("Scan failed: %v", err)
		}
		keys = append(keys, id)
	}
	rows.Close()

	for _, stmt := range plan.WithKeys(keys) {
		mc.Exec(ctx, t, stmt.SQL, stmt.Params...)
	}

	var n int64
	if err := mc.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM book WHERE price = 1.00`).Scan(&n); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 repriced books, got %d", n)
	}
}

func TestIntegrationMariaDB_IntegrityError(t *testing.T) {
	ctx, mc, s := mariadbSuite(t)

	p, err := myprovider.OpenMariaDB(mc.connStr, nil)
	if err != nil {
		t.Fatalf("OpenMariaDB failed: %v", err)
	}
	defer p.Close()

	stmts, err := s.Insert("author").
		Columns("name", "active").
		Row("ann", true).
		SQL(mydialect.NewMariaDB())
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	_, err = p.Exec(ctx, stmts[0])
	var ie thibaud.IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("Expected IntegrityError for a duplicate author name, got %v", err)
	}
}

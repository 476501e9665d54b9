// Package integration runs compiled statements against real databases.
package integration

import (
	"context"
	"database/sql"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mariadb"
	"github.com/testcontainers/testcontainers-go/modules/mssql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/zoobzio/dbml"

	"github.com/zoobzio/thibaud"
)

// Shared containers, lazily started on first use. Each suite registers a
// shutdown func so TestMain only tears down what actually ran.
var (
	sharedPgContainer      *PostgresContainer
	sharedMariaDBContainer *MariaDBContainer
	sharedMSSQLContainer   *MSSQLContainer

	pgOnce      sync.Once
	mariadbOnce sync.Once
	mssqlOnce   sync.Once

	shutdownMu    sync.Mutex
	shutdownFuncs []func(context.Context)
)

func onShutdown(fn func(context.Context)) {
	shutdownMu.Lock()
	shutdownFuncs = append(shutdownFuncs, fn)
	shutdownMu.Unlock()
}

// waitForPing polls the handle until the server accepts connections.
func waitForPing(db *sql.DB, attempts int) {
	for i := 0; i < attempts; i++ {
		if err := db.Ping(); err == nil {
			return
		}
		time.Sleep(time.Second)
	}
}

// TestMain tears down whichever shared containers the run started.
func TestMain(m *testing.M) {
	// testing.Short() is not readable here; flag.Parse() has not run yet.
	// Each test checks short mode itself.
	code := m.Run()

	ctx := context.Background()
	for _, fn := range shutdownFuncs {
		fn(ctx)
	}

	os.Exit(code)
}

// librarySchema builds the logical schema shared by all database suites:
// author (1) <- book (N), with the author relation declared non-nullable.
func librarySchema(t *testing.T) *thibaud.Schema {
	t.Helper()

	project := dbml.NewProject("library")

	author := dbml.NewTable("author")
	author.AddColumn(dbml.NewColumn("id", "bigint"))
	author.AddColumn(dbml.NewColumn("name", "varchar"))
	author.AddColumn(dbml.NewColumn("active", "boolean"))
	project.AddTable(author)

	book := dbml.NewTable("book")
	book.AddColumn(dbml.NewColumn("id", "bigint"))
	book.AddColumn(dbml.NewColumn("title", "varchar"))
	book.AddColumn(dbml.NewColumn("price", "numeric"))
	book.AddColumn(dbml.NewColumn("pages", "int"))
	book.AddColumn(dbml.NewColumn("author_id", "bigint"))
	project.AddTable(book)

	s, err := thibaud.NewSchema(project)
	if err != nil {
		t.Fatalf("NewSchema failed: %v", err)
	}
	if err := s.Relate("book", "author", "author_id", "author", false); err != nil {
		t.Fatalf("Relate failed: %v", err)
	}
	return s
}

// getPostgresContainer returns the shared PostgreSQL container, starting it if needed.
func getPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	pgOnce.Do(func() {
		ctx := context.Background()

		container, err := postgres.Run(ctx,
			"docker.io/postgres:16-alpine",
			postgres.WithDatabase("thibaud_test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		if err != nil {
			log.Fatalf("Failed to start postgres container: %v", err)
		}

		connStr, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			log.Fatalf("Failed to get connection string: %v", err)
		}

		conn, err := pgx.Connect(ctx, connStr)
		if err != nil {
			log.Fatalf("Failed to connect to postgres: %v", err)
		}

		sharedPgContainer = &PostgresContainer{
			container: container,
			conn:      conn,
			connStr:   connStr,
		}
		onShutdown(func(ctx context.Context) {
			_ = conn.Close(ctx)
			_ = container.Terminate(ctx)
		})
	})

	return sharedPgContainer
}

// getMariaDBContainer returns the shared MariaDB container, starting it if needed.
func getMariaDBContainer(t *testing.T) *MariaDBContainer {
	t.Helper()

	mariadbOnce.Do(func() {
		ctx := context.Background()

		container, err := mariadb.Run(ctx,
			"docker.io/mariadb:11",
			mariadb.WithDatabase("thibaud_test"),
			mariadb.WithUsername("test"),
			mariadb.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("mariadbd: ready for connections").
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			log.Fatalf("Failed to start mariadb container: %v", err)
		}

		connStr, err := container.ConnectionString(ctx)
		if err != nil {
			log.Fatalf("Failed to get connection string: %v", err)
		}

		db, err := sql.Open("mysql", connStr)
		if err != nil {
			log.Fatalf("Failed to connect to mariadb: %v", err)
		}

		waitForPing(db, 30)

		sharedMariaDBContainer = &MariaDBContainer{
			container: container,
			db:        db,
			connStr:   connStr,
		}
		onShutdown(func(ctx context.Context) {
			_ = db.Close()
			_ = container.Terminate(ctx)
		})
	})

	return sharedMariaDBContainer
}

// getMSSQLContainer returns the shared MSSQL container, starting it if needed.
func getMSSQLContainer(t *testing.T) *MSSQLContainer {
	t.Helper()

	mssqlOnce.Do(func() {
		ctx := context.Background()

		container, err := mssql.Run(ctx,
			"mcr.microsoft.com/mssql/server:2022-latest",
			mssql.WithAcceptEULA(),
			mssql.WithPassword("Test@12345"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("SQL Server is now ready for client connections").
					WithStartupTimeout(120*time.Second),
			),
		)
		if err != nil {
			log.Fatalf("Failed to start mssql container: %v", err)
		}

		connStr, err := container.ConnectionString(ctx)
		if err != nil {
			log.Fatalf("Failed to get connection string: %v", err)
		}

		db, err := sql.Open("sqlserver", connStr)
		if err != nil {
			log.Fatalf("Failed to connect to mssql: %v", err)
		}

		waitForPing(db, 60)

		sharedMSSQLContainer = &MSSQLContainer{
			container: container,
			db:        db,
			connStr:   connStr,
		}
		onShutdown(func(ctx context.Context) {
			_ = db.Close()
			_ = container.Terminate(ctx)
		})
	})

	return sharedMSSQLContainer
}

// Package mysql wires the mysql dialect to a live connection through the
// go-sql-driver driver.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/zoobzio/thibaud/compiler"
	"github.com/zoobzio/thibaud/internal/render"
	mydialect "github.com/zoobzio/thibaud/mysql"
)

// Provider pairs a mysql connection pool with a compiler for its dialect.
type Provider struct {
	db  *sql.DB
	c   *compiler.Compiler
	log *slog.Logger
}

// Open connects to mysql and returns a provider ready to run compiled
// statements.
func Open(dsn string, log *slog.Logger) (*Provider, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Provider{db: db, c: compiler.New(mydialect.New(), log), log: log}, nil
}

// OpenMariaDB is Open with the dialect reporting the mariadb vendor name,
// so vendor-dispatched expressions pick mariadb renderings.
func OpenMariaDB(dsn string, log *slog.Logger) (*Provider, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Provider{db: db, c: compiler.New(mydialect.NewMariaDB(), log), log: log}, nil
}

// DB exposes the underlying pool.
func (p *Provider) DB() *sql.DB { return p.db }

// Compiler exposes the dialect-bound compiler.
func (p *Provider) Compiler() *compiler.Compiler { return p.c }

// Close releases the pool.
func (p *Provider) Close() error { return p.db.Close() }

// Exec runs one statement.
func (p *Provider) Exec(ctx context.Context, stmt compiler.Statement) (sql.Result, error) {
	p.log.Debug("exec", "sql", stmt.SQL)
	res, err := p.db.ExecContext(ctx, stmt.SQL, stmt.Params...)
	return res, wrapErr(err)
}

// ExecAll runs the statements inside a single transaction, rolling back on
// the first failure.
func (p *Provider) ExecAll(ctx context.Context, stmts []compiler.Statement) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		p.log.Debug("exec", "sql", stmt.SQL)
		if _, err := tx.ExecContext(ctx, stmt.SQL, stmt.Params...); err != nil {
			tx.Rollback()
			return wrapErr(err)
		}
	}
	return tx.Commit()
}

// Query runs one statement and returns its rows.
func (p *Provider) Query(ctx context.Context, stmt compiler.Statement) (*sql.Rows, error) {
	p.log.Debug("query", "sql", stmt.SQL)
	rows, err := p.db.QueryContext(ctx, stmt.SQL, stmt.Params...)
	return rows, wrapErr(err)
}

// Error numbers raised by constraint violations.
const (
	errDupEntry        = 1062
	errNoReferencedRow = 1452
	errRowIsReferenced = 1451
	errCheckViolated   = 3819
)

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case errDupEntry, errNoReferencedRow, errRowIsReferenced, errCheckViolated:
			return render.IntegrityError{Err: err}
		}
	}
	return err
}

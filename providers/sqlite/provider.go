// Package sqlite wires the sqlite dialect to a live connection through the
// cgo-free modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	gosqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/zoobzio/thibaud/compiler"
	"github.com/zoobzio/thibaud/internal/render"
	sldialect "github.com/zoobzio/thibaud/sqlite"
)

// Provider pairs a sqlite database handle with a compiler for its dialect.
type Provider struct {
	db  *sql.DB
	c   *compiler.Compiler
	log *slog.Logger
}

// Open opens the database file (":memory:" works) and returns a provider
// ready to run compiled statements.
func Open(dsn string, log *slog.Logger) (*Provider, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Provider{db: db, c: compiler.New(sldialect.New(), log), log: log}, nil
}

// DB exposes the underlying handle.
func (p *Provider) DB() *sql.DB { return p.db }

// Compiler exposes the dialect-bound compiler.
func (p *Provider) Compiler() *compiler.Compiler { return p.c }

// Close releases the handle.
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

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	var slErr *gosqlite.Error
	if errors.As(err, &slErr) && slErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return render.IntegrityError{Err: err}
	}
	return err
}

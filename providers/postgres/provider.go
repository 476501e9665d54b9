// Package postgres wires the postgres dialect to a live connection through
// the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/zoobzio/thibaud/compiler"
	"github.com/zoobzio/thibaud/internal/render"
	pgdialect "github.com/zoobzio/thibaud/postgres"
)

// Provider pairs a postgres connection pool with a compiler for its dialect.
type Provider struct {
	db  *sql.DB
	c   *compiler.Compiler
	log *slog.Logger
}

// Open connects to postgres and returns a provider ready to run compiled
// statements.
func Open(dsn string, log *slog.Logger) (*Provider, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Provider{db: db, c: compiler.New(pgdialect.New(), log), log: log}, nil
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

// wrapErr surfaces constraint violations (SQLSTATE class 23) as
// IntegrityError so callers can branch without driver knowledge.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return render.IntegrityError{Constraint: pgErr.ConstraintName, Err: err}
	}
	return err
}

// Package thibaud lowers logical queries into dialect-specific SQL text and
// parameter lists.
//
// A Schema built from a DBML project supplies table and column metadata;
// expression trees describe filters, annotations and orderings; the
// compiler package turns a query description into (sql, params) for SELECT,
// INSERT, UPDATE, DELETE and aggregate forms, handling joins, GROUP BY
// inference, ORDER BY/DISTINCT interaction, LIMIT/OFFSET, SELECT FOR UPDATE
// and eager loading of related rows.
//
// # Basic Usage
//
//	project := dbml.NewProject("shop")
//	// ... declare tables ...
//	s, err := thibaud.NewSchema(project)
//	if err != nil {
//		return err
//	}
//
//	stmt, err := s.Query("book").
//		Where(thibaud.Gt(thibaud.F("price"), thibaud.V(10))).
//		OrderBy("-published").
//		Limit(20).
//		SQL(postgres.New())
//	// stmt.SQL:    SELECT "book"."id", ... FROM "book" WHERE "book"."price" > $1 ORDER BY "book"."published" DESC LIMIT 20
//	// stmt.Params: []any{10}
//
// # Dialects
//
// Dialect definitions live in the postgres, sqlite, mysql, mssql and oracle
// packages. Each supplies identifier quoting, a capability set that gates
// feature-dependent SQL shapes, and static schema checks.
//
// # Constraints and indexes
//
// The schema package declares check/unique/exclusion constraints and
// indexes, compiles them to DDL through the same expression renderer, and
// validates in-memory instances against the live table before a save.
package thibaud

import (
	"log/slog"

	"github.com/zoobzio/thibaud/compiler"
	"github.com/zoobzio/thibaud/internal/render"
	"github.com/zoobzio/thibaud/internal/types"
)

// Expression is a node in the scalar expression tree.
type Expression = types.Expression

// Query is the logical description of one statement.
type Query = types.Query

// Statement is compiled SQL with its parameters.
type Statement = compiler.Statement

// Dialect supplies quoting and capabilities for one SQL dialect.
type Dialect = render.Dialect

// Capabilities describes a dialect's feature set.
type Capabilities = render.Capabilities

// Kind classifies an expression's output type.
type Kind = types.Kind

// Re-exported kinds for explicit output-type declarations.
const (
	KindUnknown  = types.KindUnknown
	KindBool     = types.KindBool
	KindInt      = types.KindInt
	KindFloat    = types.KindFloat
	KindDecimal  = types.KindDecimal
	KindText     = types.KindText
	KindBytes    = types.KindBytes
	KindDate     = types.KindDate
	KindTime     = types.KindTime
	KindDateTime = types.KindDateTime
	KindDuration = types.KindDuration
	KindJSON     = types.KindJSON
)

// ErrEmptyResultSet signals a query statically known to produce no rows.
var ErrEmptyResultSet = render.ErrEmptyResultSet

// Error types surfaced by compilation.
type (
	FieldError               = render.FieldError
	ValueError               = render.ValueError
	UnsupportedFeatureError  = render.UnsupportedFeatureError
	TransactionRequiredError = render.TransactionRequiredError
	IntegrityError           = render.IntegrityError
)

// NewCompiler returns a fresh compiler for the dialect. Compilers are
// single-use per statement and not safe for concurrent sharing.
func NewCompiler(d Dialect, log *slog.Logger) *compiler.Compiler {
	return compiler.New(d, log)
}

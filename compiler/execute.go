package compiler

import (
	"context"
	"database/sql"
)

// defaultChunkSize is the batch size handed out per iterator step.
const defaultChunkSize = 100

// Queryer is the slice of database/sql the compiler needs to run a SELECT.
// *sql.DB, *sql.Tx and *sql.Conn all satisfy it.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Execer is the slice needed to run a mutating statement.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ColumnConverter post-processes one scanned column value. Converters chain:
// driver-level first, then column-level.
type ColumnConverter func(v any) (any, error)

// ResultIter yields decoded rows in batches. When the dialect cannot stream
// rows past cursor close, the full result set is materialized up front and
// the cursor released immediately.
type ResultIter struct {
	rows  *sql.Rows
	convs [][]ColumnConverter
	width int
	chunk int

	materialized [][]any
	pos          int
	done         bool
}

// Query runs a compiled SELECT. convs holds one converter chain per select
// column; a nil chain passes the scanned value through.
func (c *Compiler) Query(ctx context.Context, db Queryer, stmt Statement, convs [][]ColumnConverter) (*ResultIter, error) {
	rows, err := db.QueryContext(ctx, stmt.SQL, stmt.Params...)
	if err != nil {
		return nil, err
	}
	names, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}
	it := &ResultIter{rows: rows, convs: convs, width: len(names), chunk: defaultChunkSize}

	if !c.caps.ChunkedReads {
		defer rows.Close()
		for {
			row, err := it.scanRow()
			if err != nil {
				return nil, err
			}
			if row == nil {
				break
			}
			it.materialized = append(it.materialized, row)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		it.rows = nil
	}
	return it, nil
}

// Next returns the next batch of rows, or nil when exhausted.
func (it *ResultIter) Next() ([][]any, error) {
	if it.done {
		return nil, nil
	}
	if it.rows == nil {
		end := it.pos + it.chunk
		if end > len(it.materialized) {
			end = len(it.materialized)
		}
		batch := it.materialized[it.pos:end]
		it.pos = end
		if len(batch) == 0 {
			it.done = true
			return nil, nil
		}
		return batch, nil
	}

	batch := make([][]any, 0, it.chunk)
	for len(batch) < it.chunk {
		row, err := it.scanRow()
		if err != nil {
			return nil, err
		}
		if row == nil {
			it.done = true
			if err := it.rows.Err(); err != nil {
				return nil, err
			}
			break
		}
		batch = append(batch, row)
	}
	if len(batch) == 0 {
		return nil, nil
	}
	return batch, nil
}

func (it *ResultIter) scanRow() ([]any, error) {
	if !it.rows.Next() {
		return nil, nil
	}
	raw := make([]any, it.width)
	ptrs := make([]any, it.width)
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := it.rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	for i, v := range raw {
		if i >= len(it.convs) {
			break
		}
		for _, conv := range it.convs[i] {
			cv, err := conv(v)
			if err != nil {
				return nil, err
			}
			v = cv
		}
		raw[i] = v
	}
	return raw, nil
}

// Close releases the underlying cursor. Safe on materialized iterators.
func (it *ResultIter) Close() error {
	if it.rows == nil {
		return nil
	}
	return it.rows.Close()
}

package render

// RowLockingLevel indicates the level of row-level locking support.
type RowLockingLevel int

const (
	RowLockingNone  RowLockingLevel = iota // No row locking
	RowLockingBasic                        // FOR UPDATE, FOR SHARE
	RowLockingFull                         // + FOR NO KEY UPDATE, FOR KEY SHARE
)

// BindStyle describes how a dialect marks statement parameters.
type BindStyle int

const (
	BindQuestion BindStyle = iota // ?
	BindDollar                    // $1, $2, ...
	BindAt                        // @p1, @p2, ...
	BindColon                     // :1, :2, ...
)

// LimitStyle describes how a dialect expresses result pagination.
type LimitStyle int

const (
	LimitOffset LimitStyle = iota // LIMIT n OFFSET m
	OffsetFetch                   // OFFSET m ROWS FETCH NEXT n ROWS ONLY
)

// Capabilities describes the SQL features supported by a dialect.
type Capabilities struct {
	// GroupByPrimaryKey reports whether grouping by a table's primary key
	// functionally determines the table's other columns, allowing an
	// inferred GROUP BY list to collapse down to the key.
	GroupByPrimaryKey bool

	// ReturningOnInsert reports whether a single-row INSERT can hand back
	// the generated key in the same statement. ReturningFormat is the
	// fragment appended to the statement, with %s standing for the quoted
	// key column.
	ReturningOnInsert bool
	ReturningFormat   string

	// BulkInsert reports whether multiple VALUES tuples may share one
	// INSERT statement.
	BulkInsert bool

	// UpdateSelfSelect reports whether an UPDATE may select from the table
	// it mutates in the same statement. Without it, multi-table updates
	// pin the affected key set with a separate pre-select.
	UpdateSelfSelect bool

	// ChunkedReads reports whether the driver can stream result rows.
	// Without it, result sets are materialized before the cursor closes.
	ChunkedReads bool

	RowLocking RowLockingLevel // FOR UPDATE/SHARE support
	LockNowait bool            // FOR UPDATE NOWAIT

	// DistinctOnFields reports DISTINCT ON (col, ...) support.
	DistinctOnFields bool

	ExpressionIndexes            bool // indexes over arbitrary expressions
	CoveringIndexes              bool // INCLUDE columns on indexes/unique constraints
	DeferrableConstraints        bool // DEFERRABLE INITIALLY DEFERRED/IMMEDIATE
	ExclusionConstraints         bool // EXCLUDE USING ...
	CoveringExclusionConstraints bool // INCLUDE columns on exclusion constraints
	PartialIndexes               bool // WHERE clauses on indexes/constraints

	// NativeDuration reports whether the dialect has an interval type, so
	// temporal subtraction needs no arithmetic reformulation.
	NativeDuration bool

	BindStyle  BindStyle
	LimitStyle LimitStyle

	// PaginationRequiresOrder reports that OFFSET/FETCH is only legal
	// after an ORDER BY clause, so unordered pagination needs a synthetic
	// constant ordering.
	PaginationRequiresOrder bool

	// MaxIdentifierLength caps generated names (0 means unlimited).
	MaxIdentifierLength int

	// MaxDecimalPrecision and MaxDecimalScale cap DECIMAL columns before
	// the engine silently degrades storage (0 means unlimited).
	MaxDecimalPrecision int
	MaxDecimalScale     int
}

// Dialect is the contract a SQL dialect definition fulfills. The compiler
// consults it for quoting, parameter style, and feature gating; it never
// renders SQL itself.
type Dialect interface {
	// Name identifies the dialect ("postgres", "sqlite", ...). Expression
	// nodes use it to select vendor-specific renderings.
	Name() string

	// QuoteName quotes a single identifier.
	QuoteName(name string) string

	Capabilities() Capabilities
}

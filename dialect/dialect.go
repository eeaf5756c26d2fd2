package dialect

import "context"

// Dialect names for supported SQL dialects.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// ExecQuerier wraps the two database operations used by the mapper.
//
// Exec executes a statement for effect. v is either nil or a pointer to a
// result value understood by the implementation (*sql.Result for dialect/sql).
// Query executes a statement returning rows into v (*sql.Rows for dialect/sql).
type ExecQuerier interface {
	Exec(ctx context.Context, query string, args, v any) error
	Query(ctx context.Context, query string, args, v any) error
}

// Conn is a single open connection scoped to one mapper operation.
// It must be closed on every exit path.
type Conn interface {
	ExecQuerier
	Dialect() string
	Close() error
}

// ConnFactory produces a new open connection.
type ConnFactory func(ctx context.Context) (Conn, error)

// Driver is the interface implemented by connection providers.
type Driver interface {
	Acquire(ctx context.Context) (Conn, error)
	Dialect() string
	Close() error
}

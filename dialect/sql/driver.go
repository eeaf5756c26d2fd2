package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/syssam/tablemap/dialect"
)

// validIdentifierRe validates SQL identifiers (alphanumeric, underscores, dots for schema.name)
var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// isValidIdentifier checks if the string is a valid SQL identifier.
func isValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && validIdentifierRe.MatchString(s)
}

// ValidIdentifier reports whether s may be interpolated into a statement as
// a table or column name.
func ValidIdentifier(s string) bool { return isValidIdentifier(s) }

// Driver is a dialect.Driver implementation for SQL based databases.
// Every Acquire pins one connection of the underlying pool.
type Driver struct {
	db      *sql.DB
	dialect string
}

// NewDriver creates a new Driver with the given *sql.DB and dialect.
func NewDriver(dialect string, db *sql.DB) *Driver {
	return &Driver{dialect: dialect, db: db}
}

// Open wraps the database/sql.Open method and returns a Driver.
func Open(dialect, source string) (*Driver, error) {
	db, err := sql.Open(dialect, source)
	if err != nil {
		return nil, err
	}
	return NewDriver(dialect, db), nil
}

// OpenDB wraps the given database/sql.DB method with a Driver.
func OpenDB(dialect string, db *sql.DB) *Driver {
	return NewDriver(dialect, db)
}

// DB returns the underlying *sql.DB instance.
func (d *Driver) DB() *sql.DB { return d.db }

// Dialect implements the dialect.Driver interface.
func (d *Driver) Dialect() string {
	// The driver name may carry a suffix, e.g. "sqlite3" or "postgres-otel".
	for _, name := range []string{dialect.MySQL, dialect.SQLite, dialect.Postgres} {
		if strings.HasPrefix(d.dialect, name) {
			return name
		}
	}
	return d.dialect
}

// Acquire pins a single connection from the pool. The caller owns the
// returned Conn and must close it.
func (d *Driver) Acquire(ctx context.Context) (dialect.Conn, error) {
	c, err := d.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: acquire connection: %w", err)
	}
	return &Conn{ExecQuerier: c, dialect: d.Dialect(), closer: c.Close}, nil
}

// Close closes the underlying connection pool.
func (d *Driver) Close() error { return d.db.Close() }

// ExecQuerier wraps the standard Exec and Query methods.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn implements dialect.Conn given an ExecQuerier. It is usually backed
// by a *sql.Conn, but a *sql.Tx works as well.
type Conn struct {
	ExecQuerier
	dialect string
	closer  func() error
}

// NewConn returns a Conn over the given ExecQuerier. The closer may be nil
// when the caller manages the lifetime of ex itself, e.g. for a *sql.Tx.
func NewConn(dialect string, ex ExecQuerier, closer func() error) *Conn {
	return &Conn{ExecQuerier: ex, dialect: dialect, closer: closer}
}

// Dialect returns the dialect name of the connection.
func (c *Conn) Dialect() string { return c.dialect }

// Close releases the connection back to the pool.
func (c *Conn) Close() error {
	if c.closer == nil {
		return nil
	}
	cf := c.closer
	c.closer = nil
	return cf()
}

// Exec implements the dialect.Exec method.
func (c *Conn) Exec(ctx context.Context, query string, args, v any) error {
	argv, ok := args.([]any)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect []any for args", args)
	}
	switch v := v.(type) {
	case nil:
		if _, err := c.ExecContext(ctx, query, argv...); err != nil {
			return fmt.Errorf("dialect/sql: exec: %w", err)
		}
	case *sql.Result:
		res, err := c.ExecContext(ctx, query, argv...)
		if err != nil {
			return fmt.Errorf("dialect/sql: exec: %w", err)
		}
		*v = res
	default:
		return fmt.Errorf("dialect/sql: invalid type %T. expect *sql.Result", v)
	}
	return nil
}

// Query implements the dialect.Query method.
func (c *Conn) Query(ctx context.Context, query string, args, v any) error {
	vr, ok := v.(*Rows)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect *sql.Rows", v)
	}
	argv, ok := args.([]any)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect []any for args", args)
	}
	rows, err := c.QueryContext(ctx, query, argv...)
	if err != nil {
		return fmt.Errorf("dialect/sql: query: %w", err)
	}
	*vr = Rows{rows}
	return nil
}

// ExecAffected executes a statement for effect and returns the number of
// affected rows.
func ExecAffected(ctx context.Context, ex dialect.ExecQuerier, query string, args []any) (int64, error) {
	var res sql.Result
	if err := ex.Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("dialect/sql: rows affected: %w", err)
	}
	return n, nil
}

// ErrNoScalar is returned by QueryScalar when the statement yields no row.
var ErrNoScalar = errors.New("dialect/sql: scalar query returned no rows")

// QueryScalar executes a statement expected to yield a single value and
// scans the first column of the first row into dest.
func QueryScalar(ctx context.Context, ex dialect.ExecQuerier, query string, args []any, dest any) (rerr error) {
	rows := &Rows{}
	if err := ex.Query(ctx, query, args, rows); err != nil {
		return err
	}
	defer func() { rerr = errors.Join(rerr, rows.Close()) }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return fmt.Errorf("dialect/sql: scalar: %w", err)
		}
		return ErrNoScalar
	}
	if err := rows.Scan(dest); err != nil {
		return fmt.Errorf("dialect/sql: scalar: %w", err)
	}
	return nil
}

// ScanValues reads all remaining rows into raw value slices and closes the
// cursor. Column values are returned as produced by the database driver.
func ScanValues(rows ColumnScanner) (values [][]any, rerr error) {
	defer func() { rerr = errors.Join(rerr, rows.Close()) }()
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: columns: %w", err)
	}
	for rows.Next() {
		row := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range row {
			dest[i] = &row[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("dialect/sql: scan: %w", err)
		}
		values = append(values, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dialect/sql: rows: %w", err)
	}
	return values, nil
}

// LastInsertIDQuery returns the statement reading the primary key generated
// by the previous INSERT on the same connection.
func LastInsertIDQuery(name string) string {
	switch name {
	case dialect.Postgres:
		return "SELECT lastval()"
	case dialect.SQLite:
		return "SELECT last_insert_rowid()"
	default:
		return "SELECT LAST_INSERT_ID()"
	}
}

var (
	_ dialect.Driver = (*Driver)(nil)
	_ dialect.Conn   = (*Conn)(nil)
)

type (
	// Rows wraps the sql.Rows to avoid locks copy.
	Rows struct{ ColumnScanner }
	// Result is an alias to sql.Result.
	Result = sql.Result
	// NullInt64 is an alias to sql.NullInt64.
	NullInt64 = sql.NullInt64
)

// ColumnScanner is the interface that wraps the standard
// sql.Rows methods used for scanning database rows.
type ColumnScanner interface {
	Close() error
	ColumnTypes() ([]*sql.ColumnType, error)
	Columns() ([]string, error)
	Err() error
	Next() bool
	NextResultSet() bool
	Scan(dest ...any) error
}

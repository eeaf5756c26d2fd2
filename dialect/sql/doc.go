// Package sql provides the database/sql backed implementation of the
// dialect collaborator together with the statement builders used by the
// mapper.
//
// # Connections
//
// A Driver wraps a *sql.DB. Acquire pins one connection for the duration of
// an operation, which matters for statements such as LAST_INSERT_ID() that
// only see the session they run on:
//
//	drv, err := sql.Open(dialect.MySQL, dsn)
//	conn, err := drv.Acquire(ctx)
//	defer conn.Close()
//
// The three database operations consumed by the mapper are:
//
//   - ExecAffected: execute for effect, returning the affected row count
//   - QueryScalar: execute and read a single value
//   - Conn.Query: execute and return a row cursor
//
// # Builder Types
//
//   - InsertBuilder: INSERT INTO t (c, ...) VALUES (?, ...)
//   - UpdateBuilder: UPDATE t SET c = ?, ... WHERE pk = ?
//   - DeleteBuilder: DELETE FROM t WHERE pk = ?
//   - Selector: SELECT c, ... FROM t [WHERE c = ?]
//
// Identifiers are validated and quoted for the dialect, values are always
// bound through placeholders ("?" for MySQL and SQLite, "$n" for Postgres):
//
//	query, args := sql.Dialect(dialect.Postgres).
//	    Select("id", "name").
//	    From("users").
//	    Where(sql.EQ("id", 1)).
//	    Query()
//	// SELECT "id", "name" FROM "users" WHERE "id" = $1
//
// # Instrumentation
//
// StatsDriver counts statements and reports slow ones, DebugDriver logs
// every statement. Both wrap any dialect.Driver.
package sql

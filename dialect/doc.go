// Package dialect defines the database collaborator consumed by tablemap.
//
// The mapper never talks to database/sql directly. It asks a ConnFactory for
// one open connection per operation and issues statements through the
// ExecQuerier methods of that connection:
//
//	type ExecQuerier interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	}
//
// # Supported Dialects
//
//   - Postgres: PostgreSQL database
//   - MySQL: MySQL/MariaDB database
//   - SQLite: SQLite database
//
// The dialect decides placeholder syntax, identifier quoting and the
// statement used to read back an auto-generated primary key.
//
// # Usage
//
//	drv, err := sql.Open(dialect.SQLite, "file:shop.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
//	articles := tablemap.NewFactory[Article](drv.Acquire)
//
// # Sub-packages
//
//   - dialect/sql: database/sql backed driver, statement builders
//   - dialect/sql/sqlerr: constraint error classification
package dialect

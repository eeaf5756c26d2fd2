package sql

import (
	"context"
	"errors"
	"testing"

	"github.com/syssam/tablemap/dialect"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOpenDB tests the OpenDB function with different dialects.
func TestOpenDB(t *testing.T) {
	tests := []struct {
		name    string
		dialect string
	}{
		{"Postgres", dialect.Postgres},
		{"MySQL", dialect.MySQL},
		{"SQLite", dialect.SQLite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			drv := OpenDB(tt.dialect, db)
			assert.NotNil(t, drv)
			assert.Equal(t, tt.dialect, drv.Dialect())
			assert.Same(t, db, drv.DB())
		})
	}
}

func TestDialectSuffix(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, dialect.SQLite, OpenDB("sqlite3", db).Dialect())
	assert.Equal(t, "oracle", OpenDB("oracle", db).Dialect())
}

// TestConnQuery tests query operations on an acquired connection.
func TestConnQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)
	ctx := context.Background()

	t.Run("simple_query", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name FROM users").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
				AddRow(1, "Alice").
				AddRow(2, "Bob"))

		conn, err := drv.Acquire(ctx)
		require.NoError(t, err)
		defer conn.Close()

		rows := &Rows{}
		require.NoError(t, conn.Query(ctx, "SELECT id, name FROM users", []any{}, rows))
		values, err := ScanValues(rows)
		require.NoError(t, err)
		require.Len(t, values, 2)
		assert.Equal(t, "Bob", values[1][1])
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query_error", func(t *testing.T) {
		mock.ExpectQuery("SELECT").WillReturnError(errors.New("database error"))

		conn, err := drv.Acquire(ctx)
		require.NoError(t, err)
		defer conn.Close()

		err = conn.Query(ctx, "SELECT", []any{}, &Rows{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dialect/sql: query")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid_destination", func(t *testing.T) {
		conn, err := drv.Acquire(ctx)
		require.NoError(t, err)
		defer conn.Close()

		err = conn.Query(ctx, "SELECT 1", []any{}, nil)
		require.Error(t, err)
		err = conn.Query(ctx, "SELECT 1", nil, &Rows{})
		require.Error(t, err)
	})
}

// TestExecAffected tests execute-for-effect.
func TestExecAffected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)
	ctx := context.Background()
	conn, err := drv.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectExec("UPDATE users SET name = \\$1 WHERE id = \\$2").
		WithArgs("Alice", 1).
		WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := ExecAffected(ctx, conn, "UPDATE users SET name = $1 WHERE id = $2", []any{"Alice", 1})
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	mock.ExpectExec("DELETE").WillReturnError(errors.New("constraint violation"))
	_, err = ExecAffected(ctx, conn, "DELETE FROM users", []any{})
	require.Error(t, err)

	err = conn.Exec(ctx, "DELETE FROM users", []any{}, new(int))
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestQueryScalar tests single value queries.
func TestQueryScalar(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.MySQL, db)
	ctx := context.Background()
	conn, err := drv.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectQuery("SELECT LAST_INSERT_ID()").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	var id int64
	require.NoError(t, QueryScalar(ctx, conn, LastInsertIDQuery(dialect.MySQL), []any{}, &id))
	assert.EqualValues(t, 42, id)

	mock.ExpectQuery("SELECT LAST_INSERT_ID()").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	err = QueryScalar(ctx, conn, LastInsertIDQuery(dialect.MySQL), []any{}, &id)
	assert.ErrorIs(t, err, ErrNoScalar)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLastInsertIDQuery(t *testing.T) {
	assert.Equal(t, "SELECT LAST_INSERT_ID()", LastInsertIDQuery(dialect.MySQL))
	assert.Equal(t, "SELECT last_insert_rowid()", LastInsertIDQuery(dialect.SQLite))
	assert.Equal(t, "SELECT lastval()", LastInsertIDQuery(dialect.Postgres))
}

func TestConnCloseOnce(t *testing.T) {
	calls := 0
	c := NewConn(dialect.SQLite, nil, func() error {
		calls++
		return nil
	})
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, 1, calls)
	assert.NoError(t, NewConn(dialect.SQLite, nil, nil).Close())
}

// TestNullValues tests handling of NULL values.
func TestNullValues(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)
	ctx := context.Background()
	conn, err := drv.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"name", "email"}).
			AddRow("Alice", nil).
			AddRow(nil, "bob@example.com"))

	rows := &Rows{}
	require.NoError(t, conn.Query(ctx, "SELECT name, email FROM users", []any{}, rows))
	values, err := ScanValues(rows)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Nil(t, values[0][1])
	assert.Nil(t, values[1][0])
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestIsValidIdentifier tests SQL identifier validation.
func TestIsValidIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"valid_simple", "foo", true},
		{"valid_with_underscore", "foo_bar", true},
		{"valid_with_number", "foo123", true},
		{"valid_with_dot", "schema.table", true},
		{"valid_starting_underscore", "_private", true},
		{"invalid_empty", "", false},
		{"invalid_starting_number", "123foo", false},
		{"invalid_with_space", "foo bar", false},
		{"invalid_with_quote", "foo'bar", false},
		{"invalid_with_semicolon", "foo;DROP TABLE", false},
		{"invalid_with_dash", "foo-bar", false},
		{"invalid_too_long", string(make([]byte, 129)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidIdentifier(tt.input))
		})
	}
}

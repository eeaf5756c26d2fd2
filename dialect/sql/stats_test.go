package sql

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/syssam/tablemap/dialect"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var slow atomic.Int64
	drv := NewStatsDriver(OpenDB(dialect.SQLite, db),
		WithSlowThreshold(time.Nanosecond),
		WithSlowQueryHook(func(context.Context, string, []any, time.Duration) {
			slow.Add(1)
		}),
	)
	ctx := context.Background()
	conn, err := drv.Acquire(ctx)
	require.NoError(t, err)

	mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	_, err = ExecAffected(ctx, conn, "INSERT INTO t (a) VALUES (?)", []any{1})
	require.NoError(t, err)
	var id int64
	require.NoError(t, QueryScalar(ctx, conn, "SELECT id FROM t", []any{}, &id))
	require.NoError(t, conn.Close())
	require.NoError(t, mock.ExpectationsWereMet())

	s := drv.QueryStats().Stats()
	assert.EqualValues(t, 1, s.TotalExecs)
	assert.EqualValues(t, 1, s.TotalQueries)
	assert.EqualValues(t, 1, s.Connections)
	assert.EqualValues(t, 2, s.SlowQueries)
	assert.EqualValues(t, 2, slow.Load())
	assert.Contains(t, s.String(), "queries=1 execs=1")

	drv.QueryStats().Reset()
	assert.Zero(t, drv.QueryStats().Stats().TotalQueries)
	assert.Zero(t, StatsSnapshot{}.AvgQueryDuration())

	drv.SetSlowThreshold(time.Second)
	assert.Equal(t, time.Second, drv.SlowThreshold())

	// A zero threshold disables detection.
	drv.SetSlowThreshold(0)
	conn, err = drv.Acquire(ctx)
	require.NoError(t, err)
	mock.ExpectExec("DELETE").WillReturnResult(sqlmock.NewResult(0, 1))
	_, err = ExecAffected(ctx, conn, "DELETE FROM t", []any{})
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	assert.Zero(t, drv.QueryStats().Stats().SlowQueries)
	assert.EqualValues(t, 2, slow.Load())
}

func TestDebugDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var lines []string
	drv := NewDebugDriver(OpenDB(dialect.MySQL, db), DebugWithLog(func(_ context.Context, v ...any) {
		for _, s := range v {
			lines = append(lines, s.(string))
		}
	}))
	ctx := context.Background()
	conn, err := drv.Acquire(ctx)
	require.NoError(t, err)

	mock.ExpectExec("DELETE").WillReturnResult(sqlmock.NewResult(0, 1))
	_, err = ExecAffected(ctx, conn, "DELETE FROM t WHERE id = ?", []any{5})
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	assert.Equal(t, []string{
		"acquire connection",
		"exec: DELETE FROM t WHERE id = ? args: [5]",
		"release connection",
	}, lines)
}

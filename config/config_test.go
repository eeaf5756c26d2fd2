package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/tablemap/dialect"
	"github.com/syssam/tablemap/dialect/sql"
)

func memFs(t *testing.T, files map[string]string) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
	prev := AppFs
	AppFs = fs
	t.Cleanup(func() { AppFs = prev })
}

func TestLoad(t *testing.T) {
	t.Run("File", func(t *testing.T) {
		memFs(t, map[string]string{
			"/etc/shop/tablemap.yaml": "driver: sqlite\ndsn: file:shop.db\ndebug: true\nslow_threshold: 1s\nmax_open_conns: 4\n",
		})
		cfg, err := Load("/etc/shop")
		require.NoError(t, err)
		assert.Equal(t, dialect.SQLite, cfg.Driver)
		assert.Equal(t, "file:shop.db", cfg.DSN)
		assert.True(t, cfg.Debug)
		assert.Equal(t, time.Second, cfg.SlowThreshold)
		assert.Equal(t, 4, cfg.MaxOpenConns)
		assert.Equal(t, 2, cfg.MaxIdleConns)
	})

	t.Run("EnvOverridesFile", func(t *testing.T) {
		memFs(t, map[string]string{
			"/etc/shop/tablemap.yaml": "driver: sqlite\ndsn: file:shop.db\n",
		})
		t.Setenv("TABLEMAP_DSN", "file:other.db")
		t.Setenv("TABLEMAP_SLOW_THRESHOLD", "50ms")
		cfg, err := Load("/etc/shop")
		require.NoError(t, err)
		assert.Equal(t, "file:other.db", cfg.DSN)
		assert.Equal(t, 50*time.Millisecond, cfg.SlowThreshold)
	})

	t.Run("DatabaseURL", func(t *testing.T) {
		memFs(t, nil)
		t.Setenv("TABLEMAP_DRIVER", "postgres")
		t.Setenv("DATABASE_URL", "postgres://localhost/shop?sslmode=disable")
		cfg, err := Load("/nowhere")
		require.NoError(t, err)
		assert.Equal(t, dialect.Postgres, cfg.Driver)
		assert.Equal(t, "postgres://localhost/shop?sslmode=disable", cfg.DSN)
	})

	t.Run("NoDSN", func(t *testing.T) {
		memFs(t, nil)
		t.Setenv("DATABASE_URL", "")
		_, err := Load("/nowhere")
		assert.ErrorContains(t, err, "no dsn")
	})

	t.Run("BadFile", func(t *testing.T) {
		memFs(t, map[string]string{
			"/etc/shop/tablemap.yaml": "driver: [sqlite\n",
		})
		_, err := Load("/etc/shop")
		assert.ErrorContains(t, err, "read config")
	})
}

func TestValidate(t *testing.T) {
	t.Run("MySQLParseTime", func(t *testing.T) {
		cfg := &Config{Driver: dialect.MySQL, DSN: "shop:secret@tcp(localhost:3306)/shop"}
		require.NoError(t, cfg.Validate())
		assert.Contains(t, cfg.DSN, "parseTime=true")
	})

	t.Run("MySQLBadDSN", func(t *testing.T) {
		cfg := &Config{Driver: dialect.MySQL, DSN: "shop@localhost/shop"}
		assert.ErrorContains(t, cfg.Validate(), "parse mysql dsn")
	})

	t.Run("UnsupportedDriver", func(t *testing.T) {
		cfg := &Config{Driver: "oracle", DSN: "x"}
		assert.ErrorContains(t, cfg.Validate(), `unsupported driver "oracle"`)
	})
}

func TestOpen(t *testing.T) {
	cfg := &Config{
		Driver:        dialect.SQLite,
		DSN:           "file:" + filepath.Join(t.TempDir(), "open.db"),
		Debug:         true,
		SlowThreshold: time.Minute,
		MaxIdleConns:  1,
	}
	db, err := Open(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	assert.Equal(t, dialect.SQLite, db.Dialect())

	ctx := context.Background()
	conn, err := db.Acquire(ctx)
	require.NoError(t, err)
	var n sql.NullInt64
	require.NoError(t, sql.QueryScalar(ctx, conn, "SELECT 1", []any{}, &n))
	require.NoError(t, conn.Close())
	assert.Equal(t, int64(1), n.Int64)

	snap := db.Stats.Stats()
	assert.Equal(t, int64(1), snap.Connections)
	assert.Equal(t, int64(1), snap.TotalQueries)
	assert.Zero(t, snap.SlowQueries)
}

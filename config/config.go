// Package config loads database settings for tablemap programs and opens
// the matching driver.
//
// Settings are read, lowest priority first, from defaults, a tablemap.yaml
// file, a .env file in the working directory and TABLEMAP_* environment
// variables:
//
//	driver: sqlite
//	dsn: file:shop.db?_pragma=foreign_keys(1)
//	debug: true
//	slow_threshold: 200ms
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/syssam/tablemap/dialect"
	"github.com/syssam/tablemap/dialect/sql"

	// Register the database/sql drivers of the supported dialects.
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// AppFs is the filesystem config and .env files are looked up in.
var AppFs = afero.NewOsFs()

// Config holds the database configuration.
type Config struct {
	// Driver is the database/sql driver name: mysql, sqlite or postgres.
	Driver string `mapstructure:"driver"`
	// DSN is the data source name passed to the driver.
	DSN string `mapstructure:"dsn"`
	// Debug logs every statement at debug level.
	Debug bool `mapstructure:"debug"`
	// SlowThreshold is the duration above which statements are logged as
	// slow. Zero disables slow statement logging.
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
	// MaxOpenConns limits the pool size. Zero means unlimited.
	MaxOpenConns int `mapstructure:"max_open_conns"`
	// MaxIdleConns limits the idle connections kept by the pool.
	MaxIdleConns int `mapstructure:"max_idle_conns"`
	// ConnMaxLifetime closes pooled connections after this duration.
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// Load reads the configuration. The tablemap.yaml file is searched in dirs,
// or in the working directory when none are given; a missing file is not an
// error. DATABASE_URL is used when no DSN is configured.
func Load(dirs ...string) (*Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetConfigName("tablemap")
	v.SetConfigType("yaml")
	v.SetFs(AppFs)
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}
	v.SetEnvPrefix("TABLEMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("driver", dialect.SQLite)
	v.SetDefault("dsn", "")
	v.SetDefault("debug", false)
	v.SetDefault("slow_threshold", 200*time.Millisecond)
	v.SetDefault("max_open_conns", 0)
	v.SetDefault("max_idle_conns", 2)
	v.SetDefault("conn_max_lifetime", time.Duration(0))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config: %w", err)
		}
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode config: %w", err)
	}
	if cfg.DSN == "" {
		cfg.DSN = os.Getenv("DATABASE_URL")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads .env, then .env.local with higher priority. Missing or
// unreadable files are ignored.
func loadDotEnv() {
	if _, err := AppFs.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
	if _, err := AppFs.Stat(".env.local"); err == nil {
		_ = godotenv.Overload(".env.local")
	}
}

// Validate checks the driver name and normalizes the DSN.
func (c *Config) Validate() error {
	switch c.Driver {
	case dialect.MySQL:
		dsn, err := mysqlDSN(c.DSN)
		if err != nil {
			return err
		}
		c.DSN = dsn
	case dialect.SQLite, dialect.Postgres:
	default:
		return fmt.Errorf("config: unsupported driver %q", c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("config: no dsn configured for driver %q", c.Driver)
	}
	return nil
}

// mysqlDSN makes the MySQL driver return DATE and DATETIME columns as
// time.Time.
func mysqlDSN(dsn string) (string, error) {
	if dsn == "" {
		return "", nil
	}
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("config: parse mysql dsn: %w", err)
	}
	mc.ParseTime = true
	return mc.FormatDSN(), nil
}

// DB is an opened database: the driver handed to factories and the
// statistics it records.
type DB struct {
	dialect.Driver
	// SQL is the underlying pool.
	SQL *sql.Driver
	// Stats are the statement statistics of the driver.
	Stats *sql.QueryStats
}

// Open opens the configured database. Statements are counted and slow ones
// logged to logger; with Debug set every statement is logged as well.
func Open(cfg *Config, logger *slog.Logger) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	drv, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", cfg.Driver, err)
	}
	pool := drv.DB()
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	opts := []sql.StatsOption{sql.WithSlowThreshold(cfg.SlowThreshold)}
	if cfg.SlowThreshold > 0 {
		opts = append(opts, sql.WithSlowQueryLog(logger))
	}
	stats := sql.NewStatsDriver(drv, opts...)
	db := &DB{Driver: stats, SQL: drv, Stats: stats.QueryStats()}
	if cfg.Debug {
		db.Driver = sql.NewDebugDriver(stats, sql.DebugWithLog(func(ctx context.Context, v ...any) {
			logger.DebugContext(ctx, fmt.Sprint(v...))
		}))
	}
	return db, nil
}

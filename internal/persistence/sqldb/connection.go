// Package sqldb implements the persistence repositories on top of SQLite or
// PostgreSQL.
package sqldb

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func init() {
	sqlx.BindDriver(string(DialectSQLite), sqlx.QUESTION)
}

// ParseDialect validates a configured driver name.
func ParseDialect(name string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(name))) {
	case DialectSQLite:
		return DialectSQLite, nil
	case DialectPostgres, "postgresql":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", name)
	}
}

// Config describes how to reach the database.
type Config struct {
	Dialect         Dialect
	DSN             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// Pool wraps the shared connection pool with transaction helpers.
type Pool struct {
	db      *sqlx.DB
	dialect Dialect
	dsn     string
	mapper  *ErrorMapper
	retry   *RetryHelper
	logger  *slog.Logger
}

// Open connects to the database described by cfg and verifies the connection.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dialect == "" {
		cfg.Dialect = DialectSQLite
	}

	db, err := sqlx.Open(string(cfg.Dialect), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Dialect, err)
	}

	switch cfg.Dialect {
	case DialectSQLite:
		// SQLite serializes writers; a single connection avoids SQLITE_BUSY storms.
		db.SetMaxOpenConns(1)
	default:
		maxOpen := cfg.MaxOpenConns
		if maxOpen <= 0 {
			maxOpen = 25
		}
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	db.SetConnMaxLifetime(lifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", cfg.Dialect, err)
	}

	mapper := NewErrorMapper()
	return &Pool{
		db:      db,
		dialect: cfg.Dialect,
		dsn:     cfg.DSN,
		mapper:  mapper,
		retry:   NewRetryHelper(DefaultRetryConfig(), mapper),
		logger:  logger,
	}, nil
}

// DB returns the underlying connection pool.
func (p *Pool) DB() *sqlx.DB {
	return p.db
}

// Dialect reports the backend in use.
func (p *Pool) Dialect() Dialect {
	return p.dialect
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// Ping tests the database connection.
func (p *Pool) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// TransactionFunc runs inside a transaction.
type TransactionFunc func(tx *sqlx.Tx) error

// WithTransaction executes fn within a transaction. The transaction is rolled
// back when fn returns an error or panics and committed otherwise.
func (p *Pool) WithTransaction(ctx context.Context, fn TransactionFunc) (err error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (p *Pool) rebind(query string) string {
	return p.db.Rebind(query)
}

// timeLayout is fixed width so lexical order of stored values matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Parse(time.RFC3339Nano, value)
	}
	return t, nil
}

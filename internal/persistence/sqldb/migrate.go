package sqldb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Migrate applies every pending schema migration for the pool's dialect.
// A schema that is already current is not an error.
func (p *Pool) Migrate(ctx context.Context) error {
	source, err := iofs.New(migrationsFS, "migrations/"+string(p.dialect))
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	// The migrate driver closes its connection on Close, so it gets its own.
	conn, err := sql.Open(string(p.dialect), p.dsn)
	if err != nil {
		_ = source.Close()
		return fmt.Errorf("open migration connection: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = source.Close()
		_ = conn.Close()
		return fmt.Errorf("ping migration connection: %w", err)
	}

	var driver database.Driver
	switch p.dialect {
	case DialectPostgres:
		driver, err = migratepostgres.WithInstance(conn, &migratepostgres.Config{})
	default:
		driver, err = migratesqlite.WithInstance(conn, &migratesqlite.Config{})
	}
	if err != nil {
		_ = source.Close()
		_ = conn.Close()
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, string(p.dialect), driver)
	if err != nil {
		_ = source.Close()
		_ = driver.Close()
		return fmt.Errorf("create migrator: %w", err)
	}
	m.Log = migrateLogger{logger: p.logger}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", err)
	}
	p.logger.InfoContext(ctx, "schema migrated", "dialect", p.dialect, "version", version, "dirty", dirty)
	return nil
}

type migrateLogger struct {
	logger *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}

func (l migrateLogger) Verbose() bool {
	return false
}

package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/vehicle-scheduler/internal/persistence/sqldb"
)

// SQLiteHarness provides repository access backed by a temporary, migrated
// SQLite database file.
type SQLiteHarness struct {
	Pool         *sqldb.Pool
	Reservations *sqldb.ReservationRepository
	Users        *sqldb.UserRepository
	Sessions     *sqldb.SessionRepository
	Settings     *sqldb.SettingsRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens and migrates a database under tb.TempDir. Close is
// registered with tb.Cleanup.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "scheduler.db")
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pool, err := sqldb.Open(ctx, sqldb.Config{
		Dialect: sqldb.DialectSQLite,
		DSN:     "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
	}, logger)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := pool.Migrate(ctx); err != nil {
		_ = pool.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Pool:         pool,
		Reservations: sqldb.NewReservationRepository(pool),
		Users:        sqldb.NewUserRepository(pool),
		Sessions:     sqldb.NewSessionRepository(pool),
		Settings:     sqldb.NewSettingsRepository(pool),
		cleanup: func() {
			_ = pool.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

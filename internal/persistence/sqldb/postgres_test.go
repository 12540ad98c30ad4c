package sqldb_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/example/vehicle-scheduler/internal/persistence"
	"github.com/example/vehicle-scheduler/internal/persistence/sqldb"
	"github.com/example/vehicle-scheduler/internal/testfixtures"
)

// TestPostgresReservationRoundTrip runs against a live server when
// TEST_DATABASE_URL is set.
func TestPostgresReservationRoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := sqldb.Open(ctx, sqldb.Config{Dialect: sqldb.DialectPostgres, DSN: dsn}, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	if err := pool.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	repo := sqldb.NewReservationRepository(pool)
	fixture := testfixtures.NewReservationFixture(
		testfixtures.WithReservationID(""),
		testfixtures.WithReservationOwner("pg-user", "Ivana Kovač"),
	)
	created, err := repo.CreateReservation(ctx, fixture.Persistence())
	if err != nil {
		t.Fatalf("CreateReservation failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.DeleteReservation(context.Background(), created.ID) })

	fetched, err := repo.GetReservation(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetReservation failed: %v", err)
	}
	if fetched.OwnerDisplayName != "Ivana Kovač" || !fetched.Start.Equal(*created.Start) {
		t.Fatalf("unexpected reservation %+v", fetched)
	}

	if _, err := repo.UpdateReservation(ctx, created.ID, created.Version+1, persistence.ReservationChanges{
		Start: *created.Start,
		End:   *created.End,
	}); !errors.Is(err, persistence.ErrStaleVersion) {
		t.Fatalf("expected ErrStaleVersion, got %v", err)
	}
}

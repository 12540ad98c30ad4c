package application

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBatteryService(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("defaults to a full battery", func(t *testing.T) {
		t.Parallel()

		repo := &batteryRepositoryStub{}
		svc := NewBatteryService(repo, clock, nil)

		level, err := svc.Get(context.Background(), regularPrincipal("u1"))
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if level.Level != DefaultBatteryLevel || level.UpdatedBy != SystemUpdater || !level.UpdatedAt.Equal(now) {
			t.Fatalf("unexpected default %#v", level)
		}
		if len(repo.saves) != 1 {
			t.Fatalf("expected default to be stored")
		}
	})

	t.Run("only administrators update", func(t *testing.T) {
		t.Parallel()

		svc := NewBatteryService(&batteryRepositoryStub{}, clock, nil)
		if _, err := svc.Update(context.Background(), regularPrincipal("u1"), 50); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("rejects out of range levels", func(t *testing.T) {
		t.Parallel()

		svc := NewBatteryService(&batteryRepositoryStub{}, clock, nil)
		for _, value := range []int{-1, 101} {
			var vErr *ValidationError
			if _, err := svc.Update(context.Background(), adminPrincipal("admin"), value); !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError for %d, got %v", value, err)
			}
		}
	})

	t.Run("records who updated the level", func(t *testing.T) {
		t.Parallel()

		repo := &batteryRepositoryStub{}
		svc := NewBatteryService(repo, clock, nil)
		admin := adminPrincipal("admin")

		level, err := svc.Update(context.Background(), admin, 42)
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if level.Level != 42 || level.UpdatedBy != admin.Username {
			t.Fatalf("unexpected level %#v", level)
		}

		got, err := svc.Get(context.Background(), regularPrincipal("u1"))
		if err != nil || got.Level != 42 {
			t.Fatalf("expected stored level, got %#v (%v)", got, err)
		}
	})

	t.Run("anonymous principals cannot read", func(t *testing.T) {
		t.Parallel()

		svc := NewBatteryService(&batteryRepositoryStub{}, clock, nil)
		if _, err := svc.Get(context.Background(), Principal{}); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}

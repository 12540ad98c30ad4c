package application

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"
)

func newTestUserService(users ...User) (*UserService, *userRepositoryStub, *accountRepositoryStub) {
	repo := newUserRepositoryStub(users...)
	accounts := &accountRepositoryStub{users: repo}
	ids := 0
	svc := NewUserService(repo, accounts,
		func(password string) (string, error) { return "hash:" + password, nil },
		func() string {
			ids++
			return "generated-" + strconv.Itoa(ids)
		},
		func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) },
	)
	return svc, repo, accounts
}

func TestUserService_EnsureUser(t *testing.T) {
	t.Parallel()

	t.Run("provisions a regular user with a derived name", func(t *testing.T) {
		t.Parallel()

		svc, repo, _ := newTestUserService()
		user, err := svc.EnsureUser(context.Background(), Credentials{UserID: "u1", Email: "marko.ivan.kovac@example.com"})
		if err != nil {
			t.Fatalf("EnsureUser failed: %v", err)
		}
		if user.Username != "Marko Ivan Kovac" || user.Role != RoleRegular || user.Disabled {
			t.Fatalf("unexpected provisioned user %#v", user)
		}
		if len(repo.created) != 1 {
			t.Fatalf("expected one created record, got %d", len(repo.created))
		}
	})

	t.Run("returns existing records unchanged", func(t *testing.T) {
		t.Parallel()

		existing := User{ID: "u1", Email: "a@example.com", Username: "Custom", Role: RoleAdmin}
		svc, repo, _ := newTestUserService(existing)
		user, err := svc.EnsureUser(context.Background(), Credentials{UserID: "u1", Email: "a@example.com"})
		if err != nil {
			t.Fatalf("EnsureUser failed: %v", err)
		}
		if user != existing || len(repo.created) != 0 {
			t.Fatalf("expected existing record, got %#v", user)
		}
	})
}

func TestUserService_CreateAccount(t *testing.T) {
	t.Parallel()

	admin := adminPrincipal("admin")

	t.Run("requires an administrator", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := newTestUserService()
		_, err := svc.CreateAccount(context.Background(), CreateAccountParams{Principal: regularPrincipal("u1"), Email: "x@example.com", Password: "password1"})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("validates input", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := newTestUserService()
		_, err := svc.CreateAccount(context.Background(), CreateAccountParams{Principal: admin, Email: "broken", Password: "short", Role: Role("owner")})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"email", "password", "role"} {
			if vErr.FieldErrors[field] == "" {
				t.Errorf("expected %s error, got %#v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("stores the account with a hashed password", func(t *testing.T) {
		t.Parallel()

		svc, _, accounts := newTestUserService()
		user, err := svc.CreateAccount(context.Background(), CreateAccountParams{Principal: admin, Email: " Iva.Babic@Example.com ", Password: "password1"})
		if err != nil {
			t.Fatalf("CreateAccount failed: %v", err)
		}
		if user.Email != "iva.babic@example.com" || user.Username != "Iva Babic" || user.Role != RoleRegular {
			t.Fatalf("unexpected account %#v", user)
		}
		if accounts.hashes["iva.babic@example.com"] != "hash:password1" {
			t.Fatalf("expected hashed password to be stored")
		}
	})

	t.Run("duplicate emails are reported", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := newTestUserService(User{ID: "u1", Email: "iva@example.com"})
		_, err := svc.CreateAccount(context.Background(), CreateAccountParams{Principal: admin, Email: "iva@example.com", Password: "password1"})
		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestUserService_UpdateUser(t *testing.T) {
	t.Parallel()

	admin := User{ID: "admin", Email: "admin@example.com", Username: "Admin", Role: RoleAdmin}
	driver := User{ID: "driver", Email: "driver@example.com", Username: "Driver", Role: RoleRegular}
	principal := admin.Principal()

	t.Run("updates role, status and name", func(t *testing.T) {
		t.Parallel()

		svc, repo, _ := newTestUserService(admin, driver)
		role := RoleAdmin
		disabled := true
		name := " <i>Vozač</i> "

		updated, err := svc.UpdateUser(context.Background(), UpdateUserParams{Principal: principal, UserID: "driver", Username: &name, Role: &role, Disabled: &disabled})
		if err != nil {
			t.Fatalf("UpdateUser failed: %v", err)
		}
		if updated.Username != "Vozač" || updated.Role != RoleAdmin || !updated.Disabled {
			t.Fatalf("unexpected update %#v", updated)
		}
		if repo.users["driver"].EffectiveRole() != RoleNone {
			t.Fatalf("expected disabled user to hold no effective role")
		}
	})

	t.Run("administrators cannot demote or disable themselves", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := newTestUserService(admin, driver)
		role := RoleRegular
		disabled := true

		_, err := svc.UpdateUser(context.Background(), UpdateUserParams{Principal: principal, UserID: "admin", Role: &role, Disabled: &disabled})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if vErr.FieldErrors["role"] == "" || vErr.FieldErrors["disabled"] == "" {
			t.Fatalf("expected role and disabled errors, got %#v", vErr.FieldErrors)
		}
	})

	t.Run("unknown users are not found", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := newTestUserService(admin)
		_, err := svc.UpdateUser(context.Background(), UpdateUserParams{Principal: principal, UserID: "ghost"})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestUserService_ListUsers(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestUserService(
		User{ID: "2", Email: "b@example.com", Username: "Zora"},
		User{ID: "1", Email: "a@example.com", Username: "ana"},
		User{ID: "3", Email: "c@example.com", Username: "Marko"},
	)

	if _, err := svc.ListUsers(context.Background(), regularPrincipal("1")); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	users, err := svc.ListUsers(context.Background(), adminPrincipal("admin"))
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	got := []string{users[0].Username, users[1].Username, users[2].Username}
	want := []string{"ana", "Marko", "Zora"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestUserService_BootstrapAdmin(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestUserService()
	user, created, err := svc.BootstrapAdmin(context.Background(), "fleet.manager@example.com", "password1")
	if err != nil {
		t.Fatalf("BootstrapAdmin failed: %v", err)
	}
	if !created || user.Role != RoleAdmin || user.Username != "Fleet Manager" {
		t.Fatalf("unexpected bootstrap result %#v created=%v", user, created)
	}

	again, created, err := svc.BootstrapAdmin(context.Background(), "fleet.manager@example.com", "password1")
	if err != nil {
		t.Fatalf("second BootstrapAdmin failed: %v", err)
	}
	if created || again.ID != user.ID {
		t.Fatalf("expected existing admin to be reused")
	}
}

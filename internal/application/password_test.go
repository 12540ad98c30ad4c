package application

import (
	"errors"
	"strings"
	"testing"
)

var testArgon2Params = Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

func TestPasswordHasher(t *testing.T) {
	t.Parallel()

	hasher := NewPasswordHasher(testArgon2Params)
	hash, err := hasher.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected encoding %q", hash)
	}

	if err := hasher.Verify(hash, "correct horse"); err != nil {
		t.Fatalf("expected password to verify, got %v", err)
	}
	if err := hasher.Verify(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	other, err := hasher.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if other == hash {
		t.Fatalf("expected salted hashes to differ")
	}
}

func TestPasswordHasher_MalformedHashes(t *testing.T) {
	t.Parallel()

	hasher := NewPasswordHasher(testArgon2Params)
	cases := []string{
		"",
		"plain",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$***$aGFzaA",
	}
	for _, encoded := range cases {
		if err := hasher.Verify(encoded, "pw"); !errors.Is(err, ErrInvalidPasswordHash) {
			t.Errorf("Verify(%q) = %v, want ErrInvalidPasswordHash", encoded, err)
		}
	}

	if err := hasher.Verify("$argon2id$v=16$m=1024,t=1,p=1$c2FsdA$aGFzaA", "pw"); !errors.Is(err, ErrIncompatiblePasswordVersion) {
		t.Fatalf("expected ErrIncompatiblePasswordVersion, got %v", err)
	}
}

func TestTokenDigester(t *testing.T) {
	t.Parallel()

	a := NewTokenDigester([]byte("secret-a"))
	b := NewTokenDigester([]byte("secret-b"))

	if a.Digest("token") != a.Digest("token") {
		t.Fatalf("expected digest to be deterministic")
	}
	if a.Digest("token") == b.Digest("token") {
		t.Fatalf("expected digest to depend on the secret")
	}
	if len(a.Digest("token")) != 64 {
		t.Fatalf("expected 32 byte hex digest")
	}

	long := NewTokenDigester([]byte(strings.Repeat("k", 200)))
	if long.Digest("token") == "" {
		t.Fatalf("expected long secrets to be accepted")
	}

	token, err := NewSessionToken()
	if err != nil {
		t.Fatalf("NewSessionToken failed: %v", err)
	}
	if len(token) != 43 {
		t.Fatalf("expected 43 character token, got %d", len(token))
	}
}

package application

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// NewSessionToken returns a random URL safe bearer token.
func NewSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// TokenDigester derives the stored lookup key of a bearer token.
type TokenDigester struct {
	key []byte
}

// NewTokenDigester keys the digest with secret. Secrets longer than the
// blake2b key limit are compressed first.
func NewTokenDigester(secret []byte) *TokenDigester {
	key := secret
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	return &TokenDigester{key: append([]byte(nil), key...)}
}

// Digest returns the hex encoded keyed hash of token.
func (d *TokenDigester) Digest(token string) string {
	var key []byte
	if d != nil {
		key = d.key
	}
	h, err := blake2b.New256(key)
	if err != nil {
		// Unreachable: key length is bounded in NewTokenDigester.
		panic(err)
	}
	h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil))
}

// Package cryptox implements per-user authenticated encryption of stored
// account identifiers.
//
// Every user gets a distinct AES-256 key derived from one server-wide secret,
// so a value encrypted for one user can never be opened with another user's
// key. Values written before encryption was introduced are stored as plain
// strings and pass through Decrypt unchanged.
package cryptox

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// SecretSize is the exact length of the server-wide secret.
	SecretSize = 32

	// KeySize is the length of a derived per-user key (AES-256).
	KeySize = 32

	// keyLabel separates field-encryption keys from any other use of the secret.
	keyLabel = "subtrack/account-field/v1:"
)

// ErrInvalidSecret is returned when the server secret is missing or has the wrong size.
var ErrInvalidSecret = errors.New("encryption secret must be exactly 32 bytes")

// Deriver derives per-user keys from the server secret.
// It is immutable after construction and safe for concurrent use.
type Deriver struct {
	secret []byte
}

// NewDeriver validates the secret and returns a Deriver bound to it.
func NewDeriver(secret string) (*Deriver, error) {
	if len(secret) != SecretSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidSecret, len(secret))
	}

	s := make([]byte, SecretSize)
	copy(s, secret)
	return &Deriver{secret: s}, nil
}

// DeriveKey returns the 256-bit key for userID. The same userID always yields
// the same key for a given secret.
//
// The key is HKDF-Expand(SHA-256) keyed by the secret with label||userID as
// info, whose single output block is HMAC-SHA256(secret, label||userID||0x01).
func (d *Deriver) DeriveKey(userID string) []byte {
	r := hkdf.Expand(sha256.New, d.secret, []byte(keyLabel+userID))

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		// unreachable: 32 bytes is far below the HKDF output limit
		panic(fmt.Sprintf("cryptox: hkdf expand: %v", err))
	}
	return key
}

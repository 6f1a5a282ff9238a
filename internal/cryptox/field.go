package cryptox

import (
	"encoding/base64"
	"errors"
	"strings"
)

// Prefix tags an encoded value. Plain values must never start with it.
const Prefix = "enc"

const (
	tagged    = Prefix + ":"
	partCount = 4

	// NonceSize and TagSize are the raw byte lengths of the IV and
	// authentication tag segments.
	NonceSize = 16
	TagSize   = 16
)

var (
	// ErrMalformedFormat is returned for a tagged value that does not have
	// exactly four colon-separated parts.
	ErrMalformedFormat = errors.New("malformed encrypted field")

	// ErrDecryptionFailed covers every other decryption failure: bad base64,
	// bad segment sizes, a wrong key or tampered data. The cause is never exposed.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Field is a stored account identifier: Plaintext, Encrypted or Malformed.
// Values are classified once, when loaded from storage, via ParseField.
type Field interface {
	// Encode returns the storage representation.
	Encode() string
	isField()
}

// Plaintext is a legacy value written before encryption was enabled.
type Plaintext string

// Encode returns the value unchanged.
func (p Plaintext) Encode() string { return string(p) }

func (Plaintext) isField() {}

// Encrypted holds the decoded segments of an "enc:" value.
type Encrypted struct {
	IV         []byte
	Ciphertext []byte
	Tag        []byte
}

// Encode renders enc:<iv>:<ciphertext>:<tag> with standard base64 segments.
func (e Encrypted) Encode() string {
	enc := base64.StdEncoding
	return strings.Join([]string{
		Prefix,
		enc.EncodeToString(e.IV),
		enc.EncodeToString(e.Ciphertext),
		enc.EncodeToString(e.Tag),
	}, ":")
}

func (Encrypted) isField() {}

// Malformed is a tagged value that could not be decoded. Raw is kept so the
// value round-trips to storage untouched.
type Malformed struct {
	Raw string
	Err error
}

// Encode returns the original stored value.
func (m Malformed) Encode() string { return m.Raw }

func (Malformed) isField() {}

// IsEncrypted reports whether value carries the encryption tag. It does not
// validate the rest of the value.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, tagged)
}

// ParseField classifies a stored value. It never fails: undecodable tagged
// values come back as Malformed carrying ErrMalformedFormat or ErrDecryptionFailed.
func ParseField(value string) Field {
	if !IsEncrypted(value) {
		return Plaintext(value)
	}

	e, err := decodeEnvelope(value)
	if err != nil {
		return Malformed{Raw: value, Err: err}
	}
	return e
}

func decodeEnvelope(value string) (Encrypted, error) {
	parts := strings.Split(value, ":")
	if len(parts) != partCount {
		return Encrypted{}, ErrMalformedFormat
	}

	enc := base64.StdEncoding
	iv, err := enc.DecodeString(parts[1])
	if err != nil || len(iv) != NonceSize {
		return Encrypted{}, ErrDecryptionFailed
	}
	ct, err := enc.DecodeString(parts[2])
	if err != nil {
		return Encrypted{}, ErrDecryptionFailed
	}
	tag, err := enc.DecodeString(parts[3])
	if err != nil || len(tag) != TagSize {
		return Encrypted{}, ErrDecryptionFailed
	}

	return Encrypted{IV: iv, Ciphertext: ct, Tag: tag}, nil
}

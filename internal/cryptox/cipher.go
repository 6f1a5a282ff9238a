package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

// Cipher encrypts and decrypts account identifiers with AES-256-GCM under
// per-user keys.
type Cipher struct {
	keys *Deriver
}

// NewCipher returns a Cipher using keys derived from d.
func NewCipher(d *Deriver) *Cipher {
	return &Cipher{keys: d}
}

// NewCipherFromSecret validates secret and builds a Cipher in one step.
func NewCipherFromSecret(secret string) (*Cipher, error) {
	d, err := NewDeriver(secret)
	if err != nil {
		return nil, err
	}
	return NewCipher(d), nil
}

// Encrypt seals plaintext for userID and returns the encoded form.
// A fresh random IV is used on every call.
func (c *Cipher) Encrypt(plaintext, userID string) (string, error) {
	e, err := c.Seal(plaintext, userID)
	if err != nil {
		return "", err
	}
	return e.Encode(), nil
}

// Decrypt opens an encoded value for userID. Untagged values are returned
// unchanged.
func (c *Cipher) Decrypt(encoded, userID string) (string, error) {
	return c.Open(ParseField(encoded), userID)
}

// Seal encrypts plaintext for userID.
func (c *Cipher) Seal(plaintext, userID string) (Encrypted, error) {
	aead, err := c.aead(userID)
	if err != nil {
		return Encrypted{}, err
	}

	iv := make([]byte, NonceSize)
	if _, err := rand.Read(iv); err != nil {
		return Encrypted{}, fmt.Errorf("generate iv: %w", err)
	}

	sealed := aead.Seal(nil, iv, []byte(plaintext), nil)
	split := len(sealed) - TagSize

	return Encrypted{
		IV:         iv,
		Ciphertext: sealed[:split],
		Tag:        sealed[split:],
	}, nil
}

// Open returns the plaintext of f for userID.
func (c *Cipher) Open(f Field, userID string) (string, error) {
	switch v := f.(type) {
	case Plaintext:
		return string(v), nil
	case Malformed:
		return "", v.Err
	case Encrypted:
		if len(v.IV) != NonceSize || len(v.Tag) != TagSize {
			return "", ErrDecryptionFailed
		}
		aead, err := c.aead(userID)
		if err != nil {
			return "", ErrDecryptionFailed
		}

		sealed := make([]byte, 0, len(v.Ciphertext)+TagSize)
		sealed = append(sealed, v.Ciphertext...)
		sealed = append(sealed, v.Tag...)

		plain, err := aead.Open(nil, v.IV, sealed, nil)
		if err != nil {
			return "", ErrDecryptionFailed
		}
		return string(plain), nil
	default:
		return "", ErrDecryptionFailed
	}
}

func (c *Cipher) aead(userID string) (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.keys.DeriveKey(userID))
	if err != nil {
		return nil, fmt.Errorf("new aes cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return aead, nil
}

// Package secrets provides random secret generation and the authenticated
// encryption used for credentials at rest.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	dErrors "credex/pkg/domain-errors"
)

// sealInfo binds derived keys to this use so the same master secret can
// safely key other purposes.
const sealInfo = "credex/credential-store/v1"

// Generate creates a cryptographically secure random secret.
// Returns a base64-encoded string suitable for admin tokens and master keys.
func Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate secret")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Sealer encrypts and decrypts opaque blobs with authenticated encryption.
// Open fails on any tampering.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(ciphertext []byte) ([]byte, error)
}

// AEADSealer is a Sealer backed by XChaCha20-Poly1305. The output layout is
// nonce || ciphertext || tag.
type AEADSealer struct {
	key []byte
}

// NewSealer derives a 256-bit key from secret with HKDF-SHA256.
func NewSealer(secret string) (*AEADSealer, error) {
	if secret == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "encryption secret cannot be empty")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(sealInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not derive encryption key")
	}
	return &AEADSealer{key: key}, nil
}

func (s *AEADSealer) Seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not initialise cipher")
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not generate nonce")
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *AEADSealer) Open(ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not initialise cipher")
	}
	if len(ciphertext) < aead.NonceSize()+aead.Overhead() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "ciphertext too short")
	}
	nonce, body := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "ciphertext authentication failed")
	}
	return plaintext, nil
}

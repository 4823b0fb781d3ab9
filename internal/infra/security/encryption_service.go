// File: internal/infra/security/encryption_service.go
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// sealVersion prefixes every sealed credential so the format can change
// without guessing at old rows.
const sealVersion = "v1."

var ErrSealedCredential = errors.New("sealed credential is malformed or bound to another bot")

// CredentialSealer encrypts PushInPay and Mercado Pago credentials before they
// reach the shared store. Each value is AES-GCM sealed with the bot token as
// additional data, so a ciphertext copied onto another row fails to open.
type CredentialSealer struct {
	aead cipher.AEAD
}

// NewCredentialSealer takes a 16, 24 or 32 byte key.
func NewCredentialSealer(key string) (*CredentialSealer, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("encryption key must be 16, 24 or 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return &CredentialSealer{aead: aead}, nil
}

func (s *CredentialSealer) Seal(botToken, plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	out := s.aead.Seal(nonce, nonce, []byte(plaintext), []byte(botToken))
	return sealVersion + base64.RawURLEncoding.EncodeToString(out), nil
}

func (s *CredentialSealer) Open(botToken, sealed string) (string, error) {
	if len(sealed) < len(sealVersion) || sealed[:len(sealVersion)] != sealVersion {
		return "", ErrSealedCredential
	}
	raw, err := base64.RawURLEncoding.DecodeString(sealed[len(sealVersion):])
	if err != nil || len(raw) < s.aead.NonceSize() {
		return "", ErrSealedCredential
	}
	n := s.aead.NonceSize()
	pt, err := s.aead.Open(nil, raw[:n], raw[n:], []byte(botToken))
	if err != nil {
		return "", ErrSealedCredential
	}
	return string(pt), nil
}

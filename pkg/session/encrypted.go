package session

import (
	"context"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// keySalt is fixed so the same passphrase always opens the same profile.
var keySalt = []byte("arga-sso-session-v1")

// EncryptedPersister seals values with XChaCha20-Poly1305 before handing
// them to the wrapped persister. Tokens at rest are unreadable without the
// passphrase.
type EncryptedPersister struct {
	inner Persister
	key   []byte
}

// NewEncryptedPersister derives the sealing key from passphrase with argon2id.
func NewEncryptedPersister(inner Persister, passphrase string) (*EncryptedPersister, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("encryption passphrase is required")
	}
	key := argon2.IDKey([]byte(passphrase), keySalt, 1, 64*1024, 4, chacha20poly1305.KeySize)
	return &EncryptedPersister{inner: inner, key: key}, nil
}

func (e *EncryptedPersister) Load(ctx context.Context, key string) ([]byte, error) {
	sealed, err := e.inner.Load(ctx, key)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(e.key)
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("sealed value for %s is truncated", key)
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]

	// The key doubles as associated data so values cannot be swapped between keys.
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt %s: %w", key, err)
	}
	return plain, nil
}

func (e *EncryptedPersister) Save(ctx context.Context, key string, value []byte) error {
	aead, err := chacha20poly1305.NewX(e.key)
	if err != nil {
		return fmt.Errorf("failed to init cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(value)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	return e.inner.Save(ctx, key, aead.Seal(nonce, nonce, value, []byte(key)))
}

func (e *EncryptedPersister) Delete(ctx context.Context, key string) error {
	return e.inner.Delete(ctx, key)
}

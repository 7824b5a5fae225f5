package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	pkgerrors "github.com/lucalabs/luca-backend/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

const (
	keyLen     = 32
	iterations = 390000
)

// Derivation salt is fixed so the same logical secret always produces the
// same symmetric key across deploys; secrets already carry the entropy.
var derivationSalt = []byte("luca.vault.v1")

// Vault encrypts and decrypts credential material with AES-GCM. The symmetric
// key is derived once from the configured secret and cached.
type Vault struct {
	aead cipher.AEAD
}

// New derives the AES key from secret and prepares the AEAD cipher.
func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, fmt.Errorf("vault secret is required")
	}

	key := pbkdf2.Key([]byte(secret), derivationSalt, iterations, keyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating gcm: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext with a per-call random nonce. The nonce is
// prepended to the ciphertext and the whole blob is base64 encoded.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeCrypto, err, "generating nonce")
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. Corrupt data, a truncated blob, or
// a key mismatch all fail closed with a CRYPTO_ERROR; garbage is never returned.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeCrypto, err, "decoding ciphertext")
	}

	nonceSize := v.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", pkgerrors.New(pkgerrors.CodeCrypto, "ciphertext too short")
	}

	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeCrypto, err, "opening ciphertext")
	}
	return string(plaintext), nil
}

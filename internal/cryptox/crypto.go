// Package cryptox seals small secrets at rest. Keys come from argon2id and
// payloads are protected with AES-256-GCM.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophnotes/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	saltSize   = 16
	secretSize = 32
)

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// DeriveMasterKey stretches password with salt into a 32-byte AES key.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with key. The random nonce is prepended to the
// returned ciphertext.
func Seal(plaintext, key []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := common.GenerateRandByteArray(aead.NonceSize())
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal.
func Open(sealed, key []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, ErrCiphertextTooShort
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}

// LoadOrCreateKey returns the device key derived from the secret file at
// path, creating the file with fresh random salt and secret (mode 0600) when
// it does not exist.
func LoadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		data = common.GenerateRandByteArray(saltSize + secretSize)
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return nil, fmt.Errorf("failed to write key file: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	if len(data) != saltSize+secretSize {
		return nil, fmt.Errorf("key file %s: unexpected size %d", path, len(data))
	}

	key := DeriveMasterKey(data[saltSize:], data[:saltSize])
	common.WipeByteArray(data)
	return key, nil
}

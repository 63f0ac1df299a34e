// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

package store

import (
	"crypto/rand"

	"github.com/samber/oops"
	"golang.org/x/crypto/chacha20poly1305"
)

// SealKeySize is the required length of the secret-sealing key in bytes.
const SealKeySize = chacha20poly1305.KeySize

// sealer encrypts TOTP secrets at rest. The database never sees secret
// material in the clear; a leaked dump is useless without the seal key.
type sealer struct {
	key []byte
}

func newSealer(key []byte) (*sealer, error) {
	if len(key) != SealKeySize {
		return nil, oops.Code("STORE_BAD_SEAL_KEY").
			With("got_bytes", len(key)).
			With("want_bytes", SealKeySize).
			Errorf("seal key must be %d bytes", SealKeySize)
	}
	return &sealer{key: key}, nil
}

// seal encrypts plaintext with a random nonce prepended to the ciphertext.
func (s *sealer) seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, oops.Code("STORE_SEAL_FAILED").Wrap(err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, oops.Code("STORE_SEAL_FAILED").Wrap(err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// open decrypts a sealed blob produced by seal.
func (s *sealer) open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, oops.Code("STORE_OPEN_FAILED").Wrap(err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, oops.Code("STORE_OPEN_FAILED").Errorf("sealed blob too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, oops.Code("STORE_OPEN_FAILED").Wrap(err)
	}
	return plaintext, nil
}

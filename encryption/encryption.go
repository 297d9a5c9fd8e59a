// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package encryption holds the cryptographic primitives used by the voting
// protocol: 20-byte hashes for OP_RETURN commitments, symmetric encryption of
// ballot and merit lists, and issuance key signatures.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck
)

const (
	// SecretKeySize is the size in bytes of the symmetric vote key
	SecretKeySize = 16
	// HashSize is the size in bytes of a Hash160 digest
	HashSize = 20
)

var (
	ErrDecrypt            = errors.New("decryption failed")
	ErrInvalidKeySize     = errors.New("invalid secret key size")
	ErrCiphertextTooShort = errors.New("ciphertext too short")
)

// SecretKey is a symmetric AES-128 key
type SecretKey [SecretKeySize]byte

// NewSecretKey returns a freshly generated random key
func NewSecretKey() (SecretKey, error) {
	var key SecretKey
	if _, err := rand.Read(key[:]); err != nil {
		return key, fmt.Errorf("generate secret key: %w", err)
	}
	return key, nil
}

// SecretKeyFromBytes copies a key from its raw bytes
func SecretKeyFromBytes(data []byte) (SecretKey, error) {
	var key SecretKey
	if len(data) != SecretKeySize {
		return key, ErrInvalidKeySize
	}
	copy(key[:], data)
	return key, nil
}

func (k SecretKey) Bytes() []byte {
	return k[:]
}

// Hash160 returns RIPEMD160(SHA256(data))
func Hash160(data []byte) []byte {
	sha := sha256.Sum256(data)
	h := ripemd160.New()
	h.Write(sha[:])
	return h.Sum(nil)
}

// Encrypt seals plaintext with AES-GCM. The random nonce is prepended to the
// returned ciphertext.
func Encrypt(key SecretKey, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a ciphertext produced by Encrypt. A wrong key or tampered
// ciphertext returns ErrDecrypt.
func Decrypt(key SecretKey, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize+gcm.Overhead() {
		return nil, ErrCiphertextTooShort
	}
	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

func newGCM(key SecretKey) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

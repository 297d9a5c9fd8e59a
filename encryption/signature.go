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

package encryption

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

var ErrInvalidPublicKey = errors.New("invalid public key")

// GeneratePrivateKey returns a new secp256k1 private key
func GeneratePrivateKey() (*secp256k1.PrivateKey, error) {
	return secp256k1.GeneratePrivateKey()
}

// PublicKeyHex returns the hex encoded compressed public key
func PublicKeyHex(privKey *secp256k1.PrivateKey) string {
	return hex.EncodeToString(privKey.PubKey().SerializeCompressed())
}

// Sign produces a DER encoded ECDSA signature over the SHA-256 digest of msg
func Sign(privKey *secp256k1.PrivateKey, msg []byte) []byte {
	digest := sha256.Sum256(msg)
	return ecdsa.Sign(privKey, digest[:]).Serialize()
}

// VerifySignature checks a DER signature produced by Sign against a hex encoded
// compressed or uncompressed public key
func VerifySignature(pubKeyHex string, msg []byte, sig []byte) error {
	pubKeyBytes, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
	}
	pubKey, err := secp256k1.ParsePubKey(pubKeyBytes)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
	}
	parsedSig, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return fmt.Errorf("parse signature: %w", err)
	}
	digest := sha256.Sum256(msg)
	if !parsedSig.Verify(digest[:], pubKey) {
		return errors.New("signature verification failed")
	}
	return nil
}

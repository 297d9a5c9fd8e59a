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

package blindvote

import (
	"sync"

	"github.com/blinklabs-io/daonode/encryption"
	"github.com/blinklabs-io/daonode/ledger"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// MeritSigner signs with the private key belonging to an issuance public
// key. ok is false when the key is not ours.
type MeritSigner interface {
	SignMerit(pubKeyHex string, msg []byte) (sig []byte, ok bool)
}

// KeyRing is an in-memory MeritSigner
type KeyRing struct {
	mu   sync.RWMutex
	keys map[string]*secp256k1.PrivateKey
}

func NewKeyRing(keys ...*secp256k1.PrivateKey) *KeyRing {
	k := &KeyRing{keys: make(map[string]*secp256k1.PrivateKey)}
	for _, key := range keys {
		k.Add(key)
	}
	return k
}

func (k *KeyRing) Add(key *secp256k1.PrivateKey) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[encryption.PublicKeyHex(key)] = key
}

func (k *KeyRing) SignMerit(pubKeyHex string, msg []byte) ([]byte, bool) {
	k.mu.RLock()
	key, ok := k.keys[pubKeyHex]
	k.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return encryption.Sign(key, msg), true
}

// CreateMerits returns one merit per issuance whose key the signer holds,
// each signing blindVoteTxId
func CreateMerits(
	issuances []ledger.Issuance,
	signer MeritSigner,
	blindVoteTxId string,
) []Merit {
	if signer == nil {
		return nil
	}
	var ret []Merit
	for _, issuance := range issuances {
		sig, ok := signer.SignMerit(issuance.PubKey, []byte(blindVoteTxId))
		if !ok {
			continue
		}
		ret = append(ret, Merit{
			IssuanceTxId: issuance.TxId,
			Signature:    sig,
		})
	}
	return ret
}

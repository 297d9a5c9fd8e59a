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

// Package blindvote implements the commit half of the voting protocol. A
// voter encrypts its vote list and merit list with a fresh key, locks stake
// in a transaction committing to the encrypted vote list, and keeps the key
// locally until the reveal phase.
package blindvote

import (
	"fmt"

	"github.com/blinklabs-io/daonode/encryption"
	"github.com/blinklabs-io/daonode/proposal"
	"github.com/blinklabs-io/gouroboros/cbor"
)

// BlindVote is the public part of a blind vote as it is shared between
// nodes
type BlindVote struct {
	cbor.StructAsArray
	TxId               string
	StakeAmount        uint64
	EncryptedVotes     []byte
	EncryptedMeritList []byte
}

// VotesHash returns the hash committed to in the blind vote OP_RETURN
func (b BlindVote) VotesHash() []byte {
	return encryption.Hash160(b.EncryptedVotes)
}

// Merit proves ownership of an issuance by signing the blind vote tx id with
// the issuance key
type Merit struct {
	cbor.StructAsArray
	IssuanceTxId string
	Signature    []byte
}

// HashOfList returns the hash of a sorted blind vote list. Every node
// computing it over the same list gets the same hash.
func HashOfList(list []BlindVote) ([]byte, error) {
	data, err := EncodeList(list)
	if err != nil {
		return nil, err
	}
	return encryption.Hash160(data), nil
}

func EncodeList(list []BlindVote) ([]byte, error) {
	if list == nil {
		list = []BlindVote{}
	}
	return cbor.Encode(&list)
}

func DecodeList(data []byte) ([]BlindVote, error) {
	var ret []BlindVote
	if _, err := cbor.Decode(data, &ret); err != nil {
		return nil, fmt.Errorf("decode blind vote list: %w", err)
	}
	return ret, nil
}

func EncodeMeritList(merits []Merit) ([]byte, error) {
	if merits == nil {
		merits = []Merit{}
	}
	return cbor.Encode(&merits)
}

func DecodeMeritList(data []byte) ([]Merit, error) {
	var ret []Merit
	if _, err := cbor.Decode(data, &ret); err != nil {
		return nil, fmt.Errorf("decode merit list: %w", err)
	}
	return ret, nil
}

// DecryptVotes opens the vote list of a blind vote with the revealed key
func DecryptVotes(b BlindVote, key encryption.SecretKey) ([]proposal.ProposalVote, error) {
	data, err := encryption.Decrypt(key, b.EncryptedVotes)
	if err != nil {
		return nil, err
	}
	return proposal.DecodeVoteList(data)
}

// DecryptMerits opens the merit list of a blind vote with the revealed key
func DecryptMerits(b BlindVote, key encryption.SecretKey) ([]Merit, error) {
	data, err := encryption.Decrypt(key, b.EncryptedMeritList)
	if err != nil {
		return nil, err
	}
	return DecodeMeritList(data)
}

// MyVote is the local record of a blind vote created by this node. The key
// and plain vote list never leave the node.
type MyVote struct {
	cbor.StructAsArray
	BlindVoteTxId string
	// Chain height when the vote was created
	Height     uint64
	SecretKey  encryption.SecretKey
	Votes      []proposal.ProposalVote
	BlindVote  BlindVote
	RevealTxId string
}

func EncodeMyVotes(votes []MyVote) ([]byte, error) {
	if votes == nil {
		votes = []MyVote{}
	}
	return cbor.Encode(&votes)
}

func DecodeMyVotes(data []byte) ([]MyVote, error) {
	var ret []MyVote
	if _, err := cbor.Decode(data, &ret); err != nil {
		return nil, fmt.Errorf("decode my votes: %w", err)
	}
	return ret, nil
}

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

// Package opreturn encodes and decodes the OP_RETURN payloads that carry
// governance data on the base chain. Every payload starts with a one byte
// marker type and a one byte protocol version.
package opreturn

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/blinklabs-io/daonode/encryption"
)

type Type uint8

const (
	TypeUndefined           Type = 0x00
	TypeProposal            Type = 0x10
	TypeCompensationRequest Type = 0x11
	TypeBlindVote           Type = 0x13
	TypeVoteReveal          Type = 0x14
	TypeLockup              Type = 0x15
	TypeConfiscateBond      Type = 0x18
)

const (
	Version     byte = 0x01
	PaddingByte byte = 0x00

	headerSize = 2

	// Total payload sizes including the header
	proposalSize       = headerSize + encryption.HashSize + 1
	blindVoteSize      = headerSize + encryption.HashSize + 1
	voteRevealSize     = headerSize + encryption.HashSize + encryption.SecretKeySize
	lockupSize         = headerSize + 2 + 1
	confiscateBondSize = headerSize + encryption.HashSize
)

var (
	ErrEmpty          = errors.New("empty OP_RETURN payload")
	ErrUnknownType    = errors.New("unknown OP_RETURN marker type")
	ErrInvalidLength  = errors.New("invalid OP_RETURN payload length")
	ErrInvalidVersion = errors.New("unsupported OP_RETURN version")
	ErrInvalidPadding = errors.New("invalid OP_RETURN padding")
	ErrInvalidHash    = errors.New("invalid hash length")
)

func (t Type) String() string {
	switch t {
	case TypeProposal:
		return "PROPOSAL"
	case TypeCompensationRequest:
		return "COMPENSATION_REQUEST"
	case TypeBlindVote:
		return "BLIND_VOTE"
	case TypeVoteReveal:
		return "VOTE_REVEAL"
	case TypeLockup:
		return "LOCKUP"
	case TypeConfiscateBond:
		return "CONFISCATE_BOND"
	default:
		return fmt.Sprintf("UNDEFINED(0x%02x)", uint8(t))
	}
}

// Payload is a decoded OP_RETURN payload. Only the fields relevant to Type
// are populated.
type Payload struct {
	Type      Type
	Version   byte
	Hash      []byte
	SecretKey encryption.SecretKey
	LockTime  uint16
}

// Proposal builds the payload anchoring a proposal
func Proposal(hash []byte) ([]byte, error) {
	return hashWithPadding(TypeProposal, hash)
}

// CompensationRequest builds the payload anchoring a compensation request
func CompensationRequest(hash []byte) ([]byte, error) {
	return hashWithPadding(TypeCompensationRequest, hash)
}

// BlindVote builds the payload committing to an encrypted ballot list
func BlindVote(hash []byte) ([]byte, error) {
	return hashWithPadding(TypeBlindVote, hash)
}

// VoteReveal builds the payload publishing the blind vote list hash and the
// vote secret key
func VoteReveal(blindVoteListHash []byte, key encryption.SecretKey) ([]byte, error) {
	if len(blindVoteListHash) != encryption.HashSize {
		return nil, ErrInvalidHash
	}
	ret := make([]byte, 0, voteRevealSize)
	ret = append(ret, byte(TypeVoteReveal), Version)
	ret = append(ret, blindVoteListHash...)
	ret = append(ret, key.Bytes()...)
	return ret, nil
}

// Lockup builds the payload of a bond lockup with its lock time in blocks
func Lockup(lockTime uint16) []byte {
	ret := make([]byte, 0, lockupSize)
	ret = append(ret, byte(TypeLockup), Version)
	ret = binary.BigEndian.AppendUint16(ret, lockTime)
	ret = append(ret, PaddingByte)
	return ret
}

// ConfiscateBond builds the payload anchoring a bond confiscation proposal
func ConfiscateBond(bondHash []byte) ([]byte, error) {
	if len(bondHash) != encryption.HashSize {
		return nil, ErrInvalidHash
	}
	ret := make([]byte, 0, confiscateBondSize)
	ret = append(ret, byte(TypeConfiscateBond), Version)
	ret = append(ret, bondHash...)
	return ret, nil
}

func hashWithPadding(opType Type, hash []byte) ([]byte, error) {
	if len(hash) != encryption.HashSize {
		return nil, ErrInvalidHash
	}
	ret := make([]byte, 0, headerSize+len(hash)+1)
	ret = append(ret, byte(opType), Version)
	ret = append(ret, hash...)
	ret = append(ret, PaddingByte)
	return ret, nil
}

// Parse decodes a raw OP_RETURN payload
func Parse(data []byte) (Payload, error) {
	var ret Payload
	if len(data) == 0 {
		return ret, ErrEmpty
	}
	ret.Type = Type(data[0])
	var expectedSize int
	switch ret.Type {
	case TypeProposal, TypeCompensationRequest:
		expectedSize = proposalSize
	case TypeBlindVote:
		expectedSize = blindVoteSize
	case TypeVoteReveal:
		expectedSize = voteRevealSize
	case TypeLockup:
		expectedSize = lockupSize
	case TypeConfiscateBond:
		expectedSize = confiscateBondSize
	default:
		return ret, fmt.Errorf("%w: 0x%02x", ErrUnknownType, data[0])
	}
	if len(data) != expectedSize {
		return ret, fmt.Errorf(
			"%w: type %s, expected %d bytes, got %d",
			ErrInvalidLength,
			ret.Type,
			expectedSize,
			len(data),
		)
	}
	ret.Version = data[1]
	if ret.Version != Version {
		return ret, fmt.Errorf("%w: %d", ErrInvalidVersion, ret.Version)
	}
	body := data[headerSize:]
	switch ret.Type {
	case TypeProposal, TypeCompensationRequest, TypeBlindVote:
		if body[encryption.HashSize] != PaddingByte {
			return ret, ErrInvalidPadding
		}
		ret.Hash = copyBytes(body[:encryption.HashSize])
	case TypeVoteReveal:
		ret.Hash = copyBytes(body[:encryption.HashSize])
		key, err := encryption.SecretKeyFromBytes(body[encryption.HashSize:])
		if err != nil {
			return ret, err
		}
		ret.SecretKey = key
	case TypeLockup:
		if body[2] != PaddingByte {
			return ret, ErrInvalidPadding
		}
		ret.LockTime = binary.BigEndian.Uint16(body[:2])
	case TypeConfiscateBond:
		ret.Hash = copyBytes(body)
	}
	return ret, nil
}

func copyBytes(src []byte) []byte {
	ret := make([]byte, len(src))
	copy(ret, src)
	return ret
}

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

package opreturn_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/daonode/encryption"
	"github.com/blinklabs-io/daonode/opreturn"
)

func testHash(fill byte) []byte {
	return bytes.Repeat([]byte{fill}, encryption.HashSize)
}

func TestProposalLayout(t *testing.T) {
	data, err := opreturn.Proposal(testHash(0xab))
	require.NoError(t, err)
	require.Len(t, data, 23)
	assert.Equal(t, byte(opreturn.TypeProposal), data[0])
	assert.Equal(t, opreturn.Version, data[1])
	assert.Equal(t, testHash(0xab), data[2:22])
	assert.Equal(t, opreturn.PaddingByte, data[22])
	payload, err := opreturn.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, opreturn.TypeProposal, payload.Type)
	assert.Equal(t, testHash(0xab), payload.Hash)
}

func TestBlindVoteLayout(t *testing.T) {
	data, err := opreturn.BlindVote(testHash(0x01))
	require.NoError(t, err)
	require.Len(t, data, 23)
	assert.Equal(t, byte(opreturn.TypeBlindVote), data[0])
	payload, err := opreturn.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, opreturn.TypeBlindVote, payload.Type)
	assert.Equal(t, testHash(0x01), payload.Hash)
}

func TestVoteRevealLayout(t *testing.T) {
	key, err := encryption.NewSecretKey()
	require.NoError(t, err)
	data, err := opreturn.VoteReveal(testHash(0x02), key)
	require.NoError(t, err)
	require.Len(t, data, 38)
	assert.Equal(t, key.Bytes(), data[22:])
	payload, err := opreturn.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, opreturn.TypeVoteReveal, payload.Type)
	assert.Equal(t, testHash(0x02), payload.Hash)
	assert.Equal(t, key, payload.SecretKey)
}

func TestLockupLayout(t *testing.T) {
	data := opreturn.Lockup(0x1234)
	assert.Equal(
		t,
		[]byte{byte(opreturn.TypeLockup), opreturn.Version, 0x12, 0x34, opreturn.PaddingByte},
		data,
	)
	payload, err := opreturn.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), payload.LockTime)
}

func TestConfiscateBondLayout(t *testing.T) {
	data, err := opreturn.ConfiscateBond(testHash(0x03))
	require.NoError(t, err)
	require.Len(t, data, 22)
	payload, err := opreturn.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, opreturn.TypeConfiscateBond, payload.Type)
	assert.Equal(t, testHash(0x03), payload.Hash)
}

func TestParseErrors(t *testing.T) {
	valid, err := opreturn.Proposal(testHash(0x04))
	require.NoError(t, err)
	badVersion := bytes.Clone(valid)
	badVersion[1] = 0x07
	badPadding := bytes.Clone(valid)
	badPadding[22] = 0xff
	testDefs := []struct {
		name     string
		data     []byte
		expected error
	}{
		{name: "empty", data: nil, expected: opreturn.ErrEmpty},
		{name: "unknown type", data: []byte{0x42, 0x01}, expected: opreturn.ErrUnknownType},
		{name: "short", data: valid[:10], expected: opreturn.ErrInvalidLength},
		{name: "long", data: append(bytes.Clone(valid), 0x00), expected: opreturn.ErrInvalidLength},
		{name: "version", data: badVersion, expected: opreturn.ErrInvalidVersion},
		{name: "padding", data: badPadding, expected: opreturn.ErrInvalidPadding},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			_, err := opreturn.Parse(testDef.data)
			require.ErrorIs(t, err, testDef.expected)
		})
	}
}

func TestBuildersRejectBadHash(t *testing.T) {
	_, err := opreturn.Proposal([]byte{0x01})
	require.ErrorIs(t, err, opreturn.ErrInvalidHash)
	_, err = opreturn.ConfiscateBond(nil)
	require.ErrorIs(t, err, opreturn.ErrInvalidHash)
	_, err = opreturn.VoteReveal(nil, encryption.SecretKey{})
	require.ErrorIs(t, err, opreturn.ErrInvalidHash)
}

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

package ledger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blinklabs-io/gouroboros/cbor"
)

// TxOutputType is the classification of a single transaction output
type TxOutputType uint8

const (
	TxOutputTypeUndefined TxOutputType = iota
	TxOutputTypeGenesis
	TxOutputTypeToken
	TxOutputTypeBtc
	TxOutputTypeProposalOpReturn
	TxOutputTypeCompReqOpReturn
	TxOutputTypeConfiscateBondOpReturn
	TxOutputTypeIssuanceCandidate
	TxOutputTypeBlindVoteLockStake
	TxOutputTypeBlindVoteOpReturn
	TxOutputTypeVoteRevealUnlockStake
	TxOutputTypeVoteRevealOpReturn
	TxOutputTypeLockup
	TxOutputTypeLockupOpReturn
	TxOutputTypeUnlock
)

var txOutputTypeNames = []string{
	"UNDEFINED",
	"GENESIS_OUTPUT",
	"TOKEN_OUTPUT",
	"BTC_OUTPUT",
	"PROPOSAL_OP_RETURN_OUTPUT",
	"COMP_REQ_OP_RETURN_OUTPUT",
	"CONFISCATE_BOND_OP_RETURN_OUTPUT",
	"ISSUANCE_CANDIDATE_OUTPUT",
	"BLIND_VOTE_LOCK_STAKE_OUTPUT",
	"BLIND_VOTE_OP_RETURN_OUTPUT",
	"VOTE_REVEAL_UNLOCK_STAKE_OUTPUT",
	"VOTE_REVEAL_OP_RETURN_OUTPUT",
	"LOCKUP_OUTPUT",
	"LOCKUP_OP_RETURN_OUTPUT",
	"UNLOCK_OUTPUT",
}

func (t TxOutputType) String() string {
	if int(t) < len(txOutputTypeNames) {
		return txOutputTypeNames[t]
	}
	return fmt.Sprintf("TxOutputType(%d)", uint8(t))
}

// IsTokenValue reports whether outputs of this type carry token value
func (t TxOutputType) IsTokenValue() bool {
	switch t {
	case TxOutputTypeGenesis,
		TxOutputTypeToken,
		TxOutputTypeIssuanceCandidate,
		TxOutputTypeBlindVoteLockStake,
		TxOutputTypeVoteRevealUnlockStake,
		TxOutputTypeLockup,
		TxOutputTypeUnlock:
		return true
	}
	return false
}

// TxType is the classification of a whole transaction
type TxType uint8

const (
	TxTypeUndefined TxType = iota
	TxTypeGenesis
	TxTypeTransfer
	TxTypeProposal
	TxTypeCompensationRequest
	TxTypeConfiscateBond
	TxTypeBlindVote
	TxTypeVoteReveal
	TxTypeLockup
	TxTypeUnlock
)

var txTypeNames = []string{
	"UNDEFINED",
	"GENESIS",
	"TRANSFER",
	"PROPOSAL",
	"COMPENSATION_REQUEST",
	"CONFISCATE_BOND",
	"BLIND_VOTE",
	"VOTE_REVEAL",
	"LOCKUP",
	"UNLOCK",
}

func (t TxType) String() string {
	if int(t) < len(txTypeNames) {
		return txTypeNames[t]
	}
	return fmt.Sprintf("TxType(%d)", uint8(t))
}

// TxOutputKey identifies an output by transaction id and output index
type TxOutputKey struct {
	cbor.StructAsArray
	TxId  string
	Index uint32
}

func NewTxOutputKey(txId string, index uint32) TxOutputKey {
	return TxOutputKey{TxId: txId, Index: index}
}

func (k TxOutputKey) String() string {
	return k.TxId + ":" + strconv.FormatUint(uint64(k.Index), 10)
}

// Compare orders keys by transaction id and then index
func (k TxOutputKey) Compare(other TxOutputKey) int {
	if c := strings.Compare(k.TxId, other.TxId); c != 0 {
		return c
	}
	switch {
	case k.Index < other.Index:
		return -1
	case k.Index > other.Index:
		return 1
	}
	return 0
}

type TxInput struct {
	cbor.StructAsArray
	ConnectedTxOutputKey TxOutputKey
	// Hex encoded public key of the spender
	PubKey string
	// Set by the parser when the input spends a token output
	ConnectedTxOutputType  TxOutputType
	ConnectedTxOutputValue uint64
}

type TxOutput struct {
	cbor.StructAsArray
	TxId         string
	Index        uint32
	Value        uint64
	Address      string
	OpReturnData []byte
	BlockHeight  uint64
	Type         TxOutputType
	// Only set for lockup outputs
	LockTime uint16
}

func (o *TxOutput) Key() TxOutputKey {
	return NewTxOutputKey(o.TxId, o.Index)
}

// IsOpReturn reports whether the output carries OP_RETURN data
func (o *TxOutput) IsOpReturn() bool {
	return o.OpReturnData != nil
}

// Tx is a parsed token transaction. It is never modified once committed to
// the state.
type Tx struct {
	cbor.StructAsArray
	Id          string
	BlockHeight uint64
	BlockHash   string
	Time        int64
	Inputs      []TxInput
	Outputs     []TxOutput
	TxType      TxType
	BurntFee    uint64
	LockTime    uint16
}

// LastOutput returns the last output of the transaction
func (t *Tx) LastOutput() *TxOutput {
	if len(t.Outputs) == 0 {
		return nil
	}
	return &t.Outputs[len(t.Outputs)-1]
}

// OpReturnData returns the OP_RETURN payload of the last output, if any
func (t *Tx) OpReturnData() []byte {
	if out := t.LastOutput(); out != nil {
		return out.OpReturnData
	}
	return nil
}

type Block struct {
	cbor.StructAsArray
	Height   uint64
	Hash     string
	PrevHash string
	Time     int64
	Txs      []*Tx
}

// Issuance is token issued to the owner of PubKey by an accepted
// compensation request
type Issuance struct {
	cbor.StructAsArray
	TxId       string
	Height     uint64
	Amount     uint64
	PubKey     string
	CycleIndex uint64
}

// ProposalResult is the tally outcome of a single proposal
type ProposalResult struct {
	cbor.StructAsArray
	ProposalTxId      string
	ProposalUid       string
	Accepted          bool
	AcceptWeight      uint64
	RejectWeight      uint64
	Quorum            uint64
	ThresholdBasisPts uint64
}

// CycleResult is the vote result of a completed cycle
type CycleResult struct {
	cbor.StructAsArray
	CycleIndex    uint64
	Height        uint64
	MajorityHash  string
	Proposals     []ProposalResult
	CountedVotes  uint32
	ExcludedVotes uint32
}

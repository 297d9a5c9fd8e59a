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

package event

const (
	BlockParsedEventType           EventType = "ledger.block-parsed"
	ChainNotConnectingEventType    EventType = "ledger.chain-not-connecting"
	SnapshotRestoredEventType      EventType = "ledger.snapshot-restored"
	PhaseChangeEventType           EventType = "period.phase-change"
	CycleStartEventType            EventType = "period.cycle-start"
	ParamChangeEventType           EventType = "governance.param-change"
	ProposalResultEventType        EventType = "governance.proposal-result"
	VoteResultEventType            EventType = "governance.vote-result"
	VoteResultMissingDataEventType EventType = "governance.vote-result-missing-data"
	IssuanceEventType              EventType = "governance.issuance"
	BondConfiscatedEventType       EventType = "governance.bond-confiscated"
)

// BlockParsedEvent is emitted after a block was parsed and the new ledger
// view was published
type BlockParsedEvent struct {
	Height     uint64
	Hash       string
	TokenTxs   int
	TotalTxs   int
	CycleIndex uint64
}

// ChainNotConnectingEvent is emitted when a block does not extend the
// current head and the ledger is rolled back to a snapshot
type ChainNotConnectingEvent struct {
	Height         uint64
	PrevHash       string
	ExpectedHeight uint64
	ExpectedHash   string
}

// SnapshotRestoredEvent is emitted after the ledger was restored from a
// snapshot
type SnapshotRestoredEvent struct {
	Height uint64
	// One of "memory", "database" or "genesis"
	Source string
}

type PhaseChangeEvent struct {
	Height     uint64
	CycleIndex uint64
	Phase      string
	PrevPhase  string
}

type CycleStartEvent struct {
	CycleIndex         uint64
	HeightOfFirstBlock uint64
	HeightOfLastBlock  uint64
}

type ParamChangeEvent struct {
	Param           string
	Value           uint64
	EffectiveHeight uint64
	ProposalTxId    string
}

type ProposalResultEvent struct {
	CycleIndex   uint64
	ProposalTxId string
	ProposalUid  string
	Accepted     bool
	AcceptWeight uint64
	RejectWeight uint64
}

type VoteResultEvent struct {
	CycleIndex    uint64
	Height        uint64
	MajorityHash  string
	CountedVotes  int
	ExcludedVotes int
	Accepted      int
	Rejected      int
}

// VoteResultMissingDataEvent is emitted when the local blind vote list does
// not match the majority hash and the tally is deferred
type VoteResultMissingDataEvent struct {
	CycleIndex   uint64
	Height       uint64
	MajorityHash string
	LocalHash    string
	// Voted proposals whose details are unknown
	MissingProposals []string
}

type IssuanceEvent struct {
	TxId   string
	Amount uint64
	PubKey string
	Height uint64
}

type BondConfiscatedEvent struct {
	LockupTxId   string
	ProposalTxId string
	Height       uint64
}

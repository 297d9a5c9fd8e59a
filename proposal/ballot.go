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

package proposal

import (
	"fmt"

	"github.com/blinklabs-io/gouroboros/cbor"
)

type Vote struct {
	cbor.StructAsArray
	Accepted bool
}

func Accept() *Vote { return &Vote{Accepted: true} }

func Reject() *Vote { return &Vote{Accepted: false} }

// Ballot is a proposal with the local voter's optional vote
type Ballot struct {
	Proposal Proposal
	Vote     *Vote
}

// WithVote returns a copy of the ballot carrying vote
func (b Ballot) WithVote(vote *Vote) Ballot {
	if vote != nil {
		tmp := *vote
		vote = &tmp
	}
	b.Vote = vote
	return b
}

// ProposalVote is a vote on the proposal anchored by ProposalTxId. A list of
// these is what a blind vote encrypts.
type ProposalVote struct {
	cbor.StructAsArray
	ProposalTxId string
	Vote         *Vote
}

// VoteList returns the votes of all ballots whose proposal is anchored
func VoteList(ballots []Ballot) []ProposalVote {
	ret := make([]ProposalVote, 0, len(ballots))
	for _, b := range ballots {
		if b.Proposal.TxId == "" {
			continue
		}
		pv := ProposalVote{ProposalTxId: b.Proposal.TxId}
		if b.Vote != nil {
			tmp := *b.Vote
			pv.Vote = &tmp
		}
		ret = append(ret, pv)
	}
	return ret
}

func EncodeVoteList(votes []ProposalVote) ([]byte, error) {
	if votes == nil {
		votes = []ProposalVote{}
	}
	return cbor.Encode(&votes)
}

func DecodeVoteList(data []byte) ([]ProposalVote, error) {
	var ret []ProposalVote
	if _, err := cbor.Decode(data, &ret); err != nil {
		return nil, fmt.Errorf("decode vote list: %w", err)
	}
	return ret, nil
}

type ballotWire struct {
	cbor.StructAsArray
	Proposal []byte
	Vote     *Vote
}

// EncodeBallots serializes a ballot list for persistence
func EncodeBallots(ballots []Ballot) ([]byte, error) {
	tmp := make([]ballotWire, 0, len(ballots))
	for _, b := range ballots {
		proposalCbor, err := b.Proposal.Encode()
		if err != nil {
			return nil, err
		}
		tmp = append(tmp, ballotWire{Proposal: proposalCbor, Vote: b.Vote})
	}
	return cbor.Encode(&tmp)
}

// EncodeProposals serializes the proposal archive
func EncodeProposals(proposals []Proposal) ([]byte, error) {
	tmp := make([][]byte, 0, len(proposals))
	for _, p := range proposals {
		data, err := p.Encode()
		if err != nil {
			return nil, err
		}
		tmp = append(tmp, data)
	}
	return cbor.Encode(&tmp)
}

func DecodeProposals(data []byte) ([]Proposal, error) {
	var tmp [][]byte
	if _, err := cbor.Decode(data, &tmp); err != nil {
		return nil, fmt.Errorf("decode proposals: %w", err)
	}
	ret := make([]Proposal, 0, len(tmp))
	for _, item := range tmp {
		p, err := Decode(item)
		if err != nil {
			return nil, err
		}
		ret = append(ret, p)
	}
	return ret, nil
}

func DecodeBallots(data []byte) ([]Ballot, error) {
	var tmp []ballotWire
	if _, err := cbor.Decode(data, &tmp); err != nil {
		return nil, fmt.Errorf("decode ballots: %w", err)
	}
	ret := make([]Ballot, 0, len(tmp))
	for _, item := range tmp {
		p, err := Decode(item.Proposal)
		if err != nil {
			return nil, err
		}
		ret = append(ret, Ballot{Proposal: p, Vote: item.Vote})
	}
	return ret, nil
}

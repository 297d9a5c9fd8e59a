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

package daonode

import (
	"context"
	"fmt"

	"github.com/blinklabs-io/daonode/blindvote"
	"github.com/blinklabs-io/daonode/broadcast"
	"github.com/blinklabs-io/daonode/chain"
	"github.com/blinklabs-io/daonode/event"
	"github.com/blinklabs-io/daonode/ledger"
	"github.com/blinklabs-io/daonode/proposal"
)

// Start opens the database and restores the persisted state without
// parsing any blocks. Run and Sync call it implicitly.
func (n *Node) Start() error {
	return n.start()
}

// View returns the latest published ledger view, or nil before start
func (n *Node) View() *ledger.View {
	return n.publisher.Load()
}

func (n *Node) EventBus() *event.EventBus {
	return n.eventBus
}

// Responder answers block sync requests from peers
func (n *Node) Responder() *chain.Responder {
	return n.responder
}

// Ballots returns the open ballot list
func (n *Node) Ballots() []proposal.Ballot {
	if n.proposals == nil {
		return nil
	}
	return n.proposals.Ballots()
}

// AddProposal adds a proposal received from the network to the ballot list
func (n *Node) AddProposal(p proposal.Proposal) error {
	if n.proposals == nil {
		return ErrNotStarted
	}
	if err := n.proposals.Add(p); err != nil {
		return err
	}
	n.saveBallots()
	return nil
}

// RemoveProposal removes one of our own proposals from the ballot list
func (n *Node) RemoveProposal(uid string) error {
	if n.proposals == nil {
		return ErrNotStarted
	}
	if err := n.proposals.Remove(uid); err != nil {
		return err
	}
	n.saveBallots()
	return nil
}

// SetVote sets or clears (nil vote) our vote on a ballot
func (n *Node) SetVote(uid string, vote *proposal.Vote) error {
	if n.proposals == nil {
		return ErrNotStarted
	}
	if err := n.proposals.SetVote(uid, vote); err != nil {
		return err
	}
	n.saveBallots()
	return nil
}

// SubmitProposal anchors and broadcasts a new proposal
func (n *Node) SubmitProposal(
	ctx context.Context,
	p proposal.Proposal,
	callbacks broadcast.Callbacks,
) (proposal.Proposal, *broadcast.Handle, error) {
	if n.proposals == nil {
		return proposal.Proposal{}, nil, ErrNotStarted
	}
	onFailure := callbacks.OnFailure
	callbacks.OnFailure = func(res broadcast.Result) {
		// The service has already dropped the ballot
		n.saveBallots()
		if onFailure != nil {
			onFailure(res)
		}
	}
	anchored, handle, err := n.proposals.Submit(ctx, p, callbacks)
	if err != nil {
		return proposal.Proposal{}, nil, err
	}
	n.saveBallots()
	return anchored, handle, nil
}

// CreateBlindVote publishes our votes on the open ballot list as a blind
// vote locking stake
func (n *Node) CreateBlindVote(
	ctx context.Context,
	stake uint64,
	callbacks broadcast.Callbacks,
) (blindvote.MyVote, *broadcast.Handle, error) {
	if n.blindVotes == nil {
		return blindvote.MyVote{}, nil, ErrNotStarted
	}
	onFailure := callbacks.OnFailure
	callbacks.OnFailure = func(res broadcast.Result) {
		n.saveBlindVotes()
		n.saveMyVotes()
		if onFailure != nil {
			onFailure(res)
		}
	}
	myVote, handle, err := n.blindVotes.Create(
		ctx,
		n.proposals.Ballots(),
		stake,
		callbacks,
	)
	if err != nil {
		return blindvote.MyVote{}, nil, err
	}
	n.saveBlindVotes()
	n.saveMyVotes()
	return myVote, handle, nil
}

// AddBlindVote stores a blind vote received from the network. A vote whose
// transaction is already confirmed must be valid; unconfirmed votes are kept
// and checked again when the result is counted.
func (n *Node) AddBlindVote(vote blindvote.BlindVote) error {
	if n.blindVoteStore == nil {
		return ErrNotStarted
	}
	view := n.View()
	if view == nil {
		return ErrNotStarted
	}
	if _, ok := view.Tx(vote.TxId); ok {
		if err := blindvote.IsValid(vote, view); err != nil {
			return err
		}
	}
	if n.blindVoteStore.Add(vote) {
		n.saveBlindVotes()
	}
	return nil
}

func (n *Node) BlindVotes() []blindvote.BlindVote {
	if n.blindVoteStore == nil {
		return nil
	}
	return n.blindVoteStore.All()
}

func (n *Node) MyVotes() []blindvote.MyVote {
	if n.myVotes == nil {
		return nil
	}
	return n.myVotes.All()
}

// persistHeight is the chain height recorded with saved lists
func (n *Node) persistHeight() uint64 {
	if view := n.View(); view != nil {
		return view.ChainHeight()
	}
	return 0
}

// saveBallots writes the open ballot list and the proposal archive the
// ballots were added to
func (n *Node) saveBallots() {
	n.persistMu.Lock()
	defer n.persistMu.Unlock()
	height := n.persistHeight()
	if _, err := n.db.SaveBallots(height, n.proposals.Ballots()); err != nil {
		n.logSaveError("ballots", err)
	}
	if _, err := n.db.SaveProposals(height, n.proposals.Archive()); err != nil {
		n.logSaveError("proposals", err)
	}
}

func (n *Node) saveBlindVotes() {
	n.persistMu.Lock()
	defer n.persistMu.Unlock()
	if _, err := n.db.SaveBlindVotes(n.persistHeight(), n.blindVoteStore.All()); err != nil {
		n.logSaveError("blind votes", err)
	}
}

func (n *Node) saveMyVotes() {
	n.persistMu.Lock()
	defer n.persistMu.Unlock()
	if _, err := n.db.SaveMyVotes(n.persistHeight(), n.myVotes.All()); err != nil {
		n.logSaveError("my votes", err)
	}
}

func (n *Node) saveParamChanges(view *ledger.View) {
	n.persistMu.Lock()
	defer n.persistMu.Unlock()
	if _, err := n.db.SaveParamChanges(view.ChainHeight(), view.ParamChanges()); err != nil {
		n.logSaveError("param changes", err)
	}
}

// saveLists writes every governance list
func (n *Node) saveLists() {
	n.saveBallots()
	n.saveBlindVotes()
	n.saveMyVotes()
	if view := n.View(); view != nil {
		n.saveParamChanges(view)
	}
}

func (n *Node) logSaveError(list string, err error) {
	n.config.logger.Error(
		fmt.Sprintf("failed to save %s", list),
		"component", "node",
		"error", err,
	)
}

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
	"bytes"
	"cmp"
	"fmt"
	"slices"

	"github.com/blinklabs-io/daonode/ledger"
	"github.com/blinklabs-io/daonode/opreturn"
	"github.com/blinklabs-io/daonode/params"
	"github.com/blinklabs-io/daonode/period"
)

// View is the ledger access needed to check blind votes
type View interface {
	Tx(id string) (*ledger.Tx, bool)
	PhaseAt(height uint64) period.Phase
	CycleAt(height uint64) (period.Cycle, bool)
	ParamValue(param params.Param, height uint64) uint64
}

// IsValid checks a blind vote against its anchoring transaction: the tx is a
// confirmed blind vote in a blind vote phase, commits to the encrypted vote
// list, locks the claimed stake, and burnt at least the blind vote fee
func IsValid(vote BlindVote, view View) error {
	tx, ok := view.Tx(vote.TxId)
	if !ok {
		return fmt.Errorf("%w: tx %s not found", ErrInvalidBlindVote, vote.TxId)
	}
	if tx.TxType != ledger.TxTypeBlindVote {
		return fmt.Errorf("%w: tx %s has type %s", ErrInvalidBlindVote, vote.TxId, tx.TxType)
	}
	if phase := view.PhaseAt(tx.BlockHeight); phase != period.PhaseBlindVote {
		return fmt.Errorf(
			"%w: tx %s confirmed in phase %s",
			ErrInvalidBlindVote,
			vote.TxId,
			phase,
		)
	}
	payload, err := opreturn.Parse(tx.OpReturnData())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBlindVote, err)
	}
	if !bytes.Equal(payload.Hash, vote.VotesHash()) {
		return fmt.Errorf("%w: tx %s commits to a different vote list", ErrInvalidBlindVote, vote.TxId)
	}
	if len(tx.Outputs) == 0 ||
		tx.Outputs[0].Type != ledger.TxOutputTypeBlindVoteLockStake ||
		tx.Outputs[0].Value != vote.StakeAmount {
		return fmt.Errorf("%w: tx %s stake does not match", ErrInvalidBlindVote, vote.TxId)
	}
	fee := view.ParamValue(params.ParamBlindVoteFee, tx.BlockHeight)
	if tx.BurntFee < fee {
		return fmt.Errorf(
			"%w: tx %s burnt fee %d below %d",
			ErrInvalidBlindVote,
			vote.TxId,
			tx.BurntFee,
			fee,
		)
	}
	return nil
}

// SortedForCycle returns the valid blind votes confirmed in the cycle with
// the given index, ordered by tx id
func SortedForCycle(votes []BlindVote, view View, cycleIndex uint64) []BlindVote {
	ret := make([]BlindVote, 0, len(votes))
	for _, v := range votes {
		if IsValid(v, view) != nil {
			continue
		}
		tx, _ := view.Tx(v.TxId)
		cycle, ok := view.CycleAt(tx.BlockHeight)
		if !ok || cycle.Index != cycleIndex {
			continue
		}
		ret = append(ret, v)
	}
	sortByTxId(ret)
	return ret
}

func sortByTxId(votes []BlindVote) {
	slices.SortFunc(votes, func(a, b BlindVote) int {
		return cmp.Compare(a.TxId, b.TxId)
	})
}

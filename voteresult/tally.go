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

package voteresult

import (
	"cmp"
	"encoding/hex"
	"errors"
	"fmt"
	"math/bits"
	"slices"

	"github.com/blinklabs-io/daonode/blindvote"
	"github.com/blinklabs-io/daonode/encryption"
	"github.com/blinklabs-io/daonode/ledger"
	"github.com/blinklabs-io/daonode/opreturn"
	"github.com/blinklabs-io/daonode/params"
	"github.com/blinklabs-io/daonode/period"
	"github.com/blinklabs-io/daonode/proposal"
)

// Ledger is the state access needed for a tally. Both *ledger.State and
// *ledger.View satisfy it.
type Ledger interface {
	ChainHeight() uint64
	Tx(id string) (*ledger.Tx, bool)
	TxsOfType(txType ledger.TxType) []*ledger.Tx
	TxOutput(key ledger.TxOutputKey) (*ledger.TxOutput, bool)
	Issuance(txId string) (ledger.Issuance, bool)
	ParamValue(param params.Param, height uint64) uint64
	IsConfiscated(lockupTxId string) bool
	Calendar() *period.Calendar
}

// calendarLedger adds the calendar lookups blindvote.View needs
type calendarLedger struct {
	Ledger
	calendar *period.Calendar
}

func (c calendarLedger) PhaseAt(height uint64) period.Phase {
	return c.calendar.PhaseAt(height)
}

func (c calendarLedger) CycleAt(height uint64) (period.Cycle, bool) {
	return c.calendar.CycleAt(height)
}

// CountedVote is a revealed vote that takes part in the tally
type CountedVote struct {
	RevealTxId    string
	BlindVoteTxId string
	Stake         uint64
	Merit         uint64
	Votes         []proposal.ProposalVote
}

func (v CountedVote) Weight() uint64 {
	return v.Stake + v.Merit
}

// Tally is the outcome of counting the reveals of one cycle
type Tally struct {
	CycleIndex   uint64
	MajorityHash string
	LocalHash    string
	// Set when the local blind vote list does not match the majority. The
	// counted votes are empty then.
	Deferred bool
	Counted  []CountedVote
	Excluded []VoteExclusion
	// Merit proofs that were ignored, per blind vote tx id
	IgnoredMerits map[string][]error
}

// CountVotes reconstructs the votes revealed in cycle. blindVotes are all
// blind votes known to this node.
func CountVotes(
	l Ledger,
	cycle period.Cycle,
	blindVotes []blindvote.BlindVote,
	blocksPerYear uint64,
) (Tally, error) {
	cal := calendarLedger{Ledger: l, calendar: l.Calendar()}
	ret := Tally{
		CycleIndex:    cycle.Index,
		IgnoredMerits: make(map[string][]error),
	}
	type reveal struct {
		tx      *ledger.Tx
		payload opreturn.Payload
	}
	var reveals []reveal
	for _, tx := range l.TxsOfType(ledger.TxTypeVoteReveal) {
		if !cycle.Contains(tx.BlockHeight) ||
			cycle.PhaseAt(tx.BlockHeight) != period.PhaseVoteReveal {
			continue
		}
		payload, err := opreturn.Parse(tx.OpReturnData())
		if err != nil {
			ret.Excluded = append(ret.Excluded, VoteExclusion{
				RevealTxId: tx.Id,
				Err:        fmt.Errorf("%w: %w", ErrInvalidReveal, err),
			})
			continue
		}
		reveals = append(reveals, reveal{tx: tx, payload: payload})
	}
	slices.SortFunc(reveals, func(a, b reveal) int {
		return cmp.Compare(a.tx.Id, b.tx.Id)
	})
	hashes := make([][]byte, 0, len(reveals))
	for _, r := range reveals {
		hashes = append(hashes, r.payload.Hash)
	}
	ret.MajorityHash = MajorityHash(hashes)

	cycleVotes := blindvote.SortedForCycle(blindVotes, cal, cycle.Index)
	localHash, err := blindvote.HashOfList(cycleVotes)
	if err != nil {
		return ret, err
	}
	ret.LocalHash = hex.EncodeToString(localHash)
	if len(reveals) > 0 && ret.LocalHash != ret.MajorityHash {
		ret.Deferred = true
		return ret, nil
	}
	byTxId := make(map[string]blindvote.BlindVote, len(cycleVotes))
	for _, v := range cycleVotes {
		byTxId[v.TxId] = v
	}

	for _, r := range reveals {
		exclude := func(blindVoteTxId string, err error) {
			ret.Excluded = append(ret.Excluded, VoteExclusion{
				RevealTxId:    r.tx.Id,
				BlindVoteTxId: blindVoteTxId,
				Err:           err,
			})
		}
		if hex.EncodeToString(r.payload.Hash) != ret.MajorityHash {
			exclude("", ErrNotMajority)
			continue
		}
		if len(r.tx.Inputs) == 0 {
			exclude("", ErrNoStakeOutput)
			continue
		}
		stakeKey := r.tx.Inputs[0].ConnectedTxOutputKey
		stake, ok := l.TxOutput(stakeKey)
		if !ok || stake.Type != ledger.TxOutputTypeBlindVoteLockStake {
			exclude(stakeKey.TxId, ErrNoStakeOutput)
			continue
		}
		blindVote, ok := byTxId[stakeKey.TxId]
		if !ok {
			exclude(stakeKey.TxId, ErrBlindVoteNotFound)
			continue
		}
		votes, err := blindvote.DecryptVotes(blindVote, r.payload.SecretKey)
		if err != nil {
			exclude(blindVote.TxId, fmt.Errorf("%w: %w", ErrDecryptVotes, err))
			continue
		}
		merits, err := blindvote.DecryptMerits(blindVote, r.payload.SecretKey)
		if err != nil {
			exclude(blindVote.TxId, fmt.Errorf("%w: %w", ErrDecryptMerits, err))
			continue
		}
		blindVoteTx, _ := l.Tx(blindVote.TxId)
		merit, ignored := meritOf(l, merits, blindVote.TxId, blindVoteTx.BlockHeight, blocksPerYear)
		if len(ignored) > 0 {
			ret.IgnoredMerits[blindVote.TxId] = ignored
		}
		ret.Counted = append(ret.Counted, CountedVote{
			RevealTxId:    r.tx.Id,
			BlindVoteTxId: blindVote.TxId,
			Stake:         stake.Value,
			Merit:         merit,
			Votes:         votes,
		})
	}
	return ret, nil
}

// meritOf sums the decayed issuance amounts of the valid merits. A merit
// must reference a known issuance and carry a signature over the blind vote
// tx id by the issuance key. Each issuance counts once per list.
func meritOf(
	l Ledger,
	merits []blindvote.Merit,
	blindVoteTxId string,
	referenceHeight uint64,
	blocksPerYear uint64,
) (uint64, []error) {
	var (
		total   uint64
		ignored []error
	)
	seen := make(map[string]struct{}, len(merits))
	for _, m := range merits {
		if _, ok := seen[m.IssuanceTxId]; ok {
			ignored = append(ignored, fmt.Errorf("%w: issuance %s used twice", ErrInvalidMerit, m.IssuanceTxId))
			continue
		}
		seen[m.IssuanceTxId] = struct{}{}
		issuance, ok := l.Issuance(m.IssuanceTxId)
		if !ok {
			ignored = append(ignored, fmt.Errorf("%w: unknown issuance %s", ErrInvalidMerit, m.IssuanceTxId))
			continue
		}
		if err := encryption.VerifySignature(issuance.PubKey, []byte(blindVoteTxId), m.Signature); err != nil {
			ignored = append(ignored, fmt.Errorf("%w: issuance %s: %w", ErrInvalidMerit, m.IssuanceTxId, err))
			continue
		}
		total += GetWeightedMeritAmount(issuance.Amount, issuance.Height, referenceHeight, blocksPerYear)
	}
	return total, ignored
}

// Evaluation is the outcome for one proposal of a cycle
type Evaluation struct {
	Tx       *ledger.Tx
	Proposal proposal.Proposal
	// Unset when the proposal details are unknown or invalid
	Known bool
	// Set when a counted vote accepted or rejected the proposal
	Voted  bool
	Err    error
	Result ledger.ProposalResult
}

// ProposalSource resolves anchored proposals by tx id
type ProposalSource interface {
	ProposalByTxId(txId string) (proposal.Proposal, bool)
}

// Evaluate applies quorum and threshold to every proposal anchored in the
// proposal phase of cycle. Parameters are read at height.
func Evaluate(
	l Ledger,
	cycle period.Cycle,
	counted []CountedVote,
	proposals ProposalSource,
	height uint64,
) []Evaluation {
	type weights struct {
		accept uint64
		reject uint64
	}
	totals := make(map[string]*weights)
	for _, v := range counted {
		for _, pv := range v.Votes {
			if pv.Vote == nil {
				continue
			}
			w, ok := totals[pv.ProposalTxId]
			if !ok {
				w = &weights{}
				totals[pv.ProposalTxId] = w
			}
			if pv.Vote.Accepted {
				w.accept += v.Weight()
			} else {
				w.reject += v.Weight()
			}
		}
	}

	var txs []*ledger.Tx
	for _, txType := range []ledger.TxType{
		ledger.TxTypeProposal,
		ledger.TxTypeCompensationRequest,
		ledger.TxTypeConfiscateBond,
	} {
		for _, tx := range l.TxsOfType(txType) {
			if cycle.Contains(tx.BlockHeight) &&
				cycle.PhaseAt(tx.BlockHeight) == period.PhaseProposal {
				txs = append(txs, tx)
			}
		}
	}
	slices.SortFunc(txs, func(a, b *ledger.Tx) int {
		return cmp.Compare(a.Id, b.Id)
	})

	ret := make([]Evaluation, 0, len(txs))
	for _, tx := range txs {
		eval := Evaluation{
			Tx:     tx,
			Result: ledger.ProposalResult{ProposalTxId: tx.Id},
		}
		if w, ok := totals[tx.Id]; ok {
			eval.Voted = true
			eval.Result.AcceptWeight = w.accept
			eval.Result.RejectWeight = w.reject
		}
		p, ok := proposals.ProposalByTxId(tx.Id)
		if !ok {
			eval.Err = fmt.Errorf("%w: %s", ErrNoProposalDetails, tx.Id)
			ret = append(ret, eval)
			continue
		}
		eval.Proposal = p
		eval.Result.ProposalUid = p.Uid
		if err := proposal.Validate(p, l); err != nil {
			eval.Err = err
			ret = append(ret, eval)
			continue
		}
		eval.Known = true
		eval.Result.Quorum = l.ParamValue(p.Kind().QuorumParam(), height)
		eval.Result.ThresholdBasisPts = l.ParamValue(p.Kind().ThresholdParam(), height)
		eval.Result.Accepted = isAccepted(
			eval.Result.AcceptWeight,
			eval.Result.RejectWeight,
			eval.Result.Quorum,
			eval.Result.ThresholdBasisPts,
		)
		ret = append(ret, eval)
	}
	return ret
}

// MissingProposals returns the tx ids of voted proposals whose details are
// unknown. A result computed without them would differ from the result of
// instances that know them.
func MissingProposals(evaluations []Evaluation) []string {
	var ret []string
	for _, eval := range evaluations {
		if eval.Voted && errors.Is(eval.Err, ErrNoProposalDetails) {
			ret = append(ret, eval.Tx.Id)
		}
	}
	return ret
}

// isAccepted requires the total weight to reach the quorum and the accept
// share to reach the threshold
func isAccepted(accept, reject, quorum, thresholdBasisPts uint64) bool {
	total := accept + reject
	if total == 0 || total < quorum {
		return false
	}
	// accept*MaxBasisPoints >= threshold*total
	lhsHi, lhsLo := bits.Mul64(accept, params.MaxBasisPoints)
	rhsHi, rhsLo := bits.Mul64(thresholdBasisPts, total)
	if lhsHi != rhsHi {
		return lhsHi > rhsHi
	}
	return lhsLo >= rhsLo
}

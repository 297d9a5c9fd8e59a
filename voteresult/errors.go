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
	"errors"
	"fmt"
)

var (
	ErrInvalidReveal      = errors.New("invalid vote reveal")
	ErrNotMajority        = errors.New("reveal hash differs from majority hash")
	ErrNoStakeOutput      = errors.New("reveal does not spend a blind vote stake output")
	ErrBlindVoteNotFound  = errors.New("blind vote not found in cycle list")
	ErrDecryptVotes       = errors.New("failed to decrypt vote list")
	ErrDecryptMerits      = errors.New("failed to decrypt merit list")
	ErrInvalidMerit       = errors.New("invalid merit")
	ErrNoProposalDetails  = errors.New("proposal details unknown")
	ErrConflictingChanges = errors.New("conflicting parameter change accepted in cycle")
)

// VoteExclusion records why a revealed vote was left out of a tally. It
// never aborts the tally of the other votes.
type VoteExclusion struct {
	RevealTxId    string
	BlindVoteTxId string
	Err           error
}

func (e VoteExclusion) Error() string {
	return fmt.Sprintf("vote reveal %s excluded: %s", e.RevealTxId, e.Err)
}

func (e VoteExclusion) Unwrap() error {
	return e.Err
}

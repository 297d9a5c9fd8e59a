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

import "errors"

var (
	ErrNotInBlindVotePhase = errors.New("chain is not in the blind vote phase")
	ErrNoVotes             = errors.New("no votes selected")
	ErrInvalidStake        = errors.New("stake must be positive")
	ErrNoLedgerView        = errors.New("no ledger view available")
	ErrNoWallet            = errors.New("no wallet configured")
	ErrMyVoteNotFound      = errors.New("my vote not found")
	ErrInvalidBlindVote    = errors.New("invalid blind vote")
)

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
	"errors"
	"fmt"
)

var (
	ErrTxNotFound              = errors.New("transaction not found")
	ErrOutputNotFound          = errors.New("output not found")
	ErrDuplicateTx             = errors.New("transaction already exists")
	ErrOutputAlreadyClassified = errors.New("output already classified")
	ErrDuplicateIssuance       = errors.New("issuance already exists")
	ErrNotIssuanceCandidate    = errors.New("output is not an issuance candidate")
	ErrNotLockup               = errors.New("transaction is not a lockup")
	ErrCycleResultExists       = errors.New("cycle result already recorded")
	ErrInvalidSnapshot         = errors.New("invalid snapshot")
)

// BlockNotConnectingError is returned when a block does not extend the
// current chain head
type BlockNotConnectingError struct {
	Height         uint64
	PrevHash       string
	ExpectedHeight uint64
	ExpectedHash   string
}

func (e BlockNotConnectingError) Error() string {
	return fmt.Sprintf(
		"block %d with prev hash %s does not connect to head (expected height %d, prev hash %s)",
		e.Height,
		e.PrevHash,
		e.ExpectedHeight,
		e.ExpectedHash,
	)
}

// ConsensusError indicates a consensus invariant was violated. These must
// never occur with correct parsing and halt processing.
type ConsensusError struct {
	Reason string
	Err    error
}

func (e ConsensusError) Error() string {
	return fmt.Sprintf("consensus violation: %s: %s", e.Reason, e.Err)
}

func (e ConsensusError) Unwrap() error {
	return e.Err
}

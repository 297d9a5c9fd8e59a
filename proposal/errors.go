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
	"errors"
	"fmt"
)

var (
	ErrUnknownKind        = errors.New("unknown proposal kind")
	ErrInvalidProposal    = errors.New("invalid proposal")
	ErrNotEligible        = errors.New("proposal not eligible for voting")
	ErrBallotNotFound     = errors.New("ballot not found")
	ErrRemoveConfirmed    = errors.New("cannot remove confirmed proposal in its proposal phase")
	ErrNotInProposalPhase = errors.New("chain is not in the proposal phase")
	ErrNoLedgerView       = errors.New("no ledger view available")
	ErrNoWallet           = errors.New("no wallet configured")
)

// ValidationError describes why a proposal was rejected
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidProposal, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidProposal
}

func invalid(field string, format string, args ...any) *ValidationError {
	return &ValidationError{
		Field:  field,
		Reason: fmt.Sprintf(format, args...),
	}
}

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

package chain

import (
	"errors"
	"fmt"
)

var (
	ErrBlockNotFound    = errors.New("block not found")
	ErrEmptySource      = errors.New("block source has no blocks")
	ErrInvalidBlockFile = errors.New("invalid block file")
	ErrNilHandler       = errors.New("nil block handler")
)

// BlockHeightMismatchError is returned when a source returns a block for a
// different height than requested
type BlockHeightMismatchError struct {
	requested uint64
	actual    uint64
}

func NewBlockHeightMismatchError(
	requested uint64,
	actual uint64,
) BlockHeightMismatchError {
	return BlockHeightMismatchError{
		requested: requested,
		actual:    actual,
	}
}

func (e BlockHeightMismatchError) Requested() uint64 {
	return e.requested
}

func (e BlockHeightMismatchError) Actual() uint64 {
	return e.actual
}

func (e BlockHeightMismatchError) Error() string {
	return fmt.Sprintf(
		"requested block at height %d but got height %d",
		e.requested,
		e.actual,
	)
}

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
	"math/bits"
)

// DefaultBlocksPerYear is the number of base chain blocks in a year at a
// ten minute block interval
const DefaultBlocksPerYear = 52_596

// GetWeightedMeritAmount returns the merit of an issuance decayed linearly
// over two years: the full amount at issuanceHeight, nothing from
// issuanceHeight+2*blocksPerYear on
func GetWeightedMeritAmount(
	amount uint64,
	issuanceHeight uint64,
	blockHeight uint64,
	blocksPerYear uint64,
) uint64 {
	if blockHeight <= issuanceHeight {
		return amount
	}
	age := blockHeight - issuanceHeight
	maxAge := 2 * blocksPerYear
	if age >= maxAge {
		return 0
	}
	// amount * (maxAge - age) / maxAge without overflowing
	hi, lo := bits.Mul64(amount, maxAge-age)
	quo, _ := bits.Div64(hi, lo, maxAge)
	return quo
}

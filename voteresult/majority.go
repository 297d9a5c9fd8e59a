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
	"encoding/hex"
)

// MajorityHash returns the hex encoded hash claimed by the most reveals.
// Ties go to the lexicographically smallest hex string. Returns an empty
// string for no hashes.
func MajorityHash(hashes [][]byte) string {
	counts := make(map[string]int, len(hashes))
	for _, h := range hashes {
		counts[hex.EncodeToString(h)]++
	}
	var (
		best      string
		bestCount int
	)
	for h, count := range counts {
		if count > bestCount || (count == bestCount && h < best) {
			best = h
			bestCount = count
		}
	}
	return best
}

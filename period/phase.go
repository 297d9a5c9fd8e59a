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

package period

import (
	"fmt"

	"github.com/blinklabs-io/daonode/params"
)

// Phase is a named stage of a governance cycle
type Phase uint8

const (
	PhaseUndefined Phase = iota
	PhaseProposal
	PhaseBreak1
	PhaseBlindVote
	PhaseBreak2
	PhaseVoteReveal
	PhaseBreak3
	PhaseResult
)

// Phases lists every phase in the order they occur within a cycle
var Phases = []Phase{
	PhaseProposal,
	PhaseBreak1,
	PhaseBlindVote,
	PhaseBreak2,
	PhaseVoteReveal,
	PhaseBreak3,
	PhaseResult,
}

var phaseNames = map[Phase]string{
	PhaseUndefined:  "UNDEFINED",
	PhaseProposal:   "PROPOSAL",
	PhaseBreak1:     "BREAK1",
	PhaseBlindVote:  "BLIND_VOTE",
	PhaseBreak2:     "BREAK2",
	PhaseVoteReveal: "VOTE_REVEAL",
	PhaseBreak3:     "BREAK3",
	PhaseResult:     "RESULT",
}

var phaseParams = map[Phase]params.Param{
	PhaseProposal:   params.ParamPhaseProposal,
	PhaseBreak1:     params.ParamPhaseBreak1,
	PhaseBlindVote:  params.ParamPhaseBlindVote,
	PhaseBreak2:     params.ParamPhaseBreak2,
	PhaseVoteReveal: params.ParamPhaseVoteReveal,
	PhaseBreak3:     params.ParamPhaseBreak3,
	PhaseResult:     params.ParamPhaseResult,
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Phase(%d)", uint8(p))
}

// Param returns the duration parameter for the phase
func (p Phase) Param() params.Param {
	return phaseParams[p]
}

// PhaseDuration is the concrete length in blocks of a phase within one cycle
type PhaseDuration struct {
	Phase    Phase
	Duration uint64
}

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

// Cycle is one iteration of the governance calendar. Phase durations are
// captured when the cycle starts and never change afterward.
type Cycle struct {
	Index              uint64
	HeightOfFirstBlock uint64
	PhaseDurations     []PhaseDuration
}

// Length returns the number of blocks in the cycle
func (c Cycle) Length() uint64 {
	var ret uint64
	for _, pd := range c.PhaseDurations {
		ret += pd.Duration
	}
	return ret
}

func (c Cycle) HeightOfLastBlock() uint64 {
	return c.HeightOfFirstBlock + c.Length() - 1
}

func (c Cycle) Contains(height uint64) bool {
	return height >= c.HeightOfFirstBlock && height <= c.HeightOfLastBlock()
}

// Duration returns the number of blocks of the given phase in this cycle
func (c Cycle) Duration(phase Phase) uint64 {
	for _, pd := range c.PhaseDurations {
		if pd.Phase == phase {
			return pd.Duration
		}
	}
	return 0
}

// FirstBlockOfPhase returns the height of the first block of phase
func (c Cycle) FirstBlockOfPhase(phase Phase) uint64 {
	height := c.HeightOfFirstBlock
	for _, pd := range c.PhaseDurations {
		if pd.Phase == phase {
			return height
		}
		height += pd.Duration
	}
	return 0
}

// LastBlockOfPhase returns the height of the last block of phase
func (c Cycle) LastBlockOfPhase(phase Phase) uint64 {
	return c.FirstBlockOfPhase(phase) + c.Duration(phase) - 1
}

// PhaseAt returns the phase at height, or PhaseUndefined when the height
// is outside the cycle
func (c Cycle) PhaseAt(height uint64) Phase {
	if height < c.HeightOfFirstBlock {
		return PhaseUndefined
	}
	start := c.HeightOfFirstBlock
	for _, pd := range c.PhaseDurations {
		if height < start+pd.Duration {
			return pd.Phase
		}
		start += pd.Duration
	}
	return PhaseUndefined
}

func (c Cycle) clone() Cycle {
	ret := c
	ret.PhaseDurations = append([]PhaseDuration(nil), c.PhaseDurations...)
	return ret
}

// FirstCycle creates the cycle starting at the genesis height using the
// parameter values in effect there
func FirstCycle(genesisHeight uint64, src ParamSource) Cycle {
	return newCycle(0, genesisHeight, src, nil)
}

// NextCycle creates the cycle following prev. Durations are read from src at
// the new cycle's first block, falling back to prev's durations and then to
// the built-in defaults.
func NextCycle(prev Cycle, src ParamSource) Cycle {
	return newCycle(prev.Index+1, prev.HeightOfLastBlock()+1, src, &prev)
}

func newCycle(index uint64, startHeight uint64, src ParamSource, prev *Cycle) Cycle {
	ret := Cycle{
		Index:              index,
		HeightOfFirstBlock: startHeight,
		PhaseDurations:     make([]PhaseDuration, 0, len(Phases)),
	}
	for _, phase := range Phases {
		var duration uint64
		if src != nil {
			duration = src.ParamValue(phase.Param(), startHeight)
		}
		if duration < 1 && prev != nil {
			duration = prev.Duration(phase)
		}
		if duration < 1 {
			duration = phase.Param().Default()
		}
		ret.PhaseDurations = append(
			ret.PhaseDurations,
			PhaseDuration{Phase: phase, Duration: duration},
		)
	}
	return ret
}

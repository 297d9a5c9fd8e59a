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

// Package period maps block heights onto the governance calendar of cycles
// and phases.
package period

import (
	"errors"
	"fmt"
	"sort"

	"github.com/blinklabs-io/daonode/params"
)

var (
	ErrNoCycle            = errors.New("no cycle for height")
	ErrCycleNotContiguous = errors.New("cycle does not follow previous cycle")
)

// ParamSource provides phase duration values
type ParamSource = params.Source

// Calendar is an ordered, contiguous list of cycles
type Calendar struct {
	cycles []Cycle
}

func NewCalendar(cycles ...Cycle) (*Calendar, error) {
	c := &Calendar{}
	for _, cycle := range cycles {
		if err := c.Add(cycle); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add appends a cycle, which must start the block after the last one ends
func (c *Calendar) Add(cycle Cycle) error {
	if len(c.cycles) > 0 {
		last := c.cycles[len(c.cycles)-1]
		if cycle.HeightOfFirstBlock != last.HeightOfLastBlock()+1 ||
			cycle.Index != last.Index+1 {
			return fmt.Errorf(
				"%w: cycle %d starts at %d, previous cycle %d ends at %d",
				ErrCycleNotContiguous,
				cycle.Index,
				cycle.HeightOfFirstBlock,
				last.Index,
				last.HeightOfLastBlock(),
			)
		}
	}
	c.cycles = append(c.cycles, cycle.clone())
	return nil
}

// Cycles returns a copy of the cycle history
func (c *Calendar) Cycles() []Cycle {
	ret := make([]Cycle, len(c.cycles))
	for i, cycle := range c.cycles {
		ret[i] = cycle.clone()
	}
	return ret
}

func (c *Calendar) Len() int {
	return len(c.cycles)
}

// Last returns the most recent cycle
func (c *Calendar) Last() (Cycle, bool) {
	if len(c.cycles) == 0 {
		return Cycle{}, false
	}
	return c.cycles[len(c.cycles)-1], true
}

// CycleAt returns the cycle containing height
func (c *Calendar) CycleAt(height uint64) (Cycle, bool) {
	idx := sort.Search(len(c.cycles), func(i int) bool {
		return c.cycles[i].HeightOfLastBlock() >= height
	})
	if idx < len(c.cycles) && c.cycles[idx].Contains(height) {
		return c.cycles[idx], true
	}
	return Cycle{}, false
}

// CycleByIndex returns the cycle with the given index
func (c *Calendar) CycleByIndex(index uint64) (Cycle, bool) {
	if index >= uint64(len(c.cycles)) {
		return Cycle{}, false
	}
	return c.cycles[index], true
}

func (c *Calendar) PhaseAt(height uint64) Phase {
	cycle, ok := c.CycleAt(height)
	if !ok {
		return PhaseUndefined
	}
	return cycle.PhaseAt(height)
}

// FirstBlockOfPhase returns the first block of phase in the cycle containing
// height
func (c *Calendar) FirstBlockOfPhase(height uint64, phase Phase) (uint64, error) {
	cycle, ok := c.CycleAt(height)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrNoCycle, height)
	}
	return cycle.FirstBlockOfPhase(phase), nil
}

// LastBlockOfPhase returns the last block of phase in the cycle containing
// height
func (c *Calendar) LastBlockOfPhase(height uint64, phase Phase) (uint64, error) {
	cycle, ok := c.CycleAt(height)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrNoCycle, height)
	}
	return cycle.LastBlockOfPhase(phase), nil
}

// IsFirstBlockOfPhase reports whether height is the first block of phase
func (c *Calendar) IsFirstBlockOfPhase(height uint64, phase Phase) bool {
	first, err := c.FirstBlockOfPhase(height, phase)
	if err != nil {
		return false
	}
	return first == height && c.PhaseAt(height) == phase
}

// IsTxInCorrectCycle reports whether txHeight and chainHeight fall within the
// same cycle
func (c *Calendar) IsTxInCorrectCycle(txHeight uint64, chainHeight uint64) bool {
	txCycle, ok := c.CycleAt(txHeight)
	if !ok {
		return false
	}
	return txCycle.Contains(chainHeight)
}

// IsTxInPhase reports whether txHeight falls within phase
func (c *Calendar) IsTxInPhase(txHeight uint64, phase Phase) bool {
	return c.PhaseAt(txHeight) == phase
}

// IsTxInPhaseAndCycle combines IsTxInPhase and IsTxInCorrectCycle
func (c *Calendar) IsTxInPhaseAndCycle(txHeight uint64, chainHeight uint64, phase Phase) bool {
	return c.IsTxInPhase(txHeight, phase) &&
		c.IsTxInCorrectCycle(txHeight, chainHeight)
}

func (c *Calendar) Clone() *Calendar {
	if c == nil {
		return &Calendar{}
	}
	return &Calendar{cycles: c.Cycles()}
}

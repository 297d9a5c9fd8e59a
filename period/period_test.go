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

package period_test

import (
	"testing"

	"github.com/blinklabs-io/daonode/params"
	"github.com/blinklabs-io/daonode/period"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shortLedger returns a parameter ledger with small phase durations
func shortLedger(t *testing.T) *params.Ledger {
	t.Helper()
	l, err := params.NewLedger(
		params.ChangeEvent{Param: params.ParamPhaseProposal, Value: 5},
		params.ChangeEvent{Param: params.ParamPhaseBreak1, Value: 1},
		params.ChangeEvent{Param: params.ParamPhaseBlindVote, Value: 3},
		params.ChangeEvent{Param: params.ParamPhaseBreak2, Value: 1},
		params.ChangeEvent{Param: params.ParamPhaseVoteReveal, Value: 3},
		params.ChangeEvent{Param: params.ParamPhaseBreak3, Value: 1},
		params.ChangeEvent{Param: params.ParamPhaseResult, Value: 2},
	)
	require.NoError(t, err)
	return l
}

func TestFirstCycleDefaults(t *testing.T) {
	c := period.FirstCycle(100, nil)
	assert.Equal(t, uint64(0), c.Index)
	assert.Equal(t, uint64(100), c.HeightOfFirstBlock)
	require.Len(t, c.PhaseDurations, len(period.Phases))
	for i, pd := range c.PhaseDurations {
		assert.Equal(t, period.Phases[i], pd.Phase)
		assert.Equal(t, pd.Phase.Param().Default(), pd.Duration)
	}
}

func TestPhaseWindowsPartitionCycle(t *testing.T) {
	l := shortLedger(t)
	c := period.FirstCycle(10, l)
	require.Equal(t, uint64(16), c.Length())
	assert.Equal(t, uint64(25), c.HeightOfLastBlock())
	expected := []period.Phase{
		period.PhaseProposal, period.PhaseProposal, period.PhaseProposal,
		period.PhaseProposal, period.PhaseProposal,
		period.PhaseBreak1,
		period.PhaseBlindVote, period.PhaseBlindVote, period.PhaseBlindVote,
		period.PhaseBreak2,
		period.PhaseVoteReveal, period.PhaseVoteReveal, period.PhaseVoteReveal,
		period.PhaseBreak3,
		period.PhaseResult, period.PhaseResult,
	}
	for i, phase := range expected {
		height := uint64(10 + i)
		assert.Equal(t, phase, c.PhaseAt(height), "height %d", height)
	}
	assert.Equal(t, period.PhaseUndefined, c.PhaseAt(9))
	assert.Equal(t, period.PhaseUndefined, c.PhaseAt(26))
	// Windows are contiguous
	next := c.HeightOfFirstBlock
	for _, phase := range period.Phases {
		assert.Equal(t, next, c.FirstBlockOfPhase(phase), "phase %s", phase)
		next = c.LastBlockOfPhase(phase) + 1
	}
	assert.Equal(t, c.HeightOfLastBlock()+1, next)
}

func TestNextCycleSnapshotsDurations(t *testing.T) {
	l := shortLedger(t)
	first := period.FirstCycle(0, l)
	// A change effective in the middle of the first cycle only applies to
	// cycles starting after it
	require.NoError(
		t,
		l.Add(params.ChangeEvent{Param: params.ParamPhaseResult, Value: 4, EffectiveHeight: 5}),
	)
	assert.Equal(t, uint64(2), first.Duration(period.PhaseResult))
	second := period.NextCycle(first, l)
	assert.Equal(t, uint64(1), second.Index)
	assert.Equal(t, first.HeightOfLastBlock()+1, second.HeightOfFirstBlock)
	assert.Equal(t, uint64(4), second.Duration(period.PhaseResult))
}

type zeroSource struct{}

func (zeroSource) ParamValue(params.Param, uint64) uint64 { return 0 }

func TestNextCycleFallsBackToPrevious(t *testing.T) {
	first := period.FirstCycle(0, shortLedger(t))
	second := period.NextCycle(first, zeroSource{})
	for _, phase := range period.Phases {
		assert.Equal(t, first.Duration(phase), second.Duration(phase))
	}
	third := period.FirstCycle(0, zeroSource{})
	assert.Equal(t, params.ParamPhaseProposal.Default(), third.Duration(period.PhaseProposal))
}

func TestCalendar(t *testing.T) {
	l := shortLedger(t)
	first := period.FirstCycle(0, l)
	second := period.NextCycle(first, l)
	cal, err := period.NewCalendar(first, second)
	require.NoError(t, err)
	assert.Equal(t, 2, cal.Len())

	for h := uint64(0); h <= second.HeightOfLastBlock(); h++ {
		cycle, ok := cal.CycleAt(h)
		require.True(t, ok, "height %d", h)
		assert.True(t, cycle.Contains(h))
		assert.NotEqual(t, period.PhaseUndefined, cal.PhaseAt(h))
	}
	_, ok := cal.CycleAt(second.HeightOfLastBlock() + 1)
	assert.False(t, ok)

	assert.True(t, cal.IsTxInCorrectCycle(2, 15))
	assert.False(t, cal.IsTxInCorrectCycle(2, 16))
	assert.True(t, cal.IsTxInPhaseAndCycle(2, 15, period.PhaseProposal))
	assert.False(t, cal.IsTxInPhaseAndCycle(5, 15, period.PhaseProposal))
	assert.True(t, cal.IsFirstBlockOfPhase(16, period.PhaseProposal))
	assert.True(t, cal.IsFirstBlockOfPhase(6, period.PhaseBlindVote))
	assert.False(t, cal.IsFirstBlockOfPhase(7, period.PhaseBlindVote))

	first2, err := cal.FirstBlockOfPhase(20, period.PhaseVoteReveal)
	require.NoError(t, err)
	assert.Equal(t, uint64(26), first2)
	last2, err := cal.LastBlockOfPhase(20, period.PhaseVoteReveal)
	require.NoError(t, err)
	assert.Equal(t, uint64(28), last2)
	_, err = cal.FirstBlockOfPhase(1000, period.PhaseResult)
	require.ErrorIs(t, err, period.ErrNoCycle)
}

func TestCalendarRejectsGap(t *testing.T) {
	l := shortLedger(t)
	first := period.FirstCycle(0, l)
	bad := period.FirstCycle(first.HeightOfLastBlock()+2, l)
	bad.Index = 1
	cal, err := period.NewCalendar(first)
	require.NoError(t, err)
	require.ErrorIs(t, cal.Add(bad), period.ErrCycleNotContiguous)
}

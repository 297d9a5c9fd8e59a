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
	"sync/atomic"

	"github.com/blinklabs-io/daonode/params"
	"github.com/blinklabs-io/daonode/period"
	"github.com/prometheus/client_golang/prometheus"
)

// View is an immutable copy of the ledger state for readers outside the
// parser
type View struct {
	state *State
}

// View returns a read-only copy of the current state
func (s *State) View() *View {
	return &View{state: s.Clone()}
}

func (v *View) Genesis() Genesis {
	return v.state.Genesis()
}

func (v *View) ChainHeight() uint64 {
	return v.state.ChainHeight()
}

func (v *View) ChainHead() (*Block, bool) {
	return v.state.ChainHead()
}

func (v *View) Blocks() []*Block {
	return v.state.Blocks()
}

func (v *View) BlocksFrom(height uint64) []*Block {
	return v.state.BlocksFrom(height)
}

func (v *View) Tx(id string) (*Tx, bool) {
	return v.state.Tx(id)
}

func (v *View) TxsOfType(txType TxType) []*Tx {
	return v.state.TxsOfType(txType)
}

func (v *View) TxOutput(key TxOutputKey) (*TxOutput, bool) {
	return v.state.TxOutput(key)
}

func (v *View) UnspentOutput(key TxOutputKey) (*TxOutput, bool) {
	return v.state.UnspentOutput(key)
}

func (v *View) UnspentOutputs() []*TxOutput {
	return v.state.UnspentOutputs()
}

func (v *View) ParamValue(param params.Param, height uint64) uint64 {
	return v.state.ParamValue(param, height)
}

func (v *View) ParamChanges() []params.ChangeEvent {
	return v.state.Params().Events()
}

// Calendar returns a copy of the cycle calendar
func (v *View) Calendar() *period.Calendar {
	return v.state.Calendar().Clone()
}

func (v *View) Cycles() []period.Cycle {
	return v.state.Cycles()
}

// CurrentCycle returns the cycle containing the chain height
func (v *View) CurrentCycle() (period.Cycle, bool) {
	return v.state.Calendar().CycleAt(v.ChainHeight())
}

// CurrentPhase returns the phase at the chain height
func (v *View) CurrentPhase() period.Phase {
	return v.state.Calendar().PhaseAt(v.ChainHeight())
}

// CycleAt returns the cycle containing height
func (v *View) CycleAt(height uint64) (period.Cycle, bool) {
	return v.state.Calendar().CycleAt(height)
}

func (v *View) PhaseAt(height uint64) period.Phase {
	return v.state.Calendar().PhaseAt(height)
}

// IsTxInCorrectCycle reports whether txHeight is in the current cycle
func (v *View) IsTxInCorrectCycle(txHeight uint64) bool {
	return v.state.Calendar().IsTxInCorrectCycle(txHeight, v.ChainHeight())
}

// IsTxInPhaseAndCycle reports whether txHeight is in phase of the current
// cycle
func (v *View) IsTxInPhaseAndCycle(txHeight uint64, phase period.Phase) bool {
	return v.state.Calendar().IsTxInPhaseAndCycle(txHeight, v.ChainHeight(), phase)
}

func (v *View) Issuance(txId string) (Issuance, bool) {
	return v.state.Issuance(txId)
}

func (v *View) Issuances() []Issuance {
	return v.state.Issuances()
}

func (v *View) IsConfiscated(lockupTxId string) bool {
	return v.state.IsConfiscated(lockupTxId)
}

func (v *View) CycleResult(cycleIndex uint64) (CycleResult, bool) {
	return v.state.CycleResult(cycleIndex)
}

// Encode returns the snapshot encoding of the viewed state
func (v *View) Encode() ([]byte, error) {
	return v.state.Encode()
}

// Publisher holds the most recently published View. Publishing and loading
// never block each other.
type Publisher struct {
	current atomic.Pointer[View]
	metrics *stateMetrics
}

func NewPublisher(promRegistry prometheus.Registerer) *Publisher {
	p := &Publisher{}
	if promRegistry != nil {
		p.metrics = &stateMetrics{}
		p.metrics.init(promRegistry)
	}
	return p
}

// Publish replaces the current view
func (p *Publisher) Publish(view *View) {
	p.current.Store(view)
	if p.metrics != nil {
		p.metrics.update(view)
	}
}

// Load returns the current view, or nil before the first Publish
func (p *Publisher) Load() *View {
	return p.current.Load()
}

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
	"fmt"
	"maps"
	"slices"

	"github.com/blinklabs-io/daonode/params"
	"github.com/blinklabs-io/daonode/period"
	"github.com/blinklabs-io/gouroboros/cbor"
)

const snapshotVersion = 1

type stateSnapshot struct {
	cbor.StructAsArray
	Version      uint
	Genesis      genesisSnapshot
	Blocks       []*Block
	Unspent      []TxOutputKey
	ParamChanges []paramChangeSnapshot
	Cycles       []cycleSnapshot
	Issuances    []Issuance
	Confiscated  []string
	CycleResults []CycleResult
}

type genesisSnapshot struct {
	cbor.StructAsArray
	TxId        string
	Height      uint64
	TotalSupply uint64
}

type paramChangeSnapshot struct {
	cbor.StructAsArray
	Param           uint8
	Value           uint64
	EffectiveHeight uint64
}

type cycleSnapshot struct {
	cbor.StructAsArray
	Index              uint64
	HeightOfFirstBlock uint64
	Durations          []phaseDurationSnapshot
}

type phaseDurationSnapshot struct {
	cbor.StructAsArray
	Phase    uint8
	Duration uint64
}

// Encode serializes the state to CBOR. Equal states always produce equal
// bytes.
func (s *State) Encode() ([]byte, error) {
	snap := stateSnapshot{
		Version: snapshotVersion,
		Genesis: genesisSnapshot{
			TxId:        s.genesis.TxId,
			Height:      s.genesis.Height,
			TotalSupply: s.genesis.TotalSupply,
		},
		Blocks:    s.blocks,
		Unspent:   slices.SortedFunc(maps.Keys(s.unspent), TxOutputKey.Compare),
		Issuances: s.Issuances(),
		Confiscated: slices.Sorted(
			maps.Keys(s.confiscated),
		),
	}
	for _, evt := range s.params.Events() {
		snap.ParamChanges = append(snap.ParamChanges, paramChangeSnapshot{
			Param:           uint8(evt.Param),
			Value:           evt.Value,
			EffectiveHeight: evt.EffectiveHeight,
		})
	}
	for _, cycle := range s.calendar.Cycles() {
		tmpCycle := cycleSnapshot{
			Index:              cycle.Index,
			HeightOfFirstBlock: cycle.HeightOfFirstBlock,
		}
		for _, pd := range cycle.PhaseDurations {
			tmpCycle.Durations = append(tmpCycle.Durations, phaseDurationSnapshot{
				Phase:    uint8(pd.Phase),
				Duration: pd.Duration,
			})
		}
		snap.Cycles = append(snap.Cycles, tmpCycle)
	}
	for _, idx := range slices.Sorted(maps.Keys(s.cycleResults)) {
		snap.CycleResults = append(snap.CycleResults, s.cycleResults[idx])
	}
	data, err := cbor.Encode(&snap)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return data, nil
}

// DecodeState restores a state from the output of Encode
func DecodeState(data []byte) (*State, error) {
	var snap stateSnapshot
	if _, err := cbor.Decode(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf(
			"%w: unsupported version %d",
			ErrInvalidSnapshot,
			snap.Version,
		)
	}
	s := NewState(Genesis{
		TxId:        snap.Genesis.TxId,
		Height:      snap.Genesis.Height,
		TotalSupply: snap.Genesis.TotalSupply,
	})
	for _, block := range snap.Blocks {
		if err := s.AddBlock(block); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
		}
		for _, tx := range block.Txs {
			if _, ok := s.txs[tx.Id]; ok {
				return nil, fmt.Errorf("%w: duplicate tx %s", ErrInvalidSnapshot, tx.Id)
			}
			s.txs[tx.Id] = tx
		}
	}
	for _, key := range snap.Unspent {
		out, ok := s.TxOutput(key)
		if !ok {
			return nil, fmt.Errorf("%w: unknown unspent output %s", ErrInvalidSnapshot, key)
		}
		s.unspent[key] = out
	}
	for _, tmpEvt := range snap.ParamChanges {
		err := s.params.Add(params.ChangeEvent{
			Param:           params.Param(tmpEvt.Param),
			Value:           tmpEvt.Value,
			EffectiveHeight: tmpEvt.EffectiveHeight,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
		}
	}
	for _, tmpCycle := range snap.Cycles {
		cycle := period.Cycle{
			Index:              tmpCycle.Index,
			HeightOfFirstBlock: tmpCycle.HeightOfFirstBlock,
		}
		for _, tmpDuration := range tmpCycle.Durations {
			cycle.PhaseDurations = append(cycle.PhaseDurations, period.PhaseDuration{
				Phase:    period.Phase(tmpDuration.Phase),
				Duration: tmpDuration.Duration,
			})
		}
		if err := s.calendar.Add(cycle); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
		}
	}
	for _, issuance := range snap.Issuances {
		s.issuances[issuance.TxId] = issuance
	}
	for _, txId := range snap.Confiscated {
		s.confiscated[txId] = struct{}{}
	}
	for _, result := range snap.CycleResults {
		s.cycleResults[result.CycleIndex] = result
	}
	return s, nil
}

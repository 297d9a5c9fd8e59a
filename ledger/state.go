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

// Package ledger holds the in-memory token ledger state: parsed blocks and
// transactions, output classification, the unspent output index, the cycle
// history and the governance outcomes applied to it.
//
// A State is not safe for concurrent use. The parser owns the only mutable
// instance; everything else reads immutable Views.
package ledger

import (
	"fmt"
	"maps"
	"slices"

	"github.com/blinklabs-io/daonode/params"
	"github.com/blinklabs-io/daonode/period"
)

// Genesis describes the genesis transaction of the token
type Genesis struct {
	TxId        string
	Height      uint64
	TotalSupply uint64
}

type State struct {
	genesis      Genesis
	blocks       []*Block
	txs          map[string]*Tx
	unspent      map[TxOutputKey]*TxOutput
	params       *params.Ledger
	calendar     *period.Calendar
	issuances    map[string]Issuance
	confiscated  map[string]struct{}
	cycleResults map[uint64]CycleResult
}

func NewState(genesis Genesis) *State {
	return &State{
		genesis:      genesis,
		txs:          make(map[string]*Tx),
		unspent:      make(map[TxOutputKey]*TxOutput),
		params:       &params.Ledger{},
		calendar:     &period.Calendar{},
		issuances:    make(map[string]Issuance),
		confiscated:  make(map[string]struct{}),
		cycleResults: make(map[uint64]CycleResult),
	}
}

func (s *State) Genesis() Genesis {
	return s.genesis
}

// ChainHeight returns the height of the last block, or the height before
// genesis when no block was added yet
func (s *State) ChainHeight() uint64 {
	if len(s.blocks) == 0 {
		if s.genesis.Height == 0 {
			return 0
		}
		return s.genesis.Height - 1
	}
	return s.blocks[len(s.blocks)-1].Height
}

// ChainHead returns the last block
func (s *State) ChainHead() (*Block, bool) {
	if len(s.blocks) == 0 {
		return nil, false
	}
	return s.blocks[len(s.blocks)-1], true
}

// AddBlock appends a block. The first block must be at the genesis height;
// each later block must be at head+1 and reference the head hash.
func (s *State) AddBlock(block *Block) error {
	head, ok := s.ChainHead()
	if !ok {
		if block.Height != s.genesis.Height {
			return BlockNotConnectingError{
				Height:         block.Height,
				PrevHash:       block.PrevHash,
				ExpectedHeight: s.genesis.Height,
			}
		}
	} else if block.Height != head.Height+1 || block.PrevHash != head.Hash {
		return BlockNotConnectingError{
			Height:         block.Height,
			PrevHash:       block.PrevHash,
			ExpectedHeight: head.Height + 1,
			ExpectedHash:   head.Hash,
		}
	}
	s.blocks = append(s.blocks, block)
	return nil
}

// CheckConnects reports whether a block with the given height and previous
// hash would be accepted by AddBlock
func (s *State) CheckConnects(height uint64, prevHash string) error {
	head, ok := s.ChainHead()
	if !ok {
		if height != s.genesis.Height {
			return BlockNotConnectingError{
				Height:         height,
				PrevHash:       prevHash,
				ExpectedHeight: s.genesis.Height,
			}
		}
		return nil
	}
	if height != head.Height+1 || prevHash != head.Hash {
		return BlockNotConnectingError{
			Height:         height,
			PrevHash:       prevHash,
			ExpectedHeight: head.Height + 1,
			ExpectedHash:   head.Hash,
		}
	}
	return nil
}

func (s *State) Blocks() []*Block {
	return slices.Clone(s.blocks)
}

// BlocksFrom returns all blocks at or above height
func (s *State) BlocksFrom(height uint64) []*Block {
	idx, _ := slices.BinarySearchFunc(
		s.blocks,
		height,
		func(b *Block, h uint64) int {
			switch {
			case b.Height < h:
				return -1
			case b.Height > h:
				return 1
			}
			return 0
		},
	)
	return slices.Clone(s.blocks[idx:])
}

// AddTx records a parsed token transaction and indexes its spendable
// outputs. Inputs must already have been spent with SpendOutput.
func (s *State) AddTx(tx *Tx) error {
	if _, ok := s.txs[tx.Id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTx, tx.Id)
	}
	s.txs[tx.Id] = tx
	for i := range tx.Outputs {
		out := &tx.Outputs[i]
		if isSpendable(out.Type) {
			s.unspent[out.Key()] = out
		}
	}
	return nil
}

func isSpendable(t TxOutputType) bool {
	// Issuance candidates only become spendable once accepted
	return t.IsTokenValue() && t != TxOutputTypeIssuanceCandidate
}

func (s *State) Tx(id string) (*Tx, bool) {
	tx, ok := s.txs[id]
	return tx, ok
}

// TxsOfType returns all transactions of the given type ordered by height and
// position within the block
func (s *State) TxsOfType(txType TxType) []*Tx {
	var ret []*Tx
	for _, block := range s.blocks {
		for _, tx := range block.Txs {
			if tx.TxType == txType {
				ret = append(ret, tx)
			}
		}
	}
	return ret
}

// TxOutput returns any stored output, spent or not
func (s *State) TxOutput(key TxOutputKey) (*TxOutput, bool) {
	tx, ok := s.txs[key.TxId]
	if !ok || int(key.Index) >= len(tx.Outputs) {
		return nil, false
	}
	return &tx.Outputs[key.Index], true
}

func (s *State) UnspentOutput(key TxOutputKey) (*TxOutput, bool) {
	out, ok := s.unspent[key]
	return out, ok
}

func (s *State) IsUnspent(key TxOutputKey) bool {
	_, ok := s.unspent[key]
	return ok
}

// SpendOutput removes an output from the unspent index and returns it
func (s *State) SpendOutput(key TxOutputKey) (*TxOutput, error) {
	out, ok := s.unspent[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOutputNotFound, key)
	}
	delete(s.unspent, key)
	return out, nil
}

// UnspentOutputs returns all unspent outputs ordered by key
func (s *State) UnspentOutputs() []*TxOutput {
	keys := slices.SortedFunc(maps.Keys(s.unspent), TxOutputKey.Compare)
	ret := make([]*TxOutput, 0, len(keys))
	for _, key := range keys {
		ret = append(ret, s.unspent[key])
	}
	return ret
}

func (s *State) UnspentCount() int {
	return len(s.unspent)
}

// ClassifyOutput assigns the output type. An output is classified once;
// reclassification is a consensus violation.
func (s *State) ClassifyOutput(out *TxOutput, outputType TxOutputType) error {
	if out.Type != TxOutputTypeUndefined {
		return ConsensusError{
			Reason: fmt.Sprintf(
				"output %s is %s, cannot set %s",
				out.Key(),
				out.Type,
				outputType,
			),
			Err: ErrOutputAlreadyClassified,
		}
	}
	out.Type = outputType
	return nil
}

// Params returns the parameter change ledger. Callers must not mutate it
// outside the parser.
func (s *State) Params() *params.Ledger {
	return s.params
}

// ParamValue implements params.Source
func (s *State) ParamValue(param params.Param, height uint64) uint64 {
	return s.params.ValueOf(param, height)
}

// AddParamChange records a governance approved parameter change
func (s *State) AddParamChange(evt params.ChangeEvent) error {
	if err := s.params.Add(evt); err != nil {
		return ConsensusError{
			Reason: "parameter change",
			Err:    err,
		}
	}
	return nil
}

func (s *State) Calendar() *period.Calendar {
	return s.calendar
}

func (s *State) Cycles() []period.Cycle {
	return s.calendar.Cycles()
}

func (s *State) AddCycle(cycle period.Cycle) error {
	return s.calendar.Add(cycle)
}

// AddIssuance records an accepted compensation request and makes its
// issuance candidate output spendable
func (s *State) AddIssuance(issuance Issuance) error {
	if _, ok := s.issuances[issuance.TxId]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateIssuance, issuance.TxId)
	}
	tx, ok := s.txs[issuance.TxId]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTxNotFound, issuance.TxId)
	}
	var candidate *TxOutput
	for i := range tx.Outputs {
		if tx.Outputs[i].Type == TxOutputTypeIssuanceCandidate {
			candidate = &tx.Outputs[i]
			break
		}
	}
	if candidate == nil {
		return fmt.Errorf("%w: %s", ErrNotIssuanceCandidate, issuance.TxId)
	}
	s.issuances[issuance.TxId] = issuance
	s.unspent[candidate.Key()] = candidate
	return nil
}

func (s *State) Issuance(txId string) (Issuance, bool) {
	ret, ok := s.issuances[txId]
	return ret, ok
}

// Issuances returns all issuances ordered by tx id
func (s *State) Issuances() []Issuance {
	ret := slices.Collect(maps.Values(s.issuances))
	slices.SortFunc(ret, func(a, b Issuance) int {
		if a.TxId < b.TxId {
			return -1
		}
		if a.TxId > b.TxId {
			return 1
		}
		return 0
	})
	return ret
}

// ConfiscateBond marks a lockup transaction as confiscated and removes its
// lockup output from the unspent index
func (s *State) ConfiscateBond(lockupTxId string) error {
	tx, ok := s.txs[lockupTxId]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTxNotFound, lockupTxId)
	}
	if tx.TxType != TxTypeLockup {
		return fmt.Errorf("%w: %s", ErrNotLockup, lockupTxId)
	}
	s.confiscated[lockupTxId] = struct{}{}
	for i := range tx.Outputs {
		if tx.Outputs[i].Type == TxOutputTypeLockup {
			delete(s.unspent, tx.Outputs[i].Key())
		}
	}
	return nil
}

func (s *State) IsConfiscated(lockupTxId string) bool {
	_, ok := s.confiscated[lockupTxId]
	return ok
}

// SetCycleResult stores the vote result of a cycle. A cycle has at most one
// result.
func (s *State) SetCycleResult(result CycleResult) error {
	if _, ok := s.cycleResults[result.CycleIndex]; ok {
		return fmt.Errorf("%w: cycle %d", ErrCycleResultExists, result.CycleIndex)
	}
	s.cycleResults[result.CycleIndex] = result
	return nil
}

func (s *State) CycleResult(cycleIndex uint64) (CycleResult, bool) {
	ret, ok := s.cycleResults[cycleIndex]
	return ret, ok
}

// Clone returns an independent copy. Blocks and transactions are shared
// since they are never modified after being added.
func (s *State) Clone() *State {
	return &State{
		genesis:      s.genesis,
		blocks:       slices.Clone(s.blocks),
		txs:          maps.Clone(s.txs),
		unspent:      maps.Clone(s.unspent),
		params:       s.params.Clone(),
		calendar:     s.calendar.Clone(),
		issuances:    maps.Clone(s.issuances),
		confiscated:  maps.Clone(s.confiscated),
		cycleResults: maps.Clone(s.cycleResults),
	}
}

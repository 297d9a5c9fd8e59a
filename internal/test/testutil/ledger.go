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

package testutil

import (
	"fmt"
	"testing"

	"github.com/blinklabs-io/daonode/ledger"
	"github.com/blinklabs-io/daonode/params"
	"github.com/blinklabs-io/daonode/period"
	"github.com/stretchr/testify/require"
)

const (
	GenesisTxId   = "genesis"
	GenesisHeight = 100
	TotalSupply   = 10_000
)

// ShortPhases are phase durations giving an 11 block cycle:
//
//	PROPOSAL 0-2, BREAK1 3, BLIND_VOTE 4-5, BREAK2 6, VOTE_REVEAL 7-8,
//	BREAK3 9, RESULT 10
var ShortPhases = []uint64{3, 1, 2, 1, 2, 1, 1}

// Chain builds a ledger state block by block without going through the
// parser. Transactions are stored as given.
type Chain struct {
	t     *testing.T
	State *ledger.State
}

// NewChain returns a chain with a short cycle calendar and no blocks
func NewChain(t *testing.T) *Chain {
	t.Helper()
	state := ledger.NewState(ledger.Genesis{
		TxId:        GenesisTxId,
		Height:      GenesisHeight,
		TotalSupply: TotalSupply,
	})
	for i, phase := range period.Phases {
		require.NoError(t, state.AddParamChange(params.ChangeEvent{
			Param:           phase.Param(),
			Value:           ShortPhases[i],
			EffectiveHeight: GenesisHeight,
		}))
	}
	return &Chain{t: t, State: state}
}

// SetParam records a parameter change effective at height
func (c *Chain) SetParam(param params.Param, value uint64, height uint64) {
	c.t.Helper()
	require.NoError(c.t, c.State.AddParamChange(params.ChangeEvent{
		Param:           param,
		Value:           value,
		EffectiveHeight: height,
	}))
}

// NextHeight returns the height the next block will have
func (c *Chain) NextHeight() uint64 {
	if _, ok := c.State.ChainHead(); !ok {
		return GenesisHeight
	}
	return c.State.ChainHeight() + 1
}

// AddBlock appends a block holding txs and extends the calendar
func (c *Chain) AddBlock(txs ...*ledger.Tx) *ledger.Block {
	c.t.Helper()
	height := c.NextHeight()
	block := &ledger.Block{
		Height: height,
		Hash:   fmt.Sprintf("block%d", height),
		Time:   int64(height) * 600, // #nosec G115
		Txs:    txs,
	}
	if head, ok := c.State.ChainHead(); ok {
		block.PrevHash = head.Hash
	}
	for _, tx := range txs {
		tx.BlockHeight = height
		tx.BlockHash = block.Hash
		for i := range tx.Outputs {
			tx.Outputs[i].TxId = tx.Id
			tx.Outputs[i].Index = uint32(i) // #nosec G115
			tx.Outputs[i].BlockHeight = height
		}
		require.NoError(c.t, c.State.AddTx(tx))
	}
	require.NoError(c.t, c.State.AddBlock(block))
	last, ok := c.State.Calendar().Last()
	switch {
	case !ok:
		require.NoError(c.t, c.State.AddCycle(period.FirstCycle(GenesisHeight, c.State)))
	case height > last.HeightOfLastBlock():
		require.NoError(c.t, c.State.AddCycle(period.NextCycle(last, c.State)))
	}
	return block
}

// AdvanceTo adds empty blocks until the chain height is height
func (c *Chain) AdvanceTo(height uint64) {
	c.t.Helper()
	for c.NextHeight() <= height {
		c.AddBlock()
	}
}

// AdvanceToPhase adds empty blocks until the chain is at the first block of
// phase, moving to the next cycle if needed
func (c *Chain) AdvanceToPhase(phase period.Phase) {
	c.t.Helper()
	for {
		if _, ok := c.State.ChainHead(); ok {
			height := c.State.ChainHeight()
			if c.State.Calendar().IsFirstBlockOfPhase(height, phase) {
				return
			}
		}
		c.AddBlock()
	}
}

// View returns a snapshot of the current state
func (c *Chain) View() *ledger.View {
	return c.State.View()
}

// Load implements the view source interfaces of the governance services
func (c *Chain) Load() *ledger.View {
	return c.State.View()
}

// OpReturnTx returns a token transaction of txType whose last output
// carries data and which burnt fee
func OpReturnTx(
	id string,
	txType ledger.TxType,
	data []byte,
	fee uint64,
	outputs ...ledger.TxOutput,
) *ledger.Tx {
	tx := &ledger.Tx{
		Id:       id,
		TxType:   txType,
		BurntFee: fee,
		Outputs:  outputs,
	}
	tx.Outputs = append(tx.Outputs, ledger.TxOutput{
		Type:         opReturnTypes[txType],
		OpReturnData: data,
	})
	return tx
}

var opReturnTypes = map[ledger.TxType]ledger.TxOutputType{
	ledger.TxTypeProposal:            ledger.TxOutputTypeProposalOpReturn,
	ledger.TxTypeCompensationRequest: ledger.TxOutputTypeCompReqOpReturn,
	ledger.TxTypeConfiscateBond:      ledger.TxOutputTypeConfiscateBondOpReturn,
	ledger.TxTypeBlindVote:           ledger.TxOutputTypeBlindVoteOpReturn,
	ledger.TxTypeVoteReveal:          ledger.TxOutputTypeVoteRevealOpReturn,
	ledger.TxTypeLockup:              ledger.TxOutputTypeLockupOpReturn,
}

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

// Package parser classifies raw base-chain blocks into the token ledger.
// Given the same ordered blocks every instance produces the same state.
package parser

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/daonode/chain"
	"github.com/blinklabs-io/daonode/ledger"
	"github.com/blinklabs-io/daonode/period"
	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
}

// Parser applies raw blocks to a ledger state. It holds no ledger data of
// its own; the state passed in is the only thing mutated.
type Parser struct {
	config  Config
	metrics *parserMetrics
}

// BlockResult describes what parsing a block changed
type BlockResult struct {
	Block    *ledger.Block
	TotalTxs int
	// Set when the block started a new cycle
	NewCycle *period.Cycle
}

func New(cfg Config) *Parser {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	p := &Parser{
		config: cfg,
	}
	if cfg.PromRegistry != nil {
		p.metrics = newParserMetrics(cfg.PromRegistry)
	}
	return p
}

// ParseBlock parses all transactions of raw in order and appends the block
// to state. A ledger.BlockNotConnectingError is returned without touching
// the state. A ledger.ConsensusError leaves the state unusable.
func (p *Parser) ParseBlock(
	state *ledger.State,
	raw chain.RawBlock,
) (*BlockResult, error) {
	start := time.Now()
	if err := state.CheckConnects(raw.Height, raw.PrevHash); err != nil {
		return nil, err
	}
	block := &ledger.Block{
		Height:   raw.Height,
		Hash:     raw.Hash,
		PrevHash: raw.PrevHash,
		Time:     raw.Time,
	}
	for _, rawTx := range raw.Txs {
		tx, err := p.parseTx(state, block, rawTx)
		if err != nil {
			p.logConsensusError(err, raw.Height, rawTx.Id)
			return nil, err
		}
		if tx == nil {
			continue
		}
		block.Txs = append(block.Txs, tx)
		if p.metrics != nil {
			p.metrics.tokenTxs.WithLabelValues(tx.TxType.String()).Inc()
		}
	}
	if err := state.AddBlock(block); err != nil {
		return nil, err
	}
	newCycle, err := p.updateCycles(state, raw.Height)
	if err != nil {
		p.logConsensusError(err, raw.Height, "")
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.blocks.Inc()
		p.metrics.txs.Add(float64(len(raw.Txs)))
		p.metrics.parseDuration.Observe(time.Since(start).Seconds())
	}
	p.config.Logger.Debug(
		"parsed block",
		"component", "parser",
		"height", raw.Height,
		"hash", raw.Hash,
		"token_txs", len(block.Txs),
		"txs", len(raw.Txs),
	)
	return &BlockResult{
		Block:    block,
		TotalTxs: len(raw.Txs),
		NewCycle: newCycle,
	}, nil
}

// updateCycles extends the calendar so that it covers height
func (p *Parser) updateCycles(
	state *ledger.State,
	height uint64,
) (*period.Cycle, error) {
	last, ok := state.Calendar().Last()
	if !ok {
		first := period.FirstCycle(state.Genesis().Height, state)
		if err := state.AddCycle(first); err != nil {
			return nil, ledger.ConsensusError{Reason: "add first cycle", Err: err}
		}
		return &first, nil
	}
	if height <= last.HeightOfLastBlock() {
		return nil, nil
	}
	next := period.NextCycle(last, state)
	if err := state.AddCycle(next); err != nil {
		return nil, ledger.ConsensusError{Reason: "add cycle", Err: err}
	}
	p.config.Logger.Info(
		"new cycle",
		"component", "parser",
		"cycle", next.Index,
		"first_block", next.HeightOfFirstBlock,
		"last_block", next.HeightOfLastBlock(),
	)
	return &next, nil
}

func (p *Parser) logConsensusError(err error, height uint64, txId string) {
	var consensusErr ledger.ConsensusError
	if !errors.As(err, &consensusErr) {
		return
	}
	p.config.Logger.Error(
		"consensus violation",
		"component", "parser",
		"height", height,
		"tx_id", txId,
		"error", err,
	)
}

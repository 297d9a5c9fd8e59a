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

package parser

import (
	"github.com/blinklabs-io/daonode/chain"
	"github.com/blinklabs-io/daonode/ledger"
	"github.com/blinklabs-io/daonode/opreturn"
	"github.com/blinklabs-io/daonode/params"
)

// txCandidate is the classification of a transaction before it is
// committed to the state
type txCandidate struct {
	tx          *ledger.Tx
	spent       []ledger.TxOutputKey
	outputTypes []ledger.TxOutputType
}

// parseTx returns the committed token transaction, or nil when the
// transaction is not token relevant
func (p *Parser) parseTx(
	state *ledger.State,
	block *ledger.Block,
	raw chain.RawTx,
) (*ledger.Tx, error) {
	var candidate *txCandidate
	genesis := state.Genesis()
	if block.Height == genesis.Height && raw.Id == genesis.TxId {
		if _, ok := state.Tx(raw.Id); ok {
			return nil, nil
		}
		candidate = p.classifyGenesis(genesis, block, raw)
	} else {
		candidate = p.classifyTx(state, block, raw)
	}
	if candidate == nil {
		return nil, nil
	}
	return commit(state, candidate)
}

// commit spends the inputs, assigns output types and stores the tx
func commit(state *ledger.State, candidate *txCandidate) (*ledger.Tx, error) {
	for _, key := range candidate.spent {
		if _, err := state.SpendOutput(key); err != nil {
			return nil, ledger.ConsensusError{
				Reason: "spend validated input",
				Err:    err,
			}
		}
	}
	tx := candidate.tx
	for i := range tx.Outputs {
		if err := state.ClassifyOutput(&tx.Outputs[i], candidate.outputTypes[i]); err != nil {
			return nil, err
		}
	}
	if err := state.AddTx(tx); err != nil {
		return nil, ledger.ConsensusError{Reason: "add tx", Err: err}
	}
	return tx, nil
}

func newTx(block *ledger.Block, raw chain.RawTx) *ledger.Tx {
	tx := &ledger.Tx{
		Id:          raw.Id,
		BlockHeight: block.Height,
		BlockHash:   block.Hash,
		Time:        block.Time,
		Inputs:      make([]ledger.TxInput, 0, len(raw.Inputs)),
		Outputs:     make([]ledger.TxOutput, 0, len(raw.Outputs)),
	}
	for _, in := range raw.Inputs {
		tx.Inputs = append(tx.Inputs, ledger.TxInput{
			ConnectedTxOutputKey: ledger.NewTxOutputKey(in.TxId, in.Index),
			PubKey:               in.PubKey,
		})
	}
	for i, out := range raw.Outputs {
		tx.Outputs = append(tx.Outputs, ledger.TxOutput{
			TxId:         raw.Id,
			Index:        uint32(i), // #nosec G115
			Value:        out.Value,
			Address:      out.Address,
			OpReturnData: out.OpReturnData,
			BlockHeight:  block.Height,
		})
	}
	return tx
}

// classifyGenesis assigns the configured total supply to the genesis outputs
// in order
func (p *Parser) classifyGenesis(
	genesis ledger.Genesis,
	block *ledger.Block,
	raw chain.RawTx,
) *txCandidate {
	tx := newTx(block, raw)
	tx.TxType = ledger.TxTypeGenesis
	types := make([]ledger.TxOutputType, len(tx.Outputs))
	remaining := genesis.TotalSupply
	for i, out := range tx.Outputs {
		if out.Value > 0 && out.Value <= remaining && !out.IsOpReturn() {
			types[i] = ledger.TxOutputTypeGenesis
			remaining -= out.Value
			continue
		}
		types[i] = ledger.TxOutputTypeBtc
	}
	if remaining > 0 {
		p.config.Logger.Warn(
			"genesis outputs do not distribute the total supply",
			"component", "parser",
			"tx_id", raw.Id,
			"undistributed", remaining,
		)
	}
	return &txCandidate{tx: tx, outputTypes: types}
}

// classifyTx applies the token conservation and marker rules. It does not
// mutate state.
func (p *Parser) classifyTx(
	state *ledger.State,
	block *ledger.Block,
	raw chain.RawTx,
) *txCandidate {
	tx := newTx(block, raw)
	candidate := &txCandidate{
		tx:          tx,
		outputTypes: make([]ledger.TxOutputType, len(tx.Outputs)),
	}
	var available uint64
	seen := make(map[ledger.TxOutputKey]struct{}, len(tx.Inputs))
	for i := range tx.Inputs {
		in := &tx.Inputs[i]
		key := in.ConnectedTxOutputKey
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out, ok := state.UnspentOutput(key)
		if !ok {
			continue
		}
		in.ConnectedTxOutputType = out.Type
		in.ConnectedTxOutputValue = out.Value
		available += out.Value
		candidate.spent = append(candidate.spent, key)
	}
	if available == 0 {
		return nil
	}

	// The last output may carry a marker
	valueOutputs := len(tx.Outputs)
	var payload *opreturn.Payload
	if last := tx.LastOutput(); last != nil && last.IsOpReturn() {
		valueOutputs--
		parsed, err := opreturn.Parse(last.OpReturnData)
		if err != nil {
			p.rejectTx(raw.Id, "unrecognized op_return", err)
			return nil
		}
		payload = &parsed
	}

	txType := ledger.TxTypeTransfer
	if payload != nil {
		switch payload.Type {
		case opreturn.TypeProposal:
			txType = ledger.TxTypeProposal
		case opreturn.TypeCompensationRequest:
			txType = ledger.TxTypeCompensationRequest
		case opreturn.TypeBlindVote:
			txType = ledger.TxTypeBlindVote
		case opreturn.TypeVoteReveal:
			txType = ledger.TxTypeVoteReveal
		case opreturn.TypeLockup:
			txType = ledger.TxTypeLockup
		case opreturn.TypeConfiscateBond:
			txType = ledger.TxTypeConfiscateBond
		}
	} else if len(tx.Inputs) > 0 &&
		tx.Inputs[0].ConnectedTxOutputType == ledger.TxOutputTypeLockup {
		txType = ledger.TxTypeUnlock
	}
	if reason := checkLockedInputs(state, tx, txType); reason != "" {
		p.rejectTx(raw.Id, reason, nil)
		return nil
	}

	// Token value flows to outputs in order while it covers them
	remaining := available
	covered := true
	for i := range valueOutputs {
		out := &tx.Outputs[i]
		if txType == ledger.TxTypeCompensationRequest && i == 1 {
			candidate.outputTypes[i] = ledger.TxOutputTypeIssuanceCandidate
			covered = false
			continue
		}
		if covered && !out.IsOpReturn() && out.Value > 0 && out.Value <= remaining {
			candidate.outputTypes[i] = ledger.TxOutputTypeToken
			remaining -= out.Value
			continue
		}
		covered = false
		candidate.outputTypes[i] = ledger.TxOutputTypeBtc
	}
	tx.BurntFee = remaining

	if reason := applyMarker(state, candidate, txType, payload, valueOutputs); reason != "" {
		p.rejectTx(raw.Id, reason, nil)
		return nil
	}
	tx.TxType = txType
	return candidate
}

// checkLockedInputs enforces that locked stake is only released by a vote
// reveal and bonds only by an unlock after their lock time
func checkLockedInputs(
	state *ledger.State,
	tx *ledger.Tx,
	txType ledger.TxType,
) string {
	for i, in := range tx.Inputs {
		switch in.ConnectedTxOutputType {
		case ledger.TxOutputTypeBlindVoteLockStake:
			if i != 0 || txType != ledger.TxTypeVoteReveal {
				return "blind vote stake spent outside a vote reveal"
			}
		case ledger.TxOutputTypeLockup:
			if i != 0 || txType != ledger.TxTypeUnlock {
				return "lockup output spent outside an unlock"
			}
			lockupTx, ok := state.Tx(in.ConnectedTxOutputKey.TxId)
			if !ok {
				return "unknown lockup transaction"
			}
			if tx.BlockHeight < lockupTx.BlockHeight+uint64(lockupTx.LockTime) {
				return "lock time not elapsed"
			}
		}
	}
	if txType == ledger.TxTypeVoteReveal &&
		(len(tx.Inputs) == 0 ||
			tx.Inputs[0].ConnectedTxOutputType != ledger.TxOutputTypeBlindVoteLockStake) {
		return "vote reveal does not spend blind vote stake"
	}
	return ""
}

// applyMarker assigns the marker specific output types
func applyMarker(
	state *ledger.State,
	candidate *txCandidate,
	txType ledger.TxType,
	payload *opreturn.Payload,
	valueOutputs int,
) string {
	tx := candidate.tx
	types := candidate.outputTypes
	firstIsToken := valueOutputs > 0 && types[0] == ledger.TxOutputTypeToken
	switch txType {
	case ledger.TxTypeProposal:
		types[len(types)-1] = ledger.TxOutputTypeProposalOpReturn
	case ledger.TxTypeConfiscateBond:
		types[len(types)-1] = ledger.TxOutputTypeConfiscateBondOpReturn
	case ledger.TxTypeCompensationRequest:
		if valueOutputs < 2 {
			return "compensation request without issuance candidate output"
		}
		types[len(types)-1] = ledger.TxOutputTypeCompReqOpReturn
	case ledger.TxTypeBlindVote:
		if !firstIsToken {
			return "blind vote stake output is not a token output"
		}
		types[0] = ledger.TxOutputTypeBlindVoteLockStake
		types[len(types)-1] = ledger.TxOutputTypeBlindVoteOpReturn
	case ledger.TxTypeVoteReveal:
		if !firstIsToken {
			return "vote reveal unlock output is not a token output"
		}
		types[0] = ledger.TxOutputTypeVoteRevealUnlockStake
		types[len(types)-1] = ledger.TxOutputTypeVoteRevealOpReturn
	case ledger.TxTypeLockup:
		if !firstIsToken {
			return "lockup output is not a token output"
		}
		minLockTime := state.ParamValue(params.ParamLockTimeMin, tx.BlockHeight)
		maxLockTime := state.ParamValue(params.ParamLockTimeMax, tx.BlockHeight)
		lockTime := uint64(payload.LockTime)
		if lockTime < minLockTime || lockTime > maxLockTime {
			return "lock time out of bounds"
		}
		types[0] = ledger.TxOutputTypeLockup
		types[len(types)-1] = ledger.TxOutputTypeLockupOpReturn
		tx.LockTime = payload.LockTime
		tx.Outputs[0].LockTime = payload.LockTime
	case ledger.TxTypeUnlock:
		if !firstIsToken {
			return "unlock output is not a token output"
		}
		types[0] = ledger.TxOutputTypeUnlock
	}
	return ""
}

func (p *Parser) rejectTx(txId string, reason string, err error) {
	args := []any{
		"component", "parser",
		"tx_id", txId,
		"reason", reason,
	}
	if err != nil {
		args = append(args, "error", err)
	}
	p.config.Logger.Debug("transaction not token relevant", args...)
	if p.metrics != nil {
		p.metrics.rejectedTxs.Inc()
	}
}

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

package proposal

import (
	"bytes"

	"github.com/blinklabs-io/daonode/ledger"
	"github.com/blinklabs-io/daonode/opreturn"
	"github.com/blinklabs-io/daonode/params"
)

const (
	maxNameLength        = 200
	maxDescriptionLength = 2000
)

// TxView looks up parsed transactions
type TxView interface {
	Tx(id string) (*ledger.Tx, bool)
}

// View is the ledger data needed to validate a proposal
type View interface {
	TxView
	ChainHeight() uint64
	ParamValue(param params.Param, height uint64) uint64
	IsConfiscated(lockupTxId string) bool
}

// Validate checks the proposal fields and, when the proposal is anchored to
// a parsed transaction, the transaction itself
func Validate(p Proposal, view View) error {
	if err := ValidateStructure(p, view); err != nil {
		return err
	}
	if p.IsConfirmed(view) {
		return ValidateTx(p, view)
	}
	return nil
}

// ValidateStructure checks the proposal fields against the parameters in
// effect at the proposal's height
func ValidateStructure(p Proposal, view View) error {
	if p.Uid == "" {
		return invalid("uid", "must not be empty")
	}
	if p.Name == "" {
		return invalid("name", "must not be empty")
	}
	if len(p.Name) > maxNameLength {
		return invalid("name", "longer than %d", maxNameLength)
	}
	if len(p.Description) > maxDescriptionLength {
		return invalid("description", "longer than %d", maxDescriptionLength)
	}
	if p.Link == "" {
		return invalid("link", "must not be empty")
	}
	if p.Version != Version {
		return invalid("version", "unsupported version %d", p.Version)
	}
	if !p.Kind().Valid() {
		return invalid("details", "unknown kind %s", p.Kind())
	}
	height := view.ChainHeight()
	if tx, ok := view.Tx(p.TxId); ok && p.TxId != "" {
		height = tx.BlockHeight
	}
	switch details := p.Details.(type) {
	case CompensationRequest:
		minAmount := view.ParamValue(params.ParamCompensationRequestMinAmount, height)
		maxAmount := view.ParamValue(params.ParamCompensationRequestMaxAmount, height)
		if details.RequestedAmount < minAmount || details.RequestedAmount > maxAmount {
			return invalid(
				"requestedAmount",
				"%d outside [%d, %d]",
				details.RequestedAmount,
				minAmount,
				maxAmount,
			)
		}
		if details.PayoutAddress == "" {
			return invalid("payoutAddress", "must not be empty")
		}
	case ChangeParam:
		current := view.ParamValue(details.Param, height)
		if err := params.ValidateChange(details.Param, current, details.Value); err != nil {
			return invalid("param", "%s", err)
		}
	case BondedRole:
		if details.RoleName == "" {
			return invalid("roleName", "must not be empty")
		}
		if details.RequiredBond == 0 {
			return invalid("requiredBond", "must be positive")
		}
		minLockTime := view.ParamValue(params.ParamLockTimeMin, height)
		maxLockTime := view.ParamValue(params.ParamLockTimeMax, height)
		if uint64(details.UnlockTime) < minLockTime || uint64(details.UnlockTime) > maxLockTime {
			return invalid(
				"unlockTime",
				"%d outside [%d, %d]",
				details.UnlockTime,
				minLockTime,
				maxLockTime,
			)
		}
	case ConfiscateBond:
		lockupTx, ok := view.Tx(details.LockupTxId)
		if !ok || lockupTx.TxType != ledger.TxTypeLockup {
			return invalid("lockupTxId", "%q is not a lockup transaction", details.LockupTxId)
		}
		if view.IsConfiscated(details.LockupTxId) {
			return invalid("lockupTxId", "%q already confiscated", details.LockupTxId)
		}
	}
	return nil
}

// ValidateTx checks the anchoring transaction: its type, its OP_RETURN hash
// and the burnt fee
func ValidateTx(p Proposal, view View) error {
	tx, ok := view.Tx(p.TxId)
	if !ok {
		return invalid("txId", "transaction %q not found", p.TxId)
	}
	if tx.TxType != p.Kind().TxType() {
		return invalid("txId", "transaction type %s, expected %s", tx.TxType, p.Kind().TxType())
	}
	payload, err := opreturn.Parse(tx.OpReturnData())
	if err != nil {
		return invalid("txId", "op_return: %s", err)
	}
	hash, err := p.Hash()
	if err != nil {
		return invalid("proposal", "hash: %s", err)
	}
	if payload.Type != p.Kind().Marker() || !bytes.Equal(payload.Hash, hash) {
		return invalid("txId", "op_return does not commit to this proposal")
	}
	fee := view.ParamValue(params.ParamProposalFee, tx.BlockHeight)
	if tx.BurntFee < fee {
		return invalid("fee", "burnt fee %d below proposal fee %d", tx.BurntFee, fee)
	}
	return nil
}

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

// Package proposal implements governance proposals and the ballots voters
// fill in for them.
package proposal

import (
	"fmt"
	"time"

	"github.com/blinklabs-io/daonode/encryption"
	"github.com/blinklabs-io/daonode/ledger"
	"github.com/blinklabs-io/daonode/opreturn"
	"github.com/blinklabs-io/daonode/params"
	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/google/uuid"
)

// Kind identifies a proposal variant
type Kind uint8

const (
	KindUndefined Kind = iota
	KindCompensationRequest
	KindChangeParam
	KindBondedRole
	KindConfiscateBond
	KindGeneric
)

// Version is the current proposal format version
const Version uint8 = 1

type capability struct {
	name      string
	quorum    params.Param
	threshold params.Param
	marker    opreturn.Type
	txType    ledger.TxType
}

var capabilities = map[Kind]capability{
	KindCompensationRequest: {
		name:      "CompensationRequest",
		quorum:    params.ParamQuorumCompensationRequest,
		threshold: params.ParamThresholdCompensationRequest,
		marker:    opreturn.TypeCompensationRequest,
		txType:    ledger.TxTypeCompensationRequest,
	},
	KindChangeParam: {
		name:      "ChangeParam",
		quorum:    params.ParamQuorumChangeParam,
		threshold: params.ParamThresholdChangeParam,
		marker:    opreturn.TypeProposal,
		txType:    ledger.TxTypeProposal,
	},
	KindBondedRole: {
		name:      "BondedRole",
		quorum:    params.ParamQuorumBondedRole,
		threshold: params.ParamThresholdBondedRole,
		marker:    opreturn.TypeProposal,
		txType:    ledger.TxTypeProposal,
	},
	KindConfiscateBond: {
		name:      "ConfiscateBond",
		quorum:    params.ParamQuorumConfiscation,
		threshold: params.ParamThresholdConfiscation,
		marker:    opreturn.TypeConfiscateBond,
		txType:    ledger.TxTypeConfiscateBond,
	},
	KindGeneric: {
		name:      "Generic",
		quorum:    params.ParamQuorumGeneric,
		threshold: params.ParamThresholdGeneric,
		marker:    opreturn.TypeProposal,
		txType:    ledger.TxTypeProposal,
	},
}

func (k Kind) Valid() bool {
	_, ok := capabilities[k]
	return ok
}

func (k Kind) String() string {
	if c, ok := capabilities[k]; ok {
		return c.name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// QuorumParam is the parameter holding the minimum total vote weight
func (k Kind) QuorumParam() params.Param {
	return capabilities[k].quorum
}

// ThresholdParam is the parameter holding the minimum accepting share
func (k Kind) ThresholdParam() params.Param {
	return capabilities[k].threshold
}

// Marker is the OP_RETURN type of the anchoring transaction
func (k Kind) Marker() opreturn.Type {
	return capabilities[k].marker
}

// TxType is the ledger type of the anchoring transaction
func (k Kind) TxType() ledger.TxType {
	return capabilities[k].txType
}

// Details holds the fields specific to one proposal kind
type Details interface {
	Kind() Kind
}

type CompensationRequest struct {
	cbor.StructAsArray
	RequestedAmount uint64
	PayoutAddress   string
}

func (CompensationRequest) Kind() Kind { return KindCompensationRequest }

type ChangeParam struct {
	cbor.StructAsArray
	Param params.Param
	Value uint64
}

func (ChangeParam) Kind() Kind { return KindChangeParam }

type BondedRole struct {
	cbor.StructAsArray
	RoleName     string
	RequiredBond uint64
	UnlockTime   uint16
}

func (BondedRole) Kind() Kind { return KindBondedRole }

type ConfiscateBond struct {
	cbor.StructAsArray
	LockupTxId string
}

func (ConfiscateBond) Kind() Kind { return KindConfiscateBond }

type Generic struct {
	cbor.StructAsArray
}

func (Generic) Kind() Kind { return KindGeneric }

// Proposal is immutable. WithTxId returns a copy anchored to a transaction.
type Proposal struct {
	Uid          string
	Name         string
	Title        string
	Description  string
	Link         string
	CreationTime int64
	Version      uint8
	TxId         string
	Details      Details
}

// New creates a proposal with a fresh uid
func New(name, title, description, link string, details Details) Proposal {
	return Proposal{
		Uid:          uuid.NewString(),
		Name:         name,
		Title:        title,
		Description:  description,
		Link:         link,
		CreationTime: time.Now().UnixMilli(),
		Version:      Version,
		Details:      details,
	}
}

func (p Proposal) Kind() Kind {
	if p.Details == nil {
		return KindUndefined
	}
	return p.Details.Kind()
}

// WithTxId returns a copy of the proposal anchored to txId
func (p Proposal) WithTxId(txId string) Proposal {
	p.TxId = txId
	return p
}

// IsConfirmed reports whether the anchoring tx is known to the view
func (p Proposal) IsConfirmed(view TxView) bool {
	if p.TxId == "" {
		return false
	}
	_, ok := view.Tx(p.TxId)
	return ok
}

// Hash is the hash carried in the anchoring transaction's OP_RETURN. It
// covers every field except the tx id.
func (p Proposal) Hash() ([]byte, error) {
	data, err := p.WithTxId("").Encode()
	if err != nil {
		return nil, err
	}
	return encryption.Hash160(data), nil
}

// OpReturnData builds the OP_RETURN payload for the anchoring transaction
func (p Proposal) OpReturnData() ([]byte, error) {
	hash, err := p.Hash()
	if err != nil {
		return nil, err
	}
	switch p.Kind().Marker() {
	case opreturn.TypeCompensationRequest:
		return opreturn.CompensationRequest(hash)
	case opreturn.TypeConfiscateBond:
		return opreturn.ConfiscateBond(hash)
	case opreturn.TypeProposal:
		return opreturn.Proposal(hash)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownKind, p.Kind())
}

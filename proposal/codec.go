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
	"fmt"

	"github.com/blinklabs-io/gouroboros/cbor"
)

type proposalWire struct {
	cbor.StructAsArray
	Uid          string
	Name         string
	Title        string
	Description  string
	Link         string
	CreationTime int64
	Version      uint8
	TxId         string
	Kind         uint8
	Details      cbor.RawMessage
}

// Encode returns the canonical CBOR encoding of the proposal
func (p Proposal) Encode() ([]byte, error) {
	if !p.Kind().Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, p.Kind())
	}
	detailsCbor, err := cbor.Encode(p.Details)
	if err != nil {
		return nil, fmt.Errorf("encode proposal details: %w", err)
	}
	tmp := proposalWire{
		Uid:          p.Uid,
		Name:         p.Name,
		Title:        p.Title,
		Description:  p.Description,
		Link:         p.Link,
		CreationTime: p.CreationTime,
		Version:      p.Version,
		TxId:         p.TxId,
		Kind:         uint8(p.Kind()),
		Details:      detailsCbor,
	}
	return cbor.Encode(&tmp)
}

// Decode restores a proposal from Encode output
func Decode(data []byte) (Proposal, error) {
	var tmp proposalWire
	if _, err := cbor.Decode(data, &tmp); err != nil {
		return Proposal{}, fmt.Errorf("decode proposal: %w", err)
	}
	ret := Proposal{
		Uid:          tmp.Uid,
		Name:         tmp.Name,
		Title:        tmp.Title,
		Description:  tmp.Description,
		Link:         tmp.Link,
		CreationTime: tmp.CreationTime,
		Version:      tmp.Version,
		TxId:         tmp.TxId,
	}
	var err error
	switch Kind(tmp.Kind) {
	case KindCompensationRequest:
		var details CompensationRequest
		_, err = cbor.Decode(tmp.Details, &details)
		ret.Details = details
	case KindChangeParam:
		var details ChangeParam
		_, err = cbor.Decode(tmp.Details, &details)
		ret.Details = details
	case KindBondedRole:
		var details BondedRole
		_, err = cbor.Decode(tmp.Details, &details)
		ret.Details = details
	case KindConfiscateBond:
		var details ConfiscateBond
		_, err = cbor.Decode(tmp.Details, &details)
		ret.Details = details
	case KindGeneric:
		var details Generic
		_, err = cbor.Decode(tmp.Details, &details)
		ret.Details = details
	default:
		return Proposal{}, fmt.Errorf("%w: %d", ErrUnknownKind, tmp.Kind)
	}
	if err != nil {
		return Proposal{}, fmt.Errorf("decode %s details: %w", Kind(tmp.Kind), err)
	}
	return ret, nil
}

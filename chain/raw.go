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

// Package chain defines the raw base-chain data consumed by the parser and
// the sources it is read from.
package chain

import (
	"github.com/blinklabs-io/gouroboros/cbor"
)

type RawTxInput struct {
	cbor.StructAsArray
	TxId  string
	Index uint32
	// Hex encoded public key of the key signing this input
	PubKey string
}

type RawTxOutput struct {
	cbor.StructAsArray
	Index   uint32
	Value   uint64
	Address string
	// Non-nil for OP_RETURN outputs
	OpReturnData []byte
}

type RawTx struct {
	cbor.StructAsArray
	Id      string
	Inputs  []RawTxInput
	Outputs []RawTxOutput
}

type RawBlock struct {
	cbor.StructAsArray
	Height   uint64
	Hash     string
	PrevHash string
	Time     int64
	Txs      []RawTx
}

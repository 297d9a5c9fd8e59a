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

package chain

import (
	"fmt"

	"github.com/blinklabs-io/daonode/ledger"
	"github.com/blinklabs-io/gouroboros/cbor"
)

// GetBlocksRequest asks a peer for its parsed blocks starting at FromHeight
type GetBlocksRequest struct {
	cbor.StructAsArray
	FromHeight uint64
	Nonce      uint32
}

// GetBlocksResponse carries parsed blocks and echoes the request nonce
type GetBlocksResponse struct {
	cbor.StructAsArray
	Blocks []*ledger.Block
	Nonce  uint32
}

func (r GetBlocksRequest) Encode() ([]byte, error) {
	return cbor.Encode(&r)
}

func DecodeGetBlocksRequest(data []byte) (GetBlocksRequest, error) {
	var ret GetBlocksRequest
	if _, err := cbor.Decode(data, &ret); err != nil {
		return ret, fmt.Errorf("decode get blocks request: %w", err)
	}
	return ret, nil
}

func (r GetBlocksResponse) Encode() ([]byte, error) {
	return cbor.Encode(&r)
}

func DecodeGetBlocksResponse(data []byte) (GetBlocksResponse, error) {
	var ret GetBlocksResponse
	if _, err := cbor.Decode(data, &ret); err != nil {
		return ret, fmt.Errorf("decode get blocks response: %w", err)
	}
	return ret, nil
}

// ViewSource provides the latest published ledger view
type ViewSource interface {
	Load() *ledger.View
}

// Responder answers block sync requests from the latest ledger view
type Responder struct {
	views     ViewSource
	maxBlocks int
}

// NewResponder creates a responder. A maxBlocks of 0 returns all blocks.
func NewResponder(views ViewSource, maxBlocks int) *Responder {
	return &Responder{
		views:     views,
		maxBlocks: maxBlocks,
	}
}

func (r *Responder) Handle(req GetBlocksRequest) GetBlocksResponse {
	resp := GetBlocksResponse{Nonce: req.Nonce}
	view := r.views.Load()
	if view == nil {
		return resp
	}
	resp.Blocks = view.BlocksFrom(req.FromHeight)
	if r.maxBlocks > 0 && len(resp.Blocks) > r.maxBlocks {
		resp.Blocks = resp.Blocks[:r.maxBlocks]
	}
	return resp
}

// HandleRaw decodes a request and returns the encoded response
func (r *Responder) HandleRaw(data []byte) ([]byte, error) {
	req, err := DecodeGetBlocksRequest(data)
	if err != nil {
		return nil, err
	}
	return r.Handle(req).Encode()
}

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

package chain_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blinklabs-io/daonode/chain"
	"github.com/blinklabs-io/daonode/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBlocks(from, to uint64) []chain.RawBlock {
	var ret []chain.RawBlock
	for h := from; h <= to; h++ {
		ret = append(ret, chain.RawBlock{
			Height:   h,
			Hash:     fmt.Sprintf("hash%d", h),
			PrevHash: fmt.Sprintf("hash%d", h-1),
			Txs: []chain.RawTx{
				{
					Id:      fmt.Sprintf("tx%d", h),
					Outputs: []chain.RawTxOutput{{Index: 0, Value: h}},
				},
			},
		})
	}
	return ret
}

func TestMemorySourceReplaceDiscardsAbove(t *testing.T) {
	src := chain.NewMemorySource(testBlocks(1, 5)...)
	tip, err := src.TipHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(5), tip)

	src.Add(chain.RawBlock{Height: 3, Hash: "fork3", PrevHash: "hash2"})
	tip, err = src.TipHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), tip)
	block, err := src.BlockAt(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "fork3", block.Hash)
	_, err = src.BlockAt(context.Background(), 4)
	require.ErrorIs(t, err, chain.ErrBlockNotFound)

	_, err = chain.NewMemorySource().TipHeight(context.Background())
	require.ErrorIs(t, err, chain.ErrEmptySource)
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	src := chain.NewDirSource(dir)
	_, err := src.TipHeight(context.Background())
	require.ErrorIs(t, err, chain.ErrEmptySource)
	for _, block := range testBlocks(7, 9) {
		require.NoError(t, src.WriteBlock(block))
	}
	tip, err := src.TipHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(9), tip)
	block, err := src.BlockAt(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, "hash8", block.Hash)
	require.Len(t, block.Txs, 1)
	assert.Equal(t, uint64(8), block.Txs[0].Outputs[0].Value)
	assert.Nil(t, block.Txs[0].Outputs[0].OpReturnData)
	_, err = src.BlockAt(context.Background(), 10)
	require.ErrorIs(t, err, chain.ErrBlockNotFound)
}

// flakySource fails the first fetch of every block
type flakySource struct {
	*chain.MemorySource
	failures atomic.Int32
	seen     map[uint64]bool
}

func (f *flakySource) BlockAt(ctx context.Context, height uint64) (chain.RawBlock, error) {
	if !f.seen[height] {
		f.seen[height] = true
		f.failures.Add(1)
		return chain.RawBlock{}, errors.New("temporary failure")
	}
	return f.MemorySource.BlockAt(ctx, height)
}

func TestFollowerSyncOnceRetries(t *testing.T) {
	src := &flakySource{
		MemorySource: chain.NewMemorySource(testBlocks(1, 4)...),
		seen:         make(map[uint64]bool),
	}
	f := chain.NewFollower(chain.FollowerConfig{
		Source:       src,
		FetchBackoff: time.Millisecond,
	})
	var handled []uint64
	next := func() uint64 { return uint64(len(handled)) + 1 }
	count, err := f.SyncOnce(
		context.Background(),
		next,
		func(_ context.Context, block chain.RawBlock) error {
			handled = append(handled, block.Height)
			return nil
		},
	)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.Equal(t, []uint64{1, 2, 3, 4}, handled)
	assert.Equal(t, int32(4), src.failures.Load())
}

func TestFollowerHandlerErrorStops(t *testing.T) {
	src := chain.NewMemorySource(testBlocks(1, 4)...)
	f := chain.NewFollower(chain.FollowerConfig{Source: src})
	errStop := errors.New("stop")
	height := uint64(1)
	count, err := f.SyncOnce(
		context.Background(),
		func() uint64 { return height },
		func(_ context.Context, block chain.RawBlock) error {
			if block.Height == 3 {
				return errStop
			}
			height++
			return nil
		},
	)
	require.ErrorIs(t, err, errStop)
	assert.Equal(t, 2, count)
}

func TestFollowerRunCancel(t *testing.T) {
	src := chain.NewMemorySource(testBlocks(1, 2)...)
	f := chain.NewFollower(chain.FollowerConfig{
		Source:       src,
		PollInterval: 5 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	var height atomic.Uint64
	height.Store(1)
	done := make(chan error, 1)
	go func() {
		done <- f.Run(
			ctx,
			height.Load,
			func(_ context.Context, block chain.RawBlock) error {
				height.Store(block.Height + 1)
				return nil
			},
		)
	}()
	require.Eventually(t, func() bool { return height.Load() == 3 }, time.Second, time.Millisecond)
	src.Add(testBlocks(3, 3)[0])
	require.Eventually(t, func() bool { return height.Load() == 4 }, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("follower did not stop")
	}
}

type staticViews struct {
	view *ledger.View
}

func (s staticViews) Load() *ledger.View {
	return s.view
}

func TestResponder(t *testing.T) {
	state := ledger.NewState(ledger.Genesis{TxId: "g", Height: 1})
	require.NoError(t, state.AddBlock(&ledger.Block{Height: 1, Hash: "h1"}))
	require.NoError(t, state.AddBlock(&ledger.Block{Height: 2, Hash: "h2", PrevHash: "h1"}))
	require.NoError(t, state.AddBlock(&ledger.Block{Height: 3, Hash: "h3", PrevHash: "h2"}))

	r := chain.NewResponder(staticViews{view: state.View()}, 1)
	resp := r.Handle(chain.GetBlocksRequest{FromHeight: 2, Nonce: 42})
	assert.Equal(t, uint32(42), resp.Nonce)
	require.Len(t, resp.Blocks, 1)
	assert.Equal(t, "h2", resp.Blocks[0].Hash)

	reqData, err := chain.GetBlocksRequest{FromHeight: 1, Nonce: 7}.Encode()
	require.NoError(t, err)
	respData, err := chain.NewResponder(staticViews{view: state.View()}, 0).HandleRaw(reqData)
	require.NoError(t, err)
	decoded, err := chain.DecodeGetBlocksResponse(respData)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), decoded.Nonce)
	require.Len(t, decoded.Blocks, 3)
	assert.Equal(t, "h3", decoded.Blocks[2].Hash)

	empty := chain.NewResponder(staticViews{}, 0).Handle(chain.GetBlocksRequest{Nonce: 1})
	assert.Empty(t, empty.Blocks)
	assert.Equal(t, uint32(1), empty.Nonce)
}

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

package node

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/blinklabs-io/daonode/chain"
	"github.com/blinklabs-io/daonode/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBlocks(t *testing.T, dir string, from uint64, to uint64) {
	t.Helper()
	source := chain.NewDirSource(dir)
	for height := from; height <= to; height++ {
		block := chain.RawBlock{
			Height: height,
			Hash:   fmt.Sprintf("block%d", height),
		}
		if height > from {
			block.PrevHash = fmt.Sprintf("block%d", height-1)
		} else {
			block.Txs = []chain.RawTx{
				{
					Id:      "genesis",
					Inputs:  []chain.RawTxInput{{TxId: "coinbase"}},
					Outputs: []chain.RawTxOutput{{Value: 1000, Address: "alice"}},
				},
			}
		}
		require.NoError(t, source.WriteBlock(block))
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	blocksDir := filepath.Join(tmpDir, "blocks")
	writeBlocks(t, blocksDir, 100, 150)
	cfg := &config.Config{
		DatabasePath:       filepath.Join(tmpDir, "db"),
		Network:            "regtest",
		GenesisTxId:        "genesis",
		GenesisHeight:      100,
		GenesisTotalSupply: 1000,
		SnapshotInterval:   20,
		ShutdownTimeout:    "5s",
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	count, err := Load(context.Background(), cfg, logger, blocksDir)
	require.NoError(t, err)
	assert.Equal(t, 51, count)

	// Resumes from the snapshot persisted at height 140
	count, err = Load(context.Background(), cfg, logger, blocksDir)
	require.NoError(t, err)
	assert.Equal(t, 30, count)
}

func TestLoadEmptyDir(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := &config.Config{
		DatabasePath:       filepath.Join(tmpDir, "db"),
		GenesisTxId:        "genesis",
		GenesisHeight:      100,
		GenesisTotalSupply: 1000,
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	count, err := Load(context.Background(), cfg, logger, tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

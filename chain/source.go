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
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/blinklabs-io/gouroboros/cbor"
)

const blockFileSuffix = ".cbor"

// BlockSource provides raw blocks of the base chain
type BlockSource interface {
	// TipHeight returns the height of the best known block
	TipHeight(ctx context.Context) (uint64, error)
	// BlockAt returns the block at height on the best chain
	BlockAt(ctx context.Context, height uint64) (RawBlock, error)
}

// MemorySource is an in-memory BlockSource
type MemorySource struct {
	mu     sync.RWMutex
	blocks map[uint64]RawBlock
	tip    uint64
	empty  bool
}

func NewMemorySource(blocks ...RawBlock) *MemorySource {
	m := &MemorySource{
		blocks: make(map[uint64]RawBlock),
		empty:  true,
	}
	for _, block := range blocks {
		m.Add(block)
	}
	return m
}

// Add adds or replaces a block. Blocks above it are discarded, which
// mirrors a chain reorganization when replacing.
func (m *MemorySource) Add(block RawBlock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.empty && block.Height <= m.tip {
		for h := block.Height + 1; h <= m.tip; h++ {
			delete(m.blocks, h)
		}
	}
	m.blocks[block.Height] = block
	m.tip = block.Height
	m.empty = false
}

func (m *MemorySource) TipHeight(ctx context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.empty {
		return 0, ErrEmptySource
	}
	return m.tip, nil
}

func (m *MemorySource) BlockAt(ctx context.Context, height uint64) (RawBlock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	block, ok := m.blocks[height]
	if !ok {
		return RawBlock{}, fmt.Errorf("%w: %d", ErrBlockNotFound, height)
	}
	return block, nil
}

// DirSource reads CBOR encoded blocks from files named <height>.cbor
type DirSource struct {
	dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (d *DirSource) blockPath(height uint64) string {
	return filepath.Join(
		d.dir,
		strconv.FormatUint(height, 10)+blockFileSuffix,
	)
}

func (d *DirSource) TipHeight(ctx context.Context) (uint64, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return 0, err
	}
	var tip uint64
	found := false
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, ok := strings.CutSuffix(entry.Name(), blockFileSuffix)
		if !ok {
			continue
		}
		height, err := strconv.ParseUint(name, 10, 64)
		if err != nil {
			continue
		}
		if !found || height > tip {
			tip = height
			found = true
		}
	}
	if !found {
		return 0, ErrEmptySource
	}
	return tip, nil
}

func (d *DirSource) BlockAt(ctx context.Context, height uint64) (RawBlock, error) {
	data, err := os.ReadFile(d.blockPath(height))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return RawBlock{}, fmt.Errorf("%w: %d", ErrBlockNotFound, height)
		}
		return RawBlock{}, err
	}
	var block RawBlock
	if _, err := cbor.Decode(data, &block); err != nil {
		return RawBlock{}, fmt.Errorf("%w: %w", ErrInvalidBlockFile, err)
	}
	if block.Height != height {
		return RawBlock{}, NewBlockHeightMismatchError(height, block.Height)
	}
	return block, nil
}

// WriteBlock stores a block in the directory
func (d *DirSource) WriteBlock(block RawBlock) error {
	data, err := cbor.Encode(&block)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(d.blockPath(block.Height), data, 0o600)
}

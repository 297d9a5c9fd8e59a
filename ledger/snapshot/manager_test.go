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

package snapshot_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/blinklabs-io/daonode/internal/test/testutil"
	"github.com/blinklabs-io/daonode/ledger"
	"github.com/blinklabs-io/daonode/ledger/snapshot"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	heights []uint64
	data    map[uint64][]byte
	err     error
}

func (s *memStore) SaveSnapshot(height uint64, hash string, data []byte) error {
	if s.err != nil {
		return s.err
	}
	if s.data == nil {
		s.data = make(map[uint64][]byte)
	}
	s.heights = append(s.heights, height)
	s.data[height] = data
	return nil
}

func (s *memStore) LatestSnapshot() ([]byte, bool, error) {
	if len(s.heights) == 0 {
		return nil, false, nil
	}
	return s.data[s.heights[len(s.heights)-1]], true, nil
}

func genesis() ledger.Genesis {
	return ledger.Genesis{
		TxId:        testutil.GenesisTxId,
		Height:      testutil.GenesisHeight,
		TotalSupply: testutil.TotalSupply,
	}
}

func newManager(store snapshot.Store, reg prometheus.Registerer) *snapshot.Manager {
	return snapshot.NewManager(snapshot.ManagerConfig{
		Store:        store,
		Genesis:      genesis(),
		Interval:     5,
		PromRegistry: reg,
	})
}

// feed adds blocks up to height, calling the manager after each one
func feed(t *testing.T, c *testutil.Chain, m *snapshot.Manager, height uint64) {
	t.Helper()
	for c.NextHeight() <= height {
		c.AddBlock()
		require.NoError(t, m.OnBlock(c.State))
	}
}

func TestIsSnapshotHeight(t *testing.T) {
	m := newManager(nil, nil)
	assert.False(t, m.IsSnapshotHeight(100))
	assert.False(t, m.IsSnapshotHeight(104))
	assert.True(t, m.IsSnapshotHeight(105))
	assert.True(t, m.IsSnapshotHeight(110))
	assert.False(t, m.IsSnapshotHeight(50))
}

func TestSnapshotLagsOneInterval(t *testing.T) {
	store := &memStore{}
	reg := prometheus.NewRegistry()
	m := newManager(store, reg)
	c := testutil.NewChain(t)

	feed(t, c, m, 105)
	_, ok := m.Latest()
	assert.False(t, ok, "first snapshot is only a candidate")
	assert.Empty(t, store.heights)

	feed(t, c, m, 112)
	latest, ok := m.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(105), latest.ChainHeight())
	assert.Equal(t, []uint64{105}, store.heights)

	feed(t, c, m, 115)
	latest, _ = m.Latest()
	assert.Equal(t, uint64(110), latest.ChainHeight())
	assert.Equal(t, []uint64{105, 110}, store.heights)
	expected := `
# HELP daonode_snapshot_taken_total total ledger snapshots taken
# TYPE daonode_snapshot_taken_total counter
daonode_snapshot_taken_total 3
`
	require.NoError(t, promtestutil.GatherAndCompare(
		reg,
		strings.NewReader(expected),
		"daonode_snapshot_taken_total",
	))
}

func TestRestoreFallsBack(t *testing.T) {
	store := &memStore{}
	m := newManager(store, nil)
	c := testutil.NewChain(t)
	feed(t, c, m, 111)

	state, source, err := m.Restore()
	require.NoError(t, err)
	assert.Equal(t, snapshot.SourceMemory, source)
	assert.Equal(t, uint64(105), state.ChainHeight())

	state, source, err = m.Restore()
	require.NoError(t, err)
	assert.Equal(t, snapshot.SourceDatabase, source)
	assert.Equal(t, uint64(105), state.ChainHeight())
	head, ok := state.ChainHead()
	require.True(t, ok)
	assert.Equal(t, "block105", head.Hash)

	state, source, err = m.Restore()
	require.NoError(t, err)
	assert.Equal(t, snapshot.SourceGenesis, source)
	_, ok = state.ChainHead()
	assert.False(t, ok)
	assert.Equal(t, genesis(), state.Genesis())
}

func TestRestoreResetsAfterBlock(t *testing.T) {
	m := newManager(&memStore{}, nil)
	c := testutil.NewChain(t)
	feed(t, c, m, 111)

	state, source, err := m.Restore()
	require.NoError(t, err)
	require.Equal(t, snapshot.SourceMemory, source)

	// Resume parsing on the restored state
	c.State = state
	feed(t, c, m, 106)
	feed(t, c, m, 107)

	_, source, err = m.Restore()
	require.NoError(t, err)
	assert.Equal(t, snapshot.SourceMemory, source)
}

func TestRestoreWithoutSnapshots(t *testing.T) {
	m := newManager(nil, nil)
	state, source, err := m.Restore()
	require.NoError(t, err)
	assert.Equal(t, snapshot.SourceGenesis, source)
	assert.Equal(t, uint64(testutil.GenesisHeight-1), state.ChainHeight())
}

func TestPersistFailureKeepsMemorySnapshot(t *testing.T) {
	store := &memStore{err: errors.New("disk full")}
	m := newManager(store, nil)
	c := testutil.NewChain(t)
	feed(t, c, m, 109)
	c.AddBlock()
	require.Error(t, m.OnBlock(c.State))

	latest, ok := m.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(105), latest.ChainHeight())
}

func TestLoad(t *testing.T) {
	store := &memStore{}
	c := testutil.NewChain(t)
	feed(t, c, newManager(store, nil), 111)

	m := newManager(store, nil)
	state, ok, err := m.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(105), state.ChainHeight())

	_, source, err := m.Restore()
	require.NoError(t, err)
	assert.Equal(t, snapshot.SourceMemory, source)
}

func TestLoadRejectsOtherGenesis(t *testing.T) {
	store := &memStore{}
	c := testutil.NewChain(t)
	feed(t, c, newManager(store, nil), 111)

	m := snapshot.NewManager(snapshot.ManagerConfig{
		Store:    store,
		Genesis:  ledger.Genesis{TxId: "other", Height: testutil.GenesisHeight},
		Interval: 5,
	})
	_, _, err := m.Load()
	require.Error(t, err)
}

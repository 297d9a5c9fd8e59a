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

// Package snapshot keeps periodic copies of the ledger state so the node can
// recover from a chain reorganization without parsing from genesis.
package snapshot

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/daonode/ledger"
	"github.com/prometheus/client_golang/prometheus"
)

const DefaultInterval = 20

const (
	SourceMemory   = "memory"
	SourceDatabase = "database"
	SourceGenesis  = "genesis"
)

// Store persists encoded snapshots
type Store interface {
	SaveSnapshot(height uint64, hash string, data []byte) error
	// LatestSnapshot returns the snapshot with the highest height
	LatestSnapshot() ([]byte, bool, error)
}

type ManagerConfig struct {
	Logger       *slog.Logger
	Store        Store
	PromRegistry prometheus.Registerer
	Genesis      ledger.Genesis
	// NewGenesisState builds the state used when no snapshot is available.
	// Defaults to an empty state for Genesis.
	NewGenesisState func() *ledger.State
	Interval        uint64
}

// Manager takes a snapshot every Interval blocks. The most recent snapshot
// is only kept as a candidate; when the next one is taken the candidate is
// promoted and persisted, so the restorable snapshot is always at least one
// full interval behind the chain head.
type Manager struct {
	logger    *slog.Logger
	store     Store
	metrics   *snapshotMetrics
	genesis   ledger.Genesis
	newState  func() *ledger.State
	interval  uint64
	mu        sync.Mutex
	candidate *ledger.State
	latest    *ledger.State
	// restores since the last parsed block; each one falls back a level
	restores int
}

func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		logger:   cfg.Logger,
		store:    cfg.Store,
		genesis:  cfg.Genesis,
		newState: cfg.NewGenesisState,
		interval: cfg.Interval,
		metrics:  newSnapshotMetrics(cfg.PromRegistry),
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if m.interval == 0 {
		m.interval = DefaultInterval
	}
	if m.newState == nil {
		m.newState = func() *ledger.State {
			return ledger.NewState(m.genesis)
		}
	}
	return m
}

// IsSnapshotHeight reports whether a snapshot is taken after the block at
// height
func (m *Manager) IsSnapshotHeight(height uint64) bool {
	if height <= m.genesis.Height {
		return false
	}
	return (height-m.genesis.Height)%m.interval == 0
}

// OnBlock is called by the parser after each block was applied to state
func (m *Manager) OnBlock(state *ledger.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restores = 0
	height := state.ChainHeight()
	if !m.IsSnapshotHeight(height) {
		return nil
	}
	if m.candidate != nil && m.candidate.ChainHeight() >= height {
		// Replaying blocks after a restore
		return nil
	}
	var err error
	if m.candidate != nil {
		m.latest = m.candidate
		err = m.persist(m.latest)
	}
	m.candidate = state.Clone()
	m.metrics.taken.Inc()
	m.logger.Debug(
		"took ledger snapshot",
		"component", "snapshot",
		"height", height,
	)
	return err
}

func (m *Manager) persist(state *ledger.State) error {
	height := state.ChainHeight()
	m.metrics.height.Set(float64(height))
	if m.store == nil {
		return nil
	}
	head, ok := state.ChainHead()
	if !ok {
		return nil
	}
	data, err := state.Encode()
	if err != nil {
		return fmt.Errorf("encode snapshot at height %d: %w", height, err)
	}
	if err := m.store.SaveSnapshot(height, head.Hash, data); err != nil {
		m.metrics.persistFailed.Inc()
		return fmt.Errorf("persist snapshot at height %d: %w", height, err)
	}
	m.metrics.persisted.Inc()
	m.logger.Info(
		"persisted ledger snapshot",
		"component", "snapshot",
		"height", height,
		"bytes", len(data),
	)
	return nil
}

// Latest returns a copy of the restorable in-memory snapshot
func (m *Manager) Latest() (*ledger.State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latest == nil {
		return nil, false
	}
	return m.latest.Clone(), true
}

// Restore returns a state to resume parsing from along with where it came
// from. Restoring again before another block was parsed falls back one
// level each time: memory, database, then genesis.
func (m *Manager) Restore() (*ledger.State, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Anything newer than the returned state may be from an orphaned branch
	m.candidate = nil
	level := m.restores
	m.restores++
	if level == 0 && m.latest != nil {
		m.metrics.restored.WithLabelValues(SourceMemory).Inc()
		return m.latest.Clone(), SourceMemory, nil
	}
	m.latest = nil
	if level <= 1 && m.store != nil {
		state, ok, err := m.load()
		if err != nil {
			m.logger.Error(
				"failed to load persisted snapshot",
				"component", "snapshot",
				"error", err,
			)
		} else if ok {
			m.restores = 2
			m.metrics.restored.WithLabelValues(SourceDatabase).Inc()
			return state, SourceDatabase, nil
		}
	}
	m.restores = 3
	m.metrics.restored.WithLabelValues(SourceGenesis).Inc()
	return m.newState(), SourceGenesis, nil
}

// Load returns the persisted snapshot, if any, and makes it the restorable
// in-memory snapshot. It is used at startup.
func (m *Manager) Load() (*ledger.State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return nil, false, nil
	}
	state, ok, err := m.load()
	if err != nil || !ok {
		return nil, false, err
	}
	m.latest = state.Clone()
	return state, true, nil
}

func (m *Manager) load() (*ledger.State, bool, error) {
	data, ok, err := m.store.LatestSnapshot()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	state, err := ledger.DecodeState(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode snapshot: %w", err)
	}
	if state.Genesis() != m.genesis {
		return nil, false, errors.New("snapshot genesis does not match")
	}
	return state, true, nil
}

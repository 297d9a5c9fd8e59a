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

// Package database persists node state across restarts: ledger snapshots
// in a blob store (badger, or a GCS bucket) and the governance lists in a
// SQLite metadata store.
package database

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/blinklabs-io/daonode/database/plugin/blob"
	"github.com/blinklabs-io/daonode/database/plugin/blob/badger"
	"github.com/blinklabs-io/daonode/database/plugin/blob/gcs"
	"github.com/blinklabs-io/daonode/database/plugin/metadata"
	"github.com/blinklabs-io/daonode/database/plugin/metadata/sqlite"
	"github.com/blinklabs-io/daonode/ledger"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultSnapshotHistory = 2

	genesisSyncKey = "genesis"
)

type Config struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// DataDir is the storage directory. Empty keeps everything in memory.
	DataDir string
	// Genesis the database belongs to. A database created for a different
	// genesis is refused.
	Genesis ledger.Genesis
	// Number of persisted snapshots kept
	SnapshotHistory int
	// SnapshotURL stores snapshots in a GCS bucket (gs://<bucket>/<prefix>)
	// instead of the local blob store
	SnapshotURL string
	// Service account credentials for SnapshotURL
	CredentialsFile string
}

type Database struct {
	logger          *slog.Logger
	blob            blob.BlobStore
	metadata        metadata.MetadataStore
	dataDir         string
	genesis         ledger.Genesis
	snapshotHistory int
}

// New opens the blob and metadata stores in the data directory
func New(cfg *Config) (*Database, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	metadataDb, err := sqlite.New(
		sqlite.WithDataDir(cfg.DataDir),
		sqlite.WithLogger(logger),
		sqlite.WithPromRegistry(cfg.PromRegistry),
	)
	if err != nil {
		if metadataDb != nil {
			_ = metadataDb.Close()
		}
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	blobDb, err := openBlobStore(cfg, logger)
	if err != nil {
		_ = metadataDb.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	d := &Database{
		logger:          logger,
		blob:            blobDb,
		metadata:        metadataDb,
		dataDir:         cfg.DataDir,
		genesis:         cfg.Genesis,
		snapshotHistory: cfg.SnapshotHistory,
	}
	if d.snapshotHistory <= 0 {
		d.snapshotHistory = DefaultSnapshotHistory
	}
	if err := d.checkGenesis(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

func openBlobStore(cfg *Config, logger *slog.Logger) (blob.BlobStore, error) {
	if cfg.SnapshotURL == "" {
		return badger.New(
			badger.WithDataDir(cfg.DataDir),
			badger.WithLogger(logger),
			badger.WithPromRegistry(cfg.PromRegistry),
		)
	}
	bucket, prefix, err := gcs.ParseURL(cfg.SnapshotURL)
	if err != nil {
		return nil, err
	}
	store, err := gcs.New(
		gcs.WithBucket(bucket),
		gcs.WithPrefix(prefix),
		gcs.WithCredentialsFile(cfg.CredentialsFile),
		gcs.WithLogger(logger),
		gcs.WithPromRegistry(cfg.PromRegistry),
	)
	if err != nil {
		return nil, err
	}
	if err := store.Start(); err != nil {
		return nil, err
	}
	return store, nil
}

func genesisKey(g ledger.Genesis) string {
	return fmt.Sprintf("%s:%d:%d", g.TxId, g.Height, g.TotalSupply)
}

// checkGenesis records the genesis on first use and rejects a database
// created for another one
func (d *Database) checkGenesis() error {
	want := genesisKey(d.genesis)
	have, ok, err := d.metadata.GetSyncState(genesisSyncKey)
	if err != nil {
		return fmt.Errorf("read genesis: %w", err)
	}
	if !ok {
		return d.metadata.SetSyncState(genesisSyncKey, want)
	}
	if have != want {
		return fmt.Errorf("%w: have %s, want %s", ErrGenesisMismatch, have, want)
	}
	return nil
}

// Blob returns the underlying blob store instance
func (d *Database) Blob() blob.BlobStore {
	return d.blob
}

// Metadata returns the underlying metadata store instance
func (d *Database) Metadata() metadata.MetadataStore {
	return d.metadata
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.dataDir
}

// Close cleans up the database connections
func (d *Database) Close() error {
	var err error
	// Close metadata
	metadataErr := d.metadata.Close()
	err = errors.Join(err, metadataErr)
	// Close blob
	blobErr := d.blob.Close()
	err = errors.Join(err, blobErr)
	return err
}

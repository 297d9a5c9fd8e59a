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

package database

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/blinklabs-io/daonode/database/models"
	"github.com/blinklabs-io/daonode/database/plugin/blob"
)

const snapshotKeyPrefix = "snapshot/"

func snapshotKey(height uint64) string {
	// Fixed width keeps keys in height order
	return fmt.Sprintf("%s%016x", snapshotKeyPrefix, height)
}

func snapshotKeyHeight(key []byte) (uint64, bool) {
	hexHeight, ok := strings.CutPrefix(string(key), snapshotKeyPrefix)
	if !ok {
		return 0, false
	}
	height, err := strconv.ParseUint(hexHeight, 16, 64)
	return height, err == nil
}

// SaveSnapshot stores an encoded ledger snapshot and removes snapshots
// beyond the configured history
func (d *Database) SaveSnapshot(height uint64, hash string, data []byte) error {
	key := snapshotKey(height)
	if err := d.blob.Set([]byte(key), data); err != nil {
		return fmt.Errorf("write snapshot blob: %w", err)
	}
	if err := d.metadata.AddSnapshot(models.Snapshot{
		Height:    height,
		BlockHash: hash,
		BlobKey:   key,
		Size:      len(data),
	}); err != nil {
		return fmt.Errorf("record snapshot: %w", err)
	}
	return d.pruneSnapshots()
}

func (d *Database) pruneSnapshots() error {
	keys, err := d.blob.Keys([]byte(snapshotKeyPrefix))
	if err != nil {
		return err
	}
	if len(keys) <= d.snapshotHistory {
		return nil
	}
	keep, ok := snapshotKeyHeight(keys[len(keys)-d.snapshotHistory])
	if !ok {
		return fmt.Errorf("invalid snapshot key: %s", keys[len(keys)-d.snapshotHistory])
	}
	if _, err := d.metadata.DeleteSnapshotsBefore(keep); err != nil {
		return err
	}
	for _, key := range keys[:len(keys)-d.snapshotHistory] {
		if err := d.blob.Delete(key); err != nil {
			return err
		}
		d.logger.Debug(
			"removed old snapshot",
			"component", "database",
			"key", string(key),
		)
	}
	return nil
}

// LatestSnapshot returns the encoded snapshot with the highest height
func (d *Database) LatestSnapshot() ([]byte, bool, error) {
	record, ok, err := d.metadata.LatestSnapshot()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	data, err := d.blob.Get([]byte(record.BlobKey))
	if err != nil {
		if errors.Is(err, blob.ErrKeyNotFound) {
			return nil, false, fmt.Errorf(
				"%w: height %d",
				ErrSnapshotNotFound,
				record.Height,
			)
		}
		return nil, false, err
	}
	return data, true, nil
}

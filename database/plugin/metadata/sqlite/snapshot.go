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

package sqlite

import "github.com/blinklabs-io/daonode/database/models"

// AddSnapshot records a snapshot, replacing any record at the same height
func (d *MetadataStoreSqlite) AddSnapshot(snapshot models.Snapshot) error {
	result := d.db.Where("height = ?", snapshot.Height).
		Delete(&models.Snapshot{})
	if result.Error != nil {
		return result.Error
	}
	return d.db.Create(&snapshot).Error
}

// LatestSnapshot returns the snapshot record with the highest height
func (d *MetadataStoreSqlite) LatestSnapshot() (models.Snapshot, bool, error) {
	var ret models.Snapshot
	result := d.db.Order("height desc").Limit(1).Find(&ret)
	if result.Error != nil {
		return models.Snapshot{}, false, result.Error
	}
	return ret, result.RowsAffected > 0, nil
}

// DeleteSnapshotsBefore removes the records of snapshots below height and
// returns them so their blobs can be removed
func (d *MetadataStoreSqlite) DeleteSnapshotsBefore(
	height uint64,
) ([]models.Snapshot, error) {
	var stale []models.Snapshot
	if result := d.db.Where("height < ?", height).Find(&stale); result.Error != nil {
		return nil, result.Error
	}
	if len(stale) == 0 {
		return nil, nil
	}
	if result := d.db.Where("height < ?", height).Delete(&models.Snapshot{}); result.Error != nil {
		return nil, result.Error
	}
	return stale, nil
}

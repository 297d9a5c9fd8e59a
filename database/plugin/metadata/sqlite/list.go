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

import (
	"fmt"

	"github.com/blinklabs-io/daonode/database/models"
	"gorm.io/gorm"
)

// SaveList writes a new version of the list and prunes versions beyond the
// configured history. It returns the new version.
func (d *MetadataStoreSqlite) SaveList(
	kind models.ListKind,
	height uint64,
	count int,
	data []byte,
) (uint64, error) {
	var version uint64
	err := d.db.Transaction(func(tx *gorm.DB) error {
		latest, ok, err := latestList(tx, kind)
		if err != nil {
			return err
		}
		version = 1
		if ok {
			version = latest.Version + 1
		}
		record, err := models.NewListModel(kind)
		if err != nil {
			return err
		}
		*record.Record() = models.ListRecord{
			Version: version,
			Height:  height,
			Count:   count,
			Cbor:    data,
		}
		if result := tx.Create(record); result.Error != nil {
			return result.Error
		}
		if version <= d.listHistory {
			return nil
		}
		stale, err := models.NewListModel(kind)
		if err != nil {
			return err
		}
		return tx.Where("version <= ?", version-d.listHistory).
			Delete(stale).Error
	})
	if err != nil {
		return 0, fmt.Errorf("save %s list: %w", kind, err)
	}
	d.metrics.listSaves.WithLabelValues(string(kind)).Inc()
	return version, nil
}

// LatestList returns the most recent version of the list
func (d *MetadataStoreSqlite) LatestList(
	kind models.ListKind,
) (models.ListRecord, bool, error) {
	return latestList(d.db, kind)
}

func latestList(
	db *gorm.DB,
	kind models.ListKind,
) (models.ListRecord, bool, error) {
	record, err := models.NewListModel(kind)
	if err != nil {
		return models.ListRecord{}, false, err
	}
	result := db.Order("version desc").Limit(1).Find(record)
	if result.Error != nil {
		return models.ListRecord{}, false, result.Error
	}
	if result.RowsAffected == 0 {
		return models.ListRecord{}, false, nil
	}
	return *record.Record(), true, nil
}

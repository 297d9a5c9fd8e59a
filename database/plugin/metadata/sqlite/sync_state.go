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
	"github.com/blinklabs-io/daonode/database/models"
	"gorm.io/gorm/clause"
)

func (d *MetadataStoreSqlite) GetSyncState(key string) (string, bool, error) {
	var ret models.SyncState
	result := d.db.Where("sync_key = ?", key).Limit(1).Find(&ret)
	if result.Error != nil {
		return "", false, result.Error
	}
	return ret.Value, result.RowsAffected > 0, nil
}

func (d *MetadataStoreSqlite) SetSyncState(key string, value string) error {
	return d.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sync_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&models.SyncState{Key: key, Value: value}).Error
}

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

package metadata

import "github.com/blinklabs-io/daonode/database/models"

type MetadataStore interface {
	Close() error

	// Versioned lists
	SaveList(kind models.ListKind, height uint64, count int, data []byte) (uint64, error)
	LatestList(kind models.ListKind) (models.ListRecord, bool, error)

	// Snapshots
	AddSnapshot(snapshot models.Snapshot) error
	LatestSnapshot() (models.Snapshot, bool, error)
	DeleteSnapshotsBefore(height uint64) ([]models.Snapshot, error)

	// Sync state
	GetSyncState(key string) (string, bool, error)
	SetSyncState(key string, value string) error
}

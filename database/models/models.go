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

package models

import "fmt"

// MigrateModels lists the models created at startup
var MigrateModels = []any{
	&BallotList{},
	&BlindVoteList{},
	&MyVoteList{},
	&ParamChangeList{},
	&ProposalList{},
	&Snapshot{},
	&SyncState{},
}

// ListKind identifies one of the persisted lists
type ListKind string

const (
	ListBallots      ListKind = "ballots"
	ListBlindVotes   ListKind = "blind_votes"
	ListMyVotes      ListKind = "my_votes"
	ListParamChanges ListKind = "param_changes"
	ListProposals    ListKind = "proposals"
)

// ListRecord is one version of a persisted list. Each save writes a new
// version holding the whole CBOR encoded list.
type ListRecord struct {
	Version uint64 `gorm:"uniqueIndex;not null"`
	// Chain height the list was saved at
	Height uint64 `gorm:"not null"`
	Count  int    `gorm:"not null"`
	Cbor   []byte `gorm:"not null"`
}

// ListModel is implemented by the list tables
type ListModel interface {
	TableName() string
	Record() *ListRecord
}

// NewListModel returns an empty model for the table backing kind
func NewListModel(kind ListKind) (ListModel, error) {
	switch kind {
	case ListBallots:
		return &BallotList{}, nil
	case ListBlindVotes:
		return &BlindVoteList{}, nil
	case ListMyVotes:
		return &MyVoteList{}, nil
	case ListParamChanges:
		return &ParamChangeList{}, nil
	case ListProposals:
		return &ProposalList{}, nil
	}
	return nil, fmt.Errorf("unknown list kind: %s", kind)
}

type BallotList struct {
	ID         uint `gorm:"primarykey"`
	ListRecord `gorm:"embedded"`
}

func (BallotList) TableName() string {
	return "ballot_list"
}

func (b *BallotList) Record() *ListRecord {
	return &b.ListRecord
}

type BlindVoteList struct {
	ID         uint `gorm:"primarykey"`
	ListRecord `gorm:"embedded"`
}

func (BlindVoteList) TableName() string {
	return "blind_vote_list"
}

func (b *BlindVoteList) Record() *ListRecord {
	return &b.ListRecord
}

type MyVoteList struct {
	ID         uint `gorm:"primarykey"`
	ListRecord `gorm:"embedded"`
}

func (MyVoteList) TableName() string {
	return "my_vote_list"
}

func (m *MyVoteList) Record() *ListRecord {
	return &m.ListRecord
}

type ParamChangeList struct {
	ID         uint `gorm:"primarykey"`
	ListRecord `gorm:"embedded"`
}

func (ParamChangeList) TableName() string {
	return "param_change_list"
}

func (p *ParamChangeList) Record() *ListRecord {
	return &p.ListRecord
}

// ProposalList holds every anchored proposal seen, including those of
// closed cycles
type ProposalList struct {
	ID         uint `gorm:"primarykey"`
	ListRecord `gorm:"embedded"`
}

func (ProposalList) TableName() string {
	return "proposal_list"
}

func (p *ProposalList) Record() *ListRecord {
	return &p.ListRecord
}

// Snapshot records a ledger snapshot stored in the blob store
type Snapshot struct {
	ID        uint   `gorm:"primarykey"`
	Height    uint64 `gorm:"uniqueIndex;not null"`
	BlockHash string `gorm:"size:64;not null"`
	BlobKey   string `gorm:"size:255;not null"`
	Size      int    `gorm:"not null"`
	CreatedAt int64  `gorm:"autoCreateTime"`
}

func (Snapshot) TableName() string {
	return "snapshot"
}

// SyncState stores node wide key/value pairs such as the genesis the
// database was created for
type SyncState struct {
	Key   string `gorm:"column:sync_key;primaryKey;size:255"`
	Value string `gorm:"type:text;not null"`
}

func (SyncState) TableName() string {
	return "sync_state"
}

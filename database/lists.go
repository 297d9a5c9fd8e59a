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
	"fmt"

	"github.com/blinklabs-io/daonode/blindvote"
	"github.com/blinklabs-io/daonode/database/models"
	"github.com/blinklabs-io/daonode/params"
	"github.com/blinklabs-io/daonode/proposal"
	"github.com/blinklabs-io/gouroboros/cbor"
)

func (d *Database) saveList(
	kind models.ListKind,
	height uint64,
	count int,
	data []byte,
) (uint64, error) {
	version, err := d.metadata.SaveList(kind, height, count, data)
	if err != nil {
		return 0, err
	}
	d.logger.Debug(
		"saved list",
		"component", "database",
		"list", string(kind),
		"version", version,
		"count", count,
	)
	return version, nil
}

// loadList returns the CBOR of the latest version of the list, or nil when
// the list was never saved
func (d *Database) loadList(kind models.ListKind) ([]byte, error) {
	record, ok, err := d.metadata.LatestList(kind)
	if err != nil {
		return nil, fmt.Errorf("load %s list: %w", kind, err)
	}
	if !ok {
		return nil, nil
	}
	return record.Cbor, nil
}

func (d *Database) SaveBallots(height uint64, ballots []proposal.Ballot) (uint64, error) {
	data, err := proposal.EncodeBallots(ballots)
	if err != nil {
		return 0, err
	}
	return d.saveList(models.ListBallots, height, len(ballots), data)
}

func (d *Database) LoadBallots() ([]proposal.Ballot, error) {
	data, err := d.loadList(models.ListBallots)
	if err != nil || data == nil {
		return nil, err
	}
	return proposal.DecodeBallots(data)
}

// SaveProposals stores the proposal archive used to tally past cycles
func (d *Database) SaveProposals(height uint64, proposals []proposal.Proposal) (uint64, error) {
	data, err := proposal.EncodeProposals(proposals)
	if err != nil {
		return 0, err
	}
	return d.saveList(models.ListProposals, height, len(proposals), data)
}

func (d *Database) LoadProposals() ([]proposal.Proposal, error) {
	data, err := d.loadList(models.ListProposals)
	if err != nil || data == nil {
		return nil, err
	}
	return proposal.DecodeProposals(data)
}

func (d *Database) SaveBlindVotes(height uint64, votes []blindvote.BlindVote) (uint64, error) {
	data, err := blindvote.EncodeList(votes)
	if err != nil {
		return 0, err
	}
	return d.saveList(models.ListBlindVotes, height, len(votes), data)
}

func (d *Database) LoadBlindVotes() ([]blindvote.BlindVote, error) {
	data, err := d.loadList(models.ListBlindVotes)
	if err != nil || data == nil {
		return nil, err
	}
	return blindvote.DecodeList(data)
}

func (d *Database) SaveMyVotes(height uint64, votes []blindvote.MyVote) (uint64, error) {
	data, err := blindvote.EncodeMyVotes(votes)
	if err != nil {
		return 0, err
	}
	return d.saveList(models.ListMyVotes, height, len(votes), data)
}

func (d *Database) LoadMyVotes() ([]blindvote.MyVote, error) {
	data, err := d.loadList(models.ListMyVotes)
	if err != nil || data == nil {
		return nil, err
	}
	return blindvote.DecodeMyVotes(data)
}

type paramChangeRecord struct {
	cbor.StructAsArray
	Param           uint8
	Value           uint64
	EffectiveHeight uint64
}

// SaveParamChanges stores the applied parameter change history
func (d *Database) SaveParamChanges(height uint64, events []params.ChangeEvent) (uint64, error) {
	records := make([]paramChangeRecord, 0, len(events))
	for _, evt := range events {
		records = append(records, paramChangeRecord{
			Param:           uint8(evt.Param),
			Value:           evt.Value,
			EffectiveHeight: evt.EffectiveHeight,
		})
	}
	data, err := cbor.Encode(records)
	if err != nil {
		return 0, fmt.Errorf("encode param changes: %w", err)
	}
	return d.saveList(models.ListParamChanges, height, len(events), data)
}

func (d *Database) LoadParamChanges() ([]params.ChangeEvent, error) {
	data, err := d.loadList(models.ListParamChanges)
	if err != nil || data == nil {
		return nil, err
	}
	var records []paramChangeRecord
	if _, err := cbor.Decode(data, &records); err != nil {
		return nil, fmt.Errorf("decode param changes: %w", err)
	}
	ret := make([]params.ChangeEvent, 0, len(records))
	for _, r := range records {
		param := params.Param(r.Param)
		if !param.Valid() {
			return nil, fmt.Errorf("unknown param in stored changes: %d", r.Param)
		}
		ret = append(ret, params.ChangeEvent{
			Param:           param,
			Value:           r.Value,
			EffectiveHeight: r.EffectiveHeight,
		})
	}
	return ret, nil
}

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

package blindvote

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Store holds every blind vote this node has seen, keyed by tx id
type Store struct {
	mu    sync.RWMutex
	votes map[string]BlindVote
}

func NewStore(votes ...BlindVote) *Store {
	s := &Store{votes: make(map[string]BlindVote, len(votes))}
	for _, v := range votes {
		s.votes[v.TxId] = v
	}
	return s
}

// Add stores a blind vote and reports whether it was new. A known tx id is
// never replaced.
func (s *Store) Add(vote BlindVote) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.votes[vote.TxId]; ok {
		return false
	}
	s.votes[vote.TxId] = vote
	return true
}

func (s *Store) Remove(txId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.votes, txId)
}

func (s *Store) Get(txId string) (BlindVote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.votes[txId]
	return v, ok
}

// All returns the stored blind votes ordered by tx id
func (s *Store) All() []BlindVote {
	s.mu.RLock()
	ret := slices.Collect(maps.Values(s.votes))
	s.mu.RUnlock()
	sortByTxId(ret)
	return ret
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.votes)
}

// MyVoteStore holds the blind votes created by this node
type MyVoteStore struct {
	mu    sync.RWMutex
	votes map[string]MyVote
}

func NewMyVoteStore(votes ...MyVote) *MyVoteStore {
	s := &MyVoteStore{votes: make(map[string]MyVote, len(votes))}
	for _, v := range votes {
		s.votes[v.BlindVoteTxId] = v
	}
	return s
}

func (s *MyVoteStore) Add(vote MyVote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes[vote.BlindVoteTxId] = vote
}

func (s *MyVoteStore) Remove(blindVoteTxId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.votes, blindVoteTxId)
}

func (s *MyVoteStore) Get(blindVoteTxId string) (MyVote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.votes[blindVoteTxId]
	return v, ok
}

// All returns my votes ordered by creation height and then tx id
func (s *MyVoteStore) All() []MyVote {
	s.mu.RLock()
	ret := slices.Collect(maps.Values(s.votes))
	s.mu.RUnlock()
	slices.SortFunc(ret, func(a, b MyVote) int {
		if c := cmp.Compare(a.Height, b.Height); c != 0 {
			return c
		}
		return cmp.Compare(a.BlindVoteTxId, b.BlindVoteTxId)
	})
	return ret
}

// SetRevealTxId records the reveal transaction of a vote. An empty id
// clears it so the reveal is attempted again.
func (s *MyVoteStore) SetRevealTxId(blindVoteTxId string, revealTxId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.votes[blindVoteTxId]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMyVoteNotFound, blindVoteTxId)
	}
	v.RevealTxId = revealTxId
	s.votes[blindVoteTxId] = v
	return nil
}

// Unrevealed returns my votes without a reveal tx id
func (s *MyVoteStore) Unrevealed() []MyVote {
	var ret []MyVote
	for _, v := range s.All() {
		if v.RevealTxId == "" {
			ret = append(ret, v)
		}
	}
	return ret
}

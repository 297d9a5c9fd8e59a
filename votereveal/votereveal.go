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

// Package votereveal publishes the reveal transactions for this node's
// blind votes. A vote that is not revealed during the vote reveal phase of
// its cycle is forfeited.
package votereveal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/daonode/blindvote"
	"github.com/blinklabs-io/daonode/broadcast"
	"github.com/blinklabs-io/daonode/ledger"
	"github.com/blinklabs-io/daonode/opreturn"
	"github.com/blinklabs-io/daonode/period"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ErrNoWallet = errors.New("no wallet configured")

// TxRequest describes the reveal transaction a wallet must build. It spends
// StakeOutput as its first input.
type TxRequest struct {
	StakeOutput  ledger.TxOutputKey
	StakeAmount  uint64
	OpReturnData []byte
}

type Wallet interface {
	BuildVoteRevealTx(ctx context.Context, req TxRequest) (broadcast.Tx, error)
}

type Config struct {
	Logger       *slog.Logger
	Wallet       Wallet
	Broadcaster  *broadcast.Broadcaster
	BlindVotes   *blindvote.Store
	MyVotes      *blindvote.MyVoteStore
	PromRegistry prometheus.Registerer
}

type Service struct {
	config   Config
	mu       sync.Mutex
	revealed prometheus.Counter
	failed   prometheus.Counter
}

func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.BlindVotes == nil {
		cfg.BlindVotes = blindvote.NewStore()
	}
	if cfg.MyVotes == nil {
		cfg.MyVotes = blindvote.NewMyVoteStore()
	}
	s := &Service{config: cfg}
	if cfg.PromRegistry != nil {
		promautoFactory := promauto.With(cfg.PromRegistry)
		s.revealed = promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "daonode_votereveal_published_total",
			Help: "total vote reveal transactions published",
		})
		s.failed = promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "daonode_votereveal_failed_total",
			Help: "total vote reveal transactions that failed to build or broadcast",
		})
	}
	return s
}

// OnBlock reveals every unrevealed vote of the current cycle while the chain
// is in the vote reveal phase. It is safe to call on every block: a vote
// with a reveal tx id is never revealed twice. Returns the reveal tx ids
// published by this call.
func (s *Service) OnBlock(ctx context.Context, view *ledger.View) []string {
	if view.CurrentPhase() != period.PhaseVoteReveal {
		return nil
	}
	cycle, ok := view.CurrentCycle()
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var ret []string
	for _, myVote := range s.config.MyVotes.Unrevealed() {
		tx, ok := view.Tx(myVote.BlindVoteTxId)
		if !ok || !view.IsTxInCorrectCycle(tx.BlockHeight) {
			continue
		}
		revealTxId, err := s.reveal(ctx, view, cycle, myVote, tx)
		if err != nil {
			// OnFailure already counted a failed broadcast
			if s.failed != nil && !errors.Is(err, broadcast.ErrBroadcastFailed) {
				s.failed.Inc()
			}
			s.config.Logger.Warn(
				"failed to reveal vote",
				"component", "votereveal",
				"blind_vote_tx_id", myVote.BlindVoteTxId,
				"error", err,
			)
			continue
		}
		ret = append(ret, revealTxId)
	}
	return ret
}

func (s *Service) reveal(
	ctx context.Context,
	view *ledger.View,
	cycle period.Cycle,
	myVote blindvote.MyVote,
	blindVoteTx *ledger.Tx,
) (string, error) {
	if s.config.Wallet == nil || s.config.Broadcaster == nil {
		return "", ErrNoWallet
	}
	list := blindvote.SortedForCycle(s.config.BlindVotes.All(), view, cycle.Index)
	listHash, err := blindvote.HashOfList(list)
	if err != nil {
		return "", err
	}
	opReturnData, err := opreturn.VoteReveal(listHash, myVote.SecretKey)
	if err != nil {
		return "", err
	}
	stake := blindVoteTx.Outputs[0]
	tx, err := s.config.Wallet.BuildVoteRevealTx(ctx, TxRequest{
		StakeOutput:  stake.Key(),
		StakeAmount:  stake.Value,
		OpReturnData: opReturnData,
	})
	if err != nil {
		return "", fmt.Errorf("build vote reveal tx: %w", err)
	}
	// Recorded before broadcasting so the next block does not reveal again
	if err := s.config.MyVotes.SetRevealTxId(myVote.BlindVoteTxId, tx.Id); err != nil {
		return "", err
	}
	blindVoteTxId := myVote.BlindVoteTxId
	handle, err := s.config.Broadcaster.Broadcast(ctx, tx, broadcast.Callbacks{
		OnFailure: func(result broadcast.Result) {
			// Cleared so a later block in the reveal phase retries
			_ = s.config.MyVotes.SetRevealTxId(blindVoteTxId, "")
			if s.failed != nil {
				s.failed.Inc()
			}
			s.config.Logger.Warn(
				"vote reveal broadcast failed",
				"component", "votereveal",
				"blind_vote_tx_id", blindVoteTxId,
				"tx_id", result.TxId,
				"error", result.Err,
			)
		},
	})
	if err == nil {
		err = handle.Failed()
	}
	if err != nil {
		_ = s.config.MyVotes.SetRevealTxId(blindVoteTxId, "")
		return "", err
	}
	if s.revealed != nil {
		s.revealed.Inc()
	}
	s.config.Logger.Info(
		"revealed vote",
		"component", "votereveal",
		"blind_vote_tx_id", blindVoteTxId,
		"tx_id", tx.Id,
		"blind_votes", len(list),
	)
	return tx.Id, nil
}

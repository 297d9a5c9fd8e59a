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
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/blinklabs-io/daonode/broadcast"
	"github.com/blinklabs-io/daonode/encryption"
	"github.com/blinklabs-io/daonode/ledger"
	"github.com/blinklabs-io/daonode/opreturn"
	"github.com/blinklabs-io/daonode/params"
	"github.com/blinklabs-io/daonode/period"
	"github.com/blinklabs-io/daonode/proposal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ViewSource interface {
	Load() *ledger.View
}

// TxRequest describes the stake locking transaction a wallet must build
type TxRequest struct {
	Stake        uint64
	Fee          uint64
	OpReturnData []byte
}

type Wallet interface {
	BuildBlindVoteTx(ctx context.Context, req TxRequest) (broadcast.Tx, error)
}

type ServiceConfig struct {
	Logger       *slog.Logger
	Views        ViewSource
	Wallet       Wallet
	Signer       MeritSigner
	Broadcaster  *broadcast.Broadcaster
	Store        *Store
	MyVotes      *MyVoteStore
	PromRegistry prometheus.Registerer
}

type Service struct {
	config  ServiceConfig
	created prometheus.Counter
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Store == nil {
		cfg.Store = NewStore()
	}
	if cfg.MyVotes == nil {
		cfg.MyVotes = NewMyVoteStore()
	}
	s := &Service{config: cfg}
	if cfg.PromRegistry != nil {
		s.created = promauto.With(cfg.PromRegistry).NewCounter(prometheus.CounterOpts{
			Name: "daonode_blindvote_created_total",
			Help: "total blind votes created by this node",
		})
	}
	return s
}

func (s *Service) Store() *Store {
	return s.config.Store
}

func (s *Service) MyVotes() *MyVoteStore {
	return s.config.MyVotes
}

// Create encrypts the votes of ballots, locks stake in a blind vote
// transaction and broadcasts it. The key and vote list are kept in the my
// vote store; both records are dropped again if the broadcast fails.
func (s *Service) Create(
	ctx context.Context,
	ballots []proposal.Ballot,
	stake uint64,
	callbacks broadcast.Callbacks,
) (MyVote, *broadcast.Handle, error) {
	if s.config.Views == nil || s.config.Views.Load() == nil {
		return MyVote{}, nil, ErrNoLedgerView
	}
	if s.config.Wallet == nil || s.config.Broadcaster == nil {
		return MyVote{}, nil, ErrNoWallet
	}
	view := s.config.Views.Load()
	if view.CurrentPhase() != period.PhaseBlindVote {
		return MyVote{}, nil, ErrNotInBlindVotePhase
	}
	if stake == 0 {
		return MyVote{}, nil, ErrInvalidStake
	}
	votes := proposal.VoteList(ballots)
	hasVote := false
	for _, v := range votes {
		if v.Vote != nil {
			hasVote = true
			break
		}
	}
	if !hasVote {
		return MyVote{}, nil, ErrNoVotes
	}

	key, err := encryption.NewSecretKey()
	if err != nil {
		return MyVote{}, nil, err
	}
	votesCbor, err := proposal.EncodeVoteList(votes)
	if err != nil {
		return MyVote{}, nil, err
	}
	encryptedVotes, err := encryption.Encrypt(key, votesCbor)
	if err != nil {
		return MyVote{}, nil, err
	}
	opReturnData, err := opreturn.BlindVote(encryption.Hash160(encryptedVotes))
	if err != nil {
		return MyVote{}, nil, err
	}
	tx, err := s.config.Wallet.BuildBlindVoteTx(ctx, TxRequest{
		Stake:        stake,
		Fee:          view.ParamValue(params.ParamBlindVoteFee, view.ChainHeight()),
		OpReturnData: opReturnData,
	})
	if err != nil {
		return MyVote{}, nil, fmt.Errorf("build blind vote tx: %w", err)
	}

	// Merits sign the tx id so they can only be created once the tx is built
	merits := CreateMerits(view.Issuances(), s.config.Signer, tx.Id)
	meritsCbor, err := EncodeMeritList(merits)
	if err != nil {
		return MyVote{}, nil, err
	}
	encryptedMerits, err := encryption.Encrypt(key, meritsCbor)
	if err != nil {
		return MyVote{}, nil, err
	}
	blindVote := BlindVote{
		TxId:               tx.Id,
		StakeAmount:        stake,
		EncryptedVotes:     encryptedVotes,
		EncryptedMeritList: encryptedMerits,
	}
	myVote := MyVote{
		BlindVoteTxId: tx.Id,
		Height:        view.ChainHeight(),
		SecretKey:     key,
		Votes:         votes,
		BlindVote:     blindVote,
	}
	s.config.MyVotes.Add(myVote)
	s.config.Store.Add(blindVote)

	onFailure := callbacks.OnFailure
	callbacks.OnFailure = func(result broadcast.Result) {
		s.forget(tx.Id)
		if onFailure != nil {
			onFailure(result)
		}
	}
	handle, err := s.config.Broadcaster.Broadcast(ctx, tx, callbacks)
	if err == nil {
		err = handle.Failed()
	}
	if err != nil {
		s.forget(tx.Id)
		return MyVote{}, nil, err
	}
	if s.created != nil {
		s.created.Inc()
	}
	s.config.Logger.Info(
		"created blind vote",
		"component", "blindvote",
		"tx_id", tx.Id,
		"stake", stake,
		"votes", len(votes),
		"merits", len(merits),
	)
	return myVote, handle, nil
}

func (s *Service) forget(txId string) {
	s.config.MyVotes.Remove(txId)
	s.config.Store.Remove(txId)
}

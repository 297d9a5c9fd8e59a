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

package proposal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/blinklabs-io/daonode/broadcast"
	"github.com/blinklabs-io/daonode/ledger"
	"github.com/blinklabs-io/daonode/params"
	"github.com/blinklabs-io/daonode/period"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ViewSource provides the latest ledger view
type ViewSource interface {
	Load() *ledger.View
}

// TxRequest describes the anchoring transaction a wallet must build
type TxRequest struct {
	Kind         Kind
	Fee          uint64
	OpReturnData []byte
	// Only for compensation requests
	IssuanceAmount  uint64
	IssuanceAddress string
}

// Wallet builds and signs proposal transactions
type Wallet interface {
	BuildProposalTx(ctx context.Context, req TxRequest) (broadcast.Tx, error)
}

type ServiceConfig struct {
	Logger       *slog.Logger
	Views        ViewSource
	Wallet       Wallet
	Broadcaster  *broadcast.Broadcaster
	PromRegistry prometheus.Registerer
}

// Service keeps the open ballot list and an archive of every anchored
// proposal it has seen. Readers get copy-on-write snapshots.
type Service struct {
	config    ServiceConfig
	mu        sync.Mutex
	ballots   atomic.Pointer[[]Ballot]
	archive   map[string]Proposal
	archiveMu sync.RWMutex
	metrics   *serviceMetrics
}

type serviceMetrics struct {
	ballots   prometheus.Gauge
	submitted prometheus.Counter
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s := &Service{
		config:  cfg,
		archive: make(map[string]Proposal),
	}
	empty := []Ballot{}
	s.ballots.Store(&empty)
	if cfg.PromRegistry != nil {
		promautoFactory := promauto.With(cfg.PromRegistry)
		s.metrics = &serviceMetrics{
			ballots: promautoFactory.NewGauge(prometheus.GaugeOpts{
				Name: "daonode_proposal_open_ballots",
				Help: "number of ballots in the open ballot list",
			}),
			submitted: promautoFactory.NewCounter(prometheus.CounterOpts{
				Name: "daonode_proposal_submitted_total",
				Help: "total proposals submitted by this node",
			}),
		}
	}
	return s
}

// Ballots returns the open ballot list
func (s *Service) Ballots() []Ballot {
	return slices.Clone(*s.ballots.Load())
}

// Ballot returns the open ballot for the proposal uid
func (s *Service) Ballot(uid string) (Ballot, bool) {
	for _, b := range *s.ballots.Load() {
		if b.Proposal.Uid == uid {
			return b, true
		}
	}
	return Ballot{}, false
}

// ProposalByTxId returns any anchored proposal the service has seen,
// including those of closed cycles
func (s *Service) ProposalByTxId(txId string) (Proposal, bool) {
	s.archiveMu.RLock()
	defer s.archiveMu.RUnlock()
	p, ok := s.archive[txId]
	return p, ok
}

// Archive returns every archived proposal ordered by tx id
func (s *Service) Archive() []Proposal {
	s.archiveMu.RLock()
	defer s.archiveMu.RUnlock()
	ret := make([]Proposal, 0, len(s.archive))
	for _, txId := range slices.Sorted(maps.Keys(s.archive)) {
		ret = append(ret, s.archive[txId])
	}
	return ret
}

// RestoreArchive adds proposals loaded from storage to the archive
func (s *Service) RestoreArchive(proposals []Proposal) {
	s.archiveMu.Lock()
	defer s.archiveMu.Unlock()
	for _, p := range proposals {
		if p.TxId != "" {
			s.archive[p.TxId] = p
		}
	}
}

func (s *Service) store(ballots []Ballot) {
	s.ballots.Store(&ballots)
	if s.metrics != nil {
		s.metrics.ballots.Set(float64(len(ballots)))
	}
}

func (s *Service) view() (*ledger.View, error) {
	if s.config.Views == nil {
		return nil, ErrNoLedgerView
	}
	view := s.config.Views.Load()
	if view == nil {
		return nil, ErrNoLedgerView
	}
	return view, nil
}

// CheckEligible reports whether the proposal may be voted on: it is valid
// and either confirmed in the proposal phase of the current cycle, or
// unconfirmed while the chain is in the proposal phase
func CheckEligible(p Proposal, view *ledger.View) error {
	if err := Validate(p, view); err != nil {
		return err
	}
	if p.IsConfirmed(view) {
		tx, _ := view.Tx(p.TxId)
		if !view.IsTxInPhaseAndCycle(tx.BlockHeight, period.PhaseProposal) {
			return fmt.Errorf(
				"%w: tx %s at height %d is not in the proposal phase of the current cycle",
				ErrNotEligible,
				p.TxId,
				tx.BlockHeight,
			)
		}
		return nil
	}
	if view.CurrentPhase() != period.PhaseProposal {
		return fmt.Errorf(
			"%w: unconfirmed outside the proposal phase",
			ErrNotEligible,
		)
	}
	return nil
}

// Add adds a proposal to the open ballot list. Adding a known uid updates
// the proposal and keeps the vote.
func (s *Service) Add(p Proposal) error {
	view, err := s.view()
	if err != nil {
		return err
	}
	if err := CheckEligible(p, view); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current := *s.ballots.Load()
	updated := make([]Ballot, 0, len(current)+1)
	found := false
	for _, b := range current {
		if b.Proposal.Uid == p.Uid {
			b.Proposal = p
			found = true
		}
		updated = append(updated, b)
	}
	if !found {
		updated = append(updated, Ballot{Proposal: p})
	}
	s.store(updated)
	if p.TxId != "" {
		s.archiveMu.Lock()
		s.archive[p.TxId] = p
		s.archiveMu.Unlock()
	}
	return nil
}

// Restore replaces the open ballot list with ballots loaded from storage.
// Eligibility is checked again on the next OnBlock.
func (s *Service) Restore(ballots []Ballot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store(slices.Clone(ballots))
	s.archiveMu.Lock()
	defer s.archiveMu.Unlock()
	for _, b := range ballots {
		if b.Proposal.TxId != "" {
			s.archive[b.Proposal.TxId] = b.Proposal
		}
	}
}

// Remove removes a ballot. A proposal confirmed in the proposal phase of
// the current cycle can not be removed.
func (s *Service) Remove(uid string) error {
	view, err := s.view()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current := *s.ballots.Load()
	idx := slices.IndexFunc(current, func(b Ballot) bool {
		return b.Proposal.Uid == uid
	})
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrBallotNotFound, uid)
	}
	p := current[idx].Proposal
	if p.IsConfirmed(view) {
		tx, _ := view.Tx(p.TxId)
		if view.IsTxInPhaseAndCycle(tx.BlockHeight, period.PhaseProposal) {
			return fmt.Errorf("%w: %s", ErrRemoveConfirmed, uid)
		}
	}
	s.store(slices.Delete(slices.Clone(current), idx, idx+1))
	return nil
}

// SetVote sets or clears the local vote on a ballot
func (s *Service) SetVote(uid string, vote *Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := *s.ballots.Load()
	idx := slices.IndexFunc(current, func(b Ballot) bool {
		return b.Proposal.Uid == uid
	})
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrBallotNotFound, uid)
	}
	updated := slices.Clone(current)
	updated[idx] = updated[idx].WithVote(vote)
	s.store(updated)
	return nil
}

// OnBlock removes ballots that are no longer eligible and returns them
func (s *Service) OnBlock(view *ledger.View) []Ballot {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := *s.ballots.Load()
	kept := make([]Ballot, 0, len(current))
	var removed []Ballot
	for _, b := range current {
		if err := CheckEligible(b.Proposal, view); err != nil {
			s.config.Logger.Debug(
				"removing ballot",
				"component", "proposal",
				"uid", b.Proposal.Uid,
				"reason", err,
			)
			removed = append(removed, b)
			continue
		}
		if b.Proposal.TxId != "" {
			s.archiveMu.Lock()
			s.archive[b.Proposal.TxId] = b.Proposal
			s.archiveMu.Unlock()
		}
		kept = append(kept, b)
	}
	if len(removed) > 0 {
		s.store(kept)
	}
	return removed
}

// Submit validates a new proposal, has the wallet build its anchoring
// transaction and broadcasts it. The anchored proposal is added to the
// open ballot list right away and removed again if the broadcast fails.
func (s *Service) Submit(
	ctx context.Context,
	p Proposal,
	callbacks broadcast.Callbacks,
) (Proposal, *broadcast.Handle, error) {
	view, err := s.view()
	if err != nil {
		return Proposal{}, nil, err
	}
	if s.config.Wallet == nil || s.config.Broadcaster == nil {
		return Proposal{}, nil, ErrNoWallet
	}
	if err := ValidateStructure(p, view); err != nil {
		return Proposal{}, nil, err
	}
	if view.CurrentPhase() != period.PhaseProposal {
		return Proposal{}, nil, ErrNotInProposalPhase
	}
	opReturnData, err := p.OpReturnData()
	if err != nil {
		return Proposal{}, nil, err
	}
	req := TxRequest{
		Kind:         p.Kind(),
		Fee:          view.ParamValue(params.ParamProposalFee, view.ChainHeight()),
		OpReturnData: opReturnData,
	}
	if details, ok := p.Details.(CompensationRequest); ok {
		req.IssuanceAmount = details.RequestedAmount
		req.IssuanceAddress = details.PayoutAddress
	}
	tx, err := s.config.Wallet.BuildProposalTx(ctx, req)
	if err != nil {
		return Proposal{}, nil, fmt.Errorf("build proposal tx: %w", err)
	}
	anchored := p.WithTxId(tx.Id)
	if err := s.Add(anchored); err != nil {
		return Proposal{}, nil, err
	}
	onFailure := callbacks.OnFailure
	callbacks.OnFailure = func(result broadcast.Result) {
		if err := s.Remove(anchored.Uid); err != nil {
			s.config.Logger.Warn(
				"failed to remove ballot after broadcast failure",
				"component", "proposal",
				"uid", anchored.Uid,
				"error", err,
			)
		}
		if onFailure != nil {
			onFailure(result)
		}
	}
	handle, err := s.config.Broadcaster.Broadcast(ctx, tx, callbacks)
	if err == nil {
		err = handle.Failed()
	}
	if err != nil {
		_ = s.Remove(anchored.Uid)
		return Proposal{}, nil, err
	}
	if s.metrics != nil {
		s.metrics.submitted.Inc()
	}
	s.config.Logger.Info(
		"submitted proposal",
		"component", "proposal",
		"uid", anchored.Uid,
		"kind", anchored.Kind().String(),
		"tx_id", tx.Id,
	)
	return anchored, handle, nil
}

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

// Package voteresult tallies the revealed votes of a cycle once it reaches
// its result phase and applies accepted proposals to the ledger state.
package voteresult

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/blinklabs-io/daonode/blindvote"
	"github.com/blinklabs-io/daonode/event"
	"github.com/blinklabs-io/daonode/ledger"
	"github.com/blinklabs-io/daonode/params"
	"github.com/blinklabs-io/daonode/period"
	"github.com/blinklabs-io/daonode/proposal"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/blinklabs-io/daonode/voteresult"

type Config struct {
	Logger        *slog.Logger
	EventBus      *event.EventBus
	BlindVotes    *blindvote.Store
	Proposals     ProposalSource
	PromRegistry  prometheus.Registerer
	BlocksPerYear uint64
	// Defaults to the global tracer provider
	TracerProvider trace.TracerProvider
}

type Service struct {
	config  Config
	tracer  trace.Tracer
	metrics *resultMetrics
}

func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.BlindVotes == nil {
		cfg.BlindVotes = blindvote.NewStore()
	}
	if cfg.BlocksPerYear == 0 {
		cfg.BlocksPerYear = DefaultBlocksPerYear
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	s := &Service{
		config: cfg,
		tracer: cfg.TracerProvider.Tracer(tracerName),
	}
	if cfg.PromRegistry != nil {
		s.metrics = newResultMetrics(cfg.PromRegistry)
	}
	return s
}

// OnBlock runs the tally of the current cycle when the chain is in its
// result phase and the cycle has no result yet. A tally deferred for
// missing blind votes or unknown voted proposals is retried on the next
// block. Must be called from the
// goroutine that owns state.
func (s *Service) OnBlock(
	ctx context.Context,
	state *ledger.State,
) (*ledger.CycleResult, error) {
	height := state.ChainHeight()
	cycle, ok := state.Calendar().CycleAt(height)
	if !ok || cycle.PhaseAt(height) != period.PhaseResult {
		return nil, nil
	}
	if _, ok := state.CycleResult(cycle.Index); ok {
		return nil, nil
	}
	_, span := s.tracer.Start(
		ctx,
		"voteresult.tally",
		trace.WithAttributes(
			attribute.Int64("daonode.cycle", int64(cycle.Index)), // #nosec G115
			attribute.Int64("daonode.height", int64(height)),     // #nosec G115
		),
	)
	defer span.End()

	tally, err := CountVotes(state, cycle, s.config.BlindVotes.All(), s.config.BlocksPerYear)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count votes")
		return nil, err
	}
	if tally.Deferred {
		span.AddEvent("deferred")
		if s.metrics != nil {
			s.metrics.deferred.Inc()
		}
		s.config.Logger.Warn(
			"local blind vote list does not match majority hash, deferring vote result",
			"component", "voteresult",
			"cycle", cycle.Index,
			"height", height,
			"majority_hash", tally.MajorityHash,
			"local_hash", tally.LocalHash,
		)
		s.publish(event.VoteResultMissingDataEventType, event.VoteResultMissingDataEvent{
			CycleIndex:   cycle.Index,
			Height:       height,
			MajorityHash: tally.MajorityHash,
			LocalHash:    tally.LocalHash,
		})
		return nil, nil
	}
	for _, exclusion := range tally.Excluded {
		s.config.Logger.Warn(
			"vote excluded from tally",
			"component", "voteresult",
			"cycle", cycle.Index,
			"reveal_tx_id", exclusion.RevealTxId,
			"blind_vote_tx_id", exclusion.BlindVoteTxId,
			"reason", exclusion.Err,
		)
	}
	for blindVoteTxId, errs := range tally.IgnoredMerits {
		for _, err := range errs {
			s.config.Logger.Warn(
				"merit ignored",
				"component", "voteresult",
				"cycle", cycle.Index,
				"blind_vote_tx_id", blindVoteTxId,
				"reason", err,
			)
		}
	}

	var proposals ProposalSource = noProposals{}
	if s.config.Proposals != nil {
		proposals = s.config.Proposals
	}
	evaluations := Evaluate(state, cycle, tally.Counted, proposals, height)
	if missing := MissingProposals(evaluations); len(missing) > 0 {
		span.AddEvent("deferred")
		if s.metrics != nil {
			s.metrics.deferred.Inc()
		}
		s.config.Logger.Warn(
			"voted proposals unknown, deferring vote result",
			"component", "voteresult",
			"cycle", cycle.Index,
			"height", height,
			"proposal_tx_ids", missing,
		)
		s.publish(event.VoteResultMissingDataEventType, event.VoteResultMissingDataEvent{
			CycleIndex:       cycle.Index,
			Height:           height,
			MajorityHash:     tally.MajorityHash,
			LocalHash:        tally.LocalHash,
			MissingProposals: missing,
		})
		return nil, nil
	}
	result := ledger.CycleResult{
		CycleIndex:    cycle.Index,
		Height:        height,
		MajorityHash:  tally.MajorityHash,
		CountedVotes:  uint32(len(tally.Counted)),  // #nosec G115
		ExcludedVotes: uint32(len(tally.Excluded)), // #nosec G115
	}
	var accepted, rejected int
	changedParams := make(map[params.Param]string)
	for _, eval := range evaluations {
		if eval.Err != nil {
			s.config.Logger.Warn(
				"proposal not evaluated",
				"component", "voteresult",
				"cycle", cycle.Index,
				"proposal_tx_id", eval.Tx.Id,
				"reason", eval.Err,
			)
		}
		if eval.Result.Accepted {
			if err := s.apply(state, cycle, eval, changedParams); err != nil {
				if !errors.Is(err, ErrConflictingChanges) {
					span.RecordError(err)
					span.SetStatus(codes.Error, "apply proposal")
					return nil, err
				}
				s.config.Logger.Warn(
					"accepted proposal not applied",
					"component", "voteresult",
					"cycle", cycle.Index,
					"proposal_tx_id", eval.Tx.Id,
					"reason", err,
				)
				eval.Result.Accepted = false
			}
		}
		if eval.Result.Accepted {
			accepted++
		} else {
			rejected++
		}
		if s.metrics != nil {
			s.metrics.proposals.WithLabelValues(
				eval.Proposal.Kind().String(),
				outcomeLabel(eval.Result.Accepted),
			).Inc()
		}
		result.Proposals = append(result.Proposals, eval.Result)
	}
	if err := state.SetCycleResult(result); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.countedVotes.Add(float64(len(tally.Counted)))
		s.metrics.excludedVotes.Add(float64(len(tally.Excluded)))
		s.metrics.cycles.Inc()
	}
	span.SetAttributes(
		attribute.Int("daonode.counted_votes", len(tally.Counted)),
		attribute.Int("daonode.excluded_votes", len(tally.Excluded)),
		attribute.Int("daonode.accepted_proposals", accepted),
	)
	s.config.Logger.Info(
		"vote result",
		"component", "voteresult",
		"cycle", cycle.Index,
		"height", height,
		"majority_hash", tally.MajorityHash,
		"counted_votes", len(tally.Counted),
		"excluded_votes", len(tally.Excluded),
		"accepted", accepted,
		"rejected", rejected,
	)
	for _, r := range result.Proposals {
		s.publish(event.ProposalResultEventType, event.ProposalResultEvent{
			CycleIndex:   cycle.Index,
			ProposalTxId: r.ProposalTxId,
			ProposalUid:  r.ProposalUid,
			Accepted:     r.Accepted,
			AcceptWeight: r.AcceptWeight,
			RejectWeight: r.RejectWeight,
		})
	}
	s.publish(event.VoteResultEventType, event.VoteResultEvent{
		CycleIndex:    cycle.Index,
		Height:        height,
		MajorityHash:  tally.MajorityHash,
		CountedVotes:  len(tally.Counted),
		ExcludedVotes: len(tally.Excluded),
		Accepted:      accepted,
		Rejected:      rejected,
	})
	return &result, nil
}

// apply turns an accepted proposal into its ledger state change
func (s *Service) apply(
	state *ledger.State,
	cycle period.Cycle,
	eval Evaluation,
	changedParams map[params.Param]string,
) error {
	switch details := eval.Proposal.Details.(type) {
	case proposal.ChangeParam:
		if other, ok := changedParams[details.Param]; ok {
			return fmt.Errorf(
				"%w: %s already changed by %s",
				ErrConflictingChanges,
				details.Param,
				other,
			)
		}
		changedParams[details.Param] = eval.Tx.Id
		evt := params.ChangeEvent{
			Param:           details.Param,
			Value:           details.Value,
			EffectiveHeight: cycle.HeightOfLastBlock() + 1,
		}
		if err := state.AddParamChange(evt); err != nil {
			return err
		}
		s.publish(event.ParamChangeEventType, event.ParamChangeEvent{
			Param:           details.Param.String(),
			Value:           details.Value,
			EffectiveHeight: evt.EffectiveHeight,
			ProposalTxId:    eval.Tx.Id,
		})
	case proposal.CompensationRequest:
		issuance := ledger.Issuance{
			TxId:       eval.Tx.Id,
			Height:     eval.Tx.BlockHeight,
			CycleIndex: cycle.Index,
		}
		for _, out := range eval.Tx.Outputs {
			if out.Type == ledger.TxOutputTypeIssuanceCandidate {
				issuance.Amount = out.Value
				break
			}
		}
		if len(eval.Tx.Inputs) > 0 {
			issuance.PubKey = eval.Tx.Inputs[0].PubKey
		}
		if err := state.AddIssuance(issuance); err != nil {
			return ledger.ConsensusError{Reason: "issuance", Err: err}
		}
		if s.metrics != nil {
			s.metrics.issued.Add(float64(issuance.Amount))
		}
		s.publish(event.IssuanceEventType, event.IssuanceEvent{
			TxId:   issuance.TxId,
			Amount: issuance.Amount,
			PubKey: issuance.PubKey,
			Height: issuance.Height,
		})
	case proposal.ConfiscateBond:
		if err := state.ConfiscateBond(details.LockupTxId); err != nil {
			return ledger.ConsensusError{Reason: "confiscate bond", Err: err}
		}
		s.publish(event.BondConfiscatedEventType, event.BondConfiscatedEvent{
			LockupTxId:   details.LockupTxId,
			ProposalTxId: eval.Tx.Id,
			Height:       state.ChainHeight(),
		})
	}
	return nil
}

func (s *Service) publish(eventType event.EventType, data any) {
	if s.config.EventBus == nil {
		return
	}
	s.config.EventBus.Publish(eventType, event.NewEvent(eventType, data))
}

type noProposals struct{}

func (noProposals) ProposalByTxId(string) (proposal.Proposal, bool) {
	return proposal.Proposal{}, false
}

func outcomeLabel(accepted bool) string {
	if accepted {
		return "accepted"
	}
	return "rejected"
}

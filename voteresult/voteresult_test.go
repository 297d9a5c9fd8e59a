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

package voteresult_test

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/blinklabs-io/daonode/blindvote"
	"github.com/blinklabs-io/daonode/encryption"
	"github.com/blinklabs-io/daonode/event"
	"github.com/blinklabs-io/daonode/internal/test/testutil"
	"github.com/blinklabs-io/daonode/ledger"
	"github.com/blinklabs-io/daonode/opreturn"
	"github.com/blinklabs-io/daonode/params"
	"github.com/blinklabs-io/daonode/period"
	"github.com/blinklabs-io/daonode/proposal"
	"github.com/blinklabs-io/daonode/voteresult"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type proposalMap map[string]proposal.Proposal

func (m proposalMap) ProposalByTxId(txId string) (proposal.Proposal, bool) {
	p, ok := m[txId]
	return p, ok
}

// scenario runs one cycle on the short calendar: three proposals, three
// blind votes and their reveals
type scenario struct {
	chain     *testutil.Chain
	store     *blindvote.Store
	proposals proposalMap
	issuer    *secp256k1.PrivateKey
	voter     *secp256k1.PrivateKey
	keys      map[string]encryption.SecretKey
}

func mustKey(t *testing.T) *secp256k1.PrivateKey {
	t.Helper()
	key, err := encryption.GeneratePrivateKey()
	require.NoError(t, err)
	return key
}

func (s *scenario) anchor(
	t *testing.T,
	txId string,
	p proposal.Proposal,
	outputs ...ledger.TxOutput,
) *ledger.Tx {
	t.Helper()
	data, err := p.OpReturnData()
	require.NoError(t, err)
	s.proposals[txId] = p.WithTxId(txId)
	return testutil.OpReturnTx(txId, p.Kind().TxType(), data, 200, outputs...)
}

func vote(txId string, v *proposal.Vote) proposal.ProposalVote {
	return proposal.ProposalVote{ProposalTxId: txId, Vote: v}
}

// blindVote encrypts votes and merits and returns the blind vote tx
func (s *scenario) blindVote(
	t *testing.T,
	txId string,
	stake uint64,
	votes []proposal.ProposalVote,
	merits []blindvote.Merit,
) *ledger.Tx {
	t.Helper()
	key, err := encryption.NewSecretKey()
	require.NoError(t, err)
	votesCbor, err := proposal.EncodeVoteList(votes)
	require.NoError(t, err)
	encryptedVotes, err := encryption.Encrypt(key, votesCbor)
	require.NoError(t, err)
	meritsCbor, err := blindvote.EncodeMeritList(merits)
	require.NoError(t, err)
	encryptedMerits, err := encryption.Encrypt(key, meritsCbor)
	require.NoError(t, err)
	bv := blindvote.BlindVote{
		TxId:               txId,
		StakeAmount:        stake,
		EncryptedVotes:     encryptedVotes,
		EncryptedMeritList: encryptedMerits,
	}
	s.store.Add(bv)
	s.keys[txId] = key
	data, err := opreturn.BlindVote(bv.VotesHash())
	require.NoError(t, err)
	return testutil.OpReturnTx(
		txId,
		ledger.TxTypeBlindVote,
		data,
		200,
		ledger.TxOutput{Value: stake, Type: ledger.TxOutputTypeBlindVoteLockStake},
	)
}

// reveal spends the stake of blindVoteTxId revealing key and listHash
func reveal(
	t *testing.T,
	txId string,
	blindVoteTxId string,
	stake uint64,
	listHash []byte,
	key encryption.SecretKey,
) *ledger.Tx {
	t.Helper()
	data, err := opreturn.VoteReveal(listHash, key)
	require.NoError(t, err)
	tx := testutil.OpReturnTx(
		txId,
		ledger.TxTypeVoteReveal,
		data,
		0,
		ledger.TxOutput{Value: stake, Type: ledger.TxOutputTypeVoteRevealUnlockStake},
	)
	tx.Inputs = []ledger.TxInput{{
		ConnectedTxOutputKey:   ledger.NewTxOutputKey(blindVoteTxId, 0),
		ConnectedTxOutputType:  ledger.TxOutputTypeBlindVoteLockStake,
		ConnectedTxOutputValue: stake,
	}}
	return tx
}

func newScenario(t *testing.T) *scenario {
	t.Helper()
	s := &scenario{
		chain:     testutil.NewChain(t),
		store:     blindvote.NewStore(),
		proposals: make(proposalMap),
		issuer:    mustKey(t),
		voter:     mustKey(t),
		keys:      make(map[string]encryption.SecretKey),
	}
	c := s.chain
	for _, p := range []params.Param{
		params.ParamQuorumCompensationRequest,
		params.ParamQuorumChangeParam,
		params.ParamQuorumGeneric,
	} {
		c.SetParam(p, 1000, testutil.GenesisHeight)
	}

	// Proposal phase: three proposals. The voter's issuance is anchored in
	// the break after it and recorded at the blind vote height so its merit
	// is not decayed.
	meritSource := &ledger.Tx{
		Id:     "old-comp",
		TxType: ledger.TxTypeCompensationRequest,
		Outputs: []ledger.TxOutput{
			{Value: 100, Type: ledger.TxOutputTypeToken},
			{Value: 2000, Type: ledger.TxOutputTypeIssuanceCandidate},
		},
	}
	compReq := s.anchor(
		t,
		"comp1",
		proposal.New("alice", "Dev", "", "l", proposal.CompensationRequest{
			RequestedAmount: 5000,
			PayoutAddress:   "alice",
		}),
		ledger.TxOutput{Value: 100, Type: ledger.TxOutputTypeToken},
		ledger.TxOutput{Value: 5000, Type: ledger.TxOutputTypeIssuanceCandidate},
	)
	compReq.Inputs = []ledger.TxInput{{PubKey: encryption.PublicKeyHex(s.issuer)}}
	c.AddBlock(
		compReq,
		s.anchor(t, "param1", proposal.New("bob", "Fee", "", "l", proposal.ChangeParam{
			Param: params.ParamProposalFee,
			Value: 300,
		})),
		s.anchor(t, "gen1", proposal.New("carol", "Poll", "", "l", proposal.Generic{})),
	)
	c.AdvanceTo(testutil.GenesisHeight + 2)
	c.AddBlock(meritSource)
	require.Equal(t, period.PhaseBreak1, c.State.Calendar().PhaseAt(c.State.ChainHeight()))
	require.NoError(t, c.State.AddIssuance(ledger.Issuance{
		TxId:   "old-comp",
		Height: 105,
		Amount: 2000,
		PubKey: encryption.PublicKeyHex(s.voter),
	}))

	// Blind vote phase
	c.AdvanceToPhase(period.PhaseBlindVote)
	stranger := mustKey(t)
	c.AddBlock(
		s.blindVote(t, "bv-a", 1000,
			[]proposal.ProposalVote{
				vote("comp1", proposal.Accept()),
				vote("param1", proposal.Accept()),
				vote("gen1", proposal.Reject()),
			},
			[]blindvote.Merit{{
				IssuanceTxId: "old-comp",
				Signature:    encryption.Sign(s.voter, []byte("bv-a")),
			}},
		),
		s.blindVote(t, "bv-b", 500,
			[]proposal.ProposalVote{
				vote("comp1", proposal.Reject()),
				vote("param1", proposal.Accept()),
				vote("gen1", nil),
			},
			// Signed by a key that does not own the issuance
			[]blindvote.Merit{{
				IssuanceTxId: "old-comp",
				Signature:    encryption.Sign(stranger, []byte("bv-b")),
			}},
		),
		s.blindVote(t, "bv-c", 700,
			[]proposal.ProposalVote{vote("gen1", proposal.Accept())},
			nil,
		),
	)
	require.Equal(t, uint64(105), c.State.ChainHeight())
	return s
}

func (s *scenario) listHash(t *testing.T) []byte {
	t.Helper()
	h, err := blindvote.HashOfList(blindvote.SortedForCycle(s.store.All(), s.chain.View(), 0))
	require.NoError(t, err)
	return h
}

// revealAll adds the reveals of all three votes. bv-c reveals a wrong key.
func (s *scenario) revealAll(t *testing.T) {
	t.Helper()
	listHash := s.listHash(t)
	wrongKey, err := encryption.NewSecretKey()
	require.NoError(t, err)
	s.chain.AdvanceToPhase(period.PhaseVoteReveal)
	s.chain.AddBlock(
		reveal(t, "rv-a", "bv-a", 1000, listHash, s.keys["bv-a"]),
		reveal(t, "rv-b", "bv-b", 500, listHash, s.keys["bv-b"]),
		reveal(t, "rv-c", "bv-c", 700, listHash, wrongKey),
	)
	s.chain.AdvanceToPhase(period.PhaseResult)
}

func (s *scenario) service(bus *event.EventBus) *voteresult.Service {
	return voteresult.New(voteresult.Config{
		EventBus:     bus,
		BlindVotes:   s.store,
		Proposals:    s.proposals,
		PromRegistry: prometheus.NewRegistry(),
	})
}

func TestTallyAppliesAcceptedProposals(t *testing.T) {
	s := newScenario(t)
	s.revealAll(t)
	bus := event.NewEventBus(nil, nil)
	defer bus.Stop()
	_, voteResults := bus.Subscribe(event.VoteResultEventType)
	_, issuances := bus.Subscribe(event.IssuanceEventType)
	_, paramChanges := bus.Subscribe(event.ParamChangeEventType)

	state := s.chain.State
	result, err := s.service(bus).OnBlock(context.Background(), state)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, uint64(0), result.CycleIndex)
	assert.Equal(t, hex.EncodeToString(s.listHash(t)), result.MajorityHash)
	assert.Equal(t, uint32(2), result.CountedVotes)
	assert.Equal(t, uint32(1), result.ExcludedVotes)
	require.Len(t, result.Proposals, 3)
	byTxId := make(map[string]ledger.ProposalResult)
	for _, r := range result.Proposals {
		byTxId[r.ProposalTxId] = r
	}

	// bv-a weighs its stake plus the full merit of an issuance at its own
	// height; bv-b's merit proof is not signed by the issuance key
	comp := byTxId["comp1"]
	assert.True(t, comp.Accepted)
	assert.Equal(t, uint64(3000), comp.AcceptWeight)
	assert.Equal(t, uint64(500), comp.RejectWeight)
	param := byTxId["param1"]
	assert.True(t, param.Accepted)
	assert.Equal(t, uint64(3500), param.AcceptWeight)
	gen := byTxId["gen1"]
	assert.False(t, gen.Accepted)
	assert.Equal(t, uint64(3000), gen.RejectWeight)

	issuance, ok := state.Issuance("comp1")
	require.True(t, ok)
	assert.Equal(t, uint64(5000), issuance.Amount)
	assert.Equal(t, encryption.PublicKeyHex(s.issuer), issuance.PubKey)
	assert.True(t, state.IsUnspent(ledger.NewTxOutputKey("comp1", 1)))

	cycle, _ := state.Calendar().CycleByIndex(0)
	next := cycle.HeightOfLastBlock() + 1
	assert.Equal(t, uint64(300), state.ParamValue(params.ParamProposalFee, next))
	assert.Equal(t, uint64(200), state.ParamValue(params.ParamProposalFee, next-1))

	stored, ok := state.CycleResult(0)
	require.True(t, ok)
	assert.Equal(t, *result, stored)

	evt := testutil.RequireReceive(t, voteResults, time.Second, "vote result event")
	assert.Equal(t, 2, evt.Data.(event.VoteResultEvent).CountedVotes)
	issuanceEvt := testutil.RequireReceive(t, issuances, time.Second, "issuance event")
	assert.Equal(t, "comp1", issuanceEvt.Data.(event.IssuanceEvent).TxId)
	paramEvt := testutil.RequireReceive(t, paramChanges, time.Second, "param change event")
	assert.Equal(t, next, paramEvt.Data.(event.ParamChangeEvent).EffectiveHeight)

	// The result is only computed once per cycle
	again, err := s.service(nil).OnBlock(context.Background(), state)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestTallyDeferredOnMissingBlindVote(t *testing.T) {
	s := newScenario(t)
	s.revealAll(t)
	missing, ok := s.store.Get("bv-b")
	require.True(t, ok)
	s.store.Remove("bv-b")

	bus := event.NewEventBus(nil, nil)
	defer bus.Stop()
	_, missingData := bus.Subscribe(event.VoteResultMissingDataEventType)
	svc := s.service(bus)

	result, err := svc.OnBlock(context.Background(), s.chain.State)
	require.NoError(t, err)
	assert.Nil(t, result)
	_, ok = s.chain.State.CycleResult(0)
	assert.False(t, ok)
	evt := testutil.RequireReceive(t, missingData, time.Second, "missing data event")
	data := evt.Data.(event.VoteResultMissingDataEvent)
	assert.NotEqual(t, data.MajorityHash, data.LocalHash)

	// Once the blind vote arrives the next attempt succeeds
	s.store.Add(missing)
	result, err = svc.OnBlock(context.Background(), s.chain.State)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, uint32(2), result.CountedVotes)
}

func TestTallyDeferredOnUnknownProposal(t *testing.T) {
	s := newScenario(t)
	s.revealAll(t)
	known := s.proposals["param1"]
	delete(s.proposals, "param1")

	bus := event.NewEventBus(nil, nil)
	defer bus.Stop()
	_, missingData := bus.Subscribe(event.VoteResultMissingDataEventType)
	svc := s.service(bus)

	result, err := svc.OnBlock(context.Background(), s.chain.State)
	require.NoError(t, err)
	assert.Nil(t, result)
	_, ok := s.chain.State.CycleResult(0)
	assert.False(t, ok)
	_, ok = s.chain.State.Issuance("comp1")
	assert.False(t, ok)
	evt := testutil.RequireReceive(t, missingData, time.Second, "missing data event")
	data := evt.Data.(event.VoteResultMissingDataEvent)
	assert.Equal(t, []string{"param1"}, data.MissingProposals)
	assert.Equal(t, data.MajorityHash, data.LocalHash)

	s.proposals["param1"] = known
	result, err = svc.OnBlock(context.Background(), s.chain.State)
	require.NoError(t, err)
	require.NotNil(t, result)
	cycle, _ := s.chain.State.Calendar().CycleByIndex(0)
	next := cycle.HeightOfLastBlock() + 1
	assert.Equal(t, uint64(300), s.chain.State.ParamValue(params.ParamProposalFee, next))
}

func TestTallyOnlyInResultPhase(t *testing.T) {
	s := newScenario(t)
	result, err := s.service(nil).OnBlock(context.Background(), s.chain.State)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestTallyWithoutReveals(t *testing.T) {
	s := newScenario(t)
	s.chain.AdvanceToPhase(period.PhaseResult)
	// Proposals nobody voted on are rejected even with unknown details
	delete(s.proposals, "gen1")
	result, err := s.service(nil).OnBlock(context.Background(), s.chain.State)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Empty(t, result.MajorityHash)
	assert.Zero(t, result.CountedVotes)
	require.Len(t, result.Proposals, 3)
	for _, r := range result.Proposals {
		assert.False(t, r.Accepted, r.ProposalTxId)
	}
	_, ok := s.chain.State.Issuance("comp1")
	assert.False(t, ok)
}

func TestCountVotesExclusions(t *testing.T) {
	s := newScenario(t)
	listHash := s.listHash(t)
	otherHash := make([]byte, encryption.HashSize)
	s.chain.AdvanceToPhase(period.PhaseVoteReveal)
	s.chain.AddBlock(
		reveal(t, "rv-a", "bv-a", 1000, listHash, s.keys["bv-a"]),
		reveal(t, "rv-b", "bv-b", 500, listHash, s.keys["bv-b"]),
		reveal(t, "rv-c", "bv-c", 700, otherHash, s.keys["bv-c"]),
	)
	cycle, ok := s.chain.State.Calendar().CycleByIndex(0)
	require.True(t, ok)

	tally, err := voteresult.CountVotes(s.chain.State, cycle, s.store.All(), voteresult.DefaultBlocksPerYear)
	require.NoError(t, err)
	assert.False(t, tally.Deferred)
	require.Len(t, tally.Counted, 2)
	assert.Equal(t, "bv-a", tally.Counted[0].BlindVoteTxId)
	assert.Equal(t, uint64(1000), tally.Counted[0].Stake)
	assert.Equal(t, uint64(2000), tally.Counted[0].Merit)
	assert.Equal(t, uint64(3000), tally.Counted[0].Weight())
	assert.Zero(t, tally.Counted[1].Merit)
	require.Len(t, tally.IgnoredMerits["bv-b"], 1)
	require.ErrorIs(t, tally.IgnoredMerits["bv-b"][0], voteresult.ErrInvalidMerit)

	require.Len(t, tally.Excluded, 1)
	assert.Equal(t, "rv-c", tally.Excluded[0].RevealTxId)
	require.ErrorIs(t, tally.Excluded[0], voteresult.ErrNotMajority)
}

func TestTallySpan(t *testing.T) {
	s := newScenario(t)
	s.revealAll(t)
	recorder := tracetest.NewSpanRecorder()
	provider := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	svc := voteresult.New(voteresult.Config{
		BlindVotes:     s.store,
		Proposals:      s.proposals,
		TracerProvider: provider,
	})
	_, err := svc.OnBlock(context.Background(), s.chain.State)
	require.NoError(t, err)
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "voteresult.tally", spans[0].Name())
}

func TestGetWeightedMeritAmount(t *testing.T) {
	const blocksPerYear = 50_000
	assert.Equal(t, uint64(1000), voteresult.GetWeightedMeritAmount(1000, 0, 0, blocksPerYear))
	assert.Equal(t, uint64(500), voteresult.GetWeightedMeritAmount(1000, 0, 50_000, blocksPerYear))
	assert.Equal(t, uint64(0), voteresult.GetWeightedMeritAmount(1000, 0, 100_000, blocksPerYear))
	assert.Equal(t, uint64(0), voteresult.GetWeightedMeritAmount(1000, 0, 150_000, blocksPerYear))
	prev := uint64(1000)
	for h := uint64(0); h <= 100_000; h += 997 {
		cur := voteresult.GetWeightedMeritAmount(1000, 0, h, blocksPerYear)
		require.LessOrEqual(t, cur, prev, "height %d", h)
		prev = cur
	}
	// Large amounts do not overflow
	assert.Equal(
		t,
		uint64(1<<63-1),
		voteresult.GetWeightedMeritAmount(1<<64-1, 10, 10+blocksPerYear, blocksPerYear),
	)
}

func TestMajorityHash(t *testing.T) {
	a := []byte{0x0a}
	b := []byte{0x0b}
	c := []byte{0x0c}
	assert.Equal(t, "0b", voteresult.MajorityHash([][]byte{a, b, b, c}))
	assert.Equal(t, "0b", voteresult.MajorityHash([][]byte{c, b, a, b}))
	// Ties go to the smallest hex string
	assert.Equal(t, "0a", voteresult.MajorityHash([][]byte{c, a, c, a}))
	assert.Equal(t, "0a", voteresult.MajorityHash([][]byte{a, c, a, c}))
	assert.Empty(t, voteresult.MajorityHash(nil))
}

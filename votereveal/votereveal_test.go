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

package votereveal_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/blinklabs-io/daonode/blindvote"
	"github.com/blinklabs-io/daonode/broadcast"
	"github.com/blinklabs-io/daonode/encryption"
	"github.com/blinklabs-io/daonode/internal/test/testutil"
	"github.com/blinklabs-io/daonode/ledger"
	"github.com/blinklabs-io/daonode/opreturn"
	"github.com/blinklabs-io/daonode/period"
	"github.com/blinklabs-io/daonode/votereveal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testWallet struct {
	requests []votereveal.TxRequest
}

func (w *testWallet) BuildVoteRevealTx(
	ctx context.Context,
	req votereveal.TxRequest,
) (broadcast.Tx, error) {
	w.requests = append(w.requests, req)
	return broadcast.Tx{Id: fmt.Sprintf("reveal%d", len(w.requests))}, nil
}

type reportingTransport struct {
	outcome broadcast.Outcome
}

func (rt *reportingTransport) Publish(
	ctx context.Context,
	tx broadcast.Tx,
	report broadcast.ReportFunc,
) error {
	report(rt.outcome)
	return nil
}

type fixture struct {
	chain   *testutil.Chain
	wallet  *testWallet
	store   *blindvote.Store
	myVotes *blindvote.MyVoteStore
	key     encryption.SecretKey
}

// newFixture confirms two blind votes in the blind vote phase of the first
// cycle, one of them ours
func newFixture(t *testing.T) *fixture {
	t.Helper()
	key, err := encryption.NewSecretKey()
	require.NoError(t, err)
	f := &fixture{
		chain:   testutil.NewChain(t),
		wallet:  &testWallet{},
		store:   blindvote.NewStore(),
		myVotes: blindvote.NewMyVoteStore(),
		key:     key,
	}
	f.chain.AdvanceToPhase(period.PhaseBlindVote)
	mine := blindvote.BlindVote{TxId: "bv-mine", StakeAmount: 1000, EncryptedVotes: []byte{1}}
	theirs := blindvote.BlindVote{TxId: "bv-theirs", StakeAmount: 2000, EncryptedVotes: []byte{2}}
	f.chain.AddBlock(blindVoteTx(t, mine), blindVoteTx(t, theirs))
	f.store.Add(mine)
	f.store.Add(theirs)
	f.myVotes.Add(blindvote.MyVote{
		BlindVoteTxId: mine.TxId,
		SecretKey:     key,
		BlindVote:     mine,
	})
	return f
}

func blindVoteTx(t *testing.T, vote blindvote.BlindVote) *ledger.Tx {
	t.Helper()
	data, err := opreturn.BlindVote(vote.VotesHash())
	require.NoError(t, err)
	return testutil.OpReturnTx(
		vote.TxId,
		ledger.TxTypeBlindVote,
		data,
		200,
		ledger.TxOutput{Value: vote.StakeAmount, Type: ledger.TxOutputTypeBlindVoteLockStake},
	)
}

func (f *fixture) service(outcome broadcast.Outcome) *votereveal.Service {
	return votereveal.New(votereveal.Config{
		Wallet: f.wallet,
		Broadcaster: broadcast.New(broadcast.Config{
			Transport: &reportingTransport{outcome: outcome},
			Timeout:   time.Minute,
		}),
		BlindVotes: f.store,
		MyVotes:    f.myVotes,
	})
}

func TestRevealInRevealPhase(t *testing.T) {
	f := newFixture(t)
	svc := f.service(broadcast.Outcome{})
	ctx := context.Background()

	assert.Empty(t, svc.OnBlock(ctx, f.chain.View()))
	assert.Empty(t, f.wallet.requests)

	f.chain.AdvanceToPhase(period.PhaseVoteReveal)
	revealed := svc.OnBlock(ctx, f.chain.View())
	assert.Equal(t, []string{"reveal1"}, revealed)
	require.Len(t, f.wallet.requests, 1)
	req := f.wallet.requests[0]
	assert.Equal(t, ledger.NewTxOutputKey("bv-mine", 0), req.StakeOutput)
	assert.Equal(t, uint64(1000), req.StakeAmount)

	payload, err := opreturn.Parse(req.OpReturnData)
	require.NoError(t, err)
	assert.Equal(t, opreturn.TypeVoteReveal, payload.Type)
	assert.Equal(t, f.key, payload.SecretKey)
	expected, err := blindvote.HashOfList(
		blindvote.SortedForCycle(f.store.All(), f.chain.View(), 0),
	)
	require.NoError(t, err)
	assert.Equal(t, expected, payload.Hash)

	myVote, ok := f.myVotes.Get("bv-mine")
	require.True(t, ok)
	assert.Equal(t, "reveal1", myVote.RevealTxId)

	// Later blocks of the phase do not reveal again
	f.chain.AddBlock()
	assert.Empty(t, svc.OnBlock(ctx, f.chain.View()))
	assert.Len(t, f.wallet.requests, 1)
}

func TestRevealSkipsOtherCycles(t *testing.T) {
	f := newFixture(t)
	svc := f.service(broadcast.Outcome{})
	f.chain.AdvanceToPhase(period.PhaseProposal)
	f.chain.AdvanceToPhase(period.PhaseVoteReveal)
	assert.Empty(t, svc.OnBlock(context.Background(), f.chain.View()))
	assert.Empty(t, f.wallet.requests)
}

type failingTransport struct{}

func (failingTransport) Publish(context.Context, broadcast.Tx, broadcast.ReportFunc) error {
	return errors.New("connection refused")
}

func TestRevealRetriedAfterFailure(t *testing.T) {
	f := newFixture(t)
	svc := f.service(broadcast.Outcome{Err: errors.New("rejected")})
	f.chain.AdvanceToPhase(period.PhaseVoteReveal)
	assert.Empty(t, svc.OnBlock(context.Background(), f.chain.View()))
	myVote, _ := f.myVotes.Get("bv-mine")
	assert.Empty(t, myVote.RevealTxId)

	f.chain.AddBlock()
	assert.Empty(t, svc.OnBlock(context.Background(), f.chain.View()))
	assert.Len(t, f.wallet.requests, 2)
}

func TestRevealPublishErrorNotReported(t *testing.T) {
	f := newFixture(t)
	svc := votereveal.New(votereveal.Config{
		Wallet: f.wallet,
		Broadcaster: broadcast.New(broadcast.Config{
			Transport: failingTransport{},
			Timeout:   time.Minute,
		}),
		BlindVotes: f.store,
		MyVotes:    f.myVotes,
	})
	f.chain.AdvanceToPhase(period.PhaseVoteReveal)
	assert.Empty(t, svc.OnBlock(context.Background(), f.chain.View()))
	require.Len(t, f.wallet.requests, 1)
	myVote, ok := f.myVotes.Get("bv-mine")
	require.True(t, ok)
	assert.Empty(t, myVote.RevealTxId)
}

func TestRevealWithoutWallet(t *testing.T) {
	f := newFixture(t)
	svc := votereveal.New(votereveal.Config{BlindVotes: f.store, MyVotes: f.myVotes})
	f.chain.AdvanceToPhase(period.PhaseVoteReveal)
	assert.Empty(t, svc.OnBlock(context.Background(), f.chain.View()))
	myVote, _ := f.myVotes.Get("bv-mine")
	assert.Empty(t, myVote.RevealTxId)
}

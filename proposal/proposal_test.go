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

package proposal_test

import (
	"testing"

	"github.com/blinklabs-io/daonode/internal/test/testutil"
	"github.com/blinklabs-io/daonode/ledger"
	"github.com/blinklabs-io/daonode/opreturn"
	"github.com/blinklabs-io/daonode/params"
	"github.com/blinklabs-io/daonode/proposal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compensationRequest(amount uint64) proposal.Proposal {
	return proposal.New(
		"alice",
		"Dev work",
		"Work done in the last cycle",
		"https://example.com/issues/1",
		proposal.CompensationRequest{
			RequestedAmount: amount,
			PayoutAddress:   "alice-payout",
		},
	)
}

func changeParam(param params.Param, value uint64) proposal.Proposal {
	return proposal.New(
		"bob",
		"Change "+param.String(),
		"",
		"https://example.com/issues/2",
		proposal.ChangeParam{Param: param, Value: value},
	)
}

// anchor adds a block holding the proposal's anchoring transaction
func anchor(
	t *testing.T,
	c *testutil.Chain,
	p proposal.Proposal,
	txId string,
	fee uint64,
) proposal.Proposal {
	t.Helper()
	data, err := p.OpReturnData()
	require.NoError(t, err)
	c.AddBlock(testutil.OpReturnTx(txId, p.Kind().TxType(), data, fee))
	return p.WithTxId(txId)
}

func TestNewProposal(t *testing.T) {
	p := compensationRequest(5000)
	assert.NotEmpty(t, p.Uid)
	assert.Equal(t, proposal.Version, p.Version)
	assert.Equal(t, proposal.KindCompensationRequest, p.Kind())
	assert.NotZero(t, p.CreationTime)
	assert.False(t, p.IsConfirmed(testutil.NewChain(t).View()))
	other := compensationRequest(5000)
	assert.NotEqual(t, p.Uid, other.Uid)
}

func TestKindCapabilities(t *testing.T) {
	assert.Equal(t, opreturn.TypeConfiscateBond, proposal.KindConfiscateBond.Marker())
	assert.Equal(t, ledger.TxTypeConfiscateBond, proposal.KindConfiscateBond.TxType())
	assert.Equal(t, opreturn.TypeCompensationRequest, proposal.KindCompensationRequest.Marker())
	assert.Equal(t, opreturn.TypeProposal, proposal.KindGeneric.Marker())
	assert.Equal(t, params.ParamQuorumChangeParam, proposal.KindChangeParam.QuorumParam())
	assert.Equal(t, params.ParamThresholdBondedRole, proposal.KindBondedRole.ThresholdParam())
	assert.False(t, proposal.KindUndefined.Valid())
	assert.Equal(t, "Kind(42)", proposal.Kind(42).String())
}

func TestEncodeDecode(t *testing.T) {
	p := changeParam(params.ParamProposalFee, 300).WithTxId("ptx")
	data, err := p.Encode()
	require.NoError(t, err)
	decoded, err := proposal.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, p, decoded)

	_, err = proposal.Proposal{Uid: "x"}.Encode()
	require.ErrorIs(t, err, proposal.ErrUnknownKind)
	_, err = proposal.Decode([]byte{0xff})
	require.Error(t, err)
}

func TestHashIgnoresTxId(t *testing.T) {
	p := compensationRequest(5000)
	h1, err := p.Hash()
	require.NoError(t, err)
	h2, err := p.WithTxId("something").Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 20)
	p.Title = "Changed"
	h3, err := p.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestOpReturnData(t *testing.T) {
	p := proposal.New("c", "t", "", "l", proposal.ConfiscateBond{LockupTxId: "lock"})
	data, err := p.OpReturnData()
	require.NoError(t, err)
	payload, err := opreturn.Parse(data)
	require.NoError(t, err)
	hash, err := p.Hash()
	require.NoError(t, err)
	assert.Equal(t, opreturn.TypeConfiscateBond, payload.Type)
	assert.Equal(t, hash, payload.Hash)
}

func TestValidateStructure(t *testing.T) {
	c := testutil.NewChain(t)
	c.AddBlock(&ledger.Tx{
		Id:     "lock",
		TxType: ledger.TxTypeLockup,
		Outputs: []ledger.TxOutput{
			{Value: 500, Type: ledger.TxOutputTypeLockup, LockTime: 5000},
		},
	})
	c.AddBlock(&ledger.Tx{Id: "xfer", TxType: ledger.TxTypeTransfer})
	view := c.View()

	noName := compensationRequest(5000)
	noName.Name = ""
	badVersion := compensationRequest(5000)
	badVersion.Version = 9
	noLink := compensationRequest(5000)
	noLink.Link = ""

	testDefs := []struct {
		name     string
		proposal proposal.Proposal
		field    string
	}{
		{name: "valid compensation request", proposal: compensationRequest(5000)},
		{name: "valid param change", proposal: changeParam(params.ParamProposalFee, 300)},
		{name: "missing name", proposal: noName, field: "name"},
		{name: "missing link", proposal: noLink, field: "link"},
		{name: "unsupported version", proposal: badVersion, field: "version"},
		{name: "amount below minimum", proposal: compensationRequest(10), field: "requestedAmount"},
		{name: "amount above maximum", proposal: compensationRequest(20_000_000), field: "requestedAmount"},
		{name: "param unchanged", proposal: changeParam(params.ParamProposalFee, 200), field: "param"},
		{name: "param more than double", proposal: changeParam(params.ParamProposalFee, 401), field: "param"},
		{
			name: "bonded role lock time too short",
			proposal: proposal.New("r", "Role", "", "l", proposal.BondedRole{
				RoleName:     "seed node operator",
				RequiredBond: 1000,
				UnlockTime:   10,
			}),
			field: "unlockTime",
		},
		{
			name: "valid bonded role",
			proposal: proposal.New("r", "Role", "", "l", proposal.BondedRole{
				RoleName:     "seed node operator",
				RequiredBond: 1000,
				UnlockTime:   5000,
			}),
		},
		{
			name:     "confiscate lockup",
			proposal: proposal.New("c", "Take", "", "l", proposal.ConfiscateBond{LockupTxId: "lock"}),
		},
		{
			name:     "confiscate non lockup",
			proposal: proposal.New("c", "Take", "", "l", proposal.ConfiscateBond{LockupTxId: "xfer"}),
			field:    "lockupTxId",
		},
		{
			name:     "unknown kind",
			proposal: proposal.Proposal{Uid: "u", Name: "n", Link: "l", Version: proposal.Version},
			field:    "details",
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			err := proposal.ValidateStructure(testDef.proposal, view)
			if testDef.field == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, proposal.ErrInvalidProposal)
			var validationErr *proposal.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, testDef.field, validationErr.Field)
		})
	}
}

func TestValidateConfiscatedBond(t *testing.T) {
	c := testutil.NewChain(t)
	c.AddBlock(&ledger.Tx{
		Id:     "lock",
		TxType: ledger.TxTypeLockup,
		Outputs: []ledger.TxOutput{
			{Value: 500, Type: ledger.TxOutputTypeLockup, LockTime: 5000},
		},
	})
	require.NoError(t, c.State.ConfiscateBond("lock"))
	p := proposal.New("c", "Take", "", "l", proposal.ConfiscateBond{LockupTxId: "lock"})
	require.ErrorIs(t, proposal.ValidateStructure(p, c.View()), proposal.ErrInvalidProposal)
}

func TestValidateTx(t *testing.T) {
	c := testutil.NewChain(t)
	good := anchor(t, c, compensationRequest(5000), "good", 200)
	cheap := anchor(t, c, compensationRequest(6000), "cheap", 199)
	other := compensationRequest(7000)
	// Anchoring transaction commits to a different proposal
	mismatched := anchor(t, c, other, "mismatch", 200)
	mismatched.Details = proposal.CompensationRequest{
		RequestedAmount: 8000,
		PayoutAddress:   "alice-payout",
	}
	view := c.View()

	require.NoError(t, proposal.Validate(good, view))
	require.ErrorIs(t, proposal.Validate(cheap, view), proposal.ErrInvalidProposal)
	require.ErrorIs(t, proposal.Validate(mismatched, view), proposal.ErrInvalidProposal)

	// Same proposal claimed by a transaction of the wrong type
	wrongType := good.WithTxId("cheap")
	wrongType.Details = proposal.Generic{}
	err := proposal.ValidateTx(wrongType, view)
	var validationErr *proposal.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "txId", validationErr.Field)

	require.ErrorIs(t, proposal.ValidateTx(good.WithTxId("missing"), view), proposal.ErrInvalidProposal)
}

func TestValidateUsesParamsAtTxHeight(t *testing.T) {
	c := testutil.NewChain(t)
	p := anchor(t, c, compensationRequest(5000), "ptx", 200)
	// A later fee increase does not invalidate an already anchored proposal
	c.SetParam(params.ParamProposalFee, 400, c.NextHeight())
	c.AddBlock()
	require.NoError(t, proposal.Validate(p, c.View()))
	assert.Equal(t, uint64(400), c.View().ParamValue(params.ParamProposalFee, c.State.ChainHeight()))
}

func TestBallotVoteList(t *testing.T) {
	confirmed := proposal.Ballot{Proposal: compensationRequest(5000).WithTxId("a")}
	unconfirmed := proposal.Ballot{Proposal: compensationRequest(6000)}
	accepted := confirmed.WithVote(proposal.Accept())
	rejected := proposal.Ballot{Proposal: compensationRequest(7000).WithTxId("b")}.WithVote(proposal.Reject())

	votes := proposal.VoteList([]proposal.Ballot{accepted, unconfirmed, rejected, confirmed})
	require.Len(t, votes, 3)
	assert.Equal(t, "a", votes[0].ProposalTxId)
	assert.True(t, votes[0].Vote.Accepted)
	assert.Equal(t, "b", votes[1].ProposalTxId)
	assert.False(t, votes[1].Vote.Accepted)
	assert.Nil(t, votes[2].Vote)

	data, err := proposal.EncodeVoteList(votes)
	require.NoError(t, err)
	decoded, err := proposal.DecodeVoteList(data)
	require.NoError(t, err)
	assert.Equal(t, votes, decoded)
}

func TestBallotWithVoteCopies(t *testing.T) {
	vote := proposal.Accept()
	b := proposal.Ballot{}.WithVote(vote)
	vote.Accepted = false
	assert.True(t, b.Vote.Accepted)
	assert.Nil(t, b.WithVote(nil).Vote)
}

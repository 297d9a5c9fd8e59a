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

// Package params defines the governance parameters and the append-only
// ledger of parameter changes approved by voting.
package params

import (
	"fmt"
	"math"
)

type Param uint8

const (
	ParamUndefined Param = iota
	ParamProposalFee
	ParamBlindVoteFee
	ParamCompensationRequestMinAmount
	ParamCompensationRequestMaxAmount
	ParamQuorumCompensationRequest
	ParamQuorumChangeParam
	ParamQuorumBondedRole
	ParamQuorumConfiscation
	ParamQuorumGeneric
	ParamThresholdCompensationRequest
	ParamThresholdChangeParam
	ParamThresholdBondedRole
	ParamThresholdConfiscation
	ParamThresholdGeneric
	ParamPhaseProposal
	ParamPhaseBreak1
	ParamPhaseBlindVote
	ParamPhaseBreak2
	ParamPhaseVoteReveal
	ParamPhaseBreak3
	ParamPhaseResult
	ParamLockTimeMin
	ParamLockTimeMax
)

// Unit describes how a parameter value is interpreted
type Unit uint8

const (
	UnitAmount      Unit = iota // token smallest unit
	UnitBlocks                  // block count
	UnitBasisPoints             // 1/100 of a percent, 10000 = 100%
)

// MaxBasisPoints is 100%
const MaxBasisPoints = 10_000

type paramInfo struct {
	name         string
	unit         Unit
	defaultValue uint64
}

var paramInfos = map[Param]paramInfo{
	ParamProposalFee:                  {"ProposalFee", UnitAmount, 200},
	ParamBlindVoteFee:                 {"BlindVoteFee", UnitAmount, 200},
	ParamCompensationRequestMinAmount: {"CompensationRequestMinAmount", UnitAmount, 1_000},
	ParamCompensationRequestMaxAmount: {"CompensationRequestMaxAmount", UnitAmount, 10_000_000},
	ParamQuorumCompensationRequest:    {"QuorumCompensationRequest", UnitAmount, 1_000_000},
	ParamQuorumChangeParam:            {"QuorumChangeParam", UnitAmount, 10_000_000},
	ParamQuorumBondedRole:             {"QuorumBondedRole", UnitAmount, 1_000_000},
	ParamQuorumConfiscation:           {"QuorumConfiscation", UnitAmount, 20_000_000},
	ParamQuorumGeneric:                {"QuorumGeneric", UnitAmount, 500_000},
	ParamThresholdCompensationRequest: {"ThresholdCompensationRequest", UnitBasisPoints, 5_000},
	ParamThresholdChangeParam:         {"ThresholdChangeParam", UnitBasisPoints, 7_500},
	ParamThresholdBondedRole:          {"ThresholdBondedRole", UnitBasisPoints, 5_000},
	ParamThresholdConfiscation:        {"ThresholdConfiscation", UnitBasisPoints, 8_500},
	ParamThresholdGeneric:             {"ThresholdGeneric", UnitBasisPoints, 5_000},
	ParamPhaseProposal:                {"PhaseProposal", UnitBlocks, 3_601},
	ParamPhaseBreak1:                  {"PhaseBreak1", UnitBlocks, 149},
	ParamPhaseBlindVote:               {"PhaseBlindVote", UnitBlocks, 451},
	ParamPhaseBreak2:                  {"PhaseBreak2", UnitBlocks, 9},
	ParamPhaseVoteReveal:              {"PhaseVoteReveal", UnitBlocks, 451},
	ParamPhaseBreak3:                  {"PhaseBreak3", UnitBlocks, 9},
	ParamPhaseResult:                  {"PhaseResult", UnitBlocks, 10},
	ParamLockTimeMin:                  {"LockTimeMin", UnitBlocks, 4_320},
	ParamLockTimeMax:                  {"LockTimeMax", UnitBlocks, 60_480},
}

// All returns every defined parameter in declaration order
func All() []Param {
	ret := make([]Param, 0, len(paramInfos))
	for p := ParamProposalFee; p <= ParamLockTimeMax; p++ {
		ret = append(ret, p)
	}
	return ret
}

func (p Param) Valid() bool {
	_, ok := paramInfos[p]
	return ok
}

func (p Param) String() string {
	if info, ok := paramInfos[p]; ok {
		return info.name
	}
	return fmt.Sprintf("Param(%d)", uint8(p))
}

// Default returns the hard-coded value used when no change event applies
func (p Param) Default() uint64 {
	return paramInfos[p].defaultValue
}

func (p Param) Unit() Unit {
	return paramInfos[p].unit
}

// FromName looks up a parameter by its name
func FromName(name string) (Param, bool) {
	for p, info := range paramInfos {
		if info.name == name {
			return p, true
		}
	}
	return ParamUndefined, false
}

// ValidateChange checks a proposed new value against the current value. A
// change may at most halve or double the current value and must respect the
// unit's bounds.
func ValidateChange(p Param, current uint64, proposed uint64) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownParam, uint8(p))
	}
	if proposed == current {
		return fmt.Errorf("%w: new value equals current value", ErrInvalidChange)
	}
	switch p.Unit() {
	case UnitBasisPoints:
		if proposed > MaxBasisPoints {
			return fmt.Errorf(
				"%w: %d exceeds %d basis points",
				ErrInvalidChange,
				proposed,
				MaxBasisPoints,
			)
		}
	case UnitBlocks:
		if proposed > math.MaxUint16 && (p == ParamLockTimeMin || p == ParamLockTimeMax) {
			return fmt.Errorf("%w: lock time exceeds %d", ErrInvalidChange, math.MaxUint16)
		}
	}
	if proposed == 0 {
		return fmt.Errorf("%w: value must be positive", ErrInvalidChange)
	}
	if proposed < current/2 {
		return fmt.Errorf(
			"%w: %d is less than half of current value %d",
			ErrInvalidChange,
			proposed,
			current,
		)
	}
	if current <= math.MaxUint64/2 && proposed > current*2 {
		return fmt.Errorf(
			"%w: %d is more than double the current value %d",
			ErrInvalidChange,
			proposed,
			current,
		)
	}
	return nil
}

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

package voteresult

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type resultMetrics struct {
	cycles        prometheus.Counter
	deferred      prometheus.Counter
	countedVotes  prometheus.Counter
	excludedVotes prometheus.Counter
	issued        prometheus.Counter
	proposals     *prometheus.CounterVec
}

func newResultMetrics(promRegistry prometheus.Registerer) *resultMetrics {
	promautoFactory := promauto.With(promRegistry)
	return &resultMetrics{
		cycles: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "daonode_voteresult_cycles_total",
			Help: "total cycles with a vote result",
		}),
		deferred: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "daonode_voteresult_deferred_total",
			Help: "total tally attempts deferred for missing blind votes",
		}),
		countedVotes: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "daonode_voteresult_counted_votes_total",
			Help: "total votes counted",
		}),
		excludedVotes: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "daonode_voteresult_excluded_votes_total",
			Help: "total revealed votes excluded from a tally",
		}),
		issued: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "daonode_voteresult_issued_amount_total",
			Help: "total token amount issued by accepted compensation requests",
		}),
		proposals: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "daonode_voteresult_proposals_total",
				Help: "total evaluated proposals by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
	}
}

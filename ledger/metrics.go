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

package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type stateMetrics struct {
	chainHeight    prometheus.Gauge
	unspentOutputs prometheus.Gauge
	cycleIndex     prometheus.Gauge
	phase          prometheus.Gauge
	issuances      prometheus.Gauge
	paramChanges   prometheus.Gauge
}

func (m *stateMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.chainHeight = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "daonode_ledger_chain_height",
		Help: "height of the last parsed block",
	})
	m.unspentOutputs = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "daonode_ledger_unspent_outputs",
		Help: "number of unspent token outputs",
	})
	m.cycleIndex = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "daonode_ledger_cycle_index",
		Help: "index of the current governance cycle",
	})
	m.phase = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "daonode_ledger_phase",
		Help: "current governance phase",
	})
	m.issuances = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "daonode_ledger_issuances",
		Help: "number of accepted issuances",
	})
	m.paramChanges = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "daonode_ledger_param_changes",
		Help: "number of recorded parameter changes",
	})
}

func (m *stateMetrics) update(v *View) {
	m.chainHeight.Set(float64(v.ChainHeight()))
	m.unspentOutputs.Set(float64(v.state.UnspentCount()))
	if cycle, ok := v.CurrentCycle(); ok {
		m.cycleIndex.Set(float64(cycle.Index))
	}
	m.phase.Set(float64(v.CurrentPhase()))
	m.issuances.Set(float64(len(v.state.issuances)))
	m.paramChanges.Set(float64(len(v.state.Params().Events())))
}

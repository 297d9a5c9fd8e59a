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

package broadcast

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type broadcastMetrics struct {
	inFlight prometheus.Gauge
	results  *prometheus.CounterVec
}

func newBroadcastMetrics(promRegistry prometheus.Registerer) *broadcastMetrics {
	promautoFactory := promauto.With(promRegistry)
	return &broadcastMetrics{
		inFlight: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name: "daonode_broadcast_in_flight",
			Help: "number of broadcasts awaiting a result",
		}),
		results: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "daonode_broadcast_results_total",
				Help: "broadcast results by status",
			},
			[]string{"status"},
		),
	}
}

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

package snapshot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type snapshotMetrics struct {
	taken         prometheus.Counter
	persisted     prometheus.Counter
	persistFailed prometheus.Counter
	height        prometheus.Gauge
	restored      *prometheus.CounterVec
}

func newSnapshotMetrics(promRegistry prometheus.Registerer) *snapshotMetrics {
	promautoFactory := promauto.With(promRegistry)
	return &snapshotMetrics{
		taken: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "daonode_snapshot_taken_total",
			Help: "total ledger snapshots taken",
		}),
		persisted: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "daonode_snapshot_persisted_total",
			Help: "total ledger snapshots written to the database",
		}),
		persistFailed: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "daonode_snapshot_persist_failed_total",
			Help: "total ledger snapshots that could not be written",
		}),
		height: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name: "daonode_snapshot_height",
			Help: "height of the restorable ledger snapshot",
		}),
		restored: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "daonode_snapshot_restored_total",
				Help: "total ledger restores by source",
			},
			[]string{"source"},
		),
	}
}

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

package gcs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type blobMetrics struct {
	ops    *prometheus.CounterVec
	errors prometheus.Counter
}

func newBlobMetrics(promRegistry prometheus.Registerer) *blobMetrics {
	promautoFactory := promauto.With(promRegistry)
	return &blobMetrics{
		ops: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "daonode_blob_gcs_operations_total",
				Help: "total GCS blob store operations by type",
			},
			[]string{"op"},
		),
		errors: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "daonode_blob_gcs_errors_total",
			Help: "total failed GCS blob store operations",
		}),
	}
}

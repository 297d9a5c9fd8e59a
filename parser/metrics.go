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

package parser

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type parserMetrics struct {
	blocks        prometheus.Counter
	txs           prometheus.Counter
	tokenTxs      *prometheus.CounterVec
	rejectedTxs   prometheus.Counter
	parseDuration prometheus.Histogram
}

func newParserMetrics(promRegistry prometheus.Registerer) *parserMetrics {
	promautoFactory := promauto.With(promRegistry)
	return &parserMetrics{
		blocks: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "daonode_parser_blocks_total",
			Help: "total blocks parsed",
		}),
		txs: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "daonode_parser_txs_total",
			Help: "total base-chain transactions parsed",
		}),
		tokenTxs: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "daonode_parser_token_txs_total",
				Help: "total token transactions by type",
			},
			[]string{"tx_type"},
		),
		rejectedTxs: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "daonode_parser_rejected_txs_total",
			Help: "total transactions spending token outputs that failed classification",
		}),
		parseDuration: promautoFactory.NewHistogram(prometheus.HistogramOpts{
			Name:    "daonode_parser_block_duration_seconds",
			Help:    "time spent parsing a block",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		}),
	}
}

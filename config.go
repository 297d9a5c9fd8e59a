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

package daonode

import (
	"errors"
	"log/slog"
	"time"

	"github.com/blinklabs-io/daonode/blindvote"
	"github.com/blinklabs-io/daonode/broadcast"
	"github.com/blinklabs-io/daonode/chain"
	"github.com/blinklabs-io/daonode/ledger"
	"github.com/blinklabs-io/daonode/proposal"
	"github.com/blinklabs-io/daonode/votereveal"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultShutdownTimeout = 30 * time.Second
	DefaultSyncMaxBlocks   = 500
)

// Wallet builds the transactions of the governance operations. Key
// management and fee estimation are up to the implementation.
type Wallet interface {
	proposal.Wallet
	blindvote.Wallet
	votereveal.Wallet
}

type Config struct {
	promRegistry     prometheus.Registerer
	logger           *slog.Logger
	blockSource      chain.BlockSource
	transport        broadcast.Transport
	wallet           Wallet
	meritSigner      blindvote.MeritSigner
	dataDir          string
	snapshotURL      string
	credentialsFile  string
	genesis          ledger.Genesis
	blocksPerYear    uint64
	snapshotInterval uint64
	syncMaxBlocks    int
	broadcastTimeout time.Duration
	pollInterval     time.Duration
	shutdownTimeout  time.Duration
	tracing          bool
	tracingStdout    bool
}

func (n *Node) configValidate() error {
	if n.config.genesis.TxId == "" {
		return errors.New("no genesis transaction id configured")
	}
	if n.config.genesis.TotalSupply == 0 {
		return errors.New("genesis total supply must be greater than zero")
	}
	if n.config.blockSource == nil {
		return errors.New("no block source configured")
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the Connection config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new node config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:          slog.New(slog.DiscardHandler),
		syncMaxBlocks:   DefaultSyncMaxBlocks,
		shutdownTimeout: DefaultShutdownTimeout,
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithDatabasePath specifies the persistent data directory to use. The default is to store everything in memory
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithSnapshotURL stores ledger snapshots in a GCS bucket
// (gs://<bucket>/<prefix>) instead of the data directory. The credentials
// file is optional.
func WithSnapshotURL(url string, credentialsFile string) ConfigOptionFunc {
	return func(c *Config) {
		c.snapshotURL = url
		c.credentialsFile = credentialsFile
	}
}

// WithGenesis specifies the genesis transaction of the token
func WithGenesis(genesis ledger.Genesis) ConfigOptionFunc {
	return func(c *Config) {
		c.genesis = genesis
	}
}

// WithBlockSource specifies where raw base-chain blocks are read from
func WithBlockSource(source chain.BlockSource) ConfigOptionFunc {
	return func(c *Config) {
		c.blockSource = source
	}
}

// WithTransport specifies how transactions are handed to the network.
// Without one every broadcast fails.
func WithTransport(transport broadcast.Transport) ConfigOptionFunc {
	return func(c *Config) {
		c.transport = transport
	}
}

// WithWallet specifies the wallet used to build governance transactions
func WithWallet(wallet Wallet) ConfigOptionFunc {
	return func(c *Config) {
		c.wallet = wallet
	}
}

// WithMeritSigner specifies the signer holding the issuance keys used to
// prove merit in blind votes
func WithMeritSigner(signer blindvote.MeritSigner) ConfigOptionFunc {
	return func(c *Config) {
		c.meritSigner = signer
	}
}

// WithBlocksPerYear specifies the block rate used for merit decay
func WithBlocksPerYear(blocks uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.blocksPerYear = blocks
	}
}

// WithSnapshotInterval specifies the number of blocks between ledger snapshots
func WithSnapshotInterval(interval uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.snapshotInterval = interval
	}
}

// WithSyncMaxBlocks limits the number of blocks returned for one sync request
func WithSyncMaxBlocks(maxBlocks int) ConfigOptionFunc {
	return func(c *Config) {
		c.syncMaxBlocks = maxBlocks
	}
}

// WithBroadcastTimeout specifies how long a broadcast waits for the network
func WithBroadcastTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.broadcastTimeout = timeout
	}
}

// WithPollInterval specifies how often the block source is polled once synced
func WithPollInterval(interval time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.pollInterval = interval
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}

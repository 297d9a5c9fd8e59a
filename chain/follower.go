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

package chain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	DefaultPollInterval  = 10 * time.Second
	DefaultFetchAttempts = 5
	DefaultFetchBackoff  = 500 * time.Millisecond
)

// BlockHandler processes one raw block
type BlockHandler func(ctx context.Context, block RawBlock) error

// NextHeightFunc returns the height of the next block the consumer needs
type NextHeightFunc func() uint64

type FollowerConfig struct {
	Logger        *slog.Logger
	Source        BlockSource
	PromRegistry  prometheus.Registerer
	PollInterval  time.Duration
	FetchAttempts uint
	FetchBackoff  time.Duration
}

// Follower reads blocks from a BlockSource in height order and hands them
// to a handler
type Follower struct {
	config  FollowerConfig
	metrics *followerMetrics
}

type followerMetrics struct {
	blocksFetched prometheus.Counter
	fetchRetries  prometheus.Counter
	sourceTip     prometheus.Gauge
}

func NewFollower(cfg FollowerConfig) *Follower {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.FetchAttempts == 0 {
		cfg.FetchAttempts = DefaultFetchAttempts
	}
	if cfg.FetchBackoff <= 0 {
		cfg.FetchBackoff = DefaultFetchBackoff
	}
	f := &Follower{
		config: cfg,
	}
	if cfg.PromRegistry != nil {
		promautoFactory := promauto.With(cfg.PromRegistry)
		f.metrics = &followerMetrics{
			blocksFetched: promautoFactory.NewCounter(prometheus.CounterOpts{
				Name: "daonode_chain_blocks_fetched_total",
				Help: "total number of raw blocks fetched from the block source",
			}),
			fetchRetries: promautoFactory.NewCounter(prometheus.CounterOpts{
				Name: "daonode_chain_fetch_retries_total",
				Help: "total number of retried block fetches",
			}),
			sourceTip: promautoFactory.NewGauge(prometheus.GaugeOpts{
				Name: "daonode_chain_source_tip_height",
				Help: "tip height reported by the block source",
			}),
		}
	}
	return f
}

// Run syncs to the source tip and then polls for new blocks until ctx is
// cancelled or the handler fails
func (f *Follower) Run(
	ctx context.Context,
	next NextHeightFunc,
	handler BlockHandler,
) error {
	ticker := time.NewTicker(f.config.PollInterval)
	defer ticker.Stop()
	for {
		if _, err := f.SyncOnce(ctx, next, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !errors.Is(err, ErrEmptySource) {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SyncOnce processes blocks from next() up to the current source tip and
// returns the number of blocks handled
func (f *Follower) SyncOnce(
	ctx context.Context,
	next NextHeightFunc,
	handler BlockHandler,
) (int, error) {
	if handler == nil {
		return 0, ErrNilHandler
	}
	tip, err := f.config.Source.TipHeight(ctx)
	if err != nil {
		return 0, err
	}
	if f.metrics != nil {
		f.metrics.sourceTip.Set(float64(tip))
	}
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		height := next()
		if height > tip {
			return count, nil
		}
		block, err := f.fetch(ctx, height)
		if err != nil {
			return count, err
		}
		if err := handler(ctx, block); err != nil {
			return count, err
		}
		count++
	}
}

func (f *Follower) fetch(ctx context.Context, height uint64) (RawBlock, error) {
	var block RawBlock
	action := func(attempt uint) error {
		if attempt > 0 && f.metrics != nil {
			f.metrics.fetchRetries.Inc()
		}
		tmpBlock, err := f.config.Source.BlockAt(ctx, height)
		if err != nil {
			f.config.Logger.Debug(
				"block fetch failed",
				"component", "chain",
				"height", height,
				"attempt", attempt,
				"error", err,
			)
			return err
		}
		if tmpBlock.Height != height {
			return NewBlockHeightMismatchError(height, tmpBlock.Height)
		}
		block = tmpBlock
		return nil
	}
	err := retry.Retry(
		action,
		func(attempt uint) bool {
			return ctx.Err() == nil
		},
		strategy.Limit(f.config.FetchAttempts),
		strategy.Backoff(backoff.Fibonacci(f.config.FetchBackoff)),
	)
	if err != nil {
		return RawBlock{}, err
	}
	if err := ctx.Err(); err != nil {
		return RawBlock{}, err
	}
	if f.metrics != nil {
		f.metrics.blocksFetched.Inc()
	}
	return block, nil
}

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

// Package broadcast publishes transactions through an external transport
// and reports exactly one outcome per transaction.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const DefaultTimeout = 8 * time.Second

var (
	ErrAlreadyInFlight = errors.New("transaction broadcast already in flight")
	ErrNoTransport     = errors.New("no transport configured")
	ErrEmptyTxId       = errors.New("empty transaction id")
	ErrBroadcastFailed = errors.New("transaction broadcast failed")
)

type Status uint8

const (
	StatusPending Status = iota
	StatusSuccess
	StatusFailure
	StatusTimeout
	StatusMalleability
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusTimeout:
		return "timeout"
	case StatusMalleability:
		return "malleability"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Tx is a signed transaction ready to publish
type Tx struct {
	Id   string
	Data []byte
}

// Result is the outcome of a broadcast
type Result struct {
	TxId   string
	Status Status
	// The id the network reports for the transaction when it differs from
	// TxId
	PublishedTxId string
	Err           error
}

// Optimistic reports whether the caller may proceed as if the transaction
// was published. A timeout counts as success.
func (r Result) Optimistic() bool {
	return r.Status == StatusSuccess || r.Status == StatusTimeout
}

// Outcome is what a transport reports for a published transaction
type Outcome struct {
	PublishedTxId string
	Err           error
}

// ReportFunc delivers the transport outcome. Calls after the first are
// ignored.
type ReportFunc func(Outcome)

// Transport hands a transaction to the network. Publish must not block on
// the network response; the outcome is delivered through report.
type Transport interface {
	Publish(ctx context.Context, tx Tx, report ReportFunc) error
}

type Callbacks struct {
	OnSuccess      func(Result)
	OnFailure      func(Result)
	OnTimeout      func(Result)
	OnMalleability func(Result)
}

func (c Callbacks) fire(result Result) {
	var fn func(Result)
	switch result.Status {
	case StatusSuccess:
		fn = c.OnSuccess
	case StatusFailure:
		fn = c.OnFailure
	case StatusTimeout:
		fn = c.OnTimeout
	case StatusMalleability:
		fn = c.OnMalleability
	}
	if fn != nil {
		fn(result)
	}
}

type Config struct {
	Logger       *slog.Logger
	Transport    Transport
	PromRegistry prometheus.Registerer
	Timeout      time.Duration
}

// Broadcaster tracks in-flight broadcasts. Each instance owns its own
// in-flight table.
type Broadcaster struct {
	config   Config
	metrics  *broadcastMetrics
	mu       sync.Mutex
	inFlight map[string]*Handle
}

func New(cfg Config) *Broadcaster {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	b := &Broadcaster{
		config:   cfg,
		inFlight: make(map[string]*Handle),
	}
	if cfg.PromRegistry != nil {
		b.metrics = newBroadcastMetrics(cfg.PromRegistry)
	}
	return b
}

// Handle tracks a single broadcast
type Handle struct {
	txId      string
	callbacks Callbacks
	once      sync.Once
	timer     *time.Timer
	done      chan struct{}
	result    Result
}

func (h *Handle) TxId() string {
	return h.txId
}

// Done is closed once the result is known
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Failed returns an error when the broadcast already completed with a
// failure, e.g. because the transport rejected it synchronously. The
// OnFailure callback has fired by then.
func (h *Handle) Failed() error {
	select {
	case <-h.done:
		if h.result.Status == StatusFailure {
			return fmt.Errorf("%w: %s: %w", ErrBroadcastFailed, h.txId, h.result.Err)
		}
	default:
	}
	return nil
}

// Wait blocks until the broadcast completes or ctx is done
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return Result{TxId: h.txId, Status: StatusPending}, ctx.Err()
	}
}

// Broadcast publishes tx. A transaction id already in flight is rejected.
// Exactly one callback fires, on the transport's or the timer's goroutine.
func (b *Broadcaster) Broadcast(
	ctx context.Context,
	tx Tx,
	callbacks Callbacks,
) (*Handle, error) {
	if tx.Id == "" {
		return nil, ErrEmptyTxId
	}
	if b.config.Transport == nil {
		return nil, ErrNoTransport
	}
	b.mu.Lock()
	if _, ok := b.inFlight[tx.Id]; ok {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInFlight, tx.Id)
	}
	h := &Handle{
		txId:      tx.Id,
		callbacks: callbacks,
		done:      make(chan struct{}),
	}
	b.inFlight[tx.Id] = h
	// The timer is armed under the lock so complete always sees it
	h.timer = time.AfterFunc(b.config.Timeout, func() {
		b.complete(h, Result{TxId: tx.Id, Status: StatusTimeout})
	})
	b.mu.Unlock()
	if b.metrics != nil {
		b.metrics.inFlight.Inc()
	}
	b.config.Logger.Debug(
		"broadcasting transaction",
		"component", "broadcast",
		"tx_id", tx.Id,
	)
	err := b.config.Transport.Publish(ctx, tx, func(outcome Outcome) {
		b.complete(h, resultFromOutcome(tx.Id, outcome))
	})
	if err != nil {
		b.complete(h, Result{TxId: tx.Id, Status: StatusFailure, Err: err})
	}
	return h, nil
}

func resultFromOutcome(txId string, outcome Outcome) Result {
	switch {
	case outcome.Err != nil:
		return Result{TxId: txId, Status: StatusFailure, Err: outcome.Err}
	case outcome.PublishedTxId != "" && outcome.PublishedTxId != txId:
		return Result{
			TxId:          txId,
			Status:        StatusMalleability,
			PublishedTxId: outcome.PublishedTxId,
		}
	}
	return Result{TxId: txId, Status: StatusSuccess}
}

func (b *Broadcaster) complete(h *Handle, result Result) {
	h.once.Do(func() {
		b.mu.Lock()
		h.timer.Stop()
		if b.inFlight[h.txId] == h {
			delete(b.inFlight, h.txId)
		}
		b.mu.Unlock()
		h.result = result
		close(h.done)
		if b.metrics != nil {
			b.metrics.inFlight.Dec()
			b.metrics.results.WithLabelValues(result.Status.String()).Inc()
		}
		logArgs := []any{
			"component", "broadcast",
			"tx_id", result.TxId,
			"status", result.Status.String(),
		}
		switch result.Status {
		case StatusFailure:
			b.config.Logger.Warn("broadcast failed", append(logArgs, "error", result.Err)...)
		case StatusMalleability:
			b.config.Logger.Warn(
				"broadcast transaction id changed",
				append(logArgs, "published_tx_id", result.PublishedTxId)...,
			)
		case StatusTimeout:
			b.config.Logger.Info("broadcast timed out, assuming success", logArgs...)
		default:
			b.config.Logger.Debug("broadcast completed", logArgs...)
		}
		h.callbacks.fire(result)
	})
}

// InFlight reports whether a broadcast for txId is pending
func (b *Broadcaster) InFlight(txId string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.inFlight[txId]
	return ok
}

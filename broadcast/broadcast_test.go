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

package broadcast_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blinklabs-io/daonode/broadcast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// testTransport records publishes and lets the test deliver outcomes
type testTransport struct {
	mu        sync.Mutex
	published []string
	reports   map[string]broadcast.ReportFunc
	immediate *broadcast.Outcome
	err       error
}

func newTestTransport() *testTransport {
	return &testTransport{reports: make(map[string]broadcast.ReportFunc)}
}

func (tt *testTransport) Publish(
	ctx context.Context,
	tx broadcast.Tx,
	report broadcast.ReportFunc,
) error {
	tt.mu.Lock()
	tt.published = append(tt.published, tx.Id)
	tt.reports[tx.Id] = report
	immediate := tt.immediate
	tt.mu.Unlock()
	if tt.err != nil {
		return tt.err
	}
	if immediate != nil {
		report(*immediate)
	}
	return nil
}

func (tt *testTransport) report(txId string, outcome broadcast.Outcome) {
	tt.mu.Lock()
	fn := tt.reports[txId]
	tt.mu.Unlock()
	fn(outcome)
}

func (tt *testTransport) publishCount() int {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	return len(tt.published)
}

type callbackCounter struct {
	success, failure, timeout, malleability atomic.Int32
}

func (c *callbackCounter) callbacks() broadcast.Callbacks {
	return broadcast.Callbacks{
		OnSuccess:      func(broadcast.Result) { c.success.Add(1) },
		OnFailure:      func(broadcast.Result) { c.failure.Add(1) },
		OnTimeout:      func(broadcast.Result) { c.timeout.Add(1) },
		OnMalleability: func(broadcast.Result) { c.malleability.Add(1) },
	}
}

func (c *callbackCounter) total() int32 {
	return c.success.Load() + c.failure.Load() + c.timeout.Load() + c.malleability.Load()
}

func TestDefaultTimeout(t *testing.T) {
	assert.Equal(t, 8*time.Second, broadcast.DefaultTimeout)
}

func TestTimeoutIsOptimistic(t *testing.T) {
	transport := newTestTransport()
	timeout := 50 * time.Millisecond
	b := broadcast.New(broadcast.Config{Transport: transport, Timeout: timeout})
	counter := &callbackCounter{}
	start := time.Now()
	h, err := b.Broadcast(context.Background(), broadcast.Tx{Id: "tx1"}, counter.callbacks())
	require.NoError(t, err)
	result, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), timeout)
	assert.Equal(t, broadcast.StatusTimeout, result.Status)
	assert.True(t, result.Optimistic())
	assert.Equal(t, int32(1), counter.timeout.Load())
	assert.Equal(t, int32(1), counter.total())
	assert.Equal(t, 1, transport.publishCount())
	assert.False(t, b.InFlight("tx1"))

	// A late report after the timeout fires nothing
	transport.report("tx1", broadcast.Outcome{})
	assert.Equal(t, int32(1), counter.total())
}

func TestDuplicateInFlightRejected(t *testing.T) {
	transport := newTestTransport()
	b := broadcast.New(broadcast.Config{Transport: transport, Timeout: time.Minute})
	counter := &callbackCounter{}
	h, err := b.Broadcast(context.Background(), broadcast.Tx{Id: "tx1"}, counter.callbacks())
	require.NoError(t, err)
	assert.True(t, b.InFlight("tx1"))
	require.NoError(t, h.Failed())
	_, err = b.Broadcast(context.Background(), broadcast.Tx{Id: "tx1"}, counter.callbacks())
	require.ErrorIs(t, err, broadcast.ErrAlreadyInFlight)
	assert.Equal(t, 1, transport.publishCount())

	transport.report("tx1", broadcast.Outcome{PublishedTxId: "tx1"})
	result, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, broadcast.StatusSuccess, result.Status)
	assert.Equal(t, int32(1), counter.success.Load())
	assert.Equal(t, int32(1), counter.total())
	require.NoError(t, h.Failed())

	// Once complete the same id may be broadcast again
	h2, err := b.Broadcast(context.Background(), broadcast.Tx{Id: "tx1"}, counter.callbacks())
	require.NoError(t, err)
	transport.report("tx1", broadcast.Outcome{})
	_, err = h2.Wait(context.Background())
	require.NoError(t, err)
}

func TestOutcomes(t *testing.T) {
	errNetwork := errors.New("rejected by peer")
	testDefs := []struct {
		name    string
		outcome broadcast.Outcome
		status  broadcast.Status
	}{
		{"success", broadcast.Outcome{}, broadcast.StatusSuccess},
		{"failure", broadcast.Outcome{Err: errNetwork}, broadcast.StatusFailure},
		{"malleability", broadcast.Outcome{PublishedTxId: "other"}, broadcast.StatusMalleability},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			transport := newTestTransport()
			transport.immediate = &testDef.outcome
			b := broadcast.New(broadcast.Config{Transport: transport, Timeout: time.Minute})
			counter := &callbackCounter{}
			h, err := b.Broadcast(context.Background(), broadcast.Tx{Id: "tx"}, counter.callbacks())
			require.NoError(t, err)
			result, err := h.Wait(context.Background())
			require.NoError(t, err)
			assert.Equal(t, testDef.status, result.Status)
			assert.Equal(t, int32(1), counter.total())
			if testDef.status == broadcast.StatusMalleability {
				assert.Equal(t, "other", result.PublishedTxId)
				assert.False(t, result.Optimistic())
			}
			if testDef.status == broadcast.StatusFailure {
				require.ErrorIs(t, result.Err, errNetwork)
			}
		})
	}
}

func TestPublishErrorIsFailure(t *testing.T) {
	transport := newTestTransport()
	transport.err = errors.New("not connected")
	b := broadcast.New(broadcast.Config{Transport: transport, Timeout: time.Minute})
	counter := &callbackCounter{}
	h, err := b.Broadcast(context.Background(), broadcast.Tx{Id: "tx"}, counter.callbacks())
	require.NoError(t, err)
	// Completed before Broadcast returned
	require.ErrorIs(t, h.Failed(), broadcast.ErrBroadcastFailed)
	require.ErrorIs(t, h.Failed(), transport.err)
	result, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, broadcast.StatusFailure, result.Status)
	assert.Equal(t, int32(1), counter.failure.Load())
	assert.False(t, b.InFlight("tx"))
}

func TestRaceBetweenReportAndTimeout(t *testing.T) {
	transport := newTestTransport()
	b := broadcast.New(broadcast.Config{Transport: transport, Timeout: time.Millisecond})
	for range 50 {
		counter := &callbackCounter{}
		h, err := b.Broadcast(context.Background(), broadcast.Tx{Id: "tx"}, counter.callbacks())
		require.NoError(t, err)
		transport.report("tx", broadcast.Outcome{})
		_, err = h.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int32(1), counter.total())
	}
}

func TestBroadcastValidation(t *testing.T) {
	b := broadcast.New(broadcast.Config{})
	_, err := b.Broadcast(context.Background(), broadcast.Tx{Id: "tx"}, broadcast.Callbacks{})
	require.ErrorIs(t, err, broadcast.ErrNoTransport)
	b = broadcast.New(broadcast.Config{Transport: newTestTransport()})
	_, err = b.Broadcast(context.Background(), broadcast.Tx{}, broadcast.Callbacks{})
	require.ErrorIs(t, err, broadcast.ErrEmptyTxId)
}

func TestWaitContextCancelled(t *testing.T) {
	transport := newTestTransport()
	b := broadcast.New(broadcast.Config{Transport: transport, Timeout: time.Minute})
	h, err := b.Broadcast(context.Background(), broadcast.Tx{Id: "tx"}, broadcast.Callbacks{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := h.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, broadcast.StatusPending, result.Status)
	transport.report("tx", broadcast.Outcome{})
	<-h.Done()
}

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

// Package daonode wires the governance node together: it follows the base
// chain, parses blocks into the token ledger, runs the voting protocol on
// the parser context and persists what it needs to restart.
package daonode

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/blinklabs-io/daonode/blindvote"
	"github.com/blinklabs-io/daonode/broadcast"
	"github.com/blinklabs-io/daonode/chain"
	"github.com/blinklabs-io/daonode/database"
	"github.com/blinklabs-io/daonode/event"
	"github.com/blinklabs-io/daonode/ledger"
	"github.com/blinklabs-io/daonode/ledger/snapshot"
	"github.com/blinklabs-io/daonode/params"
	"github.com/blinklabs-io/daonode/parser"
	"github.com/blinklabs-io/daonode/period"
	"github.com/blinklabs-io/daonode/proposal"
	"github.com/blinklabs-io/daonode/voteresult"
	"github.com/blinklabs-io/daonode/votereveal"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Node struct {
	config         Config
	eventBus       *event.EventBus
	db             *database.Database
	parser         *parser.Parser
	follower       *chain.Follower
	publisher      *ledger.Publisher
	snapshots      *snapshot.Manager
	broadcaster    *broadcast.Broadcaster
	proposals      *proposal.Service
	blindVoteStore *blindvote.Store
	myVotes        *blindvote.MyVoteStore
	blindVotes     *blindvote.Service
	voteReveal     *votereveal.Service
	voteResult     *voteresult.Service
	responder      *chain.Responder
	tracerProvider *sdktrace.TracerProvider
	// Only touched by the goroutine parsing blocks
	state         *ledger.State
	shutdownFuncs []func(context.Context) error
	startOnce     sync.Once
	startErr      error
	runMu         sync.Mutex
	runCancel     context.CancelFunc
	stopped       bool
	runWg         sync.WaitGroup
	persistMu     sync.Mutex
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Node, error) {
	n := &Node{
		config:    cfg,
		eventBus:  event.NewEventBus(cfg.promRegistry, cfg.logger),
		publisher: ledger.NewPublisher(cfg.promRegistry),
	}
	if err := n.configValidate(); err != nil {
		n.eventBus.Stop()
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return n, nil
}

// start opens the database, restores state and builds the components. It
// only runs once.
func (n *Node) start() error {
	n.runMu.Lock()
	stopped := n.stopped
	n.runMu.Unlock()
	if stopped {
		return ErrNodeStopped
	}
	n.startOnce.Do(func() {
		n.startErr = n.init()
	})
	return n.startErr
}

func (n *Node) init() error {
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(); err != nil {
			return err
		}
	}
	db, err := database.New(&database.Config{
		Logger:          n.config.logger,
		PromRegistry:    n.config.promRegistry,
		DataDir:         n.config.dataDir,
		Genesis:         n.config.genesis,
		SnapshotURL:     n.config.snapshotURL,
		CredentialsFile: n.config.credentialsFile,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	n.db = db
	n.parser = parser.New(parser.Config{
		Logger:       n.config.logger,
		PromRegistry: n.config.promRegistry,
	})
	n.follower = chain.NewFollower(chain.FollowerConfig{
		Logger:       n.config.logger,
		Source:       n.config.blockSource,
		PromRegistry: n.config.promRegistry,
		PollInterval: n.config.pollInterval,
	})
	n.snapshots = snapshot.NewManager(snapshot.ManagerConfig{
		Logger:       n.config.logger,
		Store:        n.db,
		PromRegistry: n.config.promRegistry,
		Genesis:      n.config.genesis,
		Interval:     n.config.snapshotInterval,
	})
	n.broadcaster = broadcast.New(broadcast.Config{
		Logger:       n.config.logger,
		Transport:    n.config.transport,
		PromRegistry: n.config.promRegistry,
		Timeout:      n.config.broadcastTimeout,
	})
	n.responder = chain.NewResponder(n.publisher, n.config.syncMaxBlocks)

	// Restore persisted state
	state, ok, err := n.snapshots.Load()
	if err != nil {
		n.config.logger.Warn(
			"ignoring unreadable snapshot, parsing from genesis",
			"component", "node",
			"error", err,
		)
	}
	if !ok {
		state = ledger.NewState(n.config.genesis)
	}
	n.state = state
	n.publisher.Publish(state.View())
	n.config.logger.Info(
		"ledger state loaded",
		"component", "node",
		"height", state.ChainHeight(),
		"from_snapshot", ok,
	)
	if err := n.initGovernance(); err != nil {
		return err
	}
	return nil
}

// initGovernance builds the voting services on top of the persisted lists
func (n *Node) initGovernance() error {
	ballots, err := n.db.LoadBallots()
	if err != nil {
		return err
	}
	blindVotes, err := n.db.LoadBlindVotes()
	if err != nil {
		return err
	}
	myVotes, err := n.db.LoadMyVotes()
	if err != nil {
		return err
	}
	archive, err := n.db.LoadProposals()
	if err != nil {
		return err
	}
	paramChanges, err := n.db.LoadParamChanges()
	if err != nil {
		return err
	}
	if err := checkParamChanges(n.state.Params(), paramChanges); err != nil {
		return err
	}
	n.config.logger.Debug(
		"loaded governance lists",
		"component", "node",
		"ballots", len(ballots),
		"proposals", len(archive),
		"blind_votes", len(blindVotes),
		"my_votes", len(myVotes),
		"param_changes", len(paramChanges),
	)
	wallet := n.config.wallet
	n.proposals = proposal.NewService(proposal.ServiceConfig{
		Logger:       n.config.logger,
		Views:        n.publisher,
		Wallet:       wallet,
		Broadcaster:  n.broadcaster,
		PromRegistry: n.config.promRegistry,
	})
	n.proposals.RestoreArchive(archive)
	n.proposals.Restore(ballots)
	n.blindVoteStore = blindvote.NewStore(blindVotes...)
	n.myVotes = blindvote.NewMyVoteStore(myVotes...)
	n.blindVotes = blindvote.NewService(blindvote.ServiceConfig{
		Logger:       n.config.logger,
		Views:        n.publisher,
		Wallet:       wallet,
		Signer:       n.config.meritSigner,
		Broadcaster:  n.broadcaster,
		Store:        n.blindVoteStore,
		MyVotes:      n.myVotes,
		PromRegistry: n.config.promRegistry,
	})
	n.voteReveal = votereveal.New(votereveal.Config{
		Logger:       n.config.logger,
		Wallet:       wallet,
		Broadcaster:  n.broadcaster,
		BlindVotes:   n.blindVoteStore,
		MyVotes:      n.myVotes,
		PromRegistry: n.config.promRegistry,
	})
	voteResultCfg := voteresult.Config{
		Logger:        n.config.logger,
		EventBus:      n.eventBus,
		BlindVotes:    n.blindVoteStore,
		Proposals:     n.proposals,
		PromRegistry:  n.config.promRegistry,
		BlocksPerYear: n.config.blocksPerYear,
	}
	if n.tracerProvider != nil {
		voteResultCfg.TracerProvider = n.tracerProvider
	}
	n.voteResult = voteresult.New(voteResultCfg)
	return nil
}

// checkParamChanges compares the stored parameter change history with the
// loaded ledger state. Both come from the same tallies, so a parameter with
// two values at the same effective height means the database and the
// snapshot diverged.
func checkParamChanges(state *params.Ledger, stored []params.ChangeEvent) error {
	type paramAt struct {
		param  params.Param
		height uint64
	}
	values := make(map[paramAt]uint64)
	for _, evt := range state.Events() {
		values[paramAt{evt.Param, evt.EffectiveHeight}] = evt.Value
	}
	for _, evt := range stored {
		value, ok := values[paramAt{evt.Param, evt.EffectiveHeight}]
		if ok && value != evt.Value {
			return fmt.Errorf(
				"%w: %s at height %d is %d in the ledger state, %d in the database",
				ErrParamChangesMismatch,
				evt.Param,
				evt.EffectiveHeight,
				value,
				evt.Value,
			)
		}
	}
	return nil
}

// Run follows the block source until ctx is cancelled, Stop is called or
// parsing fails
func (n *Node) Run(ctx context.Context) error {
	if err := n.start(); err != nil {
		return err
	}
	ctx, done, err := n.beginRun(ctx)
	if err != nil {
		return err
	}
	defer done()
	err = n.follower.Run(ctx, n.nextHeight, n.handleBlock)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Sync parses all blocks up to the current source tip and returns the
// number of blocks handled
func (n *Node) Sync(ctx context.Context) (int, error) {
	if err := n.start(); err != nil {
		return 0, err
	}
	ctx, done, err := n.beginRun(ctx)
	if err != nil {
		return 0, err
	}
	defer done()
	count, err := n.follower.SyncOnce(ctx, n.nextHeight, n.handleBlock)
	if errors.Is(err, chain.ErrEmptySource) {
		return count, nil
	}
	return count, err
}

// beginRun makes sure only one caller parses blocks at a time
func (n *Node) beginRun(
	ctx context.Context,
) (context.Context, func(), error) {
	n.runMu.Lock()
	defer n.runMu.Unlock()
	if n.stopped {
		return nil, nil, ErrNodeStopped
	}
	if n.runCancel != nil {
		return nil, nil, ErrNodeRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	n.runCancel = cancel
	n.runWg.Add(1)
	done := func() {
		cancel()
		n.runMu.Lock()
		n.runCancel = nil
		n.runMu.Unlock()
		n.runWg.Done()
	}
	return ctx, done, nil
}

func (n *Node) nextHeight() uint64 {
	if _, ok := n.state.ChainHead(); !ok {
		return n.state.Genesis().Height
	}
	return n.state.ChainHeight() + 1
}

// handleBlock runs on the parser goroutine for every block
func (n *Node) handleBlock(ctx context.Context, raw chain.RawBlock) error {
	prevPhase := period.PhaseUndefined
	if _, ok := n.state.ChainHead(); ok {
		prevPhase = n.state.Calendar().PhaseAt(n.state.ChainHeight())
	}
	res, err := n.parser.ParseBlock(n.state, raw)
	if err != nil {
		var notConnecting ledger.BlockNotConnectingError
		if errors.As(err, &notConnecting) {
			return n.handleNotConnecting(notConnecting)
		}
		return err
	}
	height := res.Block.Height
	// The tally changes the state at this height, so it runs before the
	// snapshot is taken
	result, err := n.voteResult.OnBlock(ctx, n.state)
	if err != nil {
		return fmt.Errorf("vote result at height %d: %w", height, err)
	}
	if err := n.snapshots.OnBlock(n.state); err != nil {
		n.config.logger.Error(
			"failed to take snapshot",
			"component", "node",
			"height", height,
			"error", err,
		)
	}
	view := n.state.View()
	n.publisher.Publish(view)

	cycle, _ := view.CurrentCycle()
	n.publish(event.BlockParsedEventType, event.BlockParsedEvent{
		Height:     height,
		Hash:       res.Block.Hash,
		TokenTxs:   len(res.Block.Txs),
		TotalTxs:   res.TotalTxs,
		CycleIndex: cycle.Index,
	})
	if res.NewCycle != nil {
		n.publish(event.CycleStartEventType, event.CycleStartEvent{
			CycleIndex:         res.NewCycle.Index,
			HeightOfFirstBlock: res.NewCycle.HeightOfFirstBlock,
			HeightOfLastBlock:  res.NewCycle.HeightOfLastBlock(),
		})
	}
	if phase := view.CurrentPhase(); phase != prevPhase {
		n.publish(event.PhaseChangeEventType, event.PhaseChangeEvent{
			Height:     height,
			CycleIndex: cycle.Index,
			Phase:      phase.String(),
			PrevPhase:  prevPhase.String(),
		})
	}

	if removed := n.proposals.OnBlock(view); len(removed) > 0 {
		n.saveBallots()
	}
	if revealed := n.voteReveal.OnBlock(ctx, view); len(revealed) > 0 {
		n.saveMyVotes()
	}
	if result != nil {
		n.saveParamChanges(view)
	}
	if n.snapshots.IsSnapshotHeight(height) {
		n.saveLists()
	}
	return nil
}

// handleNotConnecting rolls the ledger back to a snapshot. Parsing resumes
// from the restored height.
func (n *Node) handleNotConnecting(err ledger.BlockNotConnectingError) error {
	n.config.logger.Warn(
		"block does not connect to chain head, restoring snapshot",
		"component", "node",
		"height", err.Height,
		"prev_hash", err.PrevHash,
		"expected_height", err.ExpectedHeight,
		"expected_hash", err.ExpectedHash,
	)
	n.publish(event.ChainNotConnectingEventType, event.ChainNotConnectingEvent{
		Height:         err.Height,
		PrevHash:       err.PrevHash,
		ExpectedHeight: err.ExpectedHeight,
		ExpectedHash:   err.ExpectedHash,
	})
	state, source, restoreErr := n.snapshots.Restore()
	if restoreErr != nil {
		return restoreErr
	}
	n.state = state
	view := state.View()
	n.publisher.Publish(view)
	n.proposals.OnBlock(view)
	n.config.logger.Info(
		"restored ledger snapshot",
		"component", "node",
		"height", state.ChainHeight(),
		"source", source,
	)
	n.publish(event.SnapshotRestoredEventType, event.SnapshotRestoredEvent{
		Height: state.ChainHeight(),
		Source: source,
	})
	return nil
}

func (n *Node) publish(eventType event.EventType, data any) {
	n.eventBus.Publish(eventType, event.NewEvent(eventType, data))
}

// Stop cancels a running sync and closes the database
func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	shutdownTimeout := DefaultShutdownTimeout
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error
	n.config.logger.Debug("starting graceful shutdown", "component", "node")

	// Stop parsing and wait for the current block to finish
	n.runMu.Lock()
	n.stopped = true
	if n.runCancel != nil {
		n.runCancel()
	}
	n.runMu.Unlock()
	n.runWg.Wait()

	// Flush lists and close database
	if n.db != nil {
		if n.proposals != nil {
			n.saveLists()
		}
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	// Call registered shutdown functions
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	n.eventBus.Stop()
	n.config.logger.Debug("graceful shutdown complete", "component", "node")
	return err
}

// Copyright 2025 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package forkaware

import (
	"context"
	"sync"
	"sync/atomic"

	pkgerrors "github.com/pkg/errors"

	"github.com/ethereum/go-ethereum/log"
)

// commandKind enumerates what an ExternalWatcherContext's command channel
// carries, mirroring multi_view_listener.rs's ControllerCommand.
type commandKind uint8

const (
	cmdAddView commandKind = iota
	cmdRemoveView
	cmdInvalidate
	cmdFinalize
)

type command struct {
	kind      commandKind
	blockHash BlockHash
	stream    <-chan Status // cmdAddView only
	index     TxIndex       // cmdFinalize only
}

// controller is the sender side of one watched transaction's command
// channel plus a liveness flag its own watcher loop sets on exit, so a
// sender can detect "peer gone" without a Go channel's own closed-ness
// (which a sender cannot observe safely). The channel is generously
// buffered rather than truly unbounded (see DESIGN.md, listener.go): commands are
// tiny and rate-limited by block cadence, so a bounded buffer sized well
// past any plausible burst is the pragmatic Go rendition of "unbounded,
// sends never block".
type controller struct {
	cmds   chan command
	closed atomic.Bool
}

func newController() *controller {
	return &controller{cmds: make(chan command, commandQueueSize)}
}

// trySend attempts a non-blocking delivery, returning false if the
// controller is already known closed or its buffer is full (treated the
// same as closed: a stuck consumer is as good as gone).
func (c *controller) trySend(cmd command) bool {
	if c.closed.Load() {
		return false
	}
	select {
	case c.cmds <- cmd:
		return true
	default:
		return false
	}
}

// Listener is the multi-view listener (MVL): it owns one Controller per
// watched TxHash and multiplexes that transaction's per-view status
// streams into a single external stream (spec §4.1).
type Listener struct {
	mu          sync.RWMutex
	controllers map[TxHash]*controller
}

// NewListener constructs an empty MVL.
func NewListener() *Listener {
	return &Listener{controllers: make(map[TxHash]*controller)}
}

// CreateExternalWatcher installs a new controller for hash and returns the
// merged stream the caller should consume. It returns ok=false if a
// watcher already exists for hash - callers must not create twice
// (invariant MVL-1).
func (l *Listener) CreateExternalWatcher(ctx context.Context, hash TxHash) (<-chan Status, bool) {
	l.mu.Lock()
	if _, exists := l.controllers[hash]; exists {
		l.mu.Unlock()
		return nil, false
	}
	c := newController()
	l.controllers[hash] = c
	l.mu.Unlock()

	out := make(chan Status, statusQueueSize)
	go l.run(ctx, hash, c, out)
	return out, true
}

// AddViewWatcher delivers the per-view status stream for (hash, blockHash)
// into hash's controller. A no-op if no controller exists; removes the
// controller entry if it is found to be gone (spec §4.1).
func (l *Listener) AddViewWatcher(hash TxHash, blockHash BlockHash, stream <-chan Status) {
	l.dispatch(hash, command{kind: cmdAddView, blockHash: blockHash, stream: stream})
}

// RemoveView broadcasts RemoveView(blockHash) to every live controller.
func (l *Listener) RemoveView(blockHash BlockHash) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for hash, c := range l.controllers {
		if !c.trySend(command{kind: cmdRemoveView, blockHash: blockHash}) {
			delete(l.controllers, hash)
		}
	}
}

// InvalidateTransactions sends InvalidateTransaction for each hash in the
// set.
func (l *Listener) InvalidateTransactions(hashes []TxHash) {
	for _, h := range hashes {
		l.dispatch(h, command{kind: cmdInvalidate})
	}
}

// FinalizeTransaction sends FinalizeTransaction(blockHash, index) for hash.
func (l *Listener) FinalizeTransaction(hash TxHash, blockHash BlockHash, index TxIndex) {
	l.dispatch(hash, command{kind: cmdFinalize, blockHash: blockHash, index: index})
}

// RemoveStaleControllers drops entries whose watcher loop has already
// exited (closed == true) but that a concurrent dispatch raced ahead of.
// run's own deferred deregister already does this eagerly; this is the
// sweep spec §4.1 names explicitly as a separate operation.
func (l *Listener) RemoveStaleControllers() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for hash, c := range l.controllers {
		if c.closed.Load() {
			delete(l.controllers, hash)
		}
	}
}

func (l *Listener) dispatch(hash TxHash, cmd command) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.controllers[hash]
	if !ok {
		return
	}
	if !c.trySend(cmd) {
		delete(l.controllers, hash)
	}
}

func (l *Listener) deregister(hash TxHash, c *controller) {
	c.closed.Store(true)
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.controllers[hash]; ok && cur == c {
		delete(l.controllers, hash)
	}
}

// viewEvent tags a Status with which view's stream it came from, so the
// merge loop's state machine can apply the dedup/terminal-state table
// keyed by view hash.
type viewEvent struct {
	hash   BlockHash
	status Status
}

// watcherState is one ExternalWatcherContext: the live per-view stream
// set plus the first-emission/terminal bookkeeping from spec §3's MVL
// state.
type watcherState struct {
	txHash TxHash

	merged chan viewEvent
	views  map[BlockHash]context.CancelFunc

	futureSeen, readySeen, broadcastSeen bool
	inblock                              map[BlockHash]bool
	viewsKeepingTxValid                  map[BlockHash]bool
	terminate                            bool
}

func newWatcherState(hash TxHash) *watcherState {
	return &watcherState{
		txHash:              hash,
		merged:              make(chan viewEvent, mergedQueueSize),
		views:               make(map[BlockHash]context.CancelFunc),
		inblock:             make(map[BlockHash]bool),
		viewsKeepingTxValid: make(map[BlockHash]bool),
	}
}

// forwardViewStream pumps one view's status stream into the shared merged channel
// until the view is removed (ctx cancelled) or the stream closes.
func forwardViewStream(ctx context.Context, hash BlockHash, stream <-chan Status, merged chan<- viewEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-stream:
			if !ok {
				return
			}
			select {
			case merged <- viewEvent{hash: hash, status: s}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// handle applies the incoming-status table (spec §4.1) and returns the
// status to emit plus whether it should be emitted at all.
func (s *watcherState) handle(hash BlockHash, status Status) (Status, bool) {
	switch status.Kind {
	case StatusFuture:
		s.viewsKeepingTxValid[hash] = true
		if s.futureSeen || s.readySeen {
			return Status{}, false
		}
		s.futureSeen = true
		return status, true
	case StatusReady:
		s.viewsKeepingTxValid[hash] = true
		if s.readySeen {
			return Status{}, false
		}
		s.readySeen = true
		return status, true
	case StatusBroadcast:
		if s.broadcastSeen {
			return Status{}, false
		}
		s.broadcastSeen = true
		return status, true
	case StatusInBlock:
		if s.inblock[status.Block] {
			return Status{}, false
		}
		s.inblock[status.Block] = true
		return status, true
	case StatusFinalityTimeout:
		return status, true
	case StatusFinalized:
		s.terminate = true
		return status, true
	case StatusUsurped, StatusDropped, StatusInvalid:
		// Invalidity from a single view is not dispositive: forks can
		// disagree, and only MP's finalization-boundary verdict (delivered
		// as an explicit InvalidateTransaction command, not a per-view
		// status) may terminate the external watcher with Invalid.
		return Status{}, false
	case StatusRetracted:
		log.Error("forkaware: unexpected Retracted status from view, treating as a programming error",
			"err", pkgerrors.Errorf("view %s reported Retracted for tx %s", hash.TerminalString(), s.txHash.TerminalString()))
		return Status{}, false
	default:
		return Status{}, false
	}
}

// handleInvalidate implements handle_invalidate_transaction: suppressed
// unless every view that ever reported the transaction valid is no longer
// among the currently live views.
func (s *watcherState) handleInvalidate() bool {
	for h := range s.viewsKeepingTxValid {
		if _, live := s.views[h]; live {
			return false
		}
	}
	s.terminate = true
	return true
}

// run is the per-watcher merge loop: a biased select between the merged
// per-view stream and the command channel, emulated in Go with a
// non-blocking poll of the merged stream before falling into the blocking
// select (Go's select has no "biased" keyword).
func (l *Listener) run(ctx context.Context, hash TxHash, c *controller, out chan<- Status) {
	defer close(out)
	st := newWatcherState(hash)
	defer func() {
		for _, cancel := range st.views {
			cancel()
		}
		l.deregister(hash, c)
	}()

	for {
		if st.terminate {
			return
		}

		select {
		case ev := <-st.merged:
			if !l.handleEvent(ctx, st, ev, out) {
				return
			}
			continue
		default:
		}

		select {
		case ev := <-st.merged:
			if !l.handleEvent(ctx, st, ev, out) {
				return
			}
		case cmd, ok := <-c.cmds:
			if !ok {
				return
			}
			if !l.handleCommand(ctx, st, cmd, out) {
				return
			}
		case <-ctx.Done():
			return
		}

		log.Trace("forkaware: external watcher state", "tx", hash, "views", len(st.views), "terminate", st.terminate)
	}
}

// handleEvent processes one merged view event, returns false if the loop
// should stop (terminal emission delivered or ctx done).
func (l *Listener) handleEvent(ctx context.Context, st *watcherState, ev viewEvent, out chan<- Status) bool {
	status, emit := st.handle(ev.hash, ev.status)
	if !emit {
		return true
	}
	select {
	case out <- status:
	case <-ctx.Done():
		return false
	}
	return !st.terminate
}

// handleCommand processes one command, returns false if the loop should
// stop.
func (l *Listener) handleCommand(ctx context.Context, st *watcherState, cmd command, out chan<- Status) bool {
	switch cmd.kind {
	case cmdAddView:
		cctx, cancel := context.WithCancel(ctx)
		st.views[cmd.blockHash] = cancel
		go forwardViewStream(cctx, cmd.blockHash, cmd.stream, st.merged)
	case cmdRemoveView:
		if cancel, ok := st.views[cmd.blockHash]; ok {
			cancel()
			delete(st.views, cmd.blockHash)
		}
	case cmdInvalidate:
		if st.handleInvalidate() {
			select {
			case out <- statusInvalid():
			case <-ctx.Done():
				return false
			}
			return false
		}
	case cmdFinalize:
		st.terminate = true
		select {
		case out <- statusFinalized(cmd.blockHash, cmd.index):
		case <-ctx.Done():
			return false
		}
		return false
	}
	return true
}

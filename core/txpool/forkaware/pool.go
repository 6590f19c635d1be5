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

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
)

// FinalizedTx names one transaction finalized in a block, for OnFinalized.
type FinalizedTx struct {
	Hash  TxHash
	Index TxIndex
}

// ForkAwareTxPool wires MemPool, Listener and the live View set together
// behind the block-import/finalization notifications a chain client
// drives it with (spec §2 data/control flow, §6 inputs). It plays the role
// core/txpool's own TxPool dispatcher plays for its SubPools: own the
// lifecycle, replay submissions into every tracked view, and react to
// chain events, without itself containing any validation logic.
type ForkAwareTxPool struct {
	api    ChainAPI
	signer types.Signer
	cfg    config

	mp       *MemPool
	listener *Listener
	queue    *RevalidationQueue

	mu    sync.RWMutex
	views map[BlockHash]*View

	viewFeed event.Feed // fires BlockHash on view add/remove, a discovery-style signal (SPEC_FULL.md §1)

	closeOnce sync.Once
}

// New constructs a pool ready to track views and accept submissions. No
// view exists until the caller's first OnBlockImported call - this mirrors
// the teacher's own subpool Init()/Reset() split: construction never
// touches chain state by itself.
func New(api ChainAPI, signer types.Signer, opts ...Option) *ForkAwareTxPool {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	listener := NewListener()
	return &ForkAwareTxPool{
		api:      api,
		signer:   signer,
		cfg:      cfg,
		mp:       NewMemPool(api, listener, opts...),
		listener: listener,
		queue:    NewRevalidationQueue(cfg.revalidationWorkers),
		views:    make(map[BlockHash]*View),
	}
}

// Close stops the revalidation worker pool. It does not block on in-flight
// work - spec §5: "task cancellation at shutdown must not cause data loss
// of already-emitted events; in-flight revalidation results may be
// discarded."
func (p *ForkAwareTxPool) Close() {
	p.closeOnce.Do(p.queue.Close)
}

// SubscribeViewEvents subscribes to view add/remove discovery notifications
// (ambient, not part of the specified core; see SPEC_FULL.md §1).
func (p *ForkAwareTxPool) SubscribeViewEvents(ch chan<- BlockHash) event.Subscription {
	return p.viewFeed.Subscribe(ch)
}

// Submit buffers tx in MP and replays it into every currently tracked
// view, without creating a status watcher.
func (p *ForkAwareTxPool) Submit(ctx context.Context, source Source, tx *types.Transaction) {
	p.mp.PushUnwatched(source, tx)

	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, v := range p.views {
		if _, errs := v.SubmitMany(ctx, source, []*types.Transaction{tx}); len(errs) > 0 && errs[0] != nil {
			log.Debug("forkaware: submit failed on view", "hash", tx.Hash(), "view", v.At.Hash, "err", errs[0])
		}
	}
}

// SubmitAndWatch buffers tx in MP as watched, creates its external watcher,
// and replays it into every currently tracked view, wiring each view's
// per-tx watcher into the external one. Returns ErrWatcherExists if a
// watcher already exists for this hash (invariant MVL-1).
func (p *ForkAwareTxPool) SubmitAndWatch(ctx context.Context, source Source, tx *types.Transaction) (<-chan Status, error) {
	hash, _ := p.api.HashAndLength(tx)
	p.mp.PushWatched(source, tx)

	stream, ok := p.listener.CreateExternalWatcher(ctx, hash)
	if !ok {
		return nil, ErrWatcherExists
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, v := range p.views {
		w, err := v.SubmitAndWatch(ctx, source, tx)
		if err != nil {
			log.Debug("forkaware: submit-and-watch failed on view", "hash", hash, "view", v.At.Hash, "err", err)
			continue
		}
		p.listener.AddViewWatcher(hash, v.At.Hash, w.Stream())
	}
	return stream, nil
}

// OnBlockImported spawns a view for at, deep-cloning parent's pool
// contents if the pool already tracks parent (the cheap path; spec §4.2
// new_from_other), replays MP's current contents into it, and starts its
// background revalidation.
func (p *ForkAwareTxPool) OnBlockImported(ctx context.Context, parent *BlockID, at BlockID) *View {
	p.mu.Lock()
	var v *View
	if parent != nil {
		if pv, ok := p.views[parent.Hash]; ok {
			v = NewViewFromOther(pv, at)
		}
	}
	if v == nil {
		v = NewView(at, p.api, p.signer)
	}
	p.views[at.Hash] = v
	p.mu.Unlock()

	p.replayInto(ctx, v)
	v.StartBackgroundRevalidation(ctx, p.queue)
	p.viewFeed.Send(at.Hash)
	return v
}

// replayInto submits MP's current snapshot into a freshly spawned view,
// wiring watched entries' per-view watchers into the MVL.
func (p *ForkAwareTxPool) replayInto(ctx context.Context, v *View) {
	unwatched := p.mp.CloneUnwatched()
	bySource := make(map[Source][]*types.Transaction, 3)
	for _, e := range unwatched {
		bySource[e.Source] = append(bySource[e.Source], e.Tx)
	}
	for source, txs := range bySource {
		v.SubmitMany(ctx, source, txs)
	}

	for hash, e := range p.mp.CloneWatched() {
		w, err := v.SubmitAndWatch(ctx, e.Source, e.Tx)
		if err != nil {
			log.Debug("forkaware: failed to replay watched transaction into view", "hash", hash, "view", v.At.Hash, "err", err)
			continue
		}
		p.listener.AddViewWatcher(hash, v.At.Hash, w.Stream())
	}
}

// OnFinalized prunes views for non-ancestor forks, runs MP's finalization
// pass (purge-finalized + revalidate-and-purge, notifying the listener of
// evictions), and tells the listener to terminate each finalized
// transaction's external watcher.
func (p *ForkAwareTxPool) OnFinalized(ctx context.Context, finalized BlockID, finalizedTxs []FinalizedTx) {
	p.pruneViews(ctx, finalized)

	hashes := make([]TxHash, len(finalizedTxs))
	for i, ft := range finalizedTxs {
		hashes[i] = ft.Hash
	}
	p.mp.PurgeFinalized(hashes)
	p.mp.PurgeTransactions(ctx, finalized)

	for _, ft := range finalizedTxs {
		p.listener.FinalizeTransaction(ft.Hash, finalized.Hash, ft.Index)
	}
}

// pruneViews drops every tracked view whose block is not an ancestor of
// finalized (spec V-2b: "its block is pruned by finalization of a
// non-ancestor fork").
func (p *ForkAwareTxPool) pruneViews(ctx context.Context, finalized BlockID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for hash, v := range p.views {
		if hash == finalized.Hash {
			continue
		}
		ancestor, err := p.isAncestor(ctx, hash, finalized.Hash)
		if err != nil {
			log.Warn("forkaware: tree route lookup failed, retaining view conservatively", "view", hash, "err", err)
			continue
		}
		if ancestor {
			continue
		}
		v.FinishRevalidation(ctx)
		delete(p.views, hash)
		p.listener.RemoveView(hash)
		p.viewFeed.Send(hash)
	}
}

func (p *ForkAwareTxPool) isAncestor(ctx context.Context, candidate, finalized BlockHash) (bool, error) {
	if candidate == finalized {
		return true, nil
	}
	route, err := p.api.TreeRoute(ctx, candidate, finalized)
	if err != nil {
		return false, err
	}
	return len(route.Retracted) == 0, nil
}

// View returns the currently tracked view for hash, if any.
func (p *ForkAwareTxPool) View(hash BlockHash) (*View, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.views[hash]
	return v, ok
}

// FinishRevalidation finishes the in-flight background revalidation (if
// any) on the view tracking hash. It is a no-op if hash is not tracked.
func (p *ForkAwareTxPool) FinishRevalidation(ctx context.Context, hash BlockHash) {
	p.mu.RLock()
	v, ok := p.views[hash]
	p.mu.RUnlock()
	if ok {
		v.FinishRevalidation(ctx)
	}
}

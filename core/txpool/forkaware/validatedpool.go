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

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
)

// ValidatedRecord is what view revalidation produces and
// ValidatedPool.Resubmit consumes once a transaction has cleared the Chain
// API: the body, who submitted it, and the validity outcome.
type ValidatedRecord struct {
	Tx       *types.Transaction
	Source   Source
	Valid    *ValidTransaction
	ValidAt  uint64 // block number this record was validated against
}

// readyEntry is one row of ValidatedPool.Ready()'s result set.
type readyEntry struct {
	Hash   TxHash
	Source Source
	Tx     *types.Transaction
}

// ValidatedPool is the required Validated-Pool interface consumed by a
// View (spec §4.2). This package treats it as an opaque collaborator, and
// also ships the one concrete implementation below so the rest of the
// package is exercisable end to end without a second module.
type ValidatedPool interface {
	SubmitAt(ctx context.Context, at BlockID, source Source, txs []*types.Transaction) ([]TxHash, []error)
	SubmitAndWatch(ctx context.Context, at BlockID, source Source, tx *types.Transaction) (*Watcher, error)
	Ready() []readyEntry
	ReadyByHash(hash TxHash) (readyEntry, bool)
	CreateWatcher(hash TxHash) (*Watcher, bool)
	RemoveInvalid(hashes []TxHash)
	Resubmit(records map[TxHash]*ValidatedRecord)
	Status() PoolStatus
	DeepClone() ValidatedPool
}

// poolEntry is one transaction tracked inside a validatedPool.
type poolEntry struct {
	tx      *types.Transaction
	source  Source
	from    common.Address
	ready   bool
	watcher *Watcher // nil unless submitted via SubmitAndWatch/CreateWatcher
}

// validatedPool is the one concrete ValidatedPool implementation this
// module ships. It keeps a map of transactions grouped by sender, the way
// core/txpool/tx_vectorfee_pool.go's VectorFeePoolDummy does, and adds the
// ready/future split and per-transaction watcher support spec §4.2 requires
// of a View's collaborator but which the teacher's dummy pool never needed
// (a SubPool has no notion of "watch this one transaction").
//
// Readiness is a minimal, dependency-free approximation deliberately: the
// full requires/provides dependency graph a production validated pool
// tracks is explicitly out of scope (spec §1, "the lower-level
// validated-pool data structure ... treated as a black box"). A
// transaction is Ready iff its nonce is the lowest outstanding nonce this
// pool has seen for its sender; anything else is Future. That is enough to
// drive the Ready()/Future-adjacent behavior View and MP depend on without
// reimplementing a second full mempool ordering engine inside what the
// spec calls an opaque collaborator.
type validatedPool struct {
	signer types.Signer

	mu      sync.RWMutex
	entries map[TxHash]*poolEntry
	byAddr  map[common.Address]map[TxHash]struct{}

	discoverFeed event.Feed
}

// newValidatedPool constructs an empty pool. signer recovers the sender of
// a transaction for ready/future bookkeeping.
func newValidatedPool(signer types.Signer) *validatedPool {
	return &validatedPool{
		signer:  signer,
		entries: make(map[TxHash]*poolEntry),
		byAddr:  make(map[common.Address]map[TxHash]struct{}),
	}
}

func (p *validatedPool) recompute(addr common.Address) {
	hashes := p.byAddr[addr]
	if len(hashes) == 0 {
		return
	}
	var lowest *uint64
	for h := range hashes {
		n := p.entries[h].tx.Nonce()
		if lowest == nil || n < *lowest {
			nn := n
			lowest = &nn
		}
	}
	for h := range hashes {
		p.entries[h].ready = p.entries[h].tx.Nonce() == *lowest
	}
}

func (p *validatedPool) insert(source Source, tx *types.Transaction) (*poolEntry, error) {
	from, err := types.Sender(p.signer, tx)
	if err != nil {
		return nil, err
	}
	h := tx.Hash()
	if existing, ok := p.entries[h]; ok {
		return existing, nil
	}
	e := &poolEntry{tx: tx, source: source, from: from}
	p.entries[h] = e
	if p.byAddr[from] == nil {
		p.byAddr[from] = make(map[TxHash]struct{})
	}
	p.byAddr[from][h] = struct{}{}
	p.recompute(from)
	return e, nil
}

func (p *validatedPool) SubmitAt(ctx context.Context, at BlockID, source Source, txs []*types.Transaction) ([]TxHash, []error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	hashes := make([]TxHash, len(txs))
	errs := make([]error, len(txs))
	added := make(types.Transactions, 0, len(txs))
	for i, tx := range txs {
		e, err := p.insert(source, tx)
		if err != nil {
			errs[i] = err
			continue
		}
		hashes[i] = tx.Hash()
		added = append(added, tx)
		log.Trace("forkaware: transaction entered view", "hash", tx.Hash(), "view", at.Hash, "ready", e.ready)
	}
	if len(added) > 0 {
		p.discoverFeed.Send(added)
	}
	return hashes, errs
}

func (p *validatedPool) SubmitAndWatch(ctx context.Context, at BlockID, source Source, tx *types.Transaction) (*Watcher, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.insert(source, tx)
	if err != nil {
		return nil, err
	}
	if e.watcher == nil {
		e.watcher = newWatcher(tx.Hash())
	}
	if e.ready {
		e.watcher.emit(statusReady())
	} else {
		e.watcher.emit(statusFuture())
	}
	log.Debug("forkaware: watched transaction entered view", "hash", tx.Hash(), "view", at.Hash)
	return e.watcher, nil
}

func (p *validatedPool) Ready() []readyEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]readyEntry, 0, len(p.entries))
	for h, e := range p.entries {
		if e.ready {
			out = append(out, readyEntry{Hash: h, Source: e.source, Tx: e.tx})
		}
	}
	return out
}

func (p *validatedPool) ReadyByHash(hash TxHash) (readyEntry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	e, ok := p.entries[hash]
	if !ok || !e.ready {
		return readyEntry{}, false
	}
	return readyEntry{Hash: hash, Source: e.source, Tx: e.tx}, true
}

func (p *validatedPool) CreateWatcher(hash TxHash) (*Watcher, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[hash]
	if !ok {
		return nil, false
	}
	if e.watcher == nil {
		e.watcher = newWatcher(hash)
		if e.ready {
			e.watcher.emit(statusReady())
		} else {
			e.watcher.emit(statusFuture())
		}
	}
	return e.watcher, true
}

func (p *validatedPool) RemoveInvalid(hashes []TxHash) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, h := range hashes {
		e, ok := p.entries[h]
		if !ok {
			continue
		}
		if e.watcher != nil {
			e.watcher.emit(statusInvalid())
		}
		delete(p.entries, h)
		if set, ok := p.byAddr[e.from]; ok {
			delete(set, h)
			if len(set) == 0 {
				delete(p.byAddr, e.from)
			} else {
				p.recompute(e.from)
			}
		}
	}
}

func (p *validatedPool) Resubmit(records map[TxHash]*ValidatedRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for h, rec := range records {
		e, ok := p.entries[h]
		if !ok {
			e2, err := p.insert(rec.Source, rec.Tx)
			if err != nil {
				continue
			}
			e = e2
		}
		_ = rec // ValidAt/priority bookkeeping lives on the record; the entry
		// itself only needs to exist and have its readiness recomputed.
		p.recompute(e.from)
	}
}

func (p *validatedPool) Status() PoolStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var st PoolStatus
	for _, e := range p.entries {
		if e.ready {
			st.Ready++
		} else {
			st.Future++
		}
	}
	return st
}

func (p *validatedPool) DeepClone() ValidatedPool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	clone := newValidatedPool(p.signer)
	for h, e := range p.entries {
		ce := &poolEntry{tx: e.tx, source: e.source, from: e.from, ready: e.ready}
		clone.entries[h] = ce
		if clone.byAddr[e.from] == nil {
			clone.byAddr[e.from] = make(map[TxHash]struct{})
		}
		clone.byAddr[e.from][h] = struct{}{}
		// Watchers are not cloned: a watcher belongs to exactly the view it
		// was created on, per spec V-2 (a view's lifetime is its own), and
		// new_from_other is "a hint, not ground truth" (spec §9) about pool
		// contents, not about who is watching them.
	}
	return clone
}

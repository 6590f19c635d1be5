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
	"bytes"
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"golang.org/x/sync/errgroup"
)

// mpEntry is one buffered transaction, independent of any view. source and
// watched are fixed at insertion and never exposed for mutation; only
// validatedAt moves, and only atomically, mirroring tx_mem_pool.rs's
// TxInMemPool split between plain immutable fields and an AtomicU64.
type mpEntry struct {
	tx      *types.Transaction
	source  Source
	watched bool

	validatedAt atomic.Uint64
}

// MemPool is the tip-independent buffer of every outstanding transaction
// (spec §4.3). It holds no dependency relation between entries; ordering
// is imposed only by views.
type MemPool struct {
	api      ChainAPI
	listener *Listener
	cfg      config

	mu           sync.RWMutex
	transactions map[TxHash]*mpEntry

	evictions metrics.Counter
}

// NewMemPool constructs an empty MP. listener is notified of evictions
// discovered during PurgeTransactions via InvalidateTransactions, matching
// the original's wiring of tx_mem_pool to multi_view_listener.
func NewMemPool(api ChainAPI, listener *Listener, opts ...Option) *MemPool {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	mp := &MemPool{
		api:          api,
		listener:     listener,
		cfg:          cfg,
		transactions: make(map[TxHash]*mpEntry),
	}
	if cfg.metricsEnabled {
		mp.evictions = metrics.NewRegisteredCounter("txpool/forkaware/mempool/evictions", nil)
	}
	return mp
}

// Get returns a buffered transaction by hash.
func (mp *MemPool) Get(hash TxHash) (*types.Transaction, bool) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	e, ok := mp.transactions[hash]
	if !ok {
		return nil, false
	}
	return e.tx, true
}

// Counts returns the number of unwatched and watched entries.
func (mp *MemPool) Counts() (unwatched, watched int) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	for _, e := range mp.transactions {
		if e.watched {
			watched++
		} else {
			unwatched++
		}
	}
	return unwatched, watched
}

func (mp *MemPool) push(source Source, tx *types.Transaction, watched bool) {
	hash, _ := mp.api.HashAndLength(tx)
	e := &mpEntry{tx: tx, source: source, watched: watched}
	mp.mu.Lock()
	mp.transactions[hash] = e
	mp.mu.Unlock()
	log.Trace("forkaware: mempool entry inserted", "hash", hash, "source", source, "watched", watched)
}

// PushUnwatched inserts or overwrites an unwatched entry. The open question
// in spec §9 (a later push_watched over an existing unwatched entry for the
// same hash) is resolved here and in PushWatched by plain map overwrite:
// the later call wins and fixes the watched flag it was called with.
func (mp *MemPool) PushUnwatched(source Source, tx *types.Transaction) {
	mp.push(source, tx, false)
}

// PushWatched inserts or overwrites a watched entry.
func (mp *MemPool) PushWatched(source Source, tx *types.Transaction) {
	mp.push(source, tx, true)
}

// ExtendUnwatched batch-inserts unwatched entries, e.g. when replaying a
// block body back into the pool after a reorg exposes it as no longer
// included.
func (mp *MemPool) ExtendUnwatched(source Source, txs []*types.Transaction) {
	for _, tx := range txs {
		mp.PushUnwatched(source, tx)
	}
}

// MPEntry is the snapshot shape CloneUnwatched/CloneWatched return: enough
// to replay a transaction into a newly spawned view with its original
// source intact.
type MPEntry struct {
	Tx     *types.Transaction
	Source Source
}

// CloneUnwatched returns a snapshot of every unwatched entry, for replaying
// into a newly spawned view.
func (mp *MemPool) CloneUnwatched() map[TxHash]MPEntry {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	out := make(map[TxHash]MPEntry)
	for h, e := range mp.transactions {
		if !e.watched {
			out[h] = MPEntry{Tx: e.tx, Source: e.source}
		}
	}
	return out
}

// CloneWatched returns a snapshot of every watched entry.
func (mp *MemPool) CloneWatched() map[TxHash]MPEntry {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	out := make(map[TxHash]MPEntry)
	for h, e := range mp.transactions {
		if e.watched {
			out[h] = MPEntry{Tx: e.tx, Source: e.source}
		}
	}
	return out
}

// RemoveWatched removes a watched entry matched by encoded body equality,
// not by hash - for a caller that only has the original transaction, e.g.
// one that resubmitted a fee-bumped replacement and wants the stale body
// gone by content rather than by recomputing its hash (tx_mem_pool.rs
// remove_watched; see SPEC_FULL.md §4).
func (mp *MemPool) RemoveWatched(tx *types.Transaction) {
	body, err := tx.MarshalBinary()
	if err != nil {
		return
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()
	for h, e := range mp.transactions {
		if !e.watched {
			continue
		}
		eb, err := e.tx.MarshalBinary()
		if err != nil || !bytes.Equal(eb, body) {
			continue
		}
		delete(mp.transactions, h)
		return
	}
}

// PurgeFinalized removes entries outright, with no revalidation: these
// transactions are finalized in an ancestor of the latest finalized block
// (invariant MP-2a).
func (mp *MemPool) PurgeFinalized(hashes []TxHash) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	for _, h := range hashes {
		delete(mp.transactions, h)
	}
}

// PurgeTransactions runs the revalidation policy (spec §4.3) against the
// latest finalized block and removes whatever it evicts, notifying the
// listener of every eviction so per-transaction watchers can be unblocked
// from their invalidate-suppression guard (spec §4.1 InvalidateTransaction,
// P4).
func (mp *MemPool) PurgeTransactions(ctx context.Context, finalized BlockID) {
	evicted := mp.revalidate(ctx, finalized)
	if len(evicted) == 0 {
		return
	}
	mp.mu.Lock()
	for _, h := range evicted {
		delete(mp.transactions, h)
	}
	mp.mu.Unlock()

	if mp.evictions != nil {
		mp.evictions.Inc(int64(len(evicted)))
	}
	if mp.listener != nil {
		mp.listener.InvalidateTransactions(evicted)
	}
	log.Info("forkaware: mempool revalidation evicted transactions", "finalized", finalized.Hash, "count", len(evicted))
}

// revalidate implements spec §4.3's revalidation policy: filter by
// staleness, oldest-first, bounded batch, concurrent validation, classify.
func (mp *MemPool) revalidate(ctx context.Context, finalized BlockID) []TxHash {
	type candidate struct {
		hash  TxHash
		entry *mpEntry
	}

	mp.mu.RLock()
	candidates := make([]candidate, 0, len(mp.transactions))
	for h, e := range mp.transactions {
		if e.validatedAt.Load()+mp.cfg.revalidationPeriod < finalized.Number {
			candidates = append(candidates, candidate{hash: h, entry: e})
		}
	}
	mp.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].entry.validatedAt.Load() < candidates[j].entry.validatedAt.Load()
	})
	if len(candidates) > mp.cfg.maxRevalidationBatch {
		candidates = candidates[:mp.cfg.maxRevalidationBatch]
	}

	var mu sync.Mutex
	evicted := make([]TxHash, 0)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, c := range candidates {
		c := c
		g.Go(func() error {
			_, err := mp.api.ValidateTransaction(gctx, finalized.Hash, c.entry.source, c.entry.tx)
			c.entry.validatedAt.Store(finalized.Number)

			keep := err == nil
			if verr, ok := AsValidationError(err); ok && verr.Kind == ErrKindInvalid && verr.Future {
				keep = true
			}
			if !keep {
				mu.Lock()
				evicted = append(evicted, c.hash)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	return evicted
}

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
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// revalidationChannels are the two one-shot channels mediating one
// background revalidation: finishReq (maintain -> worker, capacity 1) and
// result (worker -> maintain, capacity 1). Both are created fresh by
// StartBackgroundRevalidation and discarded after one use.
type revalidationChannels struct {
	finishReq chan struct{}
	result    chan revalidationResult
}

type revalidationResult struct {
	invalid     []TxHash
	revalidated map[TxHash]*ValidatedRecord
}

type revalidationJob struct {
	view *View
	ch   *revalidationChannels
}

// RevalidationQueue is the small bounded dispatch channel into a fixed-size
// worker pool that runs view background revalidation (spec §5,
// "backpressure": "a worker pool of fixed size, two workers by default").
// It is shared across every live View the way a node-wide resource would
// be, rather than spinning up one goroutine per view.
type RevalidationQueue struct {
	jobs chan revalidationJob
}

// NewRevalidationQueue starts workers goroutines pulling from a shared job
// queue. workers <= 0 uses DefaultRevalidationWorkers.
func NewRevalidationQueue(workers int) *RevalidationQueue {
	if workers <= 0 {
		workers = DefaultRevalidationWorkers
	}
	q := &RevalidationQueue{jobs: make(chan revalidationJob, workers*2)}
	for i := 0; i < workers; i++ {
		go q.loop()
	}
	return q
}

func (q *RevalidationQueue) loop() {
	for job := range q.jobs {
		job.view.revalidate(job.ch)
	}
}

// enqueue submits a job, respecting ctx so a caller racing shutdown does
// not block forever on a full queue.
func (q *RevalidationQueue) enqueue(ctx context.Context, job revalidationJob) bool {
	select {
	case q.jobs <- job:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close stops accepting new jobs. Workers drain what remains in-flight and
// exit once the channel is empty and closed.
func (q *RevalidationQueue) Close() {
	close(q.jobs)
}

// StartBackgroundRevalidation submits v for revalidation on queue. It is a
// no-op (returns false) if v already owns an in-flight revalidation - a
// view may own at most one at a time (spec §4.2).
func (v *View) StartBackgroundRevalidation(ctx context.Context, queue *RevalidationQueue) bool {
	v.mu.Lock()
	if v.revalidation != nil {
		v.mu.Unlock()
		return false
	}
	ch := &revalidationChannels{
		finishReq: make(chan struct{}, 1),
		result:    make(chan revalidationResult, 1),
	}
	v.revalidation = ch
	v.mu.Unlock()

	return queue.enqueue(ctx, revalidationJob{view: v, ch: ch})
}

// FinishRevalidation implements the maintain-side protocol (spec §4.2):
// atomically take the view's channel endpoints, request a stop if a
// revalidation is in flight, await its result, and apply it. It is a safe
// no-op if no revalidation is in flight.
func (v *View) FinishRevalidation(ctx context.Context) {
	v.mu.Lock()
	ch := v.revalidation
	v.revalidation = nil
	v.mu.Unlock()
	if ch == nil {
		return
	}

	select {
	case ch.finishReq <- struct{}{}:
	default:
	}

	select {
	case res := <-ch.result:
		v.pool.RemoveInvalid(res.invalid)
		if len(res.revalidated) > 0 {
			v.pool.Resubmit(res.revalidated)
		}
	case <-ctx.Done():
	}
}

// revalidate is the worker algorithm (spec §4.2 steps 1-7), run on one of
// RevalidationQueue's fixed goroutines. It snapshots the view's ready set,
// validates each entry against v.At via the Chain API, and reports an
// {invalid, revalidated} split on ch.result. Chain-API calls for the batch
// fan out concurrently (bounded) via errgroup rather than one at a time;
// cooperative cancellation is implemented by cancelling the context the
// fan-out shares the moment finishReq fires, so every in-flight
// ValidateTransaction call observes it within its own call, matching the
// "observe cancellation within one validation step" requirement without a
// literal per-iteration channel poll.
func (v *View) revalidate(ch *revalidationChannels) {
	genID := uuid.NewString()
	start := time.Now()
	batch := v.pool.Ready()

	workCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ch.finishReq:
			cancel()
		case <-workCtx.Done():
		}
	}()

	var mu sync.Mutex
	invalid := make([]TxHash, 0)
	revalidated := make(map[TxHash]*ValidatedRecord)

	g, gctx := errgroup.WithContext(workCtx)
	g.SetLimit(8)
	for _, entry := range batch {
		entry := entry
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if _, ok := v.pool.ReadyByHash(entry.Hash); !ok {
				return nil
			}
			valid, err := v.api.ValidateTransaction(gctx, v.At.Hash, entry.Source, entry.Tx)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				revalidated[entry.Hash] = &ValidatedRecord{
					Tx:      entry.Tx,
					Source:  entry.Source,
					Valid:   valid,
					ValidAt: v.At.Number,
				}
			default:
				if verr, ok := AsValidationError(err); ok {
					if verr.Kind == ErrKindUnknown {
						return nil // never eviction-worthy
					}
					// Unlike MP's finalization-time policy, a view evicts on
					// any rendered Invalid verdict, Future included: the
					// view is bound to a specific block, so "future" there
					// is not a promise the view itself will ever resolve.
					invalid = append(invalid, entry.Hash)
					return nil
				}
				// Transport failure: conservative eviction (spec §7). A call
				// cut short because finishReq cancelled gctx carries no
				// verdict and is dropped instead.
				if gctx.Err() != nil {
					return nil
				}
				invalid = append(invalid, entry.Hash)
			}
			return nil
		})
	}
	g.Wait()

	cancel()
	<-stopped

	select {
	case ch.result <- revalidationResult{invalid: invalid, revalidated: revalidated}:
	default:
		log.Debug("forkaware: view revalidation result dropped, receiver gone", "view", v.At.Hash, "gen", genID)
	}
	log.Info("forkaware: view revalidation complete", "view", v.At.Hash, "gen", genID,
		"batch", len(batch), "invalid", len(invalid), "revalidated", len(revalidated), "took", time.Since(start))
}

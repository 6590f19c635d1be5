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
)

// View is a validated pool bound to a single block. It is cheap to spawn
// on a new tip by deep-cloning an existing view's pool contents as a
// starting hypothesis (NewViewFromOther); background revalidation is what
// turns that hypothesis into ground truth.
type View struct {
	At  BlockID
	api ChainAPI

	pool ValidatedPool

	// mu guards revalidation only; it is a plain (non-async-aware) mutex
	// because nothing holds it across a channel send/receive (spec §5: "a
	// view's revalidation channel handle is guarded by a non-async mutex;
	// holders must not suspend while holding it").
	mu           sync.Mutex
	revalidation *revalidationChannels
}

// NewView constructs an empty view bound to at.
func NewView(at BlockID, api ChainAPI, signer types.Signer) *View {
	return &View{At: at, api: api, pool: newValidatedPool(signer)}
}

// NewViewFromOther constructs a view at a new block by deep-cloning
// other's pool. The clone is a correctness hint, not authoritative state:
// callers must schedule a revalidation before trusting it (spec §4.2,
// §9 "Deep clone on new view").
func NewViewFromOther(other *View, at BlockID) *View {
	return &View{At: at, api: other.api, pool: other.pool.DeepClone()}
}

// SubmitMany delegates to the validated pool, binding the submission to
// this view's block.
func (v *View) SubmitMany(ctx context.Context, source Source, txs []*types.Transaction) ([]TxHash, []error) {
	return v.pool.SubmitAt(ctx, v.At, source, txs)
}

// SubmitAndWatch delegates to the validated pool and returns the watcher
// created for this (tx, view) pair.
func (v *View) SubmitAndWatch(ctx context.Context, source Source, tx *types.Transaction) (*Watcher, error) {
	return v.pool.SubmitAndWatch(ctx, v.At, source, tx)
}

// CreateWatcher attaches a watcher to an already-submitted transaction.
func (v *View) CreateWatcher(hash TxHash) (*Watcher, bool) {
	return v.pool.CreateWatcher(hash)
}

// Status reports the view's ready/future counts.
func (v *View) Status() PoolStatus {
	return v.pool.Status()
}

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
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatedPoolReadyFutureClassification(t *testing.T) {
	p := newValidatedPool(testSigner)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	at := BlockID{Hash: blockHash(0x01), Number: 1}

	tx0 := newTestTx(t, 0)
	tx1 := newTestTx(t, 1)

	_, errs := p.SubmitAt(ctx, at, SourceExternal, []*types.Transaction{tx0, tx1})
	require.Len(t, errs, 2)
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	_, ok0 := p.ReadyByHash(tx0.Hash())
	assert.True(t, ok0, "nonce 0 should be ready")
	_, ok1 := p.ReadyByHash(tx1.Hash())
	assert.False(t, ok1, "nonce 1 should be future while nonce 0 is outstanding")

	st := p.Status()
	assert.Equal(t, 1, st.Ready)
	assert.Equal(t, 1, st.Future)
}

func TestValidatedPoolSubmitAndWatchEmitsReadyOrFuture(t *testing.T) {
	p := newValidatedPool(testSigner)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	at := BlockID{Hash: blockHash(0x01), Number: 1}

	tx := newTestTx(t, 0)
	w, err := p.SubmitAndWatch(ctx, at, SourceExternal, tx)
	require.NoError(t, err)

	s := <-w.Stream()
	assert.Equal(t, StatusReady, s.Kind)
}

func TestValidatedPoolRemoveInvalidTerminatesWatcher(t *testing.T) {
	p := newValidatedPool(testSigner)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	at := BlockID{Hash: blockHash(0x01), Number: 1}

	tx := newTestTx(t, 0)
	w, err := p.SubmitAndWatch(ctx, at, SourceExternal, tx)
	require.NoError(t, err)
	<-w.Stream() // Ready

	p.RemoveInvalid([]TxHash{tx.Hash()})
	s, ok := <-w.Stream()
	require.True(t, ok)
	assert.Equal(t, StatusInvalid, s.Kind)

	_, stillOpen := <-w.Stream()
	assert.False(t, stillOpen)

	_, exists := p.ReadyByHash(tx.Hash())
	assert.False(t, exists)
}

func TestValidatedPoolDeepCloneDoesNotShareWatchers(t *testing.T) {
	p := newValidatedPool(testSigner)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	at := BlockID{Hash: blockHash(0x01), Number: 1}

	tx := newTestTx(t, 0)
	orig, err := p.SubmitAndWatch(ctx, at, SourceExternal, tx)
	require.NoError(t, err)

	clone := p.DeepClone()
	entry, ok := clone.ReadyByHash(tx.Hash())
	require.True(t, ok)
	assert.Equal(t, tx.Hash(), entry.Hash)

	// The clone has its own watcher slot, independent of the source's.
	w, ok := clone.CreateWatcher(tx.Hash())
	require.True(t, ok)
	assert.NotSame(t, orig, w)
	s := <-w.Stream()
	assert.Equal(t, StatusReady, s.Kind)
}

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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario 6 (spec §8): MP revalidation eviction, plus P5 (after
// purge_transactions, every surviving entry's validated_at equals the
// finalized block number).
func TestMemPoolScenario6RevalidationEviction(t *testing.T) {
	api := newFakeChainAPI()
	l := NewListener()
	mp := NewMemPool(api, l)

	tx1 := newTestTx(t, 0)
	tx2 := newTestTx(t, 1)
	tx3 := newTestTx(t, 2)
	tx4 := newTestTx(t, 3)

	api.setInvalidFuture(tx2.Hash())
	api.setInvalid(tx3.Hash())
	api.setTransportError(tx4.Hash())

	mp.PushUnwatched(SourceExternal, tx1)
	mp.PushUnwatched(SourceExternal, tx2)
	mp.PushUnwatched(SourceExternal, tx3)
	mp.PushUnwatched(SourceExternal, tx4)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	mp.PurgeTransactions(ctx, BlockID{Hash: blockHash(0x01), Number: 11})

	_, ok1 := mp.Get(tx1.Hash())
	_, ok2 := mp.Get(tx2.Hash())
	_, ok3 := mp.Get(tx3.Hash())
	_, ok4 := mp.Get(tx4.Hash())
	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.False(t, ok3)
	assert.False(t, ok4)

	mp.mu.RLock()
	assert.Equal(t, uint64(11), mp.transactions[tx1.Hash()].validatedAt.Load())
	assert.Equal(t, uint64(11), mp.transactions[tx2.Hash()].validatedAt.Load())
	mp.mu.RUnlock()
}

func TestMemPoolPurgeTransactionsNotifiesListener(t *testing.T) {
	api := newFakeChainAPI()
	l := NewListener()
	mp := NewMemPool(api, l)

	tx := newTestTx(t, 0)
	api.setInvalid(tx.Hash())
	mp.PushWatched(SourceExternal, tx)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, ok := l.CreateExternalWatcher(ctx, tx.Hash())
	require.True(t, ok)

	mp.PurgeTransactions(ctx, BlockID{Hash: blockHash(0x01), Number: 11})

	final := recvStatus(t, ctx, out)
	assert.Equal(t, StatusInvalid, final.Kind)
}

func TestMemPoolPushWatchedOverwritesUnwatched(t *testing.T) {
	api := newFakeChainAPI()
	mp := NewMemPool(api, nil)
	tx := newTestTx(t, 0)

	mp.PushUnwatched(SourceExternal, tx)
	unwatched, watched := mp.Counts()
	require.Equal(t, 1, unwatched)
	require.Equal(t, 0, watched)

	mp.PushWatched(SourceLocal, tx)
	unwatched, watched = mp.Counts()
	assert.Equal(t, 0, unwatched)
	assert.Equal(t, 1, watched)
}

func TestMemPoolRemoveWatchedByValue(t *testing.T) {
	api := newFakeChainAPI()
	mp := NewMemPool(api, nil)
	tx := newTestTx(t, 0)
	mp.PushWatched(SourceExternal, tx)

	_, watched := mp.Counts()
	require.Equal(t, 1, watched)

	mp.RemoveWatched(tx)
	_, watched = mp.Counts()
	assert.Equal(t, 0, watched)
}

func TestMemPoolPurgeFinalizedRemovesOutright(t *testing.T) {
	api := newFakeChainAPI()
	mp := NewMemPool(api, nil)
	tx := newTestTx(t, 0)
	mp.PushUnwatched(SourceExternal, tx)

	mp.PurgeFinalized([]TxHash{tx.Hash()})
	_, ok := mp.Get(tx.Hash())
	assert.False(t, ok)
}

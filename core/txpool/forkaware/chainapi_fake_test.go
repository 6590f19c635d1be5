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
	"github.com/holiman/uint256"
)

// fakeChainAPI is a test double for ChainAPI. Verdicts are pre-programmed
// per transaction hash via set*; anything not programmed validates
// successfully.
type fakeChainAPI struct {
	mu       sync.Mutex
	invalid   map[TxHash]bool
	future    map[TxHash]bool
	unknown   map[TxHash]bool
	transport map[TxHash]bool
	routes    map[[2]BlockHash]TreeRoute
	calls     int
}

func newFakeChainAPI() *fakeChainAPI {
	return &fakeChainAPI{
		invalid:   make(map[TxHash]bool),
		future:    make(map[TxHash]bool),
		unknown:   make(map[TxHash]bool),
		transport: make(map[TxHash]bool),
		routes:    make(map[[2]BlockHash]TreeRoute),
	}
}

func (f *fakeChainAPI) setInvalid(hash TxHash)       { f.mu.Lock(); f.invalid[hash] = true; f.mu.Unlock() }
func (f *fakeChainAPI) setInvalidFuture(hash TxHash) { f.mu.Lock(); f.invalid[hash] = true; f.future[hash] = true; f.mu.Unlock() }
func (f *fakeChainAPI) setUnknown(hash TxHash)       { f.mu.Lock(); f.unknown[hash] = true; f.mu.Unlock() }
func (f *fakeChainAPI) setTransportError(hash TxHash) {
	f.mu.Lock()
	f.transport[hash] = true
	f.mu.Unlock()
}
func (f *fakeChainAPI) setRoute(from, to BlockHash, r TreeRoute) {
	f.mu.Lock()
	f.routes[[2]BlockHash{from, to}] = r
	f.mu.Unlock()
}

func (f *fakeChainAPI) ValidateTransaction(ctx context.Context, at BlockHash, source Source, tx *types.Transaction) (*ValidTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	h := tx.Hash()
	if f.transport[h] {
		return nil, errTransport
	}
	if f.unknown[h] {
		return nil, &ValidationError{Kind: ErrKindUnknown, Reason: "dependency pending"}
	}
	if f.invalid[h] {
		return nil, &ValidationError{Kind: ErrKindInvalid, Future: f.future[h], Reason: "nonce too low"}
	}
	return &ValidTransaction{Priority: uint256.NewInt(1)}, nil
}

func (f *fakeChainAPI) HashAndLength(tx *types.Transaction) (TxHash, int) {
	enc, _ := tx.MarshalBinary()
	return tx.Hash(), len(enc)
}

func (f *fakeChainAPI) BlockBody(ctx context.Context, hash BlockHash) ([]*types.Transaction, error) {
	return nil, nil
}

func (f *fakeChainAPI) BlockHeader(ctx context.Context, hash BlockHash) (*types.Header, error) {
	return nil, nil
}

func (f *fakeChainAPI) TreeRoute(ctx context.Context, from, to BlockHash) (TreeRoute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.routes[[2]BlockHash{from, to}]; ok {
		return r, nil
	}
	return TreeRoute{}, nil
}

func (f *fakeChainAPI) BlockIDToNumber(ctx context.Context, hash BlockHash) (uint64, bool, error) {
	return 0, false, nil
}

func (f *fakeChainAPI) BlockIDToHash(ctx context.Context, number uint64) (BlockHash, bool, error) {
	return BlockHash{}, false, nil
}

type transportErr struct{}

func (transportErr) Error() string { return "transport failure" }

var errTransport = transportErr{}

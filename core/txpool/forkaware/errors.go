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

import "errors"

var (
	// ErrAlreadyWatched reports that a transaction already has an external
	// watcher. No function in this package returns it: SubmitAndWatch
	// reports that case with ErrWatcherExists, and a watched push over an
	// unwatched entry simply replaces it.
	ErrAlreadyWatched = errors.New("forkaware: transaction already has an external watcher")

	// ErrWatcherExists is the internal counterpart of
	// Listener.CreateExternalWatcher's documented None return: a watcher for
	// this hash is already live.
	ErrWatcherExists = errors.New("forkaware: external watcher already exists for this hash")

	// ErrUnknownTransaction reports a transaction hash the pool has no
	// record of. No function in this package returns it; lookups such as
	// MemPool.Get and View.CreateWatcher report a miss with ok=false.
	ErrUnknownTransaction = errors.New("forkaware: unknown transaction")

	// ErrViewClosed reports a View whose background revalidation machinery
	// has already been torn down. No View method returns it.
	ErrViewClosed = errors.New("forkaware: view is closed")

	// ErrPoolClosed reports use of a ForkAwareTxPool after Close. No
	// ForkAwareTxPool method returns it; methods do not check whether Close
	// has been called.
	ErrPoolClosed = errors.New("forkaware: pool is closed")
)

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

// Package forkaware implements a fork-aware transaction pool.
//
// Unlike a single flat pool bound to one chain tip, this pool keeps one
// validated sub-pool (a View) per currently tracked block - the canonical tip
// and any recently finalized ancestor still being reported on - and a
// tip-independent buffer (the MemPool) that holds every outstanding
// transaction regardless of which view, if any, currently contains it.
//
// Transactions enter through the MemPool and are replayed into every live
// View. A watched transaction may be valid, ready, or in-block on several
// views at once (one per fork); the Listener multiplexes their independent
// status streams into the single external stream the submitter subscribed
// to, deduplicating repeated signals and deciding when that stream
// terminates.
//
// The three pieces are designed to be driven by a caller that already knows
// about block import and finalization (ForkAwareTxPool wires them together
// for that common case), but MemPool, View and Listener are independently
// usable and independently tested.
package forkaware

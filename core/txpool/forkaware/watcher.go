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
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// Watcher is a single-producer, single-consumer status stream for one
// transaction inside one validated pool. It is the concrete type behind
// the Validated-Pool interface's "Watcher yields a Stream<Status>"
// requirement (spec §4.2).
type Watcher struct {
	hash TxHash
	ch   chan Status

	mu   sync.Mutex
	done bool
}

func newWatcher(hash TxHash) *Watcher {
	return &Watcher{hash: hash, ch: make(chan Status, statusQueueSize)}
}

// Stream returns the channel callers should range/select over. It is
// closed once a terminal status (Finalized, Invalid, Dropped or Usurped)
// has been emitted.
func (w *Watcher) Stream() <-chan Status {
	return w.ch
}

// emit delivers s to the watcher unless it has already terminated. A full
// buffer is treated as a slow consumer, not a reason to block the
// validated pool's internal bookkeeping; the event is logged and dropped,
// since the transaction-status contract (§7) never guarantees delivery to
// an inattentive subscriber.
func (w *Watcher) emit(s Status) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return
	}
	select {
	case w.ch <- s:
	default:
		log.Debug("forkaware: watcher buffer full, dropping status", "tx", w.hash, "status", s)
	}
	if isTerminal(s.Kind) {
		w.done = true
		close(w.ch)
	}
}

func isTerminal(k StatusKind) bool {
	switch k {
	case StatusFinalized, StatusInvalid, StatusDropped, StatusUsurped:
		return true
	default:
		return false
	}
}

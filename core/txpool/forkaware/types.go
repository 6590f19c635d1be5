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
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// TxHash identifies a transaction globally; identical bodies collide by
// design since it is computed deterministically from the body.
type TxHash = common.Hash

// BlockHash identifies a block.
type BlockHash = common.Hash

// TxIndex is the position of a transaction within a block's body.
type TxIndex = uint

// BlockID pairs a block's hash with its number, the way block-import and
// finalization notifications carry both together.
type BlockID struct {
	Hash   BlockHash
	Number uint64
}

func (b BlockID) String() string {
	return fmt.Sprintf("%s#%d", b.Hash.TerminalString(), b.Number)
}

// Source records who handed a transaction to the pool. It is fixed at
// submission time and is never mutated afterwards.
type Source uint8

const (
	// SourceExternal is a transaction received from a peer or RPC client.
	SourceExternal Source = iota
	// SourceLocal is a transaction submitted by the node operator.
	SourceLocal
	// SourceInBlock is a transaction recovered from an imported block body,
	// re-inserted so the pool can track it (e.g. after a reorg exposes it
	// as no longer included).
	SourceInBlock
)

func (s Source) String() string {
	switch s {
	case SourceExternal:
		return "external"
	case SourceLocal:
		return "local"
	case SourceInBlock:
		return "in-block"
	default:
		return "unknown"
	}
}

// StatusKind enumerates the transaction-status event type delivered to
// watchers (spec'd in terms of the Chain API and the validated pool).
type StatusKind uint8

const (
	StatusFuture StatusKind = iota
	StatusReady
	StatusBroadcast
	StatusInBlock
	StatusRetracted
	StatusFinalityTimeout
	StatusFinalized
	StatusUsurped
	StatusDropped
	StatusInvalid
)

func (k StatusKind) String() string {
	switch k {
	case StatusFuture:
		return "Future"
	case StatusReady:
		return "Ready"
	case StatusBroadcast:
		return "Broadcast"
	case StatusInBlock:
		return "InBlock"
	case StatusRetracted:
		return "Retracted"
	case StatusFinalityTimeout:
		return "FinalityTimeout"
	case StatusFinalized:
		return "Finalized"
	case StatusUsurped:
		return "Usurped"
	case StatusDropped:
		return "Dropped"
	case StatusInvalid:
		return "Invalid"
	default:
		return "unknown"
	}
}

// Status is one transaction-status event. Only the fields relevant to Kind
// are meaningful; the zero Status is a Future event (StatusFuture is the
// zero StatusKind).
type Status struct {
	Kind    StatusKind
	Block   BlockHash // InBlock, Retracted, FinalityTimeout, Finalized
	Index   TxIndex   // InBlock, Finalized
	Peers   int       // Broadcast
	Usurper TxHash    // Usurped
}

func (s Status) String() string {
	switch s.Kind {
	case StatusInBlock, StatusFinalized:
		return fmt.Sprintf("%s(%s,%d)", s.Kind, s.Block.TerminalString(), s.Index)
	case StatusRetracted, StatusFinalityTimeout:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Block.TerminalString())
	case StatusBroadcast:
		return fmt.Sprintf("Broadcast(%d peers)", s.Peers)
	case StatusUsurped:
		return fmt.Sprintf("Usurped(%s)", s.Usurper.TerminalString())
	default:
		return s.Kind.String()
	}
}

func statusFuture() Status          { return Status{Kind: StatusFuture} }
func statusReady() Status           { return Status{Kind: StatusReady} }
func statusBroadcast(n int) Status  { return Status{Kind: StatusBroadcast, Peers: n} }
func statusInBlock(b BlockHash, i TxIndex) Status {
	return Status{Kind: StatusInBlock, Block: b, Index: i}
}
func statusRetracted(b BlockHash) Status { return Status{Kind: StatusRetracted, Block: b} }
func statusFinalityTimeout(b BlockHash) Status {
	return Status{Kind: StatusFinalityTimeout, Block: b}
}
func statusFinalized(b BlockHash, i TxIndex) Status {
	return Status{Kind: StatusFinalized, Block: b, Index: i}
}
func statusUsurped(by TxHash) Status { return Status{Kind: StatusUsurped, Usurper: by} }
func statusDropped() Status          { return Status{Kind: StatusDropped} }
func statusInvalid() Status          { return Status{Kind: StatusInvalid} }

// PoolStatus is the aggregate size of a validated pool, broken down the same
// way core/txpool's own subpools report Stats().
type PoolStatus struct {
	Ready  int
	Future int
}

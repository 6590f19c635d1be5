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
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// ValidTransaction is the validation-success outcome the Chain API hands
// back for a transaction it accepted. Priority mirrors the fee-priority
// figure a validated pool uses to order its ready set; it intentionally
// does not carry a requires/provides dependency graph, since that data
// structure belongs to the validated pool (an external collaborator) and
// not to this subsystem.
type ValidTransaction struct {
	Priority *uint256.Int
}

// ValidationErrorKind distinguishes a dispositive validity verdict from one
// the Chain API could not yet render.
type ValidationErrorKind uint8

const (
	// ErrKindInvalid means the Chain API rendered a verdict and the
	// transaction is invalid. Future indicates the invalidity is only
	// because of a not-yet-satisfied precondition (e.g. a future nonce).
	// MemPool revalidation keeps such transactions; View revalidation
	// evicts them like any other Invalid verdict.
	ErrKindInvalid ValidationErrorKind = iota
	// ErrKindUnknown means the Chain API could not render a verdict yet.
	// Never eviction-worthy.
	ErrKindUnknown
)

// ValidationError is returned by ChainAPI.ValidateTransaction when the API
// call itself succeeded but produced a non-valid verdict. A transport
// failure (the call itself could not complete) is reported as a plain
// error instead, so callers distinguish the two with a type switch /
// errors.As rather than inspecting error strings.
type ValidationError struct {
	Kind   ValidationErrorKind
	Future bool // only meaningful when Kind == ErrKindInvalid
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Kind == ErrKindInvalid && e.Future {
		return fmt.Sprintf("invalid (future): %s", e.Reason)
	}
	if e.Kind == ErrKindInvalid {
		return fmt.Sprintf("invalid: %s", e.Reason)
	}
	return fmt.Sprintf("unknown: %s", e.Reason)
}

// TreeRoute describes the ancestry relationship computed walking the chain
// from one block to another. Retracted lists the blocks that would need to
// be undone to get from "from" to "to"; Enacted lists the blocks that would
// need to be applied. An empty Retracted means "from" is an ancestor of
// "to".
type TreeRoute struct {
	Pivot     BlockHash
	Retracted []BlockHash
	Enacted   []BlockHash
}

// ChainAPI is the external collaborator that validates transactions and
// exposes the block metadata this pool needs to stay fork-aware. It is the
// only boundary this package calls out through; everything else is owned
// locally.
type ChainAPI interface {
	// ValidateTransaction validates tx as of the state at block at. A non-nil
	// *ValidationError return means the call completed and produced a
	// negative verdict; any other non-nil error is a transport failure.
	ValidateTransaction(ctx context.Context, at BlockHash, source Source, tx *types.Transaction) (*ValidTransaction, error)

	// HashAndLength returns a transaction's canonical hash and its encoded
	// length, mirroring the Chain API's hash_and_length.
	HashAndLength(tx *types.Transaction) (TxHash, int)

	// BlockBody returns the transactions included in a block, or nil if the
	// block is unknown.
	BlockBody(ctx context.Context, hash BlockHash) ([]*types.Transaction, error)

	// BlockHeader returns a block's header, or nil if unknown.
	BlockHeader(ctx context.Context, hash BlockHash) (*types.Header, error)

	// TreeRoute computes the ancestry path between two blocks.
	TreeRoute(ctx context.Context, from, to BlockHash) (TreeRoute, error)

	// BlockIDToNumber and BlockIDToHash resolve a block identifier in either
	// direction; both return ok=false if the block is unknown.
	BlockIDToNumber(ctx context.Context, hash BlockHash) (number uint64, ok bool, err error)
	BlockIDToHash(ctx context.Context, number uint64) (hash BlockHash, ok bool, err error)
}

// AsValidationError reports whether err is a *ValidationError (a rendered
// verdict) as opposed to a transport failure, returning it if so.
func AsValidationError(err error) (*ValidationError, bool) {
	verr, ok := err.(*ValidationError)
	return verr, ok
}

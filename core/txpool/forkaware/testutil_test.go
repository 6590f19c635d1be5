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
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var testSigner = types.NewEIP155Signer(big.NewInt(1))

func testKey(t testing.TB) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.HexToECDSA("b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291")
	if err != nil {
		t.Fatalf("failed to parse test key: %v", err)
	}
	return key
}

// newTestTx builds a signed legacy transaction with the given nonce, signed
// by a single fixed test key so every transaction this package's tests
// create shares one sender.
func newTestTx(t testing.TB, nonce uint64) *types.Transaction {
	t.Helper()
	tx := types.NewTransaction(nonce, common.HexToAddress("0x000000000000000000000000000000000000ff"), big.NewInt(0), 21000, big.NewInt(1), nil)
	signed, err := types.SignTx(tx, testSigner, testKey(t))
	if err != nil {
		t.Fatalf("failed to sign test tx: %v", err)
	}
	return signed
}

func blockHash(b byte) BlockHash {
	var h BlockHash
	for i := range h {
		h[i] = b
	}
	return h
}

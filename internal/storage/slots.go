// Package storage derives and reads raw contract storage slots.
package storage

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// SlotKey is the 32-byte key of a declared slot index.
func SlotKey(n uint64) common.Hash {
	return common.Hash(uint256.NewInt(n).Bytes32())
}

// SlotKeyFromString parses a decimal slot index as found in storage layouts.
func SlotKeyFromString(s string) (common.Hash, bool) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return common.Hash{}, false
	}
	return common.BigToHash(n), true
}

// AddressKey left-pads an address the way Solidity hashes mapping keys.
func AddressKey(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

// ArraySlot is where the elements of the dynamic array declared at p start.
func ArraySlot(p common.Hash) common.Hash {
	return crypto.Keccak256Hash(p.Bytes())
}

// ArrayElementSlot is the slot holding element index of the dynamic array at
// p, for items occupying wordsPerItem slots each. Arithmetic wraps mod 2^256.
func ArrayElementSlot(p common.Hash, index, wordsPerItem uint64) common.Hash {
	if wordsPerItem == 0 {
		wordsPerItem = 1
	}
	base := new(uint256.Int).SetBytes32(ArraySlot(p).Bytes())
	offset := new(uint256.Int).Mul(uint256.NewInt(index), uint256.NewInt(wordsPerItem))
	return common.Hash(base.Add(base, offset).Bytes32())
}

// MappingSlot is where mapping p stores the value for key: keccak256(key . p).
func MappingSlot(key, p common.Hash) common.Hash {
	return crypto.Keccak256Hash(key.Bytes(), p.Bytes())
}

// Word decodes a storage value.
func Word(b []byte) *uint256.Int {
	return new(uint256.Int).SetBytes(b)
}

// Package crypto provides the hash and signature primitives used by the wallet.
package crypto

import (
	"github.com/Klingon-tech/klingnet-hdmint/pkg/types"
	"github.com/zeebo/blake3"
)

// Hash computes a BLAKE3-256 hash of the input data.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// DoubleHash computes Hash(Hash(data)).
func DoubleHash(data []byte) types.Hash {
	first := Hash(data)
	return Hash(first[:])
}

// Hash512 computes a 64-byte BLAKE3 digest of the input data.
// The first and second halves are used as independent 32-byte seeds.
func Hash512(data []byte) [64]byte {
	return blake3.Sum512(data)
}

// HashConcat hashes the concatenation of two hashes.
func HashConcat(a, b types.Hash) types.Hash {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return Hash(buf[:])
}

package block

import (
	"github.com/Klingon-tech/klingnet-hdmint/pkg/crypto"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/types"
)

// ComputeMerkleRoot calculates the merkle root of transaction hashes.
// An odd level duplicates its last element; no hashes gives the zero hash.
func ComputeMerkleRoot(txHashes []types.Hash) types.Hash {
	if len(txHashes) == 0 {
		return types.Hash{}
	}

	level := make([]types.Hash, len(txHashes))
	copy(level, txHashes)

	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		next := make([]types.Hash, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = crypto.HashConcat(level[i], level[i+1])
		}
		level = next
	}

	return level[0]
}

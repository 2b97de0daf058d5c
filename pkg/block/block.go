// Package block defines block types and structural checks.
package block

import (
	"github.com/Klingon-tech/klingnet-hdmint/pkg/tx"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/types"
)

// Block represents a block in the chain.
type Block struct {
	Header       *Header           `json:"header"`
	Transactions []*tx.Transaction `json:"transactions"`
}

// NewBlock creates a new block with the given header and transactions.
// The header's merkle root is filled in from the transaction hashes.
func NewBlock(header *Header, txs []*tx.Transaction) *Block {
	b := &Block{
		Header:       header,
		Transactions: txs,
	}
	header.MerkleRoot = b.ComputeMerkleRoot()
	return b
}

// Hash returns the header hash.
func (b *Block) Hash() types.Hash {
	return b.Header.Hash()
}

// ComputeMerkleRoot returns the merkle root over the block's transactions.
func (b *Block) ComputeMerkleRoot() types.Hash {
	hashes := make([]types.Hash, len(b.Transactions))
	for i, t := range b.Transactions {
		hashes[i] = t.Hash()
	}
	return ComputeMerkleRoot(hashes)
}

package block

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-hdmint/pkg/types"
)

// Validation errors.
var (
	ErrNilHeader        = errors.New("block has nil header")
	ErrNoTransactions   = errors.New("block has no transactions")
	ErrBadMerkleRoot    = errors.New("merkle root mismatch")
	ErrBadVersion       = errors.New("unsupported block version")
	ErrZeroTimestamp    = errors.New("block timestamp is zero")
	ErrDuplicateTx      = errors.New("duplicate transaction in block")
	ErrDuplicateSerial  = errors.New("serial spent twice in block")
	ErrInvalidTxInBlock = errors.New("invalid transaction in block")
)

// Block version constants.
const (
	CurrentVersion = 1
	MaxVersion     = 1
)

// Validate checks block structure and internal consistency.
func (b *Block) Validate() error {
	if b.Header == nil {
		return ErrNilHeader
	}
	if b.Header.Version == 0 || b.Header.Version > MaxVersion {
		return fmt.Errorf("%w: %d", ErrBadVersion, b.Header.Version)
	}
	if b.Header.Timestamp == 0 {
		return ErrZeroTimestamp
	}
	if len(b.Transactions) == 0 {
		return ErrNoTransactions
	}

	seenTx := make(map[types.Hash]bool, len(b.Transactions))
	seenSerial := make(map[string]bool)
	for i, t := range b.Transactions {
		if t == nil {
			return fmt.Errorf("tx %d: %w: nil transaction", i, ErrInvalidTxInBlock)
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tx %d: %w: %w", i, ErrInvalidTxInBlock, err)
		}
		h := t.Hash()
		if seenTx[h] {
			return fmt.Errorf("tx %d: %w", i, ErrDuplicateTx)
		}
		seenTx[h] = true
		for _, in := range t.Inputs {
			if !in.Script.IsZerocoinSpend() {
				continue
			}
			key := string(in.Script.Data)
			if seenSerial[key] {
				return fmt.Errorf("tx %d: %w", i, ErrDuplicateSerial)
			}
			seenSerial[key] = true
		}
	}

	if root := b.ComputeMerkleRoot(); root != b.Header.MerkleRoot {
		return fmt.Errorf("%w: header %s, computed %s", ErrBadMerkleRoot, b.Header.MerkleRoot, root)
	}
	return nil
}

package mempool

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-hdmint/pkg/tx"
)

// DefaultMaxTxSize is the maximum transaction size in bytes (signing bytes).
const DefaultMaxTxSize = 100_000

// DefaultMaxSpendsPerTx caps the zerocoin spend inputs of one transaction.
const DefaultMaxSpendsPerTx = 7

// Policy defines transaction acceptance rules.
type Policy struct {
	MaxTxSize      int // Maximum transaction size in signing bytes.
	MaxSpendsPerTx int // Maximum zerocoin spend inputs per transaction (0 = unlimited).
}

// DefaultPolicy returns a policy with sensible defaults.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxTxSize:      DefaultMaxTxSize,
		MaxSpendsPerTx: DefaultMaxSpendsPerTx,
	}
}

// Check validates a transaction against policy rules.
// Policy rules can vary per node; structural validation happens separately.
func (p *Policy) Check(transaction *tx.Transaction) error {
	size := len(transaction.SigningBytes())
	if p.MaxTxSize > 0 && size > p.MaxTxSize {
		return fmt.Errorf("transaction too large: %d bytes, max %d", size, p.MaxTxSize)
	}
	if p.MaxSpendsPerTx > 0 {
		spends := 0
		for _, in := range transaction.Inputs {
			if in.Script.IsZerocoinSpend() {
				spends++
			}
		}
		if spends > p.MaxSpendsPerTx {
			return fmt.Errorf("too many zerocoin spends: %d, max %d", spends, p.MaxSpendsPerTx)
		}
	}
	return nil
}

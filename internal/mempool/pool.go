// Package mempool manages pending transactions waiting for block inclusion.
package mempool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/klingnet-hdmint/internal/log"
	"github.com/Klingon-tech/klingnet-hdmint/internal/zerocoin"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/tx"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/types"
)

// DefaultMaxSize is the pool capacity used when New is given none.
const DefaultMaxSize = 5000

// Mempool errors.
var (
	ErrAlreadyExists = errors.New("transaction already in mempool")
	ErrConflict      = errors.New("transaction conflicts with existing mempool entry")
	ErrPoolFull      = errors.New("mempool is full")
	ErrValidation    = errors.New("transaction failed validation")
)

// entry wraps a transaction with the serials it reveals.
type entry struct {
	tx      *tx.Transaction
	serials []types.Hash
}

// Pool holds unconfirmed transactions. Zerocoin spends are indexed by
// serial hash so a coin cannot be spent twice while pending.
type Pool struct {
	mu      sync.RWMutex
	txs     map[types.Hash]*entry         // txHash -> entry
	spends  map[types.Outpoint]types.Hash // outpoint -> txHash (conflict index)
	serials map[types.Hash]types.Hash     // serialHash -> txHash (conflict index)
	maxSize int
	policy  *Policy
	logger  zerolog.Logger
}

// New creates a new mempool holding at most maxSize transactions.
func New(maxSize int) *Pool {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Pool{
		txs:     make(map[types.Hash]*entry),
		spends:  make(map[types.Outpoint]types.Hash),
		serials: make(map[types.Hash]types.Hash),
		maxSize: maxSize,
		policy:  DefaultPolicy(),
		logger:  klog.Mempool,
	}
}

// Add validates and adds a transaction to the mempool.
// Rejects duplicates, transparent double-spends and repeated serials.
func (p *Pool) Add(transaction *tx.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	txHash := transaction.Hash()
	if _, exists := p.txs[txHash]; exists {
		return ErrAlreadyExists
	}

	if p.policy != nil {
		if err := p.policy.Check(transaction); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	if err := transaction.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	for _, in := range transaction.Inputs {
		if in.PrevOut.IsZero() {
			continue
		}
		if conflictHash, exists := p.spends[in.PrevOut]; exists {
			return fmt.Errorf("%w: input %s already spent by %s", ErrConflict, in.PrevOut, conflictHash.Short())
		}
	}
	serials := zerocoin.SpentSerials(transaction)
	for _, sh := range serials {
		if conflictHash, exists := p.serials[sh]; exists {
			return fmt.Errorf("%w: serial %s already spent by %s", ErrConflict, sh.Short(), conflictHash.Short())
		}
	}

	if len(p.txs) >= p.maxSize {
		return ErrPoolFull
	}

	p.txs[txHash] = &entry{tx: transaction, serials: serials}
	for _, in := range transaction.Inputs {
		if !in.PrevOut.IsZero() {
			p.spends[in.PrevOut] = txHash
		}
	}
	for _, sh := range serials {
		p.serials[sh] = txHash
	}
	p.logger.Debug().
		Str("txid", txHash.Short()).
		Int("serials", len(serials)).
		Int("size", len(p.txs)).
		Msg("Transaction added")
	return nil
}

// Remove removes a transaction from the mempool by hash.
func (p *Pool) Remove(txHash types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(txHash)
}

func (p *Pool) removeLocked(txHash types.Hash) {
	e, exists := p.txs[txHash]
	if !exists {
		return
	}
	for _, in := range e.tx.Inputs {
		if !in.PrevOut.IsZero() {
			delete(p.spends, in.PrevOut)
		}
	}
	for _, sh := range e.serials {
		delete(p.serials, sh)
	}
	delete(p.txs, txHash)
}

// RemoveConfirmed removes all transactions that were included in a block,
// and any pending transaction spending a serial the block revealed.
func (p *Pool) RemoveConfirmed(transactions []*tx.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range transactions {
		p.removeLocked(t.Hash())
		for _, sh := range zerocoin.SpentSerials(t) {
			if other, ok := p.serials[sh]; ok {
				p.removeLocked(other)
			}
		}
	}
}

// Has checks if a transaction exists in the mempool.
func (p *Pool) Has(txHash types.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, exists := p.txs[txHash]
	return exists
}

// SpenderOf returns the pending transaction spending serialHash.
func (p *Pool) SpenderOf(serialHash types.Hash) (types.Hash, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.serials[serialHash]
	return h, ok
}

// Count returns the number of transactions in the mempool.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txs)
}

// Hashes returns a snapshot of the hashes of all transactions in the mempool.
func (p *Pool) Hashes() []types.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	hashes := make([]types.Hash, 0, len(p.txs))
	for h := range p.txs {
		hashes = append(hashes, h)
	}
	return hashes
}

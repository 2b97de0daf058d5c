// Package hdmint derives zerocoin mints deterministically from one master
// seed and tracks their lifecycle against the chain and the mempool.
//
// The Wallet owns the seed and the last-used counter, the MintPool holds
// look-ahead candidates, the Scanner matches candidates against the chain
// and the Tracker keeps the per-serial view of every known mint.
package hdmint

import (
	"errors"
	"math/big"

	"github.com/Klingon-tech/klingnet-hdmint/internal/zerocoin"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/block"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/tx"
	"github.com/Klingon-tech/klingnet-hdmint/pkg/types"
)

// DefaultLookahead is the number of counters kept in the mint pool ahead
// of the last used one.
const DefaultLookahead = 20

// DefaultMintConfirmations is the depth below the tip a mint needs before
// it counts as confirmed.
const DefaultMintConfirmations = 6

// Errors.
var (
	ErrWalletLocked      = errors.New("wallet is locked")
	ErrStaleTrackerEntry = errors.New("no tracker entry for mint")
	ErrNotInPool         = errors.New("mint not in pool")
	ErrSeedMismatch      = errors.New("mint belongs to a different seed")
	ErrLookupFailure     = errors.New("chain lookup failed")
	ErrStorageWrite      = errors.New("wallet storage write failed")
	ErrNotASpend         = errors.New("transaction spends no mint")
	ErrMintUsed          = errors.New("mint already spent")
)

// Blockchain is the read view of the chain index the wallet needs.
type Blockchain interface {
	HasCoin(commitmentHash types.Hash) bool
	FindMintTransaction(commitmentHash types.Hash) (types.Hash, bool)
	IsSerialSpent(serialHash types.Hash) (uint64, types.Hash, bool)
	GetTransaction(txid types.Hash) (*tx.Transaction, types.Hash, bool)
	BlockHeader(blockHash types.Hash) (*block.Header, bool)
	IsOnActiveChain(blockHash types.Hash) bool
	Height() uint64
}

// MempoolView exposes a snapshot of pending transaction ids.
type MempoolView interface {
	Hashes() []types.Hash
}

// CoinDecoder recovers a coin's public data from a mint output.
type CoinDecoder interface {
	ExtractCoin(out tx.Output) (*big.Int, zerocoin.Denomination, error)
}

// SeedVault stores master seeds encrypted and hands them out while unlocked.
type SeedVault interface {
	IsLocked() bool
	Lock()
	AddDeterministicSeed(seed zerocoin.MasterSeed) error
	GetDeterministicSeed(seedHash types.Hash) (zerocoin.MasterSeed, error)
	NewSeed() (zerocoin.MasterSeed, error)
}

// SeedChecker reports whether a deterministic mint was derived from the
// wallet's current seed.
type SeedChecker interface {
	CheckSeed(m *zerocoin.DeterministicMint) bool
}

// mempoolSet captures the mempool once for a reconciliation pass.
func mempoolSet(m MempoolView) map[types.Hash]struct{} {
	set := make(map[types.Hash]struct{})
	if m == nil {
		return set
	}
	for _, h := range m.Hashes() {
		set[h] = struct{}{}
	}
	return set
}
